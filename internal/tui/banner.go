package tui

import "github.com/charmbracelet/lipgloss"

func (m Model) renderBanner() string {
	return Banner()
}

// Banner is the styled MASH logo.
func Banner() string {
	logo := `
███╗   ███╗ █████╗ ███████╗██╗  ██╗
████╗ ████║██╔══██╗██╔════╝██║  ██║
██╔████╔██║███████║███████╗███████║
██║╚██╔╝██║██╔══██║╚════██║██╔══██║
██║ ╚═╝ ██║██║  ██║███████║██║  ██║
╚═╝     ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝`

	theme := MashTheme()
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(theme.Primary)).
		Bold(true).
		Align(lipgloss.Center).
		MarginBottom(1)

	return style.Render(logo)
}
