package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mashlinux/mashflash/internal/flash"
)

type AppTheme struct {
	Primary    string
	Secondary  string
	Accent     string
	Text       string
	Subtle     string
	Error      string
	Warning    string
	Success    string
	Background string
	Surface    string
}

func MashTheme() AppTheme {
	return AppTheme{
		Primary:    "#7fd4ff",
		Secondary:  "#1f4f6b",
		Accent:     "#d6f1ff",
		Text:       "#e1e3e6",
		Subtle:     "#9aa4ad",
		Error:      "#ff8a80",
		Warning:    "#ffd180",
		Success:    "#9be79b",
		Background: "#101418",
		Surface:    "#1b2127",
	}
}

func NewStyles(theme AppTheme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Primary)).
			Bold(true).
			MarginLeft(1).
			MarginBottom(1),

		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Text)),

		Bold: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Text)).
			Bold(true),

		Subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Subtle)),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Error)),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Warning)),

		StatusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Background)).
			Background(lipgloss.Color(theme.Primary)).
			Padding(0, 1),

		Key: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Accent)).
			Bold(true),

		SpinnerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Primary)),

		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Success)).
			Bold(true),

		HighlightButton: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Background)).
			Background(lipgloss.Color(theme.Primary)).
			Padding(0, 2).
			Bold(true),

		SelectedOption: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Accent)).
			Bold(true),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(theme.Secondary)).
			Padding(0, 1),

		DangerBox: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color(theme.Error)).
			Padding(1, 2),
	}
}

type Styles struct {
	Title           lipgloss.Style
	Normal          lipgloss.Style
	Bold            lipgloss.Style
	Subtle          lipgloss.Style
	Warning         lipgloss.Style
	Error           lipgloss.Style
	StatusBar       lipgloss.Style
	Key             lipgloss.Style
	SpinnerStyle    lipgloss.Style
	Success         lipgloss.Style
	HighlightButton lipgloss.Style
	SelectedOption  lipgloss.Style
	Box             lipgloss.Style
	DangerBox       lipgloss.Style
}

// ForSeverity picks the log line style for an entry.
func (s Styles) ForSeverity(sev flash.Severity) lipgloss.Style {
	switch sev {
	case flash.SeveritySuccess:
		return s.Success
	case flash.SeverityWarning:
		return s.Warning
	case flash.SeverityError:
		return s.Error
	default:
		return s.Normal
	}
}

// NewActivityBar renders the heartbeat. It has no percentage because the
// value says nothing about how much work is done.
func (s Styles) NewActivityBar(width int) progress.Model {
	theme := MashTheme()
	prog := progress.New(
		progress.WithGradient(theme.Secondary, theme.Primary),
		progress.WithoutPercentage(),
	)

	prog.Width = width
	return prog
}
