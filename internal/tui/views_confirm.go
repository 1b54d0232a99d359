package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mashlinux/mashflash/internal/flash"
)

func (m Model) viewConfirm() string {
	var b strings.Builder

	b.WriteString(m.renderBanner())
	b.WriteString("\n")

	stage := flash.StageWarning
	if m.state == StateConfirmFinal {
		stage = flash.StageFinal
	}
	title, message := flash.ConfirmText(stage, m.request)

	b.WriteString(m.styles.Error.Bold(true).Render(title))
	b.WriteString("\n\n")
	b.WriteString(m.styles.DangerBox.Render(message))
	b.WriteString("\n\n")

	if m.request.DryRun {
		b.WriteString(m.styles.Warning.Render("Dry run: the installer will only report what it would do."))
		b.WriteString("\n\n")
	}

	help := m.styles.Subtle.Render("y: Yes, n/Esc: No")
	b.WriteString(help)

	return b.String()
}

func (m Model) updateConfirmState(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	var affirmative bool
	switch keyMsg.String() {
	case "y", "Y":
		affirmative = true
	case "n", "N", "esc":
		affirmative = false
	default:
		return m, nil
	}

	decision, err := m.ctrl.Respond(affirmative)
	if err != nil {
		m.formErr = err
		m.state = StateForm
		return m, nil
	}

	switch decision {
	case flash.DecisionPending:
		m.state = StateConfirmFinal
		return m, nil
	case flash.DecisionAccepted:
		m.state = StateRunning
		return m, tea.Batch(m.spinner.Tick, m.launch())
	default:
		m.state = StateForm
		m.notice = "Installation cancelled by user"
		return m, nil
	}
}
