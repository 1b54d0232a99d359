package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mashlinux/mashflash/internal/flash"
)

func (m Model) viewRunning() string {
	var b strings.Builder

	title := m.styles.Title.Render("Installing to " + m.request.Disk)
	b.WriteString(title)
	b.WriteString("\n")

	snap := m.ctrl.Snapshot()
	switch snap.State {
	case flash.StateCancelled:
		b.WriteString(m.styles.Warning.Render(fmt.Sprintf("%s Cancelling, waiting for the installer to exit...", m.spinner.View())))
	case flash.StateConfirming:
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Normal.Render("Starting installer...")))
	default:
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), m.styles.Normal.Render("Installer running (authenticate if prompted)")))
		b.WriteString("\n")
		b.WriteString(m.activity.ViewAs(float64(m.heartbeat) / 100))
		b.WriteString(" ")
		b.WriteString(m.styles.Subtle.Render("activity"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.styles.Box.Render(m.logView.View()))
	b.WriteString("\n")

	help := "↑/↓/PgUp/PgDn: scroll log"
	if snap.Affordances().CancelEnabled {
		help = "c: Cancel installation, " + help
	}
	b.WriteString(m.styles.Subtle.Render(help))

	return b.String()
}

func (m Model) viewCancelConfirm() string {
	var b strings.Builder

	b.WriteString(m.styles.Title.Render("Cancel Installation"))
	b.WriteString("\n\n")
	b.WriteString(m.styles.DangerBox.Render(flash.CancelWarning))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Subtle.Render("y: Cancel the installation, n/Esc: Keep going"))

	return b.String()
}

func (m Model) viewFinished() string {
	var b strings.Builder

	b.WriteString(m.renderBanner())
	b.WriteString("\n")

	snap := m.ctrl.Snapshot()
	switch snap.State {
	case flash.StateCompleted:
		b.WriteString(m.styles.Success.Render("✓ " + snap.Summary()))
	case flash.StateFailed:
		b.WriteString(m.styles.Error.Render("✗ " + snap.Summary()))
	default:
		b.WriteString(m.styles.Warning.Render("⚠ " + snap.Summary()))
	}
	b.WriteString("\n")
	if !snap.StartedAt.IsZero() && !snap.FinishedAt.IsZero() {
		elapsed := snap.FinishedAt.Sub(snap.StartedAt).Round(time.Second)
		b.WriteString(m.styles.Subtle.Render("Elapsed: " + elapsed.String()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.styles.Box.Render(m.logView.View()))
	b.WriteString("\n")

	help := m.styles.Subtle.Render("Enter: New installation, ↑/↓: scroll log, q: Quit")
	b.WriteString(help)

	return b.String()
}

func (m Model) renderEntries(entries []flash.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		stamp := m.styles.Subtle.Render("[" + e.Time.Format("15:04:05") + "]")
		b.WriteString(stamp + " " + m.styles.ForSeverity(e.Severity).Render(e.Message))
	}
	return b.String()
}

func (m Model) updateRunningState(msg tea.Msg) (tea.Model, tea.Cmd) {
	if result, ok := msg.(launchResultMsg); ok {
		if result.err != nil {
			m.formErr = result.err
			m.state = StateForm
		}
		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "c", "esc":
			if flash.AffordancesFor(m.ctrl.State()).CancelEnabled {
				m.state = StateCancelConfirm
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	return m, cmd
}

func (m Model) updateCancelConfirmState(msg tea.Msg) (tea.Model, tea.Cmd) {
	if result, ok := msg.(launchResultMsg); ok {
		return m.updateRunningState(result)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.String() {
	case "y", "Y":
		m.ctrl.Cancel()
		m.state = StateRunning
		if !m.ctrl.Snapshot().ProcessActive {
			m.state = StateFinished
		}
	case "n", "N", "esc":
		m.state = StateRunning
	}
	return m, nil
}

func (m Model) updateFinishedState(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			if !m.ctrl.Reset() {
				return m, nil
			}
			m.state = StateForm
			m.isLoading = true
			return m, tea.Batch(m.spinner.Tick, m.listDisks())
		case "q":
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	return m, cmd
}
