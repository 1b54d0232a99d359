package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mashlinux/mashflash/internal/flash"
	"github.com/mashlinux/mashflash/internal/preflight"
)

func (m Model) viewForm() string {
	var b strings.Builder

	b.WriteString(m.renderBanner())
	b.WriteString("\n")

	title := m.styles.Title.Render("MASH installer " + m.version)
	b.WriteString(title)
	b.WriteString("\n")

	b.WriteString(m.renderChecks())

	b.WriteString(m.fieldLabel(focusImage, "Disk image"))
	b.WriteString("\n")
	b.WriteString(m.imageInput.View())
	b.WriteString("\n\n")

	b.WriteString(m.fieldLabel(focusDisk, "Target disk"))
	b.WriteString("\n")
	b.WriteString(m.renderDiskList())
	b.WriteString("\n")

	b.WriteString(m.fieldLabel(focusUEFI, "UEFI directory"))
	b.WriteString("\n")
	b.WriteString(m.uefiInput.View())
	b.WriteString("\n\n")

	box := "[ ]"
	if m.dryRun {
		box = "[x]"
	}
	b.WriteString(m.fieldLabel(focusDryRun, box+" Dry run (no changes)"))
	b.WriteString("\n\n")

	button := m.styles.Normal.Render("  Install  ")
	if m.focus == focusInstall {
		button = m.styles.HighlightButton.Render("Install")
	}
	b.WriteString(button)
	b.WriteString("\n\n")

	if m.formErr != nil {
		b.WriteString(m.styles.Error.Render("✗ " + m.formErr.Error()))
		b.WriteString("\n")
	} else if m.notice != "" {
		b.WriteString(m.styles.Warning.Render(m.notice))
		b.WriteString("\n")
	}

	for _, line := range m.statusLog {
		b.WriteString(m.styles.Subtle.Render(line))
		b.WriteString("\n")
	}

	help := m.styles.Subtle.Render("Tab/Shift+Tab: move, ↑/↓: choose disk, Space: toggle, r: rescan disks, Enter: next/install, Ctrl+C: quit")
	b.WriteString(help)

	return b.String()
}

func (m Model) fieldLabel(field int, label string) string {
	if m.focus == field {
		return m.styles.SelectedOption.Render("▶ " + label)
	}
	return m.styles.Normal.Render("  " + label)
}

func (m Model) renderDiskList() string {
	var b strings.Builder

	switch {
	case m.isLoading:
		b.WriteString(fmt.Sprintf("  %s %s\n", m.spinner.View(), m.styles.Normal.Render("Scanning disks...")))
	case m.diskErr != nil:
		b.WriteString(m.styles.Error.Render("  ✗ " + m.diskErr.Error()))
		b.WriteString("\n")
	default:
		for i, d := range m.disks {
			line := "    " + d.Label()
			style := m.styles.Normal
			if d.IsPlaceholder() {
				style = m.styles.Subtle
			} else if i == m.diskCursor {
				line = "  ● " + d.Label()
				style = m.styles.SelectedOption
			}
			b.WriteString(style.Render(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderChecks() string {
	var b strings.Builder
	for _, c := range m.checks {
		switch {
		case c.Failed():
			b.WriteString(m.styles.Error.Render(fmt.Sprintf("✗ %s: %s", c.Description, c.Detail)))
			b.WriteString("\n")
		case c.Status == preflight.StatusWarning:
			b.WriteString(m.styles.Warning.Render(fmt.Sprintf("⚠ %s: %s", c.Description, c.Detail)))
			b.WriteString("\n")
		}
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) updateFormState(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m.updateFocusedInput(msg)
	}

	if !flash.AffordancesFor(m.ctrl.State()).InputsEnabled {
		return m, nil
	}

	switch keyMsg.String() {
	case "tab":
		return m.setFocus((m.focus + 1) % focusCount)
	case "shift+tab":
		return m.setFocus((m.focus + focusCount - 1) % focusCount)
	case "enter":
		if m.focus == focusInstall {
			return m.submit()
		}
		return m.setFocus(m.focus + 1)
	}

	switch m.focus {
	case focusDisk:
		switch keyMsg.String() {
		case "up", "k":
			if m.diskCursor > 0 {
				m.diskCursor--
			}
		case "down", "j":
			if m.diskCursor < len(m.disks)-1 {
				m.diskCursor++
			}
		case "r":
			m.isLoading = true
			return m, tea.Batch(m.spinner.Tick, m.listDisks())
		}
		return m, nil
	case focusDryRun:
		if keyMsg.String() == " " || keyMsg.String() == "space" {
			m.dryRun = !m.dryRun
		}
		return m, nil
	}

	return m.updateFocusedInput(msg)
}

func (m Model) updateFocusedInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case focusImage:
		m.imageInput, cmd = m.imageInput.Update(msg)
	case focusUEFI:
		m.uefiInput, cmd = m.uefiInput.Update(msg)
	}
	return m, cmd
}

func (m Model) setFocus(field int) (tea.Model, tea.Cmd) {
	m.focus = field
	m.imageInput.Blur()
	m.uefiInput.Blur()

	var cmd tea.Cmd
	switch field {
	case focusImage:
		cmd = m.imageInput.Focus()
	case focusUEFI:
		cmd = m.uefiInput.Focus()
	}
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	req := m.currentRequest()
	if err := m.ctrl.Submit(req); err != nil {
		m.formErr = err
		return m, nil
	}

	m.formErr = nil
	m.notice = ""
	m.request = req
	m.state = StateConfirmWarning
	return m, nil
}
