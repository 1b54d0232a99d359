package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mashlinux/mashflash/internal/disks"
	"github.com/mashlinux/mashflash/internal/flash"
	"github.com/mashlinux/mashflash/internal/preflight"
)

// Controller is the part of flash.Orchestrator the TUI drives.
type Controller interface {
	Submit(req flash.Request) error
	Respond(affirmative bool) (flash.Decision, error)
	Launch(ctx context.Context) (string, error)
	Cancel() bool
	Reset() bool
	State() flash.RunState
	Snapshot() flash.Snapshot
}

type DiskLister interface {
	List(ctx context.Context) ([]disks.Descriptor, error)
}

type Checker interface {
	Run(ctx context.Context) []preflight.Check
}

type Options struct {
	Version    string
	Controller Controller
	Disks      DiskLister
	// Preflight is optional.
	Preflight Checker
	// Events must receive every event the Controller emits.
	Events  <-chan flash.Event
	LogChan <-chan string

	ImagePath string
	UEFIDir   string
	DryRun    bool
}

// Form focus order.
const (
	focusImage = iota
	focusDisk
	focusUEFI
	focusDryRun
	focusInstall
	focusCount
)

const maxStatusLines = 3

type Model struct {
	version string
	state   ApplicationState
	styles  Styles
	width   int
	height  int

	ctrl      Controller
	lister    DiskLister
	checker   Checker
	events    <-chan flash.Event
	logChan   <-chan string
	isLoading bool

	imageInput textinput.Model
	uefiInput  textinput.Model
	disks      []disks.Descriptor
	diskCursor int
	diskErr    error
	dryRun     bool
	focus      int
	formErr    error
	notice     string
	checks     []preflight.Check

	spinner  spinner.Model
	activity progress.Model
	logView  viewport.Model

	request   flash.Request
	runID     string
	entries   []flash.Entry
	heartbeat int
	runState  flash.RunState
	statusLog []string
	quitting  bool
}

func NewModel(opts Options) Model {
	theme := MashTheme()
	styles := NewStyles(theme)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	image := textinput.New()
	image.Placeholder = "/path/to/image.raw"
	image.CharLimit = 4096
	image.Width = 60
	image.SetValue(opts.ImagePath)
	image.Focus()

	uefi := textinput.New()
	uefi.Placeholder = "/boot/efi"
	uefi.CharLimit = 4096
	uefi.Width = 60
	uefi.SetValue(opts.UEFIDir)

	return Model{
		version:    opts.Version,
		state:      StateForm,
		styles:     styles,
		width:      80,
		height:     24,
		ctrl:       opts.Controller,
		lister:     opts.Disks,
		checker:    opts.Preflight,
		events:     opts.Events,
		logChan:    opts.LogChan,
		isLoading:  true,
		imageInput: image,
		uefiInput:  uefi,
		dryRun:     opts.DryRun,
		spinner:    s,
		activity:   styles.NewActivityBar(40),
		logView:    viewport.New(78, 10),
		runState:   flash.StateIdle,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		textinput.Blink,
		m.listDisks(),
		m.listenForEvents(),
		m.listenForLogs(),
	}
	if m.checker != nil {
		cmds = append(cmds, m.runPreflight())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case logMsg:
		m.statusLog = append(m.statusLog, msg.message)
		if len(m.statusLog) > maxStatusLines {
			m.statusLog = m.statusLog[len(m.statusLog)-maxStatusLines:]
		}
		return m, m.listenForLogs()

	case flashEventMsg:
		m = m.applyEvent(msg.event)
		return m, m.listenForEvents()

	case disksListedMsg:
		m.isLoading = false
		m.diskErr = msg.err
		m.disks = msg.disks
		if m.diskCursor >= len(m.disks) {
			m.diskCursor = 0
		}
		return m, nil

	case preflightCompleteMsg:
		m.checks = msg.checks
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.handleInterrupt()
		}
	}

	switch m.state {
	case StateForm:
		return m.updateFormState(msg)
	case StateConfirmWarning, StateConfirmFinal:
		return m.updateConfirmState(msg)
	case StateRunning:
		return m.updateRunningState(msg)
	case StateCancelConfirm:
		return m.updateCancelConfirmState(msg)
	case StateFinished:
		return m.updateFinishedState(msg)
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.state {
	case StateConfirmWarning, StateConfirmFinal:
		return m.viewConfirm()
	case StateRunning:
		return m.viewRunning()
	case StateCancelConfirm:
		return m.viewCancelConfirm()
	case StateFinished:
		return m.viewFinished()
	default:
		return m.viewForm()
	}
}

// handleInterrupt never leaves a running installer orphaned: while it runs
// ctrl+c asks whether to cancel instead of quitting.
func (m Model) handleInterrupt() (tea.Model, tea.Cmd) {
	if flash.AffordancesFor(m.ctrl.State()).CancelEnabled {
		m.state = StateCancelConfirm
		return m, nil
	}
	if m.ctrl.State() == flash.StateConfirming {
		_, _ = m.ctrl.Respond(false)
	}
	if m.ctrl.Snapshot().ProcessActive {
		// Cancelled but not yet reaped; wait for the exit.
		return m, nil
	}
	m.quitting = true
	return m, tea.Quit
}

func (m Model) applyEvent(ev flash.Event) Model {
	if ev.RunID != m.runID {
		m.runID = ev.RunID
		m.entries = nil
		m.heartbeat = 0
	}

	switch ev.Kind {
	case flash.EventLogEntry:
		m.entries = append(m.entries, ev.Entry)
		m.refreshLog()
	case flash.EventProgress:
		m.heartbeat = ev.Progress
	case flash.EventStateChanged:
		m.runState = ev.State
	case flash.EventFinished:
		m.runState = ev.State
		if m.state == StateRunning || m.state == StateCancelConfirm {
			m.state = StateFinished
		}
		m.refreshLog()
	}
	return m
}

func (m *Model) resize() {
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	m.activity.Width = min(w, 60)
	m.logView.Width = w
	h := m.height - 16
	if h < 5 {
		h = 5
	}
	m.logView.Height = h
	m.refreshLog()
}

func (m *Model) refreshLog() {
	m.logView.SetContent(m.renderEntries(m.entries))
	m.logView.GotoBottom()
}

// currentRequest builds the form's current request. A placeholder disk selection
// yields an empty disk so validation reports it.
func (m Model) currentRequest() flash.Request {
	req := flash.Request{
		ImagePath: m.imageInput.Value(),
		UEFIDir:   m.uefiInput.Value(),
		DryRun:    m.dryRun,
	}
	if m.diskCursor < len(m.disks) && !m.disks[m.diskCursor].IsPlaceholder() {
		req.Disk = m.disks[m.diskCursor].Name
	}
	return req
}

func (m Model) listDisks() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		found, err := m.lister.List(ctx)
		return disksListedMsg{disks: found, err: err}
	}
}

func (m Model) runPreflight() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return preflightCompleteMsg{checks: m.checker.Run(ctx)}
	}
}

func (m Model) launch() tea.Cmd {
	return func() tea.Msg {
		// The run outlives this command, so it gets a background context.
		runID, err := m.ctrl.Launch(context.Background())
		return launchResultMsg{runID: runID, err: err}
	}
}

// listenForEvents is re-armed only after each event so that exactly one
// reader exists and events arrive in order.
func (m Model) listenForEvents() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return nil
		}
		return flashEventMsg{event: ev}
	}
}

func (m Model) listenForLogs() tea.Cmd {
	if m.logChan == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-m.logChan
		if !ok {
			return nil
		}
		return logMsg{message: msg}
	}
}
