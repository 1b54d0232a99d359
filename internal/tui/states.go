package tui

type ApplicationState int

const (
	StateForm ApplicationState = iota
	StateConfirmWarning
	StateConfirmFinal
	StateRunning
	StateCancelConfirm
	StateFinished
)
