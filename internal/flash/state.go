package flash

type RunState int

const (
	StateIdle RunState = iota
	StateConfirming
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfirming:
		return "confirming"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Affordances says which controls a front end may enable.
type Affordances struct {
	InputsEnabled bool
	CancelEnabled bool
}

// AffordancesFor is the only place enable/disable decisions are made.
func AffordancesFor(s RunState) Affordances {
	return Affordances{
		InputsEnabled: s == StateIdle,
		CancelEnabled: s == StateRunning,
	}
}
