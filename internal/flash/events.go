package flash

import (
	"context"
	"fmt"
	"time"

	"github.com/mashlinux/mashflash/internal/errdefs"
)

type EventKind int

const (
	// EventLogEntry carries one new EventLog entry.
	EventLogEntry EventKind = iota
	// EventStateChanged is sent after every RunState transition.
	EventStateChanged
	// EventProgress carries a new heartbeat value.
	EventProgress
	// EventFinished is sent once the installer process has been reaped,
	// including after a cancel.
	EventFinished
)

type Event struct {
	Kind     EventKind
	RunID    string
	Entry    Entry
	State    RunState
	Progress int
	ExitCode *int
}

// Observer is called outside the Orchestrator's lock, one event at a time
// and in the order the events were created. It may call back into the
// Orchestrator but must not block on Wait.
type Observer func(Event)

// Recorder persists a finished run.
type Recorder interface {
	Record(ctx context.Context, snap Snapshot) error
}

// Snapshot is a copy of the current run for presentation.
type Snapshot struct {
	ID         string
	Request    Request
	State      RunState
	Progress   int
	ExitCode   *int
	Entries    []Entry
	StartedAt  time.Time
	FinishedAt time.Time
	// ProcessActive is true from launch until the installer is reaped.
	ProcessActive bool
}

func (s Snapshot) Affordances() Affordances {
	return AffordancesFor(s.State)
}

// Err summarises a terminal outcome as an error; nil for success and for
// non-terminal states.
func (s Snapshot) Err() error {
	switch s.State {
	case StateFailed:
		code := -1
		if s.ExitCode != nil {
			code = *s.ExitCode
		}
		return errdefs.NewCustomError(errdefs.ErrTypeRuntimeFailure, fmt.Sprintf("installation failed with exit code %d", code))
	case StateCancelled:
		return errdefs.ErrUserCancelled
	default:
		return nil
	}
}

// Summary is a one-line human readable outcome.
func (s Snapshot) Summary() string {
	switch s.State {
	case StateCompleted:
		if s.Request.DryRun {
			return "Dry run completed successfully"
		}
		return "Installation successful"
	case StateFailed:
		return s.Err().Error()
	case StateCancelled:
		return "Installation cancelled; the target disk may be in an inconsistent state"
	case StateRunning:
		return "Installation in progress"
	case StateConfirming:
		return "Waiting for confirmation"
	default:
		return "Ready"
	}
}
