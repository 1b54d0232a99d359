package flash

import "time"

type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Stream tags where a log line came from.
type Stream int

const (
	StreamNone Stream = iota
	StreamStdout
	StreamStderr
)

func (s Stream) String() string {
	switch s {
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	default:
		return ""
	}
}

type Entry struct {
	Time     time.Time
	Message  string
	Severity Severity
	Stream   Stream
}

// EventLog is append-only. It is not safe for concurrent use; the
// Orchestrator serialises access to it.
type EventLog struct {
	entries []Entry
	now     func() time.Time
}

func NewEventLog(now func() time.Time) *EventLog {
	if now == nil {
		now = time.Now
	}
	return &EventLog{now: now}
}

// Append stamps e with the current time if it has none and returns the
// stored entry.
func (l *EventLog) Append(e Entry) Entry {
	if e.Time.IsZero() {
		e.Time = l.now()
	}
	l.entries = append(l.entries, e)
	return e
}

func (l *EventLog) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *EventLog) Len() int { return len(l.entries) }
