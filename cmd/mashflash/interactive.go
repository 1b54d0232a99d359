package main

import (
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mashlinux/mashflash/internal/flash"
	"github.com/mashlinux/mashflash/internal/tui"
	"github.com/spf13/cobra"
)

func runInteractive(cmd *cobra.Command, args []string) error {
	a := newApp()
	a.openHistory()
	defer a.close()

	queue := newEventQueue()
	// The alternate screen leaves no room for a textual polkit agent, so the
	// installer can run in its own process group.
	orch := a.newOrchestrator(queue.push, true)
	logChan := make(chan string, 100)

	model := tui.NewModel(tui.Options{
		Version:    Version,
		Controller: orch,
		Disks:      a.newLister(logChan),
		Preflight:  a.newDetector(logChan),
		Events:     queue.out,
		LogChan:    logChan,
		UEFIDir:    cfg.UEFIDir,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// eventQueue decouples the orchestrator's observer from the TUI. Submit and
// Respond emit from inside the bubbletea update loop, so the observer must
// never block on the reader.
type eventQueue struct {
	mu      sync.Mutex
	pending []flash.Event
	signal  chan struct{}
	out     chan flash.Event
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		signal: make(chan struct{}, 1),
		out:    make(chan flash.Event),
	}
	go q.forward()
	return q
}

func (q *eventQueue) push(ev flash.Event) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) forward() {
	for range q.signal {
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, ev := range batch {
			q.out <- ev
		}
	}
}
