// Package flash coordinates one privileged flash of a disk image: the
// request is validated and confirmed twice, the installer is launched
// through the elevation tool, its output is streamed into an EventLog and
// its termination is classified into a terminal RunState.
package flash

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"
	"github.com/mashlinux/mashflash/internal/errdefs"
	"github.com/mashlinux/mashflash/internal/log"
	"github.com/nightlyone/lockfile"
	"github.com/spf13/afero"
)

const (
	separator = "========================================"

	maxLineLength = 1024 * 1024
)

type Options struct {
	Fs       afero.Fs
	DevDir   string
	Resolver *Resolver
	Spawner  Spawner

	HeartbeatInterval time.Duration
	// RunTimeout kills the installer once exceeded. Zero waits forever,
	// including on the elevation prompt.
	RunTimeout time.Duration
	// LockPath must be absolute. Empty disables the cross-process lock.
	LockPath string
	// Inhibit, if set, is held from launch until the installer is reaped.
	// Failing to take it is logged and does not stop the run.
	Inhibit func(why string) (io.Closer, error)

	Observer Observer
	Recorder Recorder

	Now   func() time.Time
	NewID func() string
}

// Orchestrator owns at most one run at a time.
type Orchestrator struct {
	opts Options

	mu      sync.Mutex
	current *run

	// Events are queued under mu in the order they were created and
	// delivered by whichever goroutine finds the queue idle.
	pending  []Event
	draining bool
	drained  *sync.Cond
}

type run struct {
	id        string
	req       Request
	state     RunState
	gate      *Gate
	heartbeat Heartbeat
	exitCode  *int
	log       *EventLog

	proc      Process
	lock      *lockfile.Lockfile
	inhibitor io.Closer
	killed    bool
	cancelled bool
	timedOut  bool
	done      chan struct{}

	startedAt  time.Time
	finishedAt time.Time
}

// active reports whether the run blocks a new Submit: it is awaiting
// confirmation, running, or cancelled but not yet reaped.
func (r *run) active() bool {
	return r.state == StateConfirming || r.state == StateRunning || r.proc != nil
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.DevDir == "" {
		opts.DevDir = "/dev"
	}
	if opts.Spawner == nil {
		opts.Spawner = ExecSpawner{}
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	o := &Orchestrator{opts: opts}
	o.drained = sync.NewCond(&o.mu)
	return o
}

// Submit validates req and starts a new run awaiting confirmation. The
// previous run's log is discarded only once validation passes.
func (o *Orchestrator) Submit(req Request) error {
	o.mu.Lock()
	if o.current != nil && o.current.active() {
		o.mu.Unlock()
		return errdefs.ErrRunActive
	}
	if err := req.Validate(o.opts.Fs, o.opts.DevDir); err != nil {
		o.mu.Unlock()
		return err
	}

	r := &run{
		id:    o.opts.NewID(),
		req:   req,
		state: StateConfirming,
		gate:  NewGate(),
		log:   NewEventLog(o.opts.Now),
	}
	o.current = r
	events := []Event{o.stateEvent(r)}
	o.publish(events)
	return nil
}

// Pending returns the request and stage awaiting an answer, if any.
func (o *Orchestrator) Pending() (Request, ConfirmStage, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := o.current
	if r == nil || r.state != StateConfirming || r.gate.Decision() != DecisionPending {
		return Request{}, StageWarning, false
	}
	return r.req, r.gate.Stage(), true
}

// Respond answers the current confirmation stage. A negative answer returns
// the run to Idle without spawning anything.
func (o *Orchestrator) Respond(affirmative bool) (Decision, error) {
	o.mu.Lock()
	r := o.current
	if r == nil || r.state != StateConfirming {
		o.mu.Unlock()
		return DecisionPending, errdefs.NewCustomError(errdefs.ErrTypeGeneric, "no installation is awaiting confirmation")
	}

	decision := r.gate.Respond(affirmative)
	var events []Event
	if decision == DecisionRejected {
		r.state = StateIdle
		events = append(events,
			o.appendLog(r, Entry{Message: "Installation cancelled by user", Severity: SeverityWarning}),
			o.stateEvent(r))
	}
	o.publish(events)
	return decision, nil
}

// RequestConfirmation drives the pending gate to a decision with prompt.
func (o *Orchestrator) RequestConfirmation(prompt Prompter) (Decision, error) {
	for {
		req, stage, ok := o.Pending()
		if !ok {
			o.mu.Lock()
			defer o.mu.Unlock()
			if o.current != nil && o.current.gate != nil && o.current.gate.Decision() != DecisionPending {
				return o.current.gate.Decision(), nil
			}
			return DecisionPending, errdefs.NewCustomError(errdefs.ErrTypeGeneric, "no installation is awaiting confirmation")
		}

		title, message := ConfirmText(stage, req)
		decision, err := o.Respond(prompt(stage, title, message))
		if err != nil {
			return decision, err
		}
		if decision != DecisionPending {
			return decision, nil
		}
	}
}

// Launch starts the confirmed run. The run is supervised until the
// installer exits; cancelling ctx behaves like Cancel.
func (o *Orchestrator) Launch(ctx context.Context) (string, error) {
	o.mu.Lock()
	r := o.current
	if r == nil || r.state != StateConfirming || r.gate.Decision() != DecisionAccepted {
		o.mu.Unlock()
		return "", errdefs.ErrNotConfirmed
	}

	var events []Event
	fail := func(errType errdefs.ErrorType, msg string, err error) (string, error) {
		r.state = StateIdle
		events = append(events,
			o.appendLog(r, Entry{Message: fmt.Sprintf("%s: %v", msg, err), Severity: SeverityError}),
			o.stateEvent(r))
		o.publish(events)
		return "", errdefs.WrapCustomError(errType, msg, err)
	}

	if o.opts.Resolver == nil {
		return fail(errdefs.ErrTypeLaunch, "Failed to resolve installer", errors.New("no resolver configured"))
	}
	installer, err := o.opts.Resolver.Installer()
	if err != nil {
		return fail(errdefs.ErrTypeLaunch, "Failed to resolve installer", err)
	}
	elevation, err := o.opts.Resolver.Elevation()
	if err != nil {
		return fail(errdefs.ErrTypeLaunch, "Failed to resolve elevation tool", err)
	}

	if o.opts.LockPath != "" {
		lf, err := lockfile.New(o.opts.LockPath)
		if err != nil {
			return fail(errdefs.ErrTypeLaunch, "Invalid lock file", err)
		}
		if err := lf.TryLock(); err != nil {
			if errors.Is(err, lockfile.ErrBusy) {
				return fail(errdefs.ErrTypeBusy, "Another installation holds "+o.opts.LockPath, err)
			}
			return fail(errdefs.ErrTypeLaunch, "Failed to acquire lock file", err)
		}
		r.lock = &lf
	}

	args := append([]string{installer}, r.req.Args()...)

	events = append(events,
		o.appendLog(r, Entry{Message: separator, Severity: SeverityWarning}),
		o.appendLog(r, Entry{Message: "STARTING INSTALLATION", Severity: SeverityWarning}),
		o.appendLog(r, Entry{Message: separator, Severity: SeverityWarning}))
	if r.req.DryRun {
		events = append(events, o.appendLog(r, Entry{Message: "DRY RUN MODE - No changes will be made", Severity: SeverityWarning}))
	}
	events = append(events, o.appendLog(r, Entry{
		Message:  "Command: " + shellquote.Join(append([]string{elevation}, args...)...),
		Severity: SeverityInfo,
	}))

	if o.opts.Inhibit != nil && !r.req.DryRun {
		closer, err := o.opts.Inhibit("Writing " + r.req.ImagePath + " to " + r.req.Disk)
		if err != nil {
			events = append(events, o.appendLog(r, Entry{Message: "Could not block suspend during installation: " + err.Error(), Severity: SeverityWarning}))
		} else {
			r.inhibitor = closer
		}
	}

	proc, err := o.opts.Spawner.Start(elevation, args...)
	if err != nil {
		o.releaseLock(r)
		return fail(errdefs.ErrTypeLaunch, "Failed to start installer!", err)
	}

	r.proc = proc
	r.state = StateRunning
	r.startedAt = o.opts.Now()
	r.done = make(chan struct{})
	r.heartbeat.Start()
	events = append(events, o.stateEvent(r))
	log.Infof("Launched installer for run %s (pid %d)", r.id, proc.Pid())
	o.publish(events)
	go o.supervise(ctx, r)
	return r.id, nil
}

// Cancel kills a running installer and marks the run Cancelled without
// waiting for it to exit. It has no effect unless the run is Running.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	r := o.current
	o.mu.Unlock()
	if r == nil {
		return false
	}
	return o.cancelRun(r)
}

func (o *Orchestrator) cancelRun(r *run) bool {
	o.mu.Lock()
	if r.state != StateRunning {
		o.mu.Unlock()
		return false
	}

	r.cancelled = true
	r.state = StateCancelled
	r.finishedAt = o.opts.Now()
	r.heartbeat.Stop()
	events := []Event{o.appendLog(r, Entry{Message: "Cancelling installation...", Severity: SeverityWarning})}
	if err := o.kill(r); err != nil {
		events = append(events, o.appendLog(r, Entry{Message: "Failed to stop installer: " + err.Error(), Severity: SeverityError}))
	}
	events = append(events, o.stateEvent(r))
	o.publish(events)
	return true
}

// kill signals the installer at most once per run. Caller holds mu.
func (o *Orchestrator) kill(r *run) error {
	if r.killed || r.proc == nil {
		return nil
	}
	r.killed = true
	return r.proc.Kill()
}

// Reset acknowledges a finished run and returns to Idle. The log is kept
// until the next Submit.
func (o *Orchestrator) Reset() bool {
	o.mu.Lock()
	r := o.current
	if r == nil || !r.state.IsTerminal() || r.proc != nil {
		o.mu.Unlock()
		return false
	}
	r.state = StateIdle
	events := []Event{o.stateEvent(r)}
	o.publish(events)
	return true
}

func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return StateIdle
	}
	return o.current.state
}

// Active reports whether a new Submit would be refused.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil && o.current.active()
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil {
		return Snapshot{State: StateIdle}
	}
	return o.snapshot(o.current)
}

// Wait blocks until the launched run has been reaped and returns its final
// snapshot. It returns immediately if nothing was launched.
func (o *Orchestrator) Wait(ctx context.Context) (Snapshot, error) {
	o.mu.Lock()
	r := o.current
	o.mu.Unlock()
	if r == nil || r.done == nil {
		return o.Snapshot(), nil
	}

	select {
	case <-r.done:
		o.mu.Lock()
		defer o.mu.Unlock()
		return o.snapshot(r), nil
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	}
}

func (o *Orchestrator) snapshot(r *run) Snapshot {
	snap := Snapshot{
		ID:            r.id,
		Request:       r.req,
		State:         r.state,
		Progress:      r.heartbeat.Value(),
		Entries:       r.log.Entries(),
		StartedAt:     r.startedAt,
		FinishedAt:    r.finishedAt,
		ProcessActive: r.proc != nil,
	}
	if r.exitCode != nil {
		code := *r.exitCode
		snap.ExitCode = &code
	}
	return snap
}

func (o *Orchestrator) supervise(ctx context.Context, r *run) {
	lines := make(chan Entry)
	var readers sync.WaitGroup
	readers.Add(2)
	go scanStream(r.proc.Stdout(), StreamStdout, lines, &readers)
	go scanStream(r.proc.Stderr(), StreamStderr, lines, &readers)

	// Every line is delivered before the exit is reported.
	exited := make(chan ExitStatus, 1)
	go func() {
		status := r.proc.Wait()
		readers.Wait()
		exited <- status
	}()

	ticker := time.NewTicker(o.opts.HeartbeatInterval)
	defer ticker.Stop()

	var timeout <-chan time.Time
	if o.opts.RunTimeout > 0 {
		timer := time.NewTimer(o.opts.RunTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	cancelled := ctx.Done()
	for {
		select {
		case entry := <-lines:
			o.mu.Lock()
			event := o.appendLog(r, entry)
			o.publish([]Event{event})

		case <-ticker.C:
			o.mu.Lock()
			if r.state != StateRunning {
				o.mu.Unlock()
				continue
			}
			event := Event{Kind: EventProgress, RunID: r.id, State: r.state, Progress: r.heartbeat.Tick()}
			o.publish([]Event{event})

		case <-cancelled:
			cancelled = nil
			o.cancelRun(r)

		case <-timeout:
			timeout = nil
			o.expire(r)

		case status := <-exited:
			o.reap(r, status)
			return
		}
	}
}

func (o *Orchestrator) expire(r *run) {
	o.mu.Lock()
	if r.state != StateRunning {
		o.mu.Unlock()
		return
	}
	r.timedOut = true
	events := []Event{o.appendLog(r, Entry{
		Message:  fmt.Sprintf("Installer did not finish within %s, terminating", o.opts.RunTimeout),
		Severity: SeverityError,
	})}
	if err := o.kill(r); err != nil {
		events = append(events, o.appendLog(r, Entry{Message: "Failed to stop installer: " + err.Error(), Severity: SeverityError}))
	}
	o.publish(events)
}

func (o *Orchestrator) reap(r *run, status ExitStatus) {
	o.mu.Lock()
	r.heartbeat.Stop()

	var events []Event
	add := func(msg string, sev Severity) {
		events = append(events, o.appendLog(r, Entry{Message: msg, Severity: sev}))
	}

	switch {
	case r.cancelled:
		if status.Signaled {
			add("Installer stopped after cancellation ("+status.Signal+")", SeverityWarning)
		} else {
			add(fmt.Sprintf("Installer stopped after cancellation (exit code %d)", status.Code), SeverityWarning)
		}
		add("The target disk may be in an inconsistent state. Check it before using it again.", SeverityWarning)

	case status.Normal():
		code := 0
		r.exitCode = &code
		r.state = StateCompleted
		add(separator, SeveritySuccess)
		add("INSTALLATION COMPLETE!", SeveritySuccess)
		add(separator, SeveritySuccess)
		if r.req.DryRun {
			add("Dry run finished. No changes were made to "+r.req.Disk+".", SeverityInfo)
		} else {
			add("Next steps:", SeverityInfo)
			add("1. Remove the installation media", SeverityInfo)
			add("2. Reboot your system", SeverityInfo)
			add("3. Select "+r.req.Disk+" as the boot device", SeverityInfo)
		}

	default:
		code := status.Code
		r.exitCode = &code
		r.state = StateFailed
		add(separator, SeverityError)
		add("INSTALLATION FAILED!", SeverityError)
		add(separator, SeverityError)
		if r.timedOut {
			add(fmt.Sprintf("Installer exceeded the run timeout of %s", o.opts.RunTimeout), SeverityError)
		}
		if status.Signaled {
			add("Installer terminated by signal: "+status.Signal, SeverityError)
		}
		if status.Err != nil {
			add("Waiting for installer failed: "+status.Err.Error(), SeverityError)
		}
		add(fmt.Sprintf("Exit code: %d", code), SeverityError)
		add("Check the log above for details.", SeverityError)
	}

	if !r.cancelled {
		r.finishedAt = o.opts.Now()
		events = append(events, o.stateEvent(r))
	}
	r.proc = nil
	o.releaseLock(r)

	finished := o.stateEvent(r)
	finished.Kind = EventFinished
	events = append(events, finished)
	snap := o.snapshot(r)
	o.publish(events)
	o.waitDelivered()
	if o.opts.Recorder != nil {
		if err := o.opts.Recorder.Record(context.Background(), snap); err != nil {
			log.Warnf("Failed to record run %s: %v", r.id, err)
		}
	}
	close(r.done)
}

// releaseLock drops the cross-process lock and the suspend inhibitor if
// held. Caller holds mu.
func (o *Orchestrator) releaseLock(r *run) {
	if r.inhibitor != nil {
		if err := r.inhibitor.Close(); err != nil {
			log.Warnf("Failed to release suspend inhibitor: %v", err)
		}
		r.inhibitor = nil
	}
	if r.lock == nil {
		return
	}
	if err := r.lock.Unlock(); err != nil {
		log.Warnf("Failed to release lock file %s: %v", o.opts.LockPath, err)
	}
	r.lock = nil
}

// appendLog records e on r's log and returns the matching event. Caller
// holds mu.
func (o *Orchestrator) appendLog(r *run, e Entry) Event {
	stored := r.log.Append(e)
	return Event{Kind: EventLogEntry, RunID: r.id, Entry: stored, State: r.state}
}

func (o *Orchestrator) stateEvent(r *run) Event {
	ev := Event{Kind: EventStateChanged, RunID: r.id, State: r.state, Progress: r.heartbeat.Value()}
	if r.exitCode != nil {
		code := *r.exitCode
		ev.ExitCode = &code
	}
	return ev
}

// publish queues events behind everything already queued, releases mu and
// delivers the queue unless another goroutine is already delivering it.
// Caller holds mu. An Observer that calls back into the Orchestrator only
// queues; its events are delivered after it returns.
func (o *Orchestrator) publish(events []Event) {
	o.pending = append(o.pending, events...)
	if o.draining {
		o.mu.Unlock()
		return
	}

	o.draining = true
	for len(o.pending) > 0 {
		batch := o.pending
		o.pending = nil
		o.mu.Unlock()
		if o.opts.Observer != nil {
			for _, ev := range batch {
				o.opts.Observer(ev)
			}
		}
		o.mu.Lock()
	}
	o.draining = false
	o.drained.Broadcast()
	o.mu.Unlock()
}

// waitDelivered blocks until every queued event has reached the Observer.
func (o *Orchestrator) waitDelivered() {
	o.mu.Lock()
	for o.draining || len(o.pending) > 0 {
		o.drained.Wait()
	}
	o.mu.Unlock()
}

func scanStream(rd io.Reader, stream Stream, out chan<- Entry, wg *sync.WaitGroup) {
	defer wg.Done()

	severity := SeverityInfo
	if stream == StreamStderr {
		severity = SeverityError
	}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	scanner.Split(scanTerminalLines)
	for scanner.Scan() {
		out <- Entry{Message: scanner.Text(), Severity: severity, Stream: stream}
	}
	if err := scanner.Err(); err != nil {
		out <- Entry{
			Message:  fmt.Sprintf("Installer %s could not be read: %v", stream, err),
			Severity: SeverityWarning,
			Stream:   stream,
		}
		// Keep the writer from blocking on a full pipe.
		_, _ = io.Copy(io.Discard, rd)
	}
}

// scanTerminalLines splits on \n, \r\n and bare \r so carriage-return
// progress output becomes separate lines.
func scanTerminalLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
				return i + 1, data[:i], nil
			}
			if !atEOF {
				// Need one more byte to tell \r\n from \r.
				return 0, nil, nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
