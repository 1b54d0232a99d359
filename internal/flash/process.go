package flash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// ExitStatus is how the elevated installer terminated.
type ExitStatus struct {
	Code     int
	Signaled bool
	Signal   string
	// Err carries a wait failure that is not a plain nonzero exit.
	Err error
}

// Normal reports a clean exit with code 0.
func (s ExitStatus) Normal() bool {
	return !s.Signaled && s.Code == 0 && s.Err == nil
}

// Process is a started installer. Stdout and Stderr must be drained until
// EOF; Wait may be called concurrently with reading and closes both readers
// once the process is gone.
type Process interface {
	Pid() int
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() ExitStatus
	Kill() error
}

// Spawner starts processes. Tests substitute a fake.
type Spawner interface {
	Start(name string, args ...string) (Process, error)
}

// ExecSpawner starts real processes with os/exec.
type ExecSpawner struct {
	// WaitDelay bounds how long Wait waits for output pipes held open by
	// grandchildren after the direct child has exited.
	WaitDelay time.Duration
	// ProcessGroup starts the child in its own process group so Kill also
	// stops its descendants. A textual polkit agent cannot prompt from a
	// background group, so leave it off when the elevation prompt needs the
	// terminal.
	ProcessGroup bool
}

func (s ExecSpawner) Start(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.WaitDelay = s.WaitDelay
	if s.ProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		return nil, err
	}

	return &execProcess{
		cmd:     cmd,
		group:   s.ProcessGroup,
		stdoutR: stdoutR,
		stdoutW: stdoutW,
		stderrR: stderrR,
		stderrW: stderrW,
	}, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	group   bool
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter
}

func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }
func (p *execProcess) Stdout() io.Reader { return p.stdoutR }
func (p *execProcess) Stderr() io.Reader { return p.stderrR }

// Kill goes through os.Process, which knows when the child has been reaped,
// so a recycled PID is never signalled. The process group is signalled as
// well: its ID stays reserved while any member, such as a grandchild still
// holding the output pipes, is alive.
func (p *execProcess) Kill() error {
	var result error
	if err := p.cmd.Process.Signal(unix.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
		result = fmt.Errorf("failed to signal pid %d: %w", p.cmd.Process.Pid, err)
	}
	if p.group {
		if err := unix.Kill(-p.cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) && result == nil {
			result = fmt.Errorf("failed to signal process group %d: %w", p.cmd.Process.Pid, err)
		}
	}
	return result
}

func (p *execProcess) Wait() ExitStatus {
	err := p.cmd.Wait()
	p.stdoutW.Close()
	p.stderrW.Close()
	return exitStatusFrom(p.cmd.ProcessState, err)
}

func exitStatusFrom(state *os.ProcessState, waitErr error) ExitStatus {
	var status ExitStatus

	if state == nil {
		status.Code = -1
		status.Err = waitErr
		return status
	}

	status.Code = state.ExitCode()
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signaled = true
		status.Signal = ws.Signal().String()
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		status.Err = waitErr
	}
	return status
}
