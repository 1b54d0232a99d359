package flash

import (
	"bytes"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type startedShell struct {
	proc   Process
	stdout bytes.Buffer
	done   chan struct{}
}

func startShell(t *testing.T, spawner ExecSpawner, script string) *startedShell {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	proc, err := spawner.Start("sh", "-c", script)
	require.NoError(t, err)

	s := &startedShell{proc: proc, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		_, _ = io.Copy(&s.stdout, proc.Stdout())
	}()
	go func() { _, _ = io.Copy(io.Discard, proc.Stderr()) }()
	return s
}

func (s *startedShell) wait(t *testing.T) ExitStatus {
	t.Helper()
	result := make(chan ExitStatus, 1)
	go func() { result <- s.proc.Wait() }()

	select {
	case status := <-result:
		<-s.done
		return status
	case <-time.After(10 * time.Second):
		t.Fatal("process did not exit")
		return ExitStatus{}
	}
}

func TestExecSpawner(t *testing.T) {
	t.Run("exit 0", func(t *testing.T) {
		s := startShell(t, ExecSpawner{}, "echo hello; exit 0")
		status := s.wait(t)

		assert.True(t, status.Normal())
		assert.Equal(t, "hello\n", s.stdout.String())
	})

	t.Run("exit 1", func(t *testing.T) {
		status := startShell(t, ExecSpawner{}, "exit 1").wait(t)

		assert.False(t, status.Normal())
		assert.Equal(t, 1, status.Code)
		assert.False(t, status.Signaled)
		assert.NoError(t, status.Err)
	})

	t.Run("killed by signal", func(t *testing.T) {
		status := startShell(t, ExecSpawner{}, "kill -9 $$").wait(t)

		assert.True(t, status.Signaled)
		assert.Equal(t, -1, status.Code)
		assert.Equal(t, "killed", status.Signal)
	})

	t.Run("kill while running", func(t *testing.T) {
		s := startShell(t, ExecSpawner{ProcessGroup: true}, "sleep 30; exit 0")
		require.NoError(t, s.proc.Kill())

		status := s.wait(t)
		assert.True(t, status.Signaled)
	})

	t.Run("kill after exit", func(t *testing.T) {
		s := startShell(t, ExecSpawner{}, "exit 0")
		s.wait(t)

		assert.NoError(t, s.proc.Kill())
	})

	t.Run("kill after leader exit stops the group", func(t *testing.T) {
		s := startShell(t, ExecSpawner{ProcessGroup: true}, "sleep 30 & exit 0")

		// The shell exits at once; its background sleep keeps the output
		// pipe open, so Wait is still blocked.
		time.Sleep(200 * time.Millisecond)
		require.NoError(t, s.proc.Kill())

		status := s.wait(t)
		assert.True(t, status.Normal())
	})
}
