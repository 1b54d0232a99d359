package flash

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	tests := []struct {
		name    string
		answers []bool
		want    Decision
	}{
		{"both affirmative", []bool{true, true}, DecisionAccepted},
		{"warning rejected", []bool{false}, DecisionRejected},
		{"final rejected", []bool{true, false}, DecisionRejected},
		{"one answer pending", []bool{true}, DecisionPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate()
			var d Decision
			for _, a := range tt.answers {
				d = g.Respond(a)
			}
			assert.Equal(t, tt.want, d)
		})
	}

	t.Run("rejection is sticky", func(t *testing.T) {
		g := NewGate()
		g.Respond(false)
		assert.Equal(t, DecisionRejected, g.Respond(true))
		assert.Equal(t, DecisionRejected, g.Respond(true))
	})
}

func TestRequestConfirmation(t *testing.T) {
	req := Request{Disk: "sda"}

	calls := 0
	d := RequestConfirmation(req, func(stage ConfirmStage, title, message string) bool {
		calls++
		return stage == StageWarning
	})
	assert.Equal(t, DecisionRejected, d)
	assert.Equal(t, 2, calls)

	calls = 0
	d = RequestConfirmation(req, func(ConfirmStage, string, string) bool {
		calls++
		return false
	})
	assert.Equal(t, DecisionRejected, d)
	assert.Equal(t, 1, calls)
}

func TestConfirmText(t *testing.T) {
	title, msg := ConfirmText(StageWarning, Request{Disk: "nvme0n1"})
	assert.Equal(t, "Confirm Installation", title)
	assert.Contains(t, msg, "THIS WILL COMPLETELY ERASE nvme0n1!")

	title, msg = ConfirmText(StageFinal, Request{Disk: "nvme0n1"})
	assert.Equal(t, "FINAL WARNING", title)
	assert.Contains(t, msg, "Last chance!")
}

func TestHeartbeat(t *testing.T) {
	var h Heartbeat
	assert.Equal(t, 0, h.Tick(), "does not advance before Start")

	h.Start()
	for i := 0; i < 99; i++ {
		h.Tick()
	}
	assert.Equal(t, 99, h.Value())
	assert.Equal(t, 0, h.Tick(), "wraps at 100")

	h.Tick()
	h.Stop()
	assert.Equal(t, 1, h.Tick())
	assert.False(t, h.Running())

	h.Start()
	assert.Equal(t, 0, h.Value())
}

func TestEventLog(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	l := NewEventLog(func() time.Time { return now })

	first := l.Append(Entry{Message: "one"})
	assert.Equal(t, now, first.Time)

	explicit := now.Add(time.Hour)
	l.Append(Entry{Message: "two", Time: explicit, Severity: SeverityWarning})

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Message)
	assert.Equal(t, explicit, entries[1].Time)

	entries[0].Message = "mutated"
	assert.Equal(t, "one", l.Entries()[0].Message)
	assert.Equal(t, 2, l.Len())
}

func TestAffordancesFor(t *testing.T) {
	tests := []struct {
		state  RunState
		inputs bool
		cancel bool
	}{
		{StateIdle, true, false},
		{StateConfirming, false, false},
		{StateRunning, false, true},
		{StateCompleted, false, false},
		{StateFailed, false, false},
		{StateCancelled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			a := AffordancesFor(tt.state)
			assert.Equal(t, tt.inputs, a.InputsEnabled)
			assert.Equal(t, tt.cancel, a.CancelEnabled)
		})
	}
}

func TestRequest(t *testing.T) {
	t.Run("device path", func(t *testing.T) {
		assert.Equal(t, "/dev/sda", Request{Disk: "sda"}.DevicePath("/dev"))
		assert.Equal(t, "/dev/sda", Request{Disk: "/dev/sda"}.DevicePath("/dev"))
		assert.Equal(t, "/etc/passwd", Request{Disk: "/dev/../etc/passwd"}.DevicePath("/dev"))
	})

	t.Run("rejects paths escaping the device directory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/img", nil, 0o644))
		require.NoError(t, afero.WriteFile(fs, "/etc/passwd", nil, 0o644))
		require.NoError(t, afero.WriteFile(fs, "/dev/sda", nil, 0o660))

		for _, disk := range []string{"/dev/../etc/passwd", "../etc/passwd", "..", ".", "/dev/sda/..", "sub/sda"} {
			err := Request{ImagePath: "/img", Disk: disk, UEFIDir: "/"}.Validate(fs, "/dev")
			assert.ErrorContains(t, err, "is not a device name", "disk %q", disk)
		}
	})

	t.Run("requires a device node on the real filesystem", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "image.raw"), nil, 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "sda"), nil, 0o644))

		err := Request{ImagePath: filepath.Join(dir, "image.raw"), Disk: "sda", UEFIDir: dir}.Validate(afero.NewOsFs(), dir)
		assert.ErrorContains(t, err, "is not a block device")
	})

	t.Run("rejects foreign paths", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fs, "/img", nil, 0o644))
		err := Request{ImagePath: "/img", Disk: "/tmp/sda", UEFIDir: "/"}.Validate(fs, "/dev")
		assert.ErrorContains(t, err, "is not a device name")
	})

	t.Run("image directory", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/images", 0o755))
		err := Request{ImagePath: "/images", Disk: "sda", UEFIDir: "/"}.Validate(fs, "/dev")
		assert.ErrorContains(t, err, "is a directory")
	})
}

func TestResolver(t *testing.T) {
	fs := afero.NewMemMapFs()
	lookPath := func(file string) (string, error) {
		if file == "mash-installer" {
			return "/usr/local/bin/mash-installer", nil
		}
		return "", errors.New("executable file not found in $PATH")
	}

	t.Run("falls back to PATH", func(t *testing.T) {
		r := NewResolver(fs, "/src/target/release/mash-installer", "mash-installer", "pkexec")
		r.LookPath = lookPath

		path, err := r.Installer()
		require.NoError(t, err)
		assert.Equal(t, "/usr/local/bin/mash-installer", path)

		_, err = r.Elevation()
		assert.ErrorContains(t, err, "pkexec")
	})

	t.Run("prefers local build", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, "/src/target/release/mash-installer", []byte("#!"), 0o755))
		r := NewResolver(fs, "/src/target/release/mash-installer", "mash-installer", "pkexec")
		r.LookPath = lookPath

		path, err := r.Installer()
		require.NoError(t, err)
		assert.Equal(t, "/src/target/release/mash-installer", path)
	})

	t.Run("not found anywhere", func(t *testing.T) {
		r := NewResolver(afero.NewMemMapFs(), "./missing", "nope", "pkexec")
		r.LookPath = lookPath
		_, err := r.Installer()
		assert.Error(t, err)
	})
}

func TestExitStatusNormal(t *testing.T) {
	assert.True(t, ExitStatus{}.Normal())
	assert.False(t, ExitStatus{Code: 1}.Normal())
	assert.False(t, ExitStatus{Code: -1, Signaled: true}.Normal())
	assert.False(t, exitStatusFrom(nil, errors.New("boom")).Normal())
}
