package disks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRunner(out string, err error) Runner {
	return func(context.Context, string, ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func TestLister_List(t *testing.T) {
	t.Run("filters pseudo devices", func(t *testing.T) {
		l := NewLister("lsblk", nil).WithRunner(fixedRunner("sda 20G ModelX\nloop0 1G\nram0 512M\n", nil))

		got, err := l.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []Descriptor{{Name: "sda", Size: "20G", Model: "ModelX"}}, got)
	})

	t.Run("no disks placeholder", func(t *testing.T) {
		l := NewLister("lsblk", nil).WithRunner(fixedRunner("loop0 1G\n", nil))

		got, err := l.List(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].IsPlaceholder())
		assert.Equal(t, "No disks found", got[0].Label())
	})

	t.Run("failure is distinct from empty", func(t *testing.T) {
		l := NewLister("lsblk", nil).WithRunner(fixedRunner("", errors.New("exit status 32")))

		got, err := l.List(context.Background())
		assert.Error(t, err)
		assert.Nil(t, got)
	})

	t.Run("passes the fixed column set", func(t *testing.T) {
		var gotName string
		var gotArgs []string
		l := NewLister("", nil).WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotName, gotArgs = name, args
			return nil, nil
		})

		_, err := l.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "lsblk", gotName)
		assert.Equal(t, []string{"-d", "-n", "-o", "NAME,SIZE,MODEL"}, gotArgs)
	})

	t.Run("logs count", func(t *testing.T) {
		logChan := make(chan string, 1)
		l := NewLister("lsblk", logChan).WithRunner(fixedRunner("nvme0n1 1.8T Samsung SSD 990 PRO\n", nil))

		_, err := l.List(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Found 1 disk(s)", <-logChan)
	})
}

func TestParse(t *testing.T) {
	got := Parse([]byte("nvme0n1   1.8T Samsung SSD 990 PRO\nsdb 64G\n\nweird\n"))
	assert.Equal(t, []Descriptor{
		{Name: "nvme0n1", Size: "1.8T", Model: "Samsung SSD 990 PRO"},
		{Name: "sdb", Size: "64G", Model: "Unknown"},
	}, got)
}

func TestDescriptorLabel(t *testing.T) {
	assert.Equal(t, "sda (20G) - ModelX", Descriptor{Name: "sda", Size: "20G", Model: "ModelX"}.Label())
	assert.False(t, Descriptor{Name: "sda"}.IsPlaceholder())
}
