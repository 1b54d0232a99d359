package inhibit

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeObject answers Inhibit with a fixed reply.
type fakeObject struct {
	dbus.BusObject
	method string
	args   []interface{}
	reply  []interface{}
	err    error
}

func (o *fakeObject) Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	o.method = method
	o.args = args
	return &dbus.Call{Body: o.reply, Err: o.err}
}

func (o *fakeObject) CallWithContext(_ context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	return o.Call(method, flags, args...)
}

func TestInhibit(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	fd, err := unix.Dup(int(r.Fd()))
	require.NoError(t, err)

	obj := &fakeObject{reply: []interface{}{dbus.UnixFD(fd)}}
	f, err := inhibit(obj, "Writing image to sda")
	require.NoError(t, err)

	assert.Equal(t, "org.freedesktop.login1.Manager.Inhibit", obj.method)
	assert.Equal(t, []interface{}{What, Who, "Writing image to sda", "block"}, obj.args)

	lock := &Lock{file: f}
	assert.NoError(t, lock.Close())
	assert.NoError(t, lock.Close(), "second close is a no-op")
}

func TestInhibitRefused(t *testing.T) {
	obj := &fakeObject{err: errors.New("access denied")}
	_, err := inhibit(obj, "why")
	assert.ErrorContains(t, err, "logind refused inhibitor")
}
