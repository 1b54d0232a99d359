// Package inhibit takes systemd-logind inhibitor locks so the machine does
// not suspend or power off while a disk is being written.
package inhibit

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	login1Dest = "org.freedesktop.login1"
	login1Path = "/org/freedesktop/login1"

	// What is blocked while a lock is held.
	What = "sleep:shutdown:idle"
	Who  = "mashflash"
)

// Lock is a held inhibitor. Closing it releases the lock.
type Lock struct {
	mu   sync.Mutex
	file *os.File
	conn *dbus.Conn
}

// Acquire takes a blocking inhibitor lock on the system bus. logind keeps
// the lock until the returned file descriptor is closed.
func Acquire(why string) (io.Closer, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	f, err := inhibit(conn.Object(login1Dest, login1Path), why)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Lock{file: f, conn: conn}, nil
}

func inhibit(obj dbus.BusObject, why string) (*os.File, error) {
	var fd dbus.UnixFD
	call := obj.Call(login1Dest+".Manager.Inhibit", 0, What, Who, why, "block")
	if call.Err != nil {
		return nil, fmt.Errorf("logind refused inhibitor: %w", call.Err)
	}
	if err := call.Store(&fd); err != nil {
		return nil, err
	}

	f := os.NewFile(uintptr(fd), "logind-inhibit")
	if f == nil {
		return nil, fmt.Errorf("failed to wrap inhibitor fd")
	}
	return f, nil
}

func (l *Lock) Close() error {
	l.mu.Lock()
	f, conn := l.file, l.conn
	l.file, l.conn = nil, nil
	l.mu.Unlock()

	if f == nil {
		return nil
	}
	err := f.Close()
	if conn != nil {
		conn.Close()
	}
	return err
}
