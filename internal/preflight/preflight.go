package preflight

import (
	"context"
	"fmt"
	"slices"

	"github.com/godbus/dbus/v5"
	"github.com/mashlinux/mashflash/internal/flash"
	"github.com/mashlinux/mashflash/internal/osinfo"
	"github.com/spf13/afero"
)

const polkitBusName = "org.freedesktop.PolicyKit1"

type CheckStatus int

const (
	StatusMissing CheckStatus = iota
	StatusOK
	StatusWarning
)

func (s CheckStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	default:
		return "missing"
	}
}

type Check struct {
	Name        string
	Status      CheckStatus
	Detail      string
	Description string
	Required    bool
}

// Failed reports a required check that did not pass.
func (c Check) Failed() bool {
	return c.Required && c.Status != StatusOK
}

// BusNameChecker reports whether a D-Bus system service is running or
// activatable.
type BusNameChecker func(ctx context.Context, name string) (bool, error)

type Detector struct {
	fs          afero.Fs
	resolver    *flash.Resolver
	diskCommand string
	busName     BusNameChecker
	logChan     chan<- string
}

// NewDetector builds a Detector. logChan may be nil.
func NewDetector(fs afero.Fs, resolver *flash.Resolver, diskCommand string, logChan chan<- string) *Detector {
	return &Detector{
		fs:          fs,
		resolver:    resolver,
		diskCommand: diskCommand,
		busName:     SystemBusHasName,
		logChan:     logChan,
	}
}

// WithBusNameChecker replaces the D-Bus name lookup.
func (d *Detector) WithBusNameChecker(fn BusNameChecker) *Detector {
	d.busName = fn
	return d
}

func (d *Detector) log(message string) {
	if d.logChan != nil {
		d.logChan <- message
	}
}

// Run performs every check. It never fails as a whole; problems are
// reported per check.
func (d *Detector) Run(ctx context.Context) []Check {
	checks := []Check{
		d.checkOS(),
		d.checkCommand(d.resolver.ElevationTool, "Privilege elevation tool"),
		d.checkCommand(d.diskCommand, "Block device listing tool"),
		d.checkInstaller(),
		d.checkPolkit(ctx),
	}

	for _, c := range checks {
		d.log(fmt.Sprintf("%s: %s", c.Name, c.Status))
	}
	return checks
}

func (d *Detector) checkOS() Check {
	c := Check{Name: "linux", Description: "Linux host", Required: true}
	info, err := osinfo.Get(d.fs)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.Status = StatusOK
	c.Detail = info.String()
	return c
}

func (d *Detector) checkCommand(name, description string) Check {
	c := Check{Name: name, Description: description, Required: true}
	path, err := d.resolver.LookPath(name)
	if err != nil {
		c.Detail = "not found in PATH"
		return c
	}
	c.Status = StatusOK
	c.Detail = path
	return c
}

func (d *Detector) checkInstaller() Check {
	c := Check{Name: d.resolver.InstallerName, Description: "Installer binary", Required: true}
	path, err := d.resolver.Installer()
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.Status = StatusOK
	c.Detail = path
	return c
}

// polkit is only needed by pkexec, and its absence usually means no agent
// will prompt for a password, so it is a warning.
func (d *Detector) checkPolkit(ctx context.Context) Check {
	c := Check{Name: "polkit", Description: "PolicyKit authentication service"}
	ok, err := d.busName(ctx, polkitBusName)
	switch {
	case err != nil:
		c.Status = StatusWarning
		c.Detail = err.Error()
	case !ok:
		c.Status = StatusWarning
		c.Detail = polkitBusName + " is not available on the system bus"
	default:
		c.Status = StatusOK
		c.Detail = polkitBusName
	}
	return c
}

// HasFailures reports whether any required check failed.
func HasFailures(checks []Check) bool {
	return slices.ContainsFunc(checks, Check.Failed)
}

// SystemBusHasName asks the system bus whether name has an owner or can be
// activated.
func SystemBusHasName(ctx context.Context, name string) (bool, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return false, fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	bus := conn.BusObject()

	var owned bool
	if err := bus.CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned); err != nil {
		return false, fmt.Errorf("NameHasOwner: %w", err)
	}
	if owned {
		return true, nil
	}

	var activatable []string
	if err := bus.CallWithContext(ctx, "org.freedesktop.DBus.ListActivatableNames", 0).Store(&activatable); err != nil {
		return false, fmt.Errorf("ListActivatableNames: %w", err)
	}
	return slices.Contains(activatable, name), nil
}
