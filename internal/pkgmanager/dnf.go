package pkgmanager

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type DNFBridge struct {
	logChan chan<- string
	run     Runner
}

func NewDNFBridge(logChan chan<- string) *DNFBridge {
	return &DNFBridge{
		logChan: logChan,
		run:     combinedOutput,
	}
}

func (d *DNFBridge) Update(ctx context.Context) Status {
	d.log("Updating DNF package lists...")
	if output, err := d.run(ctx, "dnf", "makecache", "--refresh", "-y"); err != nil {
		d.log(fmt.Sprintf("Error updating dnf: %s", strings.TrimSpace(string(output))))
		return statusFromError(err)
	}
	d.log("Package lists updated")
	return StatusOK
}

func (d *DNFBridge) Install(ctx context.Context, names []string) Status {
	if err := ValidateNames(names); err != nil {
		d.log(err.Error())
		return StatusInvalidInput
	}
	if len(names) == 0 {
		return StatusOK
	}

	d.log(fmt.Sprintf("Installing %d packages...", len(names)))
	args := append([]string{"install", "-y", "--"}, names...)
	if output, err := d.run(ctx, "dnf", args...); err != nil {
		d.log(fmt.Sprintf("Error installing packages: %s", strings.TrimSpace(string(output))))
		return statusFromError(err)
	}
	d.log("Packages installed successfully")
	return StatusOK
}

func statusFromError(err error) Status {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		// dnf exits 1 for unknown packages and other user errors.
		return StatusInvalidInput
	}
	return StatusBackendFailure
}

func (d *DNFBridge) log(message string) {
	if d.logChan != nil {
		d.logChan <- message
	}
}
