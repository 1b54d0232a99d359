package pkgmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/mashlinux/mashflash/internal/errdefs"
)

// Status is the integer result of a package operation. Zero is success.
type Status int

const (
	StatusOK Status = iota
	// StatusUnimplemented is what the stub backend always returns.
	StatusUnimplemented
	StatusInvalidInput
	StatusBackendFailure
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnimplemented:
		return "unimplemented"
	case StatusInvalidInput:
		return "invalid input"
	default:
		return fmt.Sprintf("backend failure (%d)", int(s))
	}
}

// Bridge is the package backend. Implementations may be swapped without
// callers changing.
type Bridge interface {
	Update(ctx context.Context) Status
	Install(ctx context.Context, names []string) Status
}

// NewBridge selects a backend by its config name.
func NewBridge(backend string, logChan chan<- string) (Bridge, error) {
	switch backend {
	case "", "stub":
		return StubBridge{}, nil
	case "dnf":
		return NewDNFBridge(logChan), nil
	default:
		return nil, errdefs.NewCustomError(errdefs.ErrTypeGeneric, fmt.Sprintf("unsupported package backend: %s", backend))
	}
}

// Check turns a nonzero status into an error naming the operation.
func Check(status Status, op string) error {
	if status == StatusOK {
		return nil
	}
	return fmt.Errorf("package backend error during %s: %s", op, status)
}

// ValidateNames rejects names a backend could not pass on safely.
func ValidateNames(names []string) error {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("empty package name")
		}
		if strings.ContainsRune(name, 0) {
			return fmt.Errorf("package name contains NUL: %q", name)
		}
		if strings.HasPrefix(name, "-") {
			return fmt.Errorf("package name looks like an option: %q", name)
		}
	}
	return nil
}

// StubBridge stands in where no real backend is available.
type StubBridge struct{}

func (StubBridge) Update(context.Context) Status { return StatusUnimplemented }

func (StubBridge) Install(_ context.Context, names []string) Status {
	if ValidateNames(names) != nil {
		return StatusInvalidInput
	}
	return StatusUnimplemented
}
