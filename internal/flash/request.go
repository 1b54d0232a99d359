package flash

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mashlinux/mashflash/internal/errdefs"
	"github.com/spf13/afero"
)

// Request describes one flash of an image onto a target disk.
type Request struct {
	ImagePath string
	Disk      string
	UEFIDir   string
	DryRun    bool
}

// Validate checks that every field is set and refers to something that
// exists. devDir is the directory holding block device nodes ("/dev").
func (r Request) Validate(fs afero.Fs, devDir string) error {
	if strings.TrimSpace(r.ImagePath) == "" {
		return errdefs.NewCustomError(errdefs.ErrTypeValidation, "Please select a disk image file.")
	}

	info, err := fs.Stat(r.ImagePath)
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeValidation, "The selected image file does not exist.")
	}
	if info.IsDir() {
		return errdefs.NewCustomError(errdefs.ErrTypeValidation, "The selected image is a directory, not a disk image file.")
	}

	if strings.TrimSpace(r.Disk) == "" {
		return errdefs.NewCustomError(errdefs.ErrTypeValidation, "Please select a target disk.")
	}
	device := r.DevicePath(devDir)
	if name := filepath.Base(device); filepath.Dir(device) != filepath.Clean(devDir) || name == "." || name == ".." {
		return errdefs.NewCustomError(errdefs.ErrTypeValidation, fmt.Sprintf("Target disk %q is not a device name.", r.Disk))
	}
	disk, err := fs.Stat(device)
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeValidation, fmt.Sprintf("Target disk %s does not exist.", device))
	}
	// In-memory filesystems cannot hold device nodes.
	if _, onDisk := fs.(*afero.OsFs); onDisk && disk.Mode()&os.ModeDevice == 0 {
		return errdefs.NewCustomError(errdefs.ErrTypeValidation, fmt.Sprintf("Target disk %s is not a block device.", device))
	}

	if strings.TrimSpace(r.UEFIDir) == "" {
		return errdefs.NewCustomError(errdefs.ErrTypeValidation, "Please specify the UEFI directory.")
	}
	uefi, err := fs.Stat(r.UEFIDir)
	if err != nil || !uefi.IsDir() {
		return errdefs.NewCustomError(errdefs.ErrTypeValidation, fmt.Sprintf("UEFI directory %s does not exist.", r.UEFIDir))
	}

	return nil
}

// DevicePath returns the cleaned device node for r.Disk, accepting either a
// bare name ("sda") or an absolute path ("/dev/sda").
func (r Request) DevicePath(devDir string) string {
	if filepath.IsAbs(r.Disk) {
		return filepath.Clean(r.Disk)
	}
	return filepath.Join(devDir, r.Disk)
}

// Args builds the installer's argument vector.
func (r Request) Args() []string {
	args := []string{
		"flash",
		"--image", r.ImagePath,
		"--disk", r.Disk,
		"--uefi-dir", r.UEFIDir,
		"--auto-unmount",
		"--yes-i-know",
	}
	if r.DryRun {
		args = append(args, "--dry-run")
	}
	return args
}
