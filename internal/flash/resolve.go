package flash

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/spf13/afero"
)

// LookPathFunc matches exec.LookPath.
type LookPathFunc func(file string) (string, error)

// Resolver locates the installer binary and the elevation tool.
type Resolver struct {
	Fs             afero.Fs
	LookPath       LookPathFunc
	LocalBuildPath string
	InstallerName  string
	ElevationTool  string
}

func NewResolver(fs afero.Fs, localBuildPath, installerName, elevationTool string) *Resolver {
	return &Resolver{
		Fs:             fs,
		LookPath:       exec.LookPath,
		LocalBuildPath: localBuildPath,
		InstallerName:  installerName,
		ElevationTool:  elevationTool,
	}
}

// Installer prefers the local build output and falls back to PATH.
func (r *Resolver) Installer() (string, error) {
	if r.LocalBuildPath != "" {
		if info, err := r.Fs.Stat(r.LocalBuildPath); err == nil && !info.IsDir() {
			if abs, err := filepath.Abs(r.LocalBuildPath); err == nil {
				return abs, nil
			}
			return r.LocalBuildPath, nil
		}
	}

	path, err := r.LookPath(r.InstallerName)
	if err != nil {
		return "", fmt.Errorf("installer %q not found at %s or in PATH: %w", r.InstallerName, r.LocalBuildPath, err)
	}
	return path, nil
}

func (r *Resolver) Elevation() (string, error) {
	path, err := r.LookPath(r.ElevationTool)
	if err != nil {
		return "", fmt.Errorf("privilege elevation tool %q not found in PATH: %w", r.ElevationTool, err)
	}
	return path, nil
}
