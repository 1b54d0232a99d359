package osinfo

import (
	"bufio"
	"fmt"
	"runtime"
	"strings"

	"github.com/mashlinux/mashflash/internal/errdefs"
	"github.com/spf13/afero"
)

var osReleasePaths = []string{"/etc/os-release", "/usr/lib/os-release"}

type OSInfo struct {
	ID           string
	IDLike       []string
	VersionID    string
	Version      string
	PrettyName   string
	Architecture string
}

var getOsFunc = func() string { return runtime.GOOS }
var getArchFunc = func() string { return runtime.GOARCH }

// Get identifies the running Linux distribution from os-release.
func Get(fs afero.Fs) (*OSInfo, error) {
	if goos := getOsFunc(); goos != "linux" {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeNotLinux, fmt.Sprintf("Only linux is supported, but I found %s", goos))
	}

	info := &OSInfo{Architecture: getArchFunc()}
	for _, path := range osReleasePaths {
		if err := readOSRelease(fs, path, info); err == nil {
			return info, nil
		}
	}

	return nil, errdefs.NewCustomError(errdefs.ErrTypeGeneric, "Failed to detect Linux distribution")
}

// IsFedoraFamily reports whether dnf is the native package manager.
func (i *OSInfo) IsFedoraFamily() bool {
	if i.ID == "fedora" {
		return true
	}
	for _, like := range i.IDLike {
		if like == "fedora" || like == "rhel" {
			return true
		}
	}
	return false
}

func (i *OSInfo) String() string {
	if i.PrettyName != "" {
		return fmt.Sprintf("%s (%s)", i.PrettyName, i.Architecture)
	}
	return fmt.Sprintf("%s %s (%s)", i.ID, i.VersionID, i.Architecture)
}

func readOSRelease(fs afero.Fs, path string, info *OSInfo) error {
	file, err := fs.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := parts[0]
		value := strings.Trim(parts[1], "\"'")

		switch key {
		case "ID":
			info.ID = value
		case "ID_LIKE":
			info.IDLike = strings.Fields(value)
		case "VERSION_ID":
			info.VersionID = value
		case "VERSION":
			info.Version = value
		case "PRETTY_NAME":
			info.PrettyName = value
		}
	}

	return scanner.Err()
}
