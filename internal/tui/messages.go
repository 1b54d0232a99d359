package tui

import (
	"github.com/mashlinux/mashflash/internal/disks"
	"github.com/mashlinux/mashflash/internal/flash"
	"github.com/mashlinux/mashflash/internal/preflight"
)

type logMsg struct {
	message string
}

type disksListedMsg struct {
	disks []disks.Descriptor
	err   error
}

type preflightCompleteMsg struct {
	checks []preflight.Check
}

type flashEventMsg struct {
	event flash.Event
}

type launchResultMsg struct {
	runID string
	err   error
}
