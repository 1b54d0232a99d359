package history

import "time"

// Schema creates the runs table. Times are unix milliseconds; zero means
// unset.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    image_path TEXT NOT NULL,
    disk TEXT NOT NULL,
    uefi_dir TEXT NOT NULL,
    dry_run INTEGER NOT NULL DEFAULT 0,
    state TEXT NOT NULL CHECK(state IN ('completed', 'failed', 'cancelled')),
    exit_code INTEGER,
    summary TEXT NOT NULL,
    log TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Record is one finished run.
type Record struct {
	ID         string    `yaml:"id"`
	ImagePath  string    `yaml:"image"`
	Disk       string    `yaml:"disk"`
	UEFIDir    string    `yaml:"uefi-dir"`
	DryRun     bool      `yaml:"dry-run"`
	State      string    `yaml:"state"`
	ExitCode   *int      `yaml:"exit-code,omitempty"`
	Summary    string    `yaml:"summary"`
	Log        string    `yaml:"log,omitempty"`
	StartedAt  time.Time `yaml:"started-at"`
	FinishedAt time.Time `yaml:"finished-at"`
}
