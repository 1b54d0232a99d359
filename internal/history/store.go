package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mashlinux/mashflash/internal/flash"
	"github.com/mashlinux/mashflash/internal/log"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Store keeps finished runs in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates the database and its parent directory if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	log.Debugf("History database ready at %s", path)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a terminal snapshot. Snapshots that have not finished are
// ignored.
func (s *Store) Record(ctx context.Context, snap flash.Snapshot) error {
	if !snap.State.IsTerminal() {
		return nil
	}

	var exitCode sql.NullInt64
	if snap.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*snap.ExitCode), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, image_path, disk, uefi_dir, dry_run, state, exit_code, summary, log, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.ID, snap.Request.ImagePath, snap.Request.Disk, snap.Request.UEFIDir, snap.Request.DryRun,
		snap.State.String(), exitCode, snap.Summary(), FormatLog(snap.Entries),
		toMillis(snap.StartedAt), toMillis(snap.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", snap.ID, err)
	}

	log.Debugf("Recorded run %s (%s)", snap.ID, snap.State)
	return nil
}

// List returns the most recent runs first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id, image_path, disk, uefi_dir, dry_run, state, exit_code, summary, '', started_at, finished_at
		FROM runs ORDER BY started_at DESC, id
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Get returns one run including its log. id may be a unique prefix.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_path, disk, uefi_dir, dry_run, state, exit_code, summary, log, started_at, finished_at
		FROM runs WHERE id LIKE ? || '%' ESCAPE '\' LIMIT 2
	`, escapeLike(id))
	if err != nil {
		return Record{}, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	defer rows.Close()

	var found []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return Record{}, err
		}
		found = append(found, rec)
	}
	if err := rows.Err(); err != nil {
		return Record{}, err
	}

	switch len(found) {
	case 0:
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return found[0], nil
	default:
		return Record{}, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var exitCode sql.NullInt64
	var started, finished int64

	if err := row.Scan(&rec.ID, &rec.ImagePath, &rec.Disk, &rec.UEFIDir, &rec.DryRun,
		&rec.State, &exitCode, &rec.Summary, &rec.Log, &started, &finished); err != nil {
		return Record{}, fmt.Errorf("failed to scan run: %w", err)
	}

	if exitCode.Valid {
		code := int(exitCode.Int64)
		rec.ExitCode = &code
	}
	rec.StartedAt = fromMillis(started)
	rec.FinishedAt = fromMillis(finished)
	return rec, nil
}

// FormatLog renders entries one per line as "[15:04:05] level message".
func FormatLog(entries []flash.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %-7s %s\n", e.Time.Format("15:04:05"), e.Severity, e.Message)
	}
	return b.String()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
