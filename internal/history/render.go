package history

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// WriteTable prints one line per run with relative times.
func WriteTable(w io.Writer, records []Record, now time.Time) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No installations recorded yet.")
		return err
	}

	if _, err := fmt.Fprintf(w, "%-8s  %-10s  %-9s  %-4s  %-10s  %-16s  %s\n",
		"ID", "DISK", "STATE", "EXIT", "DURATION", "STARTED", "IMAGE"); err != nil {
		return err
	}
	for _, rec := range records {
		state := rec.State
		if rec.DryRun {
			state += "*"
		}
		if _, err := fmt.Fprintf(w, "%-8s  %-10s  %-9s  %-4s  %-10s  %-16s  %s\n",
			shortID(rec.ID), rec.Disk, state, exitText(rec.ExitCode), duration(rec),
			humanize.RelTime(rec.StartedAt, now, "ago", "from now"), rec.ImagePath); err != nil {
			return err
		}
	}
	return nil
}

// WriteYAML prints records as a YAML sequence.
func WriteYAML(w io.Writer, records []Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return enc.Close()
}

// WriteDetail prints a single run with its full log.
func WriteDetail(w io.Writer, rec Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run:       %s\n", rec.ID)
	fmt.Fprintf(&b, "Image:     %s\n", rec.ImagePath)
	fmt.Fprintf(&b, "Disk:      %s\n", rec.Disk)
	fmt.Fprintf(&b, "UEFI dir:  %s\n", rec.UEFIDir)
	fmt.Fprintf(&b, "Dry run:   %t\n", rec.DryRun)
	fmt.Fprintf(&b, "State:     %s (exit %s)\n", rec.State, exitText(rec.ExitCode))
	fmt.Fprintf(&b, "Started:   %s\n", rec.StartedAt.Format(time.RFC1123))
	fmt.Fprintf(&b, "Duration:  %s\n", duration(rec))
	fmt.Fprintf(&b, "Summary:   %s\n\n", rec.Summary)
	b.WriteString(rec.Log)

	_, err := io.WriteString(w, b.String())
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func exitText(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

func duration(rec Record) string {
	if rec.StartedAt.IsZero() || rec.FinishedAt.IsZero() {
		return "-"
	}
	return rec.FinishedAt.Sub(rec.StartedAt).Round(time.Second).String()
}
