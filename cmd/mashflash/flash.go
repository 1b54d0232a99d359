package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/mashlinux/mashflash/internal/flash"
	"github.com/mashlinux/mashflash/internal/log"
	"github.com/mashlinux/mashflash/internal/tui"
	"github.com/spf13/cobra"
)

// exitCancelled follows the shell convention for SIGINT.
const exitCancelled = 130

var flashCmd = &cobra.Command{
	Use:   "flash",
	Short: "Flash an image onto a disk without the TUI",
	Long: "Validate the request, ask for confirmation twice, then run the installer\n" +
		"through the elevation tool and stream its output.",
	Args: cobra.NoArgs,
	RunE: runFlash,
}

func runFlash(cmd *cobra.Command, args []string) error {
	image, _ := cmd.Flags().GetString("image")
	disk, _ := cmd.Flags().GetString("disk")
	uefiDir, _ := cmd.Flags().GetString("uefi-dir")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if uefiDir == "" {
		uefiDir = cfg.UEFIDir
	}

	a := newApp()
	a.openHistory()
	defer a.close()

	out := cmd.OutOrStdout()
	// Stay in the terminal's process group so pkexec can fall back to its
	// textual agent.
	orch := a.newOrchestrator(printEvents(out), false)

	req := flash.Request{ImagePath: image, Disk: disk, UEFIDir: uefiDir, DryRun: dryRun}
	if err := orch.Submit(req); err != nil {
		return err
	}

	stdin := bufio.NewReader(cmd.InOrStdin())
	decision, err := orch.RequestConfirmation(func(stage flash.ConfirmStage, title, message string) bool {
		return confirm(out, stdin, title, message)
	})
	if err != nil {
		return err
	}
	if decision != flash.DecisionAccepted {
		return &exitError{code: exitCancelled}
	}

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	if _, err := orch.Launch(ctx); err != nil {
		return err
	}

	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)
	go handleInterrupts(ctx, out, orch, interrupts)

	snap, err := orch.Wait(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintln(out, snapshotStyle(snap).Render(snap.Summary()))
	return exitFor(snap)
}

// handleInterrupts warns on the first interrupt and cancels on the second.
// SIGTERM cancels straight away.
func handleInterrupts(ctx context.Context, out io.Writer, orch *flash.Orchestrator, interrupts <-chan os.Signal) {
	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-interrupts:
			if sig == os.Interrupt && !warned {
				warned = true
				fmt.Fprintln(out, styles.Warning.Render(flash.CancelWarning))
				fmt.Fprintln(out, "Press Ctrl+C again to cancel.")
				continue
			}
			if orch.Cancel() {
				log.Warn("Cancelling installation, waiting for the installer to exit")
			}
		}
	}
}

func exitFor(snap flash.Snapshot) error {
	switch snap.State {
	case flash.StateCompleted:
		return nil
	case flash.StateCancelled:
		return &exitError{code: exitCancelled}
	default:
		code := 1
		if snap.ExitCode != nil && *snap.ExitCode > 0 {
			code = *snap.ExitCode
		}
		return &exitError{code: code}
	}
}

// confirm asks a yes/no question; anything but y or yes is a no.
func confirm(out io.Writer, in *bufio.Reader, title, message string) bool {
	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Error.Bold(true).Render(title))
	fmt.Fprintln(out, message)
	fmt.Fprint(out, "Continue? (y/N): ")

	response, err := in.ReadString('\n')
	if err != nil && response == "" {
		fmt.Fprintf(out, "\nError reading input: %v\n", err)
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func printEvents(out io.Writer) flash.Observer {
	return func(ev flash.Event) {
		if ev.Kind != flash.EventLogEntry {
			return
		}
		fmt.Fprintf(out, "[%s] %s\n", ev.Entry.Time.Format("15:04:05"), severityStyle(ev.Entry.Severity).Render(ev.Entry.Message))
	}
}

var styles = tui.NewStyles(tui.MashTheme())

func severityStyle(sev flash.Severity) lipgloss.Style {
	return styles.ForSeverity(sev)
}

func snapshotStyle(snap flash.Snapshot) lipgloss.Style {
	switch snap.State {
	case flash.StateCompleted:
		return styles.Success.Bold(true)
	case flash.StateCancelled:
		return styles.Warning.Bold(true)
	default:
		return styles.Error.Bold(true)
	}
}
