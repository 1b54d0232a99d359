package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mashlinux/mashflash/internal/config"
	"github.com/mashlinux/mashflash/internal/disks"
	"github.com/mashlinux/mashflash/internal/history"
	"github.com/mashlinux/mashflash/internal/log"
	"github.com/mashlinux/mashflash/internal/osinfo"
	"github.com/mashlinux/mashflash/internal/pkgmanager"
	"github.com/mashlinux/mashflash/internal/preflight"
	"github.com/mashlinux/mashflash/internal/tui"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run:   runVersion,
}

var disksCmd = &cobra.Command{
	Use:   "disks",
	Short: "List candidate target disks",
	Args:  cobra.NoArgs,
	RunE:  runDisks,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that this system can run the installer",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past installations",
	Long:  "List recorded installations, or show one run and its full log when a run ID (or prefix) is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

var pkgCmd = &cobra.Command{
	Use:   "pkg",
	Short: "Package backend operations",
}

var pkgUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Refresh package metadata",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := pkgmanager.NewBridge(cfg.PackageBackend, nil)
		if err != nil {
			return err
		}
		if err := pkgmanager.Check(bridge.Update(cmd.Context()), "update"); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Package metadata updated")
		return nil
	},
}

var pkgInstallCmd = &cobra.Command{
	Use:   "install <package>...",
	Short: "Install packages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bridge, err := pkgmanager.NewBridge(cfg.PackageBackend, nil)
		if err != nil {
			return err
		}
		if err := pkgmanager.Check(bridge.Install(cmd.Context(), args), "install"); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Installed %d package(s)\n", len(args))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the mashflash configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to a file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), tui.Banner())
	fmt.Fprintf(cmd.OutOrStdout(), "mashflash %s\n", Version)
}

func runDisks(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")

	found, err := newApp().newLister(nil).List(cmd.Context())
	if err != nil {
		return err
	}
	return writeDisks(cmd.OutOrStdout(), found, format)
}

func writeDisks(w io.Writer, found []disks.Descriptor, format string) error {
	switch format {
	case "yaml":
		var usable []disks.Descriptor
		for _, d := range found {
			if !d.IsPlaceholder() {
				usable = append(usable, d)
			}
		}
		if usable == nil {
			usable = []disks.Descriptor{}
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(usable); err != nil {
			return fmt.Errorf("failed to encode disks: %w", err)
		}
		return enc.Close()
	case "table":
		for _, d := range found {
			fmt.Fprintln(w, d.Label())
		}
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	a := newApp()

	if info, err := osinfo.Get(a.fs); err == nil {
		fmt.Fprintf(out, "System: %s\n\n", info)
	}

	checks := a.newDetector(nil).Run(cmd.Context())
	writeChecks(out, checks)

	if preflight.HasFailures(checks) {
		return &exitError{code: 1, err: errors.New("system is not ready to run the installer")}
	}
	return nil
}

func writeChecks(w io.Writer, checks []preflight.Check) {
	for _, c := range checks {
		mark := styles.Success.Render("✓")
		switch {
		case c.Failed():
			mark = styles.Error.Render("✗")
		case c.Status != preflight.StatusOK:
			mark = styles.Warning.Render("⚠")
		}
		fmt.Fprintf(w, "%s %-28s %s\n", mark, c.Description, c.Detail)
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("output")
	out := cmd.OutOrStdout()

	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("Failed to close run history: %v", err)
		}
	}()

	if len(args) == 1 {
		rec, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if format == "yaml" {
			return history.WriteYAML(out, []history.Record{rec})
		}
		return history.WriteDetail(out, rec)
	}

	records, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	switch format {
	case "yaml":
		return history.WriteYAML(out, records)
	case "table":
		return history.WriteTable(out, records, time.Now())
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path, _ := cmd.Flags().GetString("path")
	if path == "" {
		path = config.DefaultFile()
	}

	logChan := make(chan string, 10)
	deployer := config.NewConfigDeployer(afero.NewOsFs(), logChan)
	result, err := deployer.Deploy(path, cfg, force)
	close(logChan)
	for msg := range logChan {
		log.Info(msg)
	}
	if err != nil {
		return err
	}

	if result.BackupPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Backed up previous config to %s\n", result.BackupPath)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", result.Path)
	return nil
}
