package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/mashlinux/mashflash/internal/log"
)

var Version = "dev"

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/mashflash/mashflash.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	flashCmd.Flags().String("image", "", "Path to the disk image")
	flashCmd.Flags().String("disk", "", "Target disk name, e.g. sda or nvme0n1")
	flashCmd.Flags().String("uefi-dir", "", "UEFI directory (default from config)")
	flashCmd.Flags().Bool("dry-run", false, "Ask the installer to report what it would do without writing")

	disksCmd.Flags().StringP("output", "o", "table", "Output format (table, yaml)")

	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list")
	historyCmd.Flags().StringP("output", "o", "table", "Output format (table, yaml)")

	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file (a backup is kept)")
	configInitCmd.Flags().String("path", "", "Where to write the config file")

	// Add subcommands
	pkgCmd.AddCommand(pkgUpdateCmd, pkgInstallCmd)
	configCmd.AddCommand(configInitCmd)

	// Add commands to root
	rootCmd.AddCommand(versionCmd, flashCmd, disksCmd, doctorCmd, historyCmd, pkgCmd, configCmd)
}

func main() {
	if os.Geteuid() == 0 {
		log.Warn("Running as root; the installer is normally elevated through the configured elevation tool.")
	}

	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", exit.err)
			}
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// exitError ends the program with a specific status. A nil err exits
// silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }
