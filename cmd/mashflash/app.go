package main

import (
	"fmt"

	"github.com/mashlinux/mashflash/internal/config"
	"github.com/mashlinux/mashflash/internal/disks"
	"github.com/mashlinux/mashflash/internal/flash"
	"github.com/mashlinux/mashflash/internal/history"
	"github.com/mashlinux/mashflash/internal/inhibit"
	"github.com/mashlinux/mashflash/internal/log"
	"github.com/mashlinux/mashflash/internal/preflight"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mashflash",
	Short: "MASH installer front end",
	Long: "Flash a MASH disk image onto a target disk through the privileged mash-installer.\n" +
		"Without a subcommand the interactive installer is started.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runInteractive,
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := v.BindPFlag("log-level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
		return fmt.Errorf("failed to bind log-level flag: %w", err)
	}

	loaded, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	if err := log.SetLevel(loaded.LogLevel); err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Debug("configuration loaded", "file", v.ConfigFileUsed(), "installer", loaded.InstallerName)
	cfg = loaded
	return nil
}

// app bundles the collaborators built from the loaded configuration.
type app struct {
	fs       afero.Fs
	resolver *flash.Resolver
	history  *history.Store
}

func newApp() *app {
	fs := afero.NewOsFs()
	return &app{
		fs:       fs,
		resolver: flash.NewResolver(fs, cfg.LocalBuildPath, cfg.InstallerName, cfg.ElevationTool),
	}
}

// openHistory opens the run history. Failure only disables recording.
func (a *app) openHistory() {
	store, err := history.Open(cfg.HistoryPath)
	if err != nil {
		log.Warnf("Run history disabled: %v", err)
		return
	}
	a.history = store
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Warnf("Failed to close run history: %v", err)
		}
	}
}

// newOrchestrator builds the run controller. processGroup isolates the
// installer in its own process group; see flash.ExecSpawner.
func (a *app) newOrchestrator(observer flash.Observer, processGroup bool) *flash.Orchestrator {
	opts := flash.Options{
		Fs:                a.fs,
		DevDir:            cfg.DevDir,
		Resolver:          a.resolver,
		Spawner:           flash.ExecSpawner{WaitDelay: cfg.WaitDelay, ProcessGroup: processGroup},
		HeartbeatInterval: cfg.HeartbeatInterval,
		RunTimeout:        cfg.RunTimeout,
		LockPath:          cfg.LockPath,
		Observer:          observer,
	}
	if cfg.InhibitSleep {
		opts.Inhibit = inhibit.Acquire
	}
	if a.history != nil {
		opts.Recorder = a.history
	}
	return flash.NewOrchestrator(opts)
}

func (a *app) newLister(logChan chan<- string) *disks.Lister {
	return disks.NewLister(cfg.DiskListCommand, logChan)
}

func (a *app) newDetector(logChan chan<- string) *preflight.Detector {
	return preflight.NewDetector(a.fs, a.resolver, cfg.DiskListCommand, logChan)
}
