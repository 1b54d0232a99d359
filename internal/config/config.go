package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (MASHFLASH_RUN_TIMEOUT, ...).
const EnvPrefix = "MASHFLASH"

// Config holds all application configuration
type Config struct {
	// External collaborators
	ElevationTool   string `mapstructure:"elevation-tool" yaml:"elevation-tool"`
	InstallerName   string `mapstructure:"installer-name" yaml:"installer-name"`
	LocalBuildPath  string `mapstructure:"local-build-path" yaml:"local-build-path"`
	DiskListCommand string `mapstructure:"disk-list-command" yaml:"disk-list-command"`

	// Request defaults
	UEFIDir string `mapstructure:"uefi-dir" yaml:"uefi-dir"`
	DevDir  string `mapstructure:"dev-dir" yaml:"dev-dir"`

	// Supervision
	HeartbeatInterval time.Duration `mapstructure:"heartbeat-interval" yaml:"heartbeat-interval"`
	RunTimeout        time.Duration `mapstructure:"run-timeout" yaml:"run-timeout"`
	WaitDelay         time.Duration `mapstructure:"wait-delay" yaml:"wait-delay"`
	LockPath          string        `mapstructure:"lock-path" yaml:"lock-path"`
	InhibitSleep      bool          `mapstructure:"inhibit-sleep" yaml:"inhibit-sleep"`

	// Persistence
	HistoryPath string `mapstructure:"history-path" yaml:"history-path"`

	PackageBackend string `mapstructure:"package-backend" yaml:"package-backend"`
	LogLevel       string `mapstructure:"log-level" yaml:"log-level"`
}

// SetDefaults registers every key with its default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("elevation-tool", "pkexec")
	v.SetDefault("installer-name", "mash-installer")
	v.SetDefault("local-build-path", "./target/release/mash-installer")
	v.SetDefault("disk-list-command", "lsblk")
	v.SetDefault("uefi-dir", "/boot/efi")
	v.SetDefault("dev-dir", "/dev")
	v.SetDefault("heartbeat-interval", 500*time.Millisecond)
	v.SetDefault("run-timeout", time.Duration(0))
	v.SetDefault("wait-delay", 5*time.Second)
	v.SetDefault("lock-path", filepath.Join(os.TempDir(), "mashflash.lock"))
	v.SetDefault("inhibit-sleep", true)
	v.SetDefault("history-path", defaultHistoryPath())
	v.SetDefault("package-backend", "stub")
	v.SetDefault("log-level", "info")
}

// Load reads configuration from environment, config file, and defaults.
// An explicit configFile must exist; otherwise the search paths are optional.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("mashflash")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDir())
		// Missing file is fine, defaults and env still apply.
		_ = v.ReadInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration with no file or environment applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.ElevationTool == "" {
		return fmt.Errorf("elevation-tool cannot be empty")
	}
	if c.InstallerName == "" {
		return fmt.Errorf("installer-name cannot be empty")
	}
	if c.DiskListCommand == "" {
		return fmt.Errorf("disk-list-command cannot be empty")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat-interval must be positive")
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run-timeout must be non-negative")
	}
	if c.WaitDelay < 0 {
		return fmt.Errorf("wait-delay must be non-negative")
	}
	if c.LockPath != "" && !filepath.IsAbs(c.LockPath) {
		return fmt.Errorf("lock-path must be absolute, got %q", c.LockPath)
	}
	if c.HistoryPath == "" {
		return fmt.Errorf("history-path cannot be empty")
	}
	return nil
}

// DefaultDir is where the config file is searched for and written to.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "mashflash")
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "mashflash")
}

// DefaultFile is the config path used by "config init".
func DefaultFile() string {
	return filepath.Join(DefaultDir(), "mashflash.yaml")
}

func defaultHistoryPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "mashflash", "history.db")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state", "mashflash", "history.db")
}
