package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "pkexec", cfg.ElevationTool)
	assert.Equal(t, "mash-installer", cfg.InstallerName)
	assert.Equal(t, "./target/release/mash-installer", cfg.LocalBuildPath)
	assert.Equal(t, "lsblk", cfg.DiskListCommand)
	assert.Equal(t, "/boot/efi", cfg.UEFIDir)
	assert.Equal(t, 500*time.Millisecond, cfg.HeartbeatInterval)
	assert.Zero(t, cfg.RunTimeout)
	assert.True(t, cfg.InhibitSleep)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("MASHFLASH_RUN_TIMEOUT", "90m")
	t.Setenv("MASHFLASH_ELEVATION_TOOL", "sudo")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 90*time.Minute, cfg.RunTimeout)
	assert.Equal(t, "sudo", cfg.ElevationTool)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), "/nonexistent/mashflash.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"empty elevation tool", func(c *Config) { c.ElevationTool = "" }, "elevation-tool"},
		{"empty installer", func(c *Config) { c.InstallerName = "" }, "installer-name"},
		{"zero heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }, "heartbeat-interval"},
		{"negative timeout", func(c *Config) { c.RunTimeout = -time.Second }, "run-timeout"},
		{"relative lock path", func(c *Config) { c.LockPath = "mash.lock" }, "lock-path"},
		{"empty history path", func(c *Config) { c.HistoryPath = "" }, "history-path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("lock disabled", func(t *testing.T) {
		cfg := Default()
		cfg.LockPath = ""
		assert.NoError(t, cfg.Validate())
	})
}
