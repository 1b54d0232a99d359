package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const fileHeader = "# mashflash configuration\n# Every key can be overridden with a MASHFLASH_* environment variable.\n\n"

type ConfigDeployer struct {
	fs      afero.Fs
	logChan chan<- string
	now     func() time.Time
}

type DeploymentResult struct {
	Path       string
	BackupPath string
	Deployed   bool
	Error      error
}

func NewConfigDeployer(fs afero.Fs, logChan chan<- string) *ConfigDeployer {
	return &ConfigDeployer{
		fs:      fs,
		logChan: logChan,
		now:     time.Now,
	}
}

func (cd *ConfigDeployer) log(message string) {
	if cd.logChan != nil {
		cd.logChan <- message
	}
}

// Deploy writes cfg to path as YAML. An existing file is left alone unless
// overwrite is set, in which case it is first copied to a timestamped backup.
func (cd *ConfigDeployer) Deploy(path string, cfg *Config, overwrite bool) (DeploymentResult, error) {
	result := DeploymentResult{Path: path}

	if err := cd.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		result.Error = fmt.Errorf("failed to create config directory: %w", err)
		return result, result.Error
	}

	if _, err := cd.fs.Stat(path); err == nil {
		if !overwrite {
			result.Error = fmt.Errorf("config already exists at %s (use --force to replace it)", path)
			return result, result.Error
		}

		cd.log("Found existing configuration")

		existingData, err := afero.ReadFile(cd.fs, path)
		if err != nil {
			result.Error = fmt.Errorf("failed to read existing config: %w", err)
			return result, result.Error
		}

		timestamp := cd.now().Format("2006-01-02_15-04-05")
		result.BackupPath = path + ".backup." + timestamp
		if err := afero.WriteFile(cd.fs, result.BackupPath, existingData, 0644); err != nil {
			result.Error = fmt.Errorf("failed to create backup: %w", err)
			return result, result.Error
		}
		cd.log(fmt.Sprintf("Backed up existing config to %s", result.BackupPath))
	} else if !os.IsNotExist(err) {
		result.Error = fmt.Errorf("failed to stat config: %w", err)
		return result, result.Error
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		result.Error = fmt.Errorf("failed to encode config: %w", err)
		return result, result.Error
	}

	if err := afero.WriteFile(cd.fs, path, append([]byte(fileHeader), body...), 0644); err != nil {
		result.Error = fmt.Errorf("failed to write config: %w", err)
		return result, result.Error
	}

	result.Deployed = true
	cd.log(fmt.Sprintf("Successfully wrote configuration to %s", path))
	return result, nil
}
