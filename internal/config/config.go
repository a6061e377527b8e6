// Package config resolves the runtime configuration: where the record
// store lives, where VMs are installed, which binaries to invoke and
// how long to wait on them. Values come from built-in defaults, an
// optional YAML file and environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/dragon/internal/tools"
)

const (
	// EnvStateFile overrides the record store location.
	EnvStateFile = "DRAGON_STATE"
	// EnvInstallRoot overrides the VM install root.
	EnvInstallRoot = "DRAGON_INSTALL_ROOT"
	// EnvConfigFile points at an alternate config file.
	EnvConfigFile = "DRAGON_CONFIG"
)

// Config holds everything the command layer needs to assemble a
// working engine.
type Config struct {
	// StateFile is the path to the YAML record store.
	StateFile string `yaml:"state_file"`
	// InstallRoot is the directory VM filesystems are imported under.
	InstallRoot string `yaml:"install_root"`
	// ScratchDir holds export archives while a VM is materialized.
	// Empty means the system temp directory.
	ScratchDir string `yaml:"scratch_dir,omitempty"`
	// TerminalSettings is the Windows Terminal settings.json path.
	// Empty disables profile registration.
	TerminalSettings string `yaml:"terminal_settings,omitempty"`

	AzPath     string `yaml:"az_path"`
	DockerPath string `yaml:"docker_path"`
	WSLPath    string `yaml:"wsl_path"`

	RegistryTimeout    time.Duration `yaml:"registry_timeout"`
	MaterializeTimeout time.Duration `yaml:"materialize_timeout"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		StateFile:          filepath.Join(home, ".dockerwsl"),
		InstallRoot:        filepath.Join(home, "dragon", "vms"),
		AzPath:             "az",
		DockerPath:         "docker",
		WSLPath:            "wsl.exe",
		RegistryTimeout:    tools.DefaultRegistryTimeout,
		MaterializeTimeout: tools.DefaultMaterializeTimeout,
	}
}

// Load builds the effective configuration. path names an explicit
// config file; when empty, EnvConfigFile is consulted and then the
// default location, which is allowed to be absent.
func Load(path string) (*Config, error) {
	c := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigFile)
		explicit = path != ""
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".dragon.yaml")
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// default location is optional
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvStateFile); v != "" {
		c.StateFile = v
	}
	if v := os.Getenv(EnvInstallRoot); v != "" {
		c.InstallRoot = v
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks that the configuration is internally usable.
func (c *Config) Validate() error {
	if c.StateFile == "" {
		return fmt.Errorf("state_file must not be empty")
	}
	if c.InstallRoot == "" {
		return fmt.Errorf("install_root must not be empty")
	}
	if c.AzPath == "" || c.DockerPath == "" || c.WSLPath == "" {
		return fmt.Errorf("tool paths must not be empty")
	}
	if c.RegistryTimeout <= 0 {
		return fmt.Errorf("registry_timeout must be positive")
	}
	if c.MaterializeTimeout <= 0 {
		return fmt.Errorf("materialize_timeout must be positive")
	}
	return nil
}
