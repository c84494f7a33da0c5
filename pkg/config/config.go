package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/core-coin/yvm/pkg/fetch"
	"github.com/core-coin/yvm/pkg/httpclient"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding the config file
const (
	EnvDataDir     = "YVM_DATA_DIR"
	EnvReleasesURL = "YVM_RELEASES_URL"
)

// Config is the yvm configuration, read from config.yml
type Config struct {
	// DataDir is the root holding installed versions
	DataDir string `yaml:"data_dir,omitempty"`
	// ReleasesURL is the download root of release artifacts
	ReleasesURL string `yaml:"releases_url,omitempty"`
	// Timeout bounds a single artifact download
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// NixPatch forces the NixOS linker patch on or off. Nil means detect.
	NixPatch *bool `yaml:"nix_patch,omitempty"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields and applies environment overrides
func (c *Config) SetDefaults() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvReleasesURL); v != "" {
		c.ReleasesURL = v
	}

	if c.DataDir == "" {
		c.DataDir = ResolveDataDir()
	}
	c.DataDir = expandPath(c.DataDir)
	if c.ReleasesURL == "" {
		c.ReleasesURL = fetch.DefaultReleasesURL
	}
	if c.Timeout <= 0 {
		c.Timeout = httpclient.DefaultTimeout
	}
}

// Load reads and parses a yvm config file from the given path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file: %s", path)
	}

	// Apply defaults
	cfg.SetDefaults()

	return &cfg, nil
}

// LoadOrDefault loads the config at path. An empty path means DefaultPath,
// which may be absent; an explicitly given path must exist.
func LoadOrDefault(path string) (*Config, string, error) {
	if path != "" {
		cfg, err := Load(path)
		return cfg, path, err
	}

	path = DefaultPath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), "", nil
		}
		return nil, "", errors.Wrapf(err, "failed to stat config file: %s", path)
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/yvm/config.yml
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "yvm", "config.yml")
}

// ResolveDataDir picks the data root: ~/.yvm when it exists, otherwise
// $XDG_DATA_HOME/yvm when the XDG data directory exists, otherwise ~/.yvm.
func ResolveDataDir() string {
	return resolveDataDir(xdg.Home, xdg.DataHome)
}

func resolveDataDir(home, dataHome string) string {
	homeDir := filepath.Join(home, ".yvm")
	if dirExists(homeDir) {
		return homeDir
	}
	if dataHome != "" && dirExists(dataHome) {
		return filepath.Join(dataHome, "yvm")
	}
	return homeDir
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// expandPath expands ~ and environment variables in a path
func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		path = filepath.Join(xdg.Home, path[2:])
	}
	return os.ExpandEnv(path)
}
