package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/driveslim/driveslim/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDataDir    = filepath.Join(home, ".driveslim")
	DefaultConfigPath = filepath.Join(DefaultDataDir, "config.json")
	DefaultAddr       = "127.0.0.1:7171"
)

const (
	DefaultMaxDepth   = 2
	DefaultMaxWorkers = 4
)

// Config is the persisted application configuration. RootPath is the synced
// drive folder to scan; it is empty until the user configures one.
type Config struct {
	RootPath       string   `json:"root_path"`
	DataDir        string   `json:"data_dir"`
	Addr           string   `json:"addr"`
	MaxDepth       int      `json:"default_max_depth"`
	UseConcurrency bool     `json:"default_use_concurrency"`
	MaxWorkers     int      `json:"default_max_workers"`
	ExcludeGlobs   []string `json:"exclude_globs,omitempty"`
	Path           string   `json:"-"`

	mu sync.Mutex
}

// Default returns a config populated with defaults, without a root path.
func Default() *Config {
	return &Config{
		DataDir:        DefaultDataDir,
		Addr:           DefaultAddr,
		MaxDepth:       DefaultMaxDepth,
		UseConcurrency: true,
		MaxWorkers:     DefaultMaxWorkers,
		Path:           DefaultConfigPath,
	}
}

// Load reads the config file at path. A missing file yields the defaults,
// persisted at that path on the next Save.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			cfg.Path = path
			return cfg, nil
		}
		return nil, fmt.Errorf("read config '%s': %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config '%s': %w", path, err)
	}
	cfg.Path = path

	return cfg, nil
}

func (c *Config) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := utils.EnsureParent(c.Path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.Path, data, 0o644)
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is required")
	}
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max workers must be >= 1")
	}
	// RootPath may be empty (configured later via the API), but when set it
	// must be an existing directory.
	if c.RootPath != "" && !utils.DirExists(c.RootPath) {
		return fmt.Errorf("root path '%s' is not a directory", c.RootPath)
	}
	return nil
}

// SetRootPath validates, updates and persists the scan root.
func (c *Config) SetRootPath(path string) error {
	resolved, err := utils.ResolvePath(path)
	if err != nil {
		return err
	}
	if !utils.DirExists(resolved) {
		return fmt.Errorf("root path '%s' is not a directory", resolved)
	}

	c.mu.Lock()
	c.RootPath = resolved
	c.mu.Unlock()

	return c.Save()
}

// GetRootPath returns the configured scan root, empty if unconfigured.
func (c *Config) GetRootPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.RootPath
}

// CacheDBPath is where the scan result cache lives.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "scans.db")
}
