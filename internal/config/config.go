// Package config loads and validates the taskmill configuration file.
// Validation failures here are the only errors allowed to terminate the
// process; everything past startup is contained at task or cycle scope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ProjectWorkspace string         `yaml:"project_workspace"`
	Sources          []SourceConfig `yaml:"sources"`
	Settings         Settings       `yaml:"settings"`
	Executor         ExecutorConfig `yaml:"executor"`
	Logging          LoggingConfig  `yaml:"logging"`
}

// SourceConfig describes one watched directory. Path is the pending
// directory; archive, failed, and results live beneath it so the
// non-recursive scanner never sees them.
type SourceConfig struct {
	ID          string `yaml:"id"`
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

type Settings struct {
	WatchEnabled      *bool    `yaml:"watch_enabled"`
	WatchDebounceMs   int      `yaml:"watch_debounce_ms"`
	WatchPatterns     []string `yaml:"watch_patterns"`
	ScanIntervalSec   int      `yaml:"scan_interval_sec"`
	MaxAttempts       int      `yaml:"max_attempts"`
	EnableFingerprint *bool    `yaml:"enable_fingerprint"`
	LockTimeoutMs     int      `yaml:"lock_timeout_ms"`
	LockPollMs        int      `yaml:"lock_poll_ms"`
	BatchLimit        int      `yaml:"batch_limit"`
}

// ExecutorConfig names the external command that executes a task's
// specification. The spec file path is appended as the final argument.
type ExecutorConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Workdir string   `yaml:"workdir"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads, defaults, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Settings.WatchDebounceMs <= 0 {
		c.Settings.WatchDebounceMs = 500
	}
	if len(c.Settings.WatchPatterns) == 0 {
		c.Settings.WatchPatterns = []string{"*.md"}
	}
	if c.Settings.ScanIntervalSec <= 0 {
		c.Settings.ScanIntervalSec = 30
	}
	if c.Settings.MaxAttempts <= 0 {
		c.Settings.MaxAttempts = 1
	}
	if c.Settings.LockTimeoutMs <= 0 {
		c.Settings.LockTimeoutMs = 2000
	}
	if c.Settings.LockPollMs <= 0 {
		c.Settings.LockPollMs = 100
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.ProjectWorkspace == "" {
		return fmt.Errorf("config: project_workspace is required")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("config: at least one source is required")
	}
	seen := make(map[string]bool)
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("config: sources[%d]: id is required", i)
		}
		if src.Path == "" {
			return fmt.Errorf("config: source %q: path is required", src.ID)
		}
		if seen[src.ID] {
			return fmt.Errorf("config: duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
	}
	if c.Executor.Command == "" {
		return fmt.Errorf("config: executor.command is required")
	}
	return nil
}

// Source returns the configured source with the given id, or nil.
func (c *Config) Source(id string) *SourceConfig {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i]
		}
	}
	return nil
}

func (s Settings) WatchIsEnabled() bool {
	return s.WatchEnabled == nil || *s.WatchEnabled
}

func (s Settings) FingerprintEnabled() bool {
	return s.EnableFingerprint == nil || *s.EnableFingerprint
}

func (s Settings) DebounceWindow() time.Duration {
	return time.Duration(s.WatchDebounceMs) * time.Millisecond
}

func (s Settings) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutMs) * time.Millisecond
}

func (s Settings) LockPollInterval() time.Duration {
	return time.Duration(s.LockPollMs) * time.Millisecond
}

func (s Settings) ScanInterval() time.Duration {
	return time.Duration(s.ScanIntervalSec) * time.Second
}

// Derived workspace paths.

func (c *Config) StatePath() string {
	return filepath.Join(c.ProjectWorkspace, "state", "queue.json")
}

func (c *Config) StateLockPath() string {
	return filepath.Join(c.ProjectWorkspace, "locks", "queue.lock")
}

func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.ProjectWorkspace, "locks", "daemon.lock")
}

func (c *Config) LogDir() string {
	return filepath.Join(c.ProjectWorkspace, "logs")
}

// Derived per-source directories.

func (s SourceConfig) PendingDir() string {
	return s.Path
}

func (s SourceConfig) ArchiveDir() string {
	return filepath.Join(s.Path, "archive")
}

func (s SourceConfig) FailedDir() string {
	return filepath.Join(s.Path, "failed")
}

func (s SourceConfig) ResultsDir() string {
	return filepath.Join(s.Path, "results")
}
