package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	pierrors "github.com/Aman-CERP/pathindex/internal/errors"
)

// Config is the complete pathindex configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Indexing IndexingConfig `yaml:"indexing" json:"indexing"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Daemon   DaemonConfig   `yaml:"daemon" json:"daemon"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	// Path is the database file. ":memory:" is accepted for tests.
	Path string `yaml:"path" json:"path"`
	// CacheMB sizes the SQLite page cache.
	CacheMB int `yaml:"cache_mb" json:"cache_mb"`
}

// IndexingConfig tunes scanning, batching and background refresh.
type IndexingConfig struct {
	// BatchSize is the chunk size used when replacing a folder's entries.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// StaleAfter is the age after which an indexed folder is refreshed.
	StaleAfter string `yaml:"stale_after" json:"stale_after"`

	// InterFolderDelay is the pause between folders in a background run.
	InterFolderDelay string `yaml:"inter_folder_delay" json:"inter_folder_delay"`

	// RescanInterval repeats background runs while serving. "0" disables.
	RescanInterval string `yaml:"rescan_interval" json:"rescan_interval"`

	// WatchDepth bounds recursive watch subscriptions.
	WatchDepth int `yaml:"watch_depth" json:"watch_depth"`

	// WatchDebounce coalesces bursts of change events.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`

	// IgnoredNames are directory or file names skipped by the scanner and
	// the change watcher. Names starting with "." are always skipped.
	IgnoredNames []string `yaml:"ignored_names" json:"ignored_names"`

	// SkipGitignore makes the scanner ignore .gitignore files.
	SkipGitignore bool `yaml:"skip_gitignore" json:"skip_gitignore"`

	// ScanWorkers is the number of concurrent directory readers per scan.
	ScanWorkers int `yaml:"scan_workers" json:"scan_workers"`
}

// SearchConfig tunes result ranking output.
type SearchConfig struct {
	MaxResults int `yaml:"max_results" json:"max_results"`
}

// DaemonConfig locates the editor-facing socket and its bookkeeping files.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	PIDPath    string `yaml:"pid_path" json:"pid_path"`
	LockPath   string `yaml:"lock_path" json:"lock_path"`
	// Timeout bounds a single client round-trip.
	Timeout string `yaml:"timeout" json:"timeout"`
}

// LoggingConfig mirrors logging.Config for the file-backed logger.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// defaultIgnoredNames are dependency caches and build outputs that never
// help path completion.
var defaultIgnoredNames = []string{
	"node_modules",
	"bower_components",
	"__pycache__",
	"vendor",
	"dist",
	"build",
	"target",
	"out",
	"coverage",
	".git",
	".svn",
	".hg",
	".idea",
	".vscode",
	".next",
	".venv",
	"venv",
}

// DataDir returns ~/.pathindex, the home of the database, socket and logs.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".pathindex")
	}
	return filepath.Join(home, ".pathindex")
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	dir := DataDir()
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Path:    filepath.Join(dir, "index.db"),
			CacheMB: 32,
		},
		Indexing: IndexingConfig{
			BatchSize:        1000,
			StaleAfter:       "24h",
			InterFolderDelay: "500ms",
			RescanInterval:   "1h",
			WatchDepth:       10,
			WatchDebounce:    "200ms",
			IgnoredNames:     append([]string(nil), defaultIgnoredNames...),
			ScanWorkers:      4,
		},
		Search: SearchConfig{
			MaxResults: 50,
		},
		Daemon: DaemonConfig{
			SocketPath: filepath.Join(dir, "daemon.sock"),
			PIDPath:    filepath.Join(dir, "daemon.pid"),
			LockPath:   filepath.Join(dir, "daemon.lock"),
			Timeout:    "30s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the user configuration file, following XDG:
//   - $XDG_CONFIG_HOME/pathindex/config.yaml
//   - ~/.config/pathindex/config.yaml
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pathindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "pathindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "pathindex", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load builds the effective configuration. Precedence, lowest first:
//  1. Defaults
//  2. User config (GetUserConfigPath)
//  3. explicitPath, when non-empty (it must exist)
//  4. Environment variables (PATHINDEX_*)
func Load(explicitPath string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, pierrors.New(pierrors.ErrCodeConfigNotFound,
				fmt.Sprintf("config file not found: %s", explicitPath), err)
		}
		if err := cfg.loadYAML(explicitPath); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return pierrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	mergeString(&c.Store.Path, other.Store.Path)
	mergeInt(&c.Store.CacheMB, other.Store.CacheMB)

	mergeInt(&c.Indexing.BatchSize, other.Indexing.BatchSize)
	mergeString(&c.Indexing.StaleAfter, other.Indexing.StaleAfter)
	mergeString(&c.Indexing.InterFolderDelay, other.Indexing.InterFolderDelay)
	mergeString(&c.Indexing.RescanInterval, other.Indexing.RescanInterval)
	mergeInt(&c.Indexing.WatchDepth, other.Indexing.WatchDepth)
	mergeString(&c.Indexing.WatchDebounce, other.Indexing.WatchDebounce)
	mergeInt(&c.Indexing.ScanWorkers, other.Indexing.ScanWorkers)
	if len(other.Indexing.IgnoredNames) > 0 {
		// Extend the defaults rather than replace them.
		c.Indexing.IgnoredNames = appendUnique(c.Indexing.IgnoredNames, other.Indexing.IgnoredNames...)
	}
	if other.Indexing.SkipGitignore {
		c.Indexing.SkipGitignore = true
	}

	mergeInt(&c.Search.MaxResults, other.Search.MaxResults)

	mergeString(&c.Daemon.SocketPath, other.Daemon.SocketPath)
	mergeString(&c.Daemon.PIDPath, other.Daemon.PIDPath)
	mergeString(&c.Daemon.LockPath, other.Daemon.LockPath)
	mergeString(&c.Daemon.Timeout, other.Daemon.Timeout)

	mergeString(&c.Logging.Level, other.Logging.Level)
	mergeInt(&c.Logging.MaxSizeMB, other.Logging.MaxSizeMB)
	mergeInt(&c.Logging.MaxFiles, other.Logging.MaxFiles)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func appendUnique(base []string, extra ...string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			base = append(base, s)
			seen[s] = true
		}
	}
	return base
}

// applyEnvOverrides applies PATHINDEX_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PATHINDEX_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("PATHINDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexing.BatchSize = n
		}
	}
	if v := os.Getenv("PATHINDEX_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("PATHINDEX_STALE_AFTER"); v != "" {
		c.Indexing.StaleAfter = v
	}
	if v := os.Getenv("PATHINDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PATHINDEX_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("PATHINDEX_SKIP_GITIGNORE"); v != "" {
		c.Indexing.SkipGitignore = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate returns a ERR_501_CONFIG_INVALID error describing the first
// invalid field.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return pierrors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	if c.Store.Path == "" {
		return invalid("store.path must not be empty")
	}
	if c.Indexing.BatchSize <= 0 {
		return invalid("indexing.batch_size must be positive, got %d", c.Indexing.BatchSize)
	}
	if c.Indexing.WatchDepth < 0 {
		return invalid("indexing.watch_depth must be non-negative, got %d", c.Indexing.WatchDepth)
	}
	if c.Indexing.ScanWorkers <= 0 {
		return invalid("indexing.scan_workers must be positive, got %d", c.Indexing.ScanWorkers)
	}
	if c.Search.MaxResults <= 0 {
		return invalid("search.max_results must be positive, got %d", c.Search.MaxResults)
	}

	for name, v := range map[string]string{
		"indexing.stale_after":        c.Indexing.StaleAfter,
		"indexing.inter_folder_delay": c.Indexing.InterFolderDelay,
		"indexing.rescan_interval":    c.Indexing.RescanInterval,
		"indexing.watch_debounce":     c.Indexing.WatchDebounce,
		"daemon.timeout":              c.Daemon.Timeout,
	} {
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return invalid("%s must be a non-negative duration, got %q", name, v)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// StaleAfter returns indexing.stale_after as a duration.
func (c *Config) StaleAfter() time.Duration { return mustDuration(c.Indexing.StaleAfter) }

// InterFolderDelay returns indexing.inter_folder_delay as a duration.
func (c *Config) InterFolderDelay() time.Duration { return mustDuration(c.Indexing.InterFolderDelay) }

// RescanInterval returns indexing.rescan_interval as a duration.
func (c *Config) RescanInterval() time.Duration { return mustDuration(c.Indexing.RescanInterval) }

// WatchDebounce returns indexing.watch_debounce as a duration.
func (c *Config) WatchDebounce() time.Duration { return mustDuration(c.Indexing.WatchDebounce) }

// DaemonTimeout returns daemon.timeout as a duration.
func (c *Config) DaemonTimeout() time.Duration { return mustDuration(c.Daemon.Timeout) }

// mustDuration parses a duration already checked by Validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// WriteYAML writes the configuration to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
