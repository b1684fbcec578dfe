package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	OutputDir  string `toml:"output_dir"`
	LogDir     string `toml:"log_dir"`
}

// Encoding contains per-task defaults for search and encode behavior.
type Encoding struct {
	Encoder       string  `toml:"encoder"`
	Mode          string  `toml:"mode"`
	TargetVMAF    float64 `toml:"target_vmaf"`
	MaxCRF        int     `toml:"max_crf"`
	PoolMethod    string  `toml:"vmaf_pool"`
	VMAFThreads   int     `toml:"vmaf_threads"`
	VMAFSubsample int     `toml:"vmaf_subsample"`
	PixelFormat   string  `toml:"pix_fmt"`
	SceneSplitMin float64 `toml:"scene_split_min"`
	SampleEvery   string  `toml:"sample_every"`

	// Presets and Params are keyed by encoder name and passed through
	// to ffmpeg uninterpreted.
	Presets map[string]string `toml:"presets"`
	Params  map[string]string `toml:"params"`
}

// Scheduler contains queue processing limits and timing.
type Scheduler struct {
	MaxConcurrentTasks int `toml:"max_concurrent_tasks"`
	ChunkWorkers       int `toml:"chunk_workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	MinFreeDiskGiB     int `toml:"min_free_disk_gib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Encoding  Encoding  `toml:"encoding"`
	Scheduler Scheduler `toml:"scheduler"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the canonical config file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "quenc", "config.toml"), nil
}

// Load reads configuration from path (or the default location when path
// is empty), applies defaults for unset fields, and validates the
// result. A missing file yields the defaults.
func Load(path string) (*Config, string, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, "", err
		}
		resolved = defaultPath
	}
	resolved = ExpandPath(resolved)

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults apply.
	default:
		return nil, resolved, fmt.Errorf("read %s: %w", resolved, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

// ExpandPath resolves a leading ~ against the user's home directory.
func ExpandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
		}
	}
	return trimmed
}

func (c *Config) normalize() {
	c.Paths.StagingDir = ExpandPath(c.Paths.StagingDir)
	c.Paths.OutputDir = ExpandPath(c.Paths.OutputDir)
	c.Paths.LogDir = ExpandPath(c.Paths.LogDir)
	c.Encoding.Encoder = strings.TrimSpace(c.Encoding.Encoder)
	c.Encoding.Mode = strings.ToLower(strings.TrimSpace(c.Encoding.Mode))
	c.Encoding.PoolMethod = strings.ToLower(strings.TrimSpace(c.Encoding.PoolMethod))
}

// EnsureDirectories creates the staging, output, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SampleInterval parses the sample_every setting as a duration.
func (c *Config) SampleInterval() time.Duration {
	d, err := time.ParseDuration(c.Encoding.SampleEvery)
	if err != nil || d <= 0 {
		return defaultSampleInterval
	}
	return d
}

// PresetFor returns the configured preset for an encoder, falling back
// to the built-in default.
func (c *Config) PresetFor(encoder string) string {
	if preset, ok := c.Encoding.Presets[encoder]; ok && strings.TrimSpace(preset) != "" {
		return preset
	}
	return defaultPresets[encoder]
}

// ParamsFor returns the configured extra parameter string for an
// encoder, falling back to the built-in default.
func (c *Config) ParamsFor(encoder string) string {
	if params, ok := c.Encoding.Params[encoder]; ok {
		return params
	}
	return defaultParams[encoder]
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "quencd.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "quencd.lock")
}

// QueueDBPath returns the sqlite database location backing the queue.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.LogDir, "queue.db")
}
