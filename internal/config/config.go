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

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	VideoDir string `toml:"video_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Event identifies the competition currently being recorded.
type Event struct {
	Key          string `toml:"key"`
	PlayoffsType string `toml:"playoffs_type"`
	Timezone     string `toml:"timezone"`
}

// AutoRename contains the defaults for the auto-rename matcher. Values stored
// in the settings table take precedence at runtime.
type AutoRename struct {
	Enabled                     bool     `toml:"enabled"`
	MaxStartTimeDiffSecStrong   int      `toml:"max_start_time_diff_sec_strong"`
	MaxStartTimeDiffSecWeak     int      `toml:"max_start_time_diff_sec_weak"`
	MinExpectedVideoDurationSec int      `toml:"min_expected_video_duration_secs"`
	MaxExpectedVideoDurationSec int      `toml:"max_expected_video_duration_secs"`
	FileNamePatterns            []string `toml:"file_name_patterns"`
	RenameJobDelaySecs          int      `toml:"rename_job_delay_secs"`
	MaxAssociationAttempts      int      `toml:"max_association_attempts"`
	ScanIntervalSecs            int      `toml:"scan_interval_secs"`
	MaxProbeFileSizeBytes       int64    `toml:"max_probe_file_size_bytes"`
	FFprobeBinary               string   `toml:"ffprobe_binary"`
}

// Jobs contains configuration for the durable job queue runner.
type Jobs struct {
	Concurrency      int `toml:"concurrency"`
	PollIntervalSecs int `toml:"poll_interval_secs"`
	LockTimeoutSecs  int `toml:"lock_timeout_secs"`
}

// TBA contains configuration for The Blue Alliance API.
type TBA struct {
	APIKey             string `toml:"api_key"`
	BaseURL            string `toml:"base_url"`
	CacheTTLSecs       int    `toml:"cache_ttl_secs"`
	RequestTimeoutSecs int    `toml:"request_timeout_secs"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Rename         bool   `toml:"rename"`
	Failures       bool   `toml:"failures"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for frcvideos.
//
// Configuration sections by subsystem:
//   - Paths: directories and API bind address
//   - Event: active competition and bracket format
//   - AutoRename: matcher thresholds and scan cadence
//   - Jobs: durable job queue worker settings
//   - TBA: The Blue Alliance match list source
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Event         Event         `toml:"event"`
	AutoRename    AutoRename    `toml:"auto_rename"`
	Jobs          Jobs          `toml:"jobs"`
	TBA           TBA           `toml:"tba"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/frcvideos/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("frcvideos.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// VideoDir is created on a best-effort basis so the daemon can start before
// the recording share is mounted.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.VideoDir) != "" {
		_ = os.MkdirAll(c.Paths.VideoDir, 0o755)
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "frcvideos.db")
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	if binary := strings.TrimSpace(c.AutoRename.FFprobeBinary); binary != "" {
		return binary
	}
	return "ffprobe"
}

// Location resolves the event timezone used when parsing recording timestamps.
func (c *Config) Location() *time.Location {
	name := strings.TrimSpace(c.Event.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// ScanInterval returns the delay between matching passes.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.AutoRename.ScanIntervalSecs) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
