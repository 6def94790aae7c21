package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEvent()
	c.normalizeAutoRename()
	c.normalizeJobs()
	c.normalizeTBA()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.VideoDir, err = expandPath(strings.TrimSpace(c.Paths.VideoDir)); err != nil {
		return fmt.Errorf("paths.video_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("FRCVIDEOS_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeEvent() {
	c.Event.Key = strings.ToLower(strings.TrimSpace(c.Event.Key))
	c.Event.PlayoffsType = strings.TrimSpace(c.Event.PlayoffsType)
	if c.Event.PlayoffsType == "" {
		c.Event.PlayoffsType = defaultPlayoffsType
	}
	c.Event.Timezone = strings.TrimSpace(c.Event.Timezone)
	if c.Event.Timezone == "" {
		c.Event.Timezone = defaultTimezone
	}
}

func (c *Config) normalizeAutoRename() {
	patterns := make([]string, 0, len(c.AutoRename.FileNamePatterns))
	for _, pattern := range c.AutoRename.FileNamePatterns {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	if len(patterns) == 0 {
		patterns = []string{defaultFileNamePattern}
	}
	c.AutoRename.FileNamePatterns = patterns
	if c.AutoRename.ScanIntervalSecs <= 0 {
		c.AutoRename.ScanIntervalSecs = defaultScanIntervalSecs
	}
	if c.AutoRename.MaxProbeFileSizeBytes <= 0 {
		c.AutoRename.MaxProbeFileSizeBytes = defaultMaxProbeFileSizeBytes
	}
}

func (c *Config) normalizeJobs() {
	if c.Jobs.Concurrency <= 0 {
		c.Jobs.Concurrency = defaultJobsConcurrency
	}
	if c.Jobs.PollIntervalSecs <= 0 {
		c.Jobs.PollIntervalSecs = defaultJobsPollIntervalSecs
	}
	if c.Jobs.LockTimeoutSecs <= 0 {
		c.Jobs.LockTimeoutSecs = defaultJobsLockTimeoutSecs
	}
}

func (c *Config) normalizeTBA() {
	c.TBA.APIKey = strings.TrimSpace(c.TBA.APIKey)
	if c.TBA.APIKey == "" {
		if value, ok := os.LookupEnv("TBA_API_KEY"); ok {
			c.TBA.APIKey = strings.TrimSpace(value)
		}
	}
	c.TBA.BaseURL = strings.TrimRight(strings.TrimSpace(c.TBA.BaseURL), "/")
	if c.TBA.BaseURL == "" {
		c.TBA.BaseURL = defaultTBABaseURL
	}
	if c.TBA.CacheTTLSecs < 0 {
		c.TBA.CacheTTLSecs = 0
	}
	if c.TBA.RequestTimeoutSecs <= 0 {
		c.TBA.RequestTimeoutSecs = defaultTBARequestTimeoutSecs
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
