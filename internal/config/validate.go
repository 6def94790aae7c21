package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"frcvideos/internal/match"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEvent(); err != nil {
		return err
	}
	if err := c.validateAutoRename(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEvent() error {
	if c.Event.Key != "" && !match.ValidEventKey(c.Event.Key) {
		return fmt.Errorf("event.key %q must look like 2023gadal (year followed by event code)", c.Event.Key)
	}
	if _, err := match.ParsePlayoffsType(c.Event.PlayoffsType); err != nil {
		return fmt.Errorf("event.playoffs_type: %w", err)
	}
	if tz := c.Event.Timezone; tz != "" && !strings.EqualFold(tz, "local") {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("event.timezone: %w", err)
		}
	}
	return nil
}

func (c *Config) validateAutoRename() error {
	ar := c.AutoRename
	if ar.MaxStartTimeDiffSecStrong < 0 {
		return errors.New("auto_rename.max_start_time_diff_sec_strong must be >= 0")
	}
	if ar.MaxStartTimeDiffSecWeak < ar.MaxStartTimeDiffSecStrong {
		return errors.New("auto_rename.max_start_time_diff_sec_weak must be >= auto_rename.max_start_time_diff_sec_strong")
	}
	if ar.MinExpectedVideoDurationSec < 0 {
		return errors.New("auto_rename.min_expected_video_duration_secs must be >= 0")
	}
	if ar.MaxExpectedVideoDurationSec < ar.MinExpectedVideoDurationSec {
		return errors.New("auto_rename.max_expected_video_duration_secs must be >= auto_rename.min_expected_video_duration_secs")
	}
	if ar.RenameJobDelaySecs < 0 {
		return errors.New("auto_rename.rename_job_delay_secs must be >= 0")
	}
	if ar.MaxAssociationAttempts < 1 {
		return errors.New("auto_rename.max_association_attempts must be >= 1")
	}
	return nil
}

func (c *Config) validateJobs() error {
	return ensurePositiveMap(map[string]int{
		"jobs.concurrency":               c.Jobs.Concurrency,
		"jobs.poll_interval_secs":        c.Jobs.PollIntervalSecs,
		"jobs.lock_timeout_secs":         c.Jobs.LockTimeoutSecs,
		"tba.request_timeout_secs":       c.TBA.RequestTimeoutSecs,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
		"auto_rename.scan_interval_secs": c.AutoRename.ScanIntervalSecs,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
