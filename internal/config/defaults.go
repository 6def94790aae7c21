package config

const (
	defaultDataDir                     = "~/.local/share/frcvideos"
	defaultLogDir                      = "~/.local/share/frcvideos/logs"
	defaultVideoDir                    = "~/Videos/frc"
	defaultAPIBind                     = "127.0.0.1:7488"
	defaultPlayoffsType                = "double_elimination"
	defaultTimezone                    = "Local"
	defaultMaxStartTimeDiffSecStrong   = 60
	defaultMaxStartTimeDiffSecWeak     = 300
	defaultMinExpectedVideoDurationSec = 90
	defaultMaxExpectedVideoDurationSec = 600
	defaultFileNamePattern             = "yyyy-MM-dd HH-mm-ss"
	defaultRenameJobDelaySecs          = 300
	defaultMaxAssociationAttempts      = 10
	defaultScanIntervalSecs            = 60
	defaultMaxProbeFileSizeBytes       = 1<<31 - 1
	defaultJobsConcurrency             = 2
	defaultJobsPollIntervalSecs        = 2
	defaultJobsLockTimeoutSecs         = 240
	defaultTBABaseURL                  = "https://www.thebluealliance.com/api/v3"
	defaultTBACacheTTLSecs             = 30
	defaultTBARequestTimeoutSecs       = 15
	defaultNotifyRequestTimeout        = 10
	defaultLogFormat                   = "console"
	defaultLogLevel                    = "info"
	defaultLogRetentionDays            = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			VideoDir: defaultVideoDir,
			APIBind:  defaultAPIBind,
		},
		Event: Event{
			PlayoffsType: defaultPlayoffsType,
			Timezone:     defaultTimezone,
		},
		AutoRename: AutoRename{
			Enabled:                     false,
			MaxStartTimeDiffSecStrong:   defaultMaxStartTimeDiffSecStrong,
			MaxStartTimeDiffSecWeak:     defaultMaxStartTimeDiffSecWeak,
			MinExpectedVideoDurationSec: defaultMinExpectedVideoDurationSec,
			MaxExpectedVideoDurationSec: defaultMaxExpectedVideoDurationSec,
			FileNamePatterns:            []string{defaultFileNamePattern},
			RenameJobDelaySecs:          defaultRenameJobDelaySecs,
			MaxAssociationAttempts:      defaultMaxAssociationAttempts,
			ScanIntervalSecs:            defaultScanIntervalSecs,
			MaxProbeFileSizeBytes:       defaultMaxProbeFileSizeBytes,
		},
		Jobs: Jobs{
			Concurrency:      defaultJobsConcurrency,
			PollIntervalSecs: defaultJobsPollIntervalSecs,
			LockTimeoutSecs:  defaultJobsLockTimeoutSecs,
		},
		TBA: TBA{
			BaseURL:            defaultTBABaseURL,
			CacheTTLSecs:       defaultTBACacheTTLSecs,
			RequestTimeoutSecs: defaultTBARequestTimeoutSecs,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Rename:         true,
			Failures:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
