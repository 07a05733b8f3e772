package config

const (
	defaultConfigPath        = "~/.config/splicer/config.toml"
	defaultLogDir            = "~/.local/share/splicer/logs"
	defaultStateDir          = "~/.local/share/splicer"
	defaultSocketName        = "splicer.sock"
	defaultSignalingPID      = 0x1F4
	defaultTier              = 0x0FFF
	defaultPeriodSeconds     = 60
	defaultLeadTimeMillis    = 5000
	defaultAdDurationSeconds = 30
	defaultMatchBuffer       = 16
	defaultOutputTarget      = "-"
	defaultNotifyTimeout     = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Signaling: Signaling{
			PID:        defaultSignalingPID,
			Tier:       defaultTier,
			AutoReturn: true,
		},
		Triggers: Triggers{
			Modes:             []string{ModePeriodic},
			PeriodSeconds:     defaultPeriodSeconds,
			LeadTimeMillis:    defaultLeadTimeMillis,
			AdDurationSeconds: defaultAdDurationSeconds,
			MatchBuffer:       defaultMatchBuffer,
		},
		Output: Output{
			Target: defaultOutputTarget,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			AdBreaks:       true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
