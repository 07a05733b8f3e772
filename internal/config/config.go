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

// Trigger mode names accepted in triggers.modes.
const (
	ModePeriodic = "periodic"
	ModeContent  = "content"
)

// MaxAdDurationSeconds is the longest break a 33-bit 90 kHz break_duration
// can express, in whole seconds.
const MaxAdDurationSeconds = (1<<33 - 1) / 90000

// Paths contains directory and socket configuration.
type Paths struct {
	LogDir     string `toml:"log_dir"`
	StateDir   string `toml:"state_dir"`
	SocketPath string `toml:"socket_path"`
}

// Signaling contains the constants written into every splice section.
type Signaling struct {
	PID                uint16 `toml:"pid"`
	Tier               uint16 `toml:"tier"`
	UniqueProgramID    uint16 `toml:"unique_program_id"`
	PTSOffsetMillis    int64  `toml:"pts_offset_ms"`
	AutoReturn         bool   `toml:"auto_return"`
	SpliceInOnShutdown bool   `toml:"splice_in_on_shutdown"`
}

// Triggers selects which trigger sources run and how breaks are sized.
type Triggers struct {
	Modes             []string `toml:"modes"`
	PeriodSeconds     int      `toml:"period_seconds"`
	LeadTimeMillis    int      `toml:"lead_time_ms"`
	AdDurationSeconds int      `toml:"ad_duration_seconds"`
	DetectorReference string   `toml:"detector_reference"`
	MatchBuffer       int      `toml:"match_buffer"`
}

// Output names the transport stream sink.
type Output struct {
	Target string `toml:"target"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	AdBreaks       bool   `toml:"ad_breaks"`
	Errors         bool   `toml:"errors"`
}

// API contains the optional HTTP status endpoint. An empty bind disables it.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for splicer.
//
// Configuration sections by subsystem:
//   - Paths: log, state and control socket locations
//   - Signaling: SCTE-35 section constants and shutdown policy
//   - Triggers: active trigger sources and break sizing
//   - Output: transport stream sink
//   - Notifications: ntfy push notification settings
//   - API: optional HTTP status endpoint
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Signaling     Signaling     `toml:"signaling"`
	Triggers      Triggers      `toml:"triggers"`
	Output        Output        `toml:"output"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("splicer.toml")
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
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir, filepath.Dir(c.Paths.SocketPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// EventLogPath returns the sqlite event log location.
func (c *Config) EventLogPath() string {
	return filepath.Join(c.Paths.StateDir, "events.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "splicer.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "splicer.pid")
}

// PeriodicEnabled reports whether the periodic trigger is configured.
func (c *Config) PeriodicEnabled() bool { return c.hasMode(ModePeriodic) }

// ContentMatchEnabled reports whether the content-match trigger is configured.
func (c *Config) ContentMatchEnabled() bool { return c.hasMode(ModeContent) }

func (c *Config) hasMode(mode string) bool {
	for _, m := range c.Triggers.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Period returns the periodic trigger interval.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Triggers.PeriodSeconds) * time.Second
}

// LeadTime returns how far ahead of the running time splice-outs are placed.
func (c *Config) LeadTime() time.Duration {
	return time.Duration(c.Triggers.LeadTimeMillis) * time.Millisecond
}

// AdDuration returns the configured ad break length.
func (c *Config) AdDuration() time.Duration {
	return time.Duration(c.Triggers.AdDurationSeconds) * time.Second
}

// PTSOffset returns the offset added to running time when writing pts_time.
func (c *Config) PTSOffset() time.Duration {
	return time.Duration(c.Signaling.PTSOffsetMillis) * time.Millisecond
}

// NotificationTimeout returns the ntfy request timeout.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
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

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
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
