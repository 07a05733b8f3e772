package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSignaling(); err != nil {
		return err
	}
	if err := c.validateTriggers(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Bind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind: invalid address %q: %w", c.API.Bind, err)
	}
	return nil
}

func (c *Config) validateSignaling() error {
	if c.Signaling.PID < 0x0010 || c.Signaling.PID > 0x1FFE {
		return fmt.Errorf("signaling.pid must be between 16 and 8190, got %d", c.Signaling.PID)
	}
	if c.Signaling.Tier > 0x0FFF {
		return fmt.Errorf("signaling.tier must fit in 12 bits, got %d", c.Signaling.Tier)
	}
	return nil
}

func (c *Config) validateTriggers() error {
	for _, mode := range c.Triggers.Modes {
		switch mode {
		case ModePeriodic, ModeContent:
		default:
			return fmt.Errorf("triggers.modes: unsupported mode %q (want %q or %q)", mode, ModePeriodic, ModeContent)
		}
	}
	if c.PeriodicEnabled() && c.Triggers.PeriodSeconds <= 0 {
		return errors.New("triggers.period_seconds must be positive when the periodic trigger is enabled")
	}
	if c.Triggers.LeadTimeMillis < 0 {
		return errors.New("triggers.lead_time_ms must be >= 0")
	}
	if c.Triggers.AdDurationSeconds < 0 {
		return errors.New("triggers.ad_duration_seconds must be >= 0")
	}
	if c.Triggers.AdDurationSeconds > MaxAdDurationSeconds {
		return fmt.Errorf("triggers.ad_duration_seconds must be <= %d (33-bit break_duration)", MaxAdDurationSeconds)
	}
	return nil
}

func (c *Config) validateOutput() error {
	target := c.Output.Target
	if rest, ok := strings.CutPrefix(target, "udp://"); ok {
		if _, _, err := net.SplitHostPort(rest); err != nil {
			return fmt.Errorf("output.target: invalid udp address %q: %w", rest, err)
		}
		return nil
	}
	if strings.Contains(target, "://") {
		return fmt.Errorf("output.target: unsupported scheme in %q (want udp://host:port, a file path, or -)", target)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
