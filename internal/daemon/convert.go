package daemon

import (
	"splicer/internal/config"
	"splicer/internal/splice"
)

// TriggerConfig maps the [triggers] section onto coordinator settings.
func TriggerConfig(cfg *config.Config) splice.TriggerConfig {
	return splice.TriggerConfig{
		Periodic:          cfg.PeriodicEnabled(),
		ContentMatch:      cfg.ContentMatchEnabled(),
		Period:            cfg.Period(),
		LeadTime:          cfg.LeadTime(),
		AdDuration:        cfg.AdDuration(),
		DetectorReference: cfg.Triggers.DetectorReference,
	}
}

// SectionOptions maps the [signaling] section onto per-section constants.
func SectionOptions(cfg *config.Config) splice.SectionOptions {
	return splice.SectionOptions{
		Tier:            cfg.Signaling.Tier,
		UniqueProgramID: cfg.Signaling.UniqueProgramID,
		AutoReturn:      cfg.Signaling.AutoReturn,
		PTSOffset:       cfg.PTSOffset(),
	}
}
