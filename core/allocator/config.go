package allocator

import "fmt"

// Config holds allocation policy parameters. The relay thresholds are
// configurable because their values are operator policy, not invariants.
type Config struct {
	// LongHaulKm is the route distance above which the relay rule demands an
	// experienced driver.
	LongHaulKm float64 `json:"long_haul_km"`
	// ExperienceKm is the historical cumulative distance separating
	// experienced drivers from the rest.
	ExperienceKm float64 `json:"experience_km"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.LongHaulKm == 0 {
		c.LongHaulKm = 300
	}
	if c.ExperienceKm == 0 {
		c.ExperienceKm = 500
	}
}

// Validate checks the thresholds are usable.
func (c Config) Validate() error {
	if c.LongHaulKm <= 0 {
		return fmt.Errorf("allocator: long_haul_km must be positive")
	}
	if c.ExperienceKm <= 0 {
		return fmt.Errorf("allocator: experience_km must be positive")
	}
	return nil
}
