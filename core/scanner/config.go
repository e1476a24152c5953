package scanner

import "fmt"

// Config holds proximity scan parameters.
type Config struct {
	// IntervalSeconds is the scan period.
	IntervalSeconds int `json:"interval_seconds"`
	// ProximityKm is the maximum truck-to-truck distance for a candidate pair.
	ProximityKm float64 `json:"proximity_km"`
	// HubRadiusKm is the maximum distance to the rendezvous hub.
	HubRadiusKm float64 `json:"hub_radius_km"`
	// TTLMinutes is the opportunity lifetime.
	TTLMinutes int `json:"ttl_minutes"`
	// MeetOffsetMinutes estimates how far in the future the trucks can meet.
	MeetOffsetMinutes int `json:"meet_offset_minutes"`
	// CO2PerKm is the emission factor used when a truck declares none.
	CO2PerKm float64 `json:"co2_per_km"`
}

// SetDefaults applies the standard scan parameters.
func (c *Config) SetDefaults() {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 120
	}
	if c.ProximityKm == 0 {
		c.ProximityKm = 10
	}
	if c.HubRadiusKm == 0 {
		c.HubRadiusKm = 10
	}
	if c.TTLMinutes == 0 {
		c.TTLMinutes = 60
	}
	if c.MeetOffsetMinutes == 0 {
		c.MeetOffsetMinutes = 30
	}
	if c.CO2PerKm == 0 {
		c.CO2PerKm = 0.5
	}
}

// Validate checks the parameters are usable.
func (c Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("scanner: interval_seconds must be positive")
	}
	if c.ProximityKm <= 0 {
		return fmt.Errorf("scanner: proximity_km must be positive")
	}
	if c.TTLMinutes <= 0 {
		return fmt.Errorf("scanner: ttl_minutes must be positive")
	}
	return nil
}
