package metrics

import "fmt"

// Config selects and configures the metrics sink.
type Config struct {
	// Sink selects the backend: "nop", "prometheus", "influx" or "multi".
	Sink           string `json:"sink"`
	PrometheusPort int    `json:"prometheus_port"`
	InfluxURL      string `json:"influx_url"`
	InfluxToken    string `json:"influx_token"`
	InfluxOrg      string `json:"influx_org"`
	InfluxBucket   string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Sink == "" {
		c.Sink = "nop"
	}
	if c.PrometheusPort == 0 {
		c.PrometheusPort = 2112
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Sink {
	case "nop", "prometheus":
	case "influx", "multi":
		if c.InfluxURL == "" {
			return fmt.Errorf("metrics: influx_url is required for sink %q", c.Sink)
		}
	default:
		return fmt.Errorf("metrics: unknown sink %q", c.Sink)
	}
	return nil
}
