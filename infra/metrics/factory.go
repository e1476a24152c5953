package metrics

import (
	"fmt"

	coremetrics "github.com/freightpool/absorb/core/metrics"
)

// NewSink builds the metrics sink selected by cfg. The "multi" sink combines
// Prometheus and InfluxDB; Influx falls back to a nop sink when unreachable.
func NewSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	switch cfg.Sink {
	case "", "nop":
		return coremetrics.NopSink{}, nil
	case "prometheus":
		return NewPromSink(cfg)
	case "influx":
		return NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket), nil
	case "multi":
		prom, err := NewPromSink(cfg)
		if err != nil {
			return nil, err
		}
		influx := NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		return NewMultiSink(prom, influx), nil
	default:
		return nil, fmt.Errorf("metrics: unknown sink %q", cfg.Sink)
	}
}
