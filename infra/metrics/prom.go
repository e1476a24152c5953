package metrics

import (
	coremetrics "github.com/freightpool/absorb/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records absorption events in Prometheus metrics.
type PromSink struct {
	scanCycles    *prometheus.CounterVec
	pairsChecked  prometheus.Counter
	opportunities prometheus.Counter
	transfers     *prometheus.CounterVec
	allocations   *prometheus.CounterVec
	carbonSaved   prometheus.Counter
	scanDuration  prometheus.Histogram
}

// NewPromSink registers absorption metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	scanCycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absorb_scan_cycles_total",
		Help: "Total number of proximity scan cycles",
	}, []string{"outcome"})
	pairsChecked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "absorb_pairs_checked_total",
		Help: "Total number of truck pairs evaluated",
	})
	opportunities := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "absorb_opportunities_total",
		Help: "Total number of absorption opportunities detected",
	})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absorb_transfers_total",
		Help: "Total number of transfer state changes",
	}, []string{"status"})
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absorb_allocations_total",
		Help: "Total number of allocation passes",
	}, []string{"operator_id"})
	carbonSaved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "absorb_carbon_saved_kg_total",
		Help: "Cumulative carbon savings from completed transfers",
	})
	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "absorb_scan_duration_seconds",
		Help:    "Duration of proximity scan cycles",
		Buckets: prometheus.DefBuckets,
	})

	if err := reg.Register(scanCycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			scanCycles = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(pairsChecked); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			pairsChecked = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(opportunities); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			opportunities = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(transfers); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transfers = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(allocations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			allocations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(carbonSaved); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			carbonSaved = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(scanDuration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			scanDuration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		scanCycles:    scanCycles,
		pairsChecked:  pairsChecked,
		opportunities: opportunities,
		transfers:     transfers,
		allocations:   allocations,
		carbonSaved:   carbonSaved,
		scanDuration:  scanDuration,
	}, nil
}

// RecordScanCycle increments scan cycle counters.
func (s *PromSink) RecordScanCycle(ev coremetrics.ScanCycleEvent) error {
	outcome := "ok"
	if ev.Error != "" {
		outcome = "error"
	}
	s.scanCycles.WithLabelValues(outcome).Inc()
	s.pairsChecked.Add(float64(ev.PairsChecked))
	s.scanDuration.Observe(ev.Duration.Seconds())
	return nil
}

// RecordOpportunity increments the opportunity counter.
func (s *PromSink) RecordOpportunity(coremetrics.OpportunityEvent) error {
	s.opportunities.Inc()
	return nil
}

// RecordTransfer increments the per-status transfer counter.
func (s *PromSink) RecordTransfer(ev coremetrics.TransferEvent) error {
	s.transfers.WithLabelValues(ev.Status).Inc()
	if ev.Status == "COMPLETED" {
		s.carbonSaved.Add(ev.CarbonSavedKg)
	}
	return nil
}

// RecordAllocation increments the per-operator allocation counter.
func (s *PromSink) RecordAllocation(ev coremetrics.AllocationEvent) error {
	s.allocations.WithLabelValues(ev.OperatorID).Inc()
	return nil
}
