package metrics

import coremetrics "github.com/freightpool/absorb/core/metrics"

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordScanCycle forwards the event to all sinks, returning the first error.
func (m *MultiSink) RecordScanCycle(ev coremetrics.ScanCycleEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordScanCycle(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordOpportunity forwards the event to all sinks.
func (m *MultiSink) RecordOpportunity(ev coremetrics.OpportunityEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordOpportunity(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransfer forwards the event to all sinks.
func (m *MultiSink) RecordTransfer(ev coremetrics.TransferEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransfer(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordAllocation forwards the event to all sinks.
func (m *MultiSink) RecordAllocation(ev coremetrics.AllocationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAllocation(ev); err != nil {
			return err
		}
	}
	return nil
}
