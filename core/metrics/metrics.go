package metrics

import "time"

// ScanCycleEvent captures one proximity scan cycle.
type ScanCycleEvent struct {
	Trucks        int
	PairsChecked  int
	Opportunities int
	Expired       int
	Duration      time.Duration
	Time          time.Time
	Error         string
}

// OpportunityEvent captures a newly detected absorption opportunity.
type OpportunityEvent struct {
	OpportunityID string
	Route1ID      string
	Route2ID      string
	HubID         string
	DistanceKm    float64
	CarbonSavedKg float64
	Time          time.Time
}

// TransferEvent captures a handover state change.
type TransferEvent struct {
	TransferID    string
	OpportunityID string
	Status        string
	Deliveries    int
	WeightKg      float64
	VolumeL       float64
	CarbonSavedKg float64
	Time          time.Time
}

// AllocationEvent captures one allocation pass.
type AllocationEvent struct {
	OperatorID string
	Routes     int
	Deliveries int
	Time       time.Time
}

// Sink records absorption events for observability purposes.
type Sink interface {
	RecordScanCycle(ev ScanCycleEvent) error
	RecordOpportunity(ev OpportunityEvent) error
	RecordTransfer(ev TransferEvent) error
	RecordAllocation(ev AllocationEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordScanCycle(ScanCycleEvent) error     { return nil }
func (NopSink) RecordOpportunity(OpportunityEvent) error { return nil }
func (NopSink) RecordTransfer(TransferEvent) error       { return nil }
func (NopSink) RecordAllocation(AllocationEvent) error   { return nil }
