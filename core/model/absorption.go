package model

import (
	"time"

	"github.com/freightpool/absorb/core/geo"
)

// OpportunityStatus tracks a detected absorption candidate.
type OpportunityStatus string

const (
	OpportunityPending          OpportunityStatus = "PENDING"
	OpportunityAcceptedByRoute1 OpportunityStatus = "ACCEPTED_BY_ROUTE1"
	OpportunityAcceptedByRoute2 OpportunityStatus = "ACCEPTED_BY_ROUTE2"
	OpportunityBothAccepted     OpportunityStatus = "BOTH_ACCEPTED"
	OpportunityCompleted        OpportunityStatus = "COMPLETED"
	OpportunityExpired          OpportunityStatus = "EXPIRED"
)

// ActiveOpportunityStatuses are the states in which an opportunity still
// blocks creation of a duplicate for the same route pair.
var ActiveOpportunityStatuses = []OpportunityStatus{
	OpportunityPending,
	OpportunityAcceptedByRoute1,
	OpportunityAcceptedByRoute2,
	OpportunityBothAccepted,
}

// Opportunity is a detected, not-yet-acted-upon candidate absorption between
// two routes. Route1 is the importer candidate with spare capacity; route2 is
// the exporter whose deliveries are eligible to move.
type Opportunity struct {
	ID                  string
	Route1ID            string
	Route2ID            string
	OverlapDistanceKm   float64
	OverlapCenter       geo.Point
	NearestHubID        string
	EligibleDeliveryIDs []string
	Route1SpaceVolumeL  float64
	Route2SpaceVolumeL  float64
	DistanceSavedKm     float64
	CarbonSavedKg       float64
	EstimatedMeetTime   time.Time
	ProposedAt          time.Time
	ExpiresAt           time.Time
	Status              OpportunityStatus
}

// Expired reports whether the opportunity is past its TTL. Stored status may
// lag behind; readers must consult the timestamp, not only the status field.
func (o Opportunity) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// Actionable reports whether the opportunity can still be accepted at now.
func (o Opportunity) Actionable(now time.Time) bool {
	return o.Status == OpportunityPending && !o.Expired(now)
}

// SamePair reports whether the opportunity links the given routes in either
// direction.
func (o Opportunity) SamePair(routeA, routeB string) bool {
	return (o.Route1ID == routeA && o.Route2ID == routeB) ||
		(o.Route1ID == routeB && o.Route2ID == routeA)
}

// TransferStatus tracks the handover protocol phases.
type TransferStatus string

const (
	TransferPending           TransferStatus = "PENDING"
	TransferQRScanned         TransferStatus = "QR_SCANNED"
	TransferChecklistVerified TransferStatus = "CHECKLIST_VERIFIED"
	TransferCompleted         TransferStatus = "COMPLETED"
)

// ChecklistItem is one per-package verification entry derived from a scanned
// QR payload.
type ChecklistItem struct {
	PackageID string  `json:"package_id"`
	CargoType string  `json:"cargo_type"`
	WeightKg  float64 `json:"weight_kg"`
	VolumeL   float64 `json:"volume_l"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Verified  bool    `json:"verified"`
}

// Transfer is the accepted, in-progress handover derived from an opportunity.
type Transfer struct {
	ID                    string
	OpportunityID         string
	ExporterDriverID      string
	ImporterDriverID      string
	HubID                 string
	DeliveryIDsToTransfer []string
	SpaceAvailableExpL    float64
	SpaceAvailableImpL    float64
	DistanceSavedKm       float64
	CarbonSavedKg         float64
	QRPayload             string
	Checklist             []ChecklistItem
	Photos                []string
	ScannedAt             time.Time
	CompletedAt           time.Time
	Status                TransferStatus
}

// ReadyToComplete reports whether the transfer is in a state from which the
// importer may complete the handover.
func (t Transfer) ReadyToComplete() bool {
	return t.Status == TransferQRScanned || t.Status == TransferChecklistVerified
}
