package notify

import (
	"time"

	"github.com/freightpool/absorb/core/geo"
)

// Role identifies which side of a handover a driver is on.
type Role string

const (
	RoleImporter Role = "IMPORTER"
	RoleExporter Role = "EXPORTER"
)

// TruckRef identifies one truck and its driver in an event payload.
type TruckRef struct {
	TruckID      string `json:"truck_id"`
	LicensePlate string `json:"license_plate"`
	DriverID     string `json:"driver_id"`
}

// ProposalCreated is broadcast to the dispatcher topic when the scanner
// detects a new absorption opportunity.
type ProposalCreated struct {
	OpportunityID string    `json:"opportunity_id"`
	Importer      TruckRef  `json:"importer"`
	Exporter      TruckRef  `json:"exporter"`
	HubID         string    `json:"hub_id"`
	HubName       string    `json:"hub_name"`
	DistanceKm    float64   `json:"distance_km"`
	CarbonSavedKg float64   `json:"carbon_saved_kg"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// HandshakeRequired is sent to each driver individually once a dispatcher
// accepts an opportunity.
type HandshakeRequired struct {
	TransferID         string    `json:"transfer_id"`
	Role               Role      `json:"role"`
	HubID              string    `json:"hub_id"`
	HubName            string    `json:"hub_name"`
	HubAddress         string    `json:"hub_address"`
	HubPosition        geo.Point `json:"hub_position"`
	CounterpartTruck   string    `json:"counterpart_truck"`
	CounterpartDriver  string    `json:"counterpart_driver"`
	EstimatedMeetTime  time.Time `json:"estimated_meet_time"`
}

// ScanConfirmed is sent to the dispatcher topic when the importer verifies
// the exporter's QR payload.
type ScanConfirmed struct {
	TransferID string    `json:"transfer_id"`
	Location   geo.Point `json:"location"`
	ScannedAt  time.Time `json:"scanned_at"`
	DriverID   string    `json:"driver_id"`
}

// TransferCompleted is broadcast once the handover transaction commits, and
// additionally delivered to both drivers with their role filled in.
type TransferCompleted struct {
	TransferID  string    `json:"transfer_id"`
	DeliveryIDs []string  `json:"delivery_ids"`
	NewTruckID  string    `json:"new_truck_id"`
	NewPlate    string    `json:"new_plate"`
	Role        Role      `json:"role,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
