package model

// DocumentStatus tracks an e-way bill's validity.
type DocumentStatus string

const (
	DocumentActive      DocumentStatus = "ACTIVE"
	DocumentTransferred DocumentStatus = "TRANSFERRED"
	DocumentExpired     DocumentStatus = "EXPIRED"
)

// EWayBill is the transport document tied to a driver and vehicle. During a
// completed handover the exporter's active bills are flipped to the importer's
// vehicle and marked transferred.
type EWayBill struct {
	ID        string
	Number    string
	DriverID  string
	VehicleNo string
	Status    DocumentStatus
}
