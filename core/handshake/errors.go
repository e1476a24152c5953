package handshake

import "errors"

// Authorization errors: the wrong driver acted on a transfer. Surfaced, never
// retried.
var (
	ErrNotExporter = errors.New("handshake: only the exporter driver may issue the QR code")
	ErrNotImporter = errors.New("handshake: only the importer driver may perform this step")
)

// Consistency errors: the entity moved on under the caller's feet. Surfaced
// as conflicts; the caller must re-fetch and retry manually.
var (
	ErrAlreadyProcessed   = errors.New("handshake: opportunity already processed")
	ErrOpportunityExpired = errors.New("handshake: opportunity expired")
	ErrQRNotScanned       = errors.New("handshake: QR code must be scanned first")
)

// Validation errors: the submitted payload is unusable.
var (
	ErrQRInvalid  = errors.New("handshake: invalid QR payload")
	ErrQRMismatch = errors.New("handshake: QR payload does not match this transfer")
)
