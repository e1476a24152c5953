package handshake

import "fmt"

// Config holds handshake parameters.
type Config struct {
	// QRSecret is the shared HMAC secret for QR payload signing.
	QRSecret string `json:"qr_secret"`
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.QRSecret == "" {
		return fmt.Errorf("handshake: qr_secret is required")
	}
	return nil
}
