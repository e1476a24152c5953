package handshake

import (
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/freightpool/absorb/core/model"
)

// PackageManifest is one package entry embedded in a QR payload.
type PackageManifest struct {
	PackageID string  `json:"package_id"`
	CargoType string  `json:"cargo_type"`
	WeightKg  float64 `json:"weight_kg"`
	VolumeL   float64 `json:"volume_l"`
	From      string  `json:"from"`
	To        string  `json:"to"`
}

// QRPayload is the verified content of a scanned QR code.
type QRPayload struct {
	TransferID    string
	DeliveryIDs   []string
	TotalWeightKg float64
	TotalVolumeL  float64
	Packages      []PackageManifest
}

type qrClaims struct {
	TransferID    string            `json:"transfer_id"`
	DeliveryIDs   []string          `json:"delivery_ids"`
	TotalWeightKg float64           `json:"total_weight_kg"`
	TotalVolumeL  float64           `json:"total_volume_l"`
	Packages      []PackageManifest `json:"packages"`
	jwt.RegisteredClaims
}

// QRSigner issues and verifies HMAC-signed QR payloads. Signing binds the
// payload to one transfer and one exact delivery set, so a code issued for
// transfer T can never verify against transfer T'.
type QRSigner struct {
	secret []byte
}

// NewQRSigner creates a signer from a shared secret.
func NewQRSigner(secret string) *QRSigner {
	return &QRSigner{secret: []byte(secret)}
}

// Issue builds a signed payload for the transfer covering the given
// deliveries.
func (s *QRSigner) Issue(transferID string, deliveries []model.Delivery, issuedAt time.Time) (string, error) {
	weightKg, volumeL := model.TotalLoad(deliveries)
	packages := make([]PackageManifest, len(deliveries))
	for i, d := range deliveries {
		packages[i] = PackageManifest{
			PackageID: d.PackageID,
			CargoType: d.CargoType,
			WeightKg:  d.WeightKg,
			VolumeL:   d.VolumeL,
			From:      d.PickupLocation,
			To:        d.DropLocation,
		}
	}
	claims := qrClaims{
		TransferID:    transferID,
		DeliveryIDs:   model.DeliveryIDs(deliveries),
		TotalWeightKg: weightKg,
		TotalVolumeL:  volumeL,
		Packages:      packages,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issuedAt),
			Subject:  transferID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Decode verifies the payload signature and returns its content.
func (s *QRSigner) Decode(payload string) (*QRPayload, error) {
	var claims qrClaims
	_, err := jwt.ParseWithClaims(payload, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQRInvalid, err)
	}
	return &QRPayload{
		TransferID:    claims.TransferID,
		DeliveryIDs:   claims.DeliveryIDs,
		TotalWeightKg: claims.TotalWeightKg,
		TotalVolumeL:  claims.TotalVolumeL,
		Packages:      claims.Packages,
	}, nil
}

// sameIDSet compares two delivery-id sets order-insensitively. Any mismatch
// is a hard rejection, there is no partial acceptance.
func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
