package model

import (
	"fmt"

	"github.com/freightpool/absorb/core/geo"
)

// DriverStatus describes a driver's duty state.
type DriverStatus string

const (
	DriverOffDuty   DriverStatus = "OFF_DUTY"
	DriverOnDuty    DriverStatus = "ON_DUTY"
	DriverInTransit DriverStatus = "IN_TRANSIT"
)

// Driver represents a truck driver. Historical distance feeds the relay rule
// used when assigning long-haul routes.
type Driver struct {
	ID              string
	Name            string
	OperatorID      string
	Status          DriverStatus
	TotalDistanceKm float64
}

// OnRoad reports whether the driver is currently working a shift.
func (d Driver) OnRoad() bool {
	return d.Status == DriverOnDuty || d.Status == DriverInTransit
}

// Truck represents a cargo truck participating in absorption operations.
type Truck struct {
	ID            string
	LicensePlate  string
	OperatorID    string
	DriverID      string
	MaxWeightKg   float64
	MaxVolumeL    float64
	CurrentWeight float64
	CurrentVolume float64
	Position      geo.Point
	HasPosition   bool // false until a first GPS fix is recorded
	Available     bool
	CO2PerKm      float64 // emission factor used for carbon-saving estimates
}

// Validate checks that the truck configuration is sound.
func (t Truck) Validate() error {
	if t.MaxWeightKg <= 0 {
		return fmt.Errorf("truck %s: max weight must be positive", t.ID)
	}
	if t.MaxVolumeL <= 0 {
		return fmt.Errorf("truck %s: max volume must be positive", t.ID)
	}
	if t.CurrentWeight < 0 || t.CurrentWeight > t.MaxWeightKg {
		return fmt.Errorf("truck %s: current weight %.1f outside [0,%.1f]", t.ID, t.CurrentWeight, t.MaxWeightKg)
	}
	if t.CurrentVolume < 0 || t.CurrentVolume > t.MaxVolumeL {
		return fmt.Errorf("truck %s: current volume %.1f outside [0,%.1f]", t.ID, t.CurrentVolume, t.MaxVolumeL)
	}
	return nil
}

// ResidualWeight returns the spare weight capacity in kilograms.
func (t Truck) ResidualWeight() float64 {
	return t.MaxWeightKg - t.CurrentWeight
}

// ResidualVolume returns the spare volume capacity in liters.
func (t Truck) ResidualVolume() float64 {
	return t.MaxVolumeL - t.CurrentVolume
}

// CanAbsorb reports whether the truck has enough spare capacity to take the
// full current load of other.
func (t Truck) CanAbsorb(other Truck) bool {
	return t.ResidualWeight() >= other.CurrentWeight &&
		t.ResidualVolume() >= other.CurrentVolume
}
