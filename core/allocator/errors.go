package allocator

import (
	"errors"
	"fmt"
)

// ErrNoTrucks is returned when an operator has no available trucks.
var ErrNoTrucks = errors.New("allocator: no available trucks")

// ErrTruckUnavailable is returned when the requested truck cannot take a new
// route.
var ErrTruckUnavailable = errors.New("allocator: truck is not available for assignment")

// ErrDeliveryAllocated is returned when an explicit delivery set contains a
// delivery that is no longer pending.
var ErrDeliveryAllocated = errors.New("allocator: delivery already allocated")

// ErrOperatorMismatch is returned when a truck, driver or delivery does not
// belong to the requesting operator.
var ErrOperatorMismatch = errors.New("allocator: entity does not belong to operator")

// CapacityError reports a capacity overflow with the required and available
// amounts, surfaced to the caller and never retried internally.
type CapacityError struct {
	Resource  string // "weight" or "volume"
	Required  float64
	Available float64
}

func (e *CapacityError) Error() string {
	unit := "kg"
	if e.Resource == "volume" {
		unit = "L"
	}
	return fmt.Sprintf("allocator: truck %s capacity exceeded: required %.1f%s, available %.1f%s",
		e.Resource, e.Required, unit, e.Available, unit)
}

// ExperienceError reports a driver-relay rule violation. Assignment is
// rejected, never silently reassigned.
type ExperienceError struct {
	RouteKm     float64
	DriverKm    float64
	ThresholdKm float64
	LongHaul    bool
}

func (e *ExperienceError) Error() string {
	if e.LongHaul {
		return fmt.Sprintf("allocator: long-haul route (%.0fkm) requires a driver with history above %.0fkm, driver has %.0fkm",
			e.RouteKm, e.ThresholdKm, e.DriverKm)
	}
	return fmt.Sprintf("allocator: short-haul route (%.0fkm) must go to a driver with history below %.0fkm, driver has %.0fkm",
		e.RouteKm, e.ThresholdKm, e.DriverKm)
}
