package model

import (
	"time"

	"github.com/freightpool/absorb/core/geo"
)

// DeliveryStatus tracks a delivery through its lifecycle.
type DeliveryStatus string

const (
	DeliveryPending     DeliveryStatus = "PENDING"
	DeliveryAllocated   DeliveryStatus = "ALLOCATED"
	DeliveryInTransit   DeliveryStatus = "IN_TRANSIT"
	DeliveryTransferred DeliveryStatus = "ABSORPTION_TRANSFERRED"
	DeliveryCompleted   DeliveryStatus = "COMPLETED"
	DeliveryCancelled   DeliveryStatus = "CANCELLED"
)

// Delivery is a single package movement. It belongs to exactly one route at a
// time; ownership changes at most once, during a completed handover.
type Delivery struct {
	ID             string
	PackageID      string
	OperatorID     string
	RouteID        string
	TruckID        string
	DriverID       string
	CargoType      string
	WeightKg       float64
	VolumeL        float64
	PickupLocation string
	DropLocation   string
	Pickup         geo.Point
	Drop           geo.Point
	PickupWindow   time.Time
	CreatedAt      time.Time
	Status         DeliveryStatus
}

// TotalLoad sums weight and volume over a set of deliveries.
func TotalLoad(deliveries []Delivery) (weightKg, volumeL float64) {
	for _, d := range deliveries {
		weightKg += d.WeightKg
		volumeL += d.VolumeL
	}
	return weightKg, volumeL
}

// DeliveryIDs extracts the ids of a delivery set, preserving order.
func DeliveryIDs(deliveries []Delivery) []string {
	ids := make([]string, len(deliveries))
	for i, d := range deliveries {
		ids[i] = d.ID
	}
	return ids
}
