package model

import (
	"time"

	"github.com/freightpool/absorb/core/geo"
)

// RouteStatus tracks a route through its lifecycle.
type RouteStatus string

const (
	RoutePending   RouteStatus = "PENDING"
	RouteAllocated RouteStatus = "ALLOCATED"
	RouteActive    RouteStatus = "ACTIVE"
	RouteCompleted RouteStatus = "COMPLETED"
)

// WaypointKind distinguishes pickup from drop stops.
type WaypointKind string

const (
	WaypointPickup WaypointKind = "PICKUP"
	WaypointDrop   WaypointKind = "DROP"
)

// Waypoint is one ordered stop on a route. HubID is set when the stop
// coincides with a virtual hub; path-overlap detection compares these.
type Waypoint struct {
	Kind       WaypointKind `json:"kind"`
	Location   string       `json:"location"`
	Position   geo.Point    `json:"position"`
	DeliveryID string       `json:"delivery_id,omitempty"`
	HubID      string       `json:"hub_id,omitempty"`
}

// Route is an ordered set of deliveries assigned to one truck and driver.
type Route struct {
	ID            string
	OperatorID    string
	TruckID       string
	DriverID      string
	DeliveryIDs   []string
	Waypoints     []Waypoint
	TotalWeightKg float64
	TotalVolumeL  float64
	TotalKm       float64
	StartedAt     time.Time
	Status        RouteStatus
}

// HubIDs returns the distinct hub ids referenced by the route's waypoints.
func (r Route) HubIDs() []string {
	seen := make(map[string]struct{}, len(r.Waypoints))
	var ids []string
	for _, wp := range r.Waypoints {
		if wp.HubID == "" {
			continue
		}
		if _, ok := seen[wp.HubID]; ok {
			continue
		}
		seen[wp.HubID] = struct{}{}
		ids = append(ids, wp.HubID)
	}
	return ids
}

// SharesHub reports whether two routes reference at least one common hub.
func (r Route) SharesHub(other Route) bool {
	hubs := make(map[string]struct{})
	for _, id := range r.HubIDs() {
		hubs[id] = struct{}{}
	}
	for _, id := range other.HubIDs() {
		if _, ok := hubs[id]; ok {
			return true
		}
	}
	return false
}

// VirtualHub is an immutable rendezvous point used for physical handovers.
type VirtualHub struct {
	ID       string
	Name     string
	Address  string
	Position geo.Point
	RadiusKm float64
}
