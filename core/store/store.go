package store

import (
	"context"
	"errors"
	"time"

	"github.com/freightpool/absorb/core/model"
)

// ErrNotFound is returned when an entity does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a check-and-set update finds the entity in an
// unexpected state. Callers must re-fetch and retry manually.
var ErrConflict = errors.New("store: state conflict")

// FleetEntry is the scanner's read model: one available, geo-located truck
// with its on-road driver, single active route and that route's deliveries.
type FleetEntry struct {
	Truck      model.Truck
	Driver     model.Driver
	Route      model.Route
	Deliveries []model.Delivery
}

// Repo exposes read access to all absorption entities. Every entity is
// independently queryable by id; opportunities additionally by
// (status, expiresAt) for dedupe checks and expiry sweeps.
type Repo interface {
	Truck(ctx context.Context, id string) (model.Truck, error)
	Driver(ctx context.Context, id string) (model.Driver, error)
	Route(ctx context.Context, id string) (model.Route, error)
	Hub(ctx context.Context, id string) (model.VirtualHub, error)
	Hubs(ctx context.Context) ([]model.VirtualHub, error)
	Opportunity(ctx context.Context, id string) (model.Opportunity, error)
	Transfer(ctx context.Context, id string) (model.Transfer, error)

	DeliveriesByID(ctx context.Context, ids []string) ([]model.Delivery, error)
	DeliveriesByRoute(ctx context.Context, routeID string) ([]model.Delivery, error)

	// PendingDeliveries returns an operator's unallocated deliveries ordered
	// by pickup window, then creation time.
	PendingDeliveries(ctx context.Context, operatorID string) ([]model.Delivery, error)
	// AvailableTrucks returns an operator's available trucks in stable order.
	AvailableTrucks(ctx context.Context, operatorID string) ([]model.Truck, error)

	// ActiveFleet returns the trucks eligible for proximity scanning.
	ActiveFleet(ctx context.Context) ([]FleetEntry, error)
	// ActiveOpportunityForPair returns a non-expired opportunity linking the
	// two routes in either direction, or nil when none exists.
	ActiveOpportunityForPair(ctx context.Context, routeA, routeB string, now time.Time) (*model.Opportunity, error)
	// ListActiveOpportunities returns all non-expired opportunities still in
	// an active status, most recent first.
	ListActiveOpportunities(ctx context.Context, now time.Time) ([]model.Opportunity, error)
}

// Tx extends Repo with mutations. All mutations within one Tx are applied
// atomically; any returned error rolls back the whole transaction.
type Tx interface {
	Repo

	CreateRoute(ctx context.Context, r model.Route) error
	CreateOpportunity(ctx context.Context, o model.Opportunity) error
	CreateTransfer(ctx context.Context, t model.Transfer) error

	// UpdateOpportunity writes o if the stored status equals expect,
	// otherwise returns ErrConflict.
	UpdateOpportunity(ctx context.Context, o model.Opportunity, expect model.OpportunityStatus) error
	// UpdateTransfer writes t if the stored status is one of expect,
	// otherwise returns ErrConflict.
	UpdateTransfer(ctx context.Context, t model.Transfer, expect ...model.TransferStatus) error

	// AssignDeliveries moves the deliveries onto a route/truck/driver and
	// sets their status.
	AssignDeliveries(ctx context.Context, ids []string, routeID, truckID, driverID string, status model.DeliveryStatus) error
	// AdjustTruckLoad adds the deltas to the truck's current weight/volume.
	AdjustTruckLoad(ctx context.Context, id string, dWeightKg, dVolumeL float64) error
	SetTruckAvailability(ctx context.Context, id string, available bool) error
	AddDriverDistance(ctx context.Context, id string, km float64) error

	// TransferDocuments flips the from-driver's active e-way bills to the
	// to-driver and vehicle, marking them transferred. Returns the count.
	TransferDocuments(ctx context.Context, fromDriver, toDriver, vehicleNo string) (int, error)

	// ExpireOpportunities marks opportunities whose TTL has passed as
	// expired and returns the count.
	ExpireOpportunities(ctx context.Context, now time.Time) (int, error)
}

// Store is the persistence entry point shared by the allocator, scanner and
// handshake orchestrator.
type Store interface {
	Repo
	// WithTx runs fn inside one atomic transaction.
	WithTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}
