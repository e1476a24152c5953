package allocator

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/freightpool/absorb/core/geo"
	"github.com/freightpool/absorb/core/logger"
	"github.com/freightpool/absorb/core/metrics"
	"github.com/freightpool/absorb/core/model"
	"github.com/freightpool/absorb/core/store"
)

// defaultHubTagRadiusKm is used for hubs that do not declare a radius.
const defaultHubTagRadiusKm = 5

// Allocator assigns pending deliveries to available trucks and creates the
// routes the proximity scanner monitors.
type Allocator struct {
	store   store.Store
	packer  Packer
	cfg     Config
	log     logger.Logger
	metrics metrics.Sink

	now   func() time.Time
	newID func() string
}

// New creates an Allocator. A nil packer defaults to FirstFitPacker.
func New(st store.Store, p Packer, cfg Config, log logger.Logger, sink metrics.Sink) (*Allocator, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("allocator: nil parameter provided to New")
	}
	if p == nil {
		p = FirstFitPacker{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Allocator{
		store:   st,
		packer:  p,
		cfg:     cfg,
		log:     log,
		metrics: sink,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Allocate runs one greedy allocation pass over the operator's pending
// deliveries. The pending and truck state is read inside the transaction, so
// concurrent passes cannot observe the same delivery as pending and assign it
// twice. Deliveries that do not fit on any truck remain pending for a later
// pass. Returns the created routes; an empty result is a no-op, not an error.
func (a *Allocator) Allocate(ctx context.Context, operatorID string) ([]model.Route, error) {
	var (
		routes   []model.Route
		pendingN int
		assigned int
	)
	err := a.store.WithTx(ctx, func(tx store.Tx) error {
		routes = routes[:0]
		assigned = 0
		pending, err := tx.PendingDeliveries(ctx, operatorID)
		if err != nil {
			return fmt.Errorf("load pending deliveries: %w", err)
		}
		pendingN = len(pending)
		if len(pending) == 0 {
			return nil
		}
		trucks, err := tx.AvailableTrucks(ctx, operatorID)
		if err != nil {
			return fmt.Errorf("load trucks: %w", err)
		}
		if len(trucks) == 0 {
			return ErrNoTrucks
		}
		hubs, err := tx.Hubs(ctx)
		if err != nil {
			return fmt.Errorf("load hubs: %w", err)
		}
		for _, asn := range a.packer.Pack(trucks, pending) {
			route := model.Route{
				ID:            a.newID(),
				OperatorID:    operatorID,
				TruckID:       asn.Truck.ID,
				DriverID:      asn.Truck.DriverID,
				DeliveryIDs:   model.DeliveryIDs(asn.Deliveries),
				Waypoints:     buildWaypoints(asn.Deliveries, hubs),
				TotalWeightKg: asn.WeightKg,
				TotalVolumeL:  asn.VolumeL,
				StartedAt:     a.now(),
				Status:        model.RouteAllocated,
			}
			if err := tx.CreateRoute(ctx, route); err != nil {
				return err
			}
			if err := tx.AssignDeliveries(ctx, route.DeliveryIDs, route.ID, route.TruckID, route.DriverID, model.DeliveryAllocated); err != nil {
				return err
			}
			if err := tx.AdjustTruckLoad(ctx, asn.Truck.ID, asn.WeightKg, asn.VolumeL); err != nil {
				return err
			}
			if err := tx.SetTruckAvailability(ctx, asn.Truck.ID, false); err != nil {
				return err
			}
			routes = append(routes, route)
			assigned += len(asn.Deliveries)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("allocator: allocation pass: %w", err)
	}
	if len(routes) == 0 {
		return nil, nil
	}

	a.log.Infof("allocated %d routes covering %d of %d pending deliveries", len(routes), assigned, pendingN)
	if err := a.metrics.RecordAllocation(metrics.AllocationEvent{
		OperatorID: operatorID,
		Routes:     len(routes),
		Deliveries: assigned,
		Time:       a.now(),
	}); err != nil {
		a.log.Errorf("allocation metrics error: %v", err)
	}
	return routes, nil
}

// CreateRouteRequest describes an explicit dispatcher-specified route.
type CreateRouteRequest struct {
	OperatorID  string
	TruckID     string
	DriverID    string
	DeliveryIDs []string
	TotalKm     float64
}

// CreateAndAssignRoute builds a route from an explicit delivery set. On top
// of the usual ownership and capacity checks it enforces the driver-relay
// rule: long-haul routes demand experienced drivers and short-haul routes
// must go to drivers below the experience threshold.
func (a *Allocator) CreateAndAssignRoute(ctx context.Context, req CreateRouteRequest) (model.Route, error) {
	if req.OperatorID == "" || req.TruckID == "" || req.DriverID == "" || len(req.DeliveryIDs) == 0 || req.TotalKm <= 0 {
		return model.Route{}, fmt.Errorf("allocator: operatorId, truckId, driverId, deliveryIds and totalKm are required")
	}

	hubs, err := a.store.Hubs(ctx)
	if err != nil {
		return model.Route{}, fmt.Errorf("allocator: load hubs: %w", err)
	}

	var route model.Route
	err = a.store.WithTx(ctx, func(tx store.Tx) error {
		driver, err := tx.Driver(ctx, req.DriverID)
		if err != nil {
			return fmt.Errorf("driver %s: %w", req.DriverID, err)
		}
		truck, err := tx.Truck(ctx, req.TruckID)
		if err != nil {
			return fmt.Errorf("truck %s: %w", req.TruckID, err)
		}
		if driver.OperatorID != req.OperatorID || truck.OperatorID != req.OperatorID {
			return ErrOperatorMismatch
		}
		if !truck.Available {
			return ErrTruckUnavailable
		}
		if err := a.checkRelayRule(req.TotalKm, driver); err != nil {
			return err
		}

		deliveries, err := tx.DeliveriesByID(ctx, req.DeliveryIDs)
		if err != nil {
			return err
		}
		if len(deliveries) != len(req.DeliveryIDs) {
			return fmt.Errorf("one or more deliveries: %w", store.ErrNotFound)
		}
		for _, d := range deliveries {
			if d.OperatorID != req.OperatorID {
				return ErrOperatorMismatch
			}
			if d.Status != model.DeliveryPending {
				return fmt.Errorf("%w: %s", ErrDeliveryAllocated, d.PackageID)
			}
		}
		sort.SliceStable(deliveries, func(i, j int) bool {
			return deliveries[i].PickupWindow.Before(deliveries[j].PickupWindow)
		})

		weightKg, volumeL := model.TotalLoad(deliveries)
		if weightKg > truck.ResidualWeight() {
			return &CapacityError{Resource: "weight", Required: weightKg, Available: truck.ResidualWeight()}
		}
		if volumeL > truck.ResidualVolume() {
			return &CapacityError{Resource: "volume", Required: volumeL, Available: truck.ResidualVolume()}
		}

		route = model.Route{
			ID:            a.newID(),
			OperatorID:    req.OperatorID,
			TruckID:       truck.ID,
			DriverID:      driver.ID,
			DeliveryIDs:   model.DeliveryIDs(deliveries),
			Waypoints:     buildWaypoints(deliveries, hubs),
			TotalWeightKg: weightKg,
			TotalVolumeL:  volumeL,
			TotalKm:       req.TotalKm,
			StartedAt:     a.now(),
			Status:        model.RouteAllocated,
		}
		if err := tx.CreateRoute(ctx, route); err != nil {
			return err
		}
		if err := tx.AssignDeliveries(ctx, route.DeliveryIDs, route.ID, truck.ID, driver.ID, model.DeliveryAllocated); err != nil {
			return err
		}
		if err := tx.AdjustTruckLoad(ctx, truck.ID, weightKg, volumeL); err != nil {
			return err
		}
		if err := tx.SetTruckAvailability(ctx, truck.ID, false); err != nil {
			return err
		}
		// Historical distance feeds future relay decisions.
		return tx.AddDriverDistance(ctx, driver.ID, req.TotalKm)
	})
	if err != nil {
		return model.Route{}, err
	}

	a.log.Infof("route %s created with %d deliveries for driver %s", route.ID, len(route.DeliveryIDs), route.DriverID)
	return route, nil
}

func (a *Allocator) checkRelayRule(routeKm float64, driver model.Driver) error {
	longHaul := routeKm > a.cfg.LongHaulKm
	if longHaul && driver.TotalDistanceKm < a.cfg.ExperienceKm {
		return &ExperienceError{RouteKm: routeKm, DriverKm: driver.TotalDistanceKm, ThresholdKm: a.cfg.ExperienceKm, LongHaul: true}
	}
	if !longHaul && driver.TotalDistanceKm >= a.cfg.ExperienceKm {
		return &ExperienceError{RouteKm: routeKm, DriverKm: driver.TotalDistanceKm, ThresholdKm: a.cfg.ExperienceKm, LongHaul: false}
	}
	return nil
}

// buildWaypoints expands deliveries into ordered pickup/drop stops, tagging
// each stop with the id of a hub whose radius covers it, if any.
func buildWaypoints(deliveries []model.Delivery, hubs []model.VirtualHub) []model.Waypoint {
	wps := make([]model.Waypoint, 0, 2*len(deliveries))
	for _, d := range deliveries {
		wps = append(wps, model.Waypoint{
			Kind:       model.WaypointPickup,
			Location:   d.PickupLocation,
			Position:   d.Pickup,
			DeliveryID: d.ID,
			HubID:      hubAt(d.Pickup, hubs),
		})
		wps = append(wps, model.Waypoint{
			Kind:       model.WaypointDrop,
			Location:   d.DropLocation,
			Position:   d.Drop,
			DeliveryID: d.ID,
			HubID:      hubAt(d.Drop, hubs),
		})
	}
	return wps
}

func hubAt(p geo.Point, hubs []model.VirtualHub) string {
	bestID := ""
	bestDist := 0.0
	for _, h := range hubs {
		radius := h.RadiusKm
		if radius <= 0 {
			radius = defaultHubTagRadiusKm
		}
		d := geo.Distance(p, h.Position)
		if d > radius {
			continue
		}
		if bestID == "" || d < bestDist {
			bestID = h.ID
			bestDist = d
		}
	}
	return bestID
}
