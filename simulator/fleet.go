package simulator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/freightpool/absorb/core/geo"
	"github.com/freightpool/absorb/core/model"
)

// Config holds parameters for bulk fleet generation.
type Config struct {
	// Trucks is the number of truck/driver/route triples to generate.
	Trucks int
	// Center is the city center the fleet spreads around.
	Center geo.Point
	// SpreadKm bounds how far trucks are placed from the center.
	SpreadKm float64
	// CargoTypes cycles through the generated deliveries.
	CargoTypes []string
	// Seed makes generation reproducible. Zero seeds from the clock.
	Seed int64
}

// SetDefaults applies a small demo fleet around Mumbai.
func (c *Config) SetDefaults() {
	if c.Trucks == 0 {
		c.Trucks = 6
	}
	if c.Center == (geo.Point{}) {
		c.Center = geo.Point{Lat: 19.0760, Lng: 72.8777}
	}
	if c.SpreadKm == 0 {
		c.SpreadKm = 8
	}
	if len(c.CargoTypes) == 0 {
		c.CargoTypes = []string{"Electronics", "Textiles", "Food Products", "Machinery"}
	}
}

// Fleet is a generated set of entities ready to seed into a store.
type Fleet struct {
	Trucks     []model.Truck
	Drivers    []model.Driver
	Routes     []model.Route
	Deliveries []model.Delivery
	Hubs       []model.VirtualHub
}

// GenerateFleet creates Trucks active truck/driver/route triples scattered
// around the center, each with two deliveries routed through a shared central
// hub so the proximity scanner has pairs to find.
func GenerateFleet(cfg Config) Fleet {
	cfg.SetDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	hub := model.VirtualHub{
		ID:       "hub-central",
		Name:     "Central Exchange Hub",
		Address:  "Central logistics park",
		Position: cfg.Center,
		RadiusKm: cfg.SpreadKm + 2,
	}
	f := Fleet{Hubs: []model.VirtualHub{hub}}

	// Roughly convert km offsets to degrees near the center latitude.
	degPerKm := 1.0 / 111.0
	now := time.Now()
	for i := 0; i < cfg.Trucks; i++ {
		pos := geo.Point{
			Lat: cfg.Center.Lat + (rng.Float64()*2-1)*cfg.SpreadKm*degPerKm,
			Lng: cfg.Center.Lng + (rng.Float64()*2-1)*cfg.SpreadKm*degPerKm,
		}
		truckID := fmt.Sprintf("truck%04d", i+1)
		driverID := fmt.Sprintf("driver%04d", i+1)
		routeID := fmt.Sprintf("route%04d", i+1)
		cargo := cfg.CargoTypes[i%len(cfg.CargoTypes)]

		weight := 40.0 + rng.Float64()*60
		volume := 150.0 + rng.Float64()*250
		truck := model.Truck{
			ID:            truckID,
			LicensePlate:  fmt.Sprintf("MH-12-%04d", 1000+i),
			OperatorID:    "op-demo",
			DriverID:      driverID,
			MaxWeightKg:   500,
			MaxVolumeL:    2000,
			CurrentWeight: weight,
			CurrentVolume: volume,
			Position:      pos,
			HasPosition:   true,
			Available:     true,
			CO2PerKm:      0.4 + rng.Float64()*0.3,
		}
		driver := model.Driver{
			ID:              driverID,
			Name:            fmt.Sprintf("Demo Driver %d", i+1),
			OperatorID:      "op-demo",
			Status:          model.DriverInTransit,
			TotalDistanceKm: rng.Float64() * 1000,
		}

		var deliveries []model.Delivery
		for j := 0; j < 2; j++ {
			d := model.Delivery{
				ID:             fmt.Sprintf("%s-del%d", routeID, j+1),
				PackageID:      fmt.Sprintf("PKG-%04d-%d", i+1, j+1),
				OperatorID:     "op-demo",
				RouteID:        routeID,
				TruckID:        truckID,
				DriverID:       driverID,
				CargoType:      cargo,
				WeightKg:       weight / 2,
				VolumeL:        volume / 2,
				PickupLocation: fmt.Sprintf("Warehouse %d", i+1),
				DropLocation:   fmt.Sprintf("Market %d", j+1),
				Pickup:         pos,
				Drop:           hub.Position,
				PickupWindow:   now.Add(time.Duration(j) * time.Hour),
				CreatedAt:      now,
				Status:         model.DeliveryInTransit,
			}
			deliveries = append(deliveries, d)
		}

		route := model.Route{
			ID:          routeID,
			OperatorID:  "op-demo",
			TruckID:     truckID,
			DriverID:    driverID,
			DeliveryIDs: model.DeliveryIDs(deliveries),
			Waypoints: []model.Waypoint{
				{Kind: model.WaypointPickup, Location: deliveries[0].PickupLocation, Position: pos, DeliveryID: deliveries[0].ID, HubID: hub.ID},
				{Kind: model.WaypointDrop, Location: hub.Name, Position: hub.Position, DeliveryID: deliveries[0].ID, HubID: hub.ID},
			},
			TotalWeightKg: weight,
			TotalVolumeL:  volume,
			TotalKm:       50 + rng.Float64()*400,
			StartedAt:     now,
			Status:        model.RouteActive,
		}

		f.Trucks = append(f.Trucks, truck)
		f.Drivers = append(f.Drivers, driver)
		f.Routes = append(f.Routes, route)
		f.Deliveries = append(f.Deliveries, deliveries...)
	}
	return f
}

// memorySink is the subset of the in-memory store used for seeding.
type memorySink interface {
	PutTruck(model.Truck)
	PutDriver(model.Driver)
	PutRoute(model.Route)
	PutHub(model.VirtualHub)
	PutDelivery(model.Delivery)
}

// Seed loads the generated fleet into the sink.
func (f Fleet) Seed(sink memorySink) {
	for _, h := range f.Hubs {
		sink.PutHub(h)
	}
	for _, d := range f.Drivers {
		sink.PutDriver(d)
	}
	for _, t := range f.Trucks {
		sink.PutTruck(t)
	}
	for _, r := range f.Routes {
		sink.PutRoute(r)
	}
	for _, d := range f.Deliveries {
		sink.PutDelivery(d)
	}
}
