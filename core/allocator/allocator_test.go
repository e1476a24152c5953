package allocator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightpool/absorb/core/model"
	"github.com/freightpool/absorb/infra/logger"
	infrastore "github.com/freightpool/absorb/infra/store"
)

func testTruck(id string, maxW, maxV float64) model.Truck {
	return model.Truck{
		ID: id, LicensePlate: "MH-" + id, OperatorID: "op1", DriverID: "drv-" + id,
		MaxWeightKg: maxW, MaxVolumeL: maxV, Available: true,
	}
}

func testDelivery(id string, weight, volume float64, window time.Time) model.Delivery {
	return model.Delivery{
		ID: id, PackageID: "PKG-" + id, OperatorID: "op1",
		CargoType: "Electronics", WeightKg: weight, VolumeL: volume,
		PickupWindow: window, CreatedAt: window, Status: model.DeliveryPending,
	}
}

func newTestAllocator(t *testing.T, st *infrastore.MemoryStore) *Allocator {
	t.Helper()
	a, err := New(st, nil, Config{}, logger.NopLogger{}, nil)
	require.NoError(t, err)
	return a
}

func TestFirstFitPackerFillsPrefix(t *testing.T) {
	trucks := []model.Truck{
		testTruck("t1", 100, 1000),
		testTruck("t2", 100, 1000),
	}
	now := time.Now()
	pending := []model.Delivery{
		testDelivery("d1", 60, 100, now),
		testDelivery("d2", 60, 100, now), // overflows t1, must start t2
		testDelivery("d3", 30, 100, now),
	}

	out := FirstFitPacker{}.Pack(trucks, pending)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"d1"}, model.DeliveryIDs(out[0].Deliveries))
	assert.Equal(t, []string{"d2", "d3"}, model.DeliveryIDs(out[1].Deliveries))
	assert.Equal(t, 60.0, out[0].WeightKg)
	assert.Equal(t, 90.0, out[1].WeightKg)
}

func TestFirstFitPackerNeverSkipsAhead(t *testing.T) {
	trucks := []model.Truck{testTruck("t1", 100, 1000)}
	now := time.Now()
	pending := []model.Delivery{
		testDelivery("big", 150, 100, now), // fits nowhere
		testDelivery("small", 10, 10, now),
	}

	// The queue head blocks: a later delivery is never packed around it.
	out := FirstFitPacker{}.Pack(trucks, pending)
	assert.Empty(t, out)
}

func TestFirstFitPackerRespectsCurrentLoad(t *testing.T) {
	truck := testTruck("t1", 100, 1000)
	truck.CurrentWeight = 80
	now := time.Now()
	pending := []model.Delivery{testDelivery("d1", 30, 100, now)}

	out := FirstFitPacker{}.Pack([]model.Truck{truck}, pending)
	assert.Empty(t, out)
}

func TestAllocateCreatesRoutes(t *testing.T) {
	st := infrastore.NewMemoryStore()
	now := time.Now()
	truck := testTruck("t1", 200, 1000)
	st.PutTruck(truck)
	st.PutDriver(model.Driver{ID: "drv-t1", OperatorID: "op1", Status: model.DriverOnDuty})
	st.PutDelivery(testDelivery("d2", 50, 100, now.Add(time.Hour)))
	st.PutDelivery(testDelivery("d1", 50, 100, now))

	a := newTestAllocator(t, st)
	routes, err := a.Allocate(context.Background(), "op1")
	require.NoError(t, err)
	require.Len(t, routes, 1)

	route := routes[0]
	// Pending deliveries are consumed in pickup-window order.
	assert.Equal(t, []string{"d1", "d2"}, route.DeliveryIDs)
	assert.Equal(t, model.RouteAllocated, route.Status)
	assert.Equal(t, "t1", route.TruckID)
	assert.Equal(t, 100.0, route.TotalWeightKg)

	stored, err := st.Truck(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, stored.Available)
	assert.Equal(t, 100.0, stored.CurrentWeight)

	d, err := st.DeliveriesByRoute(context.Background(), route.ID)
	require.NoError(t, err)
	require.Len(t, d, 2)
	for _, dd := range d {
		assert.Equal(t, model.DeliveryAllocated, dd.Status)
	}
}

func TestAllocateNoTrucks(t *testing.T) {
	st := infrastore.NewMemoryStore()
	st.PutDelivery(testDelivery("d1", 10, 10, time.Now()))

	a := newTestAllocator(t, st)
	_, err := a.Allocate(context.Background(), "op1")
	assert.ErrorIs(t, err, ErrNoTrucks)
}

func TestAllocateConcurrentPassesAssignOnce(t *testing.T) {
	st := infrastore.NewMemoryStore()
	st.PutTruck(testTruck("t1", 200, 1000))
	st.PutTruck(testTruck("t2", 200, 1000))
	st.PutDriver(model.Driver{ID: "drv-t1", OperatorID: "op1", Status: model.DriverOnDuty})
	st.PutDriver(model.Driver{ID: "drv-t2", OperatorID: "op1", Status: model.DriverOnDuty})
	st.PutDelivery(testDelivery("d1", 50, 100, time.Now()))

	a := newTestAllocator(t, st)
	var wg sync.WaitGroup
	results := make([][]model.Route, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = a.Allocate(context.Background(), "op1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	// One pass wins the delivery; the other sees nothing pending.
	assert.Equal(t, 1, len(results[0])+len(results[1]))

	d, err := st.DeliveriesByID(context.Background(), []string{"d1"})
	require.NoError(t, err)
	require.Len(t, d, 1)
	assert.Equal(t, model.DeliveryAllocated, d[0].Status)

	// The delivery's weight is counted on exactly one truck.
	t1, err := st.Truck(context.Background(), "t1")
	require.NoError(t, err)
	t2, err := st.Truck(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, 50.0, t1.CurrentWeight+t2.CurrentWeight)
}

func TestAllocateNothingPending(t *testing.T) {
	st := infrastore.NewMemoryStore()
	a := newTestAllocator(t, st)
	routes, err := a.Allocate(context.Background(), "op1")
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func seedRouteRequest(st *infrastore.MemoryStore, driverKm float64) CreateRouteRequest {
	st.PutTruck(testTruck("t1", 500, 2000))
	st.PutDriver(model.Driver{ID: "drv-t1", OperatorID: "op1", Status: model.DriverOnDuty, TotalDistanceKm: driverKm})
	st.PutDelivery(testDelivery("d1", 100, 400, time.Now()))
	return CreateRouteRequest{
		OperatorID:  "op1",
		TruckID:     "t1",
		DriverID:    "drv-t1",
		DeliveryIDs: []string{"d1"},
		TotalKm:     350,
	}
}

func TestCreateRouteRejectsInexperiencedLongHaul(t *testing.T) {
	st := infrastore.NewMemoryStore()
	// 350km route, driver history 50km: below the 500km experience bar.
	req := seedRouteRequest(st, 50)

	a := newTestAllocator(t, st)
	_, err := a.CreateAndAssignRoute(context.Background(), req)
	var expErr *ExperienceError
	require.ErrorAs(t, err, &expErr)
	assert.True(t, expErr.LongHaul)

	// The rejected transaction must leave the delivery untouched.
	d, derr := st.DeliveriesByID(context.Background(), []string{"d1"})
	require.NoError(t, derr)
	require.Len(t, d, 1)
	assert.Equal(t, model.DeliveryPending, d[0].Status)
}

func TestCreateRouteRejectsExperiencedShortHaul(t *testing.T) {
	st := infrastore.NewMemoryStore()
	req := seedRouteRequest(st, 900)
	req.TotalKm = 120

	a := newTestAllocator(t, st)
	_, err := a.CreateAndAssignRoute(context.Background(), req)
	var expErr *ExperienceError
	require.ErrorAs(t, err, &expErr)
	assert.False(t, expErr.LongHaul)
}

func TestCreateRouteAddsDriverDistance(t *testing.T) {
	st := infrastore.NewMemoryStore()
	req := seedRouteRequest(st, 800)

	a := newTestAllocator(t, st)
	route, err := a.CreateAndAssignRoute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 350.0, route.TotalKm)

	drv, err := st.Driver(context.Background(), "drv-t1")
	require.NoError(t, err)
	assert.Equal(t, 1150.0, drv.TotalDistanceKm)
}

func TestCreateRouteCapacityExceeded(t *testing.T) {
	st := infrastore.NewMemoryStore()
	req := seedRouteRequest(st, 800)
	st.PutDelivery(testDelivery("heavy", 600, 100, time.Now()))
	req.DeliveryIDs = []string{"heavy"}

	a := newTestAllocator(t, st)
	_, err := a.CreateAndAssignRoute(context.Background(), req)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "weight", capErr.Resource)
}

func TestCreateRouteOperatorMismatch(t *testing.T) {
	st := infrastore.NewMemoryStore()
	req := seedRouteRequest(st, 800)
	req.OperatorID = "op2"

	a := newTestAllocator(t, st)
	_, err := a.CreateAndAssignRoute(context.Background(), req)
	assert.True(t, errors.Is(err, ErrOperatorMismatch))
}

func TestCreateRouteDeliveryAlreadyAllocated(t *testing.T) {
	st := infrastore.NewMemoryStore()
	req := seedRouteRequest(st, 800)
	d := testDelivery("d1", 100, 400, time.Now())
	d.Status = model.DeliveryAllocated
	st.PutDelivery(d)

	a := newTestAllocator(t, st)
	_, err := a.CreateAndAssignRoute(context.Background(), req)
	assert.ErrorIs(t, err, ErrDeliveryAllocated)
}
