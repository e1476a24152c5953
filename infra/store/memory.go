package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/freightpool/absorb/core/model"
	corestore "github.com/freightpool/absorb/core/store"
)

// MemoryStore keeps all entities in memory. It is used in tests and for
// lightweight single-process deployments. Records are treated as immutable
// values; every update replaces the whole record.
type MemoryStore struct {
	mu sync.RWMutex
	st *memState
}

type memState struct {
	trucks        map[string]model.Truck
	drivers       map[string]model.Driver
	routes        map[string]model.Route
	hubs          map[string]model.VirtualHub
	deliveries    map[string]model.Delivery
	opportunities map[string]model.Opportunity
	transfers     map[string]model.Transfer
	documents     map[string]model.EWayBill

	// insertion order, for stable iteration
	truckOrder    []string
	hubOrder      []string
	deliveryOrder []string
	routeOrder    []string
	oppOrder      []string
	docOrder      []string
}

func newMemState() *memState {
	return &memState{
		trucks:        map[string]model.Truck{},
		drivers:       map[string]model.Driver{},
		routes:        map[string]model.Route{},
		hubs:          map[string]model.VirtualHub{},
		deliveries:    map[string]model.Delivery{},
		opportunities: map[string]model.Opportunity{},
		transfers:     map[string]model.Transfer{},
		documents:     map[string]model.EWayBill{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.trucks {
		c.trucks[k] = v
	}
	for k, v := range s.drivers {
		c.drivers[k] = v
	}
	for k, v := range s.routes {
		c.routes[k] = v
	}
	for k, v := range s.hubs {
		c.hubs[k] = v
	}
	for k, v := range s.deliveries {
		c.deliveries[k] = v
	}
	for k, v := range s.opportunities {
		c.opportunities[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	c.truckOrder = append([]string(nil), s.truckOrder...)
	c.hubOrder = append([]string(nil), s.hubOrder...)
	c.deliveryOrder = append([]string(nil), s.deliveryOrder...)
	c.routeOrder = append([]string(nil), s.routeOrder...)
	c.oppOrder = append([]string(nil), s.oppOrder...)
	c.docOrder = append([]string(nil), s.docOrder...)
	return c
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newMemState()}
}

// WithTx runs fn against a snapshot of the state. The snapshot replaces the
// live state only if fn succeeds, so a failing transition leaves everything
// untouched.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(corestore.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.st.clone()
	if err := fn(&memTx{st: snapshot}); err != nil {
		return err
	}
	m.st = snapshot
	return nil
}

// Close implements corestore.Store.
func (m *MemoryStore) Close() error { return nil }

// Seed helpers, used by tests and the simulator seeding path.

func (m *MemoryStore) PutTruck(t model.Truck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.trucks[t.ID]; !ok {
		m.st.truckOrder = append(m.st.truckOrder, t.ID)
	}
	m.st.trucks[t.ID] = t
}

func (m *MemoryStore) PutDriver(d model.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.drivers[d.ID] = d
}

func (m *MemoryStore) PutRoute(r model.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.routes[r.ID]; !ok {
		m.st.routeOrder = append(m.st.routeOrder, r.ID)
	}
	m.st.routes[r.ID] = r
}

func (m *MemoryStore) PutHub(h model.VirtualHub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.hubs[h.ID]; !ok {
		m.st.hubOrder = append(m.st.hubOrder, h.ID)
	}
	m.st.hubs[h.ID] = h
}

func (m *MemoryStore) PutDelivery(d model.Delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.deliveries[d.ID]; !ok {
		m.st.deliveryOrder = append(m.st.deliveryOrder, d.ID)
	}
	m.st.deliveries[d.ID] = d
}

func (m *MemoryStore) PutOpportunity(o model.Opportunity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.opportunities[o.ID]; !ok {
		m.st.oppOrder = append(m.st.oppOrder, o.ID)
	}
	m.st.opportunities[o.ID] = o
}

func (m *MemoryStore) PutTransfer(t model.Transfer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.transfers[t.ID] = t
}

func (m *MemoryStore) PutDocument(d model.EWayBill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.documents[d.ID]; !ok {
		m.st.docOrder = append(m.st.docOrder, d.ID)
	}
	m.st.documents[d.ID] = d
}

// Document returns an e-way bill by id, for test assertions.
func (m *MemoryStore) Document(id string) (model.EWayBill, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.st.documents[id]
	return d, ok
}

// Read path: delegate to the same logic the transactions use.

func (m *MemoryStore) Truck(ctx context.Context, id string) (model.Truck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).Truck(ctx, id)
}

func (m *MemoryStore) Driver(ctx context.Context, id string) (model.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).Driver(ctx, id)
}

func (m *MemoryStore) Route(ctx context.Context, id string) (model.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).Route(ctx, id)
}

func (m *MemoryStore) Hub(ctx context.Context, id string) (model.VirtualHub, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).Hub(ctx, id)
}

func (m *MemoryStore) Hubs(ctx context.Context) ([]model.VirtualHub, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).Hubs(ctx)
}

func (m *MemoryStore) Opportunity(ctx context.Context, id string) (model.Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).Opportunity(ctx, id)
}

func (m *MemoryStore) Transfer(ctx context.Context, id string) (model.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).Transfer(ctx, id)
}

func (m *MemoryStore) DeliveriesByID(ctx context.Context, ids []string) ([]model.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).DeliveriesByID(ctx, ids)
}

func (m *MemoryStore) DeliveriesByRoute(ctx context.Context, routeID string) ([]model.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).DeliveriesByRoute(ctx, routeID)
}

func (m *MemoryStore) PendingDeliveries(ctx context.Context, operatorID string) ([]model.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).PendingDeliveries(ctx, operatorID)
}

func (m *MemoryStore) AvailableTrucks(ctx context.Context, operatorID string) ([]model.Truck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).AvailableTrucks(ctx, operatorID)
}

func (m *MemoryStore) ActiveFleet(ctx context.Context) ([]corestore.FleetEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).ActiveFleet(ctx)
}

func (m *MemoryStore) ActiveOpportunityForPair(ctx context.Context, routeA, routeB string, now time.Time) (*model.Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).ActiveOpportunityForPair(ctx, routeA, routeB, now)
}

func (m *MemoryStore) ListActiveOpportunities(ctx context.Context, now time.Time) ([]model.Opportunity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memTx{st: m.st}).ListActiveOpportunities(ctx, now)
}

// memTx implements corestore.Tx against a state snapshot.
type memTx struct {
	st *memState
}

func (t *memTx) Truck(_ context.Context, id string) (model.Truck, error) {
	tr, ok := t.st.trucks[id]
	if !ok {
		return model.Truck{}, corestore.ErrNotFound
	}
	return tr, nil
}

func (t *memTx) Driver(_ context.Context, id string) (model.Driver, error) {
	d, ok := t.st.drivers[id]
	if !ok {
		return model.Driver{}, corestore.ErrNotFound
	}
	return d, nil
}

func (t *memTx) Route(_ context.Context, id string) (model.Route, error) {
	r, ok := t.st.routes[id]
	if !ok {
		return model.Route{}, corestore.ErrNotFound
	}
	return r, nil
}

func (t *memTx) Hub(_ context.Context, id string) (model.VirtualHub, error) {
	h, ok := t.st.hubs[id]
	if !ok {
		return model.VirtualHub{}, corestore.ErrNotFound
	}
	return h, nil
}

func (t *memTx) Hubs(_ context.Context) ([]model.VirtualHub, error) {
	hubs := make([]model.VirtualHub, 0, len(t.st.hubOrder))
	for _, id := range t.st.hubOrder {
		hubs = append(hubs, t.st.hubs[id])
	}
	return hubs, nil
}

func (t *memTx) Opportunity(_ context.Context, id string) (model.Opportunity, error) {
	o, ok := t.st.opportunities[id]
	if !ok {
		return model.Opportunity{}, corestore.ErrNotFound
	}
	return o, nil
}

func (t *memTx) Transfer(_ context.Context, id string) (model.Transfer, error) {
	tr, ok := t.st.transfers[id]
	if !ok {
		return model.Transfer{}, corestore.ErrNotFound
	}
	return tr, nil
}

func (t *memTx) DeliveriesByID(_ context.Context, ids []string) ([]model.Delivery, error) {
	out := make([]model.Delivery, 0, len(ids))
	for _, id := range ids {
		if d, ok := t.st.deliveries[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (t *memTx) DeliveriesByRoute(_ context.Context, routeID string) ([]model.Delivery, error) {
	var out []model.Delivery
	for _, id := range t.st.deliveryOrder {
		if d := t.st.deliveries[id]; d.RouteID == routeID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (t *memTx) PendingDeliveries(_ context.Context, operatorID string) ([]model.Delivery, error) {
	var out []model.Delivery
	for _, id := range t.st.deliveryOrder {
		d := t.st.deliveries[id]
		if d.OperatorID == operatorID && d.Status == model.DeliveryPending {
			out = append(out, d)
		}
	}
	// Earliest pickup window first; insertion order breaks ties.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PickupWindow.Before(out[j].PickupWindow)
	})
	return out, nil
}

func (t *memTx) AvailableTrucks(_ context.Context, operatorID string) ([]model.Truck, error) {
	var out []model.Truck
	for _, id := range t.st.truckOrder {
		tr := t.st.trucks[id]
		if tr.OperatorID == operatorID && tr.Available {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (t *memTx) ActiveFleet(ctx context.Context) ([]corestore.FleetEntry, error) {
	var out []corestore.FleetEntry
	for _, id := range t.st.truckOrder {
		tr := t.st.trucks[id]
		if !tr.Available || !tr.HasPosition {
			continue
		}
		drv, ok := t.st.drivers[tr.DriverID]
		if !ok || !drv.OnRoad() {
			continue
		}
		route, ok := t.activeRouteForTruck(tr.ID)
		if !ok {
			continue
		}
		deliveries, _ := t.DeliveriesByRoute(ctx, route.ID)
		out = append(out, corestore.FleetEntry{
			Truck:      tr,
			Driver:     drv,
			Route:      route,
			Deliveries: deliveries,
		})
	}
	return out, nil
}

func (t *memTx) activeRouteForTruck(truckID string) (model.Route, bool) {
	for _, id := range t.st.routeOrder {
		r := t.st.routes[id]
		if r.TruckID == truckID && r.Status == model.RouteActive {
			return r, true
		}
	}
	return model.Route{}, false
}

func (t *memTx) ActiveOpportunityForPair(_ context.Context, routeA, routeB string, now time.Time) (*model.Opportunity, error) {
	for _, id := range t.st.oppOrder {
		o := t.st.opportunities[id]
		if !o.SamePair(routeA, routeB) {
			continue
		}
		if !activeOpportunityStatus(o.Status) || o.Expired(now) {
			continue
		}
		cp := o
		return &cp, nil
	}
	return nil, nil
}

func (t *memTx) ListActiveOpportunities(_ context.Context, now time.Time) ([]model.Opportunity, error) {
	var out []model.Opportunity
	for _, id := range t.st.oppOrder {
		o := t.st.opportunities[id]
		if activeOpportunityStatus(o.Status) && !o.Expired(now) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProposedAt.After(out[j].ProposedAt)
	})
	return out, nil
}

func (t *memTx) CreateRoute(_ context.Context, r model.Route) error {
	if _, ok := t.st.routes[r.ID]; ok {
		return fmt.Errorf("route %s already exists: %w", r.ID, corestore.ErrConflict)
	}
	t.st.routes[r.ID] = r
	t.st.routeOrder = append(t.st.routeOrder, r.ID)
	return nil
}

func (t *memTx) CreateOpportunity(_ context.Context, o model.Opportunity) error {
	if _, ok := t.st.opportunities[o.ID]; ok {
		return fmt.Errorf("opportunity %s already exists: %w", o.ID, corestore.ErrConflict)
	}
	t.st.opportunities[o.ID] = o
	t.st.oppOrder = append(t.st.oppOrder, o.ID)
	return nil
}

func (t *memTx) CreateTransfer(_ context.Context, tr model.Transfer) error {
	if _, ok := t.st.transfers[tr.ID]; ok {
		return fmt.Errorf("transfer %s already exists: %w", tr.ID, corestore.ErrConflict)
	}
	t.st.transfers[tr.ID] = tr
	return nil
}

func (t *memTx) UpdateOpportunity(_ context.Context, o model.Opportunity, expect model.OpportunityStatus) error {
	cur, ok := t.st.opportunities[o.ID]
	if !ok {
		return corestore.ErrNotFound
	}
	if cur.Status != expect {
		return fmt.Errorf("opportunity %s is %s, expected %s: %w", o.ID, cur.Status, expect, corestore.ErrConflict)
	}
	t.st.opportunities[o.ID] = o
	return nil
}

func (t *memTx) UpdateTransfer(_ context.Context, tr model.Transfer, expect ...model.TransferStatus) error {
	cur, ok := t.st.transfers[tr.ID]
	if !ok {
		return corestore.ErrNotFound
	}
	matched := false
	for _, s := range expect {
		if cur.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("transfer %s is %s: %w", tr.ID, cur.Status, corestore.ErrConflict)
	}
	t.st.transfers[tr.ID] = tr
	return nil
}

func (t *memTx) AssignDeliveries(_ context.Context, ids []string, routeID, truckID, driverID string, status model.DeliveryStatus) error {
	for _, id := range ids {
		d, ok := t.st.deliveries[id]
		if !ok {
			return fmt.Errorf("delivery %s: %w", id, corestore.ErrNotFound)
		}
		d.RouteID = routeID
		d.TruckID = truckID
		d.DriverID = driverID
		d.Status = status
		t.st.deliveries[id] = d
	}
	return nil
}

func (t *memTx) AdjustTruckLoad(_ context.Context, id string, dWeightKg, dVolumeL float64) error {
	tr, ok := t.st.trucks[id]
	if !ok {
		return fmt.Errorf("truck %s: %w", id, corestore.ErrNotFound)
	}
	tr.CurrentWeight += dWeightKg
	tr.CurrentVolume += dVolumeL
	if err := tr.Validate(); err != nil {
		return err
	}
	t.st.trucks[id] = tr
	return nil
}

func (t *memTx) SetTruckAvailability(_ context.Context, id string, available bool) error {
	tr, ok := t.st.trucks[id]
	if !ok {
		return fmt.Errorf("truck %s: %w", id, corestore.ErrNotFound)
	}
	tr.Available = available
	t.st.trucks[id] = tr
	return nil
}

func (t *memTx) AddDriverDistance(_ context.Context, id string, km float64) error {
	d, ok := t.st.drivers[id]
	if !ok {
		return fmt.Errorf("driver %s: %w", id, corestore.ErrNotFound)
	}
	d.TotalDistanceKm += km
	t.st.drivers[id] = d
	return nil
}

func (t *memTx) TransferDocuments(_ context.Context, fromDriver, toDriver, vehicleNo string) (int, error) {
	n := 0
	for _, id := range t.st.docOrder {
		doc := t.st.documents[id]
		if doc.DriverID != fromDriver || doc.Status != model.DocumentActive {
			continue
		}
		doc.DriverID = toDriver
		doc.VehicleNo = vehicleNo
		doc.Status = model.DocumentTransferred
		t.st.documents[id] = doc
		n++
	}
	return n, nil
}

func (t *memTx) ExpireOpportunities(_ context.Context, now time.Time) (int, error) {
	n := 0
	for _, id := range t.st.oppOrder {
		o := t.st.opportunities[id]
		if activeOpportunityStatus(o.Status) && o.Expired(now) {
			o.Status = model.OpportunityExpired
			t.st.opportunities[id] = o
			n++
		}
	}
	return n, nil
}

func activeOpportunityStatus(s model.OpportunityStatus) bool {
	for _, a := range model.ActiveOpportunityStatuses {
		if s == a {
			return true
		}
	}
	return false
}
