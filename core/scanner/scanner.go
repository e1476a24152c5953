package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freightpool/absorb/core/geo"
	"github.com/freightpool/absorb/core/logger"
	"github.com/freightpool/absorb/core/metrics"
	"github.com/freightpool/absorb/core/model"
	"github.com/freightpool/absorb/core/notify"
	"github.com/freightpool/absorb/core/store"
)

// Scanner periodically inspects the active fleet pairwise for absorption
// opportunities. Cycles are mutually exclusive: a cycle that overruns the
// period delays the next one instead of running concurrently with it.
type Scanner struct {
	store   store.Store
	bus     notify.Publisher
	cfg     Config
	log     logger.Logger
	metrics metrics.Sink

	now   func() time.Time
	newID func() string

	mu sync.Mutex // serializes cycles
}

// New creates a Scanner.
func New(st store.Store, bus notify.Publisher, cfg Config, log logger.Logger, sink metrics.Sink) (*Scanner, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("scanner: nil parameter provided to New")
	}
	if bus == nil {
		bus = notify.NopPublisher{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{
		store:   st,
		bus:     bus,
		cfg:     cfg,
		log:     log,
		metrics: sink,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// Run executes scan cycles until the context is canceled. The first cycle
// starts immediately. Cycle errors are logged and never crash the loop.
func (s *Scanner) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.IntervalSeconds) * time.Second
	s.log.Infof("starting proximity scanner (%s interval)", interval)

	if _, err := s.ScanOnce(ctx); err != nil {
		s.log.Errorf("scan cycle: %v", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infof("proximity scanner stopped")
			return
		case <-ticker.C:
			if _, err := s.ScanOnce(ctx); err != nil {
				s.log.Errorf("scan cycle: %v", err)
			}
		}
	}
}

// ScanOnce runs a single scan cycle and returns the opportunities it
// created. It also backs the synchronous manual-search path, which is kept
// only as a deprecated alias for the continuous loop.
func (s *Scanner) ScanOnce(ctx context.Context) ([]model.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	created, trucks, pairs, expired, err := s.scan(ctx)

	ev := metrics.ScanCycleEvent{
		Trucks:        trucks,
		PairsChecked:  pairs,
		Opportunities: len(created),
		Expired:       expired,
		Duration:      s.now().Sub(start),
		Time:          start,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if merr := s.metrics.RecordScanCycle(ev); merr != nil {
		s.log.Errorf("scan metrics error: %v", merr)
	}
	return created, err
}

func (s *Scanner) scan(ctx context.Context) (created []model.Opportunity, trucks, pairs, expired int, err error) {
	now := s.now()

	// Sweep expired opportunities first so stale ones never block new pairs.
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		n, err := tx.ExpireOpportunities(ctx, now)
		expired = n
		return err
	})
	if err != nil {
		return nil, 0, 0, 0, fmt.Errorf("scanner: expiry sweep: %w", err)
	}
	if expired > 0 {
		s.log.Infof("expired %d stale opportunities", expired)
	}

	fleet, err := s.store.ActiveFleet(ctx)
	if err != nil {
		return nil, 0, 0, expired, fmt.Errorf("scanner: load fleet: %w", err)
	}
	trucks = len(fleet)
	hubs, err := s.store.Hubs(ctx)
	if err != nil {
		return nil, trucks, 0, expired, fmt.Errorf("scanner: load hubs: %w", err)
	}
	s.log.Debugf("scanning %d active trucks", len(fleet))

	for i := 0; i < len(fleet); i++ {
		for j := i + 1; j < len(fleet); j++ {
			pairs++
			opp, ok := s.evaluatePair(ctx, fleet[i], fleet[j], hubs, now)
			if !ok {
				continue
			}
			err := s.store.WithTx(ctx, func(tx store.Tx) error {
				return tx.CreateOpportunity(ctx, opp)
			})
			if err != nil {
				s.log.Errorf("create opportunity for routes %s/%s: %v", opp.Route1ID, opp.Route2ID, err)
				continue
			}
			created = append(created, opp)
			s.publishProposal(fleet[i], fleet[j], opp, hubName(hubs, opp.NearestHubID))
			if merr := s.metrics.RecordOpportunity(metrics.OpportunityEvent{
				OpportunityID: opp.ID,
				Route1ID:      opp.Route1ID,
				Route2ID:      opp.Route2ID,
				HubID:         opp.NearestHubID,
				DistanceKm:    opp.OverlapDistanceKm,
				CarbonSavedKg: opp.CarbonSavedKg,
				Time:          now,
			}); merr != nil {
				s.log.Errorf("opportunity metrics error: %v", merr)
			}
		}
	}
	return created, trucks, pairs, expired, nil
}

// evaluatePair applies the proximity, capacity, cargo, overlap, hub and
// dedupe constraints to one unordered truck pair. The first truck of the
// pair is tried as the importer; the relation is not symmetric.
func (s *Scanner) evaluatePair(ctx context.Context, imp, exp store.FleetEntry, hubs []model.VirtualHub, now time.Time) (model.Opportunity, bool) {
	dist := geo.Distance(imp.Truck.Position, exp.Truck.Position)
	if dist > s.cfg.ProximityKm {
		return model.Opportunity{}, false
	}

	if !imp.Truck.CanAbsorb(exp.Truck) {
		s.log.Debugf("capacity constraint failed for truck %s", imp.Truck.LicensePlate)
		return model.Opportunity{}, false
	}

	if !routesCompatible(cargoTypes(imp.Deliveries), cargoTypes(exp.Deliveries)) {
		s.log.Debugf("cargo compatibility failed for trucks %s/%s", imp.Truck.LicensePlate, exp.Truck.LicensePlate)
		return model.Opportunity{}, false
	}

	if !imp.Route.SharesHub(exp.Route) {
		return model.Opportunity{}, false
	}

	hub := nearestHub(imp.Truck.Position, hubs, s.cfg.HubRadiusKm)
	if hub == nil {
		s.log.Debugf("no hub within %.0fkm of truck %s", s.cfg.HubRadiusKm, imp.Truck.LicensePlate)
		return model.Opportunity{}, false
	}

	existing, err := s.store.ActiveOpportunityForPair(ctx, imp.Route.ID, exp.Route.ID, now)
	if err != nil {
		s.log.Errorf("opportunity dedupe check: %v", err)
		return model.Opportunity{}, false
	}
	if existing != nil {
		return model.Opportunity{}, false
	}

	factor := imp.Truck.CO2PerKm
	if factor <= 0 {
		factor = s.cfg.CO2PerKm
	}

	return model.Opportunity{
		ID:                  s.newID(),
		Route1ID:            imp.Route.ID,
		Route2ID:            exp.Route.ID,
		OverlapDistanceKm:   dist,
		OverlapCenter:       geo.Midpoint(imp.Truck.Position, exp.Truck.Position),
		NearestHubID:        hub.ID,
		EligibleDeliveryIDs: model.DeliveryIDs(exp.Deliveries),
		Route1SpaceVolumeL:  imp.Truck.ResidualVolume(),
		Route2SpaceVolumeL:  exp.Truck.ResidualVolume(),
		DistanceSavedKm:     dist,
		CarbonSavedKg:       dist * factor,
		EstimatedMeetTime:   now.Add(time.Duration(s.cfg.MeetOffsetMinutes) * time.Minute),
		ProposedAt:          now,
		ExpiresAt:           now.Add(time.Duration(s.cfg.TTLMinutes) * time.Minute),
		Status:              model.OpportunityPending,
	}, true
}

// publishProposal is best-effort: publish failures are logged, never
// propagated.
func (s *Scanner) publishProposal(imp, exp store.FleetEntry, opp model.Opportunity, hubName string) {
	ev := notify.ProposalCreated{
		OpportunityID: opp.ID,
		Importer: notify.TruckRef{
			TruckID:      imp.Truck.ID,
			LicensePlate: imp.Truck.LicensePlate,
			DriverID:     imp.Driver.ID,
		},
		Exporter: notify.TruckRef{
			TruckID:      exp.Truck.ID,
			LicensePlate: exp.Truck.LicensePlate,
			DriverID:     exp.Driver.ID,
		},
		HubID:         opp.NearestHubID,
		HubName:       hubName,
		DistanceKm:    opp.OverlapDistanceKm,
		CarbonSavedKg: opp.CarbonSavedKg,
		ExpiresAt:     opp.ExpiresAt,
	}
	if err := s.bus.Publish(notify.DispatcherTopic, ev); err != nil {
		s.log.Errorf("proposal publish failed: %v", err)
	}
}

func nearestHub(p geo.Point, hubs []model.VirtualHub, maxKm float64) *model.VirtualHub {
	var best *model.VirtualHub
	bestDist := 0.0
	for i := range hubs {
		d := geo.Distance(p, hubs[i].Position)
		if d > maxKm {
			continue
		}
		if best == nil || d < bestDist {
			best = &hubs[i]
			bestDist = d
		}
	}
	return best
}

func cargoTypes(deliveries []model.Delivery) []string {
	types := make([]string, len(deliveries))
	for i, d := range deliveries {
		types[i] = d.CargoType
	}
	return types
}

func hubName(hubs []model.VirtualHub, id string) string {
	for _, h := range hubs {
		if h.ID == id {
			return h.Name
		}
	}
	return ""
}
