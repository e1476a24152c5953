package handshake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freightpool/absorb/core/geo"
	"github.com/freightpool/absorb/core/metrics"
	"github.com/freightpool/absorb/core/model"
	"github.com/freightpool/absorb/core/notify"
	"github.com/freightpool/absorb/infra/logger"
	infranotify "github.com/freightpool/absorb/infra/notify"
	infrastore "github.com/freightpool/absorb/infra/store"
)

const testSecret = "handover-test-secret"

// seedOpportunity seeds a pending opportunity between importer route r1
// (driver d1, truck t1) and exporter route r2 (driver d2, truck t2) with two
// eligible deliveries and two active e-way bills on the exporter.
func seedOpportunity(st *infrastore.MemoryStore) model.Opportunity {
	hub := model.VirtualHub{ID: "hub1", Name: "Central Hub", Address: "Hub Road 1", Position: geo.Point{Lat: 19.07, Lng: 72.87}}
	st.PutHub(hub)
	st.PutDriver(model.Driver{ID: "d1", Name: "Asha", OperatorID: "op1", Status: model.DriverInTransit})
	st.PutDriver(model.Driver{ID: "d2", Name: "Ravi", OperatorID: "op1", Status: model.DriverInTransit})
	st.PutTruck(model.Truck{
		ID: "t1", LicensePlate: "MH-12-0001", OperatorID: "op1", DriverID: "d1",
		MaxWeightKg: 500, MaxVolumeL: 2000, CurrentWeight: 100, CurrentVolume: 300,
		HasPosition: true, Available: true,
	})
	st.PutTruck(model.Truck{
		ID: "t2", LicensePlate: "MH-12-0002", OperatorID: "op1", DriverID: "d2",
		MaxWeightKg: 500, MaxVolumeL: 2000, CurrentWeight: 200, CurrentVolume: 600,
		HasPosition: true, Available: true,
	})
	st.PutRoute(model.Route{ID: "r1", OperatorID: "op1", TruckID: "t1", DriverID: "d1", Status: model.RouteActive})
	st.PutRoute(model.Route{ID: "r2", OperatorID: "op1", TruckID: "t2", DriverID: "d2", Status: model.RouteActive})
	st.PutDelivery(model.Delivery{
		ID: "del2", PackageID: "PKG2", OperatorID: "op1", RouteID: "r2", TruckID: "t2", DriverID: "d2",
		CargoType: "Textiles", WeightKg: 100, VolumeL: 300,
		PickupLocation: "Warehouse A", DropLocation: "Market B", Status: model.DeliveryInTransit,
	})
	st.PutDelivery(model.Delivery{
		ID: "del3", PackageID: "PKG3", OperatorID: "op1", RouteID: "r2", TruckID: "t2", DriverID: "d2",
		CargoType: "Textiles", WeightKg: 100, VolumeL: 300,
		PickupLocation: "Warehouse A", DropLocation: "Market C", Status: model.DeliveryInTransit,
	})
	st.PutDocument(model.EWayBill{ID: "ewb1", Number: "EWB-1", DriverID: "d2", VehicleNo: "MH-12-0002", Status: model.DocumentActive})
	st.PutDocument(model.EWayBill{ID: "ewb2", Number: "EWB-2", DriverID: "d2", VehicleNo: "MH-12-0002", Status: model.DocumentActive})
	// Another driver's bill must stay put.
	st.PutDocument(model.EWayBill{ID: "ewb3", Number: "EWB-3", DriverID: "d9", VehicleNo: "MH-12-0009", Status: model.DocumentActive})

	now := time.Now()
	opp := model.Opportunity{
		ID:                  "opp1",
		Route1ID:            "r1",
		Route2ID:            "r2",
		OverlapDistanceKm:   0.07,
		NearestHubID:        "hub1",
		EligibleDeliveryIDs: []string{"del2", "del3"},
		Route1SpaceVolumeL:  1700,
		Route2SpaceVolumeL:  1400,
		DistanceSavedKm:     0.07,
		CarbonSavedKg:       0.035,
		EstimatedMeetTime:   now.Add(30 * time.Minute),
		ProposedAt:          now,
		ExpiresAt:           now.Add(time.Hour),
		Status:              model.OpportunityPending,
	}
	st.PutOpportunity(opp)
	return opp
}

func newTestOrchestrator(t *testing.T, st *infrastore.MemoryStore, bus notify.Publisher) *Orchestrator {
	t.Helper()
	o, err := New(st, bus, Config{QRSecret: testSecret}, logger.NopLogger{}, nil)
	require.NoError(t, err)
	return o
}

func TestAcceptOpportunity(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	rec := infranotify.NewRecorder()
	o := newTestOrchestrator(t, st, rec)

	res, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)
	require.NotEmpty(t, res.TransferID)
	assert.Equal(t, "hub1", res.Hub.ID)

	opp, err := st.Opportunity(context.Background(), "opp1")
	require.NoError(t, err)
	assert.Equal(t, model.OpportunityBothAccepted, opp.Status)

	tr, err := st.Transfer(context.Background(), res.TransferID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferPending, tr.Status)
	assert.Equal(t, "d2", tr.ExporterDriverID)
	assert.Equal(t, "d1", tr.ImporterDriverID)
	assert.Equal(t, []string{"del2", "del3"}, tr.DeliveryIDsToTransfer)

	impEv, ok := rec.Last(notify.DriverTopic("d1")).(notify.HandshakeRequired)
	require.True(t, ok)
	assert.Equal(t, notify.RoleImporter, impEv.Role)
	assert.Equal(t, "MH-12-0002", impEv.CounterpartTruck)
	assert.Equal(t, "Ravi", impEv.CounterpartDriver)
	assert.False(t, impEv.EstimatedMeetTime.IsZero())

	expEv, ok := rec.Last(notify.DriverTopic("d2")).(notify.HandshakeRequired)
	require.True(t, ok)
	assert.Equal(t, notify.RoleExporter, expEv.Role)
}

func TestAcceptExpiredOpportunity(t *testing.T) {
	st := infrastore.NewMemoryStore()
	opp := seedOpportunity(st)
	opp.ExpiresAt = time.Now().Add(-time.Minute)
	st.PutOpportunity(opp)
	o := newTestOrchestrator(t, st, nil)

	_, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	assert.ErrorIs(t, err, ErrOpportunityExpired)
}

func TestAcceptTwice(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	o := newTestOrchestrator(t, st, nil)

	_, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)
	_, err = o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestIssueQRExporterOnly(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	o := newTestOrchestrator(t, st, nil)
	res, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)

	_, err = o.IssueQR(context.Background(), res.TransferID, "d1")
	assert.ErrorIs(t, err, ErrNotExporter)

	payload, err := o.IssueQR(context.Background(), res.TransferID, "d2")
	require.NoError(t, err)
	require.NotEmpty(t, payload)

	decoded, err := NewQRSigner(testSecret).Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, res.TransferID, decoded.TransferID)
	assert.ElementsMatch(t, []string{"del2", "del3"}, decoded.DeliveryIDs)
	assert.Equal(t, 200.0, decoded.TotalWeightKg)
	assert.Equal(t, 600.0, decoded.TotalVolumeL)
	require.Len(t, decoded.Packages, 2)
	assert.Equal(t, "PKG2", decoded.Packages[0].PackageID)
}

func TestVerifyQR(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	rec := infranotify.NewRecorder()
	o := newTestOrchestrator(t, st, rec)
	res, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)
	payload, err := o.IssueQR(context.Background(), res.TransferID, "d2")
	require.NoError(t, err)

	_, err = o.VerifyQR(context.Background(), res.TransferID, "d2", payload, geo.Point{})
	assert.ErrorIs(t, err, ErrNotImporter)

	checklist, err := o.VerifyQR(context.Background(), res.TransferID, "d1", payload, geo.Point{Lat: 19.07, Lng: 72.87})
	require.NoError(t, err)
	require.Len(t, checklist, 2)
	assert.Equal(t, "PKG2", checklist[0].PackageID)
	assert.False(t, checklist[0].Verified)

	tr, err := st.Transfer(context.Background(), res.TransferID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferQRScanned, tr.Status)
	assert.False(t, tr.ScannedAt.IsZero())

	ev, ok := rec.Last(notify.DispatcherTopic).(notify.ScanConfirmed)
	require.True(t, ok)
	assert.Equal(t, res.TransferID, ev.TransferID)
	assert.Equal(t, "d1", ev.DriverID)
}

func TestVerifyQRRejectsForeignPayload(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	o := newTestOrchestrator(t, st, nil)
	res, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)

	// A payload signed for another transfer never verifies here.
	deliveries, err := st.DeliveriesByID(context.Background(), []string{"del2", "del3"})
	require.NoError(t, err)
	foreign, err := NewQRSigner(testSecret).Issue("other-transfer", deliveries, time.Now())
	require.NoError(t, err)

	_, err = o.VerifyQR(context.Background(), res.TransferID, "d1", foreign, geo.Point{})
	assert.ErrorIs(t, err, ErrQRMismatch)
}

func TestVerifyQRRejectsTamperedPayload(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	o := newTestOrchestrator(t, st, nil)
	res, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)

	_, err = o.VerifyQR(context.Background(), res.TransferID, "d1", "not-a-signed-payload", geo.Point{})
	assert.ErrorIs(t, err, ErrQRInvalid)

	// Same claims, wrong secret.
	deliveries, err := st.DeliveriesByID(context.Background(), []string{"del2", "del3"})
	require.NoError(t, err)
	forged, err := NewQRSigner("wrong-secret").Issue(res.TransferID, deliveries, time.Now())
	require.NoError(t, err)
	_, err = o.VerifyQR(context.Background(), res.TransferID, "d1", forged, geo.Point{})
	assert.ErrorIs(t, err, ErrQRInvalid)
}

func TestCompleteHandover(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	rec := infranotify.NewRecorder()
	o := newTestOrchestrator(t, st, rec)
	res, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)
	payload, err := o.IssueQR(context.Background(), res.TransferID, "d2")
	require.NoError(t, err)
	checklist, err := o.VerifyQR(context.Background(), res.TransferID, "d1", payload, geo.Point{})
	require.NoError(t, err)
	for i := range checklist {
		checklist[i].Verified = true
	}

	before1, _ := st.Truck(context.Background(), "t1")
	before2, _ := st.Truck(context.Background(), "t2")

	_, err = o.CompleteHandover(context.Background(), res.TransferID, "d2", nil, nil)
	assert.ErrorIs(t, err, ErrNotImporter)

	result, err := o.CompleteHandover(context.Background(), res.TransferID, "d1", []string{"photo1.jpg"}, checklist)
	require.NoError(t, err)
	assert.Equal(t, 2, result.UpdatedDeliveries)
	assert.Equal(t, 2, result.UpdatedDocuments)

	// Cargo moved onto the importer's route and truck.
	deliveries, err := st.DeliveriesByID(context.Background(), []string{"del2", "del3"})
	require.NoError(t, err)
	for _, d := range deliveries {
		assert.Equal(t, "r1", d.RouteID)
		assert.Equal(t, "t1", d.TruckID)
		assert.Equal(t, "d1", d.DriverID)
		assert.Equal(t, model.DeliveryTransferred, d.Status)
	}

	// Load shifted, total conserved.
	after1, _ := st.Truck(context.Background(), "t1")
	after2, _ := st.Truck(context.Background(), "t2")
	assert.Equal(t, before1.CurrentWeight+200, after1.CurrentWeight)
	assert.Equal(t, before2.CurrentWeight-200, after2.CurrentWeight)
	assert.Equal(t, before1.CurrentWeight+before2.CurrentWeight, after1.CurrentWeight+after2.CurrentWeight)
	assert.Equal(t, before1.CurrentVolume+before2.CurrentVolume, after1.CurrentVolume+after2.CurrentVolume)

	// Exporter documents flipped to the importer's vehicle.
	for _, id := range []string{"ewb1", "ewb2"} {
		doc, ok := st.Document(id)
		require.True(t, ok)
		assert.Equal(t, "d1", doc.DriverID)
		assert.Equal(t, "MH-12-0001", doc.VehicleNo)
		assert.Equal(t, model.DocumentTransferred, doc.Status)
	}
	other, ok := st.Document("ewb3")
	require.True(t, ok)
	assert.Equal(t, "d9", other.DriverID)
	assert.Equal(t, model.DocumentActive, other.Status)

	opp, err := st.Opportunity(context.Background(), "opp1")
	require.NoError(t, err)
	assert.Equal(t, model.OpportunityCompleted, opp.Status)

	tr, err := st.Transfer(context.Background(), res.TransferID)
	require.NoError(t, err)
	assert.Equal(t, model.TransferCompleted, tr.Status)
	assert.Equal(t, []string{"photo1.jpg"}, tr.Photos)
	assert.True(t, tr.Checklist[0].Verified)

	done, ok := rec.Last(notify.DispatcherTopic).(notify.TransferCompleted)
	require.True(t, ok)
	assert.Equal(t, "t1", done.NewTruckID)
	impDone, ok := rec.Last(notify.DriverTopic("d1")).(notify.TransferCompleted)
	require.True(t, ok)
	assert.Equal(t, notify.RoleImporter, impDone.Role)
}

// storeReadingSink reads the transfer back from the store while recording.
// The read blocks unless the transaction has already committed.
type storeReadingSink struct {
	metrics.NopSink
	st     *infrastore.MemoryStore
	status model.TransferStatus
	weight float64
}

func (s *storeReadingSink) RecordTransfer(ev metrics.TransferEvent) error {
	tr, err := s.st.Transfer(context.Background(), ev.TransferID)
	if err != nil {
		return err
	}
	s.status = tr.Status
	s.weight = ev.WeightKg
	return nil
}

func TestCompleteRecordsMetricsAfterCommit(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	sink := &storeReadingSink{st: st}
	o, err := New(st, nil, Config{QRSecret: testSecret}, logger.NopLogger{}, sink)
	require.NoError(t, err)

	res, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)
	payload, err := o.IssueQR(context.Background(), res.TransferID, "d2")
	require.NoError(t, err)
	_, err = o.VerifyQR(context.Background(), res.TransferID, "d1", payload, geo.Point{})
	require.NoError(t, err)

	_, err = o.CompleteHandover(context.Background(), res.TransferID, "d1", nil, nil)
	require.NoError(t, err)

	// The sink observed the committed transfer, not a mid-transaction state.
	assert.Equal(t, model.TransferCompleted, sink.status)
	assert.Equal(t, 200.0, sink.weight)
}

func TestCompleteRequiresScan(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	o := newTestOrchestrator(t, st, nil)
	res, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)

	_, err = o.CompleteHandover(context.Background(), res.TransferID, "d1", nil, nil)
	assert.ErrorIs(t, err, ErrQRNotScanned)
}

func TestCompleteTwice(t *testing.T) {
	st := infrastore.NewMemoryStore()
	seedOpportunity(st)
	o := newTestOrchestrator(t, st, nil)
	res, err := o.AcceptOpportunity(context.Background(), "opp1", "disp1")
	require.NoError(t, err)
	payload, err := o.IssueQR(context.Background(), res.TransferID, "d2")
	require.NoError(t, err)
	_, err = o.VerifyQR(context.Background(), res.TransferID, "d1", payload, geo.Point{})
	require.NoError(t, err)

	_, err = o.CompleteHandover(context.Background(), res.TransferID, "d1", nil, nil)
	require.NoError(t, err)

	// A second attempt finds the transfer already completed.
	_, err = o.CompleteHandover(context.Background(), res.TransferID, "d1", nil, nil)
	assert.ErrorIs(t, err, ErrQRNotScanned)
}
