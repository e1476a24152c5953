package handshake

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/freightpool/absorb/core/geo"
	"github.com/freightpool/absorb/core/logger"
	"github.com/freightpool/absorb/core/metrics"
	"github.com/freightpool/absorb/core/model"
	"github.com/freightpool/absorb/core/notify"
	"github.com/freightpool/absorb/core/store"
)

// Orchestrator drives an accepted opportunity through the QR handshake to a
// completed, atomic cargo handover. Every transition runs in one transaction
// with a status check-and-set; notifications are published after commit and
// never fail the transition.
type Orchestrator struct {
	store   store.Store
	bus     notify.Publisher
	signer  *QRSigner
	log     logger.Logger
	metrics metrics.Sink

	now   func() time.Time
	newID func() string
}

// New creates an Orchestrator.
func New(st store.Store, bus notify.Publisher, cfg Config, log logger.Logger, sink metrics.Sink) (*Orchestrator, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("handshake: nil parameter provided to New")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bus == nil {
		bus = notify.NopPublisher{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		store:   st,
		bus:     bus,
		signer:  NewQRSigner(cfg.QRSecret),
		log:     log,
		metrics: sink,
		now:     time.Now,
		newID:   uuid.NewString,
	}, nil
}

// AcceptResult is returned to the dispatcher after accepting an opportunity.
type AcceptResult struct {
	TransferID string
	Hub        model.VirtualHub
}

// AcceptOpportunity marks a pending opportunity as accepted by both sides,
// creates its transfer and notifies both drivers with their handover role.
func (o *Orchestrator) AcceptOpportunity(ctx context.Context, opportunityID, dispatcherID string) (AcceptResult, error) {
	now := o.now()
	var (
		transfer model.Transfer
		hub      model.VirtualHub
		impRoute model.Route
		expRoute model.Route
		impTruck model.Truck
		expTruck model.Truck
		impName  string
		expName  string
		meetTime time.Time
	)
	err := o.store.WithTx(ctx, func(tx store.Tx) error {
		opp, err := tx.Opportunity(ctx, opportunityID)
		if err != nil {
			return fmt.Errorf("opportunity %s: %w", opportunityID, err)
		}
		if opp.Expired(now) {
			return ErrOpportunityExpired
		}
		if opp.Status != model.OpportunityPending {
			return ErrAlreadyProcessed
		}
		if impRoute, err = tx.Route(ctx, opp.Route1ID); err != nil {
			return err
		}
		if expRoute, err = tx.Route(ctx, opp.Route2ID); err != nil {
			return err
		}
		if hub, err = tx.Hub(ctx, opp.NearestHubID); err != nil {
			return err
		}
		if impTruck, err = tx.Truck(ctx, impRoute.TruckID); err != nil {
			return err
		}
		if expTruck, err = tx.Truck(ctx, expRoute.TruckID); err != nil {
			return err
		}
		impDriver, err := tx.Driver(ctx, impRoute.DriverID)
		if err != nil {
			return err
		}
		expDriver, err := tx.Driver(ctx, expRoute.DriverID)
		if err != nil {
			return err
		}
		impName, expName = impDriver.Name, expDriver.Name
		meetTime = opp.EstimatedMeetTime

		opp.Status = model.OpportunityBothAccepted
		if err := tx.UpdateOpportunity(ctx, opp, model.OpportunityPending); err != nil {
			return err
		}
		transfer = model.Transfer{
			ID:                    o.newID(),
			OpportunityID:         opp.ID,
			ExporterDriverID:      expRoute.DriverID,
			ImporterDriverID:      impRoute.DriverID,
			HubID:                 hub.ID,
			DeliveryIDsToTransfer: append([]string(nil), opp.EligibleDeliveryIDs...),
			SpaceAvailableExpL:    opp.Route2SpaceVolumeL,
			SpaceAvailableImpL:    opp.Route1SpaceVolumeL,
			DistanceSavedKm:       opp.DistanceSavedKm,
			CarbonSavedKg:         opp.CarbonSavedKg,
			Status:                model.TransferPending,
		}
		return tx.CreateTransfer(ctx, transfer)
	})
	if err != nil {
		return AcceptResult{}, err
	}

	o.log.Infof("opportunity %s accepted by dispatcher %s, transfer %s created", opportunityID, dispatcherID, transfer.ID)
	o.notifyHandshake(transfer, hub, meetTime, notify.RoleImporter, impRoute.DriverID, expTruck.LicensePlate, expName)
	o.notifyHandshake(transfer, hub, meetTime, notify.RoleExporter, expRoute.DriverID, impTruck.LicensePlate, impName)
	o.recordTransfer(transfer, 0, 0)
	return AcceptResult{TransferID: transfer.ID, Hub: hub}, nil
}

// IssueQR builds and stores the signed handover payload. Only the exporter
// driver may call it, and only while the transfer is pending.
func (o *Orchestrator) IssueQR(ctx context.Context, transferID, callerID string) (string, error) {
	now := o.now()
	var payload string
	err := o.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.Transfer(ctx, transferID)
		if err != nil {
			return fmt.Errorf("transfer %s: %w", transferID, err)
		}
		if t.ExporterDriverID != callerID {
			return ErrNotExporter
		}
		deliveries, err := tx.DeliveriesByID(ctx, t.DeliveryIDsToTransfer)
		if err != nil {
			return err
		}
		if payload, err = o.signer.Issue(t.ID, deliveries, now); err != nil {
			return fmt.Errorf("sign QR payload: %w", err)
		}
		t.QRPayload = payload
		return tx.UpdateTransfer(ctx, t, model.TransferPending)
	})
	if err != nil {
		return "", err
	}
	o.log.Infof("QR payload issued for transfer %s", transferID)
	return payload, nil
}

// VerifyQR validates a scanned payload against the transfer. Only the
// importer driver may call it. The payload's transfer id and exact delivery
// set must match; any mismatch is a hard rejection.
func (o *Orchestrator) VerifyQR(ctx context.Context, transferID, callerID, payload string, location geo.Point) ([]model.ChecklistItem, error) {
	now := o.now()
	var checklist []model.ChecklistItem
	err := o.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.Transfer(ctx, transferID)
		if err != nil {
			return fmt.Errorf("transfer %s: %w", transferID, err)
		}
		if t.ImporterDriverID != callerID {
			return ErrNotImporter
		}
		decoded, err := o.signer.Decode(payload)
		if err != nil {
			return err
		}
		if decoded.TransferID != t.ID {
			return ErrQRMismatch
		}
		if !sameIDSet(decoded.DeliveryIDs, t.DeliveryIDsToTransfer) {
			return ErrQRMismatch
		}
		checklist = make([]model.ChecklistItem, len(decoded.Packages))
		for i, pkg := range decoded.Packages {
			checklist[i] = model.ChecklistItem{
				PackageID: pkg.PackageID,
				CargoType: pkg.CargoType,
				WeightKg:  pkg.WeightKg,
				VolumeL:   pkg.VolumeL,
				From:      pkg.From,
				To:        pkg.To,
			}
		}
		t.Status = model.TransferQRScanned
		t.Checklist = checklist
		t.ScannedAt = now
		return tx.UpdateTransfer(ctx, t, model.TransferPending)
	})
	if err != nil {
		return nil, err
	}

	o.log.Infof("QR verified for transfer %s", transferID)
	o.publish(notify.DispatcherTopic, notify.ScanConfirmed{
		TransferID: transferID,
		Location:   location,
		ScannedAt:  now,
		DriverID:   callerID,
	})
	return checklist, nil
}

// CompleteResult reports what a completed handover updated.
type CompleteResult struct {
	UpdatedDeliveries int
	UpdatedDocuments  int
}

// CompleteHandover finalizes the transfer in one atomic transaction: it
// persists photos and checklist, moves the deliveries to the importer, shifts
// the transferred weight/volume between the trucks (the sum across both is
// invariant), flips the exporter's active e-way bills to the importer's
// vehicle and completes the opportunity.
func (o *Orchestrator) CompleteHandover(ctx context.Context, transferID, callerID string, photos []string, checklist []model.ChecklistItem) (CompleteResult, error) {
	now := o.now()
	var (
		transfer model.Transfer
		impTruck model.Truck
		docs     int
		weightKg float64
		volumeL  float64
	)
	err := o.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := tx.Transfer(ctx, transferID)
		if err != nil {
			return fmt.Errorf("transfer %s: %w", transferID, err)
		}
		if t.ImporterDriverID != callerID {
			return ErrNotImporter
		}
		if !t.ReadyToComplete() {
			return ErrQRNotScanned
		}
		opp, err := tx.Opportunity(ctx, t.OpportunityID)
		if err != nil {
			return err
		}
		impRoute, err := tx.Route(ctx, opp.Route1ID)
		if err != nil {
			return err
		}
		expRoute, err := tx.Route(ctx, opp.Route2ID)
		if err != nil {
			return err
		}
		if impTruck, err = tx.Truck(ctx, impRoute.TruckID); err != nil {
			return err
		}
		deliveries, err := tx.DeliveriesByID(ctx, t.DeliveryIDsToTransfer)
		if err != nil {
			return err
		}
		// Recompute from the delivery records, not the QR payload.
		weightKg, volumeL = model.TotalLoad(deliveries)

		t.Photos = append([]string(nil), photos...)
		if len(checklist) > 0 {
			t.Checklist = checklist
		}
		t.Status = model.TransferCompleted
		t.CompletedAt = now
		if err := tx.UpdateTransfer(ctx, t, model.TransferQRScanned, model.TransferChecklistVerified); err != nil {
			return err
		}
		if docs, err = tx.TransferDocuments(ctx, t.ExporterDriverID, t.ImporterDriverID, impTruck.LicensePlate); err != nil {
			return err
		}
		if err := tx.AssignDeliveries(ctx, t.DeliveryIDsToTransfer, impRoute.ID, impRoute.TruckID, t.ImporterDriverID, model.DeliveryTransferred); err != nil {
			return err
		}
		if err := tx.AdjustTruckLoad(ctx, impRoute.TruckID, weightKg, volumeL); err != nil {
			return err
		}
		if err := tx.AdjustTruckLoad(ctx, expRoute.TruckID, -weightKg, -volumeL); err != nil {
			return err
		}
		opp.Status = model.OpportunityCompleted
		if err := tx.UpdateOpportunity(ctx, opp, model.OpportunityBothAccepted); err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}

	o.log.Infof("transfer %s completed: %d deliveries moved to truck %s, %d documents flipped",
		transferID, len(transfer.DeliveryIDsToTransfer), impTruck.ID, docs)
	completed := notify.TransferCompleted{
		TransferID:  transfer.ID,
		DeliveryIDs: transfer.DeliveryIDsToTransfer,
		NewTruckID:  impTruck.ID,
		NewPlate:    impTruck.LicensePlate,
		CompletedAt: now,
	}
	o.publish(notify.DispatcherTopic, completed)
	impEvent := completed
	impEvent.Role = notify.RoleImporter
	o.publish(notify.DriverTopic(transfer.ImporterDriverID), impEvent)
	expEvent := completed
	expEvent.Role = notify.RoleExporter
	o.publish(notify.DriverTopic(transfer.ExporterDriverID), expEvent)
	// Recorded after commit; a sink may be a network write and must not
	// extend the transaction.
	o.recordTransfer(transfer, weightKg, volumeL)

	return CompleteResult{
		UpdatedDeliveries: len(transfer.DeliveryIDsToTransfer),
		UpdatedDocuments:  docs,
	}, nil
}

func (o *Orchestrator) notifyHandshake(t model.Transfer, hub model.VirtualHub, meetTime time.Time, role notify.Role, driverID, counterpartTruck, counterpartDriver string) {
	o.publish(notify.DriverTopic(driverID), notify.HandshakeRequired{
		TransferID:        t.ID,
		Role:              role,
		HubID:             hub.ID,
		HubName:           hub.Name,
		HubAddress:        hub.Address,
		HubPosition:       hub.Position,
		CounterpartTruck:  counterpartTruck,
		CounterpartDriver: counterpartDriver,
		EstimatedMeetTime: meetTime,
	})
}

// publish is best-effort; failures are logged and never surface to callers.
func (o *Orchestrator) publish(topic string, event any) {
	if err := o.bus.Publish(topic, event); err != nil {
		o.log.Errorf("publish to %s failed: %v", topic, err)
	}
}

func (o *Orchestrator) recordTransfer(t model.Transfer, weightKg, volumeL float64) {
	if err := o.metrics.RecordTransfer(metrics.TransferEvent{
		TransferID:    t.ID,
		OpportunityID: t.OpportunityID,
		Status:        string(t.Status),
		Deliveries:    len(t.DeliveryIDsToTransfer),
		WeightKg:      weightKg,
		VolumeL:       volumeL,
		CarbonSavedKg: t.CarbonSavedKg,
		Time:          o.now(),
	}); err != nil {
		o.log.Errorf("transfer metrics error: %v", err)
	}
}
