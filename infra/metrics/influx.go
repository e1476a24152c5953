package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/freightpool/absorb/core/metrics"
	"github.com/freightpool/absorb/infra/logger"
)

// InfluxSink writes absorption events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordScanCycle writes a scan cycle summary point.
func (s *InfluxSink) RecordScanCycle(ev coremetrics.ScanCycleEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("absorption_scan_cycle").
		AddTag("component", "proximity_scanner").
		AddField("trucks", ev.Trucks).
		AddField("pairs_checked", ev.PairsChecked).
		AddField("opportunities", ev.Opportunities).
		AddField("expired", ev.Expired).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		AddField("errors", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOpportunity writes a detected opportunity point.
func (s *InfluxSink) RecordOpportunity(ev coremetrics.OpportunityEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("absorption_opportunity").
		AddTag("opportunity_id", ev.OpportunityID).
		AddTag("route1_id", ev.Route1ID).
		AddTag("route2_id", ev.Route2ID).
		AddTag("hub_id", ev.HubID).
		AddTag("component", "proximity_scanner").
		AddField("distance_km", round3(ev.DistanceKm)).
		AddField("carbon_saved_kg", round3(ev.CarbonSavedKg)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTransfer writes a transfer state change point.
func (s *InfluxSink) RecordTransfer(ev coremetrics.TransferEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("absorption_transfer").
		AddTag("transfer_id", ev.TransferID).
		AddTag("opportunity_id", ev.OpportunityID).
		AddTag("status", ev.Status).
		AddTag("component", "handshake").
		AddField("deliveries", ev.Deliveries).
		AddField("weight_kg", round3(ev.WeightKg)).
		AddField("volume_l", round3(ev.VolumeL)).
		AddField("carbon_saved_kg", round3(ev.CarbonSavedKg)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAllocation writes an allocation pass summary point.
func (s *InfluxSink) RecordAllocation(ev coremetrics.AllocationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("route_allocation").
		AddTag("operator_id", ev.OperatorID).
		AddTag("component", "allocator").
		AddField("routes", ev.Routes).
		AddField("deliveries", ev.Deliveries).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
