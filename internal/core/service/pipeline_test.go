package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
	"github.com/99minutos/delivery-tracking/internal/core/tracking"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/stream"
)

type pipeline struct {
	ingest ports.IngestionService
	read   ports.ReadService
	ks     *stubKillSwitch
	bus    *stream.Memory
}

func newPipeline(t *testing.T, mode domain.KillSwitchMode) *pipeline {
	t.Helper()
	ks := newStubKillSwitch(mode)
	store := newMemoryStore()
	bus := stream.NewMemory(2, zerolog.Nop())

	cfg := tracking.DefaultConfig()
	worker := NewProjectionWorker(store, nil, ks, WorkerConfig{Tracking: cfg}, zerolog.Nop())
	sub, err := bus.Subscribe(context.Background(), worker.Handle)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = bus.Close()
		sub.Stop()
	})

	return &pipeline{
		ingest: NewIngestionService(bus, ks, IngestionConfig{}, zerolog.Nop()),
		read:   NewReadService(store, ks, cfg.Freshness, nil, zerolog.Nop()),
		ks:     ks,
		bus:    bus,
	}
}

func locationBody(t *testing.T, seq int64) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"schemaVersion": 1,
		"riderId":       "rider-R",
		"orderId":       "order-O",
		"seq":           seq,
		"lat":           19.4326,
		"lng":           -99.1332,
		"accuracyM":     12,
		"deviceTs":      time.Now().UTC().Format(time.RFC3339Nano),
	})
	require.NoError(t, err)
	return b
}

func TestPipeline_OfflineToAvailable(t *testing.T) {
	p := newPipeline(t, domain.KillSwitchCustomerReadEnabled)
	ctx := context.Background()

	before := p.read.CustomerTracking(ctx, "order-O")
	assert.Equal(t, domain.TrackingOffline, before.State)
	assert.Nil(t, before.LastUpdatedAt)
	assert.Equal(t, domain.FreshnessOffline, before.Freshness)

	res, err := p.ingest.Ingest(ctx, "rider-R", locationBody(t, 1))
	require.NoError(t, err)
	require.True(t, res.Accepted)

	require.Eventually(t, func() bool {
		return p.read.CustomerTracking(ctx, "order-O").State == domain.TrackingAvailable
	}, 2*time.Second, 10*time.Millisecond)

	after := p.read.CustomerTracking(ctx, "order-O")
	require.NotNil(t, after.LastUpdatedAt)
	require.NotNil(t, after.Marker)
	assert.Contains(t, []domain.Freshness{domain.FreshnessLive, domain.FreshnessStale, domain.FreshnessOffline}, after.Freshness)
	assert.Equal(t, domain.CheckpointPickedUp, after.Checkpoint)
	assert.GreaterOrEqual(t, after.Marker.RadiusM, 25.0)
	assert.Empty(t, p.bus.DeadLetters())
}

func TestPipeline_KillSwitchOff(t *testing.T) {
	p := newPipeline(t, domain.KillSwitchOff)
	ctx := context.Background()

	res, err := p.ingest.Ingest(ctx, "rider-R", locationBody(t, 1))
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, domain.RejectKillSwitchOff, res.Reason)

	assert.Equal(t, domain.CustomerTracking{State: domain.TrackingHidden}, p.read.CustomerTracking(ctx, "order-O"))
	assert.Empty(t, p.bus.DeadLetters())
}

func TestPipeline_IngestOnlyHidesReads(t *testing.T) {
	p := newPipeline(t, domain.KillSwitchIngestOnly)
	ctx := context.Background()

	res, err := p.ingest.Ingest(ctx, "rider-R", locationBody(t, 1))
	require.NoError(t, err)
	require.True(t, res.Accepted)

	require.Eventually(t, func() bool {
		ops, err := p.read.OpsProjection(ctx, "order-O")
		return err == nil && ops.Projection.LastSequence == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.TrackingHidden, p.read.CustomerTracking(ctx, "order-O").State)

	require.NoError(t, p.ks.SetMode(ctx, domain.KillSwitchCustomerReadEnabled))
	assert.Equal(t, domain.TrackingAvailable, p.read.CustomerTracking(ctx, "order-O").State)
}

func TestPipeline_RejectedSampleIsDeadLettered(t *testing.T) {
	p := newPipeline(t, domain.KillSwitchCustomerReadEnabled)
	ctx := context.Background()

	body := locationBody(t, 1)
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	m["accuracyM"] = 0
	body, _ = json.Marshal(m)

	res, err := p.ingest.Ingest(ctx, "rider-R", body)
	require.NoError(t, err)
	assert.Equal(t, domain.RejectBadAccuracy, res.Reason)

	letters := p.bus.DeadLetters()
	require.Len(t, letters, 1)
	assert.Equal(t, domain.RejectBadAccuracy, letters[0].Reason)
	assert.Equal(t, domain.TrackingOffline, p.read.CustomerTracking(ctx, "order-O").State)
}
