package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
	"github.com/99minutos/delivery-tracking/internal/core/tracking"
)

var (
	workerT0    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	destination = domain.Point{Lat: 19.4326, Lng: -99.1332}
)

type workerFixture struct {
	worker *ProjectionWorker
	store  ports.TrackingStore
	orders *stubOrders
	ks     *stubKillSwitch
	clock  *clock
}

func newWorkerFixture(t *testing.T, store ports.TrackingStore) *workerFixture {
	t.Helper()
	if store == nil {
		store = newMemoryStore()
	}
	f := &workerFixture{
		store:  store,
		orders: newStubOrders(),
		ks:     newStubKillSwitch(domain.KillSwitchCustomerReadEnabled),
		clock:  newClock(workerT0),
	}
	f.worker = NewProjectionWorker(store, f.orders, f.ks, WorkerConfig{
		Tracking:           tracking.DefaultConfig(),
		ProjectionTTL:      time.Hour,
		OrderLookupTimeout: 50 * time.Millisecond,
		Now:                f.clock.Now,
	}, zerolog.Nop())
	return f
}

func workerSample(seq int64, p domain.Point, at time.Time) domain.LocationSample {
	return domain.LocationSample{
		CourierID:        "rider-1",
		OrderID:          "order-1",
		Lat:              p.Lat,
		Lng:              p.Lng,
		AccuracyM:        8,
		DeviceTimestamp:  at,
		ServerReceivedAt: at,
		Sequence:         seq,
	}
}

func (f *workerFixture) process(t *testing.T, s domain.LocationSample) Outcome {
	t.Helper()
	out, err := f.worker.Process(context.Background(), s)
	if err != nil && out != OutcomeDropped {
		t.Fatalf("unexpected error for outcome %s: %v", out, err)
	}
	return out
}

func TestWorker_SequenceDedup(t *testing.T) {
	f := newWorkerFixture(t, nil)
	p := tracking.Offset(destination, 0, 3000)

	steps := []struct {
		seq  int64
		want Outcome
	}{
		{5, OutcomeApplied},
		{3, OutcomeDeduped},
		{5, OutcomeDeduped},
		{6, OutcomeApplied},
	}
	for _, st := range steps {
		f.clock.Advance(5 * time.Second)
		if got := f.process(t, workerSample(st.seq, p, f.clock.Now())); got != st.want {
			t.Fatalf("seq %d: expected %s, got %s", st.seq, st.want, got)
		}
	}

	seq, ok, err := f.store.LastAccepted(context.Background(), "rider-1", "order-1")
	if err != nil || !ok || seq != 6 {
		t.Fatalf("watermark = %d ok=%v err=%v, want 6", seq, ok, err)
	}
	proj, _ := f.store.Get(context.Background(), "order-1")
	if proj.LastSequence != 6 {
		t.Fatalf("projection sequence = %d, want 6", proj.LastSequence)
	}
}

func TestWorker_KillSwitchOffDropsWithoutWriting(t *testing.T) {
	f := newWorkerFixture(t, nil)
	f.ks.mode = domain.KillSwitchOff

	if got := f.process(t, workerSample(1, destination, workerT0)); got != OutcomeKillSwitchOff {
		t.Fatalf("expected kill_switch_off, got %s", got)
	}
	if _, err := f.store.Get(context.Background(), "order-1"); !errors.Is(err, domain.ErrProjectionNotFound) {
		t.Fatalf("expected no projection, got %v", err)
	}
}

func TestWorker_CheckpointNeverRegresses(t *testing.T) {
	f := newWorkerFixture(t, nil)
	f.orders.set(domain.OrderContext{
		OrderID:     "order-1",
		Lifecycle:   domain.LifecycleInTransit,
		Destination: &destination,
	})

	near := tracking.Offset(destination, 45, 100)
	if got := f.process(t, workerSample(1, near, f.clock.Now())); got != OutcomeApplied {
		t.Fatalf("expected applied, got %s", got)
	}
	proj, _ := f.store.Get(context.Background(), "order-1")
	if proj.Checkpoint != domain.CheckpointNearby || proj.InternalState != domain.StateNearDestination {
		t.Fatalf("expected NEARBY/NEAR_DESTINATION, got %s/%s", proj.Checkpoint, proj.InternalState)
	}

	f.clock.Advance(10 * time.Minute)
	far := tracking.Offset(destination, 45, 2000)
	if got := f.process(t, workerSample(2, far, f.clock.Now())); got != OutcomeApplied {
		t.Fatalf("expected applied, got %s", got)
	}
	proj, _ = f.store.Get(context.Background(), "order-1")
	if proj.InternalState != domain.StateInTransit {
		t.Fatalf("expected internal state IN_TRANSIT, got %s", proj.InternalState)
	}
	if proj.Checkpoint != domain.CheckpointNearby {
		t.Fatalf("checkpoint regressed to %s", proj.Checkpoint)
	}
	if proj.LastTransition == nil || proj.LastTransition.To != domain.StateInTransit {
		t.Fatalf("expected transition to IN_TRANSIT, got %+v", proj.LastTransition)
	}
}

func TestWorker_ComputesETAAndSLAWithKnownOrder(t *testing.T) {
	f := newWorkerFixture(t, nil)
	end := workerT0.Add(time.Minute)
	f.orders.set(domain.OrderContext{
		OrderID:        "order-1",
		Lifecycle:      domain.LifecyclePickedUp,
		Destination:    &destination,
		PromisedWindow: &domain.TimeWindow{Start: workerT0, End: end},
	})

	p := tracking.Offset(destination, 180, 5000)
	f.process(t, workerSample(1, p, workerT0))

	proj, err := f.store.Get(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if proj.ETA == nil {
		t.Fatal("expected ETA with a known destination")
	}
	if proj.ETA.Estimate.P90.Before(proj.ETA.Estimate.P50) {
		t.Fatalf("p90 %v before p50 %v", proj.ETA.Estimate.P90, proj.ETA.Estimate.P50)
	}
	if proj.SLA == nil || proj.SLA.Level != domain.SLARiskHigh {
		t.Fatalf("expected HIGH risk for a 5 km trip due in one minute, got %+v", proj.SLA)
	}
	if proj.DistanceRemainingM == nil || *proj.DistanceRemainingM < 4900 {
		t.Fatalf("unexpected distance remaining %v", proj.DistanceRemainingM)
	}
	if proj.Marker.RadiusM < 25 || proj.Marker.RadiusM > 180 {
		t.Fatalf("marker radius %v out of bounds", proj.Marker.RadiusM)
	}
}

func TestWorker_OrderLookupFailureDegrades(t *testing.T) {
	f := newWorkerFixture(t, nil)
	f.orders.set(domain.OrderContext{
		OrderID:     "order-1",
		Lifecycle:   domain.LifecycleInTransit,
		Destination: &destination,
	})
	p := tracking.Offset(destination, 90, 3000)
	f.process(t, workerSample(1, p, workerT0))

	f.orders.err = errors.New("mongo unavailable")
	f.clock.Advance(30 * time.Second)
	if got := f.process(t, workerSample(2, p, f.clock.Now())); got != OutcomeApplied {
		t.Fatalf("expected applied despite order failure, got %s", got)
	}

	proj, _ := f.store.Get(context.Background(), "order-1")
	if proj.LifecycleStatus != domain.LifecycleInTransit {
		t.Fatalf("expected last known lifecycle reused, got %q", proj.LifecycleStatus)
	}
	if proj.DistanceRemainingM != nil {
		t.Fatalf("expected unknown destination, got %v", *proj.DistanceRemainingM)
	}
	if proj.ETA == nil || !proj.ETA.Estimate.UpdatedAt.Equal(workerT0) {
		t.Fatalf("expected previous ETA kept untouched, got %+v", proj.ETA)
	}
}

type blockingOrders struct{}

func (blockingOrders) OrderContext(ctx context.Context, _ string) (*domain.OrderContext, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWorker_OrderLookupTimeout(t *testing.T) {
	store := newMemoryStore()
	w := NewProjectionWorker(store, blockingOrders{}, newStubKillSwitch(domain.KillSwitchIngestOnly), WorkerConfig{
		Tracking:           tracking.DefaultConfig(),
		OrderLookupTimeout: 20 * time.Millisecond,
	}, zerolog.Nop())

	start := time.Now()
	out, err := w.Process(context.Background(), workerSample(1, destination, time.Now()))
	if err != nil || out != OutcomeApplied {
		t.Fatalf("expected applied, got %s (%v)", out, err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("order lookup was not bounded")
	}
}

func TestWorker_CommitFailureLeavesNothing(t *testing.T) {
	store := &failingStore{TrackingStore: newMemoryStore(), commitErr: errors.New("redis down")}
	f := newWorkerFixture(t, store)

	out, err := f.worker.Process(context.Background(), workerSample(1, destination, workerT0))
	if out != OutcomeDropped || err == nil {
		t.Fatalf("expected dropped with error, got %s (%v)", out, err)
	}
	if _, ok, _ := store.LastAccepted(context.Background(), "rider-1", "order-1"); ok {
		t.Fatal("watermark must not advance when the commit fails")
	}
	if _, err := store.Get(context.Background(), "order-1"); !errors.Is(err, domain.ErrProjectionNotFound) {
		t.Fatalf("expected no projection, got %v", err)
	}

	// The same sample succeeds once the store recovers.
	store.commitErr = nil
	if got := f.process(t, workerSample(1, destination, workerT0)); got != OutcomeApplied {
		t.Fatalf("expected applied on retry, got %s", got)
	}
}

func TestWorker_LoadFailureDrops(t *testing.T) {
	store := &failingStore{TrackingStore: newMemoryStore(), getErr: errors.New("timeout")}
	f := newWorkerFixture(t, store)

	out, err := f.worker.Process(context.Background(), workerSample(1, destination, workerT0))
	if out != OutcomeDropped || err == nil {
		t.Fatalf("expected dropped, got %s (%v)", out, err)
	}
	if store.commits != 0 {
		t.Fatalf("expected no commit attempt, got %d", store.commits)
	}
}

func TestWorker_ImpossibleJumpKeepsPosition(t *testing.T) {
	f := newWorkerFixture(t, nil)
	start := tracking.Offset(destination, 0, 4000)
	f.process(t, workerSample(1, start, workerT0))

	f.clock.Advance(time.Second)
	jump := tracking.Offset(start, 90, 5000)
	bad := workerSample(2, jump, workerT0.Add(time.Second))
	bad.AccuracyM = 100
	f.process(t, bad)

	proj, _ := f.store.Get(context.Background(), "order-1")
	if proj.SmoothedPoint != start {
		t.Fatalf("expected smoothed point to stay at %+v, got %+v", start, proj.SmoothedPoint)
	}
	if proj.RawPoint != jump {
		t.Fatalf("expected raw point to follow the sample")
	}
	if !proj.RawMovedRecently {
		t.Fatalf("expected raw movement heuristic to fire on a 5 km raw move")
	}
	if proj.LastSequence != 2 {
		t.Fatalf("expected sequence to advance, got %d", proj.LastSequence)
	}
	if proj.SmoothedAccuracyM != 8 || proj.Marker.RadiusM != 25 {
		t.Fatalf("expected marker sized from the kept fix (accuracy 8, radius 25), got accuracy %v radius %v",
			proj.SmoothedAccuracyM, proj.Marker.RadiusM)
	}
}

func TestWorker_GapMarksStale(t *testing.T) {
	f := newWorkerFixture(t, nil)
	f.orders.set(domain.OrderContext{
		OrderID:     "order-1",
		Lifecycle:   domain.LifecycleInTransit,
		Destination: &destination,
	})
	p := tracking.Offset(destination, 0, 3000)

	f.process(t, workerSample(1, p, f.clock.Now()))
	proj, _ := f.store.Get(context.Background(), "order-1")
	if proj.SLA == nil || proj.SLA.Level != domain.SLARiskNone {
		t.Fatalf("expected no risk on the first sample, got %+v", proj.SLA)
	}

	// Two minutes of silence is past the 60s stale threshold.
	f.clock.Advance(2 * time.Minute)
	f.process(t, workerSample(2, p, f.clock.Now()))

	proj, _ = f.store.Get(context.Background(), "order-1")
	if proj.SLA == nil || proj.SLA.Level != domain.SLARiskLow {
		t.Fatalf("expected LOW risk after a stale gap, got %+v", proj.SLA)
	}
	if len(proj.SLA.Reasons) != 1 || proj.SLA.Reasons[0] != domain.SLAReasonStaleOrOffline {
		t.Fatalf("expected STALE_OR_OFFLINE, got %v", proj.SLA.Reasons)
	}
	if proj.Freshness != domain.FreshnessLive {
		t.Fatalf("stored freshness = %s, want LIVE right after an update", proj.Freshness)
	}
}

func TestWorker_ParkedCourierRaisesIdleRisk(t *testing.T) {
	f := newWorkerFixture(t, nil)
	f.orders.set(domain.OrderContext{
		OrderID:     "order-1",
		Lifecycle:   domain.LifecycleInTransit,
		Destination: &destination,
	})
	start := tracking.Offset(destination, 0, 3000)
	f.process(t, workerSample(1, start, f.clock.Now()))

	f.clock.Advance(20 * time.Second)
	movedAt := f.clock.Now()
	f.process(t, workerSample(2, tracking.Offset(start, 180, 200), movedAt))

	proj, _ := f.store.Get(context.Background(), "order-1")
	if proj.Movement != domain.MovementMoving || proj.ETA == nil {
		t.Fatalf("expected MOVING with an ETA, got %s eta=%v", proj.Movement, proj.ETA)
	}
	movingP90 := proj.ETA.Estimate.P90
	parked := proj.SmoothedPoint

	// Low-accuracy jitter around the parked position is rejected by
	// smoothing; the idle clock must keep running anyway.
	seq := int64(3)
	for i := 0; i < 20; i++ {
		f.clock.Advance(30 * time.Second)
		s := workerSample(seq, tracking.Offset(parked, float64(i*45%360), 5), f.clock.Now())
		s.AccuracyM = 80
		if got := f.process(t, s); got != OutcomeApplied {
			t.Fatalf("seq %d: expected applied, got %s", seq, got)
		}
		seq++
	}

	proj, _ = f.store.Get(context.Background(), "order-1")
	if proj.Movement != domain.MovementStationary {
		t.Fatalf("expected STATIONARY after parking, got %s", proj.Movement)
	}
	if !proj.LastMovingAt.Equal(movedAt) {
		t.Fatalf("last moving at = %v, want %v", proj.LastMovingAt, movedAt)
	}
	if proj.SLA == nil || proj.SLA.Level != domain.SLARiskMedium {
		t.Fatalf("expected MEDIUM risk, got %+v", proj.SLA)
	}
	idle := false
	for _, r := range proj.SLA.Reasons {
		if r == domain.SLAReasonRiderIdle {
			idle = true
		}
	}
	if !idle {
		t.Fatalf("expected RIDER_IDLE_IN_TRANSIT, got %v", proj.SLA.Reasons)
	}
	if !proj.ETA.Estimate.P90.After(movingP90.Add(5 * time.Minute)) {
		t.Fatalf("expected the idle penalty to push p90 (%v) well past %v", proj.ETA.Estimate.P90, movingP90)
	}
}
