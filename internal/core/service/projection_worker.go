package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/delivery-tracking/internal/api/metrics"
	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
	"github.com/99minutos/delivery-tracking/internal/core/tracking"
)

// Outcome is the result of processing one sample.
type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeDeduped       Outcome = "deduped"
	OutcomeKillSwitchOff Outcome = "kill_switch_off"
	OutcomeDropped       Outcome = "dropped"
)

const (
	defaultOrderLookupTimeout = 750 * time.Millisecond
	defaultProjectionTTL      = 4 * time.Hour
	defaultMovementHeuristicM = 25
)

// WorkerConfig tunes the projection worker.
type WorkerConfig struct {
	Tracking           tracking.Config
	ProjectionTTL      time.Duration
	OrderLookupTimeout time.Duration
	MovementHeuristicM float64
	Now                func() time.Time
}

// ProjectionWorker turns accepted samples into tracking projections. It is
// the only writer of projections and watermarks. Calls for the same courier
// must be serialized by the caller; the stream dispatcher does that.
type ProjectionWorker struct {
	store      ports.TrackingStore
	orders     ports.OrderContextProvider
	killSwitch ports.KillSwitch
	cfg        WorkerConfig
	now        func() time.Time
	log        zerolog.Logger
}

// NewProjectionWorker builds a worker. orders may be nil, in which case every
// order has an unknown destination.
func NewProjectionWorker(
	store ports.TrackingStore,
	orders ports.OrderContextProvider,
	killSwitch ports.KillSwitch,
	cfg WorkerConfig,
	log zerolog.Logger,
) *ProjectionWorker {
	if cfg.ProjectionTTL <= 0 {
		cfg.ProjectionTTL = defaultProjectionTTL
	}
	if cfg.OrderLookupTimeout <= 0 {
		cfg.OrderLookupTimeout = defaultOrderLookupTimeout
	}
	if cfg.MovementHeuristicM <= 0 {
		cfg.MovementHeuristicM = defaultMovementHeuristicM
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Tracking = cfg.Tracking.Normalize()
	return &ProjectionWorker{
		store:      store,
		orders:     orders,
		killSwitch: killSwitch,
		cfg:        cfg,
		now:        cfg.Now,
		log:        log,
	}
}

// Handle satisfies ports.SampleHandler.
func (w *ProjectionWorker) Handle(ctx context.Context, sample domain.LocationSample) error {
	_, err := w.Process(ctx, sample)
	return err
}

// Process runs the full pipeline for one sample. Nothing is written unless
// every step succeeds.
func (w *ProjectionWorker) Process(ctx context.Context, sample domain.LocationSample) (Outcome, error) {
	start := time.Now()
	outcome, err := w.process(ctx, sample)

	metrics.SamplesProcessedTotal.WithLabelValues(string(outcome)).Inc()
	metrics.SampleProcessingDuration.WithLabelValues(string(outcome)).Observe(time.Since(start).Seconds())

	logEvt := w.log.Debug()
	switch outcome {
	case OutcomeDropped:
		logEvt = w.log.Error().Err(err)
	case OutcomeKillSwitchOff:
		logEvt = w.log.Warn()
	}
	logEvt.
		Str("courier_id", sample.CourierID).
		Str("order_id", sample.OrderID).
		Int64("seq", sample.Sequence).
		Str("outcome", string(outcome)).
		Msg("sample processed")
	return outcome, err
}

func (w *ProjectionWorker) process(ctx context.Context, sample domain.LocationSample) (Outcome, error) {
	cfg := w.cfg.Tracking

	// 1. Kill switch.
	if !w.killSwitch.Mode(ctx).AllowsIngest() {
		return OutcomeKillSwitchOff, nil
	}

	// 2. Sequencing guard.
	last, seen, err := w.store.LastAccepted(ctx, sample.CourierID, sample.OrderID)
	if err != nil {
		return OutcomeDropped, fmt.Errorf("process sample: watermark: %w", err)
	}
	if seen && sample.Sequence <= last {
		return OutcomeDeduped, nil
	}

	// 3. Load the current projection.
	prev, err := w.store.Get(ctx, sample.OrderID)
	if errors.Is(err, domain.ErrProjectionNotFound) {
		prev = nil
	} else if err != nil {
		return OutcomeDropped, fmt.Errorf("process sample: load projection: %w", err)
	}

	now := w.now().UTC()
	next := domain.TrackingProjection{}
	if prev != nil {
		next = *prev
	}
	next.OrderID = sample.OrderID
	next.CourierID = sample.CourierID
	next.LastSequence = sample.Sequence

	// 4. Coarse movement heuristic on raw fixes.
	next.RawMovedRecently = prev != nil &&
		tracking.Distance(prev.RawPoint, sample.Point()) >= w.cfg.MovementHeuristicM
	next.RawPoint = sample.Point()
	next.RawAccuracyM = sample.AccuracyM
	next.RawAt = sample.DeviceTimestamp

	// 5. Freshness of the gap before this sample.
	freshness := domain.FreshnessLive
	if prev != nil {
		freshness = tracking.ComputeFreshness(prev.LastUpdatedAt, now, cfg.Freshness)
	}

	// 6. Order context. Failure degrades instead of dropping.
	order, orderKnown := w.orderContext(ctx, sample.OrderID)
	lifecycle := next.LifecycleStatus
	var (
		destination *domain.Point
		window      *domain.TimeWindow
	)
	if orderKnown {
		lifecycle = order.Lifecycle
		destination = order.Destination
		window = order.PromisedWindow
	}
	next.LifecycleStatus = lifecycle

	// 7. Smoothing.
	var prevFix *tracking.SmoothedFix
	if prev != nil {
		prevFix = &tracking.SmoothedFix{Point: prev.SmoothedPoint, At: prev.SmoothedAt, Movement: prev.Movement}
	}
	sm := tracking.Smooth(prevFix, sample, cfg.Smoothing)
	next.SmoothedPoint = sm.Point
	next.SmoothedAt = sm.At
	next.Movement = sm.Movement
	next.Confidence = sm.Confidence
	if sm.Accepted || prev == nil || prev.SmoothedAccuracyM <= 0 {
		next.SmoothedAccuracyM = sample.AccuracyM
	}
	if prev == nil || (sm.Accepted && sm.Movement == domain.MovementMoving) {
		next.LastMovingAt = now
	}
	if !sm.Accepted {
		w.log.Debug().
			Str("order_id", sample.OrderID).
			Str("reason", sm.RejectReason).
			Float64("implied_speed_mps", sm.ImpliedSpeedMps).
			Msg("smoothing kept previous position")
	}

	// 8. State machine.
	var (
		prevState      domain.InternalState
		prevCheckpoint domain.Checkpoint
		prevDwell      *time.Time
	)
	if prev != nil {
		prevState, prevCheckpoint, prevDwell = prev.InternalState, prev.Checkpoint, prev.DwellStartedAt
	}
	st := tracking.DeriveState(tracking.StateInput{
		Now:                now,
		Lifecycle:          lifecycle,
		Destination:        destination,
		Position:           sm.Point,
		Movement:           sm.Movement,
		PreviousState:      prevState,
		PreviousCheckpoint: prevCheckpoint,
		DwellStartedAt:     prevDwell,
	}, cfg.State)
	next.InternalState = st.State
	next.Checkpoint = st.Checkpoint
	next.NearDestination = st.NearDestination
	next.DistanceRemainingM = st.DistanceRemainingM
	next.DwellStartedAt = st.DwellStartedAt
	if st.Transition != nil {
		next.LastTransition = st.Transition
	}

	// 9. Privacy marker.
	next.Marker = tracking.ComputeMarker(sample.OrderID, sm.Point, next.SmoothedAccuracyM, st.NearDestination, cfg.Privacy)

	// 10. ETA, only with a known destination.
	idle := time.Duration(0)
	if sm.Movement != domain.MovementMoving && !next.LastMovingAt.IsZero() {
		idle = now.Sub(next.LastMovingAt)
	}
	if orderKnown && st.DistanceRemainingM != nil {
		in := tracking.ETAInput{
			Now:                now,
			Position:           sm.Point,
			PositionAt:         sm.At,
			DistanceRemainingM: *st.DistanceRemainingM,
			Movement:           sm.Movement,
			Confidence:         sm.Confidence,
			ReportedSpeedMps:   sample.SpeedMps,
			LastMovingAt:       next.LastMovingAt,
		}
		if prev != nil {
			prevPoint := prev.SmoothedPoint
			in.PrevPosition = &prevPoint
			in.PrevPositionAt = prev.SmoothedAt
			in.Previous = prev.ETA
		}
		eta := tracking.EstimateETA(in, cfg.ETA)
		next.ETA = &eta.State
	}

	// 11. SLA risk.
	if orderKnown {
		var estimate *domain.ETAEstimate
		if next.ETA != nil {
			estimate = &next.ETA.Estimate
		}
		var prevRisk *domain.SLARisk
		if prev != nil {
			prevRisk = prev.SLA
		}
		risk := tracking.AssessSLA(tracking.SLAInput{
			Now:                now,
			Previous:           prevRisk,
			ETA:                estimate,
			PromisedWindow:     window,
			State:              st.State,
			IdleFor:            idle,
			DistanceRemainingM: st.DistanceRemainingM,
			Freshness:          freshness,
		}, cfg.SLA)
		next.SLA = &risk
	}

	next.Freshness = domain.FreshnessLive
	next.LastUpdatedAt = now

	// 12. Commit projection and watermark together.
	if err := w.store.Commit(ctx, &next, w.cfg.ProjectionTTL); err != nil {
		return OutcomeDropped, fmt.Errorf("process sample: commit: %w", err)
	}

	w.countChanges(prev, &next)
	return OutcomeApplied, nil
}

// orderContext looks the order up under the configured timeout.
func (w *ProjectionWorker) orderContext(ctx context.Context, orderID string) (*domain.OrderContext, bool) {
	if w.orders == nil {
		return nil, false
	}
	lookupCtx, cancel := context.WithTimeout(ctx, w.cfg.OrderLookupTimeout)
	defer cancel()

	order, err := w.orders.OrderContext(lookupCtx, orderID)
	if err != nil {
		metrics.OrderContextFailuresTotal.Inc()
		w.log.Warn().Err(err).Str("order_id", orderID).Msg("order context unavailable, degrading")
		return nil, false
	}
	return order, true
}

func (w *ProjectionWorker) countChanges(prev, next *domain.TrackingProjection) {
	var (
		prevCheckpoint domain.Checkpoint
		prevLevel      domain.SLARiskLevel
	)
	if prev != nil {
		prevCheckpoint = prev.Checkpoint
		if prev.SLA != nil {
			prevLevel = prev.SLA.Level
		}
	}
	if next.Checkpoint.Rank() > prevCheckpoint.Rank() {
		metrics.CheckpointTransitionsTotal.WithLabelValues(string(next.Checkpoint)).Inc()
	}
	if next.SLA != nil && next.SLA.Level.Rank() > prevLevel.Rank() {
		metrics.SLARiskEscalationsTotal.WithLabelValues(string(next.SLA.Level)).Inc()
		w.log.Info().
			Str("order_id", next.OrderID).
			Str("level", string(next.SLA.Level)).
			Msg("sla risk escalated")
	}
}
