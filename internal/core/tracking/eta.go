package tracking

import (
	"math"
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// ETAInput is everything the ETA engine needs for one sample.
type ETAInput struct {
	Now                time.Time
	Position           domain.Point // current smoothed point
	PositionAt         time.Time
	PrevPosition       *domain.Point // previous smoothed point, nil on first sample
	PrevPositionAt     time.Time
	DistanceRemainingM float64
	Movement           domain.MovementState
	Confidence         domain.Confidence
	ReportedSpeedMps   *float64
	LastMovingAt       time.Time
	Previous           *domain.ETAState
}

// ETAResult is the next ETA state plus what happened while computing it.
type ETAResult struct {
	State       domain.ETAState
	Triggered   bool
	Suppressed  bool
	IdlePenalty time.Duration
}

// EstimateETA decides whether the ETA needs recomputing and, if so, returns
// the new estimate. Small changes are absorbed so the customer-facing ETA
// does not flap between samples.
func EstimateETA(in ETAInput, cfg ETAConfig) ETAResult {
	prev := in.Previous
	idle := idleFor(in, cfg)

	if prev != nil && !recomputeNeeded(in, prev, idle, cfg) {
		return ETAResult{State: *prev}
	}

	speed := blendSpeed(in, prev, cfg)

	var penalty time.Duration
	if idle > 0 {
		penalty = idle
		if penalty > cfg.MaxIdlePenalty {
			penalty = cfg.MaxIdlePenalty
		}
	}

	travel := time.Duration(in.DistanceRemainingM / speed * float64(time.Second))
	p50 := in.Now.Add(travel + penalty)

	p50Seconds := p50.Sub(in.Now).Seconds()
	spread := p50Seconds * uncertaintyFor(in.Confidence, cfg)
	if in.Confidence == domain.ConfidenceLow {
		spread += cfg.LowConfidencePenalty.Seconds()
	}
	spread = math.Max(cfg.MinP90Buffer.Seconds(), spread)
	p90 := p50.Add(time.Duration(spread * float64(time.Second)))

	next := domain.ETAState{
		Estimate: domain.ETAEstimate{
			P50:        p50,
			P90:        p90,
			Confidence: in.Confidence,
			UpdatedAt:  in.Now,
		},
		Anchor: domain.ETAAnchor{
			Point:              in.Position,
			DistanceRemainingM: in.DistanceRemainingM,
			At:                 in.Now,
		},
		SpeedEWMA: speed,
	}
	res := ETAResult{State: next, Triggered: true, IdlePenalty: penalty}

	if prev == nil {
		return res
	}

	if absDuration(p50.Sub(prev.Estimate.P50)) < cfg.SuppressWindow {
		res.State.Estimate = prev.Estimate
		res.Suppressed = true
		return res
	}

	// A confidence downgrade never narrows the window.
	if in.Confidence.Rank() < prev.Estimate.Confidence.Rank() && prev.Estimate.P90.After(p90) {
		res.State.Estimate.P90 = prev.Estimate.P90
	}
	return res
}

func recomputeNeeded(in ETAInput, prev *domain.ETAState, idle time.Duration, cfg ETAConfig) bool {
	switch {
	case Distance(prev.Anchor.Point, in.Position) >= cfg.RecomputeMovedM:
		return true
	case in.DistanceRemainingM-prev.Anchor.DistanceRemainingM >= cfg.DeviationM:
		return true
	case idle > 0:
		return true
	case in.Now.Sub(prev.Estimate.UpdatedAt) > cfg.MaxAge:
		return true
	}
	return false
}

// idleFor returns how long the courier has been stationary once that
// exceeds the idle threshold, zero otherwise.
func idleFor(in ETAInput, cfg ETAConfig) time.Duration {
	if in.Movement != domain.MovementStationary || in.LastMovingAt.IsZero() {
		return 0
	}
	idle := in.Now.Sub(in.LastMovingAt)
	if idle < cfg.IdleThreshold {
		return 0
	}
	return idle
}

func blendSpeed(in ETAInput, prev *domain.ETAState, cfg ETAConfig) float64 {
	var signal float64
	switch {
	case in.Movement == domain.MovementMoving && in.PrevPosition != nil && in.PositionAt.After(in.PrevPositionAt):
		signal = Distance(*in.PrevPosition, in.Position) / in.PositionAt.Sub(in.PrevPositionAt).Seconds()
	case in.ReportedSpeedMps != nil:
		signal = *in.ReportedSpeedMps
	case prev != nil && prev.SpeedEWMA > 0:
		signal = prev.SpeedEWMA
	default:
		signal = cfg.DefaultSpeedMps
	}

	ewma := signal
	if prev != nil && prev.SpeedEWMA > 0 {
		ewma = prev.SpeedEWMA + cfg.SpeedAlpha*(signal-prev.SpeedEWMA)
	}
	return clamp(ewma, cfg.MinSpeedMps, cfg.MaxSpeedMps)
}

func uncertaintyFor(c domain.Confidence, cfg ETAConfig) float64 {
	switch c {
	case domain.ConfidenceHigh:
		return cfg.HighUncertainty
	case domain.ConfidenceMedium:
		return cfg.MediumUncertainty
	default:
		return cfg.LowUncertainty
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
