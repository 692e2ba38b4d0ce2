package tracking

import (
	"math"
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

const (
	minElapsedSeconds    = 0.1
	stationaryAlphaCap   = 0.25
	lowConfidenceSpreadK = 2.0
)

// Smoothing reject reasons.
const (
	RejectImpossibleJump          = "impossible_jump"
	RejectLowConfidenceSuppressed = "low_confidence_suppressed"
)

// SmoothedFix is the previous output of the smoothing engine.
type SmoothedFix struct {
	Point    domain.Point
	At       time.Time
	Movement domain.MovementState
}

// SmoothingResult is the filtered position for one raw sample. When
// Accepted is false, Point is the fallback and RejectReason says why.
type SmoothingResult struct {
	Point           domain.Point
	At              time.Time
	Movement        domain.MovementState
	Confidence      domain.Confidence
	Accepted        bool
	RejectReason    string
	DistanceM       float64
	ImpliedSpeedMps float64
	Alpha           float64
}

// ConfidenceFor maps horizontal accuracy to a confidence tier.
func ConfidenceFor(accuracyM float64) domain.Confidence {
	switch {
	case accuracyM <= 15:
		return domain.ConfidenceHigh
	case accuracyM <= 40:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func alphaFor(accuracyM float64) float64 {
	switch {
	case accuracyM <= 10:
		return 0.75
	case accuracyM <= 25:
		return 0.55
	case accuracyM <= 60:
		return 0.35
	default:
		return 0.2
	}
}

// Smooth filters one raw sample against the previous smoothed fix.
// prev is nil on cold start.
func Smooth(prev *SmoothedFix, sample domain.LocationSample, cfg SmoothingConfig) SmoothingResult {
	raw := sample.Point()
	conf := ConfidenceFor(sample.AccuracyM)

	if prev == nil {
		res := SmoothingResult{
			Point:      raw,
			At:         sample.DeviceTimestamp,
			Movement:   coldStartMovement(sample.SpeedMps, cfg),
			Confidence: conf,
			Accepted:   true,
			Alpha:      1,
		}
		if conf == domain.ConfidenceLow && cfg.SuppressLowConfidence {
			res.Accepted = false
			res.RejectReason = RejectLowConfidenceSuppressed
		}
		return res
	}

	elapsed := math.Max(minElapsedSeconds, sample.DeviceTimestamp.Sub(prev.At).Seconds())
	dist := Distance(prev.Point, raw)
	implied := dist / elapsed

	res := SmoothingResult{
		Point:           prev.Point,
		At:              prev.At,
		Movement:        heldMovement(prev, sample.DeviceTimestamp, cfg),
		Confidence:      conf,
		DistanceM:       dist,
		ImpliedSpeedMps: implied,
	}

	if implied > cfg.MaxSpeedMps {
		res.RejectReason = RejectImpossibleJump
		return res
	}
	if conf == domain.ConfidenceLow && dist < lowConfidenceSpreadK*cfg.StationaryThresholdM {
		res.RejectReason = RejectLowConfidenceSuppressed
		return res
	}

	reportedMoving := sample.SpeedMps != nil && *sample.SpeedMps >= cfg.MovingSpeedMps
	alpha := alphaFor(sample.AccuracyM)
	if dist < cfg.StationaryThresholdM && !reportedMoving {
		alpha = math.Min(alpha, stationaryAlphaCap)
	}

	res.Accepted = true
	res.Alpha = alpha
	res.At = sample.DeviceTimestamp
	res.Point = domain.Point{
		Lat: prev.Point.Lat + alpha*(raw.Lat-prev.Point.Lat),
		Lng: prev.Point.Lng + alpha*(raw.Lng-prev.Point.Lng),
	}
	if dist >= cfg.StationaryThresholdM || reportedMoving {
		res.Movement = domain.MovementMoving
	} else {
		res.Movement = domain.MovementStationary
	}
	return res
}

// heldMovement is the movement state reported for a rejected sample: the
// previous state, except that MOVING lapses to STATIONARY once no fix has
// been accepted for MovingHold.
func heldMovement(prev *SmoothedFix, at time.Time, cfg SmoothingConfig) domain.MovementState {
	if prev.Movement == domain.MovementMoving && at.Sub(prev.At) > cfg.MovingHold {
		return domain.MovementStationary
	}
	return prev.Movement
}

func coldStartMovement(speed *float64, cfg SmoothingConfig) domain.MovementState {
	if speed == nil {
		return domain.MovementUnknown
	}
	if *speed >= cfg.MovingSpeedMps {
		return domain.MovementMoving
	}
	return domain.MovementStationary
}
