package tracking

import (
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// reasonOrder keeps accumulated reasons in a stable order.
var reasonOrder = []domain.SLAReason{
	domain.SLAReasonETAAfterWindow,
	domain.SLAReasonRiderIdle,
	domain.SLAReasonLowConfidenceFar,
	domain.SLAReasonStaleOrOffline,
}

// SLAInput is everything the risk engine needs for one sample.
type SLAInput struct {
	Now                time.Time
	Previous           *domain.SLARisk
	ETA                *domain.ETAEstimate
	PromisedWindow     *domain.TimeWindow
	State              domain.InternalState
	IdleFor            time.Duration
	DistanceRemainingM *float64
	Freshness          domain.Freshness
}

// AssessSLA classifies the current risk and merges it into the previous
// assessment. Levels only escalate, reasons only accumulate, and the
// detection time is fixed at the first non-NONE level.
func AssessSLA(in SLAInput, cfg SLAConfig) domain.SLARisk {
	found := make(map[domain.SLAReason]bool, len(reasonOrder))

	overrun := in.ETA != nil && in.PromisedWindow != nil && in.ETA.P90.After(in.PromisedWindow.End)
	idle := (in.State == domain.StateInTransit || in.State == domain.StateNearDestination) &&
		in.IdleFor >= cfg.IdleThreshold
	lowFar := in.ETA != nil && in.ETA.Confidence == domain.ConfidenceLow &&
		in.DistanceRemainingM != nil && *in.DistanceRemainingM >= cfg.LongDistanceM
	stale := in.Freshness != domain.FreshnessLive

	found[domain.SLAReasonETAAfterWindow] = overrun
	found[domain.SLAReasonRiderIdle] = idle
	found[domain.SLAReasonLowConfidenceFar] = lowFar
	found[domain.SLAReasonStaleOrOffline] = stale

	level := domain.SLARiskNone
	switch {
	case overrun:
		level = domain.SLARiskHigh
	case idle:
		level = domain.SLARiskMedium
	case lowFar || stale:
		level = domain.SLARiskLow
	}

	out := domain.SLARisk{Level: level}
	if prev := in.Previous; prev != nil {
		if prev.Level.Rank() > out.Level.Rank() {
			out.Level = prev.Level
		}
		for _, r := range prev.Reasons {
			found[r] = true
		}
		out.DetectedAt = prev.DetectedAt
	}

	out.Reasons = make([]domain.SLAReason, 0, len(reasonOrder))
	for _, r := range reasonOrder {
		if found[r] {
			out.Reasons = append(out.Reasons, r)
		}
	}

	if out.DetectedAt == nil && out.Level != domain.SLARiskNone {
		at := in.Now
		out.DetectedAt = &at
	}
	return out
}
