package domain

import "time"

// TrackingState is the top-level discriminator of the customer contract.
type TrackingState string

const (
	TrackingHidden    TrackingState = "HIDDEN"
	TrackingOffline   TrackingState = "OFFLINE"
	TrackingAvailable TrackingState = "AVAILABLE"
)

// CustomerTracking is the only shape of tracking data customers ever see.
// It deliberately has no courier, raw position, internal state, ETA or SLA fields.
type CustomerTracking struct {
	State         TrackingState
	LastUpdatedAt *time.Time
	Freshness     Freshness
	Marker        *PrivacyMarker
	Checkpoint    Checkpoint
}
