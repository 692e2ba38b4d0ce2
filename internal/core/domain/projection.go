package domain

import "time"

// MovementState classifies whether the courier is travelling.
type MovementState string

const (
	MovementUnknown    MovementState = "UNKNOWN"
	MovementMoving     MovementState = "MOVING"
	MovementStationary MovementState = "STATIONARY"
)

// Confidence is the accuracy tier of a fix and of the ETA derived from it.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Rank orders confidence tiers; higher is better.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// InternalState is the ops-facing delivery state derived per sample.
type InternalState string

const (
	StateAtPickup           InternalState = "AT_PICKUP"
	StatePickedUp           InternalState = "PICKED_UP"
	StateInTransit          InternalState = "IN_TRANSIT"
	StateNearDestination    InternalState = "NEAR_DESTINATION"
	StateDeliveredCandidate InternalState = "DELIVERED_CANDIDATE"
)

// Checkpoint is the customer-visible milestone. It never moves backwards
// during the life of an order.
type Checkpoint string

const (
	CheckpointPickedUp  Checkpoint = "PICKED_UP"
	CheckpointOnTheWay  Checkpoint = "ON_THE_WAY"
	CheckpointNearby    Checkpoint = "NEARBY"
	CheckpointDelivered Checkpoint = "DELIVERED"
)

// Rank orders checkpoints along the delivery.
func (c Checkpoint) Rank() int {
	switch c {
	case CheckpointPickedUp:
		return 1
	case CheckpointOnTheWay:
		return 2
	case CheckpointNearby:
		return 3
	case CheckpointDelivered:
		return 4
	default:
		return 0
	}
}

// Freshness classifies how recently a projection was updated.
type Freshness string

const (
	FreshnessLive    Freshness = "LIVE"
	FreshnessStale   Freshness = "STALE"
	FreshnessOffline Freshness = "OFFLINE"
)

// SLARiskLevel grades the risk of missing the promised delivery window.
type SLARiskLevel string

const (
	SLARiskNone   SLARiskLevel = "NONE"
	SLARiskLow    SLARiskLevel = "LOW"
	SLARiskMedium SLARiskLevel = "MEDIUM"
	SLARiskHigh   SLARiskLevel = "HIGH"
)

// Rank orders risk levels; higher is worse.
func (l SLARiskLevel) Rank() int {
	switch l {
	case SLARiskLow:
		return 1
	case SLARiskMedium:
		return 2
	case SLARiskHigh:
		return 3
	default:
		return 0
	}
}

// SLAReason explains why a risk level was raised.
type SLAReason string

const (
	SLAReasonETAAfterWindow   SLAReason = "ETA_P90_AFTER_PROMISED_WINDOW"
	SLAReasonRiderIdle        SLAReason = "RIDER_IDLE_IN_TRANSIT"
	SLAReasonLowConfidenceFar SLAReason = "LOW_CONFIDENCE_LONG_DISTANCE"
	SLAReasonStaleOrOffline   SLAReason = "STALE_OR_OFFLINE"
)

// TransitionReason records what caused an internal state change.
type TransitionReason string

const (
	TransitionOrderLifecycle TransitionReason = "order_lifecycle"
	TransitionDerived        TransitionReason = "derived"
)

// StateTransition is emitted whenever the internal state changes.
type StateTransition struct {
	From   InternalState    `json:"from"`
	To     InternalState    `json:"to"`
	Reason TransitionReason `json:"reason"`
	At     time.Time        `json:"at"`
}

// PrivacyMarker is the obfuscated position shown to customers in place of
// the courier's coordinates.
type PrivacyMarker struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM float64 `json:"radiusM"`
}

// ETAEstimate is the published arrival window.
type ETAEstimate struct {
	P50        time.Time  `json:"p50"`
	P90        time.Time  `json:"p90"`
	Confidence Confidence `json:"confidence"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// ETAAnchor is the snapshot an estimate was last recomputed from.
type ETAAnchor struct {
	Point              Point     `json:"point"`
	DistanceRemainingM float64   `json:"distanceRemainingM"`
	At                 time.Time `json:"at"`
}

// ETAState carries everything the ETA engine needs between samples.
type ETAState struct {
	Estimate  ETAEstimate `json:"estimate"`
	Anchor    ETAAnchor   `json:"anchor"`
	SpeedEWMA float64     `json:"speedEwma"`
}

// SLARisk is the accumulated risk classification of an order.
type SLARisk struct {
	Level      SLARiskLevel `json:"level"`
	Reasons    []SLAReason  `json:"reasons"`
	DetectedAt *time.Time   `json:"detectedAt,omitempty"`
}

// TrackingProjection is the latest enriched state of one order. It is owned
// by the projection worker and read-only everywhere else.
type TrackingProjection struct {
	OrderID      string `json:"orderId"`
	CourierID    string `json:"courierId"`
	LastSequence int64  `json:"lastSequence"`

	RawPoint     Point     `json:"rawPoint"`
	RawAccuracyM float64   `json:"rawAccuracyM"`
	RawAt        time.Time `json:"rawAt"`

	SmoothedPoint     Point         `json:"smoothedPoint"`
	SmoothedAt        time.Time     `json:"smoothedAt"`
	SmoothedAccuracyM float64       `json:"smoothedAccuracyM"`
	Movement          MovementState `json:"movement"`
	Confidence        Confidence    `json:"confidence"`
	// LastMovingAt only advances on accepted MOVING fixes.
	LastMovingAt time.Time `json:"lastMovingAt"`

	// RawMovedRecently is the coarse movement heuristic on raw fixes.
	RawMovedRecently bool `json:"rawMovedRecently"`

	Marker PrivacyMarker `json:"marker"`

	LifecycleStatus    OrderLifecycle   `json:"lifecycleStatus,omitempty"`
	InternalState      InternalState    `json:"internalState"`
	Checkpoint         Checkpoint       `json:"checkpoint"`
	LastTransition     *StateTransition `json:"lastTransition,omitempty"`
	NearDestination    bool             `json:"nearDestination"`
	DistanceRemainingM *float64         `json:"distanceRemainingM,omitempty"`
	DwellStartedAt     *time.Time       `json:"dwellStartedAt,omitempty"`

	ETA *ETAState `json:"eta,omitempty"`
	SLA *SLARisk  `json:"sla,omitempty"`

	Freshness     Freshness `json:"freshness"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}
