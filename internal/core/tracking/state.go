package tracking

import (
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// StateInput is everything the state machine needs for one sample.
type StateInput struct {
	Now                time.Time
	Lifecycle          domain.OrderLifecycle
	Destination        *domain.Point
	Position           domain.Point
	Movement           domain.MovementState
	PreviousState      domain.InternalState // empty on first sample
	PreviousCheckpoint domain.Checkpoint    // empty on first sample
	DwellStartedAt     *time.Time
}

// StateResult is the derived state for one sample.
type StateResult struct {
	State              domain.InternalState
	Checkpoint         domain.Checkpoint
	NearDestination    bool
	DistanceRemainingM *float64
	DwellStartedAt     *time.Time
	Transition         *domain.StateTransition
}

// DeriveState computes the internal state and the customer checkpoint.
// The checkpoint is clamped so it never moves backwards.
func DeriveState(in StateInput, cfg StateConfig) StateResult {
	var res StateResult

	var (
		state  domain.InternalState
		reason = domain.TransitionDerived
	)

	if in.Destination != nil {
		d := Distance(in.Position, *in.Destination)
		res.DistanceRemainingM = &d
		res.NearDestination = d <= cfg.NearDestinationRadiusM

		if d <= cfg.DeliveredCandidateRadiusM && in.Movement != domain.MovementMoving {
			started := in.Now
			if in.DwellStartedAt != nil {
				started = *in.DwellStartedAt
			}
			res.DwellStartedAt = &started
		}
	}

	deliveredCandidate := res.DwellStartedAt != nil &&
		in.Now.Sub(*res.DwellStartedAt) >= cfg.DeliveredCandidateDwell

	switch {
	case in.Lifecycle == domain.LifecycleDelivered:
		state = domain.StateDeliveredCandidate
		reason = domain.TransitionOrderLifecycle
	case deliveredCandidate:
		state = domain.StateDeliveredCandidate
	case res.NearDestination:
		state = domain.StateNearDestination
	case in.Lifecycle.IsPickedUp():
		state = domain.StateInTransit
		reason = domain.TransitionOrderLifecycle
	default:
		state = domain.StateAtPickup
	}

	res.State = state
	res.Checkpoint = maxCheckpoint(in.PreviousCheckpoint, CheckpointFor(state))

	if state != in.PreviousState {
		res.Transition = &domain.StateTransition{
			From:   in.PreviousState,
			To:     state,
			Reason: reason,
			At:     in.Now,
		}
	}
	return res
}

// CheckpointFor maps an internal state to its customer checkpoint.
func CheckpointFor(s domain.InternalState) domain.Checkpoint {
	switch s {
	case domain.StateInTransit:
		return domain.CheckpointOnTheWay
	case domain.StateNearDestination:
		return domain.CheckpointNearby
	case domain.StateDeliveredCandidate:
		return domain.CheckpointDelivered
	default:
		return domain.CheckpointPickedUp
	}
}

func maxCheckpoint(a, b domain.Checkpoint) domain.Checkpoint {
	if a.Rank() >= b.Rank() {
		return a
	}
	return b
}
