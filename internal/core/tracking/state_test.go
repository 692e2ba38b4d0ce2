package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

func TestDeriveState_LifecycleDelivered(t *testing.T) {
	dest := origin
	res := DeriveState(StateInput{
		Now:           t0,
		Lifecycle:     domain.LifecycleDelivered,
		Destination:   &dest,
		Position:      Offset(origin, 0, 3000),
		Movement:      domain.MovementMoving,
		PreviousState: domain.StateInTransit,
	}, DefaultConfig().State)

	assert.Equal(t, domain.StateDeliveredCandidate, res.State)
	assert.Equal(t, domain.CheckpointDelivered, res.Checkpoint)
	require.NotNil(t, res.Transition)
	assert.Equal(t, domain.TransitionOrderLifecycle, res.Transition.Reason)
	assert.Equal(t, domain.StateInTransit, res.Transition.From)
}

func TestDeriveState_NearDestination(t *testing.T) {
	dest := origin
	res := DeriveState(StateInput{
		Now:         t0,
		Lifecycle:   domain.LifecycleInTransit,
		Destination: &dest,
		Position:    Offset(origin, 90, 150),
		Movement:    domain.MovementMoving,
	}, DefaultConfig().State)

	assert.Equal(t, domain.StateNearDestination, res.State)
	assert.Equal(t, domain.CheckpointNearby, res.Checkpoint)
	assert.True(t, res.NearDestination)
	require.NotNil(t, res.DistanceRemainingM)
	assert.InDelta(t, 150, *res.DistanceRemainingM, 1)
	assert.Equal(t, domain.TransitionDerived, res.Transition.Reason)
}

func TestDeriveState_PickedUpLifecycleIsInTransit(t *testing.T) {
	dest := origin
	res := DeriveState(StateInput{
		Now:           t0,
		Lifecycle:     domain.LifecyclePickedUp,
		Destination:   &dest,
		Position:      Offset(origin, 0, 3000),
		Movement:      domain.MovementMoving,
		PreviousState: domain.StateAtPickup,
	}, DefaultConfig().State)

	assert.Equal(t, domain.StateInTransit, res.State)
	require.NotNil(t, res.Transition)
	assert.Equal(t, domain.TransitionOrderLifecycle, res.Transition.Reason)
	assert.Equal(t, domain.StateAtPickup, res.Transition.From)
}

func TestDeriveState_DwellBecomesDeliveredCandidate(t *testing.T) {
	cfg := DefaultConfig().State
	dest := origin
	in := StateInput{
		Now:           t0,
		Lifecycle:     domain.LifecycleInTransit,
		Destination:   &dest,
		Position:      Offset(origin, 0, 30),
		Movement:      domain.MovementStationary,
		PreviousState: domain.StateNearDestination,
	}

	first := DeriveState(in, cfg)
	require.NotNil(t, first.DwellStartedAt)
	assert.Equal(t, t0, *first.DwellStartedAt)
	assert.Equal(t, domain.StateNearDestination, first.State)
	assert.Nil(t, first.Transition)

	in.Now = t0.Add(50 * time.Second)
	in.DwellStartedAt = first.DwellStartedAt
	in.PreviousCheckpoint = first.Checkpoint
	second := DeriveState(in, cfg)
	assert.Equal(t, domain.StateDeliveredCandidate, second.State)
	assert.Equal(t, domain.CheckpointDelivered, second.Checkpoint)
	assert.Equal(t, t0, *second.DwellStartedAt)

	// Moving resets the dwell.
	in.Movement = domain.MovementMoving
	third := DeriveState(in, cfg)
	assert.Nil(t, third.DwellStartedAt)
	assert.Equal(t, domain.StateNearDestination, third.State)
}

func TestDeriveState_CheckpointNeverRegresses(t *testing.T) {
	dest := origin
	res := DeriveState(StateInput{
		Now:                t0,
		Lifecycle:          domain.LifecycleInTransit,
		Destination:        &dest,
		Position:           Offset(origin, 0, 2000),
		Movement:           domain.MovementMoving,
		PreviousState:      domain.StateNearDestination,
		PreviousCheckpoint: domain.CheckpointNearby,
	}, DefaultConfig().State)

	assert.Equal(t, domain.StateInTransit, res.State)
	assert.Equal(t, domain.CheckpointNearby, res.Checkpoint)
}

func TestDeriveState_WithoutDestination(t *testing.T) {
	cfg := DefaultConfig().State

	res := DeriveState(StateInput{Now: t0, Lifecycle: domain.LifecyclePickedUp, Position: origin}, cfg)
	assert.Equal(t, domain.StateInTransit, res.State)
	assert.Equal(t, domain.CheckpointOnTheWay, res.Checkpoint)
	assert.Nil(t, res.DistanceRemainingM)
	assert.False(t, res.NearDestination)

	res = DeriveState(StateInput{
		Now:           t0,
		Lifecycle:     domain.LifecycleCreated,
		Position:      origin,
		PreviousState: domain.StateAtPickup,
	}, cfg)
	assert.Equal(t, domain.StateAtPickup, res.State)
	assert.Equal(t, domain.CheckpointPickedUp, res.Checkpoint)
	assert.Nil(t, res.Transition, "no transition without a state change")
}

func TestCheckpointFor(t *testing.T) {
	assert.Equal(t, domain.CheckpointPickedUp, CheckpointFor(domain.StateAtPickup))
	assert.Equal(t, domain.CheckpointPickedUp, CheckpointFor(domain.StatePickedUp))
	assert.Equal(t, domain.CheckpointOnTheWay, CheckpointFor(domain.StateInTransit))
	assert.Equal(t, domain.CheckpointNearby, CheckpointFor(domain.StateNearDestination))
	assert.Equal(t, domain.CheckpointDelivered, CheckpointFor(domain.StateDeliveredCandidate))
}

func TestConfigNormalize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.State.NearDestinationRadiusM = 10
	cfg.State.DeliveredCandidateRadiusM = 100
	cfg.State.DeliveredCandidateDwell = time.Second
	cfg.Privacy.MaxRadiusM = 5
	cfg.Freshness.OfflineAfter = 10 * time.Second
	cfg.ETA.MinSpeedMps, cfg.ETA.MaxSpeedMps = 40, 2
	cfg.Smoothing.MovingHold = 0

	n := cfg.Normalize()
	assert.Equal(t, 60*time.Second, n.Smoothing.MovingHold)
	assert.Equal(t, 25.0, n.State.NearDestinationRadiusM)
	assert.Equal(t, 25.0, n.State.DeliveredCandidateRadiusM)
	assert.Equal(t, 5*time.Second, n.State.DeliveredCandidateDwell)
	assert.Equal(t, n.Privacy.MinRadiusM, n.Privacy.MaxRadiusM)
	assert.Equal(t, n.Freshness.StaleAfter, n.Freshness.OfflineAfter)
	assert.Equal(t, 2.0, n.ETA.MinSpeedMps)
	assert.Equal(t, 40.0, n.ETA.MaxSpeedMps)

	cfg = DefaultConfig()
	cfg.State.NearDestinationRadiusM = 9000
	cfg.State.DeliveredCandidateDwell = 2 * time.Hour
	n = cfg.Normalize()
	assert.Equal(t, 5000.0, n.State.NearDestinationRadiusM)
	assert.Equal(t, 30*time.Minute, n.State.DeliveredCandidateDwell)
}
