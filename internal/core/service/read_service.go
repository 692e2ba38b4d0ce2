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

type readService struct {
	store      ports.ProjectionStore
	killSwitch ports.KillSwitch
	freshness  tracking.FreshnessConfig
	now        func() time.Time
	log        zerolog.Logger
}

// NewReadService returns a ReadService implementation. now defaults to
// time.Now when nil.
func NewReadService(
	store ports.ProjectionStore,
	killSwitch ports.KillSwitch,
	freshness tracking.FreshnessConfig,
	now func() time.Time,
	log zerolog.Logger,
) ports.ReadService {
	if now == nil {
		now = time.Now
	}
	return &readService{
		store:      store,
		killSwitch: killSwitch,
		freshness:  freshness,
		now:        now,
		log:        log,
	}
}

// CustomerTracking never fails: store errors degrade to the OFFLINE shape.
func (s *readService) CustomerTracking(ctx context.Context, orderID string) domain.CustomerTracking {
	view := s.customerTracking(ctx, orderID)
	metrics.TrackingReadsTotal.WithLabelValues(string(view.State)).Inc()
	return view
}

func (s *readService) customerTracking(ctx context.Context, orderID string) domain.CustomerTracking {
	if !s.killSwitch.Mode(ctx).AllowsCustomerRead() {
		return domain.CustomerTracking{State: domain.TrackingHidden}
	}

	p, err := s.store.Get(ctx, orderID)
	if err != nil {
		if !errors.Is(err, domain.ErrProjectionNotFound) {
			s.log.Error().Err(err).Str("order_id", orderID).Msg("customer read failed")
		}
		return domain.CustomerTracking{State: domain.TrackingOffline, Freshness: domain.FreshnessOffline}
	}

	updatedAt := p.LastUpdatedAt
	marker := p.Marker
	return domain.CustomerTracking{
		State:         domain.TrackingAvailable,
		LastUpdatedAt: &updatedAt,
		Freshness:     tracking.ComputeFreshness(p.LastUpdatedAt, s.now(), s.freshness),
		Marker:        &marker,
		Checkpoint:    p.Checkpoint,
	}
}

// OpsProjection returns the full projection regardless of kill switch mode.
func (s *readService) OpsProjection(ctx context.Context, orderID string) (*ports.OpsProjection, error) {
	p, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("ops projection: %w", err)
	}
	return &ports.OpsProjection{
		Projection:     p,
		Freshness:      tracking.ComputeFreshness(p.LastUpdatedAt, s.now(), s.freshness),
		KillSwitchMode: s.killSwitch.Mode(ctx),
	}, nil
}
