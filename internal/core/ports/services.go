package ports

import (
	"context"
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// IngestResult is the outcome of a single ingestion attempt.
type IngestResult struct {
	Accepted bool
	Reason   domain.RejectReason // empty when accepted
}

// IngestionService validates and publishes raw location payloads.
type IngestionService interface {
	// Ingest validates raw on behalf of callerID. Rejections are reported in
	// the result; an error means the sample could not be published.
	Ingest(ctx context.Context, callerID string, raw []byte) (IngestResult, error)
}

// OpsProjection is the internal view served to operations staff.
type OpsProjection struct {
	Projection     *domain.TrackingProjection
	Freshness      domain.Freshness
	KillSwitchMode domain.KillSwitchMode
}

// ReadService maps projections to the customer contract and the ops view.
type ReadService interface {
	CustomerTracking(ctx context.Context, orderID string) domain.CustomerTracking
	OpsProjection(ctx context.Context, orderID string) (*OpsProjection, error)
}

// AuthService handles courier device credentials and token issuing.
type AuthService interface {
	RegisterCourier(ctx context.Context, courierID, secret string) (*domain.CourierCredential, error)
	LoginCourier(ctx context.Context, courierID, secret string) (string, time.Time, error)
}
