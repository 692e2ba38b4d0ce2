package ports

import (
	"context"
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// TTLStore is the expiring key/value capability every tracking store is
// built on. Get returns domain.ErrKeyNotFound for missing or expired keys.
type TTLStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetMany writes all entries or none of them.
	SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

// WatermarkStore remembers the last accepted sequence per (courier, order).
// Watermarks are only written through TrackingStore.Commit.
type WatermarkStore interface {
	LastAccepted(ctx context.Context, courierID, orderID string) (seq int64, ok bool, err error)
}

// ProjectionStore holds the latest projection per order.
type ProjectionStore interface {
	// Get returns domain.ErrProjectionNotFound when the order has no live projection.
	Get(ctx context.Context, orderID string) (*domain.TrackingProjection, error)
	Delete(ctx context.Context, orderID string) error
}

// TrackingStore is what the projection worker needs: both stores plus an
// atomic commit of a projection together with its watermark.
type TrackingStore interface {
	WatermarkStore
	ProjectionStore
	Commit(ctx context.Context, p *domain.TrackingProjection, ttl time.Duration) error
}
