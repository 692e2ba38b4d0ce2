package ports

import (
	"context"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// SampleHandler processes one delivered sample. A returned error is logged
// by the transport; it never stops delivery of other messages.
type SampleHandler func(ctx context.Context, sample domain.LocationSample) error

// Subscription is a running consumer. Stop halts new consumption; work
// already handed to a key's worker is allowed to finish.
type Subscription interface {
	Stop()
}

// EventStream is the ordered-by-courier pub/sub between ingestion and the
// projection worker. Implementations deliver at least once and preserve
// publish order for samples sharing a courier ID.
type EventStream interface {
	Publish(ctx context.Context, sample domain.LocationSample) error
	PublishDLQ(ctx context.Context, letter domain.DeadLetter) error
	Subscribe(ctx context.Context, handler SampleHandler) (Subscription, error)
	Close() error
}
