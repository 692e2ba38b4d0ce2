package ports

import (
	"context"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// OrderContextProvider reads the minimal order data the worker needs from
// the order lifecycle store. It is read-only.
type OrderContextProvider interface {
	OrderContext(ctx context.Context, orderID string) (*domain.OrderContext, error)
}
