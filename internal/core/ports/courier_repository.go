package ports

import (
	"context"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// CourierRepository defines persistence for courier device credentials.
type CourierRepository interface {
	FindByCourierID(ctx context.Context, courierID string) (*domain.CourierCredential, error)
	Create(ctx context.Context, c *domain.CourierCredential) (*domain.CourierCredential, error)
}
