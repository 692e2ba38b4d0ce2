package ports

import (
	"context"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// KillSwitch reports the current gate mode. Implementations must be cheap
// enough to call on every ingestion and every read.
type KillSwitch interface {
	Mode(ctx context.Context) domain.KillSwitchMode
	SetMode(ctx context.Context, mode domain.KillSwitchMode) error
}
