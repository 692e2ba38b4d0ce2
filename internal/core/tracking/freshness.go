package tracking

import (
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// ComputeFreshness classifies a projection by the time elapsed since its
// last update. A zero lastUpdatedAt is OFFLINE.
func ComputeFreshness(lastUpdatedAt, now time.Time, cfg FreshnessConfig) domain.Freshness {
	if lastUpdatedAt.IsZero() {
		return domain.FreshnessOffline
	}
	elapsed := now.Sub(lastUpdatedAt)
	switch {
	case elapsed >= cfg.OfflineAfter:
		return domain.FreshnessOffline
	case elapsed >= cfg.StaleAfter:
		return domain.FreshnessStale
	default:
		return domain.FreshnessLive
	}
}
