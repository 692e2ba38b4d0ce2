package tracking

import (
	"hash/fnv"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

const (
	markerAccuracyFactor = 1.5
	markerNearFactor     = 2.0
	markerDecimals       = 5
)

// ComputeMarker derives the public, obfuscated position for an order.
// The offset direction and magnitude come from a hash of the order ID so a
// given order always blurs the same way; the radius widens near the
// destination where exact positions are most sensitive.
func ComputeMarker(orderID string, base domain.Point, accuracyM float64, nearDestination bool, cfg PrivacyConfig) domain.PrivacyMarker {
	factor := markerAccuracyFactor
	if nearDestination {
		factor *= markerNearFactor
	}
	radius := clamp(accuracyM*factor, cfg.MinRadiusM, cfg.MaxRadiusM)

	h := orderHash(orderID)
	angle := float64(h % 360)
	magnitude := float64((h>>16)&0xffff) / 0xffff

	p := Offset(base, angle, magnitude*radius)
	return domain.PrivacyMarker{
		Lat:     round(p.Lat, markerDecimals),
		Lng:     round(p.Lng, markerDecimals),
		RadiusM: radius,
	}
}

func orderHash(orderID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	return h.Sum32()
}
