package tracking

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// minCosLat keeps longitude offsets finite near the poles.
const minCosLat = 0.01

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b domain.Point) float64 {
	return geo.DistanceHaversine(orb.Point{a.Lng, a.Lat}, orb.Point{b.Lng, b.Lat})
}

// Offset moves p by meters along bearing (degrees clockwise from north).
func Offset(p domain.Point, bearingDeg, meters float64) domain.Point {
	theta := bearingDeg * math.Pi / 180
	north := meters * math.Cos(theta)
	east := meters * math.Sin(theta)

	cosLat := math.Cos(p.Lat * math.Pi / 180)
	if cosLat < minCosLat {
		cosLat = minCosLat
	}

	dLat := north / orb.EarthRadius * 180 / math.Pi
	dLng := east / (orb.EarthRadius * cosLat) * 180 / math.Pi
	return domain.Point{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
