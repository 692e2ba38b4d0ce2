package handler

import (
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Ingestion ---

// locationRequest documents the ingestion payload for swagger. The handler
// never binds it: the raw body goes to the ingestion service untouched so
// malformed payloads can be dead-lettered verbatim.
type locationRequest struct {
	SchemaVersion int      `json:"schemaVersion" example:"1"`
	RiderID       string   `json:"riderId"       example:"courier-42"`
	OrderID       string   `json:"orderId"       example:"ord-1001"`
	Seq           int64    `json:"seq"           example:"17"`
	Lat           float64  `json:"lat"           example:"19.4326"`
	Lng           float64  `json:"lng"           example:"-99.1332"`
	AccuracyM     float64  `json:"accuracyM"     example:"8.5"`
	SpeedMps      *float64 `json:"speedMps,omitempty"`
	HeadingDeg    *float64 `json:"headingDeg,omitempty"`
	DeviceTs      string   `json:"deviceTs"      example:"2026-03-01T12:00:00Z"`
}

type ingestResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// --- Customer read contract ---
// One response type per tracking state.

type hiddenTrackingResponse struct {
	TrackingState string `json:"trackingState" example:"HIDDEN"`
}

type offlineTrackingResponse struct {
	TrackingState  string     `json:"trackingState"  example:"OFFLINE"`
	LastUpdatedAt  *time.Time `json:"lastUpdatedAt"`
	FreshnessState string     `json:"freshnessState" example:"OFFLINE"`
}

type markerResponse struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM float64 `json:"radiusM"`
}

type availableTrackingResponse struct {
	TrackingState   string         `json:"trackingState"   example:"AVAILABLE"`
	LastUpdatedAt   time.Time      `json:"lastUpdatedAt"`
	FreshnessState  string         `json:"freshnessState"  example:"LIVE"`
	Marker          markerResponse `json:"marker"`
	CheckpointState string         `json:"checkpointState" example:"ON_THE_WAY"`
}

// --- Ops ---

type opsProjectionResponse struct {
	Projection     *domain.TrackingProjection `json:"projection"`
	Freshness      string                     `json:"freshness"`
	KillSwitchMode string                     `json:"killSwitchMode"`
}

type killSwitchRequest struct {
	Mode string `json:"mode" validate:"required" example:"INGEST_ONLY"`
}

type killSwitchResponse struct {
	Mode string `json:"mode"`
}

// --- Courier credentials ---

type courierCredentialsRequest struct {
	CourierID string `json:"courierId" validate:"required,max=64,printascii"`
	Secret    string `json:"secret"    validate:"required,min=8,max=128"`
}

type courierResponse struct {
	CourierID string    `json:"courierId"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
