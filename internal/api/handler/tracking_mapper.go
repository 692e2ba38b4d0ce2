package handler

import (
	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

// toCustomerTrackingResponse picks the response shape for the view's state.
// Unknown states render as HIDDEN.
func toCustomerTrackingResponse(v domain.CustomerTracking) any {
	switch v.State {
	case domain.TrackingAvailable:
		resp := availableTrackingResponse{
			TrackingState:   string(domain.TrackingAvailable),
			FreshnessState:  string(v.Freshness),
			CheckpointState: string(v.Checkpoint),
		}
		if v.LastUpdatedAt != nil {
			resp.LastUpdatedAt = v.LastUpdatedAt.UTC()
		}
		if v.Marker != nil {
			resp.Marker = markerResponse{Lat: v.Marker.Lat, Lng: v.Marker.Lng, RadiusM: v.Marker.RadiusM}
		}
		return resp
	case domain.TrackingOffline:
		return offlineTrackingResponse{
			TrackingState:  string(domain.TrackingOffline),
			FreshnessState: string(domain.FreshnessOffline),
		}
	default:
		return hiddenTrackingResponse{TrackingState: string(domain.TrackingHidden)}
	}
}

func toOpsProjectionResponse(v *ports.OpsProjection) opsProjectionResponse {
	return opsProjectionResponse{
		Projection:     v.Projection,
		Freshness:      string(v.Freshness),
		KillSwitchMode: string(v.KillSwitchMode),
	}
}

func toCourierResponse(c *domain.CourierCredential) courierResponse {
	return courierResponse{
		CourierID: c.CourierID,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
	}
}
