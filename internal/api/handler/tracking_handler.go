package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

// TrackingHandler serves the customer read contract and the ops projection view.
type TrackingHandler struct {
	reads ports.ReadService
}

func NewTrackingHandler(reads ports.ReadService) *TrackingHandler {
	return &TrackingHandler{reads: reads}
}

// CustomerTracking handles GET /v1/orders/:order_id/tracking.
//
// The response is always 200 and takes one of three shapes depending on
// trackingState: HIDDEN, OFFLINE or AVAILABLE.
//
// @Summary      Customer tracking view of an order
// @Tags         tracking
// @Produce      json
// @Security     BearerAuth
// @Param        order_id  path      string  true  "Order ID"
// @Success      200       {object}  availableTrackingResponse
// @Failure      400       {object}  errorResponse
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Router       /v1/orders/{order_id}/tracking [get]
func (h *TrackingHandler) CustomerTracking(c echo.Context) error {
	if _, _, err := callerIdentity(c); err != nil {
		return err
	}
	orderID, err := orderIDParam(c)
	if err != nil {
		return err
	}

	view := h.reads.CustomerTracking(c.Request().Context(), orderID)
	return c.JSON(http.StatusOK, toCustomerTrackingResponse(view))
}

// OpsProjection handles GET /v1/ops/orders/:order_id/projection.
//
// @Summary      Internal projection of an order
// @Tags         ops
// @Produce      json
// @Security     BearerAuth
// @Param        order_id  path      string  true  "Order ID"
// @Success      200       {object}  opsProjectionResponse
// @Failure      401       {object}  errorResponse
// @Failure      403       {object}  errorResponse
// @Failure      404       {object}  errorResponse
// @Router       /v1/ops/orders/{order_id}/projection [get]
func (h *TrackingHandler) OpsProjection(c echo.Context) error {
	orderID, err := orderIDParam(c)
	if err != nil {
		return err
	}

	view, err := h.reads.OpsProjection(c.Request().Context(), orderID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOpsProjectionResponse(view))
}

func orderIDParam(c echo.Context) (string, error) {
	orderID := strings.TrimSpace(c.Param("order_id"))
	if orderID == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "order_id is required")
	}
	return orderID, nil
}
