package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

// maxLocationBody caps a single ingestion payload.
const maxLocationBody = 16 << 10

// LocationHandler handles courier location ingestion.
type LocationHandler struct {
	ingestion ports.IngestionService
}

// NewLocationHandler creates a LocationHandler backed by the given ingestion service.
func NewLocationHandler(ingestion ports.IngestionService) *LocationHandler {
	return &LocationHandler{ingestion: ingestion}
}

// Receive handles POST /v1/locations. The body is handed to the ingestion
// service as-is; the token subject is the only courier identity trusted.
//
// @Summary      Report a courier location sample
// @Tags         locations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      locationRequest  true  "Location sample (schemaVersion 1)"
// @Success      202   {object}  ingestResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Failure      422   {object}  ingestResponse
// @Failure      503   {object}  ingestResponse
// @Router       /v1/locations [post]
func (h *LocationHandler) Receive(c echo.Context) error {
	courierID, _, err := callerIdentity(c)
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxLocationBody+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}
	if len(raw) > maxLocationBody {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
	}

	res, err := h.ingestion.Ingest(c.Request().Context(), courierID, raw)
	if err != nil {
		return err
	}

	if res.Accepted {
		return c.JSON(http.StatusAccepted, ingestResponse{Status: "accepted"})
	}

	status := http.StatusUnprocessableEntity
	if res.Reason == domain.RejectKillSwitchOff {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, ingestResponse{Status: "rejected", Reason: string(res.Reason)})
}
