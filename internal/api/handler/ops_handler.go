package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

// KillSwitchHandler lets ops read and flip the kill switch at runtime.
type KillSwitchHandler struct {
	killSwitch ports.KillSwitch
	log        zerolog.Logger
}

func NewKillSwitchHandler(killSwitch ports.KillSwitch, log zerolog.Logger) *KillSwitchHandler {
	return &KillSwitchHandler{killSwitch: killSwitch, log: log}
}

// Get handles GET /v1/ops/kill-switch.
//
// @Summary      Current kill switch mode
// @Tags         ops
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  killSwitchResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /v1/ops/kill-switch [get]
func (h *KillSwitchHandler) Get(c echo.Context) error {
	mode := h.killSwitch.Mode(c.Request().Context())
	return c.JSON(http.StatusOK, killSwitchResponse{Mode: string(mode)})
}

// Set handles PUT /v1/ops/kill-switch.
//
// @Summary      Change the kill switch mode
// @Tags         ops
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      killSwitchRequest  true  "OFF, INGEST_ONLY or CUSTOMER_READ_ENABLED"
// @Success      200   {object}  killSwitchResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/ops/kill-switch [put]
func (h *KillSwitchHandler) Set(c echo.Context) error {
	actor, _, err := callerIdentity(c)
	if err != nil {
		return err
	}

	var req killSwitchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	mode, err := domain.ParseKillSwitchMode(req.Mode)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	previous := h.killSwitch.Mode(ctx)
	if err := h.killSwitch.SetMode(ctx, mode); err != nil {
		return err
	}

	h.log.Warn().
		Str("actor", actor).
		Str("from", string(previous)).
		Str("to", string(mode)).
		Msg("kill switch changed")

	return c.JSON(http.StatusOK, killSwitchResponse{Mode: string(mode)})
}
