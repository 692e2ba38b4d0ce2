package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterCourier provisions credentials for a courier device.
//
// @Summary      Register courier device credentials
// @Tags         ops
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      courierCredentialsRequest  true  "Courier ID and device secret"
// @Success      201   {object}  courierResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/ops/couriers [post]
func (h *AuthHandler) RegisterCourier(c echo.Context) error {
	var req courierCredentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	courier, err := h.authService.RegisterCourier(c.Request().Context(), req.CourierID, req.Secret)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toCourierResponse(courier))
}

// CourierToken exchanges device credentials for a courier JWT.
//
// @Summary      Courier device login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      courierCredentialsRequest  true  "Courier ID and device secret"
// @Success      200   {object}  tokenResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /auth/courier/token [post]
func (h *AuthHandler) CourierToken(c echo.Context) error {
	var req courierCredentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.CourierID == "" || req.Secret == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "courierId and secret are required")
	}

	token, expiresAt, err := h.authService.LoginCourier(c.Request().Context(), req.CourierID, req.Secret)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}
