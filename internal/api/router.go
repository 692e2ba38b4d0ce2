package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/delivery-tracking/docs"
	"github.com/99minutos/delivery-tracking/internal/api/handler"
	"github.com/99minutos/delivery-tracking/internal/api/middleware"
	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/http/handlers"
)

// Deps are the services the HTTP surface is built from. Auth may be nil when
// no courier credential store is configured; the courier login and
// registration routes are then not registered. Metrics defaults to the
// prometheus default registry.
type Deps struct {
	Ingestion  ports.IngestionService
	Reads      ports.ReadService
	Auth       ports.AuthService
	KillSwitch ports.KillSwitch
	Health     map[string]handlers.Pinger
	JWTSecret  string
	Metrics    *prometheus.Registry
	Log        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if deps.Metrics != nil {
		registerer, gatherer = deps.Metrics, deps.Metrics
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "tracking",
		Registerer: registerer,
	}))

	// --- Handlers ---
	locationHandler := handler.NewLocationHandler(deps.Ingestion)
	trackingHandler := handler.NewTrackingHandler(deps.Reads)
	killSwitchHandler := handler.NewKillSwitchHandler(deps.KillSwitch, deps.Log)
	authMiddleware := middleware.Auth(deps.JWTSecret)

	// --- Courier ingestion ---
	v1 := e.Group("/v1", authMiddleware)
	v1.POST("/locations", locationHandler.Receive, middleware.RBAC(domain.RoleCourier))

	// --- Customer read boundary ---
	v1.GET("/orders/:order_id/tracking", trackingHandler.CustomerTracking, middleware.RBAC(domain.RoleCustomer, domain.RoleOps))

	// --- Ops ---
	ops := v1.Group("/ops", middleware.RBAC(domain.RoleOps))
	ops.GET("/orders/:order_id/projection", trackingHandler.OpsProjection)
	ops.GET("/kill-switch", killSwitchHandler.Get)
	ops.PUT("/kill-switch", killSwitchHandler.Set)

	// --- Courier credentials ---
	if deps.Auth != nil {
		authHandler := handler.NewAuthHandler(deps.Auth)
		e.POST("/auth/courier/token", authHandler.CourierToken)
		ops.POST("/couriers", authHandler.RegisterCourier)
	}

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.Health)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Metrics and docs ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// requestLogger emits one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil || v.Status >= 500 {
				evt = log.Error().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
