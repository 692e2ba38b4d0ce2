package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

type stubIngestion struct {
	result   ports.IngestResult
	err      error
	callerID string
	raw      []byte
}

func (s *stubIngestion) Ingest(_ context.Context, callerID string, raw []byte) (ports.IngestResult, error) {
	s.callerID = callerID
	s.raw = raw
	return s.result, s.err
}

type stubReads struct {
	view domain.CustomerTracking
	ops  *ports.OpsProjection
	err  error
}

func (s *stubReads) CustomerTracking(context.Context, string) domain.CustomerTracking {
	return s.view
}

func (s *stubReads) OpsProjection(context.Context, string) (*ports.OpsProjection, error) {
	return s.ops, s.err
}

type stubAuthService struct {
	registerFn func(ctx context.Context, courierID, secret string) (*domain.CourierCredential, error)
	loginFn    func(ctx context.Context, courierID, secret string) (string, time.Time, error)
}

func (s *stubAuthService) RegisterCourier(ctx context.Context, courierID, secret string) (*domain.CourierCredential, error) {
	return s.registerFn(ctx, courierID, secret)
}

func (s *stubAuthService) LoginCourier(ctx context.Context, courierID, secret string) (string, time.Time, error) {
	return s.loginFn(ctx, courierID, secret)
}

type stubKillSwitch struct {
	mu   sync.Mutex
	mode domain.KillSwitchMode
	err  error
}

func (s *stubKillSwitch) Mode(context.Context) domain.KillSwitchMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *stubKillSwitch) SetMode(_ context.Context, mode domain.KillSwitchMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.mode = mode
	return nil
}

// newContext builds an echo context with a validator and, when subject is
// non-empty, the claims the Auth middleware would have injected.
func newContext(method, target, body, subject, role string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if subject != "" {
		c.Set("subject", subject)
		c.Set("role", role)
	}
	return c, rec
}
