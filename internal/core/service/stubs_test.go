package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/db/kvstore"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/db/memory"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubKillSwitch struct {
	mu   sync.Mutex
	mode domain.KillSwitchMode
}

func newStubKillSwitch(mode domain.KillSwitchMode) *stubKillSwitch {
	return &stubKillSwitch{mode: mode}
}

func (k *stubKillSwitch) Mode(context.Context) domain.KillSwitchMode {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.mode
}

func (k *stubKillSwitch) SetMode(_ context.Context, mode domain.KillSwitchMode) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.mode = mode
	return nil
}

type stubStream struct {
	mu         sync.Mutex
	published  []domain.LocationSample
	dlq        []domain.DeadLetter
	publishErr error
}

func (s *stubStream) Publish(_ context.Context, sample domain.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publishErr != nil {
		return s.publishErr
	}
	s.published = append(s.published, sample)
	return nil
}

func (s *stubStream) PublishDLQ(_ context.Context, letter domain.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dlq = append(s.dlq, letter)
	return nil
}

func (s *stubStream) Subscribe(context.Context, ports.SampleHandler) (ports.Subscription, error) {
	return nil, errors.New("not supported")
}

func (s *stubStream) Close() error { return nil }

type stubOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.OrderContext
	err    error
	calls  int
}

func newStubOrders() *stubOrders {
	return &stubOrders{orders: make(map[string]*domain.OrderContext)}
}

func (o *stubOrders) OrderContext(_ context.Context, orderID string) (*domain.OrderContext, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	oc, ok := o.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := *oc
	return &clone, nil
}

func (o *stubOrders) set(oc domain.OrderContext) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.orders[oc.OrderID] = &oc
}

// failingStore wraps a real store and fails selected operations.
type failingStore struct {
	ports.TrackingStore
	commitErr error
	getErr    error
	commits   int
}

func (f *failingStore) Get(ctx context.Context, orderID string) (*domain.TrackingProjection, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.TrackingStore.Get(ctx, orderID)
}

func (f *failingStore) Commit(ctx context.Context, p *domain.TrackingProjection, ttl time.Duration) error {
	f.commits++
	if f.commitErr != nil {
		return f.commitErr
	}
	return f.TrackingStore.Commit(ctx, p, ttl)
}

func newMemoryStore() *kvstore.Store {
	return kvstore.New(memory.NewKV(0))
}

type stubCourierRepo struct {
	couriers map[string]*domain.CourierCredential
}

func newStubCourierRepo() *stubCourierRepo {
	return &stubCourierRepo{couriers: make(map[string]*domain.CourierCredential)}
}

func (r *stubCourierRepo) Create(_ context.Context, c *domain.CourierCredential) (*domain.CourierCredential, error) {
	if _, exists := r.couriers[c.CourierID]; exists {
		return nil, domain.ErrCourierExists
	}
	clone := *c
	if clone.ID == "" {
		clone.ID = c.CourierID
	}
	stored := clone
	r.couriers[c.CourierID] = &stored
	return &clone, nil
}

func (r *stubCourierRepo) FindByCourierID(_ context.Context, courierID string) (*domain.CourierCredential, error) {
	c, ok := r.couriers[courierID]
	if !ok {
		return nil, domain.ErrCourierNotFound
	}
	clone := *c
	return &clone, nil
}

// clock is a settable time source shared by a test and the services.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *clock { return &clock{t: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
