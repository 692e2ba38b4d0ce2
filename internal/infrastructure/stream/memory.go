package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/queue"
)

const memoryBuffer = 1024

var errAlreadySubscribed = errors.New("stream already has a subscriber")

// Memory is an in-process EventStream for single-node deployments and tests.
// Published samples wait in a buffered channel until a subscriber drains them.
type Memory struct {
	shards int
	log    zerolog.Logger

	ch chan domain.LocationSample

	mu         sync.RWMutex
	closed     bool
	subscribed bool
	dlq        []domain.DeadLetter
}

// NewMemory creates an in-process stream dispatching over shards workers.
func NewMemory(shards int, log zerolog.Logger) *Memory {
	return &Memory{
		shards: shards,
		log:    log,
		ch:     make(chan domain.LocationSample, memoryBuffer),
	}
}

var _ ports.EventStream = (*Memory)(nil)

// Publish queues a sample. It blocks while the buffer is full.
func (m *Memory) Publish(ctx context.Context, sample domain.LocationSample) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return domain.ErrStreamClosed
	}
	select {
	case m.ch <- sample:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishDLQ keeps the dead letter in memory.
func (m *Memory) PublishDLQ(_ context.Context, letter domain.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return domain.ErrStreamClosed
	}
	m.dlq = append(m.dlq, letter)
	return nil
}

// DeadLetters returns a copy of every dead letter published so far.
func (m *Memory) DeadLetters() []domain.DeadLetter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.DeadLetter, len(m.dlq))
	copy(out, m.dlq)
	return out
}

// Subscribe starts draining the stream into handler. Only one subscriber
// is supported.
func (m *Memory) Subscribe(ctx context.Context, handler ports.SampleHandler) (ports.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, domain.ErrStreamClosed
	}
	if m.subscribed {
		return nil, errAlreadySubscribed
	}
	m.subscribed = true

	d := queue.NewDispatcher(m.shards, handler, m.log)
	d.Start(ctx)
	ctx, cancel := context.WithCancel(ctx)

	sub := &subscription{cancel: cancel, dispatcher: d, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-m.ch:
				if !ok {
					return
				}
				if err := d.Enqueue(ctx, queue.Delivery{Sample: s}); err != nil {
					m.log.Warn().Err(err).Str("courier_id", s.CourierID).Msg("memory stream: enqueue failed")
					return
				}
			}
		}
	}()
	return sub, nil
}

// Close stops accepting publishes. A running subscription drains what is
// already buffered and then exits.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.ch)
	return nil
}

// subscription is shared by every transport: a pump goroutine feeding a
// dispatcher, torn down in that order.
type subscription struct {
	cancel     context.CancelFunc
	dispatcher *queue.Dispatcher
	done       chan struct{}
	once       sync.Once
}

func (s *subscription) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.dispatcher.Stop()
	})
}
