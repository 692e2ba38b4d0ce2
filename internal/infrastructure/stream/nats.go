package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/99minutos/delivery-tracking/internal/api/metrics"
	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/queue"
)

// NATSConfig names the JetStream stream, subjects and durable consumer.
type NATSConfig struct {
	URL           string
	Stream        string
	Subject       string
	DLQSubject    string
	Durable       string
	MaxAckPending int
	AckWait       time.Duration
	Shards        int
}

// NATS is an EventStream on NATS JetStream. Samples and dead letters share
// one stream under different subjects; the worker reads samples through a
// durable consumer with explicit acks.
type NATS struct {
	conn *nats.Conn
	js   jetstream.JetStream
	cfg  NATSConfig
	log  zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// ConnectNATS dials the server and makes sure the stream exists.
func ConnectNATS(ctx context.Context, cfg NATSConfig, log zerolog.Logger) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("delivery-tracking"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject, cfg.DLQSubject},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}

	return &NATS{conn: conn, js: js, cfg: cfg, log: log}, nil
}

var _ ports.EventStream = (*NATS)(nil)

func (n *NATS) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Publish sends the sample and waits for the JetStream ack.
func (n *NATS) Publish(ctx context.Context, sample domain.LocationSample) error {
	if n.isClosed() {
		return domain.ErrStreamClosed
	}
	payload, err := encodeSample(sample)
	if err != nil {
		return err
	}
	if _, err := n.js.Publish(ctx, n.cfg.Subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", n.cfg.Subject, err)
	}
	return nil
}

// PublishDLQ sends the dead letter to the DLQ subject.
func (n *NATS) PublishDLQ(ctx context.Context, letter domain.DeadLetter) error {
	if n.isClosed() {
		return domain.ErrStreamClosed
	}
	payload, err := encodeDeadLetter(letter)
	if err != nil {
		return err
	}
	if _, err := n.js.Publish(ctx, n.cfg.DLQSubject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", n.cfg.DLQSubject, err)
	}
	return nil
}

// Subscribe binds the durable consumer and starts consuming.
func (n *NATS) Subscribe(ctx context.Context, handler ports.SampleHandler) (ports.Subscription, error) {
	if n.isClosed() {
		return nil, domain.ErrStreamClosed
	}

	consumer, err := n.js.CreateOrUpdateConsumer(ctx, n.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       n.cfg.Durable,
		FilterSubject: n.cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       n.cfg.AckWait,
		MaxAckPending: n.cfg.MaxAckPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", n.cfg.Durable, err)
	}

	d := queue.NewDispatcher(n.cfg.Shards, handler, n.log)
	d.Start(ctx)
	pumpCtx, cancel := context.WithCancel(ctx)

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		n.deliver(pumpCtx, d, msg)
	})
	if err != nil {
		cancel()
		d.Stop()
		return nil, fmt.Errorf("consume %s: %w", n.cfg.Durable, err)
	}

	sub := &subscription{dispatcher: d, done: make(chan struct{})}
	sub.cancel = func() {
		cc.Stop()
		cancel()
		close(sub.done)
	}

	n.log.Info().
		Str("stream", n.cfg.Stream).
		Str("subject", n.cfg.Subject).
		Str("durable", n.cfg.Durable).
		Msg("nats stream subscribed")
	return sub, nil
}

func (n *NATS) deliver(ctx context.Context, d *queue.Dispatcher, msg jetstream.Msg) {
	ack := func() {
		if err := msg.Ack(); err != nil {
			n.log.Warn().Err(err).Msg("nats stream: ack failed")
		}
	}

	sample, err := decodeSample(msg.Data())
	if err != nil {
		n.log.Warn().Err(err).Msg("nats stream: undecodable message")
		letter := domain.DeadLetter{
			ID:         uuid.NewString(),
			Reason:     domain.RejectBadPayload,
			Raw:        msg.Data(),
			ReceivedAt: time.Now().UTC(),
		}
		if err := n.PublishDLQ(ctx, letter); err != nil {
			n.log.Error().Err(err).Msg("nats stream: dead-letter failed")
		} else {
			metrics.DeadLettersTotal.WithLabelValues(string(domain.RejectBadPayload)).Inc()
		}
		ack()
		return
	}

	if err := d.Enqueue(ctx, queue.Delivery{Sample: sample, Ack: ack}); err != nil {
		// Left unacked; JetStream redelivers after AckWait.
		n.log.Debug().Err(err).Msg("nats stream: delivery abandoned")
	}
}

// Ping reports whether the connection is up.
func (n *NATS) Ping(_ context.Context) error {
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats: %s", n.conn.Status())
	}
	return nil
}

// Close drains the connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.conn.Drain()
}
