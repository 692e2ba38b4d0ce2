package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/delivery-tracking/internal/api/metrics"
	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/queue"
)

// RedisConfig names the Redis Streams keys and consumer group.
type RedisConfig struct {
	Stream    string
	DLQStream string
	Group     string
	Consumer  string // defaults to a random name
	MaxLen    int64
	Batch     int64
	Block     time.Duration
	Shards    int
}

// Redis is an EventStream on Redis Streams. Samples are appended with XADD
// and consumed through a consumer group; each message is acknowledged once
// the projection worker has handled it. Messages left pending by a previous
// run of the same consumer are replayed first.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
	log    zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, cfg RedisConfig, log zerolog.Logger) *Redis {
	if cfg.Consumer == "" {
		cfg.Consumer = "worker-" + uuid.NewString()
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 64
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	return &Redis{client: client, cfg: cfg, log: log}
}

var _ ports.EventStream = (*Redis)(nil)

func (r *Redis) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Publish appends the sample to the stream.
func (r *Redis) Publish(ctx context.Context, sample domain.LocationSample) error {
	if r.isClosed() {
		return domain.ErrStreamClosed
	}
	payload, err := encodeSample(sample)
	if err != nil {
		return err
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.cfg.Stream,
		MaxLen: r.cfg.MaxLen,
		Approx: r.cfg.MaxLen > 0,
		Values: map[string]interface{}{
			"courier_id": sample.CourierID,
			"payload":    payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.cfg.Stream, err)
	}
	return nil
}

// PublishDLQ appends the dead letter to the DLQ stream.
func (r *Redis) PublishDLQ(ctx context.Context, letter domain.DeadLetter) error {
	if r.isClosed() {
		return domain.ErrStreamClosed
	}
	payload, err := encodeDeadLetter(letter)
	if err != nil {
		return err
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.cfg.DLQStream,
		MaxLen: r.cfg.MaxLen,
		Approx: r.cfg.MaxLen > 0,
		Values: map[string]interface{}{
			"reason":  string(letter.Reason),
			"payload": payload,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.cfg.DLQStream, err)
	}
	return nil
}

// Subscribe creates the consumer group if needed and starts reading.
func (r *Redis) Subscribe(ctx context.Context, handler ports.SampleHandler) (ports.Subscription, error) {
	if r.isClosed() {
		return nil, domain.ErrStreamClosed
	}
	err := r.client.XGroupCreateMkStream(ctx, r.cfg.Stream, r.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	d := queue.NewDispatcher(r.cfg.Shards, handler, r.log)
	d.Start(ctx)
	ctx, cancel := context.WithCancel(ctx)

	sub := &subscription{cancel: cancel, dispatcher: d, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		r.consume(ctx, d)
	}()

	r.log.Info().
		Str("stream", r.cfg.Stream).
		Str("group", r.cfg.Group).
		Str("consumer", r.cfg.Consumer).
		Msg("redis stream subscribed")
	return sub, nil
}

// consume replays this consumer's pending messages from "0" until none are
// left, then switches to new messages (">").
func (r *Redis) consume(ctx context.Context, d *queue.Dispatcher) {
	cursor := "0"
	for ctx.Err() == nil {
		streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    r.cfg.Group,
			Consumer: r.cfg.Consumer,
			Streams:  []string{r.cfg.Stream, cursor},
			Count:    r.cfg.Batch,
			Block:    r.cfg.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error().Err(err).Msg("redis stream: read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		count := 0
		last := ""
		for _, s := range streams {
			for _, msg := range s.Messages {
				count++
				last = msg.ID
				if !r.deliver(ctx, d, msg) {
					return
				}
			}
		}
		switch {
		case cursor == ">":
		case count == 0:
			cursor = ">"
		default:
			// Pending history is paged by ID.
			cursor = last
		}
	}
}

// deliver decodes one message and hands it to the dispatcher. It returns
// false when the subscription is stopping.
func (r *Redis) deliver(ctx context.Context, d *queue.Dispatcher, msg redis.XMessage) bool {
	id := msg.ID
	ack := func() {
		if err := r.client.XAck(context.Background(), r.cfg.Stream, r.cfg.Group, id).Err(); err != nil {
			r.log.Warn().Err(err).Str("message_id", id).Msg("redis stream: ack failed")
		}
	}

	raw, _ := msg.Values["payload"].(string)
	sample, err := decodeSample([]byte(raw))
	if err != nil {
		r.log.Warn().Err(err).Str("message_id", id).Msg("redis stream: undecodable message")
		letter := domain.DeadLetter{
			ID:         uuid.NewString(),
			Reason:     domain.RejectBadPayload,
			Raw:        []byte(raw),
			ReceivedAt: time.Now().UTC(),
		}
		if err := r.PublishDLQ(ctx, letter); err != nil {
			r.log.Error().Err(err).Str("message_id", id).Msg("redis stream: dead-letter failed")
		} else {
			metrics.DeadLettersTotal.WithLabelValues(string(domain.RejectBadPayload)).Inc()
		}
		ack()
		return true
	}

	if err := d.Enqueue(ctx, queue.Delivery{Sample: sample, Ack: ack}); err != nil {
		return false
	}
	return true
}

// Close marks the stream closed. The client is owned by the caller.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
