package queue

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/delivery-tracking/internal/api/metrics"
	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Delivery is one sample handed over by a transport. Ack, when set, is
// called once the handler has returned, whatever its result.
type Delivery struct {
	Sample domain.LocationSample
	Ack    func()
}

// Dispatcher routes deliveries to a fixed set of workers using consistent
// hashing on the courier ID, guaranteeing per-courier ordering while
// different couriers are processed concurrently.
type Dispatcher struct {
	workers []chan Delivery
	handler ports.SampleHandler
	log     zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	mu       sync.RWMutex
	stopped  bool
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, handler ports.SampleHandler, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan Delivery, numWorkers),
		handler: handler,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan Delivery, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers drain their shard and exit
// after Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue sends a delivery to the worker responsible for its courier. It
// blocks while the shard is full and gives up when ctx is done.
func (d *Dispatcher) Enqueue(ctx context.Context, del Delivery) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return domain.ErrStreamClosed
	}

	idx := d.shardIndex(del.Sample.CourierID)
	select {
	case d.workers[idx] <- del:
		metrics.DispatcherQueueDepth.WithLabelValues(strconv.Itoa(idx)).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes every shard and waits until in-flight deliveries are handled.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
		d.mu.Unlock()
	})
	d.wg.Wait()
}

// shardIndex maps a courier ID deterministically to a worker index.
func (d *Dispatcher) shardIndex(courierID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(courierID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan Delivery) {
	defer d.wg.Done()
	shard := strconv.Itoa(id)
	for del := range ch {
		metrics.DispatcherQueueDepth.WithLabelValues(shard).Dec()
		if err := d.handle(ctx, del); err != nil {
			d.log.Error().Err(err).
				Str("courier_id", del.Sample.CourierID).
				Str("order_id", del.Sample.OrderID).
				Int64("seq", del.Sample.Sequence).
				Int("worker_id", id).
				Msg("sample processing failed")
		}
		if del.Ack != nil {
			del.Ack()
		}
	}
}

// handle runs the handler, turning a panic into an error so one bad
// message cannot take the shard down.
func (d *Dispatcher) handle(ctx context.Context, del Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return d.handler(ctx, del.Sample)
}
