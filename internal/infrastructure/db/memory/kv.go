// Package memory provides an in-process expiring key/value store for tests
// and single-node deployments.
package memory

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

const defaultShards = 16

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

type shard struct {
	mu   sync.RWMutex
	data map[string]entry
}

// KV is a sharded map whose entries expire lazily on read and eagerly
// through a periodic sweep.
type KV struct {
	shards []*shard
	now    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// Option customises a KV.
type Option func(*KV)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(kv *KV) { kv.now = now }
}

// NewKV creates an empty store. When sweepEvery is positive a background
// goroutine purges expired keys until Close is called.
func NewKV(sweepEvery time.Duration, opts ...Option) *KV {
	kv := &KV{
		shards: make([]*shard, defaultShards),
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	for i := range kv.shards {
		kv.shards[i] = &shard{data: make(map[string]entry)}
	}
	for _, opt := range opts {
		opt(kv)
	}
	if sweepEvery > 0 {
		go kv.sweepLoop(sweepEvery)
	}
	return kv
}

func (kv *KV) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(kv.shards)))
}

func (kv *KV) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return kv.now().Add(ttl)
}

// Get returns a copy of the stored value.
func (kv *KV) Get(_ context.Context, key string) ([]byte, error) {
	s := kv.shards[kv.shardIndex(key)]
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok || e.expired(kv.now()) {
		return nil, domain.ErrKeyNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores value under key for ttl.
func (kv *KV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s := kv.shards[kv.shardIndex(key)]
	s.mu.Lock()
	s.data[key] = entry{value: clone(value), expiresAt: kv.expiry(ttl)}
	s.mu.Unlock()
	return nil
}

// SetMany locks every involved shard in index order so readers never see
// a partial batch.
func (kv *KV) SetMany(_ context.Context, entries map[string][]byte, ttl time.Duration) error {
	idx := make(map[int]struct{}, len(entries))
	for k := range entries {
		idx[kv.shardIndex(k)] = struct{}{}
	}
	order := make([]int, 0, len(idx))
	for i := range idx {
		order = append(order, i)
	}
	sort.Ints(order)

	for _, i := range order {
		kv.shards[i].mu.Lock()
	}
	exp := kv.expiry(ttl)
	for k, v := range entries {
		kv.shards[kv.shardIndex(k)].data[k] = entry{value: clone(v), expiresAt: exp}
	}
	for i := len(order) - 1; i >= 0; i-- {
		kv.shards[order[i]].mu.Unlock()
	}
	return nil
}

// Delete removes keys; missing keys are ignored.
func (kv *KV) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s := kv.shards[kv.shardIndex(k)]
		s.mu.Lock()
		delete(s.data, k)
		s.mu.Unlock()
	}
	return nil
}

// Ping always succeeds.
func (kv *KV) Ping(context.Context) error { return nil }

// Len counts live keys.
func (kv *KV) Len() int {
	now := kv.now()
	n := 0
	for _, s := range kv.shards {
		s.mu.RLock()
		for _, e := range s.data {
			if !e.expired(now) {
				n++
			}
		}
		s.mu.RUnlock()
	}
	return n
}

// Close stops the sweeper.
func (kv *KV) Close() error {
	kv.stopOnce.Do(func() { close(kv.stop) })
	return nil
}

func (kv *KV) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-kv.stop:
			return
		case <-t.C:
			kv.sweep()
		}
	}
}

func (kv *KV) sweep() {
	now := kv.now()
	for _, s := range kv.shards {
		s.mu.Lock()
		for k, e := range s.data {
			if e.expired(now) {
				delete(s.data, k)
			}
		}
		s.mu.Unlock()
	}
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
