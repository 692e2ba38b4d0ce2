// Package kvstore implements the projection and watermark stores on top of
// any ports.TTLStore backing.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

// Key formats:
//
//	projection:<order_id>
//	watermark:<courier_id>:<order_id>
const (
	projectionPrefix = "projection:"
	watermarkPrefix  = "watermark:"
)

// Store implements ports.TrackingStore.
type Store struct {
	kv ports.TTLStore
}

// New wraps a TTL backing.
func New(kv ports.TTLStore) *Store {
	return &Store{kv: kv}
}

var _ ports.TrackingStore = (*Store)(nil)

func projectionKey(orderID string) string {
	return projectionPrefix + orderID
}

func watermarkKey(courierID, orderID string) string {
	return watermarkPrefix + courierID + ":" + orderID
}

// LastAccepted returns the last accepted sequence for the pair, if any.
func (s *Store) LastAccepted(ctx context.Context, courierID, orderID string) (int64, bool, error) {
	b, err := s.kv.Get(ctx, watermarkKey(courierID, orderID))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get watermark: %w", err)
	}
	seq, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("decode watermark: %w", err)
	}
	return seq, true, nil
}

// Get loads the projection for an order.
func (s *Store) Get(ctx context.Context, orderID string) (*domain.TrackingProjection, error) {
	b, err := s.kv.Get(ctx, projectionKey(orderID))
	if errors.Is(err, domain.ErrKeyNotFound) {
		return nil, domain.ErrProjectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get projection: %w", err)
	}
	var p domain.TrackingProjection
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("decode projection: %w", err)
	}
	return &p, nil
}

// Delete removes the projection of an order.
func (s *Store) Delete(ctx context.Context, orderID string) error {
	return s.kv.Delete(ctx, projectionKey(orderID))
}

// Commit writes the projection and its watermark together, refreshing the
// TTL of both.
func (s *Store) Commit(ctx context.Context, p *domain.TrackingProjection, ttl time.Duration) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode projection: %w", err)
	}
	entries := make(map[string][]byte, 2)
	entries[projectionKey(p.OrderID)] = b
	entries[watermarkKey(p.CourierID, p.OrderID)] = []byte(strconv.FormatInt(p.LastSequence, 10))
	if err := s.kv.SetMany(ctx, entries, ttl); err != nil {
		return fmt.Errorf("commit projection: %w", err)
	}
	return nil
}
