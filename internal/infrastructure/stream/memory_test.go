package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

func TestMemory_DeliversInOrderPerCourier(t *testing.T) {
	bus := NewMemory(4, zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	var (
		mu  sync.Mutex
		got = map[string][]int64{}
	)
	sub, err := bus.Subscribe(context.Background(), func(_ context.Context, s domain.LocationSample) error {
		mu.Lock()
		got[s.CourierID] = append(got[s.CourierID], s.Sequence)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	for seq := int64(1); seq <= 20; seq++ {
		for _, c := range []string{"a", "b"} {
			require.NoError(t, bus.Publish(context.Background(), domain.LocationSample{CourierID: c, Sequence: seq}))
		}
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got["a"]) == 20 && len(got["b"]) == 20
	}, 2*time.Second, 10*time.Millisecond)
	sub.Stop()

	for _, c := range []string{"a", "b"} {
		for i, seq := range got[c] {
			assert.Equal(t, int64(i+1), seq, "courier %s", c)
		}
	}
}

func TestMemory_SingleSubscriber(t *testing.T) {
	bus := NewMemory(1, zerolog.Nop())
	handler := func(context.Context, domain.LocationSample) error { return nil }

	sub, err := bus.Subscribe(context.Background(), handler)
	require.NoError(t, err)
	defer sub.Stop()

	_, err = bus.Subscribe(context.Background(), handler)
	assert.Error(t, err)
}

func TestMemory_ClosedRejectsPublish(t *testing.T) {
	bus := NewMemory(1, zerolog.Nop())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), domain.LocationSample{CourierID: "a"})
	assert.ErrorIs(t, err, domain.ErrStreamClosed)
	assert.ErrorIs(t, bus.PublishDLQ(context.Background(), domain.DeadLetter{}), domain.ErrStreamClosed)
}

func TestMemory_DeadLetters(t *testing.T) {
	bus := NewMemory(1, zerolog.Nop())
	letter := domain.DeadLetter{ID: "1", Reason: domain.RejectBadCoords, Raw: []byte(`{}`)}
	require.NoError(t, bus.PublishDLQ(context.Background(), letter))

	letters := bus.DeadLetters()
	require.Len(t, letters, 1)
	assert.Equal(t, domain.RejectBadCoords, letters[0].Reason)
}

func TestCodec_RejectsUnknownVersion(t *testing.T) {
	_, err := decodeSample([]byte(`{"v":2,"sample":{}}`))
	assert.Error(t, err)

	b, err := encodeSample(domain.LocationSample{CourierID: "c", Sequence: 7})
	require.NoError(t, err)
	s, err := decodeSample(b)
	require.NoError(t, err)
	assert.Equal(t, int64(7), s.Sequence)
}
