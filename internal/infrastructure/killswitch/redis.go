package killswitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

const defaultCacheTTL = 2 * time.Second

// Redis shares the kill switch between every node through a single key.
// Reads are cached locally for a short time; when Redis is unreachable or
// the key is unset the fallback mode applies.
type Redis struct {
	client   *redis.Client
	key      string
	fallback domain.KillSwitchMode
	cacheTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	cached   domain.KillSwitchMode
	cachedAt time.Time
}

// NewRedis creates a Redis-backed kill switch.
func NewRedis(client *redis.Client, key string, fallback domain.KillSwitchMode, cacheTTL time.Duration, log zerolog.Logger) *Redis {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &Redis{
		client:   client,
		key:      key,
		fallback: fallback,
		cacheTTL: cacheTTL,
		log:      log,
		now:      time.Now,
	}
}

var _ ports.KillSwitch = (*Redis)(nil)

func (r *Redis) Mode(ctx context.Context) domain.KillSwitchMode {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != "" && r.now().Sub(r.cachedAt) < r.cacheTTL {
		return r.cached
	}

	mode := r.fallback
	val, err := r.client.Get(ctx, r.key).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		r.log.Warn().Err(err).Msg("kill switch: redis read failed, using fallback")
	default:
		parsed, perr := domain.ParseKillSwitchMode(val)
		if perr != nil {
			r.log.Warn().Err(perr).Msg("kill switch: invalid stored mode, using fallback")
		} else {
			mode = parsed
		}
	}

	r.cached = mode
	r.cachedAt = r.now()
	return mode
}

func (r *Redis) SetMode(ctx context.Context, mode domain.KillSwitchMode) error {
	if err := r.client.Set(ctx, r.key, string(mode), 0).Err(); err != nil {
		return fmt.Errorf("set kill switch: %w", err)
	}
	r.mu.Lock()
	r.cached = mode
	r.cachedAt = r.now()
	r.mu.Unlock()
	return nil
}
