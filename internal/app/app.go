// Package app assembles the tracking service from configuration: it picks
// the stream, store, kill switch and order source backends, builds the core
// services on top of them, and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/delivery-tracking/internal/api"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
	"github.com/99minutos/delivery-tracking/internal/core/service"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/config"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/db/kvstore"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/db/memory"
	mongorepo "github.com/99minutos/delivery-tracking/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/delivery-tracking/internal/infrastructure/db/redis"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/http/handlers"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/killswitch"
	"github.com/99minutos/delivery-tracking/internal/infrastructure/stream"
)

const (
	memorySweepInterval = time.Minute
	courierTokenTTL     = 12 * time.Hour
)

// Options selects which halves of the service run in this process.
type Options struct {
	API    bool
	Worker bool
}

// App is a fully wired service instance.
type App struct {
	cfg  *config.Config
	opts Options
	log  zerolog.Logger

	Stream     ports.EventStream
	Store      ports.TrackingStore
	KillSwitch ports.KillSwitch
	Ingestion  ports.IngestionService
	Reads      ports.ReadService
	Worker     *service.ProjectionWorker

	http *echo.Echo
	sub  ports.Subscription

	// closers run in reverse order on Shutdown.
	closers []func(ctx context.Context) error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// New connects every configured backend and builds the services. On error
// whatever was already opened is closed again.
func New(ctx context.Context, cfg *config.Config, opts Options, log zerolog.Logger) (_ *App, err error) {
	if !opts.API && !opts.Worker {
		return nil, errors.New("app: nothing to run, enable the API, the worker or both")
	}

	a := &App{cfg: cfg, opts: opts, log: log}
	defer func() {
		if err != nil {
			_ = a.Shutdown(context.Background())
		}
	}()

	health := map[string]handlers.Pinger{}

	// --- Redis (store, stream or kill switch) ---
	var rdb *redis.Client
	if cfg.StoreDriver == "redis" || cfg.StreamDriver == "redis" || cfg.KillSwitchDriver == "redis" {
		rdb, err = redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return rdb.Close() })
		health["redis"] = pingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	// --- Mongo (order context and courier credentials) ---
	var (
		orders   ports.OrderContextProvider
		couriers ports.CourierRepository
	)
	if cfg.OrderSource == "mongo" {
		var (
			client *mongo.Client
			db     *mongo.Database
		)
		client, db, err = mongorepo.Connect(ctx, mongorepo.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
			Timeout:     cfg.Mongo.Timeout,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(func(ctx context.Context) error { return client.Disconnect(ctx) })

		orderRepo := mongorepo.NewOrderRepository(db)
		courierRepo := mongorepo.NewCourierRepository(db)
		if err = courierRepo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		orders, couriers = orderRepo, courierRepo
		health["mongodb"] = orderRepo
	}

	// --- Projection and watermark store ---
	var kv ports.TTLStore
	switch cfg.StoreDriver {
	case "redis":
		kv = redisdb.NewKV(rdb, cfg.Redis.KeyPrefix)
	default:
		mem := memory.NewKV(memorySweepInterval)
		a.onClose(func(context.Context) error { return mem.Close() })
		kv = mem
	}
	a.Store = kvstore.New(kv)

	// --- Kill switch ---
	initial, err := cfg.KillSwitchMode()
	if err != nil {
		return nil, err
	}
	switch cfg.KillSwitchDriver {
	case "redis":
		a.KillSwitch = killswitch.NewRedis(rdb, cfg.Redis.KillKey, initial, cfg.Redis.KillCache, log.With().Str("component", "kill-switch").Logger())
	default:
		a.KillSwitch = killswitch.NewStatic(initial)
	}

	// --- Event stream ---
	streamLog := log.With().Str("component", "stream").Str("driver", cfg.StreamDriver).Logger()
	switch cfg.StreamDriver {
	case "redis":
		a.Stream = stream.NewRedis(rdb, stream.RedisConfig{
			Stream:    cfg.Redis.Stream,
			DLQStream: cfg.Redis.DLQStream,
			Group:     cfg.Redis.Group,
			Consumer:  cfg.Redis.Consumer,
			MaxLen:    cfg.Redis.MaxLen,
			Shards:    cfg.Worker.Shards,
		}, streamLog)
	case "nats":
		var ns *stream.NATS
		ns, err = stream.ConnectNATS(ctx, stream.NATSConfig{
			URL:           cfg.NATS.URL,
			Stream:        cfg.NATS.Stream,
			Subject:       cfg.NATS.Subject,
			DLQSubject:    cfg.NATS.DLQSubject,
			Durable:       cfg.NATS.Durable,
			MaxAckPending: cfg.NATS.MaxAckPending,
			AckWait:       cfg.NATS.AckWait,
			Shards:        cfg.Worker.Shards,
		}, streamLog)
		if err != nil {
			return nil, err
		}
		a.Stream = ns
		health["nats"] = ns
	default:
		if opts.API != opts.Worker {
			log.Warn().Msg("memory stream only connects the API and worker of the same process")
		}
		a.Stream = stream.NewMemory(cfg.Worker.Shards, streamLog)
	}
	a.onClose(func(context.Context) error { return a.Stream.Close() })

	// --- Core services ---
	a.Ingestion = service.NewIngestionService(a.Stream, a.KillSwitch, service.IngestionConfig{
		MaxClockSkew: cfg.Worker.MaxClockSkew,
	}, log.With().Str("component", "ingestion").Logger())

	a.Reads = service.NewReadService(a.Store, a.KillSwitch, cfg.Tracking.Freshness, nil,
		log.With().Str("component", "read").Logger())

	if opts.Worker {
		a.Worker = service.NewProjectionWorker(a.Store, orders, a.KillSwitch, service.WorkerConfig{
			Tracking:           cfg.Tracking,
			ProjectionTTL:      cfg.Worker.ProjectionTTL,
			OrderLookupTimeout: cfg.Worker.OrderLookupTimeout,
			MovementHeuristicM: cfg.Worker.MovementHeuristicM,
		}, log.With().Str("component", "projection-worker").Logger())
	}

	// --- HTTP ---
	if opts.API {
		var auth ports.AuthService
		if couriers != nil {
			auth = service.NewAuthService(couriers, cfg.JWTSecret, courierTokenTTL)
		}
		a.http = api.NewRouter(api.Deps{
			Ingestion:  a.Ingestion,
			Reads:      a.Reads,
			Auth:       auth,
			KillSwitch: a.KillSwitch,
			Health:     health,
			JWTSecret:  cfg.JWTSecret,
			Log:        log.With().Str("component", "http").Logger(),
		})
	}

	return a, nil
}

func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Run starts the worker subscription and the HTTP server and blocks until
// ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.Worker != nil {
		sub, err := a.Stream.Subscribe(ctx, a.Worker.Handle)
		if err != nil {
			return fmt.Errorf("app: subscribe: %w", err)
		}
		a.sub = sub
		a.log.Info().Int("shards", a.cfg.Worker.Shards).Msg("projection worker started")
	}

	if a.http == nil {
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.log.Info().Str("addr", addr).Msg("http server listening")
		if err := a.http.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("app: http: %w", err)
	}
}

// Shutdown stops accepting requests, stops consumption, lets in-flight
// samples finish and closes every backend.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.http != nil {
		if err := a.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.sub != nil {
		a.sub.Stop()
		a.sub = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
