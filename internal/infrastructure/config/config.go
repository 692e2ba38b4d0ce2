package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/tracking"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"                   validate:"required"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	StreamDriver     string `env:"STREAM_DRIVER,      default=memory"      validate:"oneof=memory redis nats"`
	StoreDriver      string `env:"STORE_DRIVER,       default=memory"      validate:"oneof=memory redis"`
	KillSwitch       string `env:"KILL_SWITCH,        default=INGEST_ONLY" validate:"required"`
	KillSwitchDriver string `env:"KILL_SWITCH_DRIVER, default=static"      validate:"oneof=static redis"`
	OrderSource      string `env:"ORDER_SOURCE,       default=none"        validate:"oneof=mongo none"`

	// TuningFile optionally points at a YAML file whose values overlay the
	// tracking thresholds read from the environment.
	TuningFile string `env:"TRACKING_TUNING_FILE"`

	Mongo    MongoConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Worker   WorkerConfig
	Tracking tracking.Config
}

type MongoConfig struct {
	URI         string        `env:"MONGO_URI,           default=mongodb://localhost:27017"`
	Database    string        `env:"MONGO_DB,            default=delivery_tracking"`
	MaxPoolSize uint64        `env:"MONGO_MAX_POOL_SIZE, default=0"`
	Timeout     time.Duration `env:"MONGO_TIMEOUT,       default=5s"`
}

type RedisConfig struct {
	Addr      string        `env:"REDIS_ADDR,       default=localhost:6379"`
	Password  string        `env:"REDIS_PASSWORD"`
	DB        int           `env:"REDIS_DB,         default=0"`
	PoolSize  int           `env:"REDIS_POOL_SIZE,  default=0"`
	KeyPrefix string        `env:"REDIS_KEY_PREFIX, default=tracking:"`
	Stream    string        `env:"REDIS_STREAM,     default=tracking:samples"`
	DLQStream string        `env:"REDIS_DLQ_STREAM, default=tracking:dlq"`
	Group     string        `env:"REDIS_GROUP,      default=projection-worker"`
	Consumer  string        `env:"REDIS_CONSUMER"`
	MaxLen    int64         `env:"REDIS_STREAM_MAXLEN, default=1000000"`
	KillKey   string        `env:"REDIS_KILL_SWITCH_KEY, default=tracking:kill-switch"`
	KillCache time.Duration `env:"REDIS_KILL_SWITCH_CACHE, default=2s"`
}

type NATSConfig struct {
	URL           string        `env:"NATS_URL,             default=nats://localhost:4222"`
	Stream        string        `env:"NATS_STREAM,          default=TRACKING"`
	Subject       string        `env:"NATS_SUBJECT,         default=tracking.samples"`
	DLQSubject    string        `env:"NATS_DLQ_SUBJECT,     default=tracking.dlq"`
	Durable       string        `env:"NATS_DURABLE,         default=projection-worker"`
	MaxAckPending int           `env:"NATS_MAX_ACK_PENDING, default=1024"`
	AckWait       time.Duration `env:"NATS_ACK_WAIT,        default=30s"`
}

type WorkerConfig struct {
	Shards             int           `env:"WORKER_SHARDS,         default=8"    validate:"gte=1,lte=1024"`
	OrderLookupTimeout time.Duration `env:"ORDER_LOOKUP_TIMEOUT,  default=750ms"`
	ProjectionTTL      time.Duration `env:"PROJECTION_TTL,        default=4h"`
	MaxClockSkew       time.Duration `env:"MAX_CLOCK_SKEW,        default=10m"`
	MovementHeuristicM float64       `env:"MOVEMENT_HEURISTIC_M,  default=25"   validate:"gt=0"`
}

// KillSwitchMode returns the parsed initial kill switch mode.
func (c *Config) KillSwitchMode() (domain.KillSwitchMode, error) {
	return domain.ParseKillSwitchMode(c.KillSwitch)
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through lookuper, overlays the tuning file
// when one is configured, then validates and clamps the result.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	if cfg.TuningFile != "" {
		if err := overlayTuning(cfg.TuningFile, &cfg.Tracking); err != nil {
			return nil, err
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if _, err := cfg.KillSwitchMode(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Tracking.Freshness.StaleAfter <= 0 || cfg.Tracking.Freshness.OfflineAfter <= 0 {
		return nil, errors.New("config: freshness thresholds must be positive")
	}

	cfg.Tracking = cfg.Tracking.Normalize()
	return &cfg, nil
}

// overlayTuning decodes path over t. Keys absent from the file keep their
// environment values.
func overlayTuning(path string, t *tracking.Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: tuning file: %w", err)
	}
	if err := yaml.Unmarshal(raw, t); err != nil {
		return fmt.Errorf("config: tuning file %s: %w", path, err)
	}
	return nil
}
