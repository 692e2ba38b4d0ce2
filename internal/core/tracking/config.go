package tracking

import "time"

// Config groups every tunable threshold of the pipeline. Field defaults are
// declared in env tags so the same struct is filled by go-envconfig and may
// be overlaid from a YAML tuning file.
type Config struct {
	Smoothing SmoothingConfig `yaml:"smoothing"`
	State     StateConfig     `yaml:"state"`
	Privacy   PrivacyConfig   `yaml:"privacy"`
	Freshness FreshnessConfig `yaml:"freshness"`
	ETA       ETAConfig       `yaml:"eta"`
	SLA       SLAConfig       `yaml:"sla"`
}

type SmoothingConfig struct {
	StationaryThresholdM  float64 `env:"SMOOTHING_STATIONARY_THRESHOLD_M, default=12" yaml:"stationaryThresholdM" validate:"gt=0"`
	MovingSpeedMps        float64 `env:"SMOOTHING_MOVING_SPEED_MPS, default=1"        yaml:"movingSpeedMps"       validate:"gt=0"`
	MaxSpeedMps           float64 `env:"SMOOTHING_MAX_SPEED_MPS, default=55"          yaml:"maxSpeedMps"          validate:"gt=0"`
	SuppressLowConfidence bool    `env:"SMOOTHING_SUPPRESS_LOW_CONFIDENCE, default=true" yaml:"suppressLowConfidence"`

	// MovingHold is how long a MOVING state survives without an accepted fix.
	MovingHold time.Duration `env:"SMOOTHING_MOVING_HOLD, default=60s" yaml:"movingHold"`
}

type StateConfig struct {
	NearDestinationRadiusM    float64       `env:"STATE_NEAR_DESTINATION_RADIUS_M, default=200"    yaml:"nearDestinationRadiusM"    validate:"gt=0"`
	DeliveredCandidateRadiusM float64       `env:"STATE_DELIVERED_CANDIDATE_RADIUS_M, default=60"  yaml:"deliveredCandidateRadiusM" validate:"gt=0"`
	DeliveredCandidateDwell   time.Duration `env:"STATE_DELIVERED_CANDIDATE_DWELL, default=45s"    yaml:"deliveredCandidateDwell"`
}

type PrivacyConfig struct {
	MinRadiusM float64 `env:"PRIVACY_MIN_RADIUS_M, default=25"  yaml:"minRadiusM" validate:"gt=0"`
	MaxRadiusM float64 `env:"PRIVACY_MAX_RADIUS_M, default=180" yaml:"maxRadiusM" validate:"gt=0"`
}

type FreshnessConfig struct {
	StaleAfter   time.Duration `env:"FRESHNESS_STALE_AFTER, default=60s"    yaml:"staleAfter"`
	OfflineAfter time.Duration `env:"FRESHNESS_OFFLINE_AFTER, default=300s" yaml:"offlineAfter"`
}

type ETAConfig struct {
	RecomputeMovedM      float64       `env:"ETA_RECOMPUTE_MOVED_M, default=40"        yaml:"recomputeMovedM"      validate:"gt=0"`
	DeviationM           float64       `env:"ETA_DEVIATION_M, default=250"             yaml:"deviationM"           validate:"gt=0"`
	IdleThreshold        time.Duration `env:"ETA_IDLE_THRESHOLD, default=300s"         yaml:"idleThreshold"`
	MaxAge               time.Duration `env:"ETA_MAX_AGE, default=60s"                 yaml:"maxAge"`
	SuppressWindow       time.Duration `env:"ETA_SUPPRESS_WINDOW, default=150s"        yaml:"suppressWindow"`
	DefaultSpeedMps      float64       `env:"ETA_DEFAULT_SPEED_MPS, default=6"         yaml:"defaultSpeedMps"      validate:"gt=0"`
	SpeedAlpha           float64       `env:"ETA_SPEED_ALPHA, default=0.35"            yaml:"speedAlpha"           validate:"gt=0,lte=1"`
	MinSpeedMps          float64       `env:"ETA_MIN_SPEED_MPS, default=1.2"           yaml:"minSpeedMps"          validate:"gt=0"`
	MaxSpeedMps          float64       `env:"ETA_MAX_SPEED_MPS, default=30"            yaml:"maxSpeedMps"          validate:"gt=0"`
	MaxIdlePenalty       time.Duration `env:"ETA_MAX_IDLE_PENALTY, default=10m"        yaml:"maxIdlePenalty"`
	MinP90Buffer         time.Duration `env:"ETA_MIN_P90_BUFFER, default=120s"         yaml:"minP90Buffer"`
	LowConfidencePenalty time.Duration `env:"ETA_LOW_CONFIDENCE_PENALTY, default=240s" yaml:"lowConfidencePenalty"`
	HighUncertainty      float64       `env:"ETA_HIGH_UNCERTAINTY, default=0.25"       yaml:"highUncertainty"      validate:"gte=0"`
	MediumUncertainty    float64       `env:"ETA_MEDIUM_UNCERTAINTY, default=0.45"     yaml:"mediumUncertainty"    validate:"gte=0"`
	LowUncertainty       float64       `env:"ETA_LOW_UNCERTAINTY, default=0.8"         yaml:"lowUncertainty"       validate:"gte=0"`
}

type SLAConfig struct {
	IdleThreshold time.Duration `env:"SLA_IDLE_THRESHOLD, default=360s" yaml:"idleThreshold"`
	LongDistanceM float64       `env:"SLA_LONG_DISTANCE_M, default=1500" yaml:"longDistanceM" validate:"gt=0"`
}

// DefaultConfig returns the documented defaults without reading the environment.
func DefaultConfig() Config {
	return Config{
		Smoothing: SmoothingConfig{
			StationaryThresholdM:  12,
			MovingSpeedMps:        1,
			MaxSpeedMps:           55,
			SuppressLowConfidence: true,
			MovingHold:            60 * time.Second,
		},
		State: StateConfig{
			NearDestinationRadiusM:    200,
			DeliveredCandidateRadiusM: 60,
			DeliveredCandidateDwell:   45 * time.Second,
		},
		Privacy: PrivacyConfig{
			MinRadiusM: 25,
			MaxRadiusM: 180,
		},
		Freshness: FreshnessConfig{
			StaleAfter:   60 * time.Second,
			OfflineAfter: 300 * time.Second,
		},
		ETA: ETAConfig{
			RecomputeMovedM:      40,
			DeviationM:           250,
			IdleThreshold:        300 * time.Second,
			MaxAge:               60 * time.Second,
			SuppressWindow:       150 * time.Second,
			DefaultSpeedMps:      6,
			SpeedAlpha:           0.35,
			MinSpeedMps:          1.2,
			MaxSpeedMps:          30,
			MaxIdlePenalty:       10 * time.Minute,
			MinP90Buffer:         120 * time.Second,
			LowConfidencePenalty: 240 * time.Second,
			HighUncertainty:      0.25,
			MediumUncertainty:    0.45,
			LowUncertainty:       0.8,
		},
		SLA: SLAConfig{
			IdleThreshold: 360 * time.Second,
			LongDistanceM: 1500,
		},
	}
}

// Normalize applies the documented clamps and cross-field constraints.
func (c Config) Normalize() Config {
	if c.Smoothing.MovingHold <= 0 {
		c.Smoothing.MovingHold = 60 * time.Second
	}

	c.State.NearDestinationRadiusM = clamp(c.State.NearDestinationRadiusM, 25, 5000)
	if c.State.DeliveredCandidateRadiusM <= 0 || c.State.DeliveredCandidateRadiusM > c.State.NearDestinationRadiusM {
		c.State.DeliveredCandidateRadiusM = c.State.NearDestinationRadiusM
	}
	c.State.DeliveredCandidateDwell = clampDuration(c.State.DeliveredCandidateDwell, 5*time.Second, 30*time.Minute)

	if c.Privacy.MinRadiusM <= 0 {
		c.Privacy.MinRadiusM = 25
	}
	if c.Privacy.MaxRadiusM < c.Privacy.MinRadiusM {
		c.Privacy.MaxRadiusM = c.Privacy.MinRadiusM
	}

	if c.Freshness.OfflineAfter < c.Freshness.StaleAfter {
		c.Freshness.OfflineAfter = c.Freshness.StaleAfter
	}

	if c.ETA.MinSpeedMps > c.ETA.MaxSpeedMps {
		c.ETA.MinSpeedMps, c.ETA.MaxSpeedMps = c.ETA.MaxSpeedMps, c.ETA.MinSpeedMps
	}
	if c.ETA.SpeedAlpha <= 0 || c.ETA.SpeedAlpha > 1 {
		c.ETA.SpeedAlpha = 0.35
	}
	return c
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
