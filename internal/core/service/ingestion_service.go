package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/delivery-tracking/internal/api/metrics"
	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

const defaultMaxClockSkew = 10 * time.Minute

// locationPayload is the schemaVersion 1 ingestion body. seq and deviceTs
// accept more than one JSON type, so they are decoded by hand.
type locationPayload struct {
	SchemaVersion *int            `json:"schemaVersion"`
	RiderID       string          `json:"riderId"`
	OrderID       string          `json:"orderId"`
	Seq           json.RawMessage `json:"seq"`
	Lat           *float64        `json:"lat"`
	Lng           *float64        `json:"lng"`
	AccuracyM     *float64        `json:"accuracyM"`
	SpeedMps      *float64        `json:"speedMps"`
	HeadingDeg    *float64        `json:"headingDeg"`
	DeviceTs      json.RawMessage `json:"deviceTs"`
}

// sampleRules holds the shape rules checked by the validator. Each field
// maps to exactly one reject reason through ruleReasons.
type sampleRules struct {
	SchemaVersion *int     `validate:"required,eq=1"`
	RiderID       string   `validate:"required"`
	OrderID       string   `validate:"required"`
	Seq           *int64   `validate:"required,gte=0"`
	Lat           *float64 `validate:"required,gte=-90,lte=90"`
	Lng           *float64 `validate:"required,gte=-180,lte=180"`
	AccuracyM     *float64 `validate:"required,gt=0,lte=5000"`
	SpeedMps      *float64 `validate:"omitempty,gte=0,lte=80"`
	HeadingDeg    *float64 `validate:"omitempty,gte=0,lt=360"`
}

var ruleReasons = map[string]domain.RejectReason{
	"SchemaVersion": domain.RejectSchemaVersion,
	"RiderID":       domain.RejectBadIDs,
	"OrderID":       domain.RejectBadIDs,
	"Seq":           domain.RejectBadSeq,
	"Lat":           domain.RejectBadCoords,
	"Lng":           domain.RejectBadCoords,
	"AccuracyM":     domain.RejectBadAccuracy,
	"SpeedMps":      domain.RejectImpossibleSpeed,
	"HeadingDeg":    domain.RejectBadHeading,
}

// reasonPrecedence decides which reason is reported when several rules fail.
var reasonPrecedence = []domain.RejectReason{
	domain.RejectSchemaVersion,
	domain.RejectBadIDs,
	domain.RejectAuthMismatch,
	domain.RejectBadSeq,
	domain.RejectBadCoords,
	domain.RejectBadAccuracy,
	domain.RejectBadTimestamp,
	domain.RejectTimestampSkew,
	domain.RejectImpossibleSpeed,
	domain.RejectBadHeading,
}

// IngestionConfig tunes the gateway.
type IngestionConfig struct {
	MaxClockSkew time.Duration
	Now          func() time.Time
}

type ingestionService struct {
	stream     ports.EventStream
	killSwitch ports.KillSwitch
	validate   *validator.Validate
	maxSkew    time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewIngestionService returns an IngestionService implementation.
func NewIngestionService(
	stream ports.EventStream,
	killSwitch ports.KillSwitch,
	cfg IngestionConfig,
	log zerolog.Logger,
) ports.IngestionService {
	if cfg.MaxClockSkew <= 0 {
		cfg.MaxClockSkew = defaultMaxClockSkew
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &ingestionService{
		stream:     stream,
		killSwitch: killSwitch,
		validate:   validator.New(),
		maxSkew:    cfg.MaxClockSkew,
		now:        cfg.Now,
		log:        log,
	}
}

// Ingest gates, validates and publishes one raw payload.
func (s *ingestionService) Ingest(ctx context.Context, callerID string, raw []byte) (ports.IngestResult, error) {
	receivedAt := s.now().UTC()

	// 1. Kill switch. OFF rejects outright without dead-lettering.
	if !s.killSwitch.Mode(ctx).AllowsIngest() {
		s.countRejected(domain.RejectKillSwitchOff)
		return ports.IngestResult{Reason: domain.RejectKillSwitchOff}, nil
	}

	// 2. Shape and authorization rules.
	sample, reason := s.parse(callerID, raw, receivedAt)
	if reason != "" {
		s.countRejected(reason)
		s.deadLetter(ctx, reason, raw, receivedAt)
		return ports.IngestResult{Reason: reason}, nil
	}

	// 3. Publish.
	if err := s.stream.Publish(ctx, sample); err != nil {
		return ports.IngestResult{}, fmt.Errorf("ingest: publish: %w", err)
	}

	metrics.SamplesReceivedTotal.WithLabelValues("accepted").Inc()
	s.log.Debug().
		Str("courier_id", sample.CourierID).
		Str("order_id", sample.OrderID).
		Int64("seq", sample.Sequence).
		Msg("sample accepted")
	return ports.IngestResult{Accepted: true}, nil
}

// parse turns raw into a sample or reports the highest-precedence reason
// among every rule that failed.
func (s *ingestionService) parse(callerID string, raw []byte, receivedAt time.Time) (domain.LocationSample, domain.RejectReason) {
	var p locationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.LocationSample{}, domain.RejectBadPayload
	}

	failed := make(map[domain.RejectReason]bool)

	rules := sampleRules{
		SchemaVersion: p.SchemaVersion,
		RiderID:       strings.TrimSpace(p.RiderID),
		OrderID:       strings.TrimSpace(p.OrderID),
		Lat:           p.Lat,
		Lng:           p.Lng,
		AccuracyM:     p.AccuracyM,
		SpeedMps:      p.SpeedMps,
		HeadingDeg:    p.HeadingDeg,
	}
	if seq, ok := parseSeq(p.Seq); ok {
		rules.Seq = &seq
	} else if len(p.Seq) > 0 {
		failed[domain.RejectBadSeq] = true
	}

	if err := s.validate.Struct(rules); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.LocationSample{}, domain.RejectBadPayload
		}
		for _, fe := range verrs {
			if r, ok := ruleReasons[fe.Field()]; ok {
				failed[r] = true
			}
		}
	}

	if rules.RiderID != "" && rules.RiderID != callerID {
		failed[domain.RejectAuthMismatch] = true
	}

	deviceTs, ok := parseDeviceTimestamp(p.DeviceTs)
	switch {
	case !ok:
		failed[domain.RejectBadTimestamp] = true
	case absDuration(receivedAt.Sub(deviceTs)) > s.maxSkew:
		failed[domain.RejectTimestampSkew] = true
	}

	for _, r := range reasonPrecedence {
		if failed[r] {
			return domain.LocationSample{}, r
		}
	}

	return domain.LocationSample{
		CourierID:        rules.RiderID,
		OrderID:          rules.OrderID,
		Lat:              *p.Lat,
		Lng:              *p.Lng,
		AccuracyM:        *p.AccuracyM,
		SpeedMps:         p.SpeedMps,
		HeadingDeg:       p.HeadingDeg,
		DeviceTimestamp:  deviceTs.UTC(),
		ServerReceivedAt: receivedAt,
		Sequence:         *rules.Seq,
	}, ""
}

func (s *ingestionService) deadLetter(ctx context.Context, reason domain.RejectReason, raw []byte, receivedAt time.Time) {
	letter := domain.DeadLetter{
		ID:         uuid.NewString(),
		Reason:     reason,
		Raw:        append([]byte(nil), raw...),
		ReceivedAt: receivedAt,
	}
	if err := s.stream.PublishDLQ(ctx, letter); err != nil {
		s.log.Error().Err(err).Str("reason", string(reason)).Msg("failed to publish dead letter")
		return
	}
	metrics.DeadLettersTotal.WithLabelValues(string(reason)).Inc()
}

func (s *ingestionService) countRejected(reason domain.RejectReason) {
	metrics.SamplesReceivedTotal.WithLabelValues("rejected").Inc()
	metrics.SamplesRejectedTotal.WithLabelValues(string(reason)).Inc()
}

// parseSeq accepts a JSON integer, including integral floats like 7.0.
func parseSeq(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil || raw[0] == '"' {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	f, err := n.Float64()
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// parseDeviceTimestamp accepts an RFC 3339 string or epoch milliseconds.
func parseDeviceTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return time.Time{}, false
	}
	ms, err := n.Float64()
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
