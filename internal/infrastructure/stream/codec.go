// Package stream implements the ports.EventStream transports: an in-process
// bus, Redis Streams and NATS JetStream. Every transport hands deliveries to
// a queue.Dispatcher so samples of the same courier are processed in order.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
)

// envelope is the wire form of a published sample. The version lets
// consumers reject payloads written by a newer producer.
type envelope struct {
	Version int                   `json:"v"`
	Sample  domain.LocationSample `json:"sample"`
}

func encodeSample(s domain.LocationSample) ([]byte, error) {
	b, err := json.Marshal(envelope{Version: domain.SchemaVersion, Sample: s})
	if err != nil {
		return nil, fmt.Errorf("encode sample: %w", err)
	}
	return b, nil
}

func decodeSample(b []byte) (domain.LocationSample, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return domain.LocationSample{}, fmt.Errorf("decode sample: %w", err)
	}
	if env.Version != domain.SchemaVersion {
		return domain.LocationSample{}, fmt.Errorf("decode sample: unsupported version %d", env.Version)
	}
	return env.Sample, nil
}

func encodeDeadLetter(l domain.DeadLetter) ([]byte, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode dead letter: %w", err)
	}
	return b, nil
}
