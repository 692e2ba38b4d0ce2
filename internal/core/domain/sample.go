package domain

import "time"

// SchemaVersion is the only ingestion payload version accepted by the gateway.
const SchemaVersion = 1

// Point represents a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationSample is a single validated GPS fix reported by a courier device
// for one order. Samples are immutable once published.
type LocationSample struct {
	CourierID        string    `json:"courierId"`
	OrderID          string    `json:"orderId"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	AccuracyM        float64   `json:"accuracyM"`
	SpeedMps         *float64  `json:"speedMps,omitempty"`
	HeadingDeg       *float64  `json:"headingDeg,omitempty"`
	DeviceTimestamp  time.Time `json:"deviceTimestamp"`
	ServerReceivedAt time.Time `json:"serverReceivedAt"`
	Sequence         int64     `json:"sequence"`
}

// Point returns the raw coordinate of the sample.
func (s LocationSample) Point() Point {
	return Point{Lat: s.Lat, Lng: s.Lng}
}

// RejectReason is the stable enum reported when a sample is refused at ingestion.
type RejectReason string

const (
	RejectSchemaVersion   RejectReason = "schema_version"
	RejectAuthMismatch    RejectReason = "auth_mismatch"
	RejectBadIDs          RejectReason = "bad_ids"
	RejectBadSeq          RejectReason = "bad_seq"
	RejectBadCoords       RejectReason = "bad_coords"
	RejectBadAccuracy     RejectReason = "bad_accuracy"
	RejectBadTimestamp    RejectReason = "bad_timestamp"
	RejectTimestampSkew   RejectReason = "timestamp_skew"
	RejectImpossibleSpeed RejectReason = "impossible_speed"
	RejectBadHeading      RejectReason = "bad_heading"
	RejectBadPayload      RejectReason = "bad_payload"
	RejectKillSwitchOff   RejectReason = "kill_switch_off"
)

// DeadLetter is a rejected raw payload parked on the dead-letter path.
// Raw is kept as bytes because it may not be valid JSON.
type DeadLetter struct {
	ID         string       `json:"id"`
	Reason     RejectReason `json:"reason"`
	Raw        []byte       `json:"raw"`
	ReceivedAt time.Time    `json:"receivedAt"`
}
