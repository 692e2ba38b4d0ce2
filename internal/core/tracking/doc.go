// Package tracking holds the pure, synchronous math of the projection
// pipeline: smoothing, the semantic state machine, the privacy marker,
// freshness, ETA and SLA risk. Nothing here performs I/O or reads the clock;
// callers pass "now" explicitly so every function is deterministic.
package tracking
