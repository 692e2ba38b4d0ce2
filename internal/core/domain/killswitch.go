package domain

import (
	"fmt"
	"strings"
)

// KillSwitchMode gates ingestion and customer visibility process-wide.
type KillSwitchMode string

const (
	KillSwitchOff                 KillSwitchMode = "OFF"
	KillSwitchIngestOnly          KillSwitchMode = "INGEST_ONLY"
	KillSwitchCustomerReadEnabled KillSwitchMode = "CUSTOMER_READ_ENABLED"
)

// AllowsIngest reports whether samples may enter the pipeline.
func (m KillSwitchMode) AllowsIngest() bool {
	return m == KillSwitchIngestOnly || m == KillSwitchCustomerReadEnabled
}

// AllowsCustomerRead reports whether customers may see tracking data.
func (m KillSwitchMode) AllowsCustomerRead() bool {
	return m == KillSwitchCustomerReadEnabled
}

// ParseKillSwitchMode accepts the canonical names case-insensitively.
func ParseKillSwitchMode(s string) (KillSwitchMode, error) {
	switch KillSwitchMode(strings.ToUpper(strings.TrimSpace(s))) {
	case KillSwitchOff:
		return KillSwitchOff, nil
	case KillSwitchIngestOnly:
		return KillSwitchIngestOnly, nil
	case KillSwitchCustomerReadEnabled:
		return KillSwitchCustomerReadEnabled, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKillSwitchMode, s)
}
