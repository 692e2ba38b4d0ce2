// Package killswitch provides the tri-state gate read on every ingestion and
// every customer read.
package killswitch

import (
	"context"
	"sync/atomic"

	"github.com/99minutos/delivery-tracking/internal/core/domain"
	"github.com/99minutos/delivery-tracking/internal/core/ports"
)

// Static is a process-local kill switch.
type Static struct {
	mode atomic.Value // domain.KillSwitchMode
}

// NewStatic starts in the given mode.
func NewStatic(mode domain.KillSwitchMode) *Static {
	s := &Static{}
	s.mode.Store(mode)
	return s
}

var _ ports.KillSwitch = (*Static)(nil)

func (s *Static) Mode(_ context.Context) domain.KillSwitchMode {
	return s.mode.Load().(domain.KillSwitchMode)
}

func (s *Static) SetMode(_ context.Context, mode domain.KillSwitchMode) error {
	s.mode.Store(mode)
	return nil
}
