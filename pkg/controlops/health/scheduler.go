package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Subash107/control-ops-local1/pkg/controlops/models"
)

// Refresher runs one health pass
type Refresher interface {
	RefreshAll(ctx context.Context) ([]models.ToolHealth, error)
}

// Scheduler runs a refresh pass on a fixed interval
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	logger    *zap.Logger
}

// NewScheduler creates a scheduler. A non-positive interval disables it.
func NewScheduler(refresher Refresher, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{refresher: refresher, interval: interval, logger: logger}
}

// Enabled reports whether Run does any work
func (s *Scheduler) Enabled() bool {
	return s.interval > 0
}

// Run blocks until ctx is done, starting a pass on every tick. Passes never
// overlap; ticks that fire during a long pass are coalesced.
func (s *Scheduler) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("health scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("health scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.refresher.RefreshAll(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("scheduled health refresh failed", zap.Error(err))
			}
		}
	}
}
