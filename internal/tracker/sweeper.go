package tracker

// sweeper.go provides the background job that archives processed updates
// once they age past the retention window. Archiving stamps ArchivedAt so
// decided updates drop out of working views without losing their history.
//
// The sweeper is long-running and context-aware for graceful shutdown. It
// logs progress and errors but never fails the application when an
// individual sweep fails.

import (
	"context"
	"time"

	"github.com/hsualexotake/inseam-sub000/internal/logging"
)

// StartArchiveSweeper starts a background loop that periodically archives
// processed updates older than the configured retention. It runs immediately
// on start, then every CheckInterval, and stops when the context is
// cancelled.
func (s *Service) StartArchiveSweeper(ctx context.Context) {
	logger := logging.Component("sweeper")
	logger.Info("archive sweeper started",
		"retention", s.sweeper.Retention.String(),
		"check_interval", s.sweeper.CheckInterval.String(),
	)

	// Run immediately on startup
	s.runSweep(ctx)

	ticker := time.NewTicker(s.sweeper.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("archive sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep performs one archive pass.
func (s *Service) runSweep(ctx context.Context) {
	logger := logging.Component("sweeper")
	start := time.Now()
	cutoff := s.now().UTC().Add(-s.sweeper.Retention)

	archived, err := s.store.ArchiveProcessedBefore(ctx, cutoff)
	if err != nil {
		logger.Error("archive sweep failed", "error", err)
		return
	}
	logger.Info("archive sweep completed",
		"updates_archived", archived,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
