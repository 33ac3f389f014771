package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/amberops/workspace/internal/observability/metrics"
	"github.com/amberops/workspace/internal/reliability/retry"
)

// SessionSweeper is the part of a session store the cleanup worker drives
type SessionSweeper interface {
	PurgeExpired(ctx context.Context) (int, error)
	CountSessions(ctx context.Context) (int, error)
}

// CleanupWorker periodically removes expired sessions and refreshes the
// live session gauge.
type CleanupWorker struct {
	sessions SessionSweeper
	logger   *slog.Logger
	interval time.Duration
	retryCfg *retry.Config
}

// NewCleanupWorker creates a new cleanup worker
func NewCleanupWorker(sessions SessionSweeper, logger *slog.Logger, interval time.Duration) *CleanupWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CleanupWorker{
		sessions: sessions,
		logger:   logger,
		interval: interval,
		retryCfg: retry.DefaultConfig(),
	}
}

// Start runs the cleanup loop until ctx is cancelled
func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("session cleanup worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("session cleanup worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep
func (w *CleanupWorker) RunOnce(ctx context.Context) {
	removed, err := retry.Do(ctx, w.retryCfg, w.logger, "purge_expired_sessions", w.sessions.PurgeExpired)
	if err != nil {
		w.logger.Error("session cleanup failed", slog.String("error", err.Error()))
		metrics.ObserveSessionCleanup("error", 1)
	} else {
		metrics.ObserveSessionCleanup("success", removed)
		if removed > 0 {
			w.logger.Info("expired sessions removed", slog.Int("count", removed))
		}
	}

	live, err := w.sessions.CountSessions(ctx)
	if err != nil {
		w.logger.Warn("failed to count sessions", slog.String("error", err.Error()))
		return
	}
	metrics.SetActiveSessions(live)
}
