// oauth_state_sweeper.go implements the OAuthStateSweeper background job, which
// periodically deletes oauth_states rows that passed their TTL without ever
// receiving a callback. Consumed states are already gone, so the sweep only
// touches abandoned flows. Expiry itself is enforced at read time; the sweep
// exists to keep the table small.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/corebase/corebase/internal/telemetry"
)

// StateStore is the persistence surface the sweeper needs
type StateStore interface {
	DeleteExpiredStates(ctx context.Context) (int64, error)
}

// OAuthStateSweeper periodically removes expired, unconsumed OAuth states.
type OAuthStateSweeper struct {
	store    StateStore
	logger   *slog.Logger
	interval time.Duration
	stopChan chan struct{}
}

// NewOAuthStateSweeper creates a sweeper. interval defaults to 5 minutes
// when zero or negative.
func NewOAuthStateSweeper(store StateStore, logger *slog.Logger, interval time.Duration) *OAuthStateSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuthStateSweeper{
		store:    store,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop. It runs an initial sweep
// immediately, then repeats on the configured interval. The loop exits when
// ctx is cancelled or Stop() is called.
func (s *OAuthStateSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("oauth state sweeper started", "interval", s.interval)

	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("oauth state sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("oauth state sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *OAuthStateSweeper) Stop() {
	close(s.stopChan)
}

func (s *OAuthStateSweeper) sweep(ctx context.Context) {
	removed, err := s.store.DeleteExpiredStates(ctx)
	if err != nil {
		s.logger.Error("oauth state sweep failed", "error", err)
		return
	}
	if removed > 0 {
		telemetry.OAuthStatesSweptTotal.Add(float64(removed))
		s.logger.Info("swept expired oauth states", "removed", removed)
	}
}
