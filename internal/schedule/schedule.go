// Package schedule runs the periodic presence sweep so stale sessions go
// offline even when nobody fetches a snapshot.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
)

type submitter interface {
	Submit(ctx context.Context, cmd engine.Command) (lobby.Outcome, error)
}

const sweepTimeout = 5 * time.Second

// StartPresenceSweep starts a cron scheduler running the sweep on spec.
// Callers stop it with Stop.
func StartPresenceSweep(spec string, l submitter, staleAfter time.Duration, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, sweepJob(l, staleAfter, logger)); err != nil {
		return nil, fmt.Errorf("presence sweep schedule %q: %w", spec, err)
	}
	c.Start()
	logger.Info("presence sweep scheduled", zap.String("spec", spec), zap.Duration("stale_after", staleAfter))
	return c, nil
}

func sweepJob(l submitter, staleAfter time.Duration, logger *zap.Logger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		out, err := l.Submit(ctx, engine.Command{Type: engine.CmdSweepPresence, StaleAfter: staleAfter})
		if err != nil {
			logger.Error("presence sweep failed", zap.Error(err))
			return
		}
		if n := len(out.Events); n > 0 {
			logger.Info("presence sweep", zap.Int("went_offline", n))
		}
	}
}
