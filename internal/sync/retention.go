package sync

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"knowledge-sync-service/internal/config"
	"knowledge-sync-service/internal/logger"
	"knowledge-sync-service/internal/store"
)

// Pruner deletes journal entries older than the retention window on a cron
// schedule. Pruning is a storage policy, never a correctness requirement:
// devices that fall behind the window simply re-pull more history than
// strictly needed. The pruner runs outside the request path; the sync core
// itself has no background timers.
type Pruner struct {
	cfg   config.RetentionConfig
	store store.Store
	cron  *cron.Cron
}

func NewPruner(cfg config.RetentionConfig, s store.Store) *Pruner {
	return &Pruner{
		cfg:   cfg,
		store: s,
		cron:  cron.New(),
	}
}

func (p *Pruner) Start() {
	if !p.cfg.Enabled {
		logger.Log.Info("Journal retention pruning is disabled")
		return
	}

	logger.Log.Info("Starting retention pruner",
		zap.String("interval", p.cfg.Interval),
		zap.Duration("window", p.cfg.GetWindow()),
	)

	_, err := p.cron.AddFunc(p.cfg.Interval, func() {
		p.runOnce(context.Background())
	})
	if err != nil {
		logger.Log.Error("Failed to schedule retention job", zap.Error(err))
		return
	}

	p.cron.Start()
}

func (p *Pruner) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
	logger.Log.Info("Stopped retention pruner")
}

func (p *Pruner) runOnce(ctx context.Context) {
	window := p.cfg.GetWindow()
	if window <= 0 {
		return
	}
	cutoff := time.Now().Add(-window).UnixNano()

	pruned, err := p.store.PruneChangesBefore(ctx, cutoff)
	if err != nil {
		logger.Log.Error("Journal prune failed", zap.Error(err))
		return
	}
	if pruned > 0 {
		logger.Log.Info("Pruned journal entries",
			zap.Int64("entries", pruned),
			zap.Int64("cutoff", cutoff),
		)
	}
}
