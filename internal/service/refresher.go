package service

import (
	"context"
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/internal/connectivity"
	"github.com/ECGOPS/OPSOMS-sub004/internal/model"
	"github.com/ECGOPS/OPSOMS-sub004/internal/remote"
	"github.com/ECGOPS/OPSOMS-sub004/internal/repository"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"

	"go.uber.org/zap"
)

// Refresher pulls the central store's documents into the local record cache
// while online, so reads keep working after connectivity drops. Entries with
// unconfirmed local writes are left alone; the queue owns them until they
// sync.
type Refresher struct {
	store     remote.Store
	cacheRepo repository.CacheInterface
	monitor   *connectivity.Monitor
	kinds     []string
	interval  time.Duration
}

func NewRefresher(store remote.Store, cacheRepo repository.CacheInterface, monitor *connectivity.Monitor, kinds []string, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Refresher{
		store:     store,
		cacheRepo: cacheRepo,
		monitor:   monitor,
		kinds:     kinds,
		interval:  interval,
	}
}

func (r *Refresher) Run(ctx context.Context) {
	if len(r.kinds) == 0 {
		logger.Info("cache refresher disabled, no record kinds configured")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	logger.Info("cache refresher started",
		zap.Strings("kinds", r.kinds), zap.Duration("interval", r.interval))

	r.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("cache refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	if !r.monitor.IsOnline() {
		return
	}

	for _, kind := range r.kinds {
		records, err := r.store.List(ctx, kind)
		if err != nil {
			if remote.IsUnreachable(err) {
				r.monitor.ReportUnreachable()
				return
			}
			logger.Warn("cache refresh failed", zap.String("kind", kind), zap.Error(err))
			continue
		}

		var updated int
		for _, rec := range records {
			existing, err := r.cacheRepo.Get(ctx, kind, rec.ID)
			if err != nil {
				logger.Error("cache lookup failed", zap.String("kind", kind), zap.Error(err))
				continue
			}
			if existing != nil && existing.Dirty {
				continue
			}
			if existing != nil && existing.Payload == string(rec.Payload) {
				continue
			}
			err = r.cacheRepo.Upsert(ctx, &model.CachedRecord{
				RecordKind: kind,
				RecordID:   rec.ID,
				Payload:    string(rec.Payload),
				Dirty:      false,
				UpdatedAt:  time.Now(),
			})
			if err != nil {
				logger.Error("cache upsert failed", zap.String("kind", kind), zap.Error(err))
				continue
			}
			updated++
		}
		logger.Debug("cache refreshed",
			zap.String("kind", kind),
			zap.Int("remote_count", len(records)),
			zap.Int("updated", updated))
	}
}
