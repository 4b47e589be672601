package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/internal/connectivity"
	"github.com/ECGOPS/OPSOMS-sub004/internal/metrics"
	"github.com/ECGOPS/OPSOMS-sub004/internal/model"
	"github.com/ECGOPS/OPSOMS-sub004/internal/remote"
	"github.com/ECGOPS/OPSOMS-sub004/internal/repository"
	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrOffline = errors.New("central store unreachable")

const DefaultRetryCeiling = 3

// Syncer drains the pending-intent queue against the central store. One drain
// cycle runs at a time; triggers that arrive mid-cycle coalesce into a single
// follow-up cycle.
type Syncer struct {
	db         *gorm.DB
	intentRepo repository.IntentInterface
	failedRepo repository.FailedInterface
	idlinkRepo repository.IDLinkInterface
	cacheRepo  repository.CacheInterface
	store      remote.Store
	monitor    *connectivity.Monitor
	events     *EventBus
	observer   metrics.Observer

	retryCeiling int
	locker       remote.Locker // optional shared-queue drain lock

	draining atomic.Bool
	rerun    atomic.Bool
	kick     chan struct{}
}

type SyncerConfig struct {
	RetryCeiling int
	Locker       remote.Locker
}

func NewSyncer(db *gorm.DB, intentRepo repository.IntentInterface, failedRepo repository.FailedInterface, idlinkRepo repository.IDLinkInterface, cacheRepo repository.CacheInterface, store remote.Store, monitor *connectivity.Monitor, events *EventBus, observer metrics.Observer, cfg SyncerConfig) *Syncer {
	ceiling := cfg.RetryCeiling
	if ceiling <= 0 {
		ceiling = DefaultRetryCeiling
	}
	return &Syncer{
		db:           db,
		intentRepo:   intentRepo,
		failedRepo:   failedRepo,
		idlinkRepo:   idlinkRepo,
		cacheRepo:    cacheRepo,
		store:        store,
		monitor:      monitor,
		events:       events,
		observer:     observer,
		retryCeiling: ceiling,
		locker:       cfg.Locker,
		kick:         make(chan struct{}, 1),
	}
}

// Kick requests a drain cycle without blocking. Requests arriving while a
// cycle runs collapse into one follow-up.
func (s *Syncer) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// TriggerSync is the manual "sync now" action. It is rejected while offline.
func (s *Syncer) TriggerSync() error {
	if !s.monitor.IsOnline() {
		return ErrOffline
	}
	s.Kick()
	return nil
}

// Run is the driver loop. It drains once at startup to cover intents queued
// in a prior session when the process reopens already online, then waits for
// connectivity-restored transitions and explicit kicks.
func (s *Syncer) Run(ctx context.Context) {
	online := s.monitor.Subscribe()

	logger.Info("sync driver started", zap.Int("retry_ceiling", s.retryCeiling))
	s.Drain(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("sync driver stopped")
			return
		case <-online:
			s.Drain(ctx)
		case <-s.kick:
			s.Drain(ctx)
		}
	}
}

// Drain runs one cycle. A cycle already in flight absorbs the request.
func (s *Syncer) Drain(ctx context.Context) {
	if !s.draining.CompareAndSwap(false, true) {
		s.rerun.Store(true)
		return
	}
	defer func() {
		s.draining.Store(false)
		if s.rerun.Swap(false) {
			s.Kick()
		}
	}()

	s.drainCycle(ctx)
}

// Draining reports whether a cycle is currently in flight.
func (s *Syncer) Draining() bool {
	return s.draining.Load()
}

// Online reports the monitor's current view of connectivity.
func (s *Syncer) Online() bool {
	return s.monitor.IsOnline()
}

func (s *Syncer) drainCycle(ctx context.Context) {
	if !s.monitor.IsOnline() {
		return
	}

	if s.locker != nil {
		release, err := s.locker.Lock(ctx)
		if err != nil {
			logger.Warn("drain skipped, another process holds the lock", zap.Error(err))
			return
		}
		defer release()
	}

	pending, err := s.intentRepo.ListPending(ctx)
	if err != nil {
		logger.Error("failed to list pending intents", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	logger.Info("drain cycle started", zap.Int("pending", len(pending)))
	start := time.Now()
	var applied, retried, dropped int

	// strictly sequential: causal order of offline edits to one record
	// must survive replay
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		if !s.monitor.IsOnline() {
			logger.Warn("connectivity lost mid-drain, leaving remaining intents queued",
				zap.Int("remaining", len(pending)-i))
			break
		}

		outcome, stop := s.apply(ctx, &pending[i])
		switch outcome {
		case outcomeApplied:
			applied++
		case outcomeRetried:
			retried++
		case outcomeDropped:
			dropped++
		}
		if stop {
			break
		}
	}

	s.observer.ObserveDrainDuration(time.Since(start).Seconds())
	if n, err := s.intentRepo.Count(ctx); err == nil {
		s.observer.SetPending(n)
	}
	logger.Info("drain cycle finished",
		zap.Int("applied", applied),
		zap.Int("retried", retried),
		zap.Int("dropped", dropped),
		zap.Duration("took", time.Since(start)))
}

type applyOutcome int

const (
	outcomeApplied applyOutcome = iota
	outcomeRetried
	outcomeDropped
	outcomeSkipped
)

// apply replays one intent. The returned stop flag ends the cycle (store
// unreachable); all other failures are independent per intent.
func (s *Syncer) apply(ctx context.Context, intent *model.PendingIntent) (applyOutcome, bool) {
	targetID := s.resolveTarget(ctx, intent.TargetID)

	var remoteID string
	var err error
	switch intent.Operation {
	case constraints.OpCreate:
		remoteID, err = s.store.Create(ctx, intent.RecordKind, []byte(intent.Payload))
	case constraints.OpUpdate:
		remoteID = targetID
		err = s.store.Update(ctx, intent.RecordKind, targetID, []byte(intent.Payload))
	case constraints.OpDelete:
		remoteID = targetID
		err = s.store.Delete(ctx, intent.RecordKind, targetID)
	default:
		// unreachable for intents that went through Enqueue
		err = ErrInvalidOperation
	}

	if err == nil {
		s.settle(ctx, intent, remoteID)
		return outcomeApplied, false
	}

	if remote.IsUnreachable(err) {
		logger.Warn("central store unreachable, stopping drain", zap.Error(err))
		s.monitor.ReportUnreachable()
		return outcomeSkipped, true
	}

	return s.bookkeepFailure(ctx, intent, err), false
}

// resolveTarget maps a still-local target id through the durable id links, so
// an update or delete queued behind a now-acknowledged create reaches the
// server-side document.
func (s *Syncer) resolveTarget(ctx context.Context, targetID string) string {
	if !strings.HasPrefix(targetID, constraints.LocalIDPrefix) {
		return targetID
	}
	remoteID, err := s.idlinkRepo.Resolve(ctx, targetID)
	if err != nil {
		logger.Error("id link lookup failed", zap.String("local_id", targetID), zap.Error(err))
		return targetID
	}
	if remoteID == "" {
		return targetID
	}
	return remoteID
}

// settle removes a confirmed intent and records create id linkage in one
// transaction, then announces the result.
func (s *Syncer) settle(ctx context.Context, intent *model.PendingIntent, remoteID string) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.intentRepo.WithTx(tx).Delete(ctx, intent.ID); err != nil {
			return err
		}
		txCache := s.cacheRepo.WithTx(tx)

		if intent.Operation == constraints.OpCreate && remoteID != intent.TargetID {
			if err := s.idlinkRepo.WithTx(tx).Save(ctx, &model.IDLink{
				LocalID:    intent.TargetID,
				RemoteID:   remoteID,
				RecordKind: intent.RecordKind,
				LinkedAt:   time.Now(),
			}); err != nil {
				return err
			}
			return txCache.Rekey(ctx, intent.RecordKind, intent.TargetID, remoteID)
		}
		if intent.Operation == constraints.OpDelete {
			return nil
		}
		return txCache.MarkClean(ctx, intent.RecordKind, remoteID)
	})
	if err != nil {
		// the remote write landed; next cycle retries the local bookkeeping
		logger.Error("failed to settle applied intent",
			zap.String("intent_id", intent.ID), zap.Error(err))
		return
	}

	s.observer.RecordSynced(intent.RecordKind)
	s.events.Publish(v1.Message{
		RecordKind: intent.RecordKind,
		Operation:  intent.Operation,
		IntentID:   intent.ID,
		TargetID:   intent.TargetID,
		RemoteID:   remoteID,
		Status:     constraints.StatusSynced,
		Record:     json.RawMessage(intent.Payload),
	})
	logger.Debug("intent applied",
		zap.String("intent_id", intent.ID),
		zap.String("kind", intent.RecordKind),
		zap.String("remote_id", remoteID))
}

// bookkeepFailure advances the retry counter, or drops the intent into the
// failed register once the ceiling is reached. Transient and permanent remote
// errors are counted identically; the classification only reaches the event
// payload.
func (s *Syncer) bookkeepFailure(ctx context.Context, intent *model.PendingIntent, cause error) applyOutcome {
	next := intent.WithRetry()

	if next.RetryCount < s.retryCeiling {
		if err := s.intentRepo.UpdateRetry(ctx, intent.ID, next.RetryCount); err != nil {
			logger.Error("failed to persist retry count",
				zap.String("intent_id", intent.ID), zap.Error(err))
			return outcomeSkipped
		}
		s.observer.RecordRetry(intent.RecordKind)
		logger.Warn("intent replay failed, staying queued",
			zap.String("intent_id", intent.ID),
			zap.Int("retry_count", next.RetryCount),
			zap.Error(cause))
		return outcomeRetried
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.intentRepo.WithTx(tx).Delete(ctx, intent.ID); err != nil {
			return err
		}
		return s.failedRepo.WithTx(tx).Create(ctx, &model.FailedIntent{
			ID:         intent.ID,
			RecordKind: intent.RecordKind,
			Operation:  intent.Operation,
			TargetID:   intent.TargetID,
			Payload:    intent.Payload,
			EnqueuedAt: intent.EnqueuedAt,
			FailedAt:   time.Now(),
			Attempts:   next.RetryCount,
			LastError:  cause.Error(),
			Operator:   intent.Operator,
		})
	})
	if err != nil {
		logger.Error("failed to move intent to failed register",
			zap.String("intent_id", intent.ID), zap.Error(err))
		return outcomeSkipped
	}

	s.observer.RecordTerminalFailure(intent.RecordKind)
	s.events.Publish(v1.Message{
		RecordKind: intent.RecordKind,
		Operation:  intent.Operation,
		IntentID:   intent.ID,
		TargetID:   intent.TargetID,
		Status:     constraints.StatusFailed,
		Record:     json.RawMessage(intent.Payload),
		Error:      cause.Error(),
	})
	logger.Error("intent dropped after exhausting retries",
		zap.String("intent_id", intent.ID),
		zap.String("kind", intent.RecordKind),
		zap.Int("attempts", next.RetryCount),
		zap.Error(cause))
	return outcomeDropped
}
