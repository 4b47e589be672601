package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/internal/metrics"
	"github.com/ECGOPS/OPSOMS-sub004/internal/model"
	"github.com/ECGOPS/OPSOMS-sub004/internal/repository"
	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidOperation = errors.New("invalid operation")
	ErrMissingTarget    = errors.New("target id required")
	ErrMissingPayload   = errors.New("payload required")
	ErrFailedNotFound   = errors.New("failed intent not found")
)

// QueueService is the write queue manager: it persists mutation intents
// durably before the caller treats them as saved, keeps the optimistic local
// cache in step, and announces queue changes on the event bus.
type QueueService struct {
	db         *gorm.DB
	intentRepo repository.IntentInterface
	failedRepo repository.FailedInterface
	cacheRepo  repository.CacheInterface
	events     *EventBus
	observer   metrics.Observer

	// drainHint nudges the sync driver after an enqueue while online;
	// wired by the composition root when eager drain is enabled.
	drainHint func()
}

func NewQueueService(db *gorm.DB, intentRepo repository.IntentInterface, failedRepo repository.FailedInterface, cacheRepo repository.CacheInterface, events *EventBus, observer metrics.Observer) *QueueService {
	return &QueueService{
		db:         db,
		intentRepo: intentRepo,
		failedRepo: failedRepo,
		cacheRepo:  cacheRepo,
		events:     events,
		observer:   observer,
	}
}

// SetDrainHint installs the eager-drain trigger. Optional.
func (s *QueueService) SetDrainHint(hint func()) {
	s.drainHint = hint
}

func newLocalID() string {
	return constraints.LocalIDPrefix + uuid.New().String()
}

// Enqueue persists one mutation intent. When it returns without error the
// mutation is durably queued, regardless of connectivity. For creates with no
// target id a local id is issued; it is replaced by the server id once the
// create is acknowledged.
func (s *QueueService) Enqueue(ctx context.Context, kind string, op constraints.Operation, targetID string, payload json.RawMessage) (*model.PendingIntent, error) {
	if !op.Valid() {
		return nil, ErrInvalidOperation
	}
	if op != constraints.OpCreate && targetID == "" {
		return nil, ErrMissingTarget
	}
	if op != constraints.OpDelete && len(payload) == 0 {
		return nil, ErrMissingPayload
	}
	if op == constraints.OpCreate && targetID == "" {
		targetID = newLocalID()
	}

	intent := &model.PendingIntent{
		ID:         newLocalID(),
		RecordKind: kind,
		Operation:  op,
		TargetID:   targetID,
		Payload:    string(payload),
		EnqueuedAt: time.Now(),
		RetryCount: 0,
		TraceID:    GetTraceID(ctx),
		Operator:   GetOperator(ctx),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txIntent := s.intentRepo.WithTx(tx)
		txCache := s.cacheRepo.WithTx(tx)

		if err := txIntent.Create(ctx, intent); err != nil {
			return err
		}

		// keep the local copy readable while offline
		switch op {
		case constraints.OpDelete:
			return txCache.Delete(ctx, kind, targetID)
		default:
			return txCache.Upsert(ctx, &model.CachedRecord{
				RecordKind: kind,
				RecordID:   targetID,
				Payload:    string(payload),
				Dirty:      true,
				UpdatedAt:  intent.EnqueuedAt,
			})
		}
	})
	if err != nil {
		logger.Error("failed to enqueue intent",
			zap.String("kind", kind), zap.String("op", string(op)), zap.Error(err))
		return nil, err
	}

	s.observer.RecordEnqueued(kind)
	s.refreshPendingGauge(ctx)
	s.events.Publish(v1.Message{
		RecordKind: kind,
		Operation:  op,
		IntentID:   intent.ID,
		TargetID:   targetID,
		Status:     constraints.StatusQueued,
		Record:     payload,
	})

	if s.drainHint != nil {
		s.drainHint()
	}
	return intent, nil
}

// ListPending returns the queue in FIFO replay order.
func (s *QueueService) ListPending(ctx context.Context) ([]model.PendingIntent, error) {
	return s.intentRepo.ListPending(ctx)
}

// Remove discards a queued intent. Idempotent.
func (s *QueueService) Remove(ctx context.Context, id string) error {
	if err := s.intentRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.refreshPendingGauge(ctx)
	return nil
}

func (s *QueueService) PendingCount(ctx context.Context) (int64, error) {
	return s.intentRepo.Count(ctx)
}

func (s *QueueService) ListFailed(ctx context.Context) ([]model.FailedIntent, error) {
	return s.failedRepo.List(ctx)
}

func (s *QueueService) DiscardFailed(ctx context.Context, id string) error {
	return s.failedRepo.Delete(ctx, id)
}

// RequeueFailed moves a terminally-failed intent back onto the queue with a
// fresh retry budget.
func (s *QueueService) RequeueFailed(ctx context.Context, id string) (string, error) {
	failed, err := s.failedRepo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if failed == nil {
		return "", ErrFailedNotFound
	}

	intent := &model.PendingIntent{
		ID:         newLocalID(),
		RecordKind: failed.RecordKind,
		Operation:  failed.Operation,
		TargetID:   failed.TargetID,
		Payload:    failed.Payload,
		EnqueuedAt: time.Now(),
		RetryCount: 0,
		Operator:   GetOperator(ctx),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.failedRepo.WithTx(tx).Delete(ctx, id); err != nil {
			return err
		}
		return s.intentRepo.WithTx(tx).Create(ctx, intent)
	})
	if err != nil {
		return "", err
	}

	s.refreshPendingGauge(ctx)
	s.events.Publish(v1.Message{
		RecordKind: intent.RecordKind,
		Operation:  intent.Operation,
		IntentID:   intent.ID,
		TargetID:   intent.TargetID,
		Status:     constraints.StatusQueued,
		Record:     json.RawMessage(intent.Payload),
	})

	if s.drainHint != nil {
		s.drainHint()
	}
	return intent.ID, nil
}

// GetCachedRecord serves reads from the local cache so dashboards keep
// working while offline.
func (s *QueueService) GetCachedRecord(ctx context.Context, kind, id string) (*model.CachedRecord, error) {
	return s.cacheRepo.Get(ctx, kind, id)
}

func (s *QueueService) ListCachedRecords(ctx context.Context, kind string) ([]model.CachedRecord, error) {
	return s.cacheRepo.ListByKind(ctx, kind)
}

func (s *QueueService) refreshPendingGauge(ctx context.Context) {
	if n, err := s.intentRepo.Count(ctx); err == nil {
		s.observer.SetPending(n)
	}
}
