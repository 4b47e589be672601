package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/internal/buffer"
	"github.com/ECGOPS/OPSOMS-sub004/internal/config"
	"github.com/ECGOPS/OPSOMS-sub004/internal/metrics"
	"github.com/ECGOPS/OPSOMS-sub004/internal/model"
	"github.com/ECGOPS/OPSOMS-sub004/internal/repository"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"

	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.OpenStore(config.StorageConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "queue.db"),
	})
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	return db
}

func newTestQueue(t *testing.T) (*QueueService, *gorm.DB, *EventBus) {
	t.Helper()
	db := newTestDB(t)
	events := NewEventBus(nil, buffer.NewReplayBuffer(100))
	svc := NewQueueService(db,
		repository.NewIntentRepository(db),
		repository.NewFailedRepository(db),
		repository.NewCacheRepository(db),
		events, metrics.NopObserver{})
	return svc, db, events
}

func TestEnqueue_Validation(t *testing.T) {
	svc, _, _ := newTestQueue(t)
	ctx := context.Background()
	payload := json.RawMessage(`{"feeder":"F-11"}`)

	tests := []struct {
		name     string
		op       constraints.Operation
		targetID string
		payload  json.RawMessage
		wantErr  error
	}{
		{"unknown operation", "upsert", "r1", payload, ErrInvalidOperation},
		{"update without target", constraints.OpUpdate, "", payload, ErrMissingTarget},
		{"delete without target", constraints.OpDelete, "", nil, ErrMissingTarget},
		{"create without payload", constraints.OpCreate, "", nil, ErrMissingPayload},
		{"update without payload", constraints.OpUpdate, "r1", nil, ErrMissingPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Enqueue(ctx, "load-monitoring", tt.op, tt.targetID, tt.payload)
			if err != tt.wantErr {
				t.Errorf("Enqueue() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if n, _ := svc.PendingCount(ctx); n != 0 {
		t.Errorf("rejected mutations must not be queued, pending = %d", n)
	}
}

func TestEnqueue_CreateIssuesLocalID(t *testing.T) {
	svc, _, events := newTestQueue(t)
	ctx := WithTraceID(context.Background(), "trace-42")

	intent, err := svc.Enqueue(ctx, "vit-asset", constraints.OpCreate, "", json.RawMessage(`{"serial":"VIT-009"}`))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if !strings.HasPrefix(intent.TargetID, constraints.LocalIDPrefix) {
		t.Errorf("create without target should get a local id, got %q", intent.TargetID)
	}
	if !strings.HasPrefix(intent.ID, constraints.LocalIDPrefix) {
		t.Errorf("intent id should be locally issued, got %q", intent.ID)
	}
	if intent.TraceID != "trace-42" {
		t.Errorf("intent should carry the request trace id, got %q", intent.TraceID)
	}

	// Durable before Enqueue returns
	pending, err := svc.ListPending(ctx)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected 1 pending intent, got %d (err=%v)", len(pending), err)
	}

	// Optimistic cache copy is readable and marked dirty
	rec, err := svc.GetCachedRecord(ctx, "vit-asset", intent.TargetID)
	if err != nil || rec == nil {
		t.Fatalf("expected cached record, got %v (err=%v)", rec, err)
	}
	if !rec.Dirty {
		t.Error("unsynced cache copy should be dirty")
	}

	// One queued event announced
	msgs, ok := events.GetCompensation(0)
	if !ok || len(msgs) != 1 || msgs[0].Status != constraints.StatusQueued {
		t.Errorf("expected one queued event, got %v (ok=%v)", msgs, ok)
	}
}

func TestEnqueue_DeleteDropsCacheCopy(t *testing.T) {
	svc, db, _ := newTestQueue(t)
	ctx := context.Background()
	cacheRepo := repository.NewCacheRepository(db)

	if err := cacheRepo.Upsert(ctx, &model.CachedRecord{
		RecordKind: "op5-fault",
		RecordID:   "f-42",
		Payload:    `{"status":"open"}`,
		UpdatedAt:  time.Now(),
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if _, err := svc.Enqueue(ctx, "op5-fault", constraints.OpDelete, "f-42", nil); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	rec, err := svc.GetCachedRecord(ctx, "op5-fault", "f-42")
	if err != nil {
		t.Fatalf("GetCachedRecord() error = %v", err)
	}
	if rec != nil {
		t.Error("queued delete should remove the local cache copy")
	}
	if n, _ := svc.PendingCount(ctx); n != 1 {
		t.Errorf("delete intent should be queued, pending = %d", n)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	svc, _, _ := newTestQueue(t)
	ctx := context.Background()

	intent, err := svc.Enqueue(ctx, "load-monitoring", constraints.OpCreate, "", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if err := svc.Remove(ctx, intent.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := svc.Remove(ctx, intent.ID); err != nil {
		t.Errorf("removing an already-removed intent should be a no-op, got %v", err)
	}
	if n, _ := svc.PendingCount(ctx); n != 0 {
		t.Errorf("pending = %d after remove", n)
	}
}

func TestRequeueFailed(t *testing.T) {
	svc, db, _ := newTestQueue(t)
	ctx := context.Background()
	failedRepo := repository.NewFailedRepository(db)

	if err := failedRepo.Create(ctx, &model.FailedIntent{
		ID:         "local-dead-1",
		RecordKind: "vit-asset",
		Operation:  constraints.OpUpdate,
		TargetID:   "a-7",
		Payload:    `{"gps":"5.6,-0.2"}`,
		EnqueuedAt: time.Now().Add(-time.Hour),
		FailedAt:   time.Now(),
		Attempts:   3,
		LastError:  "validation rejected",
	}); err != nil {
		t.Fatalf("seed failed register: %v", err)
	}

	newID, err := svc.RequeueFailed(ctx, "local-dead-1")
	if err != nil {
		t.Fatalf("RequeueFailed() error = %v", err)
	}

	pending, _ := svc.ListPending(ctx)
	if len(pending) != 1 || pending[0].ID != newID {
		t.Fatalf("expected requeued intent %q, got %v", newID, pending)
	}
	if pending[0].RetryCount != 0 {
		t.Error("requeued intent should get a fresh retry budget")
	}
	if failed, _ := svc.ListFailed(ctx); len(failed) != 0 {
		t.Error("requeued intent should leave the failed register")
	}

	if _, err := svc.RequeueFailed(ctx, "no-such-id"); err != ErrFailedNotFound {
		t.Errorf("RequeueFailed(unknown) error = %v, want ErrFailedNotFound", err)
	}
}
