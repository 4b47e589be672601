package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ECGOPS/OPSOMS-sub004/internal/dto/req"
	"github.com/ECGOPS/OPSOMS-sub004/internal/dto/resp"
	"github.com/ECGOPS/OPSOMS-sub004/internal/model"
	"github.com/ECGOPS/OPSOMS-sub004/internal/service"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"

	"github.com/gin-gonic/gin"
)

type QueueProvider interface {
	Enqueue(ctx context.Context, kind string, op constraints.Operation, targetID string, payload json.RawMessage) (*model.PendingIntent, error)
	ListPending(ctx context.Context) ([]model.PendingIntent, error)
	Remove(ctx context.Context, id string) error
	PendingCount(ctx context.Context) (int64, error)
	ListFailed(ctx context.Context) ([]model.FailedIntent, error)
	DiscardFailed(ctx context.Context, id string) error
	RequeueFailed(ctx context.Context, id string) (string, error)
	GetCachedRecord(ctx context.Context, kind, id string) (*model.CachedRecord, error)
	ListCachedRecords(ctx context.Context, kind string) ([]model.CachedRecord, error)
}

type SyncController interface {
	TriggerSync() error
	Draining() bool
	Online() bool
}

type QueueHandler struct {
	queue QueueProvider
	sync  SyncController
}

func NewQueueHandler(queue QueueProvider, sync SyncController) *QueueHandler {
	return &QueueHandler{queue: queue, sync: sync}
}

func (h *QueueHandler) Enqueue(c *gin.Context) {
	var r req.EnqueueRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON format error"})
		return
	}

	intent, err := h.queue.Enqueue(c.Request.Context(), r.RecordKind, constraints.Operation(r.Operation), r.TargetID, r.Payload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidOperation),
			errors.Is(err, service.ErrMissingTarget),
			errors.Is(err, service.ErrMissingPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue mutation"})
		}
		return
	}

	c.JSON(http.StatusOK, resp.EnqueueResponse{IntentID: intent.ID, TargetID: intent.TargetID})
}

func (h *QueueHandler) ListPending(c *gin.Context) {
	pending, err := h.queue.ListPending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]resp.PendingItem, 0, len(pending))
	for _, p := range pending {
		items = append(items, resp.PendingItem{
			ID:         p.ID,
			RecordKind: p.RecordKind,
			Operation:  string(p.Operation),
			TargetID:   p.TargetID,
			EnqueuedAt: p.EnqueuedAt,
			RetryCount: p.RetryCount,
			Operator:   p.Operator,
		})
	}
	c.JSON(http.StatusOK, items)
}

func (h *QueueHandler) Discard(c *gin.Context) {
	id := c.Param("id")
	if err := h.queue.Remove(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "discarded"})
}

func (h *QueueHandler) PendingCount(c *gin.Context) {
	n, err := h.queue.PendingCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": n})
}

func (h *QueueHandler) SyncNow(c *gin.Context) {
	if err := h.sync.TriggerSync(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "sync started"})
}

func (h *QueueHandler) SyncStatus(c *gin.Context) {
	n, err := h.queue.PendingCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp.SyncStatusResponse{
		Online:   h.sync.Online(),
		Draining: h.sync.Draining(),
		Pending:  n,
	})
}

func (h *QueueHandler) ListFailed(c *gin.Context) {
	failed, err := h.queue.ListFailed(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]resp.FailedItem, 0, len(failed))
	for _, f := range failed {
		items = append(items, resp.FailedItem{
			ID:         f.ID,
			RecordKind: f.RecordKind,
			Operation:  string(f.Operation),
			TargetID:   f.TargetID,
			EnqueuedAt: f.EnqueuedAt,
			FailedAt:   f.FailedAt,
			Attempts:   f.Attempts,
			LastError:  f.LastError,
			Operator:   f.Operator,
		})
	}
	c.JSON(http.StatusOK, items)
}

func (h *QueueHandler) DiscardFailed(c *gin.Context) {
	if err := h.queue.DiscardFailed(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "discarded"})
}

func (h *QueueHandler) RequeueFailed(c *gin.Context) {
	id, err := h.queue.RequeueFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrFailedNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp.EnqueueResponse{IntentID: id})
}

func (h *QueueHandler) GetRecord(c *gin.Context) {
	var r req.GetRecordRequest
	if err := c.ShouldBindUri(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid record path"})
		return
	}

	rec, err := h.queue.GetCachedRecord(c.Request.Context(), r.Kind, r.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not cached"})
		return
	}
	c.JSON(http.StatusOK, resp.RecordItem{
		Kind:      rec.RecordKind,
		ID:        rec.RecordID,
		Payload:   json.RawMessage(rec.Payload),
		Dirty:     rec.Dirty,
		UpdatedAt: rec.UpdatedAt,
	})
}

func (h *QueueHandler) ListRecords(c *gin.Context) {
	recs, err := h.queue.ListCachedRecords(c.Request.Context(), c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]resp.RecordItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, resp.RecordItem{
			Kind:      rec.RecordKind,
			ID:        rec.RecordID,
			Payload:   json.RawMessage(rec.Payload),
			Dirty:     rec.Dirty,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, items)
}

func (h *QueueHandler) HealthCheck(c *gin.Context) {
	if _, err := h.queue.PendingCount(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "online": h.sync.Online()})
}
