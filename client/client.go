package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"

	"go.uber.org/zap"
)

// ErrServerOffline is returned by SyncNow when the service reports that the
// central store is unreachable and a drain cannot start.
var ErrServerOffline = errors.New("sync service is offline")

type EnqueueResult struct {
	IntentID string `json:"intent_id"`
	TargetID string `json:"target_id"`
}

type SyncStatus struct {
	Online   bool  `json:"online"`
	Draining bool  `json:"draining"`
	Pending  int64 `json:"pending"`
}

// OpsClient is the field-application SDK. It posts mutations into the local
// write queue and follows the sync event stream so callers can observe the
// lifecycle of every intent they submitted.
type OpsClient struct {
	addr      string
	deviceKey string
	token     string
	kinds     []string

	httpClient *http.Client

	mu       sync.RWMutex
	statuses map[string]v1.Message // latest lifecycle event per intent id
	idLinks  map[string]string     // local id -> server-issued id
	lastSeq  int64

	ctx    context.Context
	cancel context.CancelFunc
}

func NewOpsClient(addr, deviceKey, token string, kinds []string) *OpsClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &OpsClient{
		addr:       addr,
		deviceKey:  deviceKey,
		token:      token,
		kinds:      kinds,
		httpClient: &http.Client{Timeout: 0},
		statuses:   make(map[string]v1.Message),
		idLinks:    make(map[string]string),
		lastSeq:    -1,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (c *OpsClient) Start() error {
	if err := c.fetchPending(); err != nil {
		return err
	}
	go c.runWatchLoop()
	return nil
}

func (c *OpsClient) Stop() {
	c.cancel()
}

// Enqueue records a mutation on the service's durable queue. The returned
// TargetID is the id the record is addressed by until the central store
// assigns one; for creates it carries the local id prefix.
func (c *OpsClient) Enqueue(ctx context.Context, kind string, op constraints.Operation, targetID string, payload json.RawMessage) (EnqueueResult, error) {
	body, _ := json.Marshal(map[string]any{
		"record_kind": kind,
		"operation":   op,
		"target_id":   targetID,
		"payload":     payload,
	})
	var res EnqueueResult
	if err := c.doJSON(ctx, "POST", "/v1/queue", bytes.NewReader(body), &res); err != nil {
		return EnqueueResult{}, err
	}
	c.mu.Lock()
	c.statuses[res.IntentID] = v1.Message{
		RecordKind: kind,
		Operation:  op,
		IntentID:   res.IntentID,
		TargetID:   res.TargetID,
		Status:     constraints.StatusQueued,
	}
	c.mu.Unlock()
	return res, nil
}

func (c *OpsClient) PendingCount(ctx context.Context) (int64, error) {
	var res struct {
		Pending int64 `json:"pending"`
	}
	if err := c.doJSON(ctx, "GET", "/v1/queue/count", nil, &res); err != nil {
		return 0, err
	}
	return res.Pending, nil
}

// SyncNow asks the service to drain the queue immediately.
func (c *OpsClient) SyncNow(ctx context.Context) error {
	err := c.doJSON(ctx, "POST", "/v1/sync", nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusServiceUnavailable {
		return ErrServerOffline
	}
	return err
}

func (c *OpsClient) Status(ctx context.Context) (SyncStatus, error) {
	var res SyncStatus
	err := c.doJSON(ctx, "GET", "/v1/sync/status", nil, &res)
	return res, err
}

// StatusOf reports the latest observed lifecycle event for an intent.
func (c *OpsClient) StatusOf(intentID string) (v1.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	msg, ok := c.statuses[intentID]
	return msg, ok
}

// ResolveID maps a locally issued record id to the server-issued one, if the
// create has synced. Server ids pass through unchanged.
func (c *OpsClient) ResolveID(id string) (string, bool) {
	if !strings.HasPrefix(id, constraints.LocalIDPrefix) {
		return id, true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	remote, ok := c.idLinks[id]
	return remote, ok
}

func (c *OpsClient) GetRecord(ctx context.Context, kind, id string) (v1.Record, error) {
	var res struct {
		Kind    string          `json:"kind"`
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := c.doJSON(ctx, "GET", fmt.Sprintf("/v1/records/%s/%s", kind, id), nil, &res); err != nil {
		return v1.Record{}, err
	}
	return v1.Record{Kind: res.Kind, ID: res.ID, Payload: res.Payload}, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.code, e.body)
}

func (c *OpsClient) doJSON(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-OPS-Key", c.deviceKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *OpsClient) fetchPending() error {
	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()
	var items []struct {
		ID         string `json:"id"`
		RecordKind string `json:"record_kind"`
		Operation  string `json:"operation"`
		TargetID   string `json:"target_id"`
	}
	if err := c.doJSON(ctx, "GET", "/v1/queue", nil, &items); err != nil {
		logger.Error("failed to fetch pending intents", zap.Error(err))
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range items {
		c.statuses[it.ID] = v1.Message{
			RecordKind: it.RecordKind,
			Operation:  constraints.Operation(it.Operation),
			IntentID:   it.ID,
			TargetID:   it.TargetID,
			Status:     constraints.StatusQueued,
		}
	}
	return nil
}

func (c *OpsClient) watchURL() string {
	c.mu.RLock()
	lastSeq := c.lastSeq
	c.mu.RUnlock()
	url := fmt.Sprintf("%s/v1/stream/watch?kinds=%s", c.addr, strings.Join(c.kinds, ","))
	if lastSeq >= 0 {
		url += fmt.Sprintf("&last_seq=%d", lastSeq)
	}
	return url
}

func (c *OpsClient) runWatchLoop() {
	backoff := time.Second
	maxBackoff := 30 * time.Second
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			reqCtx, reqCancel := context.WithCancel(c.ctx)
			req, _ := http.NewRequestWithContext(reqCtx, "GET", c.watchURL(), nil)
			req.Header.Set("X-OPS-Key", c.deviceKey)
			resp, err := c.httpClient.Do(req)
			if err != nil {
				reqCancel()
				jitter := time.Duration(rand.Int63n(int64(backoff / 2)))
				logger.Warn("sync stream disconnected", zap.Error(err))
				time.Sleep(backoff + jitter)
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}

			// Watchdog for heartbeats
			var lastActivity int64 = time.Now().Unix()
			go func() {
				ticker := time.NewTicker(5 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-reqCtx.Done():
						return
					case <-ticker.C:
						if time.Now().Unix()-atomic.LoadInt64(&lastActivity) > 25 {
							logger.Warn("sse heartbeat timeout, reconnecting")
							reqCancel()
							return
						}
					}
				}
			}()

			backoff = time.Second
			scanner := bufio.NewScanner(resp.Body)

			var eventType string
			var dataBuffer bytes.Buffer

			for scanner.Scan() {
				atomic.StoreInt64(&lastActivity, time.Now().Unix())
				line := scanner.Text()
				if line == "" {
					// Process the accumulated message
					if eventType == "reset" {
						logger.Warn("stream sequence too old, re-baselining from queue")
						c.mu.Lock()
						c.lastSeq = -1
						c.mu.Unlock()
						if err := c.fetchPending(); err != nil {
							logger.Error("failed to re-baseline after reset", zap.Error(err))
						}
						// Close current stream
						reqCancel()
						break
					} else if eventType == "ping" {
						eventType = ""
						dataBuffer.Reset()
						continue
					} else if dataBuffer.Len() > 0 {
						var msg v1.Message
						if err := json.Unmarshal(dataBuffer.Bytes(), &msg); err == nil {
							c.handleUpdate(msg)
						} else {
							logger.Error("failed to unmarshal sync event", zap.Error(err))
						}
					}

					// Reset buffers for next message
					eventType = ""
					dataBuffer.Reset()
					continue
				}

				if strings.HasPrefix(line, "event: ") {
					eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				} else if strings.HasPrefix(line, "data:") {
					// SSE allows multiple data lines, joined by newline
					if dataBuffer.Len() > 0 {
						dataBuffer.WriteString("\n")
					}
					dataBuffer.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
				}
			}
			reqCancel()
			resp.Body.Close()
		}
	}
}

func (c *OpsClient) handleUpdate(msg v1.Message) {
	if msg.Type == "ping" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.Seq <= c.lastSeq {
		logger.Warn("stale sync event received", zap.Int64("msg_seq", msg.Seq), zap.Int64("last_seq", c.lastSeq))
		return
	}
	c.statuses[msg.IntentID] = msg
	switch msg.Status {
	case constraints.StatusSynced:
		if msg.Operation == constraints.OpCreate && msg.RemoteID != "" {
			c.idLinks[msg.TargetID] = msg.RemoteID
		}
		logger.Info("intent synced",
			zap.String("intent_id", msg.IntentID),
			zap.String("kind", msg.RecordKind),
			zap.String("remote_id", msg.RemoteID))
	case constraints.StatusFailed:
		logger.Warn("intent failed terminally",
			zap.String("intent_id", msg.IntentID),
			zap.String("kind", msg.RecordKind),
			zap.String("error", msg.Error))
	case constraints.StatusQueued:
		logger.Info("intent queued",
			zap.String("intent_id", msg.IntentID),
			zap.String("kind", msg.RecordKind))
	default:
		logger.Warn("unknown status in sync event", zap.String("status", msg.Status))
	}

	c.lastSeq = msg.Seq
}
