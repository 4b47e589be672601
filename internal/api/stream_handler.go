package api

import (
	"io"
	"strconv"
	"strings"

	"github.com/ECGOPS/OPSOMS-sub004/internal/service"
	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StreamHandler struct {
	events *service.EventBus
	hub    *service.Hub
}

func NewStreamHandler(events *service.EventBus, hub *service.Hub) *StreamHandler {
	return &StreamHandler{events: events, hub: hub}
}

// Watch streams sync lifecycle events over SSE. Clients reconnecting pass
// last_seq to be compensated for events missed while disconnected; a "reset"
// event tells them to refetch state instead.
func (h *StreamHandler) Watch(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	lastSeqStr := c.Query("last_seq")
	kindsStr := c.Query("kinds")

	kinds := make(map[string]bool)
	if kindsStr != "" {
		for _, p := range strings.Split(kindsStr, ",") {
			if strings.TrimSpace(p) != "" {
				kinds[strings.TrimSpace(p)] = true
			}
		}
	}

	logger.Info("stream client connected",
		zap.String("kinds", kindsStr),
		zap.String("ip", c.ClientIP()),
	)

	var lastSeq int64
	if lastSeqStr != "" {
		lastSeq, _ = strconv.ParseInt(lastSeqStr, 10, 64)
	}

	client := &service.Client{
		Send:  make(chan v1.Message, 128),
		Kinds: kinds,
	}

	h.hub.Register <- client
	defer func() {
		h.hub.Unregister <- client
	}()

	maxSentSeq := lastSeq
	if lastSeqStr != "" {
		messages, ok := h.events.GetCompensation(lastSeq)
		if !ok {
			c.SSEvent("reset", "seq_too_old")
		} else {
			for _, msg := range messages {
				if len(kinds) > 0 && !kinds[msg.RecordKind] {
					continue
				}
				c.SSEvent("message", msg)
				maxSentSeq = msg.Seq
			}
		}
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return false
			}

			if msg.Type == "ping" {
				c.SSEvent("ping", "pong")
				return true
			}

			// drop events already replayed through compensation
			if msg.Seq <= maxSentSeq {
				return true
			}
			c.SSEvent("message", msg)
			maxSentSeq = msg.Seq
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
