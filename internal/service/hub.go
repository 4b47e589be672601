package service

import (
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/internal/metrics"
	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"
)

// Client is one stream subscriber. Kinds filters the record kinds it cares
// about; empty means everything.
type Client struct {
	Send  chan v1.Message
	Kinds map[string]bool
}

func (c *Client) wants(msg v1.Message) bool {
	if msg.Type == "ping" {
		return true
	}
	if len(c.Kinds) == 0 {
		return true
	}
	return c.Kinds[msg.RecordKind]
}

// Hub fans sync lifecycle events out to stream subscribers so list views can
// render pending/failed badges without polling the local store.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan v1.Message
	Register   chan *Client
	Unregister chan *Client

	observer  metrics.Observer
	heartbeat time.Duration
}

func NewHub(observer metrics.Observer, heartbeat time.Duration, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan v1.Message, bufferSize),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		observer:   observer,
		heartbeat:  heartbeat,
	}
}

func (h *Hub) Run() {
	var heartbeat <-chan time.Time
	if h.heartbeat > 0 {
		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			h.observer.IncOnline()
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.observer.DecOnline()
			}
		case <-heartbeat:
			h.push(v1.Message{Type: "ping"})
		case message := <-h.Broadcast:
			h.push(message)
		}
	}
}

func (h *Hub) push(msg v1.Message) {
	for client := range h.clients {
		if !client.wants(msg) {
			continue
		}
		select {
		case client.Send <- msg:
			h.observer.RecordPush()
		default:
			logger.Warn("stream client stalled, dropping")
			close(client.Send)
			delete(h.clients, client)
			h.observer.DecOnline()
		}
	}
}
