package service

import (
	"sync"
	"testing"
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/internal/metrics"
	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"
)

func init() {
	logger.InitLogger("test")
}

func TestHub_Concurrency(t *testing.T) {
	hub := NewHub(metrics.NopObserver{}, 100*time.Millisecond, 512)
	go hub.Run()

	var wg sync.WaitGroup
	// Parameters for race detection
	clientCount := 50
	msgCount := 200

	clients := make([]*Client, clientCount)

	// 1. Concurrent Registration
	for i := 0; i < clientCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			c := &Client{
				Send:  make(chan v1.Message, 50),
				Kinds: map[string]bool{"load-monitoring": true},
			}
			clients[idx] = c
			hub.Register <- c
		}(i)
	}
	wg.Wait()

	broadcastDone := make(chan struct{})

	// 2. Concurrent Broadcast
	go func() {
		for i := 0; i < msgCount; i++ {
			hub.Broadcast <- v1.Message{
				RecordKind: "load-monitoring",
				IntentID:   "intent-1",
				Status:     "queued",
				Seq:        int64(i),
			}
			// Small delay to allow interleaving with unregister
			if i%10 == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		close(broadcastDone)
	}()

	// 3. Concurrent Unregister (churn)
	go func() {
		for i := 0; i < clientCount/2; i++ {
			time.Sleep(2 * time.Millisecond)
			hub.Unregister <- clients[i]
		}
	}()

	// 4. Reader Consuming Loop
	var readWg sync.WaitGroup
	for i := 0; i < clientCount; i++ {
		readWg.Add(1)
		go func(c *Client) {
			defer readWg.Done()
			timeout := time.After(3 * time.Second)
			for {
				select {
				case _, ok := <-c.Send:
					if !ok {
						return // Channel closed by Hub (disconnect/unregister)
					}
				case <-broadcastDone:
					// Drain remaining
					for {
						select {
						case _, ok := <-c.Send:
							if !ok {
								return
							}
						default:
							return
						}
					}
				case <-timeout:
					return
				}
			}
		}(clients[i])
	}

	readWg.Wait()
}

func TestClient_KindFilter(t *testing.T) {
	all := &Client{Send: make(chan v1.Message, 1)}
	scoped := &Client{Send: make(chan v1.Message, 1), Kinds: map[string]bool{"vit-asset": true}}

	msg := v1.Message{RecordKind: "op5-fault", Status: "synced"}
	if !all.wants(msg) {
		t.Error("client with no kind filter should receive everything")
	}
	if scoped.wants(msg) {
		t.Error("scoped client should not receive other kinds")
	}
	if !scoped.wants(v1.Message{RecordKind: "vit-asset"}) {
		t.Error("scoped client should receive its own kind")
	}
	if !scoped.wants(v1.Message{Type: "ping"}) {
		t.Error("heartbeats bypass the kind filter")
	}
}
