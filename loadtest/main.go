package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Configuration
var (
	baseURL    = flag.String("url", "http://localhost:8080", "Service base URL")
	deviceKey  = flag.String("key", "ops-device-key-1", "Device API key")
	devPass    = flag.String("pass", "opsoms-dev-bypass", "Dev bypass header for write endpoints")
	totalVUs   = flag.Int("c", 2000, "Total Virtual Users (Concurrency)")
	rampUp     = flag.Duration("ramp", 60*time.Second, "Ramp up duration")
	enqueueQPS = flag.Int("qps", 10, "Mutations enqueued per second")
	recordKind = flag.String("kind", "loadtest-latency-check", "Record kind to measure")
)

// Metrics
var (
	activeClients int64
	totalconnects int64
	connectErrors int64
	messagesRx    int64
	enqueued      int64
	enqueueErrors int64
	latencySum    int64 // milliseconds
	latencyCount  int64
)

type eventMessage struct {
	Seq        int64           `json:"seq"`
	RecordKind string          `json:"record_kind"`
	Status     string          `json:"status"`
	Record     json.RawMessage `json:"record"`
}

type measuredPayload struct {
	SentAt int64 `json:"sent_at"`
}

func main() {
	flag.Parse()

	fmt.Printf("🚀 Starting Load Test\n")
	fmt.Printf("   Target: %s\n", *baseURL)
	fmt.Printf("   VUs: %d\n", *totalVUs)
	fmt.Printf("   Ramp: %v\n", *rampUp)
	fmt.Printf("   Enqueue QPS: %d\n", *enqueueQPS)

	http.DefaultTransport.(*http.Transport).TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	http.DefaultTransport.(*http.Transport).MaxIdleConns = *totalVUs
	http.DefaultTransport.(*http.Transport).MaxConnsPerHost = *totalVUs

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metric Reporter
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				currentActive := atomic.LoadInt64(&activeClients)
				total := atomic.LoadInt64(&totalconnects)
				errs := atomic.LoadInt64(&connectErrors)
				msgs := atomic.SwapInt64(&messagesRx, 0)
				enq := atomic.LoadInt64(&enqueued)
				enqErrs := atomic.LoadInt64(&enqueueErrors)
				latSum := atomic.SwapInt64(&latencySum, 0)
				latCnt := atomic.SwapInt64(&latencyCount, 0)

				avgLat := float64(0)
				if latCnt > 0 {
					avgLat = float64(latSum) / float64(latCnt)
				}

				fmt.Printf("[%s] Active: %d | Total: %d | Errors: %d | Msgs/s: %d | Enqueued: %d (%d err) | Avg Sync Latency: %.2f ms\n",
					time.Now().Format("15:04:05"), currentActive, total, errs, msgs, enq, enqErrs, avgLat)
			}
		}
	}()

	// Mutation producer
	go runProducer(ctx)

	// Ramp-up Logic
	interval := *rampUp / time.Duration(*totalVUs)
	for i := 0; i < *totalVUs; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runWatcher(ctx, id)
		}(i)
		time.Sleep(interval)
	}

	// Keep alive
	fmt.Println("✅ All VUs launched. Waiting...")
	wg.Wait()
}

// runProducer enqueues create mutations carrying a send timestamp so watchers
// can measure enqueue-to-synced latency off the event stream.
func runProducer(ctx context.Context) {
	client := &http.Client{Timeout: 10 * time.Second}
	interval := time.Second / time.Duration(*enqueueQPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, _ := json.Marshal(measuredPayload{SentAt: time.Now().UnixMilli()})
			body, _ := json.Marshal(map[string]any{
				"record_kind": *recordKind,
				"operation":   "create",
				"payload":     json.RawMessage(payload),
			})
			req, err := http.NewRequestWithContext(ctx, "POST", *baseURL+"/v1/queue", bytes.NewReader(body))
			if err != nil {
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Dev-Pass", *devPass)
			resp, err := client.Do(req)
			if err != nil {
				atomic.AddInt64(&enqueueErrors, 1)
				continue
			}
			resp.Body.Close()
			if resp.StatusCode != 200 {
				atomic.AddInt64(&enqueueErrors, 1)
				continue
			}
			atomic.AddInt64(&enqueued, 1)
		}
	}
}

func runWatcher(ctx context.Context, id int) {
	url := fmt.Sprintf("%s/v1/stream/watch?kinds=%s", *baseURL, *recordKind)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		fmt.Printf("Client %d error: %v\n", id, err)
		return
	}

	req.Header.Set("X-OPS-Key", *deviceKey)
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Connection", "keep-alive")

	client := &http.Client{
		Timeout: 0, // Infinite timeout for SSE
	}

	resp, err := client.Do(req)
	if err != nil {
		if atomic.AddInt64(&connectErrors, 1) == 1 {
			fmt.Printf("Error connecting: %v\n", err)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		if atomic.AddInt64(&connectErrors, 1) == 1 {
			fmt.Printf("Error status code: %d\n", resp.StatusCode)
		}
		return
	}

	atomic.AddInt64(&activeClients, 1)
	atomic.AddInt64(&totalconnects, 1)
	defer atomic.AddInt64(&activeClients, -1)

	reader := bufio.NewReader(resp.Body)

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// server closed or network error
			return
		}

		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimPrefix(line, "data:")
			var msg eventMessage
			if err := json.Unmarshal([]byte(data), &msg); err == nil {
				atomic.AddInt64(&messagesRx, 1)

				// Measure latency on synced events for the measured kind
				if msg.RecordKind == *recordKind && msg.Status == "synced" && len(msg.Record) > 0 {
					var p measuredPayload
					if err := json.Unmarshal(msg.Record, &p); err == nil && p.SentAt > 0 {
						latency := time.Now().UnixMilli() - p.SentAt
						// Filter reasonable range to avoid clock skew weirdness
						if latency >= 0 && latency < 10000 {
							atomic.AddInt64(&latencySum, latency)
							atomic.AddInt64(&latencyCount, 1)
						}
					}
				}
			}
		}
	}
}
