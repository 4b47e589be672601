package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type scriptedPinger struct {
	mu   sync.Mutex
	errs []error
	idx  int
}

func (p *scriptedPinger) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idx >= len(p.errs) {
		return p.errs[len(p.errs)-1]
	}
	err := p.errs[p.idx]
	p.idx++
	return err
}

func TestProber_FeedsMonitor(t *testing.T) {
	m := NewMonitor(false)
	pinger := &scriptedPinger{errs: []error{nil, errors.New("dial refused"), nil}}
	p := NewProber(m, pinger, 10*time.Millisecond, 5*time.Millisecond)

	ch := m.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	// First probe succeeds: offline -> online
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected online transition from first probe")
	}

	// Second probe fails, third succeeds again
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected online transition after recovery")
	}
	if !m.IsOnline() {
		t.Error("monitor should end online")
	}
}

func TestProber_ShutdownIsNotAnOutage(t *testing.T) {
	m := NewMonitor(true)
	block := make(chan struct{})
	p := NewProber(m, pingFunc(func(ctx context.Context) error {
		<-block
		return ctx.Err()
	}), time.Hour, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	close(block)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("prober did not stop")
	}
	if !m.IsOnline() {
		t.Error("a probe aborted by shutdown must not flip the monitor offline")
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
