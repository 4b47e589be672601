package connectivity

import (
	"context"
	"time"

	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"

	"go.uber.org/zap"
)

// Pinger is the reachability probe target, usually the remote store adapter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Prober feeds the monitor from periodic reachability probes. A headless
// service has no runtime online/offline notification to subscribe to, so the
// probe loop is the host signal source.
type Prober struct {
	monitor  *Monitor
	target   Pinger
	interval time.Duration
	timeout  time.Duration
}

func NewProber(monitor *Monitor, target Pinger, interval, timeout time.Duration) *Prober {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Prober{
		monitor:  monitor,
		target:   target,
		interval: interval,
		timeout:  timeout,
	}
}

func (p *Prober) Run(ctx context.Context) {
	logger.Info("connectivity prober started", zap.Duration("interval", p.interval))

	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("connectivity prober stopped")
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.target.Ping(probeCtx)
	if err != nil && ctx.Err() != nil {
		// shutdown, not an outage
		return
	}
	p.monitor.SetOnline(err == nil)
}
