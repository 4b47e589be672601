// Package connectivity holds the single source of truth for the device's
// online/offline state. The state is written only here; everything else reads
// it or subscribes to transitions.
package connectivity

import (
	"sync"

	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"
)

type Monitor struct {
	mu     sync.RWMutex
	online bool
	subs   []chan struct{}
	hooks  []func(online bool)
}

// NewMonitor starts the monitor in the given state without notifying anyone.
// A process that starts online must not see a spurious transition; callers
// that need a drain at startup run one explicitly.
func NewMonitor(startOnline bool) *Monitor {
	return &Monitor{online: startOnline}
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records a state report. Repeated reports of the current state are
// dropped; subscribers are notified exactly once per offline-to-online
// transition.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]chan struct{}, len(m.subs))
	copy(subs, m.subs)
	hooks := make([]func(bool), len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(online)
	}

	if online {
		logger.Info("connectivity restored")
		for _, ch := range subs {
			select {
			case ch <- struct{}{}:
			default:
				// subscriber already has a pending wakeup; coalesce
			}
		}
	} else {
		logger.Warn("connectivity lost")
	}
}

// OnTransition registers fn to run with the new state on every state change,
// in both directions. Hooks run synchronously inside SetOnline, so they must
// not block; the connectivity gauge is wired through here.
func (m *Monitor) OnTransition(fn func(online bool)) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

// Subscribe returns a channel that receives one value per offline-to-online
// transition. The channel is buffered so transitions arriving while the
// subscriber is busy collapse into a single wakeup.
func (m *Monitor) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// ReportUnreachable lets callers that hit the network directly (the sync
// driver, mid-cycle) feed an observed outage back into the monitor.
func (m *Monitor) ReportUnreachable() {
	m.SetOnline(false)
}
