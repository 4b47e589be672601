package connectivity

import (
	"testing"

	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"
)

func init() {
	logger.InitLogger("test")
}

func TestMonitor_StartStateIsSilent(t *testing.T) {
	m := NewMonitor(true)
	ch := m.Subscribe()

	if !m.IsOnline() {
		t.Fatal("monitor should start online")
	}
	select {
	case <-ch:
		t.Error("no event should be delivered for the start state")
	default:
	}

	// Re-reporting the current state must stay silent too
	m.SetOnline(true)
	select {
	case <-ch:
		t.Error("duplicate online report should be deduplicated")
	default:
	}
}

func TestMonitor_NotifiesOncePerTransition(t *testing.T) {
	m := NewMonitor(false)
	ch := m.Subscribe()

	m.SetOnline(false) // duplicate offline, no-op
	m.SetOnline(true)

	select {
	case <-ch:
	default:
		t.Fatal("offline-to-online transition should notify subscribers")
	}

	// Going offline is observable via IsOnline but produces no wakeup
	m.SetOnline(false)
	select {
	case <-ch:
		t.Error("online-to-offline transition should not notify")
	default:
	}
	if m.IsOnline() {
		t.Error("monitor should report offline")
	}
}

func TestMonitor_CoalescesUnconsumedTransitions(t *testing.T) {
	m := NewMonitor(false)
	ch := m.Subscribe()

	// Two full flaps with no reader in between collapse into one wakeup
	m.SetOnline(true)
	m.SetOnline(false)
	m.SetOnline(true)

	<-ch
	select {
	case <-ch:
		t.Error("unconsumed transitions should coalesce into a single wakeup")
	default:
	}
}

func TestMonitor_TransitionHookSeesEveryChange(t *testing.T) {
	m := NewMonitor(true)

	var states []bool
	m.OnTransition(func(online bool) {
		states = append(states, online)
	})

	m.SetOnline(true) // duplicate, hook stays quiet
	m.SetOnline(false)
	m.SetOnline(false) // duplicate
	m.SetOnline(true)

	want := []bool{false, true}
	if len(states) != len(want) {
		t.Fatalf("hook fired %d times, want %d", len(states), len(want))
	}
	for i, s := range states {
		if s != want[i] {
			t.Errorf("hook call %d reported %v, want %v", i, s, want[i])
		}
	}
}

func TestMonitor_ReportUnreachable(t *testing.T) {
	m := NewMonitor(true)
	m.ReportUnreachable()
	if m.IsOnline() {
		t.Error("ReportUnreachable should flip the monitor offline")
	}
}
