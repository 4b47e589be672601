package client

import (
	"testing"

	v1 "github.com/ECGOPS/OPSOMS-sub004/pkg/api/v1"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/constraints"
	"github.com/ECGOPS/OPSOMS-sub004/pkg/logger"
)

func init() {
	logger.InitLogger("test")
}

func newTestClient() *OpsClient {
	return &OpsClient{
		statuses: make(map[string]v1.Message),
		idLinks:  make(map[string]string),
		lastSeq:  -1,
	}
}

func TestHandleUpdate_TracksLifecycle(t *testing.T) {
	c := newTestClient()

	c.handleUpdate(v1.Message{
		Seq:        1,
		RecordKind: "load-monitoring",
		Operation:  constraints.OpCreate,
		IntentID:   "local-i1",
		TargetID:   "local-t1",
		Status:     constraints.StatusQueued,
	})
	c.handleUpdate(v1.Message{
		Seq:        2,
		RecordKind: "load-monitoring",
		Operation:  constraints.OpCreate,
		IntentID:   "local-i1",
		TargetID:   "local-t1",
		RemoteID:   "srv-1",
		Status:     constraints.StatusSynced,
	})

	msg, ok := c.StatusOf("local-i1")
	if !ok || msg.Status != constraints.StatusSynced {
		t.Errorf("StatusOf = %v, %v; want synced", msg, ok)
	}
	if c.lastSeq != 2 {
		t.Errorf("lastSeq = %d, want 2", c.lastSeq)
	}
}

func TestHandleUpdate_DropsStaleEvents(t *testing.T) {
	c := newTestClient()

	c.handleUpdate(v1.Message{Seq: 5, IntentID: "local-i1", Status: constraints.StatusSynced})
	// Replayed event from a reconnect must not regress the view
	c.handleUpdate(v1.Message{Seq: 4, IntentID: "local-i1", Status: constraints.StatusQueued})

	msg, _ := c.StatusOf("local-i1")
	if msg.Status != constraints.StatusSynced {
		t.Errorf("stale event overwrote newer state: %v", msg)
	}
	if c.lastSeq != 5 {
		t.Errorf("lastSeq = %d, want 5", c.lastSeq)
	}
}

func TestResolveID(t *testing.T) {
	c := newTestClient()

	// Server ids pass through
	if id, ok := c.ResolveID("srv-9"); !ok || id != "srv-9" {
		t.Errorf("ResolveID(srv-9) = %q, %v", id, ok)
	}

	// Unlinked local ids are unresolved
	if _, ok := c.ResolveID("local-t1"); ok {
		t.Error("unlinked local id should not resolve")
	}

	c.handleUpdate(v1.Message{
		Seq:       1,
		Operation: constraints.OpCreate,
		IntentID:  "local-i1",
		TargetID:  "local-t1",
		RemoteID:  "srv-1",
		Status:    constraints.StatusSynced,
	})
	if id, ok := c.ResolveID("local-t1"); !ok || id != "srv-1" {
		t.Errorf("ResolveID(local-t1) = %q, %v; want srv-1", id, ok)
	}
}

func TestWatchURL(t *testing.T) {
	c := newTestClient()
	c.addr = "http://localhost:8080"
	c.kinds = []string{"load-monitoring", "vit-asset"}

	want := "http://localhost:8080/v1/stream/watch?kinds=load-monitoring,vit-asset"
	if got := c.watchURL(); got != want {
		t.Errorf("watchURL() = %q, want %q", got, want)
	}

	c.lastSeq = 42
	want += "&last_seq=42"
	if got := c.watchURL(); got != want {
		t.Errorf("watchURL() = %q, want %q", got, want)
	}
}
