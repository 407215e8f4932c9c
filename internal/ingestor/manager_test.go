package ingestor

import (
	"context"
	"sync"
	"testing"
	"time"

	"corpfeed/internal/queue"
	"corpfeed/internal/truedata"
)

// recordingDialer hands each caller a fresh holding connection and records
// the credentials it was dialed with.
type recordingDialer struct {
	mu    sync.Mutex
	calls []string
}

func (d *recordingDialer) Dial(ctx context.Context, url, username, password string) (truedata.Conn, error) {
	d.mu.Lock()
	d.calls = append(d.calls, username+":"+password)
	d.mu.Unlock()
	return newFakeConn(true), nil
}

func (d *recordingDialer) dialed(cred string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.calls {
		if c == cred {
			return true
		}
	}
	return false
}

func managerConfig(id, password string, enabled bool) ConnectionConfig {
	return ConnectionConfig{
		ConnectionID: id,
		Name:         id + " feed",
		URL:          "wss://feed.example.com/" + id,
		Username:     id,
		Password:     password,
		Enabled:      enabled,
	}
}

func TestManagerReconcile(t *testing.T) {
	dialer := &recordingDialer{}
	q := queue.New(16, queue.DropOldest)
	m := NewManager(dialer, q, Options{Backoff: testBackoff()})
	defer m.Stop()

	ctx := context.Background()
	m.Reconcile(ctx, []ConnectionConfig{
		managerConfig("alpha", "pw1", true),
		managerConfig("beta", "pw1", true),
		managerConfig("gamma", "pw1", false),
	})

	statuses := m.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("status count = %d, want 3", len(statuses))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if statuses[i].ConnectionID != want {
			t.Errorf("status %d = %q, want %q", i, statuses[i].ConnectionID, want)
		}
	}
	if statuses[2].Enabled || statuses[2].State != StateDisconnected {
		t.Errorf("disabled connection reported as %+v", statuses[2])
	}

	eventually(t, time.Second, "both workers to connect", func() bool {
		for _, st := range m.Statuses() {
			if st.Enabled && st.State != StateConnected {
				return false
			}
		}
		return true
	})

	m.mu.Lock()
	betaBefore := m.workers["beta"]
	m.mu.Unlock()

	// Rotate alpha's password, keep beta unchanged, drop gamma, add delta.
	m.Reconcile(ctx, []ConnectionConfig{
		managerConfig("alpha", "pw2", true),
		managerConfig("beta", "pw1", true),
		managerConfig("delta", "pw1", true),
	})

	eventually(t, time.Second, "alpha to redial with new password", func() bool {
		return dialer.dialed("alpha:pw2")
	})
	eventually(t, time.Second, "delta to dial", func() bool {
		return dialer.dialed("delta:pw1")
	})

	m.mu.Lock()
	betaAfter := m.workers["beta"]
	gammaWorker := m.workers["gamma"]
	m.mu.Unlock()
	if betaBefore != betaAfter {
		t.Error("unchanged connection should not be restarted")
	}
	if gammaWorker != nil {
		t.Error("removed connection should not have a worker")
	}

	statuses = m.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("status count after reconcile = %d, want 3", len(statuses))
	}
	for i, want := range []string{"alpha", "beta", "delta"} {
		if statuses[i].ConnectionID != want {
			t.Errorf("status %d = %q, want %q", i, statuses[i].ConnectionID, want)
		}
	}
}

func TestManagerDisableStopsWorker(t *testing.T) {
	dialer := &recordingDialer{}
	q := queue.New(16, queue.DropOldest)
	m := NewManager(dialer, q, Options{Backoff: testBackoff()})
	defer m.Stop()

	ctx := context.Background()
	m.Reconcile(ctx, []ConnectionConfig{managerConfig("alpha", "pw1", true)})
	eventually(t, time.Second, "worker to connect", func() bool {
		sts := m.Statuses()
		return len(sts) == 1 && sts[0].State == StateConnected
	})

	m.Reconcile(ctx, []ConnectionConfig{managerConfig("alpha", "pw1", false)})

	statuses := m.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("status count = %d, want 1", len(statuses))
	}
	if statuses[0].Enabled {
		t.Error("connection should report disabled")
	}
	if statuses[0].State != StateDisconnected {
		t.Errorf("state = %s, want %s", statuses[0].State, StateDisconnected)
	}
}

func TestManagerStop(t *testing.T) {
	dialer := &recordingDialer{}
	q := queue.New(16, queue.DropOldest)
	m := NewManager(dialer, q, Options{Backoff: testBackoff()})

	m.Reconcile(context.Background(), []ConnectionConfig{
		managerConfig("alpha", "pw1", true),
		managerConfig("beta", "pw1", true),
	})
	eventually(t, time.Second, "workers to connect", func() bool {
		for _, st := range m.Statuses() {
			if st.State != StateConnected {
				return false
			}
		}
		return true
	})

	m.Stop()

	for _, st := range m.Statuses() {
		if st.State != StateDisconnected {
			t.Errorf("connection %s state = %s after stop, want %s",
				st.ConnectionID, st.State, StateDisconnected)
		}
	}
}
