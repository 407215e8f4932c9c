package ingestor

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"corpfeed/internal/queue"
)

// Options tune every supervisor the manager starts.
type Options struct {
	Backoff         Backoff
	MaxAuthAttempts int
}

// Manager runs one supervisor per enabled connection and reconciles the
// running set against each loaded configuration.
type Manager struct {
	dialer          Dialer
	queue           *queue.Queue
	backoff         Backoff
	maxAuthAttempts int

	mu      sync.Mutex
	workers map[string]*Supervisor
	configs map[string]ConnectionConfig
}

func NewManager(dialer Dialer, q *queue.Queue, opts Options) *Manager {
	backoff := opts.Backoff
	if backoff == (Backoff{}) {
		backoff = DefaultBackoff()
	}
	return &Manager{
		dialer:          dialer,
		queue:           q,
		backoff:         backoff,
		maxAuthAttempts: opts.MaxAuthAttempts,
		workers:         make(map[string]*Supervisor),
		configs:         make(map[string]ConnectionConfig),
	}
}

// Reconcile diffs the desired configuration against the running supervisors:
// removed or disabled connections stop, changed connections restart with the
// new settings, and newly enabled connections start. Unchanged connections
// are left alone.
func (m *Manager) Reconcile(ctx context.Context, configs []ConnectionConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	desired := make(map[string]ConnectionConfig, len(configs))
	for _, cfg := range configs {
		desired[cfg.ConnectionID] = cfg
	}

	for id, sup := range m.workers {
		cfg, ok := desired[id]
		switch {
		case !ok:
			slog.Info("Stopping removed connection", "connection", id)
		case !cfg.Enabled:
			slog.Info("Stopping disabled connection", "connection", id)
		case cfg != sup.cfg:
			slog.Info("Restarting changed connection", "connection", id)
		default:
			continue
		}
		sup.stop()
		delete(m.workers, id)
	}

	for id, cfg := range desired {
		if _, running := m.workers[id]; running || !cfg.Enabled {
			continue
		}
		slog.Info("Starting connection", "connection", id, "name", cfg.Name)
		sup := newSupervisor(cfg, m.dialer, m.queue, m.backoff, m.maxAuthAttempts)
		sup.start(ctx)
		m.workers[id] = sup
	}

	m.configs = desired
}

// Statuses reports every configured connection, including disabled ones.
func (m *Manager) Statuses() []WorkerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]WorkerStatus, 0, len(m.configs))
	for id, cfg := range m.configs {
		if sup, ok := m.workers[id]; ok {
			out = append(out, sup.Status())
			continue
		}
		out = append(out, WorkerStatus{
			ConnectionID: id,
			Name:         cfg.Name,
			Enabled:      cfg.Enabled,
			State:        StateDisconnected,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out
}

// Stop halts every supervisor and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sup := range m.workers {
		sup.stop()
		delete(m.workers, id)
	}
}
