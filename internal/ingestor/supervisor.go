package ingestor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"corpfeed/internal/queue"
	"corpfeed/internal/truedata"
)

// State is a supervisor lifecycle phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateStopped      State = "stopped"
)

const defaultMaxAuthAttempts = 5

// Dialer opens feed connections. The production implementation is
// truedata.WSDialer; tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context, url, username, password string) (truedata.Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url, username, password string) (truedata.Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url, username, password string) (truedata.Conn, error) {
	return f(ctx, url, username, password)
}

// WorkerStatus is a point-in-time snapshot of one supervisor.
type WorkerStatus struct {
	ConnectionID string     `json:"connection_id"`
	Name         string     `json:"name"`
	Enabled      bool       `json:"enabled"`
	State        State      `json:"state"`
	Running      bool       `json:"running"`
	AuthFailed   bool       `json:"auth_failed"`
	LastError    string     `json:"last_error,omitempty"`
	ConnectedAt  *time.Time `json:"connected_at,omitempty"`
	Messages     int64      `json:"messages_received"`
	Failures     int        `json:"consecutive_failures"`
}

// Supervisor owns one feed connection: it dials, reads, enqueues, and
// reconnects with backoff until its context is cancelled. Credential
// rejections retry on the long auth interval and park after too many
// consecutive failures; every other failure is transient.
type Supervisor struct {
	cfg             ConnectionConfig
	dialer          Dialer
	queue           *queue.Queue
	backoff         Backoff
	maxAuthAttempts int

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	state       State
	authFailed  bool
	lastErr     string
	connectedAt *time.Time
	messages    int64
	failures    int
}

func newSupervisor(cfg ConnectionConfig, dialer Dialer, q *queue.Queue, backoff Backoff, maxAuthAttempts int) *Supervisor {
	if maxAuthAttempts <= 0 {
		maxAuthAttempts = defaultMaxAuthAttempts
	}
	return &Supervisor{
		cfg:             cfg,
		dialer:          dialer,
		queue:           q,
		backoff:         backoff,
		maxAuthAttempts: maxAuthAttempts,
		done:            make(chan struct{}),
		state:           StateDisconnected,
	}
}

// start launches the supervise loop under its own cancelable context.
func (s *Supervisor) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	go s.run(ctx)
}

// stop cancels the supervisor and waits for the loop to exit.
func (s *Supervisor) stop() {
	s.cancel()
	<-s.done
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.done)
	defer s.transition(StateStopped)

	failures := 0
	authFailures := 0

	for {
		if ctx.Err() != nil {
			return
		}

		s.transition(StateConnecting)
		conn, err := s.dialer.Dial(ctx, s.cfg.URL, s.cfg.Username, s.cfg.Password)
		if err == nil {
			failures, authFailures = 0, 0
			s.noteConnected()
			slog.Info("Feed connected", "connection", s.cfg.ConnectionID, "name", s.cfg.Name)

			err = s.consume(ctx, conn)
			conn.Close()
		}
		if ctx.Err() != nil {
			return
		}

		if errors.Is(err, truedata.ErrAuth) {
			authFailures++
			s.noteAuthFailure(err, authFailures)
			if authFailures >= s.maxAuthAttempts {
				slog.Error("Credentials rejected repeatedly, parking connection until config change",
					"connection", s.cfg.ConnectionID, "attempts", authFailures)
				<-ctx.Done()
				return
			}
			slog.Error("Feed credentials rejected", "connection", s.cfg.ConnectionID,
				"attempt", authFailures, "retry_in", s.backoff.AuthInterval, "error", err)
			if !sleepCtx(ctx, s.backoff.AuthInterval) {
				return
			}
			continue
		}

		failures++
		s.noteFailure(err, failures)
		delay := s.backoff.Next(failures)
		slog.Warn("Reconnecting to feed", "connection", s.cfg.ConnectionID,
			"attempt", failures, "retry_in", delay, "error", err)
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// consume reads frames until the connection breaks. Cancelling the context
// closes the connection so an in-flight read is abandoned promptly.
func (s *Supervisor) consume(ctx context.Context, conn truedata.Conn) error {
	readDone := make(chan struct{})
	defer close(readDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-readDone:
		}
	}()

	for {
		frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleFrame(ctx, frame)
	}
}

// handleFrame enqueues announcement frames. Heartbeats and control envelopes
// are skipped, array frames fan out one item per element, and frames that
// are not JSON are dropped. Decode validation happens in the writer.
func (s *Supervisor) handleFrame(ctx context.Context, frame []byte) {
	var v any
	if err := json.Unmarshal(frame, &v); err != nil {
		slog.Warn("Dropping non-JSON frame", "connection", s.cfg.ConnectionID, "error", err)
		return
	}

	switch t := v.(type) {
	case []any:
		for _, el := range t {
			b, err := json.Marshal(el)
			if err != nil {
				continue
			}
			s.enqueue(ctx, b)
		}
	case map[string]any:
		if truedata.IsHeartbeat(t) {
			return
		}
		if truedata.IsControl(t) {
			slog.Debug("Feed control frame", "connection", s.cfg.ConnectionID)
			return
		}
		s.enqueue(ctx, frame)
	default:
		slog.Warn("Dropping unexpected frame shape", "connection", s.cfg.ConnectionID)
	}
}

func (s *Supervisor) enqueue(ctx context.Context, payload []byte) {
	if err := s.queue.Push(ctx, queue.Item{ConnectionID: s.cfg.ConnectionID, Payload: payload}); err != nil {
		return
	}
	s.mu.Lock()
	s.messages++
	s.mu.Unlock()
}

// Status returns a snapshot of the supervisor.
func (s *Supervisor) Status() WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WorkerStatus{
		ConnectionID: s.cfg.ConnectionID,
		Name:         s.cfg.Name,
		Enabled:      true,
		State:        s.state,
		Running:      s.state != StateStopped,
		AuthFailed:   s.authFailed,
		LastError:    s.lastErr,
		ConnectedAt:  s.connectedAt,
		Messages:     s.messages,
		Failures:     s.failures,
	}
}

func (s *Supervisor) transition(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Supervisor) noteConnected() {
	now := time.Now().UTC()
	s.mu.Lock()
	s.state = StateConnected
	s.authFailed = false
	s.lastErr = ""
	s.connectedAt = &now
	s.failures = 0
	s.mu.Unlock()
}

func (s *Supervisor) noteFailure(err error, failures int) {
	s.mu.Lock()
	s.state = StateReconnecting
	s.lastErr = err.Error()
	s.failures = failures
	s.connectedAt = nil
	s.mu.Unlock()
}

func (s *Supervisor) noteAuthFailure(err error, attempts int) {
	s.mu.Lock()
	s.state = StateReconnecting
	s.authFailed = true
	s.lastErr = err.Error()
	s.failures = attempts
	s.connectedAt = nil
	s.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
