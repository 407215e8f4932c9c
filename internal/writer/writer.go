// Package writer drains the ingest queue and persists announcements to the
// store in small batches. A single goroutine owns the whole path so writes
// stay in arrival order.
package writer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"corpfeed/internal/announce"
	"corpfeed/internal/queue"
	"corpfeed/internal/store"
)

const (
	defaultBatchSize     = 10
	defaultFlushInterval = time.Second

	insertAttempts   = 3
	insertRetryDelay = 250 * time.Millisecond
)

// LatestCache mirrors the newest announcement per symbol for cheap reads.
// A nil cache disables mirroring.
type LatestCache interface {
	SetLatest(ctx context.Context, symbol string, payload []byte) error
}

// Options tune the writer. Zero values fall back to defaults.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	Cache         LatestCache
}

// Writer consumes queue items, validates them, and writes batches. A batch
// flushes when it is full or when the flush interval elapses, whichever
// comes first.
type Writer struct {
	queue *queue.Queue
	store *store.Store
	cache LatestCache

	batchSize     int
	flushInterval time.Duration

	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	inserted   atomic.Int64
	duplicates atomic.Int64
	invalid    atomic.Int64
	lost       atomic.Int64
	batches    atomic.Int64
}

// Stats is a snapshot of writer counters.
type Stats struct {
	Running    bool  `json:"running"`
	Inserted   int64 `json:"inserted"`
	Duplicates int64 `json:"duplicates_skipped"`
	Invalid    int64 `json:"invalid_dropped"`
	Lost       int64 `json:"rows_lost"`
	Batches    int64 `json:"batches_written"`
}

func New(q *queue.Queue, st *store.Store, opts Options) *Writer {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}
	return &Writer{
		queue:         q,
		store:         st,
		cache:         opts.Cache,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (w *Writer) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.wg.Add(1)
	go w.loop()
	slog.Info("Writer started", "batch_size", w.batchSize, "flush_interval", w.flushInterval)
}

// Stop drains whatever is already queued, flushes the final batch, and waits
// for the writer goroutine to exit.
func (w *Writer) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.done)
	w.wg.Wait()
	slog.Info("Writer stopped", "inserted", w.inserted.Load())
}

// Running reports whether the writer goroutine is active.
func (w *Writer) Running() bool {
	return w.running.Load()
}

// Stats returns a snapshot of the writer counters.
func (w *Writer) Stats() Stats {
	return Stats{
		Running:    w.running.Load(),
		Inserted:   w.inserted.Load(),
		Duplicates: w.duplicates.Load(),
		Invalid:    w.invalid.Load(),
		Lost:       w.lost.Load(),
		Batches:    w.batches.Load(),
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]*announce.Announcement, 0, w.batchSize)

	flush := time.NewTicker(w.flushInterval)
	defer flush.Stop()

	// Metrics
	reported := int64(0)
	metrics := time.NewTicker(10 * time.Second)
	defer metrics.Stop()

	for {
		select {
		case <-w.done:
			batch = w.drain(batch)
			w.flush(batch)
			slog.Info("Writer shutting down", "final_batch", len(batch))
			return

		case it := <-w.queue.Messages():
			if ann := w.decode(it); ann != nil {
				batch = append(batch, ann)
			}
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}

		case <-flush.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}

		case <-metrics.C:
			if cur := w.inserted.Load(); cur > reported {
				slog.Info("Writer progress", "inserted_last_10s", cur-reported, "queue_depth", w.queue.Depth())
				reported = cur
			}
		}
	}
}

// drain empties whatever the queue already holds without waiting for more.
func (w *Writer) drain(batch []*announce.Announcement) []*announce.Announcement {
	for {
		select {
		case it := <-w.queue.Messages():
			if ann := w.decode(it); ann != nil {
				batch = append(batch, ann)
			}
			if len(batch) >= w.batchSize {
				w.flush(batch)
				batch = batch[:0]
			}
		default:
			return batch
		}
	}
}

func (w *Writer) decode(it queue.Item) *announce.Announcement {
	ann, err := announce.Decode(it.Payload)
	if err != nil {
		w.invalid.Add(1)
		slog.Warn("Dropping invalid payload", "connection", it.ConnectionID, "error", err)
		return nil
	}

	received := it.EnqueuedAt
	if received.IsZero() {
		received = time.Now()
	}
	ann.ReceivedAt = received.UTC()
	return ann
}

// flush writes one batch. Announcements already stored, or repeated within
// the batch, are skipped; the first occurrence wins. Insert failures retry a
// few times before the batch is abandoned.
func (w *Writer) flush(batch []*announce.Announcement) {
	if len(batch) == 0 {
		return
	}

	seen := make(map[string]bool, len(batch))
	ids := make([]string, 0, len(batch))
	fresh := make([]announce.Announcement, 0, len(batch))
	for _, ann := range batch {
		if seen[ann.AnnouncementID] {
			w.duplicates.Add(1)
			continue
		}
		seen[ann.AnnouncementID] = true
		ids = append(ids, ann.AnnouncementID)
		fresh = append(fresh, *ann)
	}

	existing, err := w.store.ExistingIDs(ids)
	if err != nil {
		// Insert conflicts still protect us, the pre-check just keeps the
		// duplicate counter honest.
		slog.Warn("Duplicate pre-check failed", "error", err)
	} else if len(existing) > 0 {
		kept := fresh[:0]
		for _, ann := range fresh {
			if _, dup := existing[ann.AnnouncementID]; dup {
				w.duplicates.Add(1)
				continue
			}
			kept = append(kept, ann)
		}
		fresh = kept
	}
	if len(fresh) == 0 {
		return
	}

	batchID := uuid.NewString()
	var inserted int64
	for attempt := 1; ; attempt++ {
		inserted, err = w.store.InsertBatch(fresh)
		if err == nil {
			break
		}
		if attempt >= insertAttempts {
			w.lost.Add(int64(len(fresh)))
			slog.Error("Batch lost", "batch", batchID, "size", len(fresh), "error", err)
			return
		}
		slog.Warn("Batch insert failed, retrying", "batch", batchID, "attempt", attempt, "error", err)
		time.Sleep(insertRetryDelay)
	}

	w.batches.Add(1)
	w.inserted.Add(inserted)
	if skipped := int64(len(fresh)) - inserted; skipped > 0 {
		w.duplicates.Add(skipped)
	}

	w.mirrorLatest(fresh)
}

// mirrorLatest pushes each written announcement to the per-symbol cache.
// Failures are logged and ignored; the store stays the source of truth.
func (w *Writer) mirrorLatest(batch []announce.Announcement) {
	if w.cache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for i := range batch {
		ann := &batch[i]
		symbol := ann.PrimarySymbol()
		if symbol == "" {
			continue
		}
		payload, err := json.Marshal(ann)
		if err != nil {
			continue
		}
		if err := w.cache.SetLatest(ctx, symbol, payload); err != nil {
			slog.Debug("Cache update skipped", "symbol", symbol, "error", err)
		}
	}
}
