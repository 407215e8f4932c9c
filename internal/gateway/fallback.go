package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"corpfeed/internal/announce"
	"corpfeed/internal/store"
)

const defaultWindowDays = 7

// fallbackStore is the slice of the store the backfill path needs.
type fallbackStore interface {
	CountBySymbol(symbol string) (int64, error)
	GetFetchMarker(symbol string, windowDays int) (*store.FetchMarker, error)
	PutFetchMarker(m store.FetchMarker) error
	ExistingIDs(ids []string) (map[string]struct{}, error)
	InsertBatch(anns []announce.Announcement) (int64, error)
}

// historyFetcher pulls recent announcements for one symbol from the vendor
// REST API.
type historyFetcher interface {
	CompanyAnnouncements(ctx context.Context, symbol string, from, to time.Time) ([]map[string]any, error)
}

// Fallback backfills history for symbols the live feed has nothing for.
// Each (symbol, window) pair is attempted once; the marker makes the
// decision permanent even when the vendor returns nothing.
type Fallback struct {
	store      fallbackStore
	fetcher    historyFetcher
	windowDays int

	mu sync.Mutex
}

func NewFallback(st fallbackStore, fetcher historyFetcher, windowDays int) *Fallback {
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	return &Fallback{store: st, fetcher: fetcher, windowDays: windowDays}
}

// MaybeFetch backfills the symbol if the store is empty for it and no prior
// attempt is recorded. A vendor error leaves no marker so the next query
// retries.
func (f *Fallback) MaybeFetch(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || f.fetcher == nil {
		return nil
	}

	// One backfill at a time keeps concurrent queries for the same symbol
	// from double-fetching.
	f.mu.Lock()
	defer f.mu.Unlock()

	count, err := f.store.CountBySymbol(symbol)
	if err != nil {
		return fmt.Errorf("failed to count announcements: %w", err)
	}
	if count > 0 {
		return nil
	}

	marker, err := f.store.GetFetchMarker(symbol, f.windowDays)
	if err != nil {
		return fmt.Errorf("failed to check fetch marker: %w", err)
	}
	if marker != nil {
		return nil
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -f.windowDays)
	slog.Info("Backfilling announcement history", "symbol", symbol, "window_days", f.windowDays)

	records, err := f.fetcher.CompanyAnnouncements(ctx, symbol, from, to)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}

	inserted, err := f.ingest(symbol, records)
	if err != nil {
		return err
	}

	outcome := store.OutcomeNoData
	if inserted > 0 {
		outcome = store.OutcomeFoundData
	}
	if err := f.store.PutFetchMarker(store.FetchMarker{
		Symbol:      symbol,
		WindowDays:  f.windowDays,
		Outcome:     outcome,
		AttemptedAt: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("failed to record fetch marker: %w", err)
	}

	slog.Info("Backfill complete", "symbol", symbol, "records", len(records), "inserted", inserted)
	return nil
}

// ingest converts history records and persists the ones not already stored.
func (f *Fallback) ingest(symbol string, records []map[string]any) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(records))
	ids := make([]string, 0, len(records))
	batch := make([]announce.Announcement, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		ann, err := announce.FromMap(rec, raw)
		if err != nil {
			slog.Warn("Skipping invalid history record", "symbol", symbol, "error", err)
			continue
		}
		if ann.PrimarySymbol() == "" {
			ann.Symbol = symbol
		}
		ann.ReceivedAt = now
		if seen[ann.AnnouncementID] {
			continue
		}
		seen[ann.AnnouncementID] = true
		ids = append(ids, ann.AnnouncementID)
		batch = append(batch, *ann)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	existing, err := f.store.ExistingIDs(ids)
	if err == nil && len(existing) > 0 {
		kept := batch[:0]
		for _, ann := range batch {
			if _, dup := existing[ann.AnnouncementID]; dup {
				continue
			}
			kept = append(kept, ann)
		}
		batch = kept
	}
	if len(batch) == 0 {
		return 0, nil
	}

	inserted, err := f.store.InsertBatch(batch)
	if err != nil {
		return 0, fmt.Errorf("failed to persist history: %w", err)
	}
	return inserted, nil
}
