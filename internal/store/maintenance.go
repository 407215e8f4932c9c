package store

import (
	"fmt"
	"strings"

	"gorm.io/gorm/clause"

	"corpfeed/internal/announce"
)

// Maintenance operations behind the cleanup binary. They apply the same
// blank and duplicate rules the ingest path enforces, to rows that predate
// those checks.

// blankRowPredicate matches rows whose headline and description are both
// placeholder values. Must stay in sync with announce.IsBlank.
const blankRowPredicate = "LOWER(TRIM(COALESCE(headline,''))) IN ('', '-', 'null', 'none') AND LOWER(TRIM(COALESCE(description,''))) IN ('', '-', 'null', 'none')"

// duplicateKeepQuery selects the survivor of each (headline, symbol) group:
// the earliest received row, with the id as tiebreak.
const duplicateKeepQuery = `SELECT announcement_id FROM (
	SELECT announcement_id,
	       ROW_NUMBER() OVER (
	           PARTITION BY headline, COALESCE(symbol_nse, symbol_bse, symbol, '')
	           ORDER BY received_at ASC, announcement_id ASC
	       ) AS rn
	FROM corporate_announcements
) ranked WHERE rn = 1`

func (s *Store) CountBlankRows() (int64, error) {
	var count int64
	if err := s.db.Model(&announce.Announcement{}).Where(blankRowPredicate).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count blank rows: %w", err)
	}
	return count, nil
}

func (s *Store) DeleteBlankRows() (int64, error) {
	res := s.db.Where(blankRowPredicate).Delete(&announce.Announcement{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete blank rows: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) CountContentDuplicates() (int64, error) {
	var count int64
	err := s.db.Model(&announce.Announcement{}).
		Where("announcement_id NOT IN (" + duplicateKeepQuery + ")").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count duplicates: %w", err)
	}
	return count, nil
}

// DeduplicateByContent removes rows that repeat another row's headline and
// symbol under a different id, keeping the earliest.
func (s *Store) DeduplicateByContent() (int64, error) {
	res := s.db.Where("announcement_id NOT IN (" + duplicateKeepQuery + ")").Delete(&announce.Announcement{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to deduplicate announcements: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CountFetchMarkers reports how many backfill markers exist.
func (s *Store) CountFetchMarkers() (int64, error) {
	var count int64
	if err := s.db.Model(&FetchMarker{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count fetch markers: %w", err)
	}
	return count, nil
}

// ClearFetchMarkers deletes all fetch markers. This is the one sanctioned
// way to make the fallback path retry a window.
func (s *Store) ClearFetchMarkers() (int64, error) {
	res := s.db.Exec("DELETE FROM fetch_markers")
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clear fetch markers: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UpsertSymbols bulk-loads symbol reference rows, updating company names on
// conflict.
func (s *Store) UpsertSymbols(refs []SymbolRef) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}

	for i := range refs {
		refs[i].TradingSymbol = strings.ToUpper(strings.TrimSpace(refs[i].TradingSymbol))
		refs[i].Exchange = strings.ToUpper(strings.TrimSpace(refs[i].Exchange))
	}

	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trading_symbol"}, {Name: "exchange"}},
		DoUpdates: clause.AssignmentColumns([]string{"company_name"}),
	}).Create(&refs)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to upsert symbols: %w", res.Error)
	}
	return res.RowsAffected, nil
}
