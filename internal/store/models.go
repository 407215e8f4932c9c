package store

import (
	"time"
)

// Fetch marker outcomes.
const (
	OutcomeFoundData = "found-data"
	OutcomeNoData    = "no-data"
)

// FetchMarker records one backfill attempt for a (symbol, window) pair so
// the fallback path never refetches the same window, whatever the outcome.
// Markers are permanent; only the maintenance tool removes them.
type FetchMarker struct {
	ID          uint      `json:"-" gorm:"primaryKey"`
	Symbol      string    `json:"symbol" gorm:"uniqueIndex:idx_fetch_markers_symbol_window;not null"`
	WindowDays  int       `json:"window_days" gorm:"uniqueIndex:idx_fetch_markers_symbol_window;not null"`
	Outcome     string    `json:"outcome" gorm:"not null"`
	AttemptedAt time.Time `json:"attempted_at"`
}

func (FetchMarker) TableName() string {
	return "fetch_markers"
}

// SymbolRef maps a trading symbol to its company name. The table is
// reference data owned by the symbols loader; the query path only reads it.
type SymbolRef struct {
	ID            uint   `json:"-" gorm:"primaryKey"`
	TradingSymbol string `json:"trading_symbol" gorm:"uniqueIndex:idx_symbols_symbol_exchange;not null"`
	Exchange      string `json:"exchange" gorm:"uniqueIndex:idx_symbols_symbol_exchange;not null"`
	CompanyName   string `json:"company_name"`
}

func (SymbolRef) TableName() string {
	return "symbols"
}

// QueryParams filters and pages the announcement listing.
type QueryParams struct {
	Limit  int
	Offset int
	Search string
	Symbol string
}

// AnnouncementRow is one listing row with the company name joined in.
type AnnouncementRow struct {
	AnnouncementID       string     `gorm:"column:announcement_id"`
	Symbol               string     `gorm:"column:symbol"`
	SymbolNSE            string     `gorm:"column:symbol_nse"`
	SymbolBSE            string     `gorm:"column:symbol_bse"`
	Exchange             string     `gorm:"column:exchange"`
	Headline             string     `gorm:"column:headline"`
	Description          string     `gorm:"column:description"`
	Category             string     `gorm:"column:category"`
	AnnouncementDatetime *time.Time `gorm:"column:announcement_datetime"`
	ReceivedAt           time.Time  `gorm:"column:received_at"`
	AttachmentID         string     `gorm:"column:attachment_id"`
	CompanyName          *string    `gorm:"column:company_name"`
}
