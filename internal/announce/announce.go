package announce

import (
	"time"
)

// Announcement is a single corporate disclosure normalized from the vendor
// feed. AnnouncementID is the vendor's identity and never changes once stored.
type Announcement struct {
	AnnouncementID       string     `json:"announcement_id" gorm:"column:announcement_id;primaryKey"`
	Symbol               string     `json:"symbol,omitempty" gorm:"index"`
	SymbolNSE            string     `json:"symbol_nse,omitempty" gorm:"column:symbol_nse"`
	SymbolBSE            string     `json:"symbol_bse,omitempty" gorm:"column:symbol_bse"`
	Exchange             string     `json:"exchange,omitempty"`
	Headline             string     `json:"headline"`
	Description          string     `json:"description"`
	Category             string     `json:"category,omitempty"`
	AnnouncementDatetime *time.Time `json:"announcement_datetime" gorm:"index:idx_announcements_event_time,sort:desc"`
	ReceivedAt           time.Time  `json:"received_at" gorm:"index:idx_announcements_received_at,sort:desc"`
	AttachmentID         string     `json:"attachment_id,omitempty" gorm:"column:attachment_id"`
	RawPayload           string     `json:"-" gorm:"type:text"`
}

func (Announcement) TableName() string {
	return "corporate_announcements"
}

// PrimarySymbol returns the best available ticker for the announcement,
// preferring the NSE symbol, then BSE, then the unrouted symbol.
func (a Announcement) PrimarySymbol() string {
	if a.SymbolNSE != "" {
		return a.SymbolNSE
	}
	if a.SymbolBSE != "" {
		return a.SymbolBSE
	}
	return a.Symbol
}
