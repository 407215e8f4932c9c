package gateway

import (
	"time"

	"corpfeed/internal/announce"
	"corpfeed/internal/ingestor"
	"corpfeed/internal/store"
	"corpfeed/internal/writer"
)

type AnnouncementResponse struct {
	ID                   string  `json:"id"`
	Symbol               string  `json:"symbol"`
	SymbolNSE            string  `json:"symbol_nse,omitempty"`
	SymbolBSE            string  `json:"symbol_bse,omitempty"`
	Exchange             string  `json:"exchange,omitempty"`
	CompanyName          *string `json:"company_name"`
	Headline             string  `json:"headline"`
	Description          string  `json:"description"`
	Category             string  `json:"category,omitempty"`
	AnnouncementDatetime *string `json:"announcement_datetime"`
	ReceivedAt           string  `json:"received_at"`
	AttachmentID         string  `json:"attachment_id,omitempty"`
}

type AnnouncementsResponse struct {
	Announcements []AnnouncementResponse `json:"announcements"`
	Total         int64                  `json:"total"`
	Limit         int                    `json:"limit"`
	Offset        int                    `json:"offset"`
}

type LatestSummary struct {
	ID         string `json:"id"`
	Headline   string `json:"headline"`
	ReceivedAt string `json:"received_at"`
}

type StatusResponse struct {
	Workers            []ingestor.WorkerStatus `json:"workers"`
	QueueDepth         int                     `json:"message_queue_size"`
	QueueDrops         int64                   `json:"queue_drops"`
	TotalAnnouncements int64                   `json:"total_announcements"`
	Latest             *LatestSummary          `json:"latest_announcement,omitempty"`
	Writer             writer.Stats            `json:"writer"`
}

func fromRow(row store.AnnouncementRow) AnnouncementResponse {
	symbol := row.SymbolNSE
	if symbol == "" {
		symbol = row.SymbolBSE
	}
	if symbol == "" {
		symbol = row.Symbol
	}

	return AnnouncementResponse{
		ID:                   row.AnnouncementID,
		Symbol:               symbol,
		SymbolNSE:            row.SymbolNSE,
		SymbolBSE:            row.SymbolBSE,
		Exchange:             row.Exchange,
		CompanyName:          row.CompanyName,
		Headline:             row.Headline,
		Description:          row.Description,
		Category:             row.Category,
		AnnouncementDatetime: formatTime(row.AnnouncementDatetime),
		ReceivedAt:           row.ReceivedAt.Format(time.RFC3339),
		AttachmentID:         row.AttachmentID,
	}
}

func fromAnnouncement(ann *announce.Announcement) AnnouncementResponse {
	return AnnouncementResponse{
		ID:                   ann.AnnouncementID,
		Symbol:               ann.PrimarySymbol(),
		SymbolNSE:            ann.SymbolNSE,
		SymbolBSE:            ann.SymbolBSE,
		Exchange:             ann.Exchange,
		Headline:             ann.Headline,
		Description:          ann.Description,
		Category:             ann.Category,
		AnnouncementDatetime: formatTime(ann.AnnouncementDatetime),
		ReceivedAt:           ann.ReceivedAt.Format(time.RFC3339),
		AttachmentID:         ann.AttachmentID,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
