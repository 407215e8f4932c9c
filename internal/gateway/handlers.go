package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"corpfeed/internal/announce"
	"corpfeed/internal/store"
)

// AnnouncementStore is the read surface the handlers need.
type AnnouncementStore interface {
	QueryAnnouncements(p store.QueryParams) ([]store.AnnouncementRow, int64, error)
	GetAnnouncement(id string) (*announce.Announcement, error)
	LatestAnnouncement() (*announce.Announcement, error)
	LatestBySymbol(symbol string) (*announce.Announcement, error)
	TotalAnnouncements() (int64, error)
	Ping() error
}

// LatestCache serves latest-per-symbol lookups ahead of the database.
type LatestCache interface {
	GetLatest(ctx context.Context, symbol string) ([]byte, error)
}

// AttachmentFetcher retrieves attachment documents from the vendor.
type AttachmentFetcher interface {
	Attachment(ctx context.Context, attachmentID string) ([]byte, string, error)
}

// Handler holds the dependencies for HTTP handlers.
type Handler struct {
	store    AnnouncementStore
	pipeline Pipeline
	fallback *Fallback
	cache    LatestCache
	files    AttachmentFetcher
}

// NewHandler creates a new Handler with the given dependencies. cache and
// files may be nil; the corresponding paths degrade gracefully.
func NewHandler(st AnnouncementStore, pipeline Pipeline, fallback *Fallback, cache LatestCache, files AttachmentFetcher) *Handler {
	return &Handler{
		store:    st,
		pipeline: pipeline,
		fallback: fallback,
		cache:    cache,
		files:    files,
	}
}

// GetAnnouncements handles GET /announcements
// Query params: limit, offset, search, symbol. A symbol query for a symbol
// the store has never seen triggers a one-time history backfill first.
func (h *Handler) GetAnnouncements(c *gin.Context) {
	limit := getQueryLimit(c)
	offset := getQueryOffset(c)
	search := strings.TrimSpace(c.Query("search"))
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))

	if symbol != "" && h.fallback != nil {
		if err := h.fallback.MaybeFetch(c.Request.Context(), symbol); err != nil {
			slog.Warn("History backfill failed", "symbol", symbol, "error", err)
		}
	}

	rows, total, err := h.store.QueryAnnouncements(store.QueryParams{
		Limit:  limit,
		Offset: offset,
		Search: search,
		Symbol: symbol,
	})
	if err != nil {
		slog.Error("Failed to query announcements", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := AnnouncementsResponse{
		Announcements: make([]AnnouncementResponse, 0, len(rows)),
		Total:         total,
		Limit:         limit,
		Offset:        offset,
	}
	for _, row := range rows {
		res.Announcements = append(res.Announcements, fromRow(row))
	}

	c.JSON(http.StatusOK, res)
}

// GetStatus handles GET /announcements/status
// Reports worker states, queue depth, writer counters, and the newest row.
func (h *Handler) GetStatus(c *gin.Context) {
	total, err := h.store.TotalAnnouncements()
	if err != nil {
		slog.Error("Failed to count announcements", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	res := StatusResponse{
		Workers:            h.pipeline.Workers(),
		QueueDepth:         h.pipeline.QueueDepth(),
		QueueDrops:         h.pipeline.QueueDrops(),
		TotalAnnouncements: total,
		Writer:             h.pipeline.WriterStats(),
	}

	latest, err := h.store.LatestAnnouncement()
	if err != nil {
		slog.Error("Failed to fetch latest announcement", "error", err)
	} else if latest != nil {
		res.Latest = &LatestSummary{
			ID:         latest.AnnouncementID,
			Headline:   truncate(latest.Headline, 50),
			ReceivedAt: latest.ReceivedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, res)
}

// GetLatest handles GET /announcements/latest/:symbol
// The cache answers when warm; otherwise the store does.
func (h *Handler) GetLatest(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}

	if h.cache != nil {
		data, err := h.cache.GetLatest(c.Request.Context(), symbol)
		if err != nil {
			slog.Error("Cache lookup failed", "symbol", symbol, "error", err)
		} else if data != nil {
			var ann announce.Announcement
			if err := json.Unmarshal(data, &ann); err == nil {
				c.JSON(http.StatusOK, fromAnnouncement(&ann))
				return
			}
		}
	}

	ann, err := h.store.LatestBySymbol(symbol)
	if err != nil {
		slog.Error("Failed to fetch latest announcement", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if ann == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no announcements for symbol", "symbol": symbol})
		return
	}

	c.JSON(http.StatusOK, fromAnnouncement(ann))
}

// GetAttachment handles GET /announcements/:id/attachment/:attachmentId
// The attachment id must belong to the announcement; documents stream
// through from the vendor, nothing is stored locally.
func (h *Handler) GetAttachment(c *gin.Context) {
	id := c.Param("id")
	attachmentID := c.Param("attachmentId")

	ann, err := h.store.GetAnnouncement(id)
	if err != nil {
		slog.Error("Failed to fetch announcement", "announcement", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if ann == nil || ann.AttachmentID == "" || ann.AttachmentID != attachmentID {
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		return
	}

	if h.files == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment retrieval not configured"})
		return
	}

	data, contentType, err := h.files.Attachment(c.Request.Context(), attachmentID)
	if err != nil {
		slog.Error("Attachment fetch failed", "announcement", id, "attachment", attachmentID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch attachment"})
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", attachmentID))
	c.Data(http.StatusOK, contentType, data)
}

// GetHealth handles GET /health
func (h *Handler) GetHealth(c *gin.Context) {
	if err := h.store.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "disconnected",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func getQueryInt(name string, defaultValue int, c *gin.Context) int {
	raw := c.Query(name)

	if raw == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid query parameter, using default", "param", name, "value", raw, "error", err)
		return defaultValue
	}

	return parsed
}

func getQueryLimit(c *gin.Context) int {
	const (
		defaultLimit = 100
		maxLimit     = 1000
	)

	limit := getQueryInt("limit", defaultLimit, c)
	if limit < 1 {
		slog.Warn("invalid query parameter, using default", "param", "limit", "value", limit, "default", defaultLimit)
		return defaultLimit
	}

	if limit > maxLimit {
		slog.Warn("query parameter exceeds max, clamping", "param", "limit", "value", limit, "max", maxLimit)
		return maxLimit
	}

	return limit
}

func getQueryOffset(c *gin.Context) int {
	offset := getQueryInt("offset", 0, c)
	if offset < 0 {
		slog.Warn("invalid query parameter, using default", "param", "offset", "value", offset, "default", 0)
		return 0
	}
	return offset
}
