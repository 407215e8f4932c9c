package store

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"corpfeed/internal/announce"
)

type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// AutoMigrate automatically migrates the database schema using GORM models.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&announce.Announcement{}, &FetchMarker{}, &SymbolRef{}); err != nil {
		return fmt.Errorf("failed to auto migrate schema: %w", err)
	}
	return nil
}

// ExistingIDs returns which of the given announcement ids are already stored.
func (s *Store) ExistingIDs(ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	var found []string
	if err := s.db.Model(&announce.Announcement{}).
		Where("announcement_id IN ?", ids).
		Pluck("announcement_id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to check existing ids: %w", err)
	}

	for _, id := range found {
		existing[id] = struct{}{}
	}
	return existing, nil
}

// InsertBatch writes the announcements in one statement. Conflicting ids are
// skipped, never updated. Returns the number of rows actually inserted.
func (s *Store) InsertBatch(anns []announce.Announcement) (int64, error) {
	if len(anns) == 0 {
		return 0, nil
	}

	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&anns)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to insert announcements: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// QueryAnnouncements lists announcements newest first, with the company name
// joined from the symbols table. Search matches case-insensitively over
// tickers, headline and company name.
func (s *Store) QueryAnnouncements(p QueryParams) ([]AnnouncementRow, int64, error) {
	base := s.listQuery(p)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count announcements: %w", err)
	}

	var rows []AnnouncementRow
	err := base.Session(&gorm.Session{}).
		Select("a.*, COALESCE(sn.company_name, sb.company_name) AS company_name").
		Order("a.received_at DESC, a.announcement_datetime DESC, a.announcement_id").
		Limit(p.Limit).Offset(p.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query announcements: %w", err)
	}
	return rows, total, nil
}

func (s *Store) listQuery(p QueryParams) *gorm.DB {
	q := s.db.Table("corporate_announcements AS a").
		Joins("LEFT JOIN symbols sn ON sn.trading_symbol = a.symbol_nse AND sn.exchange = 'NSE'").
		Joins("LEFT JOIN symbols sb ON sb.trading_symbol = a.symbol_bse AND sb.exchange = 'BSE'")

	if p.Symbol != "" {
		sym := strings.ToUpper(p.Symbol)
		q = q.Where("UPPER(COALESCE(a.symbol_nse,'')) = ? OR UPPER(COALESCE(a.symbol_bse,'')) = ? OR UPPER(COALESCE(a.symbol,'')) = ?", sym, sym, sym)
	}
	if p.Search != "" {
		like := "%" + strings.ToUpper(p.Search) + "%"
		q = q.Where("UPPER(COALESCE(a.headline,'')) LIKE ? OR UPPER(COALESCE(a.symbol_nse,'')) LIKE ? OR UPPER(COALESCE(a.symbol_bse,'')) LIKE ? OR UPPER(COALESCE(sn.company_name,'')) LIKE ? OR UPPER(COALESCE(sb.company_name,'')) LIKE ?", like, like, like, like, like)
	}
	return q
}

// CountBySymbol counts stored announcements for a ticker across all symbol
// columns.
func (s *Store) CountBySymbol(symbol string) (int64, error) {
	sym := strings.ToUpper(symbol)
	var count int64
	if err := s.db.Model(&announce.Announcement{}).
		Where("UPPER(COALESCE(symbol_nse,'')) = ? OR UPPER(COALESCE(symbol_bse,'')) = ? OR UPPER(COALESCE(symbol,'')) = ?", sym, sym, sym).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count announcements for symbol %s: %w", symbol, err)
	}
	return count, nil
}

func (s *Store) TotalAnnouncements() (int64, error) {
	var count int64
	if err := s.db.Model(&announce.Announcement{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count announcements: %w", err)
	}
	return count, nil
}

// GetAnnouncement retrieves an announcement by id, or nil when unknown.
func (s *Store) GetAnnouncement(id string) (*announce.Announcement, error) {
	var a announce.Announcement
	if err := s.db.Where("announcement_id = ?", id).First(&a).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return &a, nil
}

// LatestAnnouncement returns the most recently received announcement, or nil
// when the store is empty.
func (s *Store) LatestAnnouncement() (*announce.Announcement, error) {
	var a announce.Announcement
	err := s.db.Order("received_at DESC, announcement_datetime DESC").First(&a).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest announcement: %w", err)
	}
	return &a, nil
}

// LatestBySymbol returns the most recent announcement for a ticker, or nil
// when none is stored.
func (s *Store) LatestBySymbol(symbol string) (*announce.Announcement, error) {
	sym := strings.ToUpper(symbol)
	var a announce.Announcement
	err := s.db.
		Where("UPPER(COALESCE(symbol_nse,'')) = ? OR UPPER(COALESCE(symbol_bse,'')) = ? OR UPPER(COALESCE(symbol,'')) = ?", sym, sym, sym).
		Order("received_at DESC, announcement_datetime DESC").
		First(&a).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest announcement for symbol %s: %w", symbol, err)
	}
	return &a, nil
}

// GetFetchMarker returns the marker for a (symbol, window) pair, or nil when
// no backfill was attempted yet.
func (s *Store) GetFetchMarker(symbol string, windowDays int) (*FetchMarker, error) {
	var m FetchMarker
	err := s.db.Where("symbol = ? AND window_days = ?", strings.ToUpper(symbol), windowDays).First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get fetch marker: %w", err)
	}
	return &m, nil
}

// PutFetchMarker records a backfill attempt. A replay for the same pair
// updates the outcome and timestamp of the existing row.
func (s *Store) PutFetchMarker(m FetchMarker) error {
	m.Symbol = strings.ToUpper(m.Symbol)
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "window_days"}},
		DoUpdates: clause.AssignmentColumns([]string{"outcome", "attempted_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("failed to put fetch marker: %w", err)
	}
	return nil
}
