package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lendchain/core/events"
	"lendchain/core/types"
)

const (
	// DefaultLimit caps List when the caller passes no limit.
	DefaultLimit = 100
	// MaxLimit is the largest page List returns.
	MaxLimit = 1000
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("indexer: store closed")

// Record is one committed event row.
type Record struct {
	Sequence      uint64    `gorm:"primaryKey;autoIncrement" json:"sequence"`
	Type          string    `gorm:"index;not null" json:"type"`
	Attributes    string    `gorm:"type:text;not null" json:"-"`
	TransactionID uint64    `gorm:"index" json:"transactionId,omitempty"`
	RecordedAt    time.Time `gorm:"index;not null" json:"recordedAt"`
}

// TableName pins the table name.
func (Record) TableName() string { return "events" }

// Decoded returns the stored attribute map.
func (r Record) Decoded() (map[string]string, error) {
	attrs := make(map[string]string)
	if strings.TrimSpace(r.Attributes) == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, fmt.Errorf("indexer: decode attributes of %d: %w", r.Sequence, err)
	}
	return attrs, nil
}

// Store persists committed events into a SQL read model.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// Dialect picks the gorm dialector for dsn. postgres:// and postgresql://
// URLs use PostgreSQL, everything else is a SQLite path or URI.
func Dialect(dsn string) gorm.Dialector {
	trimmed := strings.TrimSpace(dsn)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(trimmed)
	}
	return sqlite.Open(trimmed)
}

// Open connects to dsn and migrates the events table.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("indexer: dsn required")
	}
	db, err := gorm.Open(Dialect(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: nil database")
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Store{
		db:     db,
		logger: slog.Default().With(slog.String("component", "indexer")),
		nowFn:  time.Now,
	}, nil
}

// SetNowFunc overrides the recording clock.
func (s *Store) SetNowFunc(now func() time.Time) {
	if now != nil {
		s.nowFn = now
	}
}

// Append stores evt and returns the persisted row.
func (s *Store) Append(ctx context.Context, evt *types.Event) (Record, error) {
	if s == nil || s.db == nil {
		return Record{}, ErrClosed
	}
	if evt == nil || strings.TrimSpace(evt.Type) == "" {
		return Record{}, fmt.Errorf("indexer: event type required")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Type:       evt.Type,
		Attributes: string(raw),
		RecordedAt: s.nowFn().UTC(),
	}
	if id, err := strconv.ParseUint(attrs["transactionId"], 10, 64); err == nil {
		rec.TransactionID = id
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return Record{}, fmt.Errorf("indexer: insert: %w", err)
	}
	return rec, nil
}

// Emit implements events.Emitter. Committed events are never rejected, so
// insert failures are logged and dropped.
func (s *Store) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok {
		return
	}
	if _, err := s.Append(context.Background(), payload.Event()); err != nil {
		s.logger.Error("index event failed", slog.String("type", evt.EventType()), slog.Any("error", err))
	}
}

// Query filters List.
type Query struct {
	After         uint64
	Limit         int
	Type          string
	TransactionID uint64
}

// List returns events with sequence greater than q.After in ascending order.
func (s *Store) List(ctx context.Context, q Query) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	tx := s.db.WithContext(ctx).Model(&Record{}).Where("sequence > ?", q.After)
	if t := strings.TrimSpace(q.Type); t != "" {
		tx = tx.Where("type = ?", t)
	}
	if q.TransactionID != 0 {
		tx = tx.Where("transaction_id = ?", q.TransactionID)
	}
	var out []Record
	if err := tx.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("indexer: list: %w", err)
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.db = nil
	return sqlDB.Close()
}
