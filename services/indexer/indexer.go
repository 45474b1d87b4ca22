package indexer

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"qamarket/core/events"
)

// Indexer persists the node's event stream into a relational store so
// explorers and dashboards can query history without replaying the ledger.
// It implements events.Emitter and is wired into the node's emitter chain.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// Open connects to a sqlite-compatible DSN and applies the schema.
func Open(dsn string, logger *slog.Logger) (*Indexer, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return New(db, logger)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, logger: logger, nowFn: time.Now}, nil
}

// SetNowFunc overrides the clock. Used in tests.
func (ix *Indexer) SetNowFunc(now func() time.Time) {
	if now != nil {
		ix.nowFn = now
	}
}

// Emit implements events.Emitter. Persistence failures are logged and
// swallowed: the indexer is an observer and must never reject a committed
// instruction.
func (ix *Indexer) Emit(evt events.Event) {
	if ix == nil || evt == nil {
		return
	}
	now := ix.nowFn()
	record := EventRecord{
		ID:         uuid.New(),
		Type:       evt.EventType(),
		RecordedAt: now,
	}
	var attrs map[string]string
	if raw, ok := events.RawEvent(evt); ok {
		record.Type = raw.Type
		attrs = raw.Attributes
		encoded, err := json.Marshal(raw.Attributes)
		if err == nil {
			record.Attributes = string(encoded)
		}
	}
	if err := ix.db.Create(&record).Error; err != nil {
		ix.logger.Error("event index write failed", "type", record.Type, "error", err)
		return
	}
	ix.indexSale(record.Type, attrs, now)
}

func (ix *Indexer) indexSale(eventType string, attrs map[string]string, now time.Time) {
	if attrs == nil {
		return
	}
	var sale SaleRecord
	switch eventType {
	case events.TypeKeyMinted:
		sale = SaleRecord{
			Question:  attrs["question"],
			Key:       attrs["key"],
			Buyer:     attrs["owner"],
			Price:     attrs["price"],
			Secondary: false,
		}
	case events.TypeKeySold:
		sale = SaleRecord{
			Question:  attrs["question"],
			Key:       attrs["key"],
			Buyer:     attrs["buyer"],
			Seller:    attrs["seller"],
			Price:     attrs["price"],
			Secondary: true,
		}
	default:
		return
	}
	sale.ID = uuid.New()
	sale.RecordedAt = now
	if err := ix.db.Create(&sale).Error; err != nil {
		ix.logger.Error("sale index write failed", "type", eventType, "error", err)
	}
}

// RecentEvents returns the newest events, most recent first.
func (ix *Indexer) RecentEvents(limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []EventRecord
	err := ix.db.Order("recorded_at DESC, id").Limit(limit).Find(&records).Error
	return records, err
}

// EventsByType returns the newest events of one type, most recent first.
func (ix *Indexer) EventsByType(eventType string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []EventRecord
	err := ix.db.Where("type = ?", eventType).Order("recorded_at DESC, id").Limit(limit).Find(&records).Error
	return records, err
}

// SalesForQuestion returns every settled purchase against one question, in
// settlement order.
func (ix *Indexer) SalesForQuestion(question string) ([]SaleRecord, error) {
	var sales []SaleRecord
	err := ix.db.Where("question = ?", question).Order("recorded_at, id").Find(&sales).Error
	return sales, err
}

// SaleCount reports settled purchases, split by market leg.
func (ix *Indexer) SaleCount(secondary bool) (int64, error) {
	var count int64
	err := ix.db.Model(&SaleRecord{}).Where("secondary = ?", secondary).Count(&count).Error
	return count, err
}

// Close releases the underlying database handle.
func (ix *Indexer) Close() error {
	if ix == nil || ix.db == nil {
		return nil
	}
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
