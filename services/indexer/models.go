package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one ledger event as received from the node's emitter chain.
// Attributes are stored as a JSON object keyed the same way the websocket
// stream presents them.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type       string    `gorm:"index"`
	Attributes string
	RecordedAt time.Time `gorm:"index"`
}

// SaleRecord is a denormalised row for every settled purchase, primary or
// secondary, so volume queries do not need to re-parse event payloads.
type SaleRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Question   string    `gorm:"index"`
	Key        string    `gorm:"index"`
	Buyer      string    `gorm:"index"`
	Seller     string    `gorm:"index"`
	Price      string
	Secondary  bool
	RecordedAt time.Time `gorm:"index"`
}

// AutoMigrate applies the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&EventRecord{},
		&SaleRecord{},
	)
}
