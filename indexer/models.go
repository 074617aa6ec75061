package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed marketplace event. Seq orders records in the
// order they were committed.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"uniqueIndex;not null"`
	Type       string    `gorm:"size:64;index"`
	SaleID     uint64    `gorm:"index"`
	ListingID  uint64    `gorm:"index"`
	Actor      string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// TableName pins the table name independent of naming strategy.
func (EventRecord) TableName() string { return "market_events" }

// AutoMigrate performs all schema migrations for the indexer.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{})
}
