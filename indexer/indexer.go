package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nhbmarket/core/events"
	"nhbmarket/observability"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Indexer persists committed events into a relational table so they can be
// queried after the fact. It is a best-effort sink: write failures are logged
// and counted but never surface to the emitting operation.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time

	mu  sync.Mutex
	seq uint64
}

// Open dials the configured driver and migrates the schema.
func Open(driver, dsn string, log *slog.Logger) (*Indexer, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("indexer: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db, log)
}

// New wraps an open database handle.
func New(db *gorm.DB, log *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("indexer: nil database")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	var last EventRecord
	res := db.Order("seq desc").Limit(1).Find(&last)
	if res.Error != nil {
		return nil, fmt.Errorf("indexer: load sequence: %w", res.Error)
	}
	return &Indexer{
		db:     db,
		logger: log.With("component", "indexer"),
		nowFn:  time.Now,
		seq:    last.Seq,
	}, nil
}

// Emit implements events.Emitter.
func (ix *Indexer) Emit(evt events.Event) {
	if ix == nil || evt == nil {
		return
	}
	canonical := events.Canonical(evt)
	if canonical == nil {
		return
	}
	attrs, err := json.Marshal(canonical.Attributes)
	if err != nil {
		ix.drop(canonical.Type, err)
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	record := EventRecord{
		ID:         uuid.New(),
		Seq:        ix.seq + 1,
		Type:       canonical.Type,
		SaleID:     parseID(canonical.Attributes["saleId"]),
		ListingID:  parseID(canonical.Attributes["listingId"]),
		Actor:      actorOf(canonical.Attributes),
		Attributes: string(attrs),
		CreatedAt:  ix.nowFn().UTC(),
	}
	if err := ix.db.Create(&record).Error; err != nil {
		ix.drop(canonical.Type, err)
		return
	}
	ix.seq = record.Seq
}

func (ix *Indexer) drop(eventType string, err error) {
	ix.logger.Warn("event not indexed", "event", eventType, "error", err)
	observability.Events().RecordDropped("indexer")
}

func parseID(raw string) uint64 {
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func actorOf(attrs map[string]string) string {
	for _, key := range []string{"buyer", "seller", "from", "creator", "owner"} {
		if v := attrs[key]; v != "" {
			return v
		}
	}
	return ""
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Type      string
	SaleID    uint64
	ListingID uint64
	Actor     string
	AfterSeq  uint64
	Limit     int
}

// Record is the decoded form of an indexed event.
type Record struct {
	Seq        uint64            `json:"seq"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// List returns indexed events matching filter in commit order.
func (ix *Indexer) List(ctx context.Context, filter Filter) ([]Record, error) {
	if ix == nil {
		return nil, errors.New("indexer: not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	query := ix.db.WithContext(ctx).Model(&EventRecord{}).Where("seq > ?", filter.AfterSeq)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.SaleID != 0 {
		query = query.Where("sale_id = ?", filter.SaleID)
	}
	if filter.ListingID != 0 {
		query = query.Where("listing_id = ?", filter.ListingID)
	}
	if filter.Actor != "" {
		query = query.Where("actor = ?", filter.Actor)
	}
	var rows []EventRecord
	if err := query.Order("seq asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("indexer: list: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		attrs := map[string]string{}
		if row.Attributes != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &attrs); err != nil {
				return nil, fmt.Errorf("indexer: decode event %d: %w", row.Seq, err)
			}
		}
		out = append(out, Record{
			Seq:        row.Seq,
			ID:         row.ID.String(),
			Type:       row.Type,
			Attributes: attrs,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	if ix == nil {
		return nil
	}
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
