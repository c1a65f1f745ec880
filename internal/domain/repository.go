package domain

import (
	"context"
	"time"
)

// Extractor turns one product URL into a normalized extraction result.
// Implementations perform exactly one throttled fetch per call, never
// retry internally, and never let an error escape the boundary: failures
// come back as a result with Success=false.
type Extractor interface {
	Extract(ctx context.Context, url string) *ExtractionResult
}

// CatalogRepository is one retailer's persistent record set, keyed by
// cigar_id. Implementations are single-writer per underlying file.
type CatalogRepository interface {
	Records() ([]ProductRecord, error)
	Get(cigarID string) (*ProductRecord, error)
	Update(cigarID string, update CatalogUpdate) error
	Insert(record ProductRecord) error
}

// MasterRepository exposes the canonical cross-retailer reference. It is
// read-only from the pipeline's perspective.
type MasterRepository interface {
	Lookup(cigarID string) (*MasterEntry, bool)
}

// LedgerRepository is the append-only observation log. Append is the only
// write operation; rows are never mutated or deleted.
type LedgerRepository interface {
	Append(obs Observation) error
	History(retailer, cigarID string) ([]Observation, error)
	DeriveChanges(retailer, cigarID string) ([]ChangeEvent, error)
	DailySummary(date string) (*DailySummary, error)
	RetailerPerformance(retailer string) (*RetailerPerformance, error)
	StockOuts() ([]StockOut, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
