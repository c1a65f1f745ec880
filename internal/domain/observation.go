package domain

import "time"

// Observation is one immutable row of the historical ledger. Descriptive
// fields are denormalized from the catalog record for query convenience.
type Observation struct {
	Timestamp time.Time `json:"timestamp"`
	CigarID   string    `json:"cigarId"`
	Retailer  string    `json:"retailer"`
	Price     float64   `json:"price"`
	InStock   bool      `json:"inStock"`
	BoxQty    int       `json:"boxQty,omitempty"`
	Brand     string    `json:"brand,omitempty"`
	Line      string    `json:"line,omitempty"`
	Wrapper   string    `json:"wrapper,omitempty"`
	Vitola    string    `json:"vitola,omitempty"`
	Size      string    `json:"size,omitempty"`
	URL       string    `json:"url,omitempty"`
}

// Change event types derived from consecutive observations.
const (
	ChangePrice = "price_change"
	ChangeStock = "stock_change"
	ChangeNew   = "new"
)

// ChangeEvent is derived by diffing the newest observation against the
// immediately preceding one for the same (retailer, cigar_id) pair. It is
// never persisted at write time; re-deriving over the same history always
// yields the same events.
type ChangeEvent struct {
	Type     string  `json:"type"`
	Retailer string  `json:"retailer"`
	CigarID  string  `json:"cigarId"`
	Field    string  `json:"field"`
	OldValue string  `json:"oldValue,omitempty"`
	NewValue string  `json:"newValue"`
	Delta    float64 `json:"delta,omitempty"` // price changes only
}

// DailySummary aggregates one day of ledger activity.
type DailySummary struct {
	Date         string  `json:"date"`
	Observations int     `json:"observations"`
	Retailers    int     `json:"retailers"`
	Products     int     `json:"products"`
	InStock      int     `json:"inStock"`
	OutOfStock   int     `json:"outOfStock"`
	AvgPrice     float64 `json:"avgPrice"`
}

// RetailerPerformance summarizes one retailer's ledger history.
type RetailerPerformance struct {
	Retailer       string    `json:"retailer"`
	Observations   int       `json:"observations"`
	Products       int       `json:"products"`
	InStockRatio   float64   `json:"inStockRatio"`
	AvgPrice       float64   `json:"avgPrice"`
	FirstObserved  time.Time `json:"firstObserved"`
	LatestObserved time.Time `json:"latestObserved"`
}

// StockOut reports a product whose most recent observation is out of stock.
type StockOut struct {
	Retailer  string    `json:"retailer"`
	CigarID   string    `json:"cigarId"`
	Since     time.Time `json:"since"`
	LastPrice float64   `json:"lastPrice"`
}
