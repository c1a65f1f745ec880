package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProductRecord is one retailer's view of a single purchasable unit.
// CigarID is the composite key (brand|line|vitola|size|wrapper|packaging)
// shared across retailers; all other fields are retailer-observed.
type ProductRecord struct {
	CigarID     string    `json:"cigarId"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Brand       string    `json:"brand"`
	Line        string    `json:"line"`
	Wrapper     string    `json:"wrapper"`
	Vitola      string    `json:"vitola"`
	Size        string    `json:"size"`
	BoxQty      int       `json:"boxQty"`
	Price       string    `json:"price"` // two-decimal string; legacy files may be blank
	InStock     bool      `json:"inStock"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`

	// LowConfidenceWrapper marks a wrapper value that could not be matched
	// against the canonical alias table and was kept as-is.
	LowConfidenceWrapper bool `json:"lowConfidenceWrapper,omitempty"`
}

// PriceValue parses the record price. ok is false when the price is
// missing or not numeric.
func (r *ProductRecord) PriceValue() (float64, bool) {
	s := strings.TrimSpace(r.Price)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Validate checks the ProductRecord invariants enforced on insert.
func (r *ProductRecord) Validate() error {
	if strings.TrimSpace(r.CigarID) == "" {
		return fmt.Errorf("%w: empty cigar_id", ErrInvalidRecord)
	}
	if s := strings.TrimSpace(r.Price); s != "" {
		v, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
		if err != nil {
			return fmt.Errorf("%w: price %q is not numeric", ErrInvalidRecord, r.Price)
		}
		if v < 0 {
			return fmt.Errorf("%w: negative price %q", ErrInvalidRecord, r.Price)
		}
	}
	if r.BoxQty < 0 {
		return fmt.Errorf("%w: negative box_qty %d", ErrInvalidRecord, r.BoxQty)
	}
	return nil
}

// FormatPrice renders a price the way catalog files store it.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ExtractionResult is the normalized outcome of one page fetch.
// A failed result (Success=false) must never overwrite prior price or
// stock on a ProductRecord; only the attempt timestamp advances.
type ExtractionResult struct {
	Price           float64 `json:"price"`
	OriginalPrice   float64 `json:"originalPrice,omitempty"` // 0 = no pre-discount reference found
	DiscountPercent float64 `json:"discountPercent,omitempty"`
	BoxQuantity     int     `json:"boxQuantity,omitempty"` // 0 = unknown
	InStock         bool    `json:"inStock"`
	Title           string  `json:"title,omitempty"`
	Success         bool    `json:"success"`
	Error           string  `json:"error,omitempty"`
}

// Failed builds a failed result carrying the error description.
func Failed(err error) *ExtractionResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &ExtractionResult{Success: false, Error: msg}
}

// CatalogUpdate carries the fields one update run is allowed to change
// on an existing record. Nil pointers leave the stored value untouched.
// The descriptive strings fill blanks only: a non-empty stored value is
// never overwritten by them.
type CatalogUpdate struct {
	Price   *float64
	InStock *bool
	BoxQty  *int

	Title   string
	Brand   string
	Line    string
	Wrapper string
	Vitola  string
	Size    string

	Attempt time.Time // always advances, even for failed extractions
}

// UpdateFromResult translates an ExtractionResult into a CatalogUpdate.
// Failed results only advance the attempt timestamp.
func UpdateFromResult(res *ExtractionResult, at time.Time) CatalogUpdate {
	u := CatalogUpdate{Attempt: at}
	if res == nil || !res.Success {
		return u
	}
	price := res.Price
	inStock := res.InStock
	u.Price = &price
	u.InStock = &inStock
	if res.BoxQuantity > 0 {
		qty := res.BoxQuantity
		u.BoxQty = &qty
	}
	return u
}

// MasterEntry is the canonical cross-retailer description of one SKU.
// Authoritative only for filling blanks on retailer records, never for
// overwriting retailer-observed values.
type MasterEntry struct {
	CigarID      string
	Brand        string
	Line         string
	Wrapper      string
	WrapperAlias string
	Vitola       string
	Length       string
	RingGauge    string
	BoxQuantity  int
}

// Size renders the canonical LengthxRingGauge size string, or "" when
// either dimension is unknown.
func (m *MasterEntry) SizeString() string {
	if m.Length == "" || m.RingGauge == "" {
		return ""
	}
	return m.Length + "x" + m.RingGauge
}
