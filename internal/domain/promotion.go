package domain

import "time"

// Promotion rule scopes, most specific first.
const (
	ScopeCigar    = "cigar"
	ScopeLine     = "line"
	ScopeBrand    = "brand"
	ScopeSitewide = "sitewide"
)

// PromotionRule is externally authored configuration, read-only to the
// pipeline. EndDate is a YYYY-MM-DD date; absent means the rule never
// expires by date.
type PromotionRule struct {
	Active         bool     `json:"active"`
	Scope          string   `json:"scope"`
	Discount       float64  `json:"discount"` // percent
	Brand          string   `json:"brand,omitempty"`
	Brands         []string `json:"brands,omitempty"`
	Lines          []string `json:"lines,omitempty"`
	ExcludedBrands []string `json:"excluded_brands,omitempty"`
	CigarID        string   `json:"cigar_id,omitempty"`
	Code           string   `json:"code,omitempty"`
	EndDate        string   `json:"end_date,omitempty"`
}

// specificity ranks scopes for best-rule selection: cigar > line > brand > sitewide.
func (r *PromotionRule) Specificity() int {
	switch r.Scope {
	case ScopeCigar:
		return 3
	case ScopeLine:
		return 2
	case ScopeBrand:
		return 1
	default:
		return 0
	}
}

// ExpiresBefore reports whether the rule's end date has passed as of day.
// A missing or malformed end date never expires by date.
func (r *PromotionRule) ExpiresBefore(day time.Time) bool {
	if r.EndDate == "" {
		return false
	}
	end, err := time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return false
	}
	y, m, d := day.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return today.After(end)
}
