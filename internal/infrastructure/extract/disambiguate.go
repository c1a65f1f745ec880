package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

// Token patterns shared by the disambiguation steps.
var (
	priceTokenRegex = regexp.MustCompile(`\$?\s*([0-9]{1,4}(?:,[0-9]{3})*(?:\.[0-9]{1,2})?)`)
	dollarRegex     = regexp.MustCompile(`\$\s*([0-9]{1,4}(?:,[0-9]{3})*(?:\.[0-9]{1,2})?)`)
	qtyWordingRegex = regexp.MustCompile(`(?i)\b(?:box\s+of\s+(\d+)|(\d+)\s*(?:ct|count)\b|\((\d+)\))`)
	urlQtyRegex     = regexp.MustCompile(`(?i)(?:box[-_]?of[-_]?|[-_])(\d{1,3})(?:ct)?(?:[-_/.]|$)`)
	wasLabelRegex   = regexp.MustCompile(`(?i)\b(?:msrp|was|retail|reg(?:ular)?\.?\s*price|list\s*price)\b`)
)

// Out-of-stock wording always wins over in-stock wording found elsewhere
// on the same page.
var negativeStockPhrases = []string{
	"out of stock", "sold out", "notify me", "unavailable",
	"not available", "back order", "backordered", "email when available",
}

var positiveStockPhrases = []string{"in stock", "ready to ship"}

// priceCandidate is one currency-like token found on the page.
type priceCandidate struct {
	value    float64
	original bool   // structural strikethrough or explicit MSRP/was labeling
	context  string // surrounding text, used for quantity adjacency
}

// disambiguate reduces the page's raw signals into one normalized
// (price, quantity, stock) result following a fixed ladder:
// collect → split original/current → plausible-range filter →
// quantity-adjacency preference → discount computation.
func disambiguate(doc *goquery.Document, pageURL string, profile LocatorProfile) (*domain.ExtractionResult, error) {
	root := doc.Selection
	if profile.ProductRegion != "" {
		if region := doc.Find(profile.ProductRegion); region.Length() > 0 {
			root = region.First()
		}
	}

	candidates := collectCandidates(root, profile)

	var currents, originals []priceCandidate
	for _, c := range candidates {
		if !profile.PriceRange.Contains(c.value) {
			continue
		}
		if c.original {
			originals = append(originals, c)
		} else {
			currents = append(currents, c)
		}
	}

	if len(currents) == 0 {
		return nil, fmt.Errorf("%w: no price in plausible range %.0f-%.0f",
			domain.ErrInsufficientData, profile.PriceRange.Min, profile.PriceRange.Max)
	}

	chosen := selectCurrent(currents)

	res := &domain.ExtractionResult{
		Price:   chosen.value,
		Success: true,
	}

	// Largest original-marked candidate above the current price yields the
	// displayed discount, clamped to (0,100).
	for _, o := range originals {
		if o.value > chosen.value && o.value > res.OriginalPrice {
			res.OriginalPrice = o.value
		}
	}
	if res.OriginalPrice > 0 {
		res.DiscountPercent = (res.OriginalPrice - chosen.value) / res.OriginalPrice * 100
		if res.DiscountPercent <= 0 || res.DiscountPercent >= 100 {
			res.OriginalPrice = 0
			res.DiscountPercent = 0
		}
	}

	res.InStock = resolveStock(doc, profile)
	res.BoxQuantity = resolveBoxQuantity(doc, pageURL, profile)
	res.Title = extractTitle(doc, profile)

	return res, nil
}

// collectCandidates gathers currency-like tokens scoped to the product
// region, splitting marked-as-original tokens from current ones.
func collectCandidates(root *goquery.Selection, profile LocatorProfile) []priceCandidate {
	var out []priceCandidate
	seen := make(map[string]struct{})

	add := func(sel *goquery.Selection, original bool) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}
		for _, m := range priceTokenRegex.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil || v <= 0 {
				continue
			}
			key := fmt.Sprintf("%.2f|%v|%s", v, original, text)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, priceCandidate{value: v, original: original, context: contextOf(sel, text)})
		}
	}

	// Structural strikethrough always means "original price".
	root.Find("del, s, strike").Each(func(_ int, sel *goquery.Selection) {
		add(sel, true)
	})
	for _, selector := range profile.OriginalSelectors {
		root.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			add(sel, true)
		})
	}

	for _, selector := range profile.PriceSelectors {
		root.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			// Skip tokens nested inside a strikethrough element.
			if sel.Closest("del, s, strike").Length() > 0 {
				return
			}
			// Explicit MSRP/was labeling marks an original even without
			// structural strikethrough.
			add(sel, wasLabelRegex.MatchString(contextOf(sel, sel.Text())))
		})
	}

	// Fallback: dollar-prefixed tokens anywhere in the region. Only used
	// when selectors produced nothing current.
	hasCurrent := false
	for _, c := range out {
		if !c.original {
			hasCurrent = true
			break
		}
	}
	if !hasCurrent {
		text := root.Text()
		for _, m := range dollarRegex.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
			if err != nil || v <= 0 {
				continue
			}
			out = append(out, priceCandidate{value: v, context: text})
		}
	}

	return out
}

// contextOf widens a candidate's text window to its parent so quantity
// wording next to the price ("Box of 25 — $299.99") is visible.
func contextOf(sel *goquery.Selection, own string) string {
	if parent := sel.Parent(); parent.Length() > 0 {
		if t := strings.TrimSpace(parent.Text()); t != "" {
			return t
		}
	}
	return own
}

// selectCurrent picks one current candidate. A single survivor wins
// outright; among several, candidates textually adjacent to quantity
// wording beat incidental prices, and the largest remaining value wins
// (box prices dominate per-stick and navigation prices).
func selectCurrent(currents []priceCandidate) priceCandidate {
	if len(currents) == 1 {
		return currents[0]
	}

	var adjacent []priceCandidate
	for _, c := range currents {
		if qtyWordingRegex.MatchString(c.context) {
			adjacent = append(adjacent, c)
		}
	}
	pool := currents
	if len(adjacent) > 0 {
		pool = adjacent
	}

	best := pool[0]
	for _, c := range pool[1:] {
		if c.value > best.value {
			best = c
		}
	}
	return best
}

// resolveStock walks the stock-signal ladder: explicit negative text or a
// disabled purchase control force out-of-stock; explicit positive text or
// an enabled control report in-stock; with no signal at all the product
// defaults to in-stock.
func resolveStock(doc *goquery.Document, profile LocatorProfile) bool {
	pageText := strings.ToLower(doc.Text())

	for _, phrase := range negativeStockPhrases {
		if strings.Contains(pageText, phrase) {
			return false
		}
	}

	control := doc.Find(profile.PurchaseControl)
	if control.Length() > 0 {
		if _, disabled := control.First().Attr("disabled"); disabled {
			return false
		}
	}

	for _, phrase := range positiveStockPhrases {
		if strings.Contains(pageText, phrase) {
			return true
		}
	}
	if control.Length() > 0 {
		return true
	}

	// No signal found. Defaulting to in-stock is the tracked product
	// decision; see the configuration flag on the update service.
	return true
}

// resolveBoxQuantity checks, in order: the URL, the title, then quantity
// selector text. The first integer within the plausible range wins;
// nothing outside the range is ever guessed.
func resolveBoxQuantity(doc *goquery.Document, pageURL string, profile LocatorProfile) int {
	if m := urlQtyRegex.FindStringSubmatch(pageURL); m != nil {
		if qty, err := strconv.Atoi(m[1]); err == nil && profile.QtyRange.Contains(float64(qty)) {
			return qty
		}
	}

	if qty := qtyFromText(extractTitle(doc, profile), profile.QtyRange); qty > 0 {
		return qty
	}

	for _, selector := range profile.QuantitySelectors {
		found := 0
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if qty := qtyFromText(sel.Text(), profile.QtyRange); qty > 0 {
				found = qty
				return false
			}
			return true
		})
		if found > 0 {
			return found
		}
	}

	return 0
}

// qtyFromText extracts the first in-range quantity from quantity wording.
func qtyFromText(text string, bound Range) int {
	for _, m := range qtyWordingRegex.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			qty, err := strconv.Atoi(g)
			if err == nil && bound.Contains(float64(qty)) {
				return qty
			}
		}
	}
	return 0
}

// extractTitle returns the first non-empty title selector match.
func extractTitle(doc *goquery.Document, profile LocatorProfile) string {
	for _, selector := range profile.TitleSelectors {
		if t := strings.TrimSpace(doc.Find(selector).First().Text()); t != "" {
			return t
		}
	}
	return ""
}
