package usecase

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

// defaultSimilarityThreshold is the minimum ratio for a fuzzy wrapper
// alias match to be accepted as confident.
const defaultSimilarityThreshold = 0.85

// EnrichmentService fills blank catalog fields from the master reference
// and normalizes free-text wrapper descriptions to canonical names.
type EnrichmentService struct {
	master    domain.MasterRepository
	aliases   map[string]string
	canonical []string
	threshold float64
	log       *logrus.Entry
}

// NewEnrichmentService creates an enrichment service backed by the given
// master repository and wrapper alias table. The alias table maps
// lowercase raw wrapper text to canonical wrapper names.
func NewEnrichmentService(master domain.MasterRepository, aliases map[string]string) *EnrichmentService {
	seen := make(map[string]bool)
	var canonical []string
	for _, name := range aliases {
		if !seen[name] {
			seen[name] = true
			canonical = append(canonical, name)
		}
	}
	return &EnrichmentService{
		master:    master,
		aliases:   aliases,
		canonical: canonical,
		threshold: defaultSimilarityThreshold,
		log:       logrus.WithField("component", "enrichment"),
	}
}

// SetSimilarityThreshold overrides the fuzzy match cutoff. Values
// outside (0, 1] are ignored.
func (s *EnrichmentService) SetSimilarityThreshold(t float64) {
	if t > 0 && t <= 1 {
		s.threshold = t
	}
}

// Enrich fills blank descriptive fields of the record from the master
// reference. Fields that already hold a value are never overwritten.
// A missing master entry returns domain.ErrEnrichmentMiss; callers
// treat that as non-fatal and keep the record as-is.
func (s *EnrichmentService) Enrich(record *domain.ProductRecord) error {
	record.Wrapper = s.NormalizeWrapper(record)

	entry, ok := s.master.Lookup(record.CigarID)
	if !ok {
		return fmt.Errorf("%w: cigar %q", domain.ErrEnrichmentMiss, record.CigarID)
	}

	if record.Brand == "" {
		record.Brand = entry.Brand
	}
	if record.Line == "" {
		record.Line = entry.Line
	}
	if record.Wrapper == "" {
		record.Wrapper = entry.Wrapper
	}
	if record.Vitola == "" {
		record.Vitola = entry.Vitola
	}
	if record.Size == "" {
		record.Size = entry.SizeString()
	}
	if record.BoxQty == 0 && entry.BoxQuantity > 0 {
		record.BoxQty = entry.BoxQuantity
	}
	if record.Title == "" {
		record.Title = strings.TrimSpace(fmt.Sprintf("%s %s %s", entry.Brand, entry.Line, entry.Vitola))
	}
	return nil
}

// NormalizeWrapper maps the record's wrapper text to a canonical name.
// Exact alias hits win; otherwise the nearest canonical name above the
// similarity threshold is used. Text that matches nothing is kept
// verbatim and the record is flagged low-confidence.
func (s *EnrichmentService) NormalizeWrapper(record *domain.ProductRecord) string {
	raw := strings.TrimSpace(record.Wrapper)
	if raw == "" {
		return ""
	}

	key := strings.ToLower(raw)
	if name, ok := s.aliases[key]; ok {
		record.LowConfidenceWrapper = false
		return name
	}

	best := ""
	bestRatio := 0.0
	for _, name := range s.canonical {
		if r := similarityRatio(key, strings.ToLower(name)); r > bestRatio {
			bestRatio = r
			best = name
		}
	}
	if bestRatio >= s.threshold {
		record.LowConfidenceWrapper = false
		return best
	}

	s.log.WithFields(logrus.Fields{
		"cigar_id": record.CigarID,
		"wrapper":  raw,
		"ratio":    fmt.Sprintf("%.2f", bestRatio),
	}).Debug("wrapper text did not match any canonical name")
	record.LowConfidenceWrapper = true
	return raw
}

// similarityRatio returns a [0, 1] similarity score for two strings,
// derived from edit distance over the longer length.
func similarityRatio(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	longest := len([]rune(s1))
	if n := len([]rune(s2)); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshteinDistance(s1, s2))/float64(longest)
}

// levenshteinDistance calculates the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Two-row rolling distance table.
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
