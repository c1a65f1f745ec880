package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

// MinPromoPercent is the smallest discount worth surfacing. Anything
// below it is treated as noise and never applied.
const MinPromoPercent = 11.0

const promoDefaultCode = "PROMO"

// PromotionService resolves which promotion, if any, applies to a
// catalog record and renders the annotated promo price string.
type PromotionService struct {
	rules map[string][]domain.PromotionRule
	min   float64
	now   func() time.Time
	log   *logrus.Entry
}

// NewPromotionService creates a resolver over the given per-retailer
// rule sets.
func NewPromotionService(rules map[string][]domain.PromotionRule) *PromotionService {
	if rules == nil {
		rules = make(map[string][]domain.PromotionRule)
	}
	return &PromotionService{
		rules: rules,
		min:   MinPromoPercent,
		now:   time.Now,
		log:   logrus.WithField("component", "promotions"),
	}
}

// LoadPromotionRules reads a JSON file keyed by retailer name. A
// missing file yields an empty rule set rather than an error so
// retailers without promotions need no file at all.
func LoadPromotionRules(path string) (map[string][]domain.PromotionRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]domain.PromotionRule{}, nil
		}
		return nil, fmt.Errorf("reading promotion rules %s: %w", path, err)
	}
	var rules map[string][]domain.PromotionRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing promotion rules %s: %w", path, err)
	}
	return rules, nil
}

// ActiveRules returns the retailer's rules that are switched on, meet
// the minimum discount, and have not expired as of today.
func (s *PromotionService) ActiveRules(retailer string) []domain.PromotionRule {
	today := s.now()
	var active []domain.PromotionRule
	for _, rule := range s.rules[retailer] {
		if !rule.Active {
			continue
		}
		if rule.Discount < s.min {
			continue
		}
		if rule.ExpiresBefore(today) {
			continue
		}
		active = append(active, rule)
	}
	return active
}

// Resolve picks the best applicable promotion for the record and
// returns the annotated price string, e.g. "$143.96 [20% off]|SAVE20".
// It returns "" when no promotion applies or the record's price is
// missing or unparseable.
func (s *PromotionService) Resolve(retailer string, record *domain.ProductRecord) string {
	var candidates []domain.PromotionRule
	for _, rule := range s.ActiveRules(retailer) {
		if ruleApplies(rule, record) {
			candidates = append(candidates, rule)
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	// Most specific scope wins; discount size breaks ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := candidates[i].Specificity(), candidates[j].Specificity()
		if si != sj {
			return si > sj
		}
		return candidates[i].Discount > candidates[j].Discount
	})
	best := candidates[0]

	price, ok := record.PriceValue()
	if !ok {
		s.log.WithFields(logrus.Fields{
			"retailer": retailer,
			"cigar_id": record.CigarID,
		}).Debug("skipping promotion for record without usable price")
		return ""
	}

	discounted := price * (1 - best.Discount/100.0)
	code := best.Code
	if code == "" {
		code = promoDefaultCode
	}
	return fmt.Sprintf("$%.2f [%d%% off]|%s", discounted, int(best.Discount), code)
}

func ruleApplies(rule domain.PromotionRule, record *domain.ProductRecord) bool {
	switch rule.Scope {
	case domain.ScopeSitewide, "":
		for _, excluded := range rule.ExcludedBrands {
			if record.Brand == excluded {
				return false
			}
		}
		return true
	case domain.ScopeBrand:
		for _, brand := range rule.Brands {
			if record.Brand == brand {
				return true
			}
		}
		return false
	case domain.ScopeLine:
		if record.Brand != rule.Brand {
			return false
		}
		for _, line := range rule.Lines {
			if record.Line == line {
				return true
			}
		}
		return false
	case domain.ScopeCigar:
		return rule.CigarID != "" && record.CigarID == rule.CigarID
	}
	return false
}
