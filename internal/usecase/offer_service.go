package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

const offerCacheTTL = 5 * time.Minute

// Offer is one retailer's current purchasable listing for a cigar,
// with any active promotion already resolved.
type Offer struct {
	Retailer       string  `json:"retailer"`
	CigarID        string  `json:"cigarId"`
	Title          string  `json:"title,omitempty"`
	Price          string  `json:"price"`
	EffectivePrice float64 `json:"effectivePrice"`
	Promotion      string  `json:"promotion,omitempty"`
	InStock        bool    `json:"inStock"`
	URL            string  `json:"url,omitempty"`
}

// OfferService answers read-side queries across all retailer catalogs.
type OfferService struct {
	catalogs map[string]domain.CatalogRepository
	promos   *PromotionService
	cache    domain.CacheRepository
	ttl      time.Duration
	log      *logrus.Entry
}

// NewOfferService creates the cross-retailer offer reader. cache may be
// nil to disable caching.
func NewOfferService(catalogs map[string]domain.CatalogRepository, promos *PromotionService, cache domain.CacheRepository) *OfferService {
	return &OfferService{
		catalogs: catalogs,
		promos:   promos,
		cache:    cache,
		ttl:      offerCacheTTL,
		log:      logrus.WithField("component", "offers"),
	}
}

// SetCacheTTL overrides the default cache lifetime. Non-positive values
// are ignored.
func (s *OfferService) SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// Offers returns every in-stock offer for the cigar, cheapest first.
// Records without a usable price are excluded.
func (s *OfferService) Offers(ctx context.Context, cigarID string) ([]Offer, error) {
	cacheKey := "offers:" + cigarID
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			if offers, ok := cached.([]Offer); ok {
				return offers, nil
			}
		}
	}

	var offers []Offer
	for retailer, catalog := range s.catalogs {
		record, err := catalog.Get(cigarID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("reading %s catalog: %w", retailer, err)
		}
		if !record.InStock {
			continue
		}
		price, ok := record.PriceValue()
		if !ok {
			continue
		}

		offer := Offer{
			Retailer:       retailer,
			CigarID:        cigarID,
			Title:          record.Title,
			Price:          domain.FormatPrice(price),
			EffectivePrice: price,
			InStock:        true,
			URL:            record.URL,
		}
		if s.promos != nil {
			if promo := s.promos.Resolve(retailer, record); promo != "" {
				offer.Promotion = promo
				if v, ok := promoPrice(promo); ok {
					offer.EffectivePrice = v
				}
			}
		}
		offers = append(offers, offer)
	}
	if len(offers) == 0 {
		return nil, fmt.Errorf("%w: no current offers for %q", domain.ErrNotFound, cigarID)
	}

	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].EffectivePrice < offers[j].EffectivePrice
	})

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, offers, s.ttl); err != nil {
			s.log.WithError(err).Debug("offer cache write failed")
		}
	}
	return offers, nil
}

// CheapestOffer returns the lowest effective-price offer for the cigar.
func (s *OfferService) CheapestOffer(ctx context.Context, cigarID string) (*Offer, error) {
	offers, err := s.Offers(ctx, cigarID)
	if err != nil {
		return nil, err
	}
	return &offers[0], nil
}

// promoPrice pulls the discounted dollar amount out of a promotion
// string such as "$143.96 [20% off]|SAVE20".
func promoPrice(promo string) (float64, bool) {
	if !strings.HasPrefix(promo, "$") {
		return 0, false
	}
	end := strings.IndexByte(promo, ' ')
	if end < 0 {
		end = len(promo)
	}
	v, err := strconv.ParseFloat(promo[1:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
