package extract

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

// PageFetcher is satisfied by fetch.Fetcher.
type PageFetcher interface {
	FetchDocument(ctx context.Context, url string) (*goquery.Document, error)
}

// Adapter pairs the shared disambiguation algorithm with one retailer's
// locator profile. It implements domain.Extractor: no error ever crosses
// the boundary, failures come back as a result with Success=false.
type Adapter struct {
	fetcher PageFetcher
	profile LocatorProfile
	log     *logrus.Entry
}

// NewAdapter creates an extraction adapter for one retailer
func NewAdapter(fetcher PageFetcher, profile LocatorProfile, retailer string) *Adapter {
	return &Adapter{
		fetcher: fetcher,
		profile: profile.Normalize(),
		log:     logrus.WithField("retailer", retailer),
	}
}

// Extract fetches one product page and reduces it to a normalized result.
func (a *Adapter) Extract(ctx context.Context, url string) (result *domain.ExtractionResult) {
	defer func() {
		// A panic inside parsing must not cross the adapter boundary.
		if r := recover(); r != nil {
			a.log.WithField("url", url).Errorf("extraction panic: %v", r)
			result = domain.Failed(fmt.Errorf("%w: panic: %v", domain.ErrInsufficientData, r))
		}
	}()

	doc, err := a.fetcher.FetchDocument(ctx, url)
	if err != nil {
		a.log.WithField("url", url).Debugf("fetch failed: %v", err)
		return domain.Failed(err)
	}

	res, err := disambiguate(doc, url, a.profile)
	if err != nil {
		a.log.WithField("url", url).Debugf("disambiguation failed: %v", err)
		return domain.Failed(err)
	}

	a.log.WithFields(logrus.Fields{
		"url":     url,
		"price":   fmt.Sprintf("%.2f", res.Price),
		"inStock": res.InStock,
	}).Debug("extracted")

	return res
}
