package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

// ObservationMirror replicates ledger rows to a secondary sink. The
// mirror is best-effort: replication failures never affect the run.
type ObservationMirror interface {
	Replicate(ctx context.Context, observations []domain.Observation) (int, error)
}

// RunSummary reports the outcome of one retailer update run.
type RunSummary struct {
	RunID     string               `json:"runId"`
	Retailer  string               `json:"retailer"`
	StartedAt time.Time            `json:"startedAt"`
	Duration  time.Duration        `json:"duration"`
	Attempted int                  `json:"attempted"`
	Updated   int                  `json:"updated"`
	Failed    int                  `json:"failed"`
	Skipped   int                  `json:"skipped"`
	Halted    bool                 `json:"halted"`
	Events    []domain.ChangeEvent `json:"events,omitempty"`
}

// UpdateService orchestrates one retailer's extract-enrich-persist run:
// every catalog row with a URL is extracted once, the result written
// back through the catalog, and successful observations appended to the
// ledger with freshly derived change events.
type UpdateService struct {
	enricher *EnrichmentService
	parser   *TitleParser
	ledger   domain.LedgerRepository
	mirror   ObservationMirror
	now      func() time.Time
	log      *logrus.Entry
}

// NewUpdateService wires an update run. mirror may be nil.
func NewUpdateService(enricher *EnrichmentService, ledger domain.LedgerRepository, mirror ObservationMirror) *UpdateService {
	return &UpdateService{
		enricher: enricher,
		parser:   NewTitleParser(),
		ledger:   ledger,
		mirror:   mirror,
		now:      time.Now,
		log:      logrus.WithField("component", "update"),
	}
}

// RunRetailer walks the retailer's catalog and updates every row that
// carries a product URL. Individual extraction failures are recorded
// and skipped; a data integrity failure in the catalog halts all
// further writes for this retailer.
func (s *UpdateService) RunRetailer(ctx context.Context, retailer string, extractor domain.Extractor, catalog domain.CatalogRepository) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Retailer:  retailer,
		StartedAt: s.now(),
	}
	runLog := s.log.WithFields(logrus.Fields{
		"run_id":   summary.RunID,
		"retailer": retailer,
	})

	records, err := catalog.Records()
	if err != nil {
		return summary, err
	}
	runLog.WithField("records", len(records)).Info("starting retailer run")

	var observations []domain.Observation
	for i := range records {
		record := records[i]
		if record.URL == "" {
			summary.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			summary.Duration = s.now().Sub(summary.StartedAt)
			return summary, err
		}
		summary.Attempted++

		res := extractor.Extract(ctx, record.URL)
		update := domain.UpdateFromResult(res, s.now())
		if res.Success {
			s.fillDescriptive(&record, res)
			update.Title = record.Title
			update.Brand = record.Brand
			update.Line = record.Line
			update.Wrapper = record.Wrapper
			update.Vitola = record.Vitola
			update.Size = record.Size
			if update.BoxQty == nil && record.BoxQty > 0 {
				qty := record.BoxQty
				update.BoxQty = &qty
			}
		}

		if err := catalog.Update(record.CigarID, update); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				summary.Skipped++
				runLog.WithField("cigar_id", record.CigarID).Warn("record vanished during run")
				continue
			case errors.Is(err, domain.ErrDataIntegrity):
				summary.Halted = true
				runLog.WithError(err).Error("catalog integrity failure, halting retailer")
			default:
				runLog.WithError(err).WithField("cigar_id", record.CigarID).Error("catalog update failed")
			}
			if summary.Halted {
				break
			}
			summary.Failed++
			continue
		}

		if !res.Success {
			summary.Failed++
			runLog.WithFields(logrus.Fields{
				"cigar_id": record.CigarID,
				"error":    res.Error,
			}).Warn("extraction failed")
			continue
		}
		summary.Updated++

		obs := s.buildObservation(retailer, record, res)
		if err := s.ledger.Append(obs); err != nil {
			runLog.WithError(err).WithField("cigar_id", record.CigarID).Error("ledger append failed")
			continue
		}
		observations = append(observations, obs)

		events, err := s.ledger.DeriveChanges(retailer, record.CigarID)
		if err != nil {
			runLog.WithError(err).WithField("cigar_id", record.CigarID).Warn("change derivation failed")
			continue
		}
		summary.Events = append(summary.Events, events...)
	}

	s.replicate(ctx, runLog, observations)

	summary.Duration = s.now().Sub(summary.StartedAt)
	runLog.WithFields(logrus.Fields{
		"attempted": summary.Attempted,
		"updated":   summary.Updated,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"events":    len(summary.Events),
		"halted":    summary.Halted,
		"duration":  summary.Duration.Round(time.Millisecond).String(),
	}).Info("retailer run complete")
	return summary, nil
}

// fillDescriptive fills blank descriptive fields on the record from the
// page title and the master reference. A master miss leaves the record
// as-is. The filled values flow into both the persisted catalog row and
// the ledger observation.
func (s *UpdateService) fillDescriptive(record *domain.ProductRecord, res *domain.ExtractionResult) {
	if res.Title != "" {
		parsed := s.parser.Parse(res.Title)
		if record.Title == "" {
			record.Title = s.parser.Clean(res.Title)
		}
		if record.Brand == "" {
			record.Brand = parsed.Brand
		}
		if record.Line == "" {
			record.Line = parsed.Line
		}
		if record.Wrapper == "" {
			record.Wrapper = parsed.Wrapper
		}
		if record.Vitola == "" {
			record.Vitola = parsed.Vitola
		}
		if record.Size == "" {
			record.Size = parsed.Size
		}
	}
	if s.enricher != nil {
		if err := s.enricher.Enrich(record); err != nil && !errors.Is(err, domain.ErrEnrichmentMiss) {
			s.log.WithError(err).WithField("cigar_id", record.CigarID).Warn("enrichment failed")
		}
	}
}

// buildObservation denormalizes a successful extraction into a ledger row.
func (s *UpdateService) buildObservation(retailer string, record domain.ProductRecord, res *domain.ExtractionResult) domain.Observation {
	boxQty := record.BoxQty
	if res.BoxQuantity > 0 {
		boxQty = res.BoxQuantity
	}
	return domain.Observation{
		Timestamp: s.now().UTC(),
		CigarID:   record.CigarID,
		Retailer:  retailer,
		Price:     res.Price,
		InStock:   res.InStock,
		BoxQty:    boxQty,
		Brand:     record.Brand,
		Line:      record.Line,
		Wrapper:   record.Wrapper,
		Vitola:    record.Vitola,
		Size:      record.Size,
		URL:       record.URL,
	}
}

func (s *UpdateService) replicate(ctx context.Context, runLog *logrus.Entry, observations []domain.Observation) {
	if s.mirror == nil || len(observations) == 0 {
		return
	}
	n, err := s.mirror.Replicate(ctx, observations)
	if err != nil {
		runLog.WithError(err).Warn("observation mirror replication failed")
		return
	}
	runLog.WithField("replicated", n).Debug("observations mirrored")
}
