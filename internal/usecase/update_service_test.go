package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

type stubExtractor struct {
	results map[string]*domain.ExtractionResult
}

func (s *stubExtractor) Extract(_ context.Context, url string) *domain.ExtractionResult {
	if res, ok := s.results[url]; ok {
		return res
	}
	return domain.Failed(fmt.Errorf("%w: no stub for %s", domain.ErrFetchFailed, url))
}

type stubCatalog struct {
	records  []domain.ProductRecord
	updates  map[string]domain.CatalogUpdate
	failWith map[string]error
}

func newStubCatalog(records ...domain.ProductRecord) *stubCatalog {
	return &stubCatalog{
		records:  records,
		updates:  make(map[string]domain.CatalogUpdate),
		failWith: make(map[string]error),
	}
}

func (s *stubCatalog) Records() ([]domain.ProductRecord, error) { return s.records, nil }

func (s *stubCatalog) Get(cigarID string) (*domain.ProductRecord, error) {
	for i := range s.records {
		if s.records[i].CigarID == cigarID {
			return &s.records[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *stubCatalog) Update(cigarID string, update domain.CatalogUpdate) error {
	if err := s.failWith[cigarID]; err != nil {
		return err
	}
	s.updates[cigarID] = update
	return nil
}

func (s *stubCatalog) Insert(record domain.ProductRecord) error {
	s.records = append(s.records, record)
	return nil
}

type stubLedger struct {
	appended []domain.Observation
	events   map[string][]domain.ChangeEvent
}

func newStubLedger() *stubLedger {
	return &stubLedger{events: make(map[string][]domain.ChangeEvent)}
}

func (s *stubLedger) Append(obs domain.Observation) error {
	s.appended = append(s.appended, obs)
	return nil
}

func (s *stubLedger) History(string, string) ([]domain.Observation, error) { return nil, nil }

func (s *stubLedger) DeriveChanges(retailer, cigarID string) ([]domain.ChangeEvent, error) {
	return s.events[retailer+"/"+cigarID], nil
}

func (s *stubLedger) DailySummary(string) (*domain.DailySummary, error) { return nil, nil }

func (s *stubLedger) RetailerPerformance(string) (*domain.RetailerPerformance, error) {
	return nil, nil
}

func (s *stubLedger) StockOuts() ([]domain.StockOut, error) { return nil, nil }

func TestRunRetailer(t *testing.T) {
	ctx := context.Background()

	t.Run("successful run updates catalog and ledger", func(t *testing.T) {
		catalog := newStubCatalog(
			domain.ProductRecord{CigarID: "a", URL: "https://shop.test/a", Price: "100.00"},
			domain.ProductRecord{CigarID: "b", URL: "https://shop.test/b", Price: "50.00"},
			domain.ProductRecord{CigarID: "c"}, // no URL
		)
		extractor := &stubExtractor{results: map[string]*domain.ExtractionResult{
			"https://shop.test/a": {Price: 95.50, InStock: true, Success: true},
			"https://shop.test/b": {Price: 50.00, InStock: false, Success: true},
		}}
		ledger := newStubLedger()
		ledger.events["testshop/a"] = []domain.ChangeEvent{
			{Type: domain.ChangePrice, Retailer: "testshop", CigarID: "a", Delta: -4.50},
		}

		svc := NewUpdateService(nil, ledger, nil)
		summary, err := svc.RunRetailer(ctx, "testshop", extractor, catalog)
		if err != nil {
			t.Fatalf("RunRetailer returned error: %v", err)
		}
		if summary.Attempted != 2 || summary.Updated != 2 || summary.Failed != 0 {
			t.Errorf("counts = %d/%d/%d, want 2/2/0", summary.Attempted, summary.Updated, summary.Failed)
		}
		if summary.Skipped != 1 {
			t.Errorf("Skipped = %d, want 1 for the URL-less record", summary.Skipped)
		}
		if len(ledger.appended) != 2 {
			t.Fatalf("ledger rows = %d, want 2", len(ledger.appended))
		}
		if len(summary.Events) != 1 || summary.Events[0].Delta != -4.50 {
			t.Errorf("Events = %+v, want one price change with delta -4.50", summary.Events)
		}
		if update, ok := catalog.updates["a"]; !ok || update.Price == nil || *update.Price != 95.50 {
			t.Errorf("catalog update for a = %+v, want price 95.50", update)
		}
	})

	t.Run("extraction failure advances attempt only", func(t *testing.T) {
		catalog := newStubCatalog(
			domain.ProductRecord{CigarID: "a", URL: "https://shop.test/a", Price: "100.00"},
		)
		extractor := &stubExtractor{results: map[string]*domain.ExtractionResult{}}
		ledger := newStubLedger()

		svc := NewUpdateService(nil, ledger, nil)
		summary, err := svc.RunRetailer(ctx, "testshop", extractor, catalog)
		if err != nil {
			t.Fatalf("RunRetailer returned error: %v", err)
		}
		if summary.Failed != 1 || summary.Updated != 0 {
			t.Errorf("Failed/Updated = %d/%d, want 1/0", summary.Failed, summary.Updated)
		}
		update := catalog.updates["a"]
		if update.Price != nil || update.InStock != nil {
			t.Errorf("failed extraction wrote values: %+v", update)
		}
		if update.Attempt.IsZero() {
			t.Error("attempt timestamp did not advance")
		}
		if len(ledger.appended) != 0 {
			t.Errorf("ledger rows = %d, want 0 after failure", len(ledger.appended))
		}
	})

	t.Run("integrity failure halts the retailer", func(t *testing.T) {
		catalog := newStubCatalog(
			domain.ProductRecord{CigarID: "a", URL: "https://shop.test/a"},
			domain.ProductRecord{CigarID: "b", URL: "https://shop.test/b"},
		)
		catalog.failWith["a"] = fmt.Errorf("%w: duplicate cigar_id", domain.ErrDataIntegrity)
		extractor := &stubExtractor{results: map[string]*domain.ExtractionResult{
			"https://shop.test/a": {Price: 10, InStock: true, Success: true},
			"https://shop.test/b": {Price: 20, InStock: true, Success: true},
		}}

		svc := NewUpdateService(nil, newStubLedger(), nil)
		summary, err := svc.RunRetailer(ctx, "testshop", extractor, catalog)
		if err != nil {
			t.Fatalf("RunRetailer returned error: %v", err)
		}
		if !summary.Halted {
			t.Error("expected run to be halted")
		}
		if _, ok := catalog.updates["b"]; ok {
			t.Error("writes continued after integrity failure")
		}
	})

	t.Run("master enrichment reaches the persisted record", func(t *testing.T) {
		master := &fakeMaster{entries: map[string]*domain.MasterEntry{
			"padron|1964|toro": {
				CigarID:     "padron|1964|toro",
				Brand:       "Padron",
				Line:        "1964 Anniversary",
				Wrapper:     "Connecticut Broadleaf",
				Vitola:      "Toro",
				Length:      "6",
				RingGauge:   "52",
				BoxQuantity: 25,
			},
		}}
		enricher := NewEnrichmentService(master, testAliases())
		catalog := newStubCatalog(
			domain.ProductRecord{CigarID: "padron|1964|toro", URL: "https://shop.test/p", Vitola: "Toro Grande"},
		)
		extractor := &stubExtractor{results: map[string]*domain.ExtractionResult{
			"https://shop.test/p": {Price: 359.95, InStock: true, Success: true},
		}}

		svc := NewUpdateService(enricher, newStubLedger(), nil)
		if _, err := svc.RunRetailer(ctx, "testshop", extractor, catalog); err != nil {
			t.Fatalf("RunRetailer returned error: %v", err)
		}

		update, ok := catalog.updates["padron|1964|toro"]
		if !ok {
			t.Fatal("catalog never received an update")
		}
		if update.Brand != "Padron" {
			t.Errorf("Brand = %q, want Padron from the master reference", update.Brand)
		}
		if update.Line != "1964 Anniversary" {
			t.Errorf("Line = %q, want 1964 Anniversary", update.Line)
		}
		if update.Size != "6x52" {
			t.Errorf("Size = %q, want 6x52", update.Size)
		}
		if update.BoxQty == nil || *update.BoxQty != 25 {
			t.Errorf("BoxQty = %v, want 25 from the master reference", update.BoxQty)
		}
		if update.Vitola != "Toro Grande" {
			t.Errorf("Vitola = %q, the retailer-observed value must survive", update.Vitola)
		}
	})

	t.Run("failed extraction carries no descriptive fields", func(t *testing.T) {
		catalog := newStubCatalog(
			domain.ProductRecord{CigarID: "a", URL: "https://shop.test/a", Brand: "Ashton"},
		)
		extractor := &stubExtractor{results: map[string]*domain.ExtractionResult{}}

		svc := NewUpdateService(nil, newStubLedger(), nil)
		if _, err := svc.RunRetailer(ctx, "testshop", extractor, catalog); err != nil {
			t.Fatalf("RunRetailer returned error: %v", err)
		}
		update := catalog.updates["a"]
		if update.Brand != "" || update.Title != "" {
			t.Errorf("failed extraction wrote descriptive fields: %+v", update)
		}
	})

	t.Run("missing record is skipped not fatal", func(t *testing.T) {
		catalog := newStubCatalog(
			domain.ProductRecord{CigarID: "a", URL: "https://shop.test/a"},
			domain.ProductRecord{CigarID: "b", URL: "https://shop.test/b"},
		)
		catalog.failWith["a"] = domain.ErrNotFound
		extractor := &stubExtractor{results: map[string]*domain.ExtractionResult{
			"https://shop.test/a": {Price: 10, InStock: true, Success: true},
			"https://shop.test/b": {Price: 20, InStock: true, Success: true},
		}}

		svc := NewUpdateService(nil, newStubLedger(), nil)
		summary, err := svc.RunRetailer(ctx, "testshop", extractor, catalog)
		if err != nil {
			t.Fatalf("RunRetailer returned error: %v", err)
		}
		if summary.Skipped != 1 || summary.Updated != 1 {
			t.Errorf("Skipped/Updated = %d/%d, want 1/1", summary.Skipped, summary.Updated)
		}
	})
}

func TestFillDescriptiveFromTitle(t *testing.T) {
	svc := NewUpdateService(nil, newStubLedger(), nil)
	record := domain.ProductRecord{CigarID: "a", URL: "https://shop.test/a"}
	res := &domain.ExtractionResult{
		Price:       180.00,
		InStock:     true,
		BoxQuantity: 24,
		Title:       "Ashton VSG Robusto - Box of 24",
		Success:     true,
	}

	svc.fillDescriptive(&record, res)
	obs := svc.buildObservation("testshop", record, res)
	if obs.Brand != "Ashton" {
		t.Errorf("Brand = %q, want Ashton", obs.Brand)
	}
	if obs.Line != "VSG" {
		t.Errorf("Line = %q, want VSG", obs.Line)
	}
	if obs.Vitola != "Robusto" {
		t.Errorf("Vitola = %q, want Robusto", obs.Vitola)
	}
	if obs.BoxQty != 24 {
		t.Errorf("BoxQty = %d, want 24", obs.BoxQty)
	}
	if obs.Price != 180.00 || !obs.InStock {
		t.Errorf("price/stock = %f/%v", obs.Price, obs.InStock)
	}
}
