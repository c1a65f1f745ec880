package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cigarpricescout/pipeline/internal/domain"
	"github.com/cigarpricescout/pipeline/internal/infrastructure/catalog"
)

var ledgerColumns = []string{
	"timestamp", "cigar_id", "retailer", "price", "in_stock", "box_qty",
	"brand", "line", "wrapper", "vitola", "size", "url",
}

// Ledger is the append-only observation log. Append is the only write
// operation; rows are never mutated or deleted, and every append is
// flushed and fsynced so a row is either fully present or absent.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// New opens the ledger at path, creating parent directories as needed.
func New(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Ledger{path: path}, nil
}

// Append writes one observation row.
func (l *Ledger) Append(obs domain.Observation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(ledgerColumns); err != nil {
			return err
		}
	}

	qty := ""
	if obs.BoxQty > 0 {
		qty = strconv.Itoa(obs.BoxQty)
	}
	row := []string{
		obs.Timestamp.UTC().Format(time.RFC3339),
		obs.CigarID,
		obs.Retailer,
		domain.FormatPrice(obs.Price),
		strconv.FormatBool(obs.InStock),
		qty,
		obs.Brand, obs.Line, obs.Wrapper, obs.Vitola, obs.Size, obs.URL,
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

// History returns all observations for one (retailer, cigar_id) pair in
// timestamp order.
func (l *Ledger) History(retailer, cigarID string) ([]domain.Observation, error) {
	all, err := l.readAll()
	if err != nil {
		return nil, err
	}
	var out []domain.Observation
	for _, obs := range all {
		if obs.Retailer == retailer && obs.CigarID == cigarID {
			out = append(out, obs)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// DeriveChanges diffs the two newest observations for a pair. It is a
// pure function of the stored history: re-running it over the same rows
// always produces the same events.
func (l *Ledger) DeriveChanges(retailer, cigarID string) ([]domain.ChangeEvent, error) {
	history, err := l.History(retailer, cigarID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	newest := history[len(history)-1]
	if len(history) == 1 {
		return []domain.ChangeEvent{{
			Type:     domain.ChangeNew,
			Retailer: retailer,
			CigarID:  cigarID,
			Field:    "price",
			NewValue: domain.FormatPrice(newest.Price),
		}}, nil
	}

	prev := history[len(history)-2]
	var events []domain.ChangeEvent

	if delta := newest.Price - prev.Price; math.Abs(delta) > 0 {
		events = append(events, domain.ChangeEvent{
			Type:     domain.ChangePrice,
			Retailer: retailer,
			CigarID:  cigarID,
			Field:    "price",
			OldValue: domain.FormatPrice(prev.Price),
			NewValue: domain.FormatPrice(newest.Price),
			Delta:    delta,
		})
	}
	if newest.InStock != prev.InStock {
		events = append(events, domain.ChangeEvent{
			Type:     domain.ChangeStock,
			Retailer: retailer,
			CigarID:  cigarID,
			Field:    "in_stock",
			OldValue: strconv.FormatBool(prev.InStock),
			NewValue: strconv.FormatBool(newest.InStock),
		})
	}
	return events, nil
}

// DailySummary aggregates all observations made on one UTC date
// (YYYY-MM-DD).
func (l *Ledger) DailySummary(date string) (*domain.DailySummary, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: bad date %q", domain.ErrInvalidRequest, date)
	}

	all, err := l.readAll()
	if err != nil {
		return nil, err
	}

	summary := &domain.DailySummary{Date: date}
	retailers := make(map[string]struct{})
	products := make(map[string]struct{})
	var priceSum float64

	for _, obs := range all {
		if obs.Timestamp.UTC().Format("2006-01-02") != date {
			continue
		}
		summary.Observations++
		retailers[obs.Retailer] = struct{}{}
		products[obs.CigarID] = struct{}{}
		if obs.InStock {
			summary.InStock++
		} else {
			summary.OutOfStock++
		}
		priceSum += obs.Price
	}
	summary.Retailers = len(retailers)
	summary.Products = len(products)
	if summary.Observations > 0 {
		summary.AvgPrice = round2(priceSum / float64(summary.Observations))
	}
	return summary, nil
}

// RetailerPerformance summarizes one retailer's full history.
func (l *Ledger) RetailerPerformance(retailer string) (*domain.RetailerPerformance, error) {
	all, err := l.readAll()
	if err != nil {
		return nil, err
	}

	perf := &domain.RetailerPerformance{Retailer: retailer}
	products := make(map[string]struct{})
	var priceSum float64
	inStock := 0

	for _, obs := range all {
		if obs.Retailer != retailer {
			continue
		}
		perf.Observations++
		products[obs.CigarID] = struct{}{}
		priceSum += obs.Price
		if obs.InStock {
			inStock++
		}
		if perf.FirstObserved.IsZero() || obs.Timestamp.Before(perf.FirstObserved) {
			perf.FirstObserved = obs.Timestamp
		}
		if obs.Timestamp.After(perf.LatestObserved) {
			perf.LatestObserved = obs.Timestamp
		}
	}
	perf.Products = len(products)
	if perf.Observations > 0 {
		perf.InStockRatio = round2(float64(inStock) / float64(perf.Observations))
		perf.AvgPrice = round2(priceSum / float64(perf.Observations))
	}
	return perf, nil
}

// StockOuts lists every (retailer, cigar_id) pair whose latest
// observation is out of stock, with the start of the current stock-out
// streak.
func (l *Ledger) StockOuts() ([]domain.StockOut, error) {
	all, err := l.readAll()
	if err != nil {
		return nil, err
	}

	byPair := make(map[string][]domain.Observation)
	for _, obs := range all {
		key := obs.Retailer + "\x00" + obs.CigarID
		byPair[key] = append(byPair[key], obs)
	}

	var out []domain.StockOut
	for _, history := range byPair {
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].Timestamp.Before(history[j].Timestamp)
		})
		latest := history[len(history)-1]
		if latest.InStock {
			continue
		}
		since := latest.Timestamp
		lastPrice := latest.Price
		for i := len(history) - 2; i >= 0; i-- {
			if history[i].InStock {
				break
			}
			since = history[i].Timestamp
		}
		out = append(out, domain.StockOut{
			Retailer:  latest.Retailer,
			CigarID:   latest.CigarID,
			Since:     since,
			LastPrice: lastPrice,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Retailer != out[j].Retailer {
			return out[i].Retailer < out[j].Retailer
		}
		return out[i].CigarID < out[j].CigarID
	})
	return out, nil
}

// readAll loads the full ledger in file (append) order.
func (l *Ledger) readAll() ([]domain.Observation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.ToLower(h))] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []domain.Observation
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", l.path, err)
		}
		obs := domain.Observation{
			CigarID:  field(row, "cigar_id"),
			Retailer: field(row, "retailer"),
			InStock:  catalog.NormalizeStockToken(field(row, "in_stock")),
			Brand:    field(row, "brand"),
			Line:     field(row, "line"),
			Wrapper:  field(row, "wrapper"),
			Vitola:   field(row, "vitola"),
			Size:     field(row, "size"),
			URL:      field(row, "url"),
		}
		if ts, err := time.Parse(time.RFC3339, field(row, "timestamp")); err == nil {
			obs.Timestamp = ts
		}
		if p, err := strconv.ParseFloat(field(row, "price"), 64); err == nil {
			obs.Price = p
		}
		if n, err := strconv.Atoi(field(row, "box_qty")); err == nil {
			obs.BoxQty = n
		}
		out = append(out, obs)
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
