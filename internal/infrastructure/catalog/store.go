package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

// Column order is fixed for website compatibility; legacy files without
// the trailing last_updated column are still readable.
var columns = []string{
	"cigar_id", "title", "url", "brand", "line", "wrapper", "vitola",
	"size", "box_qty", "price", "in_stock", "last_updated",
}

const defaultBackupRetention = 3

// Store is one retailer's catalog: an ordered, key-unique CSV record set
// updated via backup-then-atomic-rewrite. It is single-writer; concurrent
// writers to the same file are not supported.
type Store struct {
	path      string
	retailer  string
	retention int

	mu sync.Mutex
	// poisoned is set when a duplicate-key match is detected; all further
	// writes fail until an operator repairs the file.
	poisoned bool
	log      *logrus.Entry
}

// NewStore opens a catalog store backed by the given CSV file
func NewStore(retailer, path string) *Store {
	return &Store{
		path:      path,
		retailer:  retailer,
		retention: defaultBackupRetention,
		log:       logrus.WithField("catalog", retailer),
	}
}

// SetBackupRetention bounds the number of timestamped backups kept
// alongside the catalog file.
func (s *Store) SetBackupRetention(n int) {
	if n >= 0 {
		s.retention = n
	}
}

// Records returns all records in file order.
func (s *Store) Records() ([]domain.ProductRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the unique record for a key.
func (s *Store) Get(cigarID string) (*domain.ProductRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	var found *domain.ProductRecord
	for i := range records {
		if records[i].CigarID != cigarID {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %s in %s", domain.ErrDataIntegrity, cigarID, s.path)
		}
		found = &records[i]
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, cigarID)
	}
	rec := *found
	return &rec, nil
}

// Update merges the fields present in the update into the unique matching
// row and rewrites the file atomically. Zero matches is non-fatal for the
// batch; a duplicate match poisons the store.
func (s *Store) Update(cigarID string, update domain.CatalogUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return fmt.Errorf("%w: store poisoned, writes halted for %s", domain.ErrDataIntegrity, s.path)
	}

	records, err := s.load()
	if err != nil {
		return err
	}

	idx := -1
	for i := range records {
		if records[i].CigarID != cigarID {
			continue
		}
		if idx >= 0 {
			s.poisoned = true
			s.log.WithField("cigarId", cigarID).Error("duplicate key match, halting writes to catalog")
			return fmt.Errorf("%w: %s in %s", domain.ErrDataIntegrity, cigarID, s.path)
		}
		idx = i
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, cigarID)
	}

	rec := &records[idx]
	if update.Price != nil {
		rec.Price = domain.FormatPrice(*update.Price)
	}
	if update.InStock != nil {
		rec.InStock = *update.InStock
	}
	if update.BoxQty != nil && *update.BoxQty > 0 {
		rec.BoxQty = *update.BoxQty
	}
	fillBlank(&rec.Title, update.Title)
	fillBlank(&rec.Brand, update.Brand)
	fillBlank(&rec.Line, update.Line)
	fillBlank(&rec.Wrapper, update.Wrapper)
	fillBlank(&rec.Vitola, update.Vitola)
	fillBlank(&rec.Size, update.Size)
	if !update.Attempt.IsZero() {
		rec.LastUpdated = update.Attempt.UTC()
	}

	return s.writeAtomic(records)
}

// fillBlank sets dst from v only when dst is empty. Descriptive updates
// never overwrite retailer-observed values.
func fillBlank(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

// Insert appends a new record. Used only for explicit new-SKU backfill;
// an existing key is rejected.
func (s *Store) Insert(record domain.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poisoned {
		return fmt.Errorf("%w: store poisoned, writes halted for %s", domain.ErrDataIntegrity, s.path)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	records, err := s.load()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for i := range records {
		if records[i].CigarID == record.CigarID {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, record.CigarID)
		}
	}

	records = append(records, record)
	return s.writeAtomic(records)
}

// Poisoned reports whether writes to this catalog have been halted.
func (s *Store) Poisoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poisoned
}

func (s *Store) load() ([]domain.ProductRecord, error) {
	f, err := os.Open(s.path)
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
		return nil, fmt.Errorf("read %s: %w", s.path, err)
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

	var records []domain.ProductRecord
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		rec := domain.ProductRecord{
			CigarID: field(row, "cigar_id"),
			Title:   field(row, "title"),
			URL:     field(row, "url"),
			Brand:   field(row, "brand"),
			Line:    field(row, "line"),
			Wrapper: field(row, "wrapper"),
			Vitola:  field(row, "vitola"),
			Size:    field(row, "size"),
			Price:   field(row, "price"),
			InStock: NormalizeStockToken(field(row, "in_stock")),
		}
		if qty := field(row, "box_qty"); qty != "" {
			if n, err := strconv.Atoi(qty); err == nil {
				rec.BoxQty = n
			}
		}
		if ts := field(row, "last_updated"); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				rec.LastUpdated = t
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// writeAtomic persists records via backup-then-atomic-rewrite: copy the
// current file aside, write a temp file, fsync, rename. A crash mid-write
// leaves either the fully-prior or fully-new file, never a partial one.
func (s *Store) writeAtomic(records []domain.ProductRecord) error {
	if err := s.backup(); err != nil {
		s.log.Warnf("backup failed: %v", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(columns); err != nil {
		tmp.Close()
		return err
	}
	for i := range records {
		rec := &records[i]
		qty := ""
		if rec.BoxQty > 0 {
			qty = strconv.Itoa(rec.BoxQty)
		}
		ts := ""
		if !rec.LastUpdated.IsZero() {
			ts = rec.LastUpdated.UTC().Format(time.RFC3339)
		}
		row := []string{
			rec.CigarID, rec.Title, rec.URL, rec.Brand, rec.Line,
			rec.Wrapper, rec.Vitola, rec.Size, qty, rec.Price,
			strconv.FormatBool(rec.InStock), ts,
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}

// backup copies the current file to a timestamped sibling and prunes old
// backups beyond the retention bound.
func (s *Store) backup() error {
	if s.retention == 0 {
		return nil
	}
	src, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	stamp := time.Now().UTC().Format("20060102T150405")
	backupPath := fmt.Sprintf("%s.bak.%s", s.path, stamp)
	dst, err := os.Create(backupPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}

	return s.pruneBackups()
}

func (s *Store) pruneBackups() error {
	matches, err := filepath.Glob(s.path + ".bak.*")
	if err != nil {
		return err
	}
	if len(matches) <= s.retention {
		return nil
	}
	sort.Strings(matches) // timestamp suffix sorts oldest first
	for _, old := range matches[:len(matches)-s.retention] {
		if err := os.Remove(old); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeStockToken maps retailer-dependent legacy stock tokens onto a
// boolean ("True", "1", "yes", "in stock", ...).
func NormalizeStockToken(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "yes", "y", "in stock", "instock", "in_stock", "available":
		return true
	default:
		return false
	}
}
