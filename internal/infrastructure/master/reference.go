package master

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

// Reference is the canonical per-SKU metadata table, loaded once and
// read-only thereafter. Tab-separated by convention (master_cigars.tsv),
// comma-separated files load too.
type Reference struct {
	entries map[string]domain.MasterEntry
	aliases map[string]string // lowercased wrapper alias -> canonical wrapper
}

// Load reads the master reference file. A missing file yields an empty,
// usable reference: enrichment simply never matches.
func Load(path string) (*Reference, error) {
	ref := &Reference{
		entries: make(map[string]domain.MasterEntry),
		aliases: make(map[string]string),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		logrus.Warnf("master reference %s not found, enrichment disabled", path)
		return ref, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		r.Comma = '\t'
	}

	header, err := r.Read()
	if err == io.EOF {
		return ref, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		col[key] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		entry := domain.MasterEntry{
			CigarID:      field(row, "cigar_id"),
			Brand:        field(row, "brand"),
			Line:         field(row, "line"),
			Wrapper:      field(row, "wrapper"),
			WrapperAlias: field(row, "wrapper_alias"),
			Vitola:       field(row, "vitola"),
			Length:       field(row, "length"),
			RingGauge:    field(row, "ring_gauge"),
		}
		if qty := field(row, "box_quantity"); qty != "" {
			if n, err := strconv.Atoi(qty); err == nil {
				entry.BoxQuantity = n
			}
		}
		if entry.CigarID == "" {
			continue
		}
		ref.entries[entry.CigarID] = entry

		// Both directions feed the alias table: alias -> canonical and
		// canonical -> canonical.
		if entry.Wrapper != "" {
			ref.aliases[strings.ToLower(entry.Wrapper)] = entry.Wrapper
			if entry.WrapperAlias != "" {
				ref.aliases[strings.ToLower(entry.WrapperAlias)] = entry.Wrapper
			}
		}
	}

	logrus.Infof("master reference loaded: %d entries, %d wrapper aliases", len(ref.entries), len(ref.aliases))
	return ref, nil
}

// Lookup returns the canonical entry for a cigar_id.
func (r *Reference) Lookup(cigarID string) (*domain.MasterEntry, bool) {
	entry, ok := r.entries[cigarID]
	if !ok {
		return nil, false
	}
	return &entry, true
}

// WrapperAliases exposes the canonical alias table built from the master
// data, merged with the common industry aliases.
func (r *Reference) WrapperAliases() map[string]string {
	merged := make(map[string]string, len(r.aliases)+len(industryAliases))
	for alias, canonical := range industryAliases {
		merged[alias] = canonical
	}
	for alias, canonical := range r.aliases {
		merged[alias] = canonical
	}
	return merged
}

// Len reports the number of master entries.
func (r *Reference) Len() int { return len(r.entries) }

// industryAliases covers wrapper names retailers use interchangeably,
// independent of what the master file carries.
var industryAliases = map[string]string{
	"natural":                "Connecticut Shade",
	"connecticut":            "Connecticut Shade",
	"conn":                   "Connecticut Shade",
	"ct":                     "Connecticut Shade",
	"shade":                  "Connecticut Shade",
	"shade grown":            "Connecticut Shade",
	"ecuador connecticut":    "Connecticut Shade",
	"ecuadorian connecticut": "Connecticut Shade",
	"maduro":                 "Connecticut Broadleaf",
	"connecticut broadleaf":  "Connecticut Broadleaf",
	"broadleaf":              "Connecticut Broadleaf",
	"habano":                 "Nicaraguan Habano",
	"nicaraguan":             "Nicaraguan Habano",
	"nicaraguan habano":      "Nicaraguan Habano",
	"ecuadorian habano":      "Ecuadorian Habano",
	"ecuador habano":         "Ecuadorian Habano",
	"sun grown":              "Ecuadorian Sungrown",
	"sungrown":               "Ecuadorian Sungrown",
	"ecuadorian sungrown":    "Ecuadorian Sungrown",
	"cameroon":               "Cameroon",
	"corojo":                 "Honduran Corojo",
	"honduran corojo":        "Honduran Corojo",
	"san andres":             "Mexican San Andres",
	"mexican san andres":     "Mexican San Andres",
	"mexican":                "Mexican San Andres",
}
