package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

const seedCSV = `cigar_id,title,url,brand,line,wrapper,vitola,size,box_qty,price,in_stock,last_updated
padron|1964|toro,Padron 1964 Toro,https://shop.test/padron,Padron,1964 Anniversary,Connecticut Broadleaf,Toro,6 x 52,25,359.95,True,
romeo|1875|churchill,Romeo y Julieta 1875 Churchill,https://shop.test/romeo,Romeo y Julieta,1875,,Churchill,7 x 50,25,184.99,false,
ashton|vsg|robusto,Ashton VSG Robusto,https://shop.test/ashton,Ashton,VSG,,Robusto,5.5 x 50,24,,in stock,
`

func seedStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "testshop.csv")
	if err := os.WriteFile(path, []byte(seedCSV), 0o644); err != nil {
		t.Fatalf("seeding catalog: %v", err)
	}
	return NewStore("testshop", path)
}

func TestStoreLoad(t *testing.T) {
	store := seedStore(t)

	records, err := store.Records()
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}

	t.Run("stock tokens are normalized", func(t *testing.T) {
		if !records[0].InStock {
			t.Error("padron: True should parse as in stock")
		}
		if records[1].InStock {
			t.Error("romeo: false should parse as out of stock")
		}
		if !records[2].InStock {
			t.Error("ashton: 'in stock' should parse as in stock")
		}
	})

	t.Run("blank price survives load", func(t *testing.T) {
		if records[2].Price != "" {
			t.Errorf("ashton price = %q, want empty", records[2].Price)
		}
	})
}

func TestStoreGet(t *testing.T) {
	store := seedStore(t)

	t.Run("finds unique record", func(t *testing.T) {
		rec, err := store.Get("padron|1964|toro")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if rec.Brand != "Padron" || rec.Price != "359.95" {
			t.Errorf("record = %+v", rec)
		}
	})

	t.Run("missing key is not found", func(t *testing.T) {
		if _, err := store.Get("no|such|key"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate key is an integrity failure", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "dup.csv")
		dup := "cigar_id,title,url,brand,line,wrapper,vitola,size,box_qty,price,in_stock,last_updated\n" +
			"a,,,,,,,,,10.00,true,\n" +
			"a,,,,,,,,,12.00,true,\n"
		if err := os.WriteFile(path, []byte(dup), 0o644); err != nil {
			t.Fatal(err)
		}
		store := NewStore("dupshop", path)
		if _, err := store.Get("a"); !errors.Is(err, domain.ErrDataIntegrity) {
			t.Errorf("err = %v, want ErrDataIntegrity", err)
		}
	})
}

func TestStoreUpdate(t *testing.T) {
	attempt := time.Date(2026, 8, 14, 10, 0, 0, 0, time.UTC)

	t.Run("merges price and stock", func(t *testing.T) {
		store := seedStore(t)
		price := 339.9
		inStock := false
		err := store.Update("padron|1964|toro", domain.CatalogUpdate{
			Price: &price, InStock: &inStock, Attempt: attempt,
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		rec, err := store.Get("padron|1964|toro")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if rec.Price != "339.90" {
			t.Errorf("price = %q, want two-decimal 339.90", rec.Price)
		}
		if rec.InStock {
			t.Error("InStock = true, want false")
		}
		if !rec.LastUpdated.Equal(attempt) {
			t.Errorf("LastUpdated = %v, want %v", rec.LastUpdated, attempt)
		}
	})

	t.Run("attempt-only update preserves prior values", func(t *testing.T) {
		store := seedStore(t)
		err := store.Update("padron|1964|toro", domain.CatalogUpdate{Attempt: attempt})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		rec, _ := store.Get("padron|1964|toro")
		if rec.Price != "359.95" || !rec.InStock {
			t.Errorf("price/stock changed by attempt-only update: %q/%v", rec.Price, rec.InStock)
		}
		if !rec.LastUpdated.Equal(attempt) {
			t.Errorf("LastUpdated = %v, want %v", rec.LastUpdated, attempt)
		}
	})

	t.Run("descriptive fields fill blanks only", func(t *testing.T) {
		store := seedStore(t)
		err := store.Update("romeo|1875|churchill", domain.CatalogUpdate{
			Wrapper: "Ecuadorian Habano",
			Brand:   "Altadis",
			Vitola:  "Double Churchill",
			Attempt: attempt,
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}

		rec, err := store.Get("romeo|1875|churchill")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if rec.Wrapper != "Ecuadorian Habano" {
			t.Errorf("Wrapper = %q, blank field should be filled", rec.Wrapper)
		}
		if rec.Brand != "Romeo y Julieta" {
			t.Errorf("Brand = %q, stored value must not be overwritten", rec.Brand)
		}
		if rec.Vitola != "Churchill" {
			t.Errorf("Vitola = %q, stored value must not be overwritten", rec.Vitola)
		}
	})

	t.Run("identical update twice leaves identical content", func(t *testing.T) {
		store := seedStore(t)
		price := 300.0
		update := domain.CatalogUpdate{Price: &price, Attempt: attempt}

		if err := store.Update("padron|1964|toro", update); err != nil {
			t.Fatal(err)
		}
		first, err := os.ReadFile(store.path)
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Update("padron|1964|toro", update); err != nil {
			t.Fatal(err)
		}
		second, err := os.ReadFile(store.path)
		if err != nil {
			t.Fatal(err)
		}
		if string(first) != string(second) {
			t.Error("repeated identical update changed the file")
		}
	})

	t.Run("zero match is not found", func(t *testing.T) {
		store := seedStore(t)
		err := store.Update("no|such|key", domain.CatalogUpdate{Attempt: attempt})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate match poisons the store", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "dup.csv")
		dup := "cigar_id,title,url,brand,line,wrapper,vitola,size,box_qty,price,in_stock,last_updated\n" +
			"a,,,,,,,,,10.00,true,\n" +
			"a,,,,,,,,,12.00,true,\n" +
			"b,,,,,,,,,20.00,true,\n"
		if err := os.WriteFile(path, []byte(dup), 0o644); err != nil {
			t.Fatal(err)
		}
		store := NewStore("dupshop", path)

		err := store.Update("a", domain.CatalogUpdate{Attempt: attempt})
		if !errors.Is(err, domain.ErrDataIntegrity) {
			t.Fatalf("err = %v, want ErrDataIntegrity", err)
		}
		if !store.Poisoned() {
			t.Error("store not poisoned after duplicate match")
		}

		// Even clean keys are refused once poisoned.
		err = store.Update("b", domain.CatalogUpdate{Attempt: attempt})
		if !errors.Is(err, domain.ErrDataIntegrity) {
			t.Errorf("err = %v, want ErrDataIntegrity for poisoned store", err)
		}
	})

	t.Run("rewrite leaves a backup", func(t *testing.T) {
		store := seedStore(t)
		price := 100.0
		if err := store.Update("padron|1964|toro", domain.CatalogUpdate{Price: &price, Attempt: attempt}); err != nil {
			t.Fatal(err)
		}
		backups, err := filepath.Glob(store.path + ".bak.*")
		if err != nil {
			t.Fatal(err)
		}
		if len(backups) == 0 {
			t.Error("no backup written before rewrite")
		}
	})
}

func TestStoreInsert(t *testing.T) {
	t.Run("new key appends", func(t *testing.T) {
		store := seedStore(t)
		err := store.Insert(domain.ProductRecord{
			CigarID: "oliva|serie-v|toro",
			Brand:   "Oliva",
			Price:   "145.00",
			InStock: true,
		})
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		records, _ := store.Records()
		if len(records) != 4 {
			t.Errorf("records = %d, want 4", len(records))
		}
	})

	t.Run("existing key is rejected", func(t *testing.T) {
		store := seedStore(t)
		err := store.Insert(domain.ProductRecord{CigarID: "padron|1964|toro"})
		if !errors.Is(err, domain.ErrDuplicateKey) {
			t.Errorf("err = %v, want ErrDuplicateKey", err)
		}
	})

	t.Run("invalid record is rejected", func(t *testing.T) {
		store := seedStore(t)
		err := store.Insert(domain.ProductRecord{CigarID: "x", Price: "not-a-price"})
		if !errors.Is(err, domain.ErrInvalidRecord) {
			t.Errorf("err = %v, want ErrInvalidRecord", err)
		}
	})
}

func TestNormalizeStockToken(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true}, {"True", true}, {"TRUE", true}, {"t", true},
		{"1", true}, {"yes", true}, {"y", true},
		{"in stock", true}, {"instock", true}, {"in_stock", true},
		{"available", true},
		{"false", false}, {"0", false}, {"no", false},
		{"out of stock", false}, {"", false}, {"maybe", false},
	}
	for _, tt := range tests {
		if got := NormalizeStockToken(tt.in); got != tt.want {
			t.Errorf("NormalizeStockToken(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
