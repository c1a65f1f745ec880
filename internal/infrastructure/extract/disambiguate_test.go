package extract

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/cigarpricescout/pipeline/internal/domain"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse test html: %v", err)
	}
	return doc
}

func genericProfile() LocatorProfile {
	return ProfileFor("generic")
}

func TestDisambiguatePrice(t *testing.T) {
	t.Run("single plausible token is the price", func(t *testing.T) {
		doc := parseDoc(t, `<html><body>
			<h1>Padron 1964 Anniversary Toro</h1>
			<span class="price">$211.99</span>
		</body></html>`)

		res, err := disambiguate(doc, "https://shop.test/p", genericProfile())
		if err != nil {
			t.Fatalf("disambiguate returned error: %v", err)
		}
		if res.Price != 211.99 {
			t.Errorf("Price = %.2f, want 211.99", res.Price)
		}
		if res.OriginalPrice != 0 {
			t.Errorf("OriginalPrice = %.2f, want 0", res.OriginalPrice)
		}
	})

	t.Run("strikethrough price becomes the original", func(t *testing.T) {
		doc := parseDoc(t, `<html><body>
			<div><del>$140.00</del> <span class="price">$100.00</span></div>
		</body></html>`)

		res, err := disambiguate(doc, "https://shop.test/p", genericProfile())
		if err != nil {
			t.Fatalf("disambiguate returned error: %v", err)
		}
		if res.Price != 100.00 {
			t.Errorf("Price = %.2f, want 100.00", res.Price)
		}
		if res.OriginalPrice != 140.00 {
			t.Errorf("OriginalPrice = %.2f, want 140.00", res.OriginalPrice)
		}
		if math.Abs(res.DiscountPercent-28.57) > 0.01 {
			t.Errorf("DiscountPercent = %.2f, want 28.57", res.DiscountPercent)
		}
	})

	t.Run("MSRP label marks an original without strikethrough", func(t *testing.T) {
		doc := parseDoc(t, `<html><body>
			<p>MSRP: <span class="price">$250.00</span></p>
			<p>Your price: <span class="price">$199.95</span></p>
		</body></html>`)

		res, err := disambiguate(doc, "https://shop.test/p", genericProfile())
		if err != nil {
			t.Fatalf("disambiguate returned error: %v", err)
		}
		if res.Price != 199.95 {
			t.Errorf("Price = %.2f, want 199.95", res.Price)
		}
		if res.OriginalPrice != 250.00 {
			t.Errorf("OriginalPrice = %.2f, want 250.00", res.OriginalPrice)
		}
	})

	t.Run("implausible tokens are rejected", func(t *testing.T) {
		doc := parseDoc(t, `<html><body>
			<span class="price">$7.50</span>
			<span class="price">$9999.00</span>
		</body></html>`)

		_, err := disambiguate(doc, "https://shop.test/p", genericProfile())
		if !errors.Is(err, domain.ErrInsufficientData) {
			t.Errorf("err = %v, want ErrInsufficientData", err)
		}
	})

	t.Run("quantity-adjacent price beats incidental prices", func(t *testing.T) {
		doc := parseDoc(t, `<html><body>
			<span class="price">Box of 25 - $299.99</span>
			<span class="price">$75.00</span>
		</body></html>`)

		res, err := disambiguate(doc, "https://shop.test/p", genericProfile())
		if err != nil {
			t.Fatalf("disambiguate returned error: %v", err)
		}
		if res.Price != 299.99 {
			t.Errorf("Price = %.2f, want 299.99", res.Price)
		}
	})

	t.Run("equal struck price yields no discount", func(t *testing.T) {
		doc := parseDoc(t, `<html><body>
			<div><del>$100.00</del> <span class="price">$100.00</span></div>
		</body></html>`)

		res, err := disambiguate(doc, "https://shop.test/p", genericProfile())
		if err != nil {
			t.Fatalf("disambiguate returned error: %v", err)
		}
		if res.OriginalPrice != 0 || res.DiscountPercent != 0 {
			t.Errorf("original/discount = %.2f/%.2f, want 0/0", res.OriginalPrice, res.DiscountPercent)
		}
	})

	t.Run("dollar fallback when selectors match nothing", func(t *testing.T) {
		doc := parseDoc(t, `<html><body>
			<div class="custom-markup">Only $189.95 today</div>
		</body></html>`)

		res, err := disambiguate(doc, "https://shop.test/p", genericProfile())
		if err != nil {
			t.Fatalf("disambiguate returned error: %v", err)
		}
		if res.Price != 189.95 {
			t.Errorf("Price = %.2f, want 189.95", res.Price)
		}
	})
}

func TestResolveStock(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{
			name: "negative text wins over enabled control",
			html: `<html><body><p>Sold Out</p><button type="submit">Add to Cart</button></body></html>`,
			want: false,
		},
		{
			name: "disabled control is out of stock",
			html: `<html><body><button type="submit" disabled>Add to Cart</button></body></html>`,
			want: false,
		},
		{
			name: "positive text is in stock",
			html: `<html><body><p>In Stock</p></body></html>`,
			want: true,
		},
		{
			name: "enabled control is in stock",
			html: `<html><body><button type="submit">Add to Cart</button></body></html>`,
			want: true,
		},
		{
			name: "no signal defaults to in stock",
			html: `<html><body><p>A fine cigar</p></body></html>`,
			want: true,
		},
		{
			name: "notify me phrasing is out of stock",
			html: `<html><body><a>Notify me when available</a></body></html>`,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseDoc(t, tt.html)
			if got := resolveStock(doc, genericProfile()); got != tt.want {
				t.Errorf("resolveStock = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveBoxQuantity(t *testing.T) {
	t.Run("url segment wins first", func(t *testing.T) {
		doc := parseDoc(t, `<html><body><h1>Padron Toro - Box of 10</h1></body></html>`)
		got := resolveBoxQuantity(doc, "https://shop.test/padron-toro-box-of-25/", genericProfile())
		if got != 25 {
			t.Errorf("quantity = %d, want 25 from URL", got)
		}
	})

	t.Run("title used when url is silent", func(t *testing.T) {
		doc := parseDoc(t, `<html><body><h1>Padron Toro Box of 20</h1></body></html>`)
		got := resolveBoxQuantity(doc, "https://shop.test/padron-toro/", genericProfile())
		if got != 20 {
			t.Errorf("quantity = %d, want 20 from title", got)
		}
	})

	t.Run("count suffix in title", func(t *testing.T) {
		doc := parseDoc(t, `<html><body><h1>Oliva Serie V Robusto 24ct</h1></body></html>`)
		got := resolveBoxQuantity(doc, "https://shop.test/oliva/", genericProfile())
		if got != 24 {
			t.Errorf("quantity = %d, want 24", got)
		}
	})

	t.Run("out of range quantities are never guessed", func(t *testing.T) {
		doc := parseDoc(t, `<html><body><h1>Sampler Box of 500</h1></body></html>`)
		got := resolveBoxQuantity(doc, "https://shop.test/sampler/", genericProfile())
		if got != 0 {
			t.Errorf("quantity = %d, want 0", got)
		}
	})

	t.Run("unknown stays zero", func(t *testing.T) {
		doc := parseDoc(t, `<html><body><h1>Padron Toro</h1></body></html>`)
		got := resolveBoxQuantity(doc, "https://shop.test/padron-toro/", genericProfile())
		if got != 0 {
			t.Errorf("quantity = %d, want 0", got)
		}
	})
}

func TestProfileFor(t *testing.T) {
	t.Run("known profiles are normalized", func(t *testing.T) {
		p := ProfileFor("woocommerce")
		if p.Name != "woocommerce" {
			t.Errorf("Name = %q, want woocommerce", p.Name)
		}
		if p.PriceRange.Max <= 0 || p.QtyRange.Max <= 0 {
			t.Error("expected normalized ranges")
		}
	})

	t.Run("unknown names fall back to generic", func(t *testing.T) {
		p := ProfileFor("shopify-legacy")
		if p.Name != "generic" {
			t.Errorf("Name = %q, want generic", p.Name)
		}
		if len(p.PriceSelectors) == 0 {
			t.Error("expected default price selectors")
		}
	})
}
