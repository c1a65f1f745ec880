package extract

// Range is a plausible numeric bound used to reject spurious matches
// (navigation prices, per-stick prices) during disambiguation.
type Range struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Contains reports whether v lies within the range, inclusive.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// LocatorProfile is the declarative per-retailer extraction configuration.
// The disambiguation algorithm itself is shared; a profile only says where
// to look on a given site's markup.
type LocatorProfile struct {
	Name string `mapstructure:"name" json:"name"`

	// ProductRegion scopes candidate collection to the product area of the
	// page. Empty means the whole document.
	ProductRegion string `mapstructure:"product_region" json:"productRegion,omitempty"`

	// PriceSelectors locate elements whose text may carry the current price.
	PriceSelectors []string `mapstructure:"price_selectors" json:"priceSelectors,omitempty"`

	// OriginalSelectors locate marked-as-original prices beyond the
	// structural strikethrough elements every profile checks.
	OriginalSelectors []string `mapstructure:"original_selectors" json:"originalSelectors,omitempty"`

	// TitleSelectors locate the product title, checked in order.
	TitleSelectors []string `mapstructure:"title_selectors" json:"titleSelectors,omitempty"`

	// QuantitySelectors locate option lists or tables carrying box counts.
	QuantitySelectors []string `mapstructure:"quantity_selectors" json:"quantitySelectors,omitempty"`

	// PurchaseControl locates the add-to-cart button or equivalent.
	PurchaseControl string `mapstructure:"purchase_control" json:"purchaseControl,omitempty"`

	// PriceRange is the plausible current-price window for this retailer.
	PriceRange Range `mapstructure:"price_range" json:"priceRange"`

	// QtyRange bounds believable box quantities.
	QtyRange Range `mapstructure:"qty_range" json:"qtyRange"`
}

// Defaults shared across profiles. Individual fields are only overridden
// when a retailer's markup demands it.
var (
	defaultPriceRange = Range{Min: 50, Max: 2000}
	defaultQtyRange   = Range{Min: 5, Max: 100}

	defaultTitleSelectors = []string{
		"h1.product_title", "h1.productView-title", "h1.entry-title",
		".product-title", "h1", ".product-name",
	}

	defaultPriceSelectors = []string{
		".price .amount", ".price", ".product-price", ".price-current",
		"[itemprop=price]", "span.amount",
	}
)

// Normalize fills unset profile fields with the shared defaults.
func (p LocatorProfile) Normalize() LocatorProfile {
	if len(p.PriceSelectors) == 0 {
		p.PriceSelectors = defaultPriceSelectors
	}
	if len(p.TitleSelectors) == 0 {
		p.TitleSelectors = defaultTitleSelectors
	}
	if p.PriceRange.Max <= 0 {
		p.PriceRange = defaultPriceRange
	}
	if p.QtyRange.Max <= 0 {
		p.QtyRange = defaultQtyRange
	}
	if p.PurchaseControl == "" {
		p.PurchaseControl = "button[type=submit], .add-to-cart, button[name=add], .single_add_to_cart_button"
	}
	return p
}

// Built-in profiles for the platforms the tracked retailers run on.
// Everything else falls back to the generic profile.
var builtinProfiles = map[string]LocatorProfile{
	"woocommerce": {
		Name:          "woocommerce",
		ProductRegion: ".summary, .product",
		PriceSelectors: []string{
			".price ins .woocommerce-Price-amount",
			".price .woocommerce-Price-amount.amount",
			".summary .price .amount",
		},
		OriginalSelectors: []string{".price del .woocommerce-Price-amount"},
		TitleSelectors:    []string{"h1.product_title", "h1.entry-title"},
		QuantitySelectors: []string{"select.qty option", "table.variations td"},
		PurchaseControl:   ".single_add_to_cart_button",
	},
	"bigcommerce": {
		Name:          "bigcommerce",
		ProductRegion: ".productView",
		PriceSelectors: []string{
			".price--withoutTax", ".productView-price .price",
			".price-section .price",
		},
		OriginalSelectors: []string{".price--rrp", ".price--non-sale"},
		TitleSelectors:    []string{"h1.productView-title"},
		QuantitySelectors: []string{".productView-options option", ".productView-info-value"},
		PurchaseControl:   "#form-action-addToCart",
	},
	"generic": {
		Name: "generic",
	},
}

// ProfileFor resolves a profile by name, falling back to the generic one.
// The returned profile is normalized.
func ProfileFor(name string) LocatorProfile {
	if p, ok := builtinProfiles[name]; ok {
		return p.Normalize()
	}
	return builtinProfiles["generic"].Normalize()
}
