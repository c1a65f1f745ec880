package usecase

import (
	"regexp"
	"strings"
)

// TitleParser extracts brand, line, wrapper, and vitola attributes from
// retailer product titles. Matching is keyword-based and ordered so the
// most specific pattern wins.
type TitleParser struct{}

// Compiled patterns for title cleanup
var (
	// Matches packaging suffixes like "Box of 25", "25ct", "5 Pack"
	packagingSuffixPattern = regexp.MustCompile(`(?i)[\-,(]?\s*(box\s*of\s*\d+|\d+\s*(ct|count|pack|pk)\b)\s*\)?`)

	// Matches ring gauge dimensions like "7x50" or "6 x 60"
	dimensionPattern = regexp.MustCompile(`\b(\d(?:\.\d+)?)\s*[xX]\s*(\d{2})\b`)

	titleMultiSpace = regexp.MustCompile(`\s+`)
)

// brandKeyword pairs a canonical brand name with the lowercase tokens
// that identify it. Order matters: earlier entries are checked first so
// multi-word brands beat their substrings.
type brandKeyword struct {
	brand    string
	keywords []string
}

var brandKeywords = []brandKeyword{
	{"La Aroma de Cuba", []string{"la aroma de cuba", "aroma de cuba"}},
	{"La Gloria Cubana", []string{"la gloria cubana", "gloria cubana"}},
	{"La Flor Dominicana", []string{"la flor dominicana", "lfd"}},
	{"El Rey del Mundo", []string{"el rey del mundo", "rey del mundo"}},
	{"Hoyo de Monterrey", []string{"hoyo de monterrey", "hoyo"}},
	{"Flor de las Antillas", []string{"flor de las antillas"}},
	{"Romeo y Julieta", []string{"romeo y julieta", "romeo"}},
	{"Arturo Fuente", []string{"arturo fuente", "fuente", "don carlos", "opus"}},
	{"Drew Estate", []string{"drew estate", "liga privada", "undercrown", "deadwood", "acid"}},
	{"J.C. Newman", []string{"j.c. newman", "jc newman", "brick house", "perla del mar"}},
	{"My Father", []string{"my father", "don pepin"}},
	{"Alec Bradley", []string{"alec bradley"}},
	{"Rocky Patel", []string{"rocky patel"}},
	{"AJ Fernandez", []string{"aj fernandez", "a.j. fernandez"}},
	{"H. Upmann", []string{"h. upmann", "upmann"}},
	{"San Cristobal", []string{"san cristobal"}},
	{"Montecristo", []string{"montecristo"}},
	{"Macanudo", []string{"macanudo"}},
	{"Cuesta Rey", []string{"cuesta rey"}},
	{"Perdomo", []string{"perdomo"}},
	{"Tatuaje", []string{"tatuaje", "surrogates"}},
	{"Partagas", []string{"partagas"}},
	{"Plasencia", []string{"plasencia"}},
	{"Davidoff", []string{"davidoff"}},
	{"Aganorsa", []string{"aganorsa"}},
	{"Curivari", []string{"curivari"}},
	{"Tatiana", []string{"tatiana"}},
	{"Padron", []string{"padron"}},
	{"Cohiba", []string{"cohiba"}},
	{"Bolivar", []string{"bolivar"}},
	{"Ashton", []string{"ashton"}},
	{"Oliva", []string{"oliva", "nub"}},
	{"Punch", []string{"punch"}},
	{"CAO", []string{"cao"}},
}

// lineKeywords maps a brand to its known lines, most specific first.
var lineKeywords = map[string][]brandKeyword{
	"Ashton": {
		{"VSG", []string{"vsg", "virgin sun grown"}},
		{"ESG", []string{"esg", "estate sun grown"}},
		{"Symmetry", []string{"symmetry"}},
		{"Heritage", []string{"heritage"}},
		{"Cabinet", []string{"cabinet"}},
		{"Classic", []string{"classic"}},
		{"Maduro", []string{"maduro"}},
	},
	"Arturo Fuente": {
		{"Gran Reserva", []string{"gran reserva"}},
		{"Chateau Fuente", []string{"chateau fuente", "chateau"}},
		{"Short Story", []string{"short story"}},
		{"Hemingway", []string{"hemingway"}},
		{"Don Carlos", []string{"don carlos"}},
		{"Opus X", []string{"opus x", "opusx", "opus"}},
		{"Anejo", []string{"anejo"}},
	},
	"Oliva": {
		{"Serie V Melanio", []string{"melanio"}},
		{"Connecticut Reserve", []string{"connecticut reserve"}},
		{"Master Blends", []string{"master blends", "master blend"}},
		{"Serie V", []string{"serie v", "series v"}},
		{"Serie G", []string{"serie g", "series g"}},
		{"Serie O", []string{"serie o", "series o"}},
		{"Saison", []string{"saison"}},
	},
	"Padron": {
		{"1964 Anniversary", []string{"1964"}},
		{"1926 Serie", []string{"1926"}},
		{"Family Reserve", []string{"family reserve"}},
		{"Damaso", []string{"damaso"}},
		{"Thousand Series", []string{"2000", "3000", "4000", "5000", "6000", "7000"}},
	},
	"Drew Estate": {
		{"Liga Privada No. 9", []string{"liga privada no. 9", "liga privada no 9", "no. 9"}},
		{"Liga Privada T52", []string{"t52"}},
		{"Undercrown Maduro", []string{"undercrown maduro"}},
		{"Undercrown Shade", []string{"undercrown shade"}},
		{"Liga Privada", []string{"liga privada"}},
		{"Undercrown", []string{"undercrown"}},
		{"Tabak Especial", []string{"tabak especial"}},
		{"Herrera Esteli", []string{"herrera esteli"}},
		{"Deadwood", []string{"deadwood"}},
		{"Acid", []string{"acid"}},
	},
	"Montecristo": {
		{"1935 Anniversary Nicaragua", []string{"1935"}},
		{"Platinum", []string{"platinum"}},
		{"Espada", []string{"espada"}},
		{"Classic", []string{"classic"}},
		{"White", []string{"white"}},
		{"Epic", []string{"epic"}},
	},
	"Romeo y Julieta": {
		{"Reserva Real", []string{"reserva real"}},
		{"House of Romeo", []string{"house of romeo"}},
		{"Nicaragua", []string{"nicaragua"}},
		{"Vintage", []string{"vintage"}},
		{"Reserve", []string{"reserve"}},
		{"1875", []string{"1875"}},
	},
	"Perdomo": {
		{"10th Anniversary Champagne", []string{"10th anniversary champagne", "champagne"}},
		{"20th Anniversary", []string{"20th anniversary"}},
		{"Habano Connecticut", []string{"habano connecticut"}},
		{"Habano Sungrown", []string{"habano sungrown", "habano sun grown"}},
		{"Habano Maduro", []string{"habano maduro"}},
		{"Lot 23", []string{"lot 23"}},
		{"Habano", []string{"habano"}},
		{"Reserve", []string{"reserve"}},
	},
	"My Father": {
		{"Le Bijou 1922", []string{"le bijou 1922", "le bijou"}},
		{"The Judge", []string{"the judge", "judge"}},
		{"Connecticut", []string{"connecticut"}},
	},
	"AJ Fernandez": {
		{"New World", []string{"new world"}},
		{"San Lotano", []string{"san lotano"}},
	},
	"CAO": {
		{"Flathead", []string{"flathead"}},
		{"Brazilia", []string{"brazilia"}},
		{"Italia", []string{"italia"}},
		{"Gold", []string{"gold"}},
		{"BX3", []string{"bx3"}},
	},
	"Punch": {
		{"Rare Corojo", []string{"rare corojo"}},
		{"Gran Puro", []string{"gran puro"}},
		{"Signature", []string{"signature"}},
		{"Clasico", []string{"clasico"}},
	},
	"Macanudo": {
		{"Inspirado", []string{"inspirado"}},
		{"Gold Label", []string{"gold label"}},
		{"Vintage", []string{"vintage"}},
		{"Cafe", []string{"cafe"}},
	},
	"Alec Bradley": {
		{"Black Market", []string{"black market"}},
		{"Prensado", []string{"prensado"}},
		{"Tempus", []string{"tempus"}},
		{"Connecticut", []string{"connecticut"}},
	},
	"H. Upmann": {
		{"1844 Reserve", []string{"1844 reserve", "1844"}},
	},
	"La Aroma de Cuba": {
		{"Edicion Especial", []string{"edicion especial"}},
		{"Mi Amor", []string{"mi amor"}},
		{"New Blend", []string{"new blend"}},
	},
	"San Cristobal": {
		{"Clasico", []string{"clasico"}},
	},
	"J.C. Newman": {
		{"Brick House", []string{"brick house"}},
		{"Perla del Mar", []string{"perla del mar"}},
	},
}

// wrapperIndicators maps canonical wrapper names to title keywords.
var wrapperIndicators = []brandKeyword{
	{"Connecticut Broadleaf", []string{"broadleaf", "maduro"}},
	{"Ecuadorian Sungrown", []string{"sun grown", "sungrown"}},
	{"Mexican San Andres", []string{"san andres", "mexican"}},
	{"Ecuadorian Habano", []string{"ecuadorian", "habano"}},
	{"Connecticut Shade", []string{"connecticut", "shade", "natural"}},
	{"Cameroon", []string{"cameroon"}},
}

// vitolaKeywords is ordered most specific first so "gran robusto" is
// not swallowed by "robusto".
var vitolaKeywords = []brandKeyword{
	{"Eye of the Shark", []string{"eye of the shark"}},
	{"Double Robusto", []string{"double robusto"}},
	{"Gran Robusto", []string{"gran robusto"}},
	{"Petit Corona", []string{"petit corona"}},
	{"Robusto", []string{"robusto"}},
	{"Churchill", []string{"churchill"}},
	{"Torpedo", []string{"torpedo"}},
	{"Belicoso", []string{"belicoso"}},
	{"Corona", []string{"corona"}},
	{"Gordo", []string{"gordo"}},
	{"Toro", []string{"toro"}},
	{"No. 4", []string{"no. 4", "no 4"}},
}

// ParsedTitle holds attributes recovered from a product title. Fields
// the title does not mention are left empty.
type ParsedTitle struct {
	Brand   string
	Line    string
	Wrapper string
	Vitola  string
	Size    string
}

func NewTitleParser() *TitleParser {
	return &TitleParser{}
}

// Parse extracts cigar attributes from a retailer product title.
func (p *TitleParser) Parse(title string) ParsedTitle {
	var parsed ParsedTitle
	lower := strings.ToLower(p.Clean(title))

	for _, bk := range brandKeywords {
		if containsAny(lower, bk.keywords) {
			parsed.Brand = bk.brand
			break
		}
	}

	if parsed.Brand != "" {
		for _, lk := range lineKeywords[parsed.Brand] {
			if containsAny(lower, lk.keywords) {
				parsed.Line = lk.brand
				break
			}
		}
	}

	for _, wk := range wrapperIndicators {
		if containsAny(lower, wk.keywords) {
			parsed.Wrapper = wk.brand
			break
		}
	}

	for _, vk := range vitolaKeywords {
		if containsAny(lower, vk.keywords) {
			parsed.Vitola = vk.brand
			break
		}
	}

	if m := dimensionPattern.FindStringSubmatch(title); m != nil {
		parsed.Size = m[1] + " x " + m[2]
	}

	return parsed
}

// Clean strips packaging suffixes and collapses whitespace.
func (p *TitleParser) Clean(title string) string {
	cleaned := packagingSuffixPattern.ReplaceAllString(title, " ")
	cleaned = titleMultiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
