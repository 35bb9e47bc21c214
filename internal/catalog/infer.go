package catalog

// infer.go fills optional fields from the product name when the source file
// does not carry them. All three heuristics fall back to a fixed default
// instead of failing.

import (
	"regexp"
	"strings"
)

// Fallback values returned when no heuristic matches.
const (
	DefaultUnit     = "UN"
	DefaultCategory = "Other"
	DefaultBrand    = "Generic"
)

// end matches the end of a token. RE2's \b only understands ASCII, which
// would break on names like "10 pç".
const end = `(?:[^\p{L}\p{N}]|$)`

type unitPattern struct {
	unit string
	re   *regexp.Regexp
}

// unitPatterns are tested in order; kilograms precede grams and milliliters
// precede liters.
var unitPatterns = []unitPattern{
	{"KG", regexp.MustCompile(`\d\s*(?:kg|kgs|quilos?|kilos?)` + end)},
	{"G", regexp.MustCompile(`\d\s*(?:g|gr|grs|gramas?)` + end)},
	{"ML", regexp.MustCompile(`\d\s*(?:ml|mls)` + end)},
	{"L", regexp.MustCompile(`\d\s*(?:l|lt|lts|litros?)` + end)},
	{"UN", regexp.MustCompile(`\d\s*(?:un|und|unid|unids|unidades?|pc|pcs|pç|pçs)` + end)},
	{"PCT", regexp.MustCompile(`(?:^|[^\p{L}])(?:pacote|pct)` + end)},
	{"CX", regexp.MustCompile(`(?:^|[^\p{L}])(?:caixa|cx)` + end)},
	{"FD", regexp.MustCompile(`(?:^|[^\p{L}])(?:fardo|fd)` + end)},
}

// DetectUnit returns the unit of measure implied by a product name, e.g. "KG"
// for "Arroz 5kg". Defaults to DefaultUnit.
func DetectUnit(name string) string {
	s := strings.ToLower(name)
	for _, p := range unitPatterns {
		if p.re.MatchString(s) {
			return p.unit
		}
	}
	return DefaultUnit
}

type categoryGroup struct {
	category string
	re       *regexp.Regexp
}

// categoryGroups are tested in order; the first match wins when a keyword
// could belong to more than one group.
var categoryGroups = []categoryGroup{
	{"Food", regexp.MustCompile(`arroz|feij[aã]o|macarr[aã]o|a[cç][uú]car|farinha|[oó]leo|azeite|caf[eé]|biscoito|bolacha|molho|milho|aveia|tempero|(?:^|[^\p{L}])sal` + end)},
	{"Beverages", regexp.MustCompile(`refrigerante|refri` + end + `|suco|[aá]gua|cerveja|vinho|bebida|energ[eé]tico|guaran[aá]|(?:^|[^\p{L}])ch[aá]` + end)},
	{"Cleaning", regexp.MustCompile(`detergente|sab[aã]o em p[oó]|desinfetante|amaciante|alvejante|limpador|multiuso|esponja|lustra|sanit[aá]ria`)},
	{"Hygiene", regexp.MustCompile(`sabonete|shampoo|xampu|condicionador|creme dental|pasta de dente|desodorante|papel higi[eê]nico|escova de dente|absorvente|fralda`)},
	{"Meat & Deli", regexp.MustCompile(`carne|frango|bovin|su[ií]n|lingui[cç]a|presunto|mortadela|salame|bacon|peixe|fil[eé]|picanha|salsicha|peito de peru`)},
	{"Produce", regexp.MustCompile(`banana|ma[cç][aã]|laranja|tomate|batata|cebola|alface|cenoura|fruta|legume|verdura|lim[aã]o|alho`)},
	{"Bakery", regexp.MustCompile(`p[aã]o|p[aã]es|bolo|torta|croissant|baguete|rosca|sonho`)},
	{"Dairy", regexp.MustCompile(`leite|queijo|iogurte|manteiga|requeij[aã]o|margarina|nata`)},
}

// InferCategory returns the category implied by keywords in a product name.
// Defaults to DefaultCategory.
func InferCategory(name string) string {
	s := strings.ToLower(name)
	for _, g := range categoryGroups {
		if g.re.MatchString(s) {
			return g.category
		}
	}
	return DefaultCategory
}

// knownBrands is searched in order with a case-insensitive substring match.
// Multi-word brands come before brands they contain.
var knownBrands = []string{
	"Tio João", "Camil", "Prato Fino", "Kicaldo", "Namorado",
	"Nestlé", "Coca-Cola", "Guaraná Antarctica", "Pepsi", "Ambev",
	"Sadia", "Perdigão", "Seara", "Friboi", "Aurora",
	"Italac", "Piracanjuba", "Parmalat", "Elegê", "Itambé", "Danone",
	"Ypê", "Veja", "Limpol", "Comfort",
	"Colgate", "Dove", "Nivea", "Palmolive", "Rexona",
	"Bauducco", "Pilão", "Melitta", "3 Corações",
	"Qualy", "Liza", "Soya", "União", "Dona Benta",
}

// properNoun matches a capitalized word such as "Leite" or "Âmbar".
var properNoun = regexp.MustCompile(`^\p{Lu}\p{Ll}+$`)

// InferBrand returns a known brand found in the name, otherwise the first
// capitalized word longer than two letters, otherwise DefaultBrand.
//
// The fallback can pick a word that is not a brand ("Leite" in "Leite
// Integral"); callers see it flagged as inferred.
func InferBrand(name string) string {
	lower := strings.ToLower(name)
	for _, brand := range knownBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return brand
		}
	}

	for _, word := range strings.Fields(name) {
		if len([]rune(word)) > 2 && properNoun.MatchString(word) {
			return word
		}
	}
	return DefaultBrand
}
