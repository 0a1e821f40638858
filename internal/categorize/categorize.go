// Package categorize suggests an expense category from a free-text
// description. It knows English and Portuguese keywords.
package categorize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugs returned by Suggest. They match the seeded categories table.
const (
	Food      = "food"
	Housing   = "housing"
	Transport = "transport"
	Health    = "health"
	Education = "education"
	Leisure   = "leisure"
	Utilities = "utilities"
	Shopping  = "shopping"
	Other     = "other"
)

// Suggest returns the category slug for description. Matching ignores case
// and accents: exact match first, then keywords at the start of a word.
// Falls back to Other.
func Suggest(description string) string {
	text := normalize(description)
	if text == "" {
		return Other
	}

	if slug, ok := exactMatch[text]; ok {
		return slug
	}

	padded := " " + text
	for _, entry := range keywordMatches {
		if strings.Contains(padded, " "+entry.keyword) {
			return entry.slug
		}
	}

	return Other
}

// normalize lowercases s, strips diacritics and collapses everything that
// is not a letter or digit into single spaces.
func normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	words := strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

var exactMatch = map[string]string{
	"rent":        Housing,
	"aluguel":     Housing,
	"condominio":  Housing,
	"mortgage":    Housing,
	"iptu":        Housing,
	"gas":         Transport,
	"gasolina":    Transport,
	"fuel":        Transport,
	"uber":        Transport,
	"99":          Transport,
	"taxi":        Transport,
	"onibus":      Transport,
	"metro":       Transport,
	"bus":         Transport,
	"lunch":       Food,
	"dinner":      Food,
	"breakfast":   Food,
	"almoco":      Food,
	"jantar":      Food,
	"cafe":        Food,
	"coffee":      Food,
	"ifood":       Food,
	"pharmacy":    Health,
	"farmacia":    Health,
	"dentist":     Health,
	"dentista":    Health,
	"gym":         Health,
	"academia":    Health,
	"tuition":     Education,
	"mensalidade": Education,
	"books":       Education,
	"livros":      Education,
	"netflix":     Leisure,
	"spotify":     Leisure,
	"cinema":      Leisure,
	"movies":      Leisure,
	"internet":    Utilities,
	"water":       Utilities,
	"agua":        Utilities,
	"electricity": Utilities,
	"luz":         Utilities,
	"energia":     Utilities,
	"clothes":     Shopping,
	"roupas":      Shopping,
	"amazon":      Shopping,
}

type keyword struct {
	keyword string
	slug    string
}

// keywordMatches is ordered longer and more specific first. A keyword
// matches at the start of any word, so "restaurant" also covers
// "restaurants" and "restaurante".
var keywordMatches = []keyword{
	// Multi-word phrases
	{"health insurance", Health},
	{"plano de saude", Health},
	{"conta de luz", Utilities},
	{"conta de agua", Utilities},
	{"conta de gas", Utilities},
	{"gas bill", Utilities},
	{"water bill", Utilities},
	{"phone bill", Utilities},
	{"car insurance", Transport},
	{"seguro do carro", Transport},
	{"home insurance", Housing},
	{"material escolar", Education},
	{"school supplies", Education},
	{"ice cream", Food},

	// Food
	{"supermarket", Food},
	{"supermercado", Food},
	{"mercado", Food},
	{"grocer", Food},
	{"restaurant", Food},
	{"padaria", Food},
	{"bakery", Food},
	{"acougue", Food},
	{"hortifruti", Food},
	{"feira", Food},
	{"lanche", Food},
	{"snack", Food},
	{"pizza", Food},
	{"burger", Food},
	{"delivery", Food},
	{"ifood", Food},
	{"lunch", Food},
	{"dinner", Food},
	{"almoco", Food},
	{"jantar", Food},

	// Housing
	{"aluguel", Housing},
	{"rent", Housing},
	{"condominio", Housing},
	{"mortgage", Housing},
	{"financiamento imobiliario", Housing},
	{"reforma", Housing},
	{"repair", Housing},
	{"furniture", Housing},
	{"moveis", Housing},
	{"iptu", Housing},

	// Transport
	{"gasolina", Transport},
	{"combustivel", Transport},
	{"etanol", Transport},
	{"fuel", Transport},
	{"uber", Transport},
	{"taxi", Transport},
	{"onibus", Transport},
	{"metro", Transport},
	{"subway", Transport},
	{"parking", Transport},
	{"estacionamento", Transport},
	{"pedagio", Transport},
	{"toll", Transport},
	{"ipva", Transport},
	{"oficina", Transport},
	{"mechanic", Transport},
	{"flight", Transport},
	{"passagem", Transport},

	// Health
	{"farmacia", Health},
	{"pharmacy", Health},
	{"drogaria", Health},
	{"medic", Health},
	{"remedio", Health},
	{"doctor", Health},
	{"consulta", Health},
	{"hospital", Health},
	{"dentist", Health},
	{"exame", Health},
	{"therap", Health},
	{"terapia", Health},
	{"academia", Health},
	{"gym", Health},

	// Education
	{"escola", Education},
	{"school", Education},
	{"faculdade", Education},
	{"university", Education},
	{"college", Education},
	{"tuition", Education},
	{"mensalidade", Education},
	{"curso", Education},
	{"course", Education},
	{"livro", Education},
	{"book", Education},
	{"udemy", Education},

	// Leisure
	{"cinema", Leisure},
	{"movie", Leisure},
	{"netflix", Leisure},
	{"spotify", Leisure},
	{"streaming", Leisure},
	{"show", Leisure},
	{"concert", Leisure},
	{"teatro", Leisure},
	{"theater", Leisure},
	{"viagem", Leisure},
	{"travel", Leisure},
	{"hotel", Leisure},
	{"bar", Leisure},
	{"game", Leisure},
	{"jogo", Leisure},

	// Utilities
	{"internet", Utilities},
	{"electric", Utilities},
	{"energia", Utilities},
	{"luz", Utilities},
	{"agua", Utilities},
	{"water", Utilities},
	{"telefone", Utilities},
	{"celular", Utilities},
	{"phone", Utilities},
	{"gas", Utilities},

	// Shopping
	{"roupa", Shopping},
	{"clothes", Shopping},
	{"clothing", Shopping},
	{"shoes", Shopping},
	{"sapato", Shopping},
	{"tenis", Shopping},
	{"shopping", Shopping},
	{"amazon", Shopping},
	{"magazine", Shopping},
	{"eletronico", Shopping},
	{"electronics", Shopping},
	{"presente", Shopping},
	{"gift", Shopping},
}
