// Package normalizer provides deterministic text normalization for vehicle
// descriptions. Every text comparison in the engine goes through Normalize
// first; queries and catalog labels must be normalized identically or the
// similarity scores are meaningless.
package normalizer

import (
	"sort"
	"strings"
	"unicode"
)

// aliases maps known misspellings and shorthand to canonical brand/model
// tokens. Lookup is exact-token after lowercasing and accent stripping.
var aliases = map[string]string{
	"toyoya":     "toyota",
	"toyta":      "toyota",
	"vw":         "volkswagen",
	"volks":      "volkswagen",
	"chevy":      "chevrolet",
	"chev":       "chevrolet",
	"mb":         "mercedes benz",
	"mercedes":   "mercedes benz",
	"merc":       "mercedes benz",
	"nisan":      "nissan",
	"nissam":     "nissan",
	"gm":         "general motors",
	"hyundia":    "hyundai",
	"hiunday":    "hyundai",
	"mitsubichi": "mitsubishi",
	"wolkswagen": "volkswagen",
	"pick-up":    "pickup",
}

// diacritics maps accented runes common in Spanish catalog data to their
// ASCII equivalents.
var diacritics = map[rune]rune{
	'á': 'a', 'é': 'e', 'í': 'i', 'ó': 'o', 'ú': 'u', 'ü': 'u', 'ñ': 'n',
	'Á': 'a', 'É': 'e', 'Í': 'i', 'Ó': 'o', 'Ú': 'u', 'Ü': 'u', 'Ñ': 'n',
}

// Normalize lower-cases the input, strips diacritics, collapses whitespace
// and substitutes known aliases token by token. Pure function; unmappable
// tokens pass through unchanged.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if mapped, ok := diacritics[r]; ok {
			b.WriteRune(mapped)
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}

	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		if canonical, ok := aliases[tok]; ok {
			tokens[i] = canonical
		}
	}
	return strings.Join(tokens, " ")
}

// Tokens returns the normalized input split into tokens.
func Tokens(text string) []string {
	n := Normalize(text)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}

// TokenSort returns the normalized input with its tokens sorted, which makes
// the fuzzy ratio insensitive to word order.
func TokenSort(text string) string {
	toks := Tokens(text)
	if len(toks) == 0 {
		return ""
	}
	sort.Strings(toks)
	return strings.Join(toks, " ")
}
