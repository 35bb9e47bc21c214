package catalog

// mapper.go resolves which raw header feeds each canonical field.
//
// Matching is bidirectional containment on folded text: a header matches an
// alias when the header contains the alias ("preco_unitario_produto" vs
// "preco") or the alias contains the header ("qtd" vs "quantidade").
// A header equal to an alias is bound first, so "Preço Promocional" goes to
// the promotional price even when "Preço" comes later. Remaining fields are
// resolved in declared order and the earliest matching header in file column
// order wins, unless another unresolved field matches that header through a
// longer alias. A header claimed by one field is not offered to later fields.

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldHeader lower-cases and trims a header and strips accent marks.
func FoldHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// BuildColumnMap maps each canonical field to the first header that matches
// one of its aliases. Unmatched fields are left out of the map.
func BuildColumnMap(headers []string, aliases AliasTable) ColumnMap {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = FoldHeader(h)
	}
	foldedAliases := make(map[Field][]string, len(Fields))
	for _, field := range Fields {
		for _, a := range aliases.Aliases(field) {
			if a = FoldHeader(a); a != "" {
				foldedAliases[field] = append(foldedAliases[field], a)
			}
		}
	}

	cm := make(ColumnMap, len(Fields))
	claimed := make([]bool, len(headers))
	claim := func(field Field, i int) {
		cm[field] = headers[i]
		claimed[i] = true
	}

	for _, field := range Fields {
		for i, h := range folded {
			if !claimed[i] && h != "" && exactMatch(h, foldedAliases[field]) {
				claim(field, i)
				break
			}
		}
	}

	for _, field := range Fields {
		if _, done := cm[field]; done {
			continue
		}
		fallback := -1
		for i, h := range folded {
			if claimed[i] || h == "" {
				continue
			}
			n := matchLength(h, foldedAliases[field])
			if n == 0 {
				continue
			}
			if fallback < 0 {
				fallback = i
			}
			if !betterClaim(h, n, field, cm, foldedAliases) {
				fallback = i
				break
			}
		}
		if fallback >= 0 {
			claim(field, fallback)
		}
	}

	return cm
}

// betterClaim reports whether an unresolved field other than self matches
// header through an alias longer than n.
func betterClaim(header string, n int, self Field, cm ColumnMap, aliases map[Field][]string) bool {
	for _, other := range Fields {
		if other == self {
			continue
		}
		if _, done := cm[other]; done {
			continue
		}
		if matchLength(header, aliases[other]) > n {
			return true
		}
	}
	return false
}

func exactMatch(header string, aliases []string) bool {
	for _, alias := range aliases {
		if header == alias {
			return true
		}
	}
	return false
}

// matchLength returns the length of the longest alias that matches header by
// containment in either direction, or 0 when none does.
func matchLength(header string, aliases []string) int {
	best := 0
	for _, alias := range aliases {
		if strings.Contains(header, alias) || strings.Contains(alias, header) {
			best = max(best, len(alias))
		}
	}
	return best
}
