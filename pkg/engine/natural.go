package engine

import (
	"cmp"
	"slices"
	"strings"
)

type tokenKind uint8

const (
	tokenText tokenKind = iota
	tokenNumeric
)

type naturalToken struct {
	kind tokenKind

	// raw is the substring as it appeared in the input.
	raw string

	// norm is the comparison form: lower-cased text, or digits without leading zeros.
	norm string
}

// NaturalKey is the sort key of a string in natural order: digit runs compare as integers,
// everything else compares as case-folded text.
type NaturalKey []naturalToken

// NewNaturalKey tokenizes s into maximal runs of digits and non-digits.
func NewNaturalKey(s string) NaturalKey {
	var key NaturalKey
	for start := 0; start < len(s); {
		numeric := isDigit(s[start])
		end := start + 1
		for end < len(s) && isDigit(s[end]) == numeric {
			end++
		}

		raw := s[start:end]
		tok := naturalToken{raw: raw}
		if numeric {
			tok.kind = tokenNumeric
			tok.norm = strings.TrimLeft(raw, "0")
		} else {
			tok.kind = tokenText
			tok.norm = strings.ToLower(raw)
		}
		key = append(key, tok)
		start = end
	}
	return key
}

// Compare returns -1, 0 or +1 as k sorts before, equal to, or after other.
func (k NaturalKey) Compare(other NaturalKey) int {
	for i := 0; i < len(k) && i < len(other); i++ {
		if c := k[i].compare(other[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(k), len(other))
}

func (t naturalToken) compare(o naturalToken) int {
	switch {
	case t.kind == tokenNumeric && o.kind == tokenNumeric:
		// Arbitrary precision: with leading zeros stripped, a longer digit run is larger.
		if c := cmp.Compare(len(t.norm), len(o.norm)); c != 0 {
			return c
		}
		return strings.Compare(t.norm, o.norm)
	case t.kind == tokenText && o.kind == tokenText:
		return strings.Compare(t.norm, o.norm)
	default:
		return strings.Compare(t.text(), o.text())
	}
}

// text is the form used when a numeric token meets a text token.
func (t naturalToken) text() string {
	if t.kind == tokenNumeric {
		return t.raw
	}
	return t.norm
}

// CompareNatural compares a and b in natural order, breaking ties by plain byte order.
func CompareNatural(a, b string) int {
	if c := NewNaturalKey(a).Compare(NewNaturalKey(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// SortNatural sorts ss in natural order.
func SortNatural(ss []string) {
	slices.SortStableFunc(ss, CompareNatural)
}

// SortNaturalFunc sorts items in natural order of key(item). Each key is computed once.
func SortNaturalFunc[E any](items []E, key func(E) string) {
	type keyed struct {
		item E
		raw  string
		key  NaturalKey
	}

	tmp := make([]keyed, len(items))
	for i, item := range items {
		raw := key(item)
		tmp[i] = keyed{item: item, raw: raw, key: NewNaturalKey(raw)}
	}

	slices.SortStableFunc(tmp, func(a, b keyed) int {
		if c := a.key.Compare(b.key); c != 0 {
			return c
		}
		return strings.Compare(a.raw, b.raw)
	})

	for i := range tmp {
		items[i] = tmp[i].item
	}
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
