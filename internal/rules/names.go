package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// honorifics are dropped before names are compared.
var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "dr": true, "prof": true,
	"shri": true, "sri": true, "smt": true, "kumari": true, "km": true, "master": true,
}

// NormalizeName case-folds s, strips diacritics and punctuation, drops
// honorifics and collapses whitespace.
func NormalizeName(s string) string {
	// Transformers keep state, so each call builds its own chain.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	folded := cases.Fold().String(plain)

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if honorifics[f] {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// NamesMatch reports whether a and b plausibly name the same person. Token
// order is ignored and a single-letter initial matches a full token, but at
// least one full token must agree.
func NamesMatch(a, b string) bool {
	ta := strings.Fields(NormalizeName(a))
	tb := strings.Fields(NormalizeName(b))
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	if strings.Join(ta, "") == strings.Join(tb, "") {
		return true
	}
	short, long := ta, tb
	if len(short) > len(long) {
		short, long = long, short
	}

	used := make([]bool, len(long))
	full := 0
	for _, s := range short {
		matched := false
		// Exact tokens first so an initial does not consume a full match.
		for i, l := range long {
			if !used[i] && s == l {
				used[i], matched = true, true
				full++
				break
			}
		}
		if !matched {
			for i, l := range long {
				if !used[i] && initialMatch(s, l) {
					used[i], matched = true, true
					break
				}
			}
		}
		if !matched {
			return false
		}
	}
	return full > 0
}

func initialMatch(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	switch {
	case len(ra) == 1:
		return rb[0] == ra[0]
	case len(rb) == 1:
		return ra[0] == rb[0]
	}
	return false
}
