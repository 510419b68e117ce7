package model

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Amount is a monetary or numeric value decoded leniently from model output.
// It accepts JSON numbers, null, and numeric strings with grouping separators
// and currency markers ("₹1,20,000.50", "Rs. 4500") as well as Indian unit
// words ("1.2 lakh", "2 crore"). Unparseable strings decode to zero.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(ParseAmount(s))
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		*a = 0
		return nil
	}
	*a = Amount(f)
	return nil
}

// Float returns the value as float64.
func (a Amount) Float() float64 { return float64(a) }

// unitScale maps the unit word that follows a number to its multiplier.
// LPA (lakhs per annum) scales to the annual rupee figure.
var unitScale = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"l":        1e5,
	"lac":      1e5,
	"lacs":     1e5,
	"lakh":     1e5,
	"lakhs":    1e5,
	"lpa":      1e5,
	"cr":       1e7,
	"crs":      1e7,
	"crore":    1e7,
	"crores":   1e7,
}

// unitWord returns the lowercase letters directly after the last digit of s.
func unitWord(s string) string {
	last := strings.LastIndexFunc(s, unicode.IsDigit)
	if last < 0 {
		return ""
	}
	rest := strings.TrimLeft(s[last+1:], " .")
	end := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) })
	if end >= 0 {
		rest = rest[:end]
	}
	return strings.ToLower(rest)
}

// ParseAmount extracts a number from a loosely formatted string and applies
// a trailing unit word when present.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	negative := strings.HasPrefix(s, "-") || (strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))
	var sb strings.Builder
	seenDot := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			sb.WriteRune(r)
		case r == '.' && !seenDot && sb.Len() > 0:
			seenDot = true
			sb.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(sb.String(), "."), 64)
	if err != nil {
		return 0
	}
	if scale, ok := unitScale[unitWord(s)]; ok {
		f *= scale
	}
	if negative {
		return -f
	}
	return f
}

// OptionalNumber is a nullable numeric value (percentage, CGPA).
type OptionalNumber struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *OptionalNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = OptionalNumber{}
		return nil
	}
	var a Amount
	if err := a.UnmarshalJSON(b); err != nil {
		return err
	}
	if b[0] == '"' {
		var s string
		_ = json.Unmarshal(b, &s)
		if strings.IndexFunc(s, unicode.IsDigit) < 0 {
			*n = OptionalNumber{}
			return nil
		}
	}
	*n = OptionalNumber{Value: a.Float(), Set: true}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n OptionalNumber) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Num constructs a set OptionalNumber.
func Num(v float64) OptionalNumber { return OptionalNumber{Value: v, Set: true} }

// Year is a calendar year decoded from a number or a string such as "2019"
// or "March 2019".
type Year int

// UnmarshalJSON implements json.Unmarshaler.
func (y *Year) UnmarshalJSON(b []byte) error {
	var a Amount
	if err := a.UnmarshalJSON(b); err != nil {
		return err
	}
	*y = Year(int(a.Float()))
	if b := bytes.TrimSpace(b); len(b) > 0 && b[0] == '"' {
		var s string
		_ = json.Unmarshal(b, &s)
		if m := yearPattern.FindString(s); m != "" {
			v, _ := strconv.Atoi(m)
			*y = Year(v)
		}
	}
	return nil
}

var yearPattern = regexp.MustCompile(`(19|20)\d{2}`)
