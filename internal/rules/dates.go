package rules

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// dateLayouts are the day-precision formats seen on Indian documents.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 January 2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/06",
	"2006/01/02",
	time.RFC3339,
}

// monthLayouts are month-precision formats used for pay periods.
var monthLayouts = []string{
	"2006-01",
	"01/2006",
	"1/2006",
	"01-2006",
	"January 2006",
	"Jan 2006",
	"Jan-2006",
	"January-2006",
	"Jan-06",
	"Jan'06",
	"January, 2006",
}

// ParseDate parses a day-precision date in any known layout.
func ParseDate(s string) (time.Time, bool) {
	return parseAny(s, dateLayouts)
}

// ParseMonth parses a pay period and returns the first day of that month.
// Full dates are accepted and truncated.
func ParseMonth(s string) (time.Time, bool) {
	if t, ok := parseAny(s, monthLayouts); ok {
		return MonthStart(t), true
	}
	if t, ok := ParseDate(s); ok {
		return MonthStart(t), true
	}
	return time.Time{}, false
}

// parseAny tries every layout on s, then once more with month names
// title-cased, since time.Parse matches them case-sensitively.
func parseAny(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	candidates := []string{s}
	if titled := titleMonth(s); titled != s {
		candidates = append(candidates, titled)
	}
	for _, c := range candidates {
		for _, layout := range layouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// MonthStart truncates t to the first day of its month in UTC.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// MonthsBetween counts whole months from a to b. Negative when b is before a.
func MonthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	return months
}

// Age returns the completed years between dob and now.
func Age(dob, now time.Time) int {
	years := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		years--
	}
	return years
}

// titleMonth capitalizes ASCII words ("JAN", "march") rune by rune. Other
// scripts pass through unchanged.
func titleMonth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wordStart := true
	for _, r := range s {
		switch {
		case r < utf8.RuneSelf && unicode.IsLetter(r):
			if wordStart {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			wordStart = false
		default:
			b.WriteRune(r)
			wordStart = !unicode.IsLetter(r)
		}
	}
	return b.String()
}
