// Package rules holds the deterministic checks applied to extracted
// documents: identifier formats, dates, amounts and names.
package rules

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	panRe      = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	passportRe = regexp.MustCompile(`^[A-Z][0-9]{7}$`)
	voterIDRe  = regexp.MustCompile(`^[A-Z]{3}[0-9]{7}$`)
	ifscRe     = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	ayRe       = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	separators = strings.NewReplacer(" ", "", "-", "", ".", "")
)

// CompactID uppercases s and strips spaces, dashes and dots.
func CompactID(s string) string {
	return strings.ToUpper(separators.Replace(strings.TrimSpace(s)))
}

// Verhoeff multiplication, permutation and inverse tables.
var (
	verhoeffD = [10][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 2, 3, 4, 0, 6, 7, 8, 9, 5},
		{2, 3, 4, 0, 1, 7, 8, 9, 5, 6},
		{3, 4, 0, 1, 2, 8, 9, 5, 6, 7},
		{4, 0, 1, 2, 3, 9, 5, 6, 7, 8},
		{5, 9, 8, 7, 6, 0, 4, 3, 2, 1},
		{6, 5, 9, 8, 7, 1, 0, 4, 3, 2},
		{7, 6, 5, 9, 8, 2, 1, 0, 4, 3},
		{8, 7, 6, 5, 9, 3, 2, 1, 0, 4},
		{9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
	}
	verhoeffP = [8][10]int{
		{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		{1, 5, 7, 6, 2, 8, 3, 0, 9, 4},
		{5, 8, 0, 3, 7, 9, 6, 1, 4, 2},
		{8, 9, 1, 6, 0, 4, 3, 5, 2, 7},
		{9, 4, 5, 3, 1, 2, 6, 8, 7, 0},
		{4, 2, 8, 6, 5, 7, 3, 9, 0, 1},
		{2, 7, 9, 3, 8, 0, 6, 4, 1, 5},
		{7, 0, 4, 6, 9, 1, 3, 2, 5, 8},
	}
	verhoeffInv = [10]int{0, 4, 3, 2, 1, 5, 6, 7, 8, 9}
)

// VerhoeffValid reports whether the trailing digit of digits is a correct
// Verhoeff check digit.
func VerhoeffValid(digits string) bool {
	if digits == "" {
		return false
	}
	c := 0
	for i := 0; i < len(digits); i++ {
		d := digits[len(digits)-1-i]
		if d < '0' || d > '9' {
			return false
		}
		c = verhoeffD[c][verhoeffP[i%8][d-'0']]
	}
	return c == 0
}

// VerhoeffDigit computes the check digit to append to digits.
func VerhoeffDigit(digits string) int {
	c := 0
	for i := 0; i < len(digits); i++ {
		d := digits[len(digits)-1-i]
		c = verhoeffD[c][verhoeffP[(i+1)%8][d-'0']]
	}
	return verhoeffInv[c]
}

// ValidAadhaar checks the 12-digit format, the leading digit (2-9) and the
// Verhoeff checksum.
func ValidAadhaar(s string) bool {
	id := CompactID(s)
	if len(id) != 12 || id[0] < '2' || id[0] > '9' {
		return false
	}
	return VerhoeffValid(id)
}

// ValidPAN checks the AAAAA9999A format.
func ValidPAN(s string) bool { return panRe.MatchString(CompactID(s)) }

// ValidPassport checks the A9999999 format.
func ValidPassport(s string) bool { return passportRe.MatchString(CompactID(s)) }

// ValidVoterID checks the AAA9999999 format.
func ValidVoterID(s string) bool { return voterIDRe.MatchString(CompactID(s)) }

// ValidIFSC checks the bank branch code format: four letters, a zero and six
// alphanumerics.
func ValidIFSC(s string) bool { return ifscRe.MatchString(CompactID(s)) }

// ValidAssessmentYear checks the YYYY-YY format with consecutive years no
// later than the year after now.
func ValidAssessmentYear(s string, now time.Time) bool {
	m := ayRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if (start+1)%100 != end {
		return false
	}
	return start >= 1990 && start <= now.Year()+1
}

// AssessmentYearStart returns the first year of a YYYY-YY assessment year.
func AssessmentYearStart(s string) (int, bool) {
	m := ayRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	return y, err == nil
}

// MaskID replaces every character but the last four with 'X'.
func MaskID(s string) string {
	id := CompactID(s)
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("X", len(id)-4) + id[len(id)-4:]
}

// IDKind names the identity document kinds with format rules.
type IDKind string

const (
	IDAadhaar  IDKind = "aadhaar"
	IDPAN      IDKind = "pan"
	IDPassport IDKind = "passport"
	IDVoter    IDKind = "voter_id"
	IDLicence  IDKind = "driving_licence"
)

// NormalizeIDKind maps the free-form kinds models return to an IDKind.
func NormalizeIDKind(s string) IDKind {
	k := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(k, "aadhaar") || strings.Contains(k, "aadhar") || strings.Contains(k, "uid"):
		return IDAadhaar
	case strings.Contains(k, "passport"):
		return IDPassport
	case strings.Contains(k, "pan"):
		return IDPAN
	case strings.Contains(k, "voter") || strings.Contains(k, "epic") || strings.Contains(k, "election"):
		return IDVoter
	case strings.Contains(k, "driv") || strings.Contains(k, "licen"):
		return IDLicence
	}
	return IDKind(k)
}

// DetectIDKind guesses the kind from the number format alone.
func DetectIDKind(id string) IDKind {
	c := CompactID(id)
	switch {
	case len(c) == 12 && strings.Trim(c, "0123456789") == "":
		return IDAadhaar
	case panRe.MatchString(c):
		return IDPAN
	case passportRe.MatchString(c):
		return IDPassport
	case voterIDRe.MatchString(c):
		return IDVoter
	}
	return ""
}

// ValidID checks id against the format rule of kind. Kinds without a rule
// only require a non-empty number.
func ValidID(kind IDKind, id string) bool {
	switch kind {
	case IDAadhaar:
		return ValidAadhaar(id)
	case IDPAN:
		return ValidPAN(id)
	case IDPassport:
		return ValidPassport(id)
	case IDVoter:
		return ValidVoterID(id)
	}
	return CompactID(id) != ""
}
