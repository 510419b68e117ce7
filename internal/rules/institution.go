package rules

import "strings"

// DefaultInstitutionKeywords mark names that are recognized without being
// listed explicitly.
var DefaultInstitutionKeywords = []string{
	"university",
	"institute of technology",
	"institute of management",
	"institute of science",
	"iit",
	"iim",
	"nit",
	"iisc",
	"aiims",
	"bits",
	"medical college",
	"college of engineering",
}

// DefaultKnownInstitutions is the built-in recognized list. Configuration can
// extend it.
var DefaultKnownInstitutions = []string{
	"Indian Institute of Technology",
	"Indian Institute of Management",
	"Indian Institute of Science",
	"National Institute of Technology",
	"Birla Institute of Technology and Science",
	"Delhi University",
	"Anna University",
	"Jawaharlal Nehru University",
	"Vellore Institute of Technology",
	"Manipal Academy of Higher Education",
	"St. Stephen's College",
	"Loyola College",
	"Christ University",
	"Symbiosis International",
	"Massachusetts Institute of Technology",
	"Stanford University",
	"University of Oxford",
	"University of Cambridge",
	"University of Toronto",
	"National University of Singapore",
}

// InstitutionRecognizer decides whether an institution name is recognized,
// by list membership or by keyword.
type InstitutionRecognizer struct {
	known    []string
	keywords []string
}

// NewInstitutionRecognizer builds a recognizer. Empty arguments select the
// defaults.
func NewInstitutionRecognizer(known, keywords []string) *InstitutionRecognizer {
	if len(known) == 0 {
		known = DefaultKnownInstitutions
	}
	if keywords == nil {
		keywords = DefaultInstitutionKeywords
	}
	r := &InstitutionRecognizer{}
	for _, k := range known {
		if n := NormalizeName(k); n != "" {
			r.known = append(r.known, n)
		}
	}
	for _, k := range keywords {
		if n := NormalizeName(k); n != "" {
			r.keywords = append(r.keywords, n)
		}
	}
	return r
}

// Recognized reports whether name matches a known institution or carries
// a recognition keyword on word boundaries.
func (r *InstitutionRecognizer) Recognized(name string) bool {
	n := NormalizeName(name)
	if n == "" {
		return false
	}
	for _, k := range r.known {
		if strings.Contains(n, k) || (len(n) >= 8 && strings.Contains(k, n)) {
			return true
		}
	}
	padded := " " + n + " "
	for _, kw := range r.keywords {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}
	return false
}
