package decision

import (
	"fmt"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

// Missing-document entries.
const (
	MissingIdentity   = "identity document"
	MissingIncome     = "income proof (payslip, bank statement or tax return)"
	MissingTax        = "tax documents"
	MissingEmployment = "employment letter"
	MissingAdmission  = "admission letter"
	MissingAcademic   = "academic records"
)

// NoteNoTax is recorded when no tax return was submitted.
const NoteNoTax = "no tax documents"

// partialCredit is the share of a criterion's points awarded when the
// document is present but its check is not fully met.
const partialCredit = 0.5

// foirPoints returns the share of the FOIR weight earned at foir.
func foirPoints(foir float64, cfg Config) float64 {
	switch {
	case foir <= cfg.FOIRFull:
		return 1
	case foir <= cfg.FOIRPartial:
		return 0.6
	case foir <= cfg.FOIRMax:
		return 0.32
	default:
		return 0
	}
}

type scorer struct {
	earned, max float64
	e           *model.EligibilityAssessment
}

func (s *scorer) award(weight, share float64, reason string) {
	s.max += weight
	s.earned += weight * share
	if reason != "" {
		s.e.Reasons = append(s.e.Reasons, reason)
	}
}

func (s *scorer) missing(doc, note string) {
	s.e.MissingDocuments = append(s.e.MissingDocuments, doc)
	if note != "" {
		s.e.Notes = append(s.e.Notes, note)
	}
}

// Eligibility scores the application on weighted criteria and applies the
// hard eligibility gates.
func Eligibility(f Facts, aff model.Affordability, cfg Config) model.EligibilityAssessment {
	w := cfg.Weights
	e := model.EligibilityAssessment{Fallback: true}
	s := &scorer{e: &e}

	switch id := f.identity(); {
	case id != nil && id.Verified:
		s.award(w.Identity, 1, "identity verified")
	case f.Submitted(model.DocIdentity):
		s.award(w.Identity, 0, "identity could not be verified")
	default:
		s.award(w.Identity, 0, "identity document missing")
		s.missing(MissingIdentity, "")
	}

	switch {
	case aff.MonthlyIncome > 0 && incomeConsistent(f):
		s.award(w.Income, 1, fmt.Sprintf("monthly income %.0f from %d source(s)", aff.MonthlyIncome, len(aff.IncomeSignals)))
	case aff.MonthlyIncome > 0:
		s.award(w.Income, partialCredit, fmt.Sprintf("monthly income %.0f is irregular", aff.MonthlyIncome))
	default:
		s.award(w.Income, 0, "no verifiable income")
		if !anySubmitted(f, incomeClasses) {
			s.missing(MissingIncome, "")
		}
	}

	switch t := f.tax(); {
	case t != nil && t.TaxCompliant:
		s.award(w.Tax, 1, fmt.Sprintf("tax filed for %d year(s)", t.YearsFiled))
	case t != nil:
		s.award(w.Tax, partialCredit, "tax filings incomplete or outdated")
	default:
		s.award(w.Tax, 0, "")
		s.missing(MissingTax, NoteNoTax)
	}

	switch emp := f.employment(); {
	case emp != nil && emp.Stable:
		s.award(w.Employment, 1, fmt.Sprintf("stable employment, %d months current tenure", emp.CurrentTenureMonths))
	case emp != nil:
		s.award(w.Employment, partialCredit, "employment tenure below stability threshold")
	default:
		s.award(w.Employment, 0, "")
		s.missing(MissingEmployment, "no employment documents")
	}

	if aff.MonthlyIncome > 0 {
		s.award(w.FOIR, foirPoints(aff.FOIR, cfg), fmt.Sprintf("FOIR %.2f%% (limit %.0f%%)", aff.FOIR, cfg.FOIRMax))
	} else {
		s.award(w.FOIR, 0, "")
	}

	if f.Education() {
		switch a := f.admission(); {
		case a != nil && a.Valid:
			s.award(w.Admission, 1, "admission confirmed at "+a.Institution)
			share := 0.0
			if a.InstitutionRecognized {
				share = 1
			}
			s.award(w.Institution, share, "")
		case a != nil:
			s.award(w.Admission, 0, "admission letter failed validation")
			s.award(w.Institution, 0, "")
		default:
			s.award(w.Admission, 0, "admission letter missing")
			s.award(w.Institution, 0, "")
			s.missing(MissingAdmission, "")
		}

		switch ac := f.academic(); {
		case ac != nil && ac.Passed:
			s.award(w.Academic, 1, "")
		case ac != nil:
			s.award(w.Academic, 0, "academic record shows a failed result")
		default:
			s.award(w.Academic, 0, "")
			s.missing(MissingAcademic, "no academic records")
		}
	}

	if s.max > 0 {
		e.Score = rules.Round(s.earned/s.max*100, 2)
	}

	e.Eligible = f.identityVerified() &&
		aff.MonthlyIncome > 0 &&
		aff.FOIR <= cfg.FOIRMax &&
		(!f.Education() || f.admissionValid())
	return e
}

// incomeConsistent reports whether at least one income source looks stable.
func incomeConsistent(f Facts) bool {
	if inc := f.income(); inc != nil && inc.Consistent {
		return true
	}
	if b := f.bank(); b != nil && b.SalaryRegular {
		return true
	}
	if t := f.tax(); t != nil && t.MonthlyEquivalent > 0 {
		return true
	}
	return false
}

func anySubmitted(f Facts, classes []model.DocumentType) bool {
	for _, t := range classes {
		if f.Submitted(t) {
			return true
		}
	}
	return false
}
