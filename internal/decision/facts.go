// Package decision folds pipeline reports and a loan request into an
// affordability summary, an eligibility score, a risk score and a verdict.
package decision

import (
	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
)

// Facts is the read-only input of the rule engine: the loan request and the
// finalized report of each document class that was submitted.
type Facts struct {
	Request model.LoanRequest
	Reports map[model.DocumentType]*model.PipelineReport
}

// NewFacts indexes reports by class. When a class has several reports the
// first usable one wins.
func NewFacts(req model.LoanRequest, reports []*model.PipelineReport) Facts {
	f := Facts{Request: req, Reports: make(map[model.DocumentType]*model.PipelineReport, len(reports))}
	for _, r := range reports {
		if r == nil {
			continue
		}
		if cur, ok := f.Reports[r.DocumentType]; ok && (cur.Usable() || !r.Usable()) {
			continue
		}
		f.Reports[r.DocumentType] = r
	}
	return f
}

// Submitted reports whether any document of t was processed.
func (f Facts) Submitted(t model.DocumentType) bool {
	_, ok := f.Reports[t]
	return ok
}

// Usable returns the report of t when it produced extractions.
func (f Facts) Usable(t model.DocumentType) *model.PipelineReport {
	if r := f.Reports[t]; r.Usable() {
		return r
	}
	return nil
}

// Failed reports whether t was submitted and its report failed.
func (f Facts) Failed(t model.DocumentType) bool {
	r, ok := f.Reports[t]
	return ok && r.Status == model.ReportFailed
}

// Education reports whether the request is an education loan.
func (f Facts) Education() bool {
	return f.Request.Type == model.LoanEducation
}

func (f Facts) identity() *model.IdentityAssessment {
	if r := f.Usable(model.DocIdentity); r != nil {
		return r.Derived.Identity
	}
	return nil
}

func (f Facts) income() *model.IncomeAssessment {
	if r := f.Usable(model.DocPayslip); r != nil {
		return r.Derived.Income
	}
	return nil
}

func (f Facts) bank() *model.BankAssessment {
	if r := f.Usable(model.DocBankStatement); r != nil {
		return r.Derived.Bank
	}
	return nil
}

func (f Facts) tax() *model.TaxAssessment {
	if r := f.Usable(model.DocTaxReturn); r != nil {
		return r.Derived.Tax
	}
	return nil
}

func (f Facts) employment() *model.EmploymentAssessment {
	if r := f.Usable(model.DocEmployment); r != nil {
		return r.Derived.Employment
	}
	return nil
}

func (f Facts) academic() *model.AcademicAssessment {
	if r := f.Usable(model.DocAcademic); r != nil {
		return r.Derived.Academic
	}
	return nil
}

func (f Facts) admission() *model.AdmissionAssessment {
	if r := f.Usable(model.DocAdmission); r != nil {
		return r.Derived.Admission
	}
	return nil
}

func (f Facts) identityVerified() bool {
	id := f.identity()
	return id != nil && id.Verified
}

func (f Facts) admissionValid() bool {
	a := f.admission()
	return a != nil && a.Valid
}

// mandatory lists the classes every decision requires. Income is satisfied
// by any one income class and is checked separately.
func (f Facts) mandatory() []model.DocumentType {
	out := []model.DocumentType{model.DocIdentity}
	if f.Education() {
		out = append(out, model.DocAdmission)
	}
	return out
}

var incomeClasses = []model.DocumentType{model.DocPayslip, model.DocBankStatement, model.DocTaxReturn}

// Config carries the thresholds of the rule engine.
type Config = config.DecisionConfig

// withDefaults fills zero thresholds with the standard values.
func withDefaults(c Config) Config {
	if c.FOIRFull <= 0 {
		c.FOIRFull = 40
	}
	if c.FOIRPartial <= 0 {
		c.FOIRPartial = 50
	}
	if c.FOIRMax <= 0 {
		c.FOIRMax = 60
	}
	if c.ApproveConfidence <= 0 {
		c.ApproveConfidence = 75
	}
	if c.ReviewConfidence <= 0 {
		c.ReviewConfidence = 50
	}
	if c.MaxAdjustment <= 0 {
		c.MaxAdjustment = 10
	}
	w := &c.Weights
	if *w == (config.WeightsConfig{}) {
		*w = config.WeightsConfig{
			Identity:    25,
			Income:      25,
			Tax:         10,
			Employment:  15,
			FOIR:        25,
			Admission:   20,
			Institution: 10,
			Academic:    5,
		}
	}
	return c
}
