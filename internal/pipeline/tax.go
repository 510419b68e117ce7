package pipeline

import (
	"fmt"
	"time"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

const taxPrompt = `Read this Indian income tax return acknowledgement (ITR-V) or Form 16. Extract the form type, the assessment year
(YYYY-YY), the PAN, the taxpayer name, gross total income, taxable income, tax paid, the filing date and the
acknowledgement number. Return amounts as numbers.`

// recentFilingYears is how far back the latest assessment year may start
// for the filer to count as compliant.
const recentFilingYears = 2

type taxClass struct {
	cfg config.PipelineConfig
}

func (taxClass) Type() model.DocumentType { return model.DocTaxReturn }

func (taxClass) Prompt() string { return taxPrompt }

func (taxClass) Validate(returns []model.TaxReturnData, now time.Time) []string {
	var issues []string
	for _, d := range returns {
		label := "tax return " + d.AssessmentYear
		if !rules.ValidAssessmentYear(d.AssessmentYear, now) {
			issues = append(issues, fmt.Sprintf("%s: assessment year %q is not a plausible YYYY-YY year", label, d.AssessmentYear))
		}
		if d.PAN != "" && !rules.ValidPAN(d.PAN) {
			issues = append(issues, fmt.Sprintf("%s: PAN %s is malformed", label, rules.MaskID(d.PAN)))
		}
		if d.GrossTotalIncome > 0 && d.TaxableIncome > d.GrossTotalIncome {
			issues = append(issues, fmt.Sprintf("%s: taxable income %.2f exceeds gross total income %.2f", label, d.TaxableIncome.Float(), d.GrossTotalIncome.Float()))
		}
		if d.TaxPaid < 0 {
			issues = append(issues, label+": tax paid is negative")
		}
	}
	return issues
}

func (taxClass) Derive(returns []model.TaxReturnData, out Outcome, now time.Time) model.Derived {
	a := &model.TaxAssessment{}
	years := make(map[int]bool)
	latest := -1
	for _, d := range returns {
		y, ok := rules.AssessmentYearStart(d.AssessmentYear)
		if !ok {
			continue
		}
		years[y] = true
		if y > latest {
			latest = y
			a.AnnualIncome = d.Income()
		}
	}
	if latest < 0 && len(returns) > 0 {
		a.AnnualIncome = returns[0].Income()
	}
	a.AnnualIncome = rules.Round(a.AnnualIncome, 2)
	a.MonthlyEquivalent = rules.Round(a.AnnualIncome/12, 2)
	a.YearsFiled = len(years)
	a.TaxCompliant = a.YearsFiled > 0 && out.Validation.Valid && latest >= now.Year()-recentFilingYears
	return model.Derived{Tax: a}
}
