package decision

import (
	"math"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

// fallbackAnnualRate applies when neither the request nor the configuration
// names a rate for the loan type.
const fallbackAnnualRate = 12.0

// EMI returns the equated monthly instalment for principal p at annualRate
// percent over n months. A zero rate amortizes linearly.
func EMI(p, annualRate float64, n int) float64 {
	if p <= 0 || n <= 0 {
		return 0
	}
	r := annualRate / 12 / 100
	if r == 0 {
		return p / float64(n)
	}
	g := math.Pow(1+r, float64(n))
	return p * r * g / (g - 1)
}

// FOIR is the fixed-obligation-to-income ratio in percent. It is zero when
// income is unknown.
func FOIR(existing, emi, income float64) float64 {
	if income <= 0 {
		return 0
	}
	return (existing + emi) / income * 100
}

// annualRate resolves the interest rate of the request.
func annualRate(req model.LoanRequest, cfg Config) float64 {
	if req.AnnualRate > 0 {
		return req.AnnualRate
	}
	if r, ok := cfg.InterestRates[string(req.Type)]; ok && r > 0 {
		return r
	}
	return fallbackAnnualRate
}

// IncomeSignals collects one monthly income estimate per usable income class.
func IncomeSignals(f Facts) []model.IncomeSignal {
	var out []model.IncomeSignal
	if inc := f.income(); inc != nil && inc.AverageMonthlyNet > 0 {
		out = append(out, model.IncomeSignal{Source: model.DocPayslip, Monthly: inc.AverageMonthlyNet})
	}
	if b := f.bank(); b != nil && b.MonthlySalary > 0 {
		out = append(out, model.IncomeSignal{Source: model.DocBankStatement, Monthly: b.MonthlySalary})
	}
	if t := f.tax(); t != nil && t.MonthlyEquivalent > 0 {
		out = append(out, model.IncomeSignal{Source: model.DocTaxReturn, Monthly: t.MonthlyEquivalent})
	}
	return out
}

// Affordability computes the instalment, the income estimate and FOIR.
// Existing obligations are the larger of the declared figure and the loan
// debits detected on bank statements.
func Affordability(f Facts, cfg Config) model.Affordability {
	req := f.Request
	a := model.Affordability{
		Principal:           req.Amount,
		AnnualRate:          annualRate(req, cfg),
		TenureMonths:        req.TenureMonths,
		IncomeSignals:       IncomeSignals(f),
		ExistingObligations: req.ExistingObligations,
	}
	a.EMI = rules.Round(EMI(a.Principal, a.AnnualRate, a.TenureMonths), 2)

	values := make([]float64, len(a.IncomeSignals))
	for i, s := range a.IncomeSignals {
		values[i] = s.Monthly
	}
	a.MonthlyIncome = rules.Round(rules.Mean(values), 2)

	if b := f.bank(); b != nil && b.ExistingEMI > a.ExistingObligations {
		a.ExistingObligations = b.ExistingEMI
	}
	a.FOIR = rules.Round(FOIR(a.ExistingObligations, a.EMI, a.MonthlyIncome), 2)
	return a
}
