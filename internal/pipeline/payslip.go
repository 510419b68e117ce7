package pipeline

import (
	"fmt"
	"time"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

const payslipPrompt = `Read this monthly salary slip. Extract the employer, the employee, the pay period (month and year),
gross salary, total deductions, net pay and basic salary. List each deduction line with its amount.
Amounts are in rupees; return them as numbers without currency symbols.`

type payslipClass struct {
	cfg config.PipelineConfig
}

func (payslipClass) Type() model.DocumentType { return model.DocPayslip }

func (payslipClass) Prompt() string { return payslipPrompt }

// deductions returns the stated total or, when absent, the sum of the lines.
func deductions(d model.PayslipData) (float64, bool) {
	if d.TotalDeductions > 0 {
		return d.TotalDeductions.Float(), true
	}
	var sum float64
	for _, li := range d.Deductions {
		sum += li.Amount.Float()
	}
	return sum, len(d.Deductions) > 0
}

// netPay is the net salary, or gross minus deductions when net is absent.
func netPay(d model.PayslipData) float64 {
	if d.NetSalary > 0 {
		return d.NetSalary.Float()
	}
	ded, _ := deductions(d)
	return d.GrossSalary.Float() - ded
}

func (c payslipClass) Validate(slips []model.PayslipData, _ time.Time) []string {
	var issues []string
	seen := make(map[string]bool)
	for _, d := range slips {
		label := "payslip " + d.PayPeriod

		for _, f := range []struct {
			name string
			v    model.Amount
		}{
			{"gross salary", d.GrossSalary},
			{"net salary", d.NetSalary},
			{"total deductions", d.TotalDeductions},
			{"basic salary", d.BasicSalary},
		} {
			if f.v < 0 {
				issues = append(issues, fmt.Sprintf("%s: %s is negative", label, f.name))
			}
		}

		if d.GrossSalary > 0 && d.NetSalary > 0 {
			if d.NetSalary > d.GrossSalary {
				issues = append(issues, fmt.Sprintf("%s: net salary %.2f exceeds gross salary %.2f", label, d.NetSalary.Float(), d.GrossSalary.Float()))
			} else if ded, known := deductions(d); known {
				expected := d.GrossSalary.Float() - ded
				if !rules.WithinTolerance(d.NetSalary.Float(), expected, c.cfg.PayslipTolerancePct) {
					issues = append(issues, fmt.Sprintf("%s: net salary %.2f does not equal gross minus deductions %.2f", label, d.NetSalary.Float(), expected))
				}
			}
		}

		month, ok := rules.ParseMonth(d.PayPeriod)
		if !ok {
			issues = append(issues, fmt.Sprintf("%s: pay period is not a recognizable month", label))
			continue
		}
		key := rules.MonthKey(month)
		if seen[key] {
			issues = append(issues, fmt.Sprintf("payslip: duplicate pay period %s", key))
		}
		seen[key] = true
	}
	return issues
}

func (c payslipClass) Derive(slips []model.PayslipData, _ Outcome, _ time.Time) model.Derived {
	var nets, grosses []float64
	months := make(map[string]bool)
	employers := make(map[string]int)
	employer := ""
	for _, d := range slips {
		if n := netPay(d); n > 0 {
			nets = append(nets, n)
		}
		if d.GrossSalary > 0 {
			grosses = append(grosses, d.GrossSalary.Float())
		}
		if m, ok := rules.ParseMonth(d.PayPeriod); ok {
			months[rules.MonthKey(m)] = true
		}
		if d.EmployerName != "" {
			employers[d.EmployerName]++
			if employer == "" || employers[d.EmployerName] > employers[employer] {
				employer = d.EmployerName
			}
		}
	}

	variance := rules.VariancePct(nets)
	return model.Derived{Income: &model.IncomeAssessment{
		AverageMonthlyNet:   rules.Round(rules.Mean(nets), 2),
		AverageMonthlyGross: rules.Round(rules.Mean(grosses), 2),
		MonthsCovered:       len(months),
		VariancePct:         rules.Round(variance, 2),
		Consistent:          len(nets) > 0 && variance < c.cfg.IncomeVariancePct,
		Employer:            employer,
	}}
}
