package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

const bankPrompt = `Read this bank account statement. Extract the bank, the account holder, the account number, the IFSC code,
the statement period, opening and closing balances, and every transaction with its date, description, amount,
type ("credit" or "debit") and the running balance after it. Return amounts as positive numbers.`

// balanceSlack absorbs rounding in printed running balances.
const balanceSlack = 1.0

var (
	salaryWords = wordSet("salary", "salaries", "sal", "payroll", "wages", "stipend")
	emiWords    = wordSet("emi", "emis", "loan", "nach", "ecs", "ach", "repayment", "instalment", "installment", "finance")
	bounceWords = wordSet("bounce", "bounced", "return", "returned", "rtn", "dishonour", "dishonoured", "dishonored", "insufficient", "unpaid")
)

type bankClass struct {
	cfg config.PipelineConfig
}

func (bankClass) Type() model.DocumentType { return model.DocBankStatement }

func (bankClass) Prompt() string { return bankPrompt }

// txn is a normalized statement line.
type txn struct {
	date    time.Time
	dated   bool
	month   string
	amount  float64
	credit  bool
	desc    string
	words   map[string]bool
	balance float64
}

func (t txn) signed() float64 {
	if t.credit {
		return t.amount
	}
	return -t.amount
}

func normalizeTxns(in []model.Transaction) []txn {
	out := make([]txn, 0, len(in))
	for _, t := range in {
		n := txn{
			amount:  math.Abs(t.Amount.Float()),
			desc:    strings.TrimSpace(t.Description),
			words:   words(t.Description),
			balance: t.Balance.Float(),
		}
		switch strings.ToLower(strings.TrimSpace(t.Type)) {
		case "":
			n.credit = t.Amount > 0
		default:
			n.credit = t.IsCredit()
		}
		if d, ok := rules.ParseDate(t.Date); ok {
			n.date, n.dated, n.month = d, true, rules.MonthKey(d)
		}
		out = append(out, n)
	}
	return out
}

func (c bankClass) Validate(stmts []model.BankStatementData, _ time.Time) []string {
	var issues []string
	for _, s := range stmts {
		label := "bank statement " + rules.MaskID(s.AccountNumber)

		if s.IFSC != "" && !rules.ValidIFSC(s.IFSC) {
			issues = append(issues, fmt.Sprintf("%s: IFSC %q is not a valid code", label, s.IFSC))
		}

		start, okStart := rules.ParseDate(s.PeriodStart)
		end, okEnd := rules.ParseDate(s.PeriodEnd)
		if !okStart || !okEnd {
			issues = append(issues, label+": statement period is not a valid date range")
		} else if !start.Before(end) {
			issues = append(issues, label+": period start must precede period end")
		}

		txns := normalizeTxns(s.Transactions)
		var undated, outside int
		for _, t := range txns {
			switch {
			case !t.dated:
				undated++
			case okStart && okEnd && (t.date.Before(start) || t.date.After(end)):
				outside++
			}
		}
		if undated > 0 {
			issues = append(issues, fmt.Sprintf("%s: %d transactions have no valid date", label, undated))
		}
		if outside > 0 {
			issues = append(issues, fmt.Sprintf("%s: %d transactions fall outside the statement period", label, outside))
		}

		if breaks := balanceBreaks(txns, s.OpeningBalance.Float()); breaks > 0 {
			issues = append(issues, fmt.Sprintf("%s: running balance does not carry forward at %d transactions", label, breaks))
		}
	}
	return issues
}

// balanceBreaks counts lines whose running balance does not follow from the
// previous one. Statements may list lines newest first, so the better of
// both orders is used.
func balanceBreaks(txns []txn, opening float64) int {
	forward := continuity(txns, opening)
	reversed := make([]txn, len(txns))
	for i, t := range txns {
		reversed[len(txns)-1-i] = t
	}
	if back := continuity(reversed, opening); back < forward {
		return back
	}
	return forward
}

func continuity(txns []txn, opening float64) int {
	prev, havePrev := opening, opening != 0
	breaks := 0
	for _, t := range txns {
		if t.balance == 0 {
			havePrev = false
			continue
		}
		if havePrev && math.Abs(prev+t.signed()-t.balance) > balanceSlack {
			breaks++
		}
		prev, havePrev = t.balance, true
	}
	return breaks
}

func (c bankClass) Derive(stmts []model.BankStatementData, _ Outcome, _ time.Time) model.Derived {
	var all []txn
	var balances []float64
	for _, s := range stmts {
		txns := normalizeTxns(s.Transactions)
		all = append(all, txns...)
		for _, t := range txns {
			if t.balance != 0 {
				balances = append(balances, t.balance)
			}
		}
		if len(txns) == 0 {
			for _, b := range []float64{s.OpeningBalance.Float(), s.ClosingBalance.Float()} {
				if b != 0 {
					balances = append(balances, b)
				}
			}
		}
	}

	a := &model.BankAssessment{}

	a.SalaryCredits = salaryCredits(all, c.cfg.EMIMatchTolerancePct)
	amounts := make([]float64, 0, len(a.SalaryCredits))
	for _, sc := range a.SalaryCredits {
		amounts = append(amounts, sc.Amount)
	}
	a.MonthlySalary = rules.Round(rules.Mean(amounts), 2)
	a.VariancePct = rules.Round(rules.VariancePct(amounts), 2)
	a.SalaryRegular = len(amounts) > 0 && a.VariancePct < c.cfg.IncomeVariancePct

	a.EMIClusters = emiClusters(all, c.cfg.EMIMatchTolerancePct)
	for _, cl := range a.EMIClusters {
		a.ExistingEMI += cl.MonthlyAmount
	}
	a.ExistingEMI = rules.Round(a.ExistingEMI, 2)

	for _, t := range all {
		if t.hasAny(bounceWords) {
			a.BouncedCount++
		}
	}

	if len(balances) > 0 {
		a.AverageBalance = rules.Round(rules.Mean(balances), 2)
		a.MinimumBalance = balances[0]
		for _, b := range balances[1:] {
			a.MinimumBalance = math.Min(a.MinimumBalance, b)
		}
	}
	return model.Derived{Bank: a}
}

// salaryCredits picks at most one salary deposit per month: credits that
// say so, or failing that the recurring credit of similar size seen in the
// most months.
func salaryCredits(all []txn, tolPct float64) []model.SalaryCredit {
	var credits, labelled []txn
	for _, t := range all {
		if !t.credit || !t.dated || t.amount <= 0 {
			continue
		}
		credits = append(credits, t)
		if t.hasAny(salaryWords) && !t.hasAny(bounceWords) {
			labelled = append(labelled, t)
		}
	}

	picked := labelled
	if len(picked) == 0 {
		var best []txn
		for _, cl := range clusterAmounts(credits, tolPct) {
			m := distinctMonths(cl)
			if m < 2 {
				continue
			}
			bm := distinctMonths(best)
			if m > bm || (m == bm && meanAmount(cl) > meanAmount(best)) {
				best = cl
			}
		}
		picked = best
	}

	byMonth := make(map[string]txn)
	for _, t := range picked {
		if cur, ok := byMonth[t.month]; !ok || t.amount > cur.amount {
			byMonth[t.month] = t
		}
	}
	out := make([]model.SalaryCredit, 0, len(byMonth))
	for month, t := range byMonth {
		out = append(out, model.SalaryCredit{Month: month, Amount: t.amount, Description: t.desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// emiClusters groups loan-like debits of the same amount (within tolPct)
// recurring across at least two months.
func emiClusters(all []txn, tolPct float64) []model.DebitCluster {
	var debits []txn
	for _, t := range all {
		if !t.credit && t.dated && t.amount > 0 && t.hasAny(emiWords) && !t.hasAny(bounceWords) {
			debits = append(debits, t)
		}
	}
	var out []model.DebitCluster
	for _, cl := range clusterAmounts(debits, tolPct) {
		if distinctMonths(cl) < 2 {
			continue
		}
		out = append(out, model.DebitCluster{
			Label:         cl[0].desc,
			MonthlyAmount: rules.Round(meanAmount(cl), 2),
			Occurrences:   len(cl),
		})
	}
	return out
}

// clusterAmounts groups transactions whose amounts lie within tolPct of the
// running cluster mean.
func clusterAmounts(ts []txn, tolPct float64) [][]txn {
	sorted := append([]txn(nil), ts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].amount < sorted[j].amount })

	var out [][]txn
	for _, t := range sorted {
		if n := len(out); n > 0 && rules.WithinTolerance(t.amount, meanAmount(out[n-1]), tolPct) {
			out[n-1] = append(out[n-1], t)
			continue
		}
		out = append(out, []txn{t})
	}
	return out
}

func distinctMonths(ts []txn) int {
	months := make(map[string]bool)
	for _, t := range ts {
		months[t.month] = true
	}
	return len(months)
}

func meanAmount(ts []txn) float64 {
	vals := make([]float64, len(ts))
	for i, t := range ts {
		vals[i] = t.amount
	}
	return rules.Mean(vals)
}

func (t txn) hasAny(set map[string]bool) bool {
	for w := range t.words {
		if set[w] {
			return true
		}
	}
	return false
}

func wordSet(ws ...string) map[string]bool {
	out := make(map[string]bool, len(ws))
	for _, w := range ws {
		out[w] = true
	}
	return out
}

func words(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[w] = true
	}
	return out
}
