package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

const employmentPrompt = `Read this employment letter (offer, appointment, experience or relieving letter). Extract the employer,
the employee, the designation, the start date, the end date if employment has ended, whether the employee is
currently employed there, the employment type (full-time, contract, intern) and the kind of letter.`

type employmentClass struct {
	cfg config.PipelineConfig
}

func (employmentClass) Type() model.DocumentType { return model.DocEmployment }

func (employmentClass) Prompt() string { return employmentPrompt }

// openEnded reports whether an end date means "still employed".
func openEnded(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "present", "current", "till date", "to date", "ongoing", "null", "n/a":
		return true
	}
	return false
}

func (employmentClass) Validate(letters []model.EmploymentData, now time.Time) []string {
	var issues []string
	for _, d := range letters {
		label := "employment at " + d.EmployerName
		start, okStart := rules.ParseDate(d.StartDate)
		if !okStart {
			issues = append(issues, fmt.Sprintf("%s: start date %q is not a valid date", label, d.StartDate))
		} else if start.After(now) {
			issues = append(issues, label+": start date is in the future")
		}

		if d.IsCurrent || openEnded(d.EndDate) {
			continue
		}
		end, ok := rules.ParseDate(d.EndDate)
		switch {
		case !ok:
			issues = append(issues, fmt.Sprintf("%s: end date %q is not a valid date", label, d.EndDate))
		case end.After(now):
			issues = append(issues, label+": end date is in the future")
		case okStart && !start.Before(end):
			issues = append(issues, label+": start date must precede end date")
		}
	}
	return issues
}

type interval struct{ start, end time.Time }

func (c employmentClass) Derive(letters []model.EmploymentData, _ Outcome, now time.Time) model.Derived {
	a := &model.EmploymentAssessment{}
	employers := make(map[string]bool)
	var spans []interval
	for _, d := range letters {
		if n := rules.NormalizeName(d.EmployerName); n != "" {
			employers[n] = true
		}
		start, ok := rules.ParseDate(d.StartDate)
		if !ok || start.After(now) {
			continue
		}
		current := d.IsCurrent || openEnded(d.EndDate)
		end := now
		if !current {
			e, ok := rules.ParseDate(d.EndDate)
			if !ok || !start.Before(e) {
				continue
			}
			if e.Before(now) {
				end = e
			}
		}
		spans = append(spans, interval{start, end})
		if current {
			a.CurrentlyEmployed = true
			if m := rules.MonthsBetween(start, now); m > a.CurrentTenureMonths {
				a.CurrentTenureMonths = m
			}
		}
	}

	for _, s := range mergeIntervals(spans) {
		a.TotalMonths += rules.MonthsBetween(s.start, s.end)
	}
	a.Employers = len(employers)
	a.Stable = a.CurrentlyEmployed && a.CurrentTenureMonths >= c.cfg.StableMonths
	return model.Derived{Employment: a}
}

// mergeIntervals unions overlapping spans so concurrent letters are not
// counted twice.
func mergeIntervals(in []interval) []interval {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]interval(nil), in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start.Before(sorted[j].start) })
	out := []interval{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if !s.start.After(last.end) {
			if s.end.After(last.end) {
				last.end = s.end
			}
			continue
		}
		out = append(out, s)
	}
	return out
}
