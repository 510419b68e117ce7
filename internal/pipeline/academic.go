package pipeline

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

const academicPrompt = `Read this academic record (marksheet, transcript or degree certificate). Extract the institution, the board
or university, the qualification, the student name, the year of passing, the overall percentage or CGPA, the grade,
the result (pass, fail, distinction) and each subject with marks obtained and maximum marks.`

const minPassingYear = 1990

// qualificationRanks orders qualification keywords from highest to lowest.
var qualificationRanks = []struct {
	rank  int
	words []string
}{
	{6, []string{"phd", "ph.d", "doctorate", "doctor of philosophy"}},
	{5, []string{"master", "mba", "m.tech", "mtech", "m.sc", "msc", "m.a", "m.com", "mcom", "mca", "ms "}},
	{4, []string{"bachelor", "b.tech", "btech", "b.e", "b.sc", "bsc", "b.a", "b.com", "bcom", "bca", "bba", "degree", "graduat", "mbbs"}},
	{3, []string{"diploma"}},
	{2, []string{"xii", "12th", "hsc", "higher secondary", "senior secondary", "intermediate", "puc"}},
	{1, []string{"ssc", "10th", "class x", "secondary", "matric"}},
}

func qualificationRank(q string) int {
	q = strings.ToLower(strings.TrimSpace(q)) + " "
	for _, r := range qualificationRanks {
		for _, w := range r.words {
			if strings.Contains(q, w) {
				return r.rank
			}
		}
	}
	return 0
}

type academicClass struct {
	cfg config.PipelineConfig
}

func (academicClass) Type() model.DocumentType { return model.DocAcademic }

func (academicClass) Prompt() string { return academicPrompt }

// computedPercentage derives the aggregate from subject marks.
func computedPercentage(d model.AcademicData) (float64, bool) {
	var obtained, maximum float64
	for _, s := range d.Subjects {
		if s.Maximum <= 0 {
			return 0, false
		}
		obtained += s.Obtained.Float()
		maximum += s.Maximum.Float()
	}
	if maximum == 0 {
		return 0, false
	}
	return obtained / maximum * 100, true
}

func (c academicClass) Validate(records []model.AcademicData, now time.Time) []string {
	var issues []string
	for _, d := range records {
		label := "academic " + strings.TrimSpace(d.Qualification)
		if y := int(d.YearOfPassing); y != 0 && (y < minPassingYear || y > now.Year()) {
			issues = append(issues, fmt.Sprintf("%s: year of passing %d is outside %d-%d", label, y, minPassingYear, now.Year()))
		}
		if d.Percentage.Set && (d.Percentage.Value < 0 || d.Percentage.Value > 100) {
			issues = append(issues, fmt.Sprintf("%s: percentage %.2f is outside 0-100", label, d.Percentage.Value))
		}
		if d.CGPA.Set && (d.CGPA.Value < 0 || d.CGPA.Value > 10) {
			issues = append(issues, fmt.Sprintf("%s: CGPA %.2f is outside 0-10", label, d.CGPA.Value))
		}
		for _, s := range d.Subjects {
			if s.Obtained < 0 || (s.Maximum > 0 && s.Obtained > s.Maximum) {
				issues = append(issues, fmt.Sprintf("%s: %s marks %.0f exceed maximum %.0f", label, s.Name, s.Obtained.Float(), s.Maximum.Float()))
			}
		}
		if computed, ok := computedPercentage(d); ok && d.Percentage.Set {
			if math.Abs(computed-d.Percentage.Value) > c.cfg.AcademicTolerancePts {
				issues = append(issues, fmt.Sprintf("%s: stated percentage %.2f differs from subject total %.2f", label, d.Percentage.Value, computed))
			}
		}
	}
	return issues
}

// normalizedPercentage returns the record's score on a percentage scale.
func (c academicClass) normalizedPercentage(d model.AcademicData) (float64, bool) {
	switch {
	case d.Percentage.Set:
		return d.Percentage.Value, true
	case d.CGPA.Set:
		return d.CGPA.Value * c.cfg.CGPAMultiplier, true
	}
	return computedPercentage(d)
}

func failed(d model.AcademicData) bool {
	r := strings.ToLower(d.Result)
	return strings.Contains(r, "fail") || strings.Contains(r, "reappear") || strings.EqualFold(strings.TrimSpace(d.Grade), "F")
}

func (c academicClass) Derive(records []model.AcademicData, _ Outcome, _ time.Time) model.Derived {
	a := &model.AcademicAssessment{Passed: len(records) > 0}
	best := -1
	for _, d := range records {
		if p, ok := c.normalizedPercentage(d); ok {
			a.BestPercentage = math.Max(a.BestPercentage, rules.Clamp(p, 0, 100))
		}
		if r := qualificationRank(d.Qualification); r > best {
			best = r
			a.HighestQualification = d.Qualification
		}
		if failed(d) {
			a.Passed = false
		}
	}
	a.BestPercentage = rules.Round(a.BestPercentage, 2)
	return model.Derived{Academic: a}
}
