package pipeline

import (
	"fmt"
	"time"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

const admissionPrompt = `Read this admission or offer letter from an educational institution. Extract the institution, the student,
the program, the country, the intake date, the tuition fee and its currency, the issue date, the acceptance deadline,
whether the offer is conditional, and the reference or application number.`

type admissionClass struct {
	cfg        config.PipelineConfig
	recognizer *rules.InstitutionRecognizer
}

func (admissionClass) Type() model.DocumentType { return model.DocAdmission }

func (admissionClass) Prompt() string { return admissionPrompt }

// parseIntake accepts full dates and month-only intakes ("September 2025").
func parseIntake(s string) (time.Time, bool) {
	if t, ok := rules.ParseDate(s); ok {
		return t, true
	}
	return rules.ParseMonth(s)
}

// structuralIssues are the checks that make a letter unusable. Institution
// recognition is reported separately.
func (c admissionClass) structuralIssues(d model.AdmissionData, now time.Time) []string {
	var issues []string
	label := "admission to " + d.InstitutionName
	if d.IntakeDate != "" {
		intake, ok := parseIntake(d.IntakeDate)
		switch {
		case !ok:
			issues = append(issues, fmt.Sprintf("%s: intake date %q is not a valid date", label, d.IntakeDate))
		case rules.MonthsBetween(intake, now) > c.cfg.AdmissionMaxPastMonths:
			issues = append(issues, fmt.Sprintf("%s: intake %s is more than %d months in the past", label, rules.MonthKey(intake), c.cfg.AdmissionMaxPastMonths))
		}
	}
	if d.IssueDate != "" && d.AcceptanceDeadline != "" {
		issued, okIssued := rules.ParseDate(d.IssueDate)
		deadline, okDeadline := rules.ParseDate(d.AcceptanceDeadline)
		if okIssued && okDeadline && !deadline.After(issued) {
			issues = append(issues, label+": acceptance deadline is not after the issue date")
		}
	}
	if d.TuitionFee < 0 {
		issues = append(issues, label+": tuition fee is negative")
	}
	return issues
}

func (c admissionClass) Validate(letters []model.AdmissionData, now time.Time) []string {
	var issues []string
	for _, d := range letters {
		if !c.recognizer.Recognized(d.InstitutionName) {
			issues = append(issues, fmt.Sprintf("admission: institution %q is not recognized", d.InstitutionName))
		}
		issues = append(issues, c.structuralIssues(d, now)...)
	}
	return issues
}

func (c admissionClass) Derive(letters []model.AdmissionData, out Outcome, now time.Time) model.Derived {
	a := &model.AdmissionAssessment{}
	if len(letters) == 0 {
		return model.Derived{Admission: a}
	}
	// The first structurally sound letter wins.
	chosen := letters[0]
	sound := false
	for _, d := range letters {
		if len(c.structuralIssues(d, now)) == 0 {
			chosen, sound = d, true
			break
		}
	}
	a.Valid = sound && out.Verification.Recommendation != model.RecommendReject
	a.InstitutionRecognized = c.recognizer.Recognized(chosen.InstitutionName)
	a.Institution = chosen.InstitutionName
	a.Program = chosen.Program
	a.TuitionFee = chosen.TuitionFee.Float()
	return model.Derived{Admission: a}
}
