package decision

import (
	"fmt"
	"sort"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

const (
	eligibilityShare = 0.6
	riskShare        = 0.4
)

// Confidence blends the eligibility and risk scores.
func Confidence(elig model.EligibilityAssessment, risk model.RiskAssessment) float64 {
	return rules.Round(eligibilityShare*elig.Score+riskShare*risk.Score, 2)
}

// Decide applies the decision gates in order. It is pure: the same facts and
// assessments always produce the same verdict.
func Decide(f Facts, aff model.Affordability, elig model.EligibilityAssessment, risk model.RiskAssessment, cfg Config) model.Decision {
	cfg = withDefaults(cfg)
	d := model.Decision{
		ApplicantID:   f.Request.ApplicantID,
		LoanType:      f.Request.Type,
		Confidence:    Confidence(elig, risk),
		Eligibility:   elig,
		Risk:          risk,
		Affordability: aff,
	}
	for _, r := range f.Reports {
		if r != nil && r.ID != "" {
			d.ReportIDs = append(d.ReportIDs, r.ID)
		}
	}
	sort.Strings(d.ReportIDs)

	label, gate := gateLabel(f, aff, elig, risk, d.Confidence, cfg)
	d.Label = label
	if gate != "" {
		d.Reasons = append(d.Reasons, gate)
	}
	d.Reasons = append(d.Reasons, elig.Reasons...)
	for _, fl := range risk.Flags {
		d.Reasons = append(d.Reasons, fl.Detail)
	}
	d.Conditions, d.NextSteps = followUps(f, elig, risk, label)
	return d
}

func gateLabel(f Facts, aff model.Affordability, elig model.EligibilityAssessment, risk model.RiskAssessment, confidence float64, cfg Config) (model.DecisionLabel, string) {
	for _, t := range f.mandatory() {
		if !f.Submitted(t) {
			return model.DecisionIncomplete, "missing " + t.Label()
		}
	}
	if !anySubmitted(f, incomeClasses) {
		return model.DecisionIncomplete, "missing income proof"
	}

	for _, t := range f.mandatory() {
		if f.Failed(t) {
			return model.DecisionFailed, t.Label() + " processing failed"
		}
	}
	if allIncomeFailed(f) {
		return model.DecisionFailed, "income document processing failed"
	}

	for _, t := range f.mandatory() {
		if f.Usable(t) == nil {
			return model.DecisionIncomplete, t.Label() + " could not be read"
		}
	}

	switch {
	case !f.identityVerified():
		return model.DecisionRejected, "identity not verified"
	case aff.MonthlyIncome <= 0:
		return model.DecisionRejected, "no verifiable income"
	}

	gated := risk.Band == model.RiskHigh || risk.Band == model.RiskVeryHigh
	switch {
	case elig.Eligible && confidence >= cfg.ApproveConfidence && !gated:
		return model.DecisionApproved, ""
	case confidence >= cfg.ReviewConfidence || elig.Eligible:
		return model.DecisionReview, fmt.Sprintf("manual review required (confidence %.2f, risk %s)", confidence, risk.Band)
	default:
		return model.DecisionRejected, fmt.Sprintf("confidence %.2f below review threshold", confidence)
	}
}

// allIncomeFailed reports whether every submitted income report failed.
func allIncomeFailed(f Facts) bool {
	seen := false
	for _, t := range incomeClasses {
		if !f.Submitted(t) {
			continue
		}
		seen = true
		if !f.Failed(t) {
			return false
		}
	}
	return seen
}

var flagConditions = map[string]string{
	FlagBouncedTransactions:   "explain bounced transactions in the last statement period",
	FlagHighFOIR:              "reduce the loan amount or add a co-applicant to bring FOIR under the limit",
	FlagElevatedFOIR:          "consider a longer tenure or a co-applicant",
	FlagErraticIncome:         "provide six months of additional income proof",
	FlagUnrecognisedInstitute: "submit proof of institution accreditation",
	FlagNameMismatch:          "submit an affidavit or document reconciling the name differences",
	FlagVerificationRejected:  "resubmit legible originals of the rejected documents",
}

func followUps(f Facts, elig model.EligibilityAssessment, risk model.RiskAssessment, label model.DecisionLabel) (conditions, next []string) {
	for _, fl := range risk.Flags {
		if c, ok := flagConditions[fl.Code]; ok {
			conditions = append(conditions, c)
		}
	}
	if conditionalAdmission(f) {
		conditions = append(conditions, "disbursement only after the admission offer becomes unconditional")
	}
	conditions = append(conditions, elig.Conditions...)

	for _, m := range elig.MissingDocuments {
		next = append(next, "submit "+m)
	}
	switch label {
	case model.DecisionApproved:
		next = append(next, "issue sanction letter")
	case model.DecisionReview:
		next = append(next, "route to credit officer for manual review")
	case model.DecisionFailed:
		next = append(next, "retry document processing")
	case model.DecisionIncomplete:
		if len(elig.MissingDocuments) == 0 {
			next = append(next, "resubmit unreadable documents")
		}
	}
	return conditions, next
}

func conditionalAdmission(f Facts) bool {
	r := f.Usable(model.DocAdmission)
	if r == nil {
		return false
	}
	for _, ex := range r.Extractions {
		if a, ok := ex.Payload.(model.AdmissionData); ok && a.Conditional {
			return true
		}
	}
	return false
}
