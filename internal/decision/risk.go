package decision

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

// Risk flag codes.
const (
	FlagIdentityUnverified    = "identity_unverified"
	FlagBouncedTransactions   = "bounced_transactions"
	FlagHighFOIR              = "high_foir"
	FlagElevatedFOIR          = "elevated_foir"
	FlagErraticIncome         = "erratic_income"
	FlagUnrecognisedInstitute = "unrecognised_institution"
	FlagNameMismatch          = "name_mismatch"
	FlagVerificationRejected  = "verification_rejected"
)

const (
	bouncePoints    = 10
	bounceCap       = 30
	foirHighMargin  = 50
	riskLowFloor    = 80
	riskMediumFloor = 60
	riskHighFloor   = 40
)

// Band maps a risk score to its band.
func Band(score float64) model.RiskBand {
	switch {
	case score >= riskLowFloor:
		return model.RiskLow
	case score >= riskMediumFloor:
		return model.RiskMedium
	case score >= riskHighFloor:
		return model.RiskHigh
	default:
		return model.RiskVeryHigh
	}
}

// Risk starts at 100 and deducts the points of every raised flag.
func Risk(f Facts, aff model.Affordability, cfg Config) model.RiskAssessment {
	ra := model.RiskAssessment{Fallback: true}
	raise := func(code string, sev model.Severity, points float64, detail string) {
		ra.Flags = append(ra.Flags, model.RiskFlag{Code: code, Severity: sev, Detail: detail, Points: points})
	}

	if !f.identityVerified() {
		raise(FlagIdentityUnverified, model.SeverityRed, 30, "identity could not be verified")
	}

	if b := f.bank(); b != nil && b.BouncedCount > 0 {
		pts := float64(min(b.BouncedCount*bouncePoints, bounceCap))
		raise(FlagBouncedTransactions, model.SeverityRed, pts, fmt.Sprintf("%d bounced or returned transaction(s)", b.BouncedCount))
	}

	if aff.MonthlyIncome > 0 {
		switch {
		case aff.FOIR > cfg.FOIRMax:
			raise(FlagHighFOIR, model.SeverityRed, 25, fmt.Sprintf("FOIR %.2f%% exceeds %.0f%%", aff.FOIR, cfg.FOIRMax))
		case aff.FOIR > foirHighMargin:
			raise(FlagElevatedFOIR, model.SeverityYellow, 10, fmt.Sprintf("FOIR %.2f%% above %d%%", aff.FOIR, foirHighMargin))
		}
	}

	if aff.MonthlyIncome > 0 && !incomeConsistent(f) {
		raise(FlagErraticIncome, model.SeverityYellow, 15, "income varies between periods")
	}

	if f.Education() {
		if a := f.admission(); a != nil && !a.InstitutionRecognized {
			raise(FlagUnrecognisedInstitute, model.SeverityYellow, 15, fmt.Sprintf("institution %q is not recognised", a.Institution))
		}
	}

	if mismatched := nameMismatches(f); len(mismatched) > 0 {
		raise(FlagNameMismatch, model.SeverityYellow, 10, "name differs on "+strings.Join(mismatched, ", "))
	}

	if rejected := rejectedClasses(f); len(rejected) > 0 {
		raise(FlagVerificationRejected, model.SeverityRed, 20, "verification rejected "+strings.Join(rejected, ", "))
	}

	score := 100.0
	for _, fl := range ra.Flags {
		score -= fl.Points
	}
	ra.Score = rules.Clamp(score, 0, 100)
	ra.Band = Band(ra.Score)
	return ra
}

// referenceName is the verified identity name, else the declared name.
func referenceName(f Facts) string {
	if id := f.identity(); id != nil && id.FullName != "" {
		return id.FullName
	}
	return f.Request.ApplicantName
}

// nameMismatches lists the document classes whose holder name does not match
// the reference name. Classes are reported in sorted order.
func nameMismatches(f Facts) []string {
	ref := referenceName(f)
	if strings.TrimSpace(ref) == "" {
		return nil
	}
	var out []string
	for t, r := range f.Reports {
		if t == model.DocIdentity || !r.Usable() {
			continue
		}
		for _, ex := range r.Extractions {
			name := model.HolderName(ex.Payload)
			if strings.TrimSpace(name) == "" || rules.NamesMatch(ref, name) {
				continue
			}
			out = append(out, t.Label())
			break
		}
	}
	sort.Strings(out)
	return out
}

func rejectedClasses(f Facts) []string {
	var out []string
	for t, r := range f.Reports {
		if r.Verification.Recommendation == model.RecommendReject && !r.Verification.Degraded {
			out = append(out, t.Label())
		}
	}
	sort.Strings(out)
	return out
}
