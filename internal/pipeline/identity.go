package pipeline

import (
	"fmt"
	"time"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

const identityPrompt = `Read this Indian identity document (Aadhaar, PAN card, passport, voter ID or driving licence).
Extract the holder's details exactly as printed. Set document_kind to one of aadhaar, pan, passport, voter_id, driving_licence.
Write dates as printed on the document.`

type identityClass struct {
	cfg config.PipelineConfig
}

func (identityClass) Type() model.DocumentType { return model.DocIdentity }

func (identityClass) Prompt() string { return identityPrompt }

// kindOf resolves the document kind, falling back to the number format.
func kindOf(d model.IdentityData) rules.IDKind {
	if k := rules.NormalizeIDKind(d.DocumentKind); k != "" {
		return k
	}
	return rules.DetectIDKind(d.IDNumber)
}

func (c identityClass) Validate(docs []model.IdentityData, now time.Time) []string {
	var issues []string
	for _, d := range docs {
		kind := kindOf(d)
		label := "identity"
		if kind != "" {
			label = string(kind)
		}
		if !rules.ValidID(kind, d.IDNumber) {
			issues = append(issues, fmt.Sprintf("%s: number %s fails the %s format check", label, rules.MaskID(d.IDNumber), label))
		}
		if rules.NormalizeName(d.FullName) == "" {
			issues = append(issues, label+": holder name is empty")
		}
		if d.DateOfBirth != "" {
			dob, ok := rules.ParseDate(d.DateOfBirth)
			switch {
			case !ok:
				issues = append(issues, fmt.Sprintf("%s: date of birth %q is not a valid date", label, d.DateOfBirth))
			case dob.After(now):
				issues = append(issues, label+": date of birth is in the future")
			default:
				if age := rules.Age(dob, now); age < c.cfg.MinAge || age > c.cfg.MaxAge {
					issues = append(issues, fmt.Sprintf("%s: age %d is outside %d-%d", label, age, c.cfg.MinAge, c.cfg.MaxAge))
				}
			}
		}
		if d.ExpiryDate != "" {
			if exp, ok := rules.ParseDate(d.ExpiryDate); ok && exp.Before(now) {
				issues = append(issues, fmt.Sprintf("%s: document expired on %s", label, exp.Format("2006-01-02")))
			}
		}
	}

	for i := 1; i < len(docs); i++ {
		if !rules.NamesMatch(docs[0].FullName, docs[i].FullName) {
			issues = append(issues, fmt.Sprintf("identity: name %q differs from %q", docs[i].FullName, docs[0].FullName))
		}
	}
	return issues
}

func (identityClass) Derive(docs []model.IdentityData, out Outcome, _ time.Time) model.Derived {
	a := &model.IdentityAssessment{
		Verified: len(docs) > 0 && out.Validation.Valid && out.Verification.Recommendation != model.RecommendReject,
	}
	if len(docs) > 0 {
		d := docs[0]
		a.DocumentKind = string(kindOf(d))
		a.MaskedID = rules.MaskID(d.IDNumber)
		a.FullName = d.FullName
		a.DateOfBirth = d.DateOfBirth
	}
	return model.Derived{Identity: a}
}
