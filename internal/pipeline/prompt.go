package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/docintel/internal/model"
)

const extractionSuffix = `

Return a single JSON object with exactly these fields:
%s

Also include "confidence": a number from 0 to 100 for how legibly and completely the document could be read.
Use null for fields that are not present. Copy numbers and identifiers exactly as printed.
Return only the JSON object, without commentary.`

const verificationPrompt = `You are checking data extracted from an applicant's %s for a loan application.

Extracted data:
%s

Issues found by deterministic checks:
%s

Judge whether the data is internally consistent and plausible for a genuine document.
Return a JSON object with these fields:
- verified: boolean
- confidence: number from 0 to 100
- issues: array of strings describing problems
- strengths: array of strings describing what looks genuine
- recommendation: one of "approve", "review", "reject"

Return only the JSON object.`

// classPrompt returns the configured prompt for the class or its default,
// followed by the field hint.
func classPrompt(overrides map[string]string, c interface {
	Type() model.DocumentType
	Prompt() string
}, hint string) string {
	base := c.Prompt()
	if o := strings.TrimSpace(overrides[string(c.Type())]); o != "" {
		base = o
	}
	return base + fmt.Sprintf(extractionSuffix, hint)
}

func buildVerificationPrompt(t model.DocumentType, extractions []model.ExtractionResult, issues []string) string {
	payloads := make([]model.Payload, 0, len(extractions))
	for _, e := range extractions {
		payloads = append(payloads, e.Payload)
	}
	data, err := json.MarshalIndent(payloads, "", "  ")
	if err != nil {
		data = []byte("[]")
	}

	issueText := "none"
	if len(issues) > 0 {
		issueText = "- " + strings.Join(issues, "\n- ")
	}
	return fmt.Sprintf(verificationPrompt, t.Label(), data, issueText)
}
