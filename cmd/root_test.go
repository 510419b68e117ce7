package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/resilience"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"assess", "decisions", "reports", "migrate", "circuits", "monitor"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "docintel", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAssessCommand_Flags(t *testing.T) {
	flag := assessCmd.Flags().Lookup("manifest")
	require.NotNil(t, flag, "assess command should have --manifest flag")
	assert.Equal(t, []string{"true"}, flag.Annotations["cobra_annotation_bash_completion_one_required_flag"])

	require.NotNil(t, assessCmd.Flags().Lookup("json"))
	require.NotNil(t, assessCmd.Flags().Lookup("circuits"))
}

func TestDecisionsCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range decisionsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "expected decisions subcommand %q", name)
	}

	flag := decisionsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func sampleDecision() *model.Decision {
	return &model.Decision{
		ID:          "0b9b6f3e-1111-2222-3333-444455556666",
		ApplicantID: "app-1",
		LoanType:    model.LoanPersonal,
		Label:       model.DecisionReview,
		Confidence:  62.4,
		Reasons:     []string{"manual review required (confidence 62.40)"},
		NextSteps:   []string{"route to credit officer for manual review"},
		Eligibility: model.EligibilityAssessment{Eligible: true, Score: 70},
		Risk: model.RiskAssessment{Score: 55, Band: model.RiskHigh, Flags: []model.RiskFlag{
			{Code: "high_foir", Severity: model.SeverityRed, Detail: "FOIR 63.0% above 60%", Points: 25},
		}},
		Affordability: model.Affordability{EMI: 11122.22, FOIR: 63},
		DecidedAt:     time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestFormatDecision(t *testing.T) {
	var buf bytes.Buffer
	formatDecision(&buf, sampleDecision())
	out := buf.String()

	assert.Contains(t, out, "REVIEW")
	assert.Contains(t, out, "62.40")
	assert.Contains(t, out, "55.00 HIGH")
	assert.Contains(t, out, "11122.22")
	assert.Contains(t, out, "Next steps:\n  - route to credit officer for manual review")
	assert.Contains(t, out, "[red] high_foir -25: FOIR 63.0% above 60%")
	assert.NotContains(t, out, "Conditions:")
}

func TestFormatDecisionsList(t *testing.T) {
	var buf bytes.Buffer
	formatDecisionsList(&buf, []model.Decision{*sampleDecision()})
	out := buf.String()
	assert.Contains(t, out, "0b9b6f3e")
	assert.NotContains(t, out, "0b9b6f3e-1111")
	assert.Contains(t, out, "2025-06-15 10:00")
}

func TestFormatCircuits(t *testing.T) {
	var buf bytes.Buffer
	formatCircuits(&buf, nil)
	assert.Contains(t, buf.String(), "All provider circuits closed.")

	buf.Reset()
	formatCircuits(&buf, []resilience.CircuitStatus{{
		Key:    "anthropic/claude-haiku",
		State:  resilience.CircuitOpen,
		Health: resilience.Health{ConsecutiveFailures: 5},
	}})
	assert.Contains(t, buf.String(), "anthropic/claude-haiku")
	assert.Contains(t, buf.String(), "5")
}

func TestComputeDecisionStats(t *testing.T) {
	ds := []model.Decision{
		{Label: model.DecisionApproved, Confidence: 90},
		{Label: model.DecisionApproved, Confidence: 80},
		{Label: model.DecisionRejected, Confidence: 40},
	}
	s := computeDecisionStats(ds)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.ByLabel[model.DecisionApproved])
	assert.InDelta(t, 70, s.AvgConfidence, 0.001)

	var buf bytes.Buffer
	formatDecisionStats(&buf, s)
	assert.Contains(t, buf.String(), "APPROVED:")
	assert.Contains(t, buf.String(), "Avg confidence:")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "12345678", truncateID("1234567890"))
}
