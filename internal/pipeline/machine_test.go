package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/router"
)

const payslipJSON = `{"employer_name": "Acme Ltd", "employee_name": "Rahul Sharma", "pay_period": "January 2025",
"gross_salary": 60000, "total_deductions": 10000, "net_salary": 50000, "confidence": 0.9}`

func payslipMachine(t *testing.T, r Router) *Machine[model.PayslipData] {
	t.Helper()
	p := newTestPipeline(t, model.DocPayslip, r)
	m, ok := p.(*Machine[model.PayslipData])
	require.True(t, ok)
	return m
}

func stateNames(stages []model.StageRecord) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.State
	}
	return out
}

func TestRun_CompleteReport(t *testing.T) {
	fr := newFakeRouter().
		reply(router.TaskExtraction, "```json\n"+payslipJSON+"\n```").
		reply(router.TaskVerification, approveReply)
	p := newTestPipeline(t, model.DocPayslip, fr)

	rep := p.Run(context.Background(), input(textDoc("ps-1", model.DocPayslip)))

	require.NotNil(t, rep)
	assert.Equal(t, model.ReportComplete, rep.Status)
	assert.Equal(t, "report", rep.FinalState)
	assert.Equal(t, []string{"extract", "validate", "cross_verify", "derive_assessment", "report"}, stateNames(rep.Stages))
	require.Len(t, rep.Extractions, 1)

	ex := rep.Extractions[0]
	assert.Equal(t, "ps-1", ex.DocumentID)
	assert.InDelta(t, 90.0, ex.Confidence, 0.001)
	assert.NotContains(t, ex.Raw, "confidence")
	assert.Equal(t, 1, ex.Attempt)
	assert.Empty(t, ex.SchemaIssues)

	assert.True(t, rep.Validation.Valid)
	assert.True(t, rep.Verification.Verified)
	assert.Equal(t, model.RecommendApprove, rep.Verification.Recommendation)
	require.NotNil(t, rep.Derived.Income)
	assert.InDelta(t, 50000.0, rep.Derived.Income.AverageMonthlyNet, 0.001)
	assert.True(t, rep.Derived.Income.Consistent)

	assert.Equal(t, int64(200), rep.Usage.InputTokens)
	assert.InDelta(t, 0.02, rep.Cost, 1e-9)
	assert.Equal(t, testNow, rep.StartedAt)
	assert.Equal(t, testNow, rep.FinishedAt)
	assert.NotEmpty(t, rep.ID)
}

func TestExtract_AllRoutingFailures(t *testing.T) {
	fr := newFakeRouter().fail(router.TaskExtraction)
	m := payslipMachine(t, fr)
	r := m.NewRun(input(textDoc("a", model.DocPayslip), textDoc("b", model.DocPayslip)))

	next := m.Extract(context.Background(), r)

	assert.Equal(t, StateReport, next)
	assert.Equal(t, model.ReportFailed, r.Report.Status)
	require.Len(t, r.Report.ExtractionErrors, 2)
	assert.True(t, r.Report.ExtractionErrors[0].Routing)
	assert.Contains(t, r.Report.Errors[0], "503 service unavailable")
}

func TestExtract_UnusableContentIsIncomplete(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskExtraction, `{"employer_name": "Acme Ltd"}`)
	m := payslipMachine(t, fr)
	r := m.NewRun(input(textDoc("a", model.DocPayslip)))

	next := m.Extract(context.Background(), r)

	assert.Equal(t, StateReport, next)
	assert.Equal(t, model.ReportIncomplete, r.Report.Status)
	require.Len(t, r.Report.ExtractionErrors, 1)
	assert.False(t, r.Report.ExtractionErrors[0].Routing)
	assert.Contains(t, r.Report.ExtractionErrors[0].Reason, "net_salary|gross_salary")
	assert.Contains(t, r.Report.ExtractionErrors[0].Reason, "pay_period")
}

func TestExtract_UnparseableRejectedAtRouter(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskExtraction, "I could not read this document.")
	m := payslipMachine(t, fr)
	r := m.NewRun(input(textDoc("a", model.DocPayslip)))

	assert.Equal(t, StateReport, m.Extract(context.Background(), r))
	assert.Equal(t, model.ReportFailed, r.Report.Status)
}

func TestExtract_PartialSuccessContinues(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskExtraction, payslipJSON, "not json at all")
	m := payslipMachine(t, fr)
	r := m.NewRun(input(textDoc("a", model.DocPayslip), textDoc("b", model.DocPayslip)))

	assert.Equal(t, StateValidate, m.Extract(context.Background(), r))
	assert.Len(t, r.Report.Extractions, 1)
	assert.Len(t, r.Payloads, 1)
	assert.Len(t, r.Report.ExtractionErrors, 1)
}

func TestExtract_NoDocuments(t *testing.T) {
	m := payslipMachine(t, newFakeRouter())
	r := m.NewRun(input())

	assert.Equal(t, StateReport, m.Extract(context.Background(), r))
	assert.Equal(t, model.ReportIncomplete, r.Report.Status)
}

func TestExtract_SchemaIssuesRecorded(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskExtraction,
		`{"pay_period": "2025-01", "net_salary": 50000, "basic_salary": true}`)
	m := payslipMachine(t, fr)
	r := m.NewRun(input(textDoc("a", model.DocPayslip)))

	require.Equal(t, StateValidate, m.Extract(context.Background(), r))
	require.Len(t, r.Report.Extractions, 1)
	assert.NotEmpty(t, r.Report.Extractions[0].SchemaIssues)

	assert.Equal(t, StateCrossVerify, m.Validate(context.Background(), r))
	assert.False(t, r.Report.Validation.Valid)
	assert.Contains(t, r.Report.Validation.Issues[0], "a: schema:")
}

func TestExtract_PromptCarriesHintAndText(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskExtraction, payslipJSON)
	m := payslipMachine(t, fr)
	r := m.NewRun(input(textDoc("a", model.DocPayslip)))
	m.Extract(context.Background(), r)

	calls := fr.calls(router.TaskExtraction)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, `"net_salary"`)
	assert.Contains(t, calls[0].Prompt, "scanned text of a")
	assert.Empty(t, calls[0].Images)
}

func TestExtract_PromptOverride(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskExtraction, payslipJSON)
	d := testDeps(t, fr)
	d.Config = config.PipelineConfig{Prompts: map[string]string{"payslip": "Custom payslip instructions."}}
	p, err := New(model.DocPayslip, d)
	require.NoError(t, err)

	p.Run(context.Background(), input(textDoc("a", model.DocPayslip)))

	calls := fr.calls(router.TaskExtraction)
	require.NotEmpty(t, calls)
	assert.True(t, strings.HasPrefix(calls[0].Prompt, "Custom payslip instructions."))
}

func TestExtract_ImageAttached(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		img.Set(x, 10, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	fr := newFakeRouter().reply(router.TaskExtraction, payslipJSON)
	m := payslipMachine(t, fr)
	doc := model.Document{ID: "img", Type: model.DocPayslip, Name: "slip.png", MediaType: "image/png", Data: buf.Bytes()}
	r := m.NewRun(input(doc))

	assert.Equal(t, StateValidate, m.Extract(context.Background(), r))
	calls := fr.calls(router.TaskExtraction)
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Images, 1)
	assert.NotContains(t, calls[0].Prompt, "Document text:")
}

func TestExtract_PDFWithoutTextLayer(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskExtraction, payslipJSON)
	m := payslipMachine(t, fr)
	doc := model.Document{ID: "scan", Type: model.DocPayslip, Name: "scan.pdf", MediaType: "application/pdf", Data: []byte("%PDF-1.4")}
	r := m.NewRun(input(doc))

	assert.Equal(t, StateReport, m.Extract(context.Background(), r))
	require.Len(t, r.Report.ExtractionErrors, 1)
	assert.Contains(t, r.Report.ExtractionErrors[0].Reason, "no text layer")
	assert.Empty(t, fr.calls(router.TaskExtraction))
}

func TestExtract_UnreadableDocumentIsIncomplete(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskExtraction, payslipJSON)
	m := payslipMachine(t, fr)
	lost := model.Document{ID: "lost", Type: model.DocPayslip, Name: "march.pdf", LoadError: "stat march.pdf: no such file"}
	r := m.NewRun(input(lost))

	assert.Equal(t, StateReport, m.Extract(context.Background(), r))
	assert.Equal(t, model.ReportIncomplete, r.Report.Status)
	require.Len(t, r.Report.ExtractionErrors, 1)
	assert.False(t, r.Report.ExtractionErrors[0].Routing)
	assert.Contains(t, r.Report.ExtractionErrors[0].Reason, "could not be loaded")
	assert.Empty(t, fr.calls(router.TaskExtraction))
}

func TestExtract_UnreadableDocumentAmongGoodOnes(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskExtraction, payslipJSON)
	m := payslipMachine(t, fr)
	lost := model.Document{ID: "lost", Type: model.DocPayslip, Name: "march.pdf", LoadError: "download failed"}
	r := m.NewRun(input(textDoc("a", model.DocPayslip), lost))

	assert.Equal(t, StateValidate, m.Extract(context.Background(), r))
	assert.Len(t, r.Report.Extractions, 1)
	require.Len(t, r.Report.ExtractionErrors, 1)
	assert.Equal(t, "lost", r.Report.ExtractionErrors[0].DocumentID)
	assert.Len(t, fr.calls(router.TaskExtraction), 1)
}

func TestDocumentText_TruncatesOnRuneBoundary(t *testing.T) {
	text := strings.Repeat("a", maxTextChars-1) + "₹₹₹"

	out := documentText(text)

	assert.True(t, utf8.ValidString(out))
	body := strings.TrimPrefix(out, "\n\nDocument text:\n")
	assert.LessOrEqual(t, len(body), maxTextChars)
	assert.Equal(t, strings.Repeat("a", maxTextChars-1), body)
}

func TestCrossVerify_DegradedWhenUnavailable(t *testing.T) {
	fr := newFakeRouter().fail(router.TaskVerification)
	m := payslipMachine(t, fr)
	r := m.NewRun(input())

	assert.Equal(t, StateDerive, m.CrossVerify(context.Background(), r))
	v := r.Report.Verification
	assert.False(t, v.Verified)
	assert.True(t, v.Degraded)
	assert.Equal(t, ReasonVerificationUnavailable, v.Reason)
	assert.Equal(t, model.RecommendReview, v.Recommendation)
}

func TestCrossVerify_LenientReply(t *testing.T) {
	fr := newFakeRouter().reply(router.TaskVerification,
		`Here you go: {'verified': False, 'confidence': '35', 'issues': [{'description': 'net pay mismatch'}], 'recommendation': 'Rejected'}`)
	m := payslipMachine(t, fr)
	r := m.NewRun(input())
	r.Report.Validation = model.ValidationOutcome{Issues: []string{"payslip 2025-01: net salary mismatch"}}

	assert.Equal(t, StateDerive, m.CrossVerify(context.Background(), r))
	v := r.Report.Verification
	assert.False(t, v.Verified)
	assert.False(t, v.Degraded)
	assert.InDelta(t, 35.0, v.Confidence, 0.001)
	assert.Equal(t, []string{"net pay mismatch"}, v.Issues)
	assert.Equal(t, model.RecommendReject, v.Recommendation)
	assert.Equal(t, "fake/fake-1", v.Provider)

	calls := fr.calls(router.TaskVerification)
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "net salary mismatch")
}

func TestDeriveAndReportTransitions(t *testing.T) {
	m := payslipMachine(t, newFakeRouter())
	r := m.NewRun(input())
	r.Payloads = []model.PayslipData{{PayPeriod: "2025-01", NetSalary: 40000}, {PayPeriod: "2025-02", NetSalary: 60000}}
	r.Report.Extractions = make([]model.ExtractionResult, 2)

	assert.Equal(t, StateReport, m.DeriveAssessment(context.Background(), r))
	require.NotNil(t, r.Report.Derived.Income)
	assert.InDelta(t, 20.0, r.Report.Derived.Income.VariancePct, 0.001)
	assert.False(t, r.Report.Derived.Income.Consistent)

	assert.Equal(t, StateDone, m.Report(context.Background(), r))
	assert.Equal(t, model.ReportComplete, r.Report.Status)
	assert.Equal(t, "report", r.Report.FinalState)
}

type panicRouter struct{}

func (panicRouter) Route(context.Context, router.Request) (*router.Result, error) {
	panic("boom")
}

func TestRun_RecoversPanic(t *testing.T) {
	p := newTestPipeline(t, model.DocIdentity, panicRouter{})

	var rep *model.PipelineReport
	assert.NotPanics(t, func() {
		rep = p.Run(context.Background(), input(textDoc("id", model.DocIdentity)))
	})
	require.NotNil(t, rep)
	assert.Equal(t, model.ReportFailed, rep.Status)
	assert.Equal(t, "extract", rep.FinalState)
	assert.Contains(t, rep.Errors[0], "panic in extract: boom")
}

func TestStep_UnknownState(t *testing.T) {
	m := payslipMachine(t, newFakeRouter())
	r := m.NewRun(input())
	assert.Equal(t, StateReport, m.Step(context.Background(), State("bogus"), r))
	assert.Equal(t, model.ReportFailed, r.Report.Status)
}

func TestNewRun_DocumentRefs(t *testing.T) {
	m := payslipMachine(t, newFakeRouter())
	in := input(textDoc("a", model.DocPayslip), textDoc("b", model.DocPayslip))
	in.Refs = map[string]model.DocumentRef{"a": {ID: "a", URL: "file:///tmp/a", DeleteHandle: "a"}}

	r := m.NewRun(in)
	require.Len(t, r.Report.Documents, 2)
	assert.Equal(t, "file:///tmp/a", r.Report.Documents[0].URL)
	assert.Equal(t, "a.pdf", r.Report.Documents[0].Name)
	assert.Equal(t, "b", r.Report.Documents[1].ID)
	assert.Empty(t, r.Report.Documents[1].URL)
}

func TestNew(t *testing.T) {
	all, err := NewAll(testDeps(t, newFakeRouter()))
	require.NoError(t, err)
	assert.Len(t, all, len(model.AllDocumentTypes))
	for dt, p := range all {
		assert.Equal(t, dt, p.Type())
	}

	_, err = New("unknown", testDeps(t, newFakeRouter()))
	assert.Error(t, err)

	_, err = New(model.DocPayslip, Deps{})
	assert.Error(t, err)
}
