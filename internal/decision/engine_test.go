package decision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/blob"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/pipeline"
)

var engineNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func application(req model.LoanRequest, types ...model.DocumentType) model.Application {
	app := model.Application{Request: req}
	for _, t := range types {
		app.Documents = append(app.Documents, model.Document{
			ID:        "doc-" + string(t),
			Type:      t,
			Name:      string(t) + ".pdf",
			MediaType: "application/pdf",
			Data:      []byte("%PDF-1.4 " + string(t)),
			Text:      string(t) + " text",
		})
	}
	return app
}

func pipelines(ps ...*stubPipeline) map[model.DocumentType]pipeline.Pipeline {
	out := make(map[model.DocumentType]pipeline.Pipeline, len(ps))
	for _, p := range ps {
		out[p.t] = p
	}
	return out
}

func TestEngine_Assess(t *testing.T) {
	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	st := &mockStore{}
	st.On("SaveReport", mock.Anything, mock.AnythingOfType("*model.PipelineReport")).Return(nil).Twice()
	st.On("SaveDecision", mock.Anything, mock.AnythingOfType("*model.Decision")).Return(nil).Once()

	id := stub(identityReport(true))
	slip := stub(payslipReport(50000, true))
	e := NewEngine(pipelines(id, slip), testConfig(),
		WithBlobStore(blobs),
		WithStore(st),
		WithClock(func() time.Time { return engineNow }),
	)

	d := e.Assess(context.Background(), application(personalLoan(), model.DocIdentity, model.DocPayslip))
	require.NotNil(t, d)
	assert.Equal(t, model.DecisionApproved, d.Label)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, engineNow, d.DecidedAt)
	assert.Equal(t, "app-1", d.ApplicantID)
	assert.Len(t, d.ReportIDs, 2)
	assert.True(t, d.Eligibility.Fallback, "no reasoner configured")

	require.Len(t, id.inputs, 1)
	in := id.inputs[0]
	assert.Equal(t, "app-1", in.ApplicantID)
	require.Len(t, in.Documents, 1)
	assert.Equal(t, model.DocIdentity, in.Documents[0].Type)
	ref, ok := in.Refs["doc-identity"]
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(ref.URL, "file://"))
	assert.NotEmpty(t, ref.DeleteHandle)
	st.AssertExpectations(t)
}

func TestEngine_PersistenceFailuresAreBestEffort(t *testing.T) {
	st := &mockStore{}
	st.On("SaveReport", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	st.On("SaveDecision", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	e := NewEngine(pipelines(stub(identityReport(true)), stub(payslipReport(50000, true))), testConfig(), WithStore(st))
	d := e.Assess(context.Background(), application(personalLoan(), model.DocIdentity, model.DocPayslip))
	assert.Equal(t, model.DecisionApproved, d.Label)
}

type failingBlobs struct{}

func (failingBlobs) Put(context.Context, []byte, blob.Metadata) (blob.Handle, error) {
	return blob.Handle{}, errors.New("bucket unavailable")
}

func (failingBlobs) Delete(context.Context, string) error { return nil }

func TestEngine_BlobFailureStillProcesses(t *testing.T) {
	id := stub(identityReport(true))
	e := NewEngine(pipelines(id, stub(payslipReport(50000, true))), testConfig(), WithBlobStore(failingBlobs{}))

	d := e.Assess(context.Background(), application(personalLoan(), model.DocIdentity, model.DocPayslip))
	assert.Equal(t, model.DecisionApproved, d.Label)
	require.Len(t, id.inputs, 1)
	assert.Empty(t, id.inputs[0].Refs)
}

func TestEngine_UnreadableDocumentSkipsBlobStore(t *testing.T) {
	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	slip := stub(payslipReport(50000, true))
	e := NewEngine(pipelines(stub(identityReport(true)), slip), testConfig(), WithBlobStore(blobs))

	app := application(personalLoan(), model.DocIdentity, model.DocPayslip)
	app.Documents = append(app.Documents, model.Document{
		ID:        "lost",
		Type:      model.DocPayslip,
		Name:      "march.pdf",
		LoadError: "stat march.pdf: no such file",
	})

	d := e.Assess(context.Background(), app)
	assert.Equal(t, model.DecisionApproved, d.Label)
	require.Len(t, slip.inputs, 1)
	assert.Len(t, slip.inputs[0].Documents, 2)
	assert.Contains(t, slip.inputs[0].Refs, "doc-payslip")
	assert.NotContains(t, slip.inputs[0].Refs, "lost")
}

func TestEngine_BankFailureDoesNotFailDecision(t *testing.T) {
	e := NewEngine(pipelines(
		stub(identityReport(true)),
		stub(payslipReport(50000, true)),
		stub(failedReport(model.DocBankStatement)),
	), testConfig())

	d := e.Assess(context.Background(), application(personalLoan(), model.DocIdentity, model.DocPayslip, model.DocBankStatement))
	assert.NotEqual(t, model.DecisionFailed, d.Label)
	assert.Len(t, d.ReportIDs, 3)
	require.Len(t, d.Affordability.IncomeSignals, 1)
	assert.Equal(t, model.DocPayslip, d.Affordability.IncomeSignals[0].Source)
}

func TestEngine_InvalidRequest(t *testing.T) {
	id := stub(identityReport(true))
	e := NewEngine(pipelines(id), testConfig())

	req := personalLoan()
	req.TenureMonths = 0
	d := e.Assess(context.Background(), application(req, model.DocIdentity))
	assert.Equal(t, model.DecisionIncomplete, d.Label)
	assert.Contains(t, d.Reasons[0], "tenure")
	assert.Empty(t, id.inputs, "pipelines do not run for an invalid request")
	assert.NotEmpty(t, d.ID)
}

func TestEngine_PipelinePanicBecomesFailedReport(t *testing.T) {
	boom := &stubPipeline{t: model.DocIdentity, report: func(pipeline.Input) *model.PipelineReport { panic("nil map") }}
	e := NewEngine(pipelines(boom, stub(payslipReport(50000, true))), testConfig())

	d := e.Assess(context.Background(), application(personalLoan(), model.DocIdentity, model.DocPayslip))
	assert.Equal(t, model.DecisionFailed, d.Label)
	assert.Equal(t, "identity document processing failed", d.Reasons[0])
}

func TestEngine_NilReportBecomesFailedReport(t *testing.T) {
	empty := &stubPipeline{t: model.DocPayslip, report: func(pipeline.Input) *model.PipelineReport { return nil }}
	e := NewEngine(pipelines(stub(identityReport(true)), empty), testConfig())

	d := e.Assess(context.Background(), application(personalLoan(), model.DocIdentity, model.DocPayslip))
	assert.Equal(t, model.DecisionFailed, d.Label)
}

func TestEngine_MissingMandatoryDocument(t *testing.T) {
	e := NewEngine(pipelines(stub(identityReport(true)), stub(payslipReport(50000, true))), testConfig())

	d := e.Assess(context.Background(), application(educationLoan(), model.DocIdentity, model.DocPayslip))
	assert.Equal(t, model.DecisionIncomplete, d.Label)
	assert.Contains(t, d.NextSteps, "submit "+MissingAdmission)
}

func TestEngine_UsesReasoner(t *testing.T) {
	r := &mockRouter{}
	r.On("Route", mock.Anything, mock.MatchedBy(isReasoning)).
		Return(routed(`{"eligibility_adjustment": 5, "risk_adjustment": 0, "reasons": ["long banking relationship"]}`), nil).Once()

	e := NewEngine(pipelines(stub(identityReport(true)), stub(payslipReport(50000, true))), testConfig(),
		WithReasoner(NewReasoner(r, testConfig(), nil)))

	d := e.Assess(context.Background(), application(personalLoan(), model.DocIdentity, model.DocPayslip))
	assert.False(t, d.Eligibility.Fallback)
	assert.Equal(t, 5.0, d.Eligibility.ModelAdjustment)
	// 0.6*80 + 0.4*100
	assert.InDelta(t, 88, d.Confidence, 0.001)
	assert.Contains(t, d.Reasons, "long banking relationship")
	r.AssertExpectations(t)
}

func TestEngine_ConcurrentPipelines(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	wait := func(r *model.PipelineReport) *stubPipeline {
		return &stubPipeline{t: r.DocumentType, report: func(pipeline.Input) *model.PipelineReport {
			started <- struct{}{}
			<-release
			cp := *r
			return &cp
		}}
	}
	e := NewEngine(pipelines(wait(identityReport(true)), wait(payslipReport(50000, true))), testConfig())

	done := make(chan *model.Decision, 1)
	go func() {
		done <- e.Assess(context.Background(), application(personalLoan(), model.DocIdentity, model.DocPayslip))
	}()

	// Both pipelines must be running before either finishes.
	for range 2 {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("pipelines did not run concurrently")
		}
	}
	close(release)

	select {
	case d := <-done:
		assert.Equal(t, model.DecisionApproved, d.Label)
	case <-time.After(2 * time.Second):
		t.Fatal("assessment did not finish")
	}
}
