package decision

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/pipeline"
	"github.com/sells-group/docintel/internal/router"
)

func testConfig() Config {
	return withDefaults(Config{
		ModelReasoning: true,
		InterestRates:  map[string]float64{"personal": 12, "education": 10},
	})
}

func personalLoan() model.LoanRequest {
	return model.LoanRequest{
		ApplicantID:   "app-1",
		ApplicantName: "Asha Rao",
		Type:          model.LoanPersonal,
		Amount:        500000,
		TenureMonths:  60,
	}
}

func educationLoan() model.LoanRequest {
	req := personalLoan()
	req.Type = model.LoanEducation
	return req
}

func report(t model.DocumentType, status model.ReportStatus, payload model.Payload, derived model.Derived) *model.PipelineReport {
	r := &model.PipelineReport{
		ID:           "rep-" + string(t),
		ApplicantID:  "app-1",
		DocumentType: t,
		Status:       status,
		Derived:      derived,
		Validation:   model.ValidationOutcome{Valid: true},
		Verification: model.VerificationOutcome{Verified: true, Recommendation: model.RecommendApprove},
	}
	if status == model.ReportComplete && payload != nil {
		r.Extractions = []model.ExtractionResult{{DocumentID: "doc-" + string(t), DocumentType: t, Payload: payload, Confidence: 90}}
	}
	return r
}

func failedReport(t model.DocumentType) *model.PipelineReport {
	r := report(t, model.ReportFailed, nil, model.Derived{})
	r.Errors = []string{"doc: all providers failed"}
	return r
}

func identityReport(verified bool) *model.PipelineReport {
	return report(model.DocIdentity, model.ReportComplete,
		model.IdentityData{FullName: "Asha Rao", IDNumber: "ABCDE1234F", DateOfBirth: "1990-01-01"},
		model.Derived{Identity: &model.IdentityAssessment{Verified: verified, FullName: "Asha Rao", DocumentKind: "pan"}})
}

func payslipReport(net float64, consistent bool) *model.PipelineReport {
	return report(model.DocPayslip, model.ReportComplete,
		model.PayslipData{EmployeeName: "Asha Rao", EmployerName: "Acme", PayPeriod: "2025-05", NetSalary: model.Amount(net)},
		model.Derived{Income: &model.IncomeAssessment{AverageMonthlyNet: net, MonthsCovered: 3, Consistent: consistent, Employer: "Acme"}})
}

func bankReport(b model.BankAssessment) *model.PipelineReport {
	return report(model.DocBankStatement, model.ReportComplete,
		model.BankStatementData{AccountHolder: "Asha Rao", BankName: "HDFC"},
		model.Derived{Bank: &b})
}

func taxReport(annual float64, compliant bool) *model.PipelineReport {
	return report(model.DocTaxReturn, model.ReportComplete,
		model.TaxReturnData{TaxpayerName: "Asha Rao", AssessmentYear: "2024-25"},
		model.Derived{Tax: &model.TaxAssessment{AnnualIncome: annual, MonthlyEquivalent: annual / 12, YearsFiled: 1, TaxCompliant: compliant}})
}

func admissionReport(valid, recognized bool) *model.PipelineReport {
	return report(model.DocAdmission, model.ReportComplete,
		model.AdmissionData{InstitutionName: "Indian Institute of Technology Bombay", StudentName: "Asha Rao", Program: "M.Tech"},
		model.Derived{Admission: &model.AdmissionAssessment{Valid: valid, InstitutionRecognized: recognized, Institution: "Indian Institute of Technology Bombay", Program: "M.Tech"}})
}

func facts(req model.LoanRequest, reports ...*model.PipelineReport) Facts {
	return NewFacts(req, reports)
}

// assess runs the rule engine without the model pass.
func assess(f Facts) model.Decision {
	cfg := testConfig()
	aff := Affordability(f, cfg)
	return Decide(f, aff, Eligibility(f, aff, cfg), Risk(f, aff, cfg), cfg)
}

type mockRouter struct {
	mock.Mock
}

func (m *mockRouter) Route(ctx context.Context, req router.Request) (*router.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*router.Result)
	if res != nil && req.Accept != nil {
		if err := req.Accept(res.Response); err != nil {
			return nil, &router.RouteError{Task: req.Task}
		}
	}
	return res, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveReport(ctx context.Context, r *model.PipelineReport) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockStore) SaveDecision(ctx context.Context, d *model.Decision) error {
	return m.Called(ctx, d).Error(0)
}

// stubPipeline returns a canned report and records its input.
type stubPipeline struct {
	t      model.DocumentType
	report func(pipeline.Input) *model.PipelineReport

	mu     sync.Mutex
	inputs []pipeline.Input
}

func (s *stubPipeline) Type() model.DocumentType { return s.t }

func (s *stubPipeline) Run(_ context.Context, in pipeline.Input) *model.PipelineReport {
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	s.mu.Unlock()
	return s.report(in)
}

func stub(r *model.PipelineReport) *stubPipeline {
	return &stubPipeline{t: r.DocumentType, report: func(pipeline.Input) *model.PipelineReport {
		cp := *r
		return &cp
	}}
}
