package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// TokenUsage tracks token consumption of model calls.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// ExtractionResult is the outcome of one successful extraction call.
type ExtractionResult struct {
	DocumentID   string       `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	Payload      Payload      `json:"payload"`
	// Raw is the repaired model output before typing, kept for audit.
	Raw map[string]any `json:"raw_extracted_data,omitempty"`
	// SchemaIssues are schema violations found at extraction time.
	SchemaIssues []string      `json:"schema_issues,omitempty"`
	Confidence   float64       `json:"confidence"`
	RawText      string        `json:"raw_text"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Attempt      int           `json:"attempt"`
	Duration     time.Duration `json:"duration"`
	Usage        TokenUsage    `json:"usage"`
	Cost         float64       `json:"cost_usd"`
}

// UnmarshalJSON restores the typed payload from its document type.
func (r *ExtractionResult) UnmarshalJSON(b []byte) error {
	type alias ExtractionResult
	var aux struct {
		alias
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return eris.Wrap(err, "model: unmarshal extraction result")
	}
	*r = ExtractionResult(aux.alias)
	if len(aux.Payload) == 0 || string(aux.Payload) == "null" {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(aux.Payload, &raw); err != nil {
		return eris.Wrap(err, "model: unmarshal payload")
	}
	p, err := DecodePayload(r.DocumentType, raw)
	if err != nil {
		return err
	}
	r.Payload = p
	return nil
}

// ExtractionError records why one document yielded no usable payload.
type ExtractionError struct {
	DocumentID string `json:"document_id"`
	Reason     string `json:"reason"`
	// Routing is true when every provider failed, as opposed to the model
	// answering with unusable content.
	Routing bool `json:"routing"`
}

func (e ExtractionError) Error() string {
	return e.DocumentID + ": " + e.Reason
}

// ValidationOutcome is the result of deterministic rule evaluation.
type ValidationOutcome struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// Recommendation is the coarse verdict of the verification model.
type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReview  Recommendation = "review"
	RecommendReject  Recommendation = "reject"
)

// VerificationOutcome is the cross-document consistency judgment.
type VerificationOutcome struct {
	Verified       bool           `json:"verified"`
	Confidence     float64        `json:"confidence"`
	Issues         []string       `json:"issues"`
	Strengths      []string       `json:"strengths"`
	Recommendation Recommendation `json:"recommendation"`
	Degraded       bool           `json:"degraded"`
	Reason         string         `json:"reason,omitempty"`
	Provider       string         `json:"provider,omitempty"`
}

// ReportStatus is the terminal condition of a pipeline run.
type ReportStatus string

const (
	ReportComplete   ReportStatus = "complete"
	ReportIncomplete ReportStatus = "incomplete"
	ReportFailed     ReportStatus = "failed"
)

// StageRecord logs one FSM state visit.
type StageRecord struct {
	State    string        `json:"state"`
	Duration time.Duration `json:"duration"`
	Note     string        `json:"note,omitempty"`
}

// PipelineReport is the finalized output of one document-class pipeline.
type PipelineReport struct {
	ID               string              `json:"id"`
	ApplicantID      string              `json:"applicant_id"`
	DocumentType     DocumentType        `json:"document_type"`
	Status           ReportStatus        `json:"status"`
	FinalState       string              `json:"final_state"`
	Documents        []DocumentRef       `json:"documents"`
	Extractions      []ExtractionResult  `json:"extractions"`
	ExtractionErrors []ExtractionError   `json:"extraction_errors,omitempty"`
	Validation       ValidationOutcome   `json:"validation"`
	Verification     VerificationOutcome `json:"verification"`
	Derived          Derived             `json:"derived"`
	Stages           []StageRecord       `json:"stages"`
	Errors           []string            `json:"errors,omitempty"`
	Usage            TokenUsage          `json:"usage"`
	Cost             float64             `json:"cost_usd"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
}

// Usable reports whether the report produced at least one extraction.
func (r *PipelineReport) Usable() bool {
	return r != nil && r.Status == ReportComplete && len(r.Extractions) > 0
}

// Derived holds the document-specific metrics. Exactly the field matching
// the report's DocumentType is set.
type Derived struct {
	Identity   *IdentityAssessment   `json:"identity,omitempty"`
	Income     *IncomeAssessment     `json:"income,omitempty"`
	Bank       *BankAssessment       `json:"bank,omitempty"`
	Tax        *TaxAssessment        `json:"tax,omitempty"`
	Employment *EmploymentAssessment `json:"employment,omitempty"`
	Academic   *AcademicAssessment   `json:"academic,omitempty"`
	Admission  *AdmissionAssessment  `json:"admission,omitempty"`
}

// IdentityAssessment summarizes identity verification.
type IdentityAssessment struct {
	Verified     bool   `json:"verified"`
	DocumentKind string `json:"document_kind"`
	MaskedID     string `json:"masked_id"`
	FullName     string `json:"full_name"`
	DateOfBirth  string `json:"date_of_birth,omitempty"`
}

// IncomeAssessment summarizes payslip income.
type IncomeAssessment struct {
	AverageMonthlyNet   float64 `json:"average_monthly_net"`
	AverageMonthlyGross float64 `json:"average_monthly_gross"`
	MonthsCovered       int     `json:"months_covered"`
	VariancePct         float64 `json:"variance_pct"`
	Consistent          bool    `json:"consistent"`
	Employer            string  `json:"employer"`
}

// SalaryCredit is one detected monthly salary deposit.
type SalaryCredit struct {
	Month       string  `json:"month"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// DebitCluster is a recurring debit attributed to an existing loan.
type DebitCluster struct {
	Label         string  `json:"label"`
	MonthlyAmount float64 `json:"monthly_amount"`
	Occurrences   int     `json:"occurrences"`
}

// BankAssessment summarizes bank statement activity.
type BankAssessment struct {
	SalaryCredits  []SalaryCredit `json:"salary_credits"`
	MonthlySalary  float64        `json:"monthly_salary"`
	SalaryRegular  bool           `json:"salary_regular"`
	VariancePct    float64        `json:"variance_pct"`
	EMIClusters    []DebitCluster `json:"emi_clusters"`
	ExistingEMI    float64        `json:"existing_emi"`
	BouncedCount   int            `json:"bounced_count"`
	AverageBalance float64        `json:"average_balance"`
	MinimumBalance float64        `json:"minimum_balance"`
}

// TaxAssessment summarizes tax filings.
type TaxAssessment struct {
	AnnualIncome      float64 `json:"annual_income"`
	MonthlyEquivalent float64 `json:"monthly_equivalent"`
	YearsFiled        int     `json:"years_filed"`
	TaxCompliant      bool    `json:"tax_compliant"`
}

// EmploymentAssessment summarizes employment history.
type EmploymentAssessment struct {
	TotalMonths         int  `json:"total_months"`
	CurrentTenureMonths int  `json:"current_tenure_months"`
	Employers           int  `json:"employers"`
	CurrentlyEmployed   bool `json:"currently_employed"`
	Stable              bool `json:"stable"`
}

// AcademicAssessment summarizes academic records.
type AcademicAssessment struct {
	BestPercentage       float64 `json:"best_percentage"`
	HighestQualification string  `json:"highest_qualification"`
	Passed               bool    `json:"passed"`
}

// AdmissionAssessment summarizes an admission letter.
type AdmissionAssessment struct {
	Valid                 bool    `json:"valid"`
	InstitutionRecognized bool    `json:"institution_recognized"`
	Institution           string  `json:"institution"`
	Program               string  `json:"program"`
	TuitionFee            float64 `json:"tuition_fee"`
}

// DecodePayload decodes raw model output into the typed payload for t.
func DecodePayload(t DocumentType, raw map[string]any) (Payload, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal raw payload")
	}
	switch t {
	case DocIdentity:
		return decodeAs[IdentityData](b)
	case DocPayslip:
		return decodeAs[PayslipData](b)
	case DocBankStatement:
		return decodeAs[BankStatementData](b)
	case DocTaxReturn:
		return decodeAs[TaxReturnData](b)
	case DocEmployment:
		return decodeAs[EmploymentData](b)
	case DocAcademic:
		return decodeAs[AcademicData](b)
	case DocAdmission:
		return decodeAs[AdmissionData](b)
	default:
		return nil, eris.Errorf("model: unknown document type %q", t)
	}
}

func decodeAs[T Payload](b []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, eris.Wrapf(err, "model: decode %T", v)
	}
	return v, nil
}
