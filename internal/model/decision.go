package model

import "time"

// LoanType is the kind of credit product requested.
type LoanType string

const (
	LoanEducation LoanType = "education"
	LoanPersonal  LoanType = "personal"
	LoanHome      LoanType = "home"
	LoanVehicle   LoanType = "vehicle"
)

// LoanRequest carries the declared loan parameters of one application.
type LoanRequest struct {
	ApplicantID   string   `json:"applicant_id" yaml:"applicant_id"`
	ApplicantName string   `json:"applicant_name,omitempty" yaml:"applicant_name"`
	Type          LoanType `json:"type" yaml:"type"`
	Amount        float64  `json:"amount" yaml:"amount"`
	TenureMonths  int      `json:"tenure_months" yaml:"tenure_months"`
	// AnnualRate overrides the configured rate for the loan type when > 0.
	AnnualRate float64 `json:"annual_rate,omitempty" yaml:"annual_rate"`
	// ExistingObligations is the declared monthly debt service.
	ExistingObligations float64 `json:"existing_obligations,omitempty" yaml:"existing_obligations"`
}

// IncomeSignal is one monthly income estimate from one document class.
type IncomeSignal struct {
	Source  DocumentType `json:"source"`
	Monthly float64      `json:"monthly"`
}

// Affordability is the amortization and obligation summary.
type Affordability struct {
	Principal           float64        `json:"principal"`
	AnnualRate          float64        `json:"annual_rate"`
	TenureMonths        int            `json:"tenure_months"`
	EMI                 float64        `json:"emi"`
	MonthlyIncome       float64        `json:"monthly_income"`
	IncomeSignals       []IncomeSignal `json:"income_signals"`
	ExistingObligations float64        `json:"existing_obligations"`
	FOIR                float64        `json:"foir"`
}

// EligibilityAssessment is the scored eligibility summary.
type EligibilityAssessment struct {
	Eligible         bool     `json:"eligible"`
	Score            float64  `json:"score"`
	Reasons          []string `json:"reasons"`
	MissingDocuments []string `json:"missing_documents"`
	Notes            []string `json:"notes"`
	Conditions       []string `json:"conditions,omitempty"`
	// Fallback is true when the rule-only path produced the result.
	Fallback        bool    `json:"fallback"`
	ModelAdjustment float64 `json:"model_adjustment"`
}

// RiskBand is an ordered risk classification.
type RiskBand string

const (
	RiskLow      RiskBand = "LOW"
	RiskMedium   RiskBand = "MEDIUM"
	RiskHigh     RiskBand = "HIGH"
	RiskVeryHigh RiskBand = "VERY_HIGH"
)

// Severity grades a risk flag.
type Severity string

const (
	SeverityRed    Severity = "red"
	SeverityYellow Severity = "yellow"
)

// RiskFlag is one deduction applied to the risk score.
type RiskFlag struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
	Points   float64  `json:"points"`
}

// RiskAssessment is the scored risk summary.
type RiskAssessment struct {
	Score           float64    `json:"score"`
	Band            RiskBand   `json:"band"`
	Flags           []RiskFlag `json:"flags"`
	Fallback        bool       `json:"fallback"`
	ModelAdjustment float64    `json:"model_adjustment"`
}

// HasFlag reports whether a flag with code is present.
func (r RiskAssessment) HasFlag(code string) bool {
	for _, f := range r.Flags {
		if f.Code == code {
			return true
		}
	}
	return false
}

// DecisionLabel is the terminal verdict.
type DecisionLabel string

const (
	DecisionApproved   DecisionLabel = "APPROVED"
	DecisionReview     DecisionLabel = "REVIEW"
	DecisionRejected   DecisionLabel = "REJECTED"
	DecisionIncomplete DecisionLabel = "INCOMPLETE"
	DecisionFailed     DecisionLabel = "FAILED"
)

// Decision is the final output for one application.
type Decision struct {
	ID            string                `json:"id"`
	ApplicantID   string                `json:"applicant_id"`
	LoanType      LoanType              `json:"loan_type"`
	Label         DecisionLabel         `json:"label"`
	Confidence    float64               `json:"confidence"`
	Reasons       []string              `json:"reasons"`
	Conditions    []string              `json:"conditions"`
	NextSteps     []string              `json:"next_steps"`
	Eligibility   EligibilityAssessment `json:"eligibility"`
	Risk          RiskAssessment        `json:"risk"`
	Affordability Affordability         `json:"affordability"`
	ReportIDs     []string              `json:"report_ids"`
	DecidedAt     time.Time             `json:"decided_at"`
}

// Application is one loan request with its uploaded documents.
type Application struct {
	Request   LoanRequest `json:"request"`
	Documents []Document  `json:"documents"`
}

// ByType groups the application's documents by class, preserving order.
func (a Application) ByType() map[DocumentType][]Document {
	out := make(map[DocumentType][]Document)
	for _, d := range a.Documents {
		out[d.Type] = append(out[d.Type], d)
	}
	return out
}
