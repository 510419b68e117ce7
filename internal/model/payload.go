package model

import (
	"sort"
	"strings"
)

// Payload is the typed structured content extracted from one document. It is
// implemented by exactly one struct per DocumentType.
type Payload interface {
	DocumentType() DocumentType
	// MissingFields lists mandatory fields that are absent. An empty result
	// means the extraction is usable.
	MissingFields() []string
}

// IdentityData is extracted from identity papers.
type IdentityData struct {
	DocumentKind string `json:"document_kind"`
	IDNumber     string `json:"id_number"`
	FullName     string `json:"full_name"`
	DateOfBirth  string `json:"date_of_birth"`
	Gender       string `json:"gender"`
	Address      string `json:"address"`
	FatherName   string `json:"father_name"`
	IssueDate    string `json:"issue_date"`
	ExpiryDate   string `json:"expiry_date"`
}

func (IdentityData) DocumentType() DocumentType { return DocIdentity }

func (d IdentityData) MissingFields() []string {
	return missing(map[string]bool{
		"id_number": blank(d.IDNumber),
		"full_name": blank(d.FullName),
	})
}

// LineItem is one named amount on a payslip.
type LineItem struct {
	Name   string `json:"name"`
	Amount Amount `json:"amount"`
}

// PayslipData is extracted from one monthly salary slip.
type PayslipData struct {
	EmployerName    string     `json:"employer_name"`
	EmployeeName    string     `json:"employee_name"`
	EmployeeID      string     `json:"employee_id"`
	PayPeriod       string     `json:"pay_period"`
	GrossSalary     Amount     `json:"gross_salary"`
	TotalDeductions Amount     `json:"total_deductions"`
	NetSalary       Amount     `json:"net_salary"`
	BasicSalary     Amount     `json:"basic_salary"`
	Deductions      []LineItem `json:"deductions"`
}

func (PayslipData) DocumentType() DocumentType { return DocPayslip }

func (d PayslipData) MissingFields() []string {
	return missing(map[string]bool{
		"pay_period":              blank(d.PayPeriod),
		"net_salary|gross_salary": d.NetSalary <= 0 && d.GrossSalary <= 0,
	})
}

// Transaction is one bank statement line.
type Transaction struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      Amount `json:"amount"`
	Type        string `json:"type"`
	Balance     Amount `json:"balance"`
}

// IsCredit reports whether the transaction adds money to the account.
func (t Transaction) IsCredit() bool {
	return strings.EqualFold(strings.TrimSpace(t.Type), "credit") || strings.EqualFold(t.Type, "cr")
}

// BankStatementData is extracted from one account statement.
type BankStatementData struct {
	BankName       string        `json:"bank_name"`
	AccountHolder  string        `json:"account_holder"`
	AccountNumber  string        `json:"account_number"`
	IFSC           string        `json:"ifsc"`
	PeriodStart    string        `json:"period_start"`
	PeriodEnd      string        `json:"period_end"`
	OpeningBalance Amount        `json:"opening_balance"`
	ClosingBalance Amount        `json:"closing_balance"`
	Transactions   []Transaction `json:"transactions"`
}

func (BankStatementData) DocumentType() DocumentType { return DocBankStatement }

func (d BankStatementData) MissingFields() []string {
	return missing(map[string]bool{
		"account_number": blank(d.AccountNumber),
		"period_start":   blank(d.PeriodStart),
		"period_end":     blank(d.PeriodEnd),
	})
}

// TaxReturnData is extracted from an income tax return or Form 16.
type TaxReturnData struct {
	FormType              string `json:"form_type"`
	AssessmentYear        string `json:"assessment_year"`
	PAN                   string `json:"pan"`
	TaxpayerName          string `json:"taxpayer_name"`
	GrossTotalIncome      Amount `json:"gross_total_income"`
	TaxableIncome         Amount `json:"taxable_income"`
	TaxPaid               Amount `json:"tax_paid"`
	FilingDate            string `json:"filing_date"`
	AcknowledgementNumber string `json:"acknowledgement_number"`
}

func (TaxReturnData) DocumentType() DocumentType { return DocTaxReturn }

func (d TaxReturnData) MissingFields() []string {
	return missing(map[string]bool{
		"assessment_year":                  blank(d.AssessmentYear),
		"gross_total_income|taxable_income": d.GrossTotalIncome <= 0 && d.TaxableIncome <= 0,
	})
}

// Income returns the best annual income figure on the return.
func (d TaxReturnData) Income() float64 {
	if d.GrossTotalIncome > 0 {
		return d.GrossTotalIncome.Float()
	}
	return d.TaxableIncome.Float()
}

// EmploymentData is extracted from offer, experience or relieving letters.
type EmploymentData struct {
	EmployerName   string `json:"employer_name"`
	EmployeeName   string `json:"employee_name"`
	Designation    string `json:"designation"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	IsCurrent      bool   `json:"is_current"`
	EmploymentType string `json:"employment_type"`
	LetterType     string `json:"letter_type"`
}

func (EmploymentData) DocumentType() DocumentType { return DocEmployment }

func (d EmploymentData) MissingFields() []string {
	return missing(map[string]bool{
		"employer_name": blank(d.EmployerName),
		"start_date":    blank(d.StartDate),
	})
}

// SubjectMark is one subject row on a marksheet.
type SubjectMark struct {
	Name     string `json:"name"`
	Obtained Amount `json:"obtained"`
	Maximum  Amount `json:"maximum"`
}

// AcademicData is extracted from a marksheet, transcript or degree certificate.
type AcademicData struct {
	InstitutionName   string         `json:"institution_name"`
	BoardOrUniversity string         `json:"board_or_university"`
	Qualification     string         `json:"qualification"`
	StudentName       string         `json:"student_name"`
	YearOfPassing     Year           `json:"year_of_passing"`
	Percentage        OptionalNumber `json:"percentage"`
	CGPA              OptionalNumber `json:"cgpa"`
	Grade             string         `json:"grade"`
	Result            string         `json:"result"`
	Subjects          []SubjectMark  `json:"subjects"`
}

func (AcademicData) DocumentType() DocumentType { return DocAcademic }

func (d AcademicData) MissingFields() []string {
	return missing(map[string]bool{
		"percentage|cgpa|grade": !d.Percentage.Set && !d.CGPA.Set && blank(d.Grade),
	})
}

// AdmissionData is extracted from an admission or offer letter of a school.
type AdmissionData struct {
	InstitutionName    string `json:"institution_name"`
	StudentName        string `json:"student_name"`
	Program            string `json:"program"`
	Country            string `json:"country"`
	IntakeDate         string `json:"intake_date"`
	TuitionFee         Amount `json:"tuition_fee"`
	Currency           string `json:"currency"`
	IssueDate          string `json:"issue_date"`
	AcceptanceDeadline string `json:"acceptance_deadline"`
	Conditional        bool   `json:"conditional"`
	ReferenceNumber    string `json:"reference_number"`
}

func (AdmissionData) DocumentType() DocumentType { return DocAdmission }

func (d AdmissionData) MissingFields() []string {
	return missing(map[string]bool{
		"institution_name": blank(d.InstitutionName),
		"student_name":     blank(d.StudentName),
		"program":          blank(d.Program),
	})
}

// HolderName returns the person named on the payload, if any.
func HolderName(p Payload) string {
	switch v := p.(type) {
	case IdentityData:
		return v.FullName
	case PayslipData:
		return v.EmployeeName
	case BankStatementData:
		return v.AccountHolder
	case TaxReturnData:
		return v.TaxpayerName
	case EmploymentData:
		return v.EmployeeName
	case AcademicData:
		return v.StudentName
	case AdmissionData:
		return v.StudentName
	}
	return ""
}

func blank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a")
}

func missing(checks map[string]bool) []string {
	var out []string
	for name, absent := range checks {
		if absent {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
