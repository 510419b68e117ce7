package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/rules"
)

var defaults = withDefaults(config.PipelineConfig{})

func approved(valid bool) Outcome {
	return Outcome{
		Validation:   model.ValidationOutcome{Valid: valid},
		Verification: model.VerificationOutcome{Verified: true, Recommendation: model.RecommendApprove},
	}
}

func joined(issues []string) string {
	return strings.Join(issues, "\n")
}

func TestIdentity_Validate(t *testing.T) {
	c := identityClass{cfg: defaults}

	ok := model.IdentityData{DocumentKind: "Aadhaar", IDNumber: "2341 2341 2346", FullName: "Rahul Sharma", DateOfBirth: "10/06/1990"}
	assert.Empty(t, c.Validate([]model.IdentityData{ok}, testNow))

	bad := model.IdentityData{DocumentKind: "aadhaar", IDNumber: "234123412347", FullName: "Rahul Sharma", DateOfBirth: "01/01/2030"}
	issues := joined(c.Validate([]model.IdentityData{bad}, testNow))
	assert.Contains(t, issues, "fails the aadhaar format check")
	assert.Contains(t, issues, "XXXXXXXX2347")
	assert.Contains(t, issues, "date of birth is in the future")

	minor := model.IdentityData{IDNumber: "ABCDE1234F", FullName: "Rahul Sharma", DateOfBirth: "2015-01-01"}
	assert.Contains(t, joined(c.Validate([]model.IdentityData{minor}, testNow)), "pan: age 10 is outside 16-100")

	expired := model.IdentityData{DocumentKind: "passport", IDNumber: "K1234567", FullName: "Rahul Sharma", ExpiryDate: "2020-01-01"}
	assert.Contains(t, joined(c.Validate([]model.IdentityData{expired}, testNow)), "passport: document expired on 2020-01-01")

	other := model.IdentityData{IDNumber: "ABCDE1234F", FullName: "Priya Verma"}
	assert.Contains(t, joined(c.Validate([]model.IdentityData{ok, other}, testNow)), `name "Priya Verma" differs`)
}

func TestIdentity_Derive(t *testing.T) {
	c := identityClass{cfg: defaults}
	docs := []model.IdentityData{{IDNumber: "2341 2341 2346", FullName: "Rahul Sharma"}}

	d := c.Derive(docs, approved(true), testNow)
	require.NotNil(t, d.Identity)
	assert.True(t, d.Identity.Verified)
	assert.Equal(t, string(rules.IDAadhaar), d.Identity.DocumentKind)
	assert.Equal(t, "XXXXXXXX2346", d.Identity.MaskedID)

	rejected := approved(true)
	rejected.Verification.Recommendation = model.RecommendReject
	assert.False(t, c.Derive(docs, rejected, testNow).Identity.Verified)
	assert.False(t, c.Derive(docs, approved(false), testNow).Identity.Verified)

	degraded := approved(true)
	degraded.Verification = model.VerificationOutcome{Degraded: true, Recommendation: model.RecommendReview}
	assert.True(t, c.Derive(docs, degraded, testNow).Identity.Verified)
}

func TestPayslip_Validate(t *testing.T) {
	c := payslipClass{cfg: defaults}

	good := model.PayslipData{PayPeriod: "Jan 2025", GrossSalary: 60000, TotalDeductions: 10000, NetSalary: 49500}
	assert.Empty(t, c.Validate([]model.PayslipData{good}, testNow))

	lines := model.PayslipData{PayPeriod: "2025-02", GrossSalary: 60000, NetSalary: 50000,
		Deductions: []model.LineItem{{Name: "PF", Amount: 7000}, {Name: "TDS", Amount: 3000}}}
	assert.Empty(t, c.Validate([]model.PayslipData{lines}, testNow))

	mismatch := model.PayslipData{PayPeriod: "2025-03", GrossSalary: 60000, TotalDeductions: 10000, NetSalary: 45000}
	assert.Contains(t, joined(c.Validate([]model.PayslipData{mismatch}, testNow)), "does not equal gross minus deductions 50000.00")

	over := model.PayslipData{PayPeriod: "2025-04", GrossSalary: 40000, NetSalary: 45000}
	assert.Contains(t, joined(c.Validate([]model.PayslipData{over}, testNow)), "exceeds gross salary")

	negative := model.PayslipData{PayPeriod: "2025-05", NetSalary: 45000, BasicSalary: -1}
	assert.Contains(t, joined(c.Validate([]model.PayslipData{negative}, testNow)), "basic salary is negative")

	issues := joined(c.Validate([]model.PayslipData{good, good, {PayPeriod: "Q1", NetSalary: 1}}, testNow))
	assert.Contains(t, issues, "duplicate pay period 2025-01")
	assert.Contains(t, issues, "payslip Q1: pay period is not a recognizable month")
}

func TestPayslip_Derive(t *testing.T) {
	c := payslipClass{cfg: defaults}
	slips := []model.PayslipData{
		{EmployerName: "Acme Ltd", PayPeriod: "2025-01", GrossSalary: 60000, NetSalary: 50000},
		{EmployerName: "Acme Ltd", PayPeriod: "2025-02", GrossSalary: 60000, NetSalary: 50000},
		{EmployerName: "Acme Ltd", PayPeriod: "2025-03", GrossSalary: 62000, TotalDeductions: 10000},
	}
	d := c.Derive(slips, approved(true), testNow).Income
	require.NotNil(t, d)
	assert.InDelta(t, 50666.67, d.AverageMonthlyNet, 0.01)
	assert.InDelta(t, 60666.67, d.AverageMonthlyGross, 0.01)
	assert.Equal(t, 3, d.MonthsCovered)
	assert.True(t, d.Consistent)
	assert.Equal(t, "Acme Ltd", d.Employer)
}

func statement() model.BankStatementData {
	tx := func(date, desc string, amount float64, typ string, bal float64) model.Transaction {
		return model.Transaction{Date: date, Description: desc, Amount: model.Amount(amount), Type: typ, Balance: model.Amount(bal)}
	}
	return model.BankStatementData{
		BankName:       "HDFC Bank",
		AccountHolder:  "Rahul Sharma",
		AccountNumber:  "50100012345678",
		IFSC:           "HDFC0001234",
		PeriodStart:    "2025-01-01",
		PeriodEnd:      "2025-03-31",
		OpeningBalance: 10000,
		ClosingBalance: 144000,
		Transactions: []model.Transaction{
			tx("2025-01-01", "NEFT SALARY ACME LTD", 50000, "credit", 60000),
			tx("2025-01-05", "NACH HDFC LOAN EMI", 5000, "debit", 55000),
			tx("2025-02-01", "NEFT SALARY ACME LTD", 50000, "credit", 105000),
			tx("2025-02-05", "NACH HDFC LOAN EMI", 5000, "debit", 100000),
			tx("2025-02-10", "CHQ RETURN CHARGES", 500, "debit", 99500),
			tx("2025-03-01", "NEFT SALARY ACME LTD", 51000, "credit", 150500),
			tx("2025-03-05", "NACH HDFC LOAN EMI", 5000, "debit", 145500),
			tx("2025-03-20", "UPI grocery", 1500, "debit", 144000),
		},
	}
}

func TestBank_Validate(t *testing.T) {
	c := bankClass{cfg: defaults}
	assert.Empty(t, c.Validate([]model.BankStatementData{statement()}, testNow))

	newestFirst := statement()
	for i, j := 0, len(newestFirst.Transactions)-1; i < j; i, j = i+1, j-1 {
		newestFirst.Transactions[i], newestFirst.Transactions[j] = newestFirst.Transactions[j], newestFirst.Transactions[i]
	}
	assert.Empty(t, c.Validate([]model.BankStatementData{newestFirst}, testNow))

	bad := statement()
	bad.IFSC = "HDFC1001234"
	bad.Transactions[3].Balance = 90000
	bad.Transactions = append(bad.Transactions, model.Transaction{Date: "2025-05-02", Description: "ATM", Amount: 100, Type: "debit"})
	bad.Transactions = append(bad.Transactions, model.Transaction{Date: "someday", Description: "ATM", Amount: 100, Type: "debit"})
	issues := joined(c.Validate([]model.BankStatementData{bad}, testNow))
	assert.Contains(t, issues, `IFSC "HDFC1001234" is not a valid code`)
	assert.Contains(t, issues, "1 transactions fall outside the statement period")
	assert.Contains(t, issues, "1 transactions have no valid date")
	assert.Contains(t, issues, "running balance does not carry forward at 2 transactions")

	reversed := statement()
	reversed.PeriodStart, reversed.PeriodEnd = reversed.PeriodEnd, reversed.PeriodStart
	assert.Contains(t, joined(c.Validate([]model.BankStatementData{reversed}, testNow)), "period start must precede period end")
}

func TestBank_Derive(t *testing.T) {
	c := bankClass{cfg: defaults}
	d := c.Derive([]model.BankStatementData{statement()}, approved(true), testNow).Bank
	require.NotNil(t, d)

	require.Len(t, d.SalaryCredits, 3)
	assert.Equal(t, "2025-01", d.SalaryCredits[0].Month)
	assert.InDelta(t, 50333.33, d.MonthlySalary, 0.01)
	assert.True(t, d.SalaryRegular)

	require.Len(t, d.EMIClusters, 1)
	assert.Equal(t, 3, d.EMIClusters[0].Occurrences)
	assert.InDelta(t, 5000.0, d.ExistingEMI, 0.001)

	assert.Equal(t, 1, d.BouncedCount)
	assert.InDelta(t, 107437.5, d.AverageBalance, 0.001)
	assert.InDelta(t, 55000.0, d.MinimumBalance, 0.001)
}

func TestBank_RecurringCreditsWithoutKeywords(t *testing.T) {
	c := bankClass{cfg: defaults}
	s := model.BankStatementData{Transactions: []model.Transaction{
		{Date: "2025-01-02", Description: "NEFT ACME LTD", Amount: 48000, Type: "credit"},
		{Date: "2025-02-02", Description: "NEFT ACME LTD", Amount: 48500, Type: "credit"},
		{Date: "2025-02-14", Description: "UPI from friend", Amount: 2000, Type: "credit"},
		{Date: "2025-02-20", Description: "IMPS refund", Amount: 2100, Type: "CR"},
	}}
	d := c.Derive([]model.BankStatementData{s}, approved(true), testNow).Bank
	require.Len(t, d.SalaryCredits, 2)
	assert.InDelta(t, 48250.0, d.MonthlySalary, 0.001)
	assert.Empty(t, d.EMIClusters)
	assert.Zero(t, d.ExistingEMI)
}

func TestBank_SingleMonthDebitIsNotEMI(t *testing.T) {
	c := bankClass{cfg: defaults}
	s := model.BankStatementData{Transactions: []model.Transaction{
		{Date: "2025-01-05", Description: "LOAN EMI", Amount: 5000, Type: "debit"},
		{Date: "2025-01-25", Description: "LOAN EMI", Amount: 5000, Type: "debit"},
	}}
	d := c.Derive([]model.BankStatementData{s}, approved(true), testNow).Bank
	assert.Empty(t, d.EMIClusters)
}

func TestTax(t *testing.T) {
	c := taxClass{cfg: defaults}
	good := model.TaxReturnData{AssessmentYear: "2024-25", PAN: "ABCDE1234F", GrossTotalIncome: 1200000, TaxableIncome: 1000000, TaxPaid: 90000}
	older := model.TaxReturnData{AssessmentYear: "2023-24", GrossTotalIncome: 900000}
	assert.Empty(t, c.Validate([]model.TaxReturnData{good, older}, testNow))

	d := c.Derive([]model.TaxReturnData{older, good}, approved(true), testNow).Tax
	require.NotNil(t, d)
	assert.InDelta(t, 1200000.0, d.AnnualIncome, 0.001)
	assert.InDelta(t, 100000.0, d.MonthlyEquivalent, 0.001)
	assert.Equal(t, 2, d.YearsFiled)
	assert.True(t, d.TaxCompliant)

	bad := model.TaxReturnData{AssessmentYear: "2024-26", PAN: "ABCD1234F", GrossTotalIncome: 100, TaxableIncome: 200, TaxPaid: -5}
	issues := joined(c.Validate([]model.TaxReturnData{bad}, testNow))
	assert.Contains(t, issues, "is not a plausible YYYY-YY year")
	assert.Contains(t, issues, "is malformed")
	assert.Contains(t, issues, "taxable income 200.00 exceeds gross total income 100.00")
	assert.Contains(t, issues, "tax paid is negative")

	stale := c.Derive([]model.TaxReturnData{{AssessmentYear: "2019-20", TaxableIncome: 600000}}, approved(true), testNow).Tax
	assert.False(t, stale.TaxCompliant)
	assert.InDelta(t, 50000.0, stale.MonthlyEquivalent, 0.001)
}

func TestEmployment(t *testing.T) {
	c := employmentClass{cfg: defaults}
	past := model.EmploymentData{EmployerName: "Globex", StartDate: "2019-01-01", EndDate: "2021-12-31"}
	current := model.EmploymentData{EmployerName: "Acme Ltd", StartDate: "2022-01-01", EndDate: "Present", IsCurrent: true}
	assert.Empty(t, c.Validate([]model.EmploymentData{past, current}, testNow))

	d := c.Derive([]model.EmploymentData{past, current}, approved(true), testNow).Employment
	require.NotNil(t, d)
	assert.Equal(t, 76, d.TotalMonths)
	assert.Equal(t, 41, d.CurrentTenureMonths)
	assert.Equal(t, 2, d.Employers)
	assert.True(t, d.CurrentlyEmployed)
	assert.True(t, d.Stable)

	overlap := model.EmploymentData{EmployerName: "Globex", StartDate: "2019-01-01", EndDate: "2022-06-30"}
	merged := c.Derive([]model.EmploymentData{overlap, current}, approved(true), testNow).Employment
	assert.Equal(t, 77, merged.TotalMonths)

	recent := model.EmploymentData{EmployerName: "Initech", StartDate: "2025-01-01", IsCurrent: true}
	assert.False(t, c.Derive([]model.EmploymentData{recent}, approved(true), testNow).Employment.Stable)

	issues := joined(c.Validate([]model.EmploymentData{
		{EmployerName: "A", StartDate: "2021-01-01", EndDate: "2020-01-01"},
		{EmployerName: "B", StartDate: "2026-01-01"},
		{EmployerName: "C", StartDate: "2020-01-01", EndDate: "2026-01-01"},
	}, testNow))
	assert.Contains(t, issues, "employment at A: start date must precede end date")
	assert.Contains(t, issues, "employment at B: start date is in the future")
	assert.Contains(t, issues, "employment at C: end date is in the future")
}

func TestAcademic(t *testing.T) {
	c := academicClass{cfg: defaults}
	degree := model.AcademicData{Qualification: "B.Tech", YearOfPassing: 2022, CGPA: model.Num(8.2), Result: "Pass"}
	school := model.AcademicData{
		Qualification: "Class XII",
		YearOfPassing: 2018,
		Percentage:    model.Num(85),
		Subjects: []model.SubjectMark{
			{Name: "Maths", Obtained: 90, Maximum: 100},
			{Name: "Physics", Obtained: 80, Maximum: 100},
		},
	}
	assert.Empty(t, c.Validate([]model.AcademicData{degree, school}, testNow))

	d := c.Derive([]model.AcademicData{school, degree}, approved(true), testNow).Academic
	require.NotNil(t, d)
	assert.InDelta(t, 85.0, d.BestPercentage, 0.001)
	assert.Equal(t, "B.Tech", d.HighestQualification)
	assert.True(t, d.Passed)

	cgpaOnly := c.Derive([]model.AcademicData{degree}, approved(true), testNow).Academic
	assert.InDelta(t, 77.9, cgpaOnly.BestPercentage, 0.001)

	off := school
	off.Percentage = model.Num(80)
	assert.Contains(t, joined(c.Validate([]model.AcademicData{off}, testNow)), "stated percentage 80.00 differs from subject total 85.00")

	bad := model.AcademicData{
		Qualification: "B.Sc",
		YearOfPassing: 1985,
		Percentage:    model.Num(120),
		CGPA:          model.Num(11),
		Subjects:      []model.SubjectMark{{Name: "Chemistry", Obtained: 110, Maximum: 100}},
	}
	issues := joined(c.Validate([]model.AcademicData{bad}, testNow))
	assert.Contains(t, issues, "year of passing 1985 is outside 1990-2025")
	assert.Contains(t, issues, "percentage 120.00 is outside 0-100")
	assert.Contains(t, issues, "CGPA 11.00 is outside 0-10")
	assert.Contains(t, issues, "Chemistry marks 110 exceed maximum 100")

	failedRec := model.AcademicData{Qualification: "B.Com", Percentage: model.Num(30), Result: "FAIL"}
	assert.False(t, c.Derive([]model.AcademicData{failedRec}, approved(true), testNow).Academic.Passed)
}

func newAdmissionClass() admissionClass {
	return admissionClass{cfg: defaults, recognizer: rules.NewInstitutionRecognizer(nil, nil)}
}

func TestAdmission(t *testing.T) {
	c := newAdmissionClass()
	good := model.AdmissionData{
		InstitutionName:    "University of Melbourne",
		StudentName:        "Rahul Sharma",
		Program:            "Master of Data Science",
		IntakeDate:         "February 2026",
		TuitionFee:         45000,
		IssueDate:          "2025-05-01",
		AcceptanceDeadline: "2025-06-30",
	}
	assert.Empty(t, c.Validate([]model.AdmissionData{good}, testNow))

	d := c.Derive([]model.AdmissionData{good}, approved(true), testNow).Admission
	require.NotNil(t, d)
	assert.True(t, d.Valid)
	assert.True(t, d.InstitutionRecognized)
	assert.InDelta(t, 45000.0, d.TuitionFee, 0.001)

	unknown := good
	unknown.InstitutionName = "Bright Future Coaching Centre"
	assert.Contains(t, joined(c.Validate([]model.AdmissionData{unknown}, testNow)), "is not recognized")
	ud := c.Derive([]model.AdmissionData{unknown}, approved(false), testNow).Admission
	assert.True(t, ud.Valid)
	assert.False(t, ud.InstitutionRecognized)

	stale := good
	stale.IntakeDate = "2023-09-01"
	stale.AcceptanceDeadline = "2025-04-01"
	issues := joined(c.Validate([]model.AdmissionData{stale}, testNow))
	assert.Contains(t, issues, "intake 2023-09 is more than 18 months in the past")
	assert.Contains(t, issues, "acceptance deadline is not after the issue date")
	assert.False(t, c.Derive([]model.AdmissionData{stale}, approved(false), testNow).Admission.Valid)

	rejected := approved(true)
	rejected.Verification.Recommendation = model.RecommendReject
	assert.False(t, c.Derive([]model.AdmissionData{good}, rejected, testNow).Admission.Valid)
}

func TestAdmission_ConfiguredInstitutions(t *testing.T) {
	d := testDeps(t, newFakeRouter())
	d.Config.RecognizedInstitutions = []string{"Bright Future Academy"}
	p, err := New(model.DocAdmission, d)
	require.NoError(t, err)

	m := p.(*Machine[model.AdmissionData])
	ac := m.class.(admissionClass)
	assert.True(t, ac.recognizer.Recognized("Bright Future Academy, Pune"))
	assert.True(t, ac.recognizer.Recognized("IIT Bombay"))
}
