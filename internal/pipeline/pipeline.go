// Package pipeline runs each document class through a fixed state machine:
// extract, validate, cross_verify, derive_assessment, report.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/provider"
	"github.com/sells-group/docintel/internal/rules"
	"github.com/sells-group/docintel/internal/schema"
)

// Pipeline processes the documents of one class.
type Pipeline interface {
	Type() model.DocumentType
	// Run always returns a report and never panics.
	Run(ctx context.Context, in Input) *model.PipelineReport
}

// Deps are the collaborators shared by every pipeline.
type Deps struct {
	Router  Router
	Schemas *schema.Validator
	Config  config.PipelineConfig
	Images  provider.ImageOptions
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New builds the pipeline for t.
func New(t model.DocumentType, d Deps) (Pipeline, error) {
	if d.Router == nil {
		return nil, eris.New("pipeline: router is required")
	}
	if d.Schemas == nil {
		return nil, eris.New("pipeline: schema validator is required")
	}
	cfg := withDefaults(d.Config)

	switch t {
	case model.DocIdentity:
		return newMachine[model.IdentityData](identityClass{cfg: cfg}, d), nil
	case model.DocPayslip:
		return newMachine[model.PayslipData](payslipClass{cfg: cfg}, d), nil
	case model.DocBankStatement:
		return newMachine[model.BankStatementData](bankClass{cfg: cfg}, d), nil
	case model.DocTaxReturn:
		return newMachine[model.TaxReturnData](taxClass{cfg: cfg}, d), nil
	case model.DocEmployment:
		return newMachine[model.EmploymentData](employmentClass{cfg: cfg}, d), nil
	case model.DocAcademic:
		return newMachine[model.AcademicData](academicClass{cfg: cfg}, d), nil
	case model.DocAdmission:
		known := append(append([]string(nil), rules.DefaultKnownInstitutions...), cfg.RecognizedInstitutions...)
		return newMachine[model.AdmissionData](admissionClass{
			cfg:        cfg,
			recognizer: rules.NewInstitutionRecognizer(known, cfg.InstitutionKeywords),
		}, d), nil
	default:
		return nil, eris.Errorf("pipeline: unknown document type %q", t)
	}
}

// NewAll builds one pipeline per document class.
func NewAll(d Deps) (map[model.DocumentType]Pipeline, error) {
	out := make(map[model.DocumentType]Pipeline, len(model.AllDocumentTypes))
	for _, t := range model.AllDocumentTypes {
		p, err := New(t, d)
		if err != nil {
			return nil, err
		}
		out[t] = p
	}
	return out, nil
}

func newMachine[T model.Payload](c Class[T], d Deps) *Machine[T] {
	return &Machine[T]{
		class:   c,
		router:  d.Router,
		schemas: d.Schemas,
		prompts: d.Config.Prompts,
		images:  d.Images,
		nowFunc: d.Now,
	}
}

// withDefaults fills zero thresholds so a partially built config behaves
// like the loaded one.
func withDefaults(c config.PipelineConfig) config.PipelineConfig {
	if c.PayslipTolerancePct <= 0 {
		c.PayslipTolerancePct = 2
	}
	if c.IncomeVariancePct <= 0 {
		c.IncomeVariancePct = 15
	}
	if c.EMIMatchTolerancePct <= 0 {
		c.EMIMatchTolerancePct = 5
	}
	if c.StableMonths <= 0 {
		c.StableMonths = 12
	}
	if c.MinAge <= 0 {
		c.MinAge = 16
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 100
	}
	if c.AdmissionMaxPastMonths <= 0 {
		c.AdmissionMaxPastMonths = 18
	}
	if c.AcademicTolerancePts <= 0 {
		c.AcademicTolerancePts = 2
	}
	if c.CGPAMultiplier <= 0 {
		c.CGPAMultiplier = 9.5
	}
	return c
}
