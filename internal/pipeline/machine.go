package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/provider"
	"github.com/sells-group/docintel/internal/router"
	"github.com/sells-group/docintel/internal/schema"
)

// State is one step of the document pipeline.
type State string

const (
	StateExtract     State = "extract"
	StateValidate    State = "validate"
	StateCrossVerify State = "cross_verify"
	StateDerive      State = "derive_assessment"
	StateReport      State = "report"
	// StateDone ends the run. It is never recorded as a stage.
	StateDone State = "done"
)

// Router routes a model call across the configured strategy.
type Router interface {
	Route(ctx context.Context, req router.Request) (*router.Result, error)
}

// Input is the set of same-class documents handed to one pipeline run.
type Input struct {
	ApplicantID string
	Documents   []model.Document
	// Refs are blob references keyed by document ID.
	Refs map[string]model.DocumentRef
}

// Outcome is what the derive step sees of the earlier stages.
type Outcome struct {
	Validation   model.ValidationOutcome
	Verification model.VerificationOutcome
}

// Class supplies the document-specific parts of a pipeline.
type Class[T model.Payload] interface {
	Type() model.DocumentType
	// Prompt is the default extraction instruction.
	Prompt() string
	// Validate evaluates deterministic rules over every payload.
	Validate(payloads []T, now time.Time) []string
	// Derive computes the class metrics.
	Derive(payloads []T, out Outcome, now time.Time) model.Derived
}

// Run is the mutable state of one pipeline execution.
type Run[T model.Payload] struct {
	Input    Input
	Report   *model.PipelineReport
	Payloads []T

	note string
	log  *zap.Logger
}

// Machine drives one document class through extract, validate,
// cross_verify, derive_assessment and report. It is safe for concurrent use;
// all run state lives in Run.
type Machine[T model.Payload] struct {
	class   Class[T]
	router  Router
	schemas *schema.Validator
	prompts map[string]string
	images  provider.ImageOptions
	nowFunc func() time.Time
}

func (m *Machine[T]) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc()
	}
	return time.Now()
}

// Type returns the document class handled by m.
func (m *Machine[T]) Type() model.DocumentType {
	return m.class.Type()
}

// NewRun prepares the state for one execution.
func (m *Machine[T]) NewRun(in Input) *Run[T] {
	t := m.class.Type()
	refs := make([]model.DocumentRef, 0, len(in.Documents))
	for _, d := range in.Documents {
		ref, ok := in.Refs[d.ID]
		if !ok {
			ref = model.DocumentRef{ID: d.ID}
		}
		if ref.Name == "" {
			ref.Name = d.Name
		}
		if ref.MediaType == "" {
			ref.MediaType = d.MediaType
		}
		refs = append(refs, ref)
	}
	return &Run[T]{
		Input: in,
		Report: &model.PipelineReport{
			ID:           uuid.NewString(),
			ApplicantID:  in.ApplicantID,
			DocumentType: t,
			Documents:    refs,
			StartedAt:    m.now(),
		},
		log: zap.L().With(zap.String("applicant", in.ApplicantID), zap.String("pipeline", string(t))),
	}
}

// Run executes every state and returns the frozen report. It never returns
// nil and never panics.
func (m *Machine[T]) Run(ctx context.Context, in Input) *model.PipelineReport {
	r := m.NewRun(in)
	r.log.Info("pipeline: starting", zap.Int("documents", len(in.Documents)))
	m.drive(ctx, r)
	r.log.Info("pipeline: finished",
		zap.String("status", string(r.Report.Status)),
		zap.String("final_state", r.Report.FinalState),
		zap.Int("extractions", len(r.Report.Extractions)),
		zap.Float64("cost_usd", r.Report.Cost),
	)
	return r.Report
}

func (m *Machine[T]) drive(ctx context.Context, r *Run[T]) {
	state := StateExtract
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("pipeline: panic recovered",
				zap.String("state", string(state)),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			r.Report.Status = model.ReportFailed
			r.Report.FinalState = string(state)
			r.Report.Errors = append(r.Report.Errors, fmt.Sprintf("panic in %s: %v", state, rec))
			r.Report.FinishedAt = m.now()
		}
	}()

	for state != StateDone {
		start := time.Now()
		next := m.Step(ctx, state, r)
		r.Report.Stages = append(r.Report.Stages, model.StageRecord{
			State:    string(state),
			Duration: time.Since(start),
			Note:     r.note,
		})
		r.note = ""
		state = next
	}
}

// Step runs the transition for state and returns the next state.
func (m *Machine[T]) Step(ctx context.Context, state State, r *Run[T]) State {
	switch state {
	case StateExtract:
		return m.Extract(ctx, r)
	case StateValidate:
		return m.Validate(ctx, r)
	case StateCrossVerify:
		return m.CrossVerify(ctx, r)
	case StateDerive:
		return m.DeriveAssessment(ctx, r)
	case StateReport:
		return m.Report(ctx, r)
	default:
		r.Report.Errors = append(r.Report.Errors, fmt.Sprintf("unknown state %q", state))
		r.Report.Status = model.ReportFailed
		return StateReport
	}
}
