package decision

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docintel/internal/blob"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/pipeline"
)

// ReportStore persists reports and decisions. A nil store skips persistence.
type ReportStore interface {
	SaveReport(ctx context.Context, r *model.PipelineReport) error
	SaveDecision(ctx context.Context, d *model.Decision) error
}

// Engine runs the document pipelines of an application and folds their
// reports into a decision.
type Engine struct {
	pipelines map[model.DocumentType]pipeline.Pipeline
	reasoner  *Reasoner
	blobs     blob.Store
	store     ReportStore
	cfg       Config
	nowFunc   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithBlobStore stores every document before it is processed.
func WithBlobStore(b blob.Store) Option { return func(e *Engine) { e.blobs = b } }

// WithStore persists reports and the decision.
func WithStore(s ReportStore) Option { return func(e *Engine) { e.store = s } }

// WithReasoner enables the model review of the rule assessment.
func WithReasoner(r *Reasoner) Option { return func(e *Engine) { e.reasoner = r } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.nowFunc = now } }

// NewEngine creates an Engine over one pipeline per document class.
func NewEngine(pipelines map[model.DocumentType]pipeline.Pipeline, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		pipelines: pipelines,
		cfg:       withDefaults(cfg),
		nowFunc:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Assess processes every document of app and returns the decision. It
// always returns a decision, never panics, and never fails on persistence.
func (e *Engine) Assess(ctx context.Context, app model.Application) (d *model.Decision) {
	req := app.Request
	log := zap.L().With(zap.String("applicant", req.ApplicantID), zap.String("loan_type", string(req.Type)))
	start := e.nowFunc()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("decision: panic during assessment",
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			)
			d = e.stamp(&model.Decision{
				ApplicantID: req.ApplicantID,
				LoanType:    req.Type,
				Label:       model.DecisionFailed,
				Reasons:     []string{fmt.Sprintf("internal error: %v", rec)},
				NextSteps:   []string{"retry document processing"},
			})
		}
	}()

	if reason := checkRequest(req); reason != "" {
		log.Warn("decision: invalid loan request", zap.String("reason", reason))
		d = e.stamp(&model.Decision{
			ApplicantID: req.ApplicantID,
			LoanType:    req.Type,
			Label:       model.DecisionIncomplete,
			Reasons:     []string{reason},
			NextSteps:   []string{"correct the loan request"},
		})
		e.saveDecision(ctx, log, d)
		return d
	}

	reports := e.runPipelines(ctx, req.ApplicantID, app, log)
	for _, r := range reports {
		e.saveReport(ctx, log, r)
	}

	f := NewFacts(req, reports)
	aff := Affordability(f, e.cfg)
	elig := Eligibility(f, aff, e.cfg)
	risk := Risk(f, aff, e.cfg)
	if e.reasoner != nil {
		elig, risk = e.reasoner.Review(ctx, f, aff, elig, risk)
	}

	dec := Decide(f, aff, elig, risk, e.cfg)
	d = e.stamp(&dec)
	e.saveDecision(ctx, log, d)

	log.Info("decision: assessment complete",
		zap.String("decision_id", d.ID),
		zap.String("label", string(d.Label)),
		zap.Float64("confidence", d.Confidence),
		zap.String("risk_band", string(d.Risk.Band)),
		zap.Int("reports", len(reports)),
		zap.Duration("elapsed", e.nowFunc().Sub(start)),
	)
	return d
}

func checkRequest(req model.LoanRequest) string {
	switch {
	case req.ApplicantID == "":
		return "applicant id is required"
	case req.Amount <= 0:
		return "loan amount must be positive"
	case req.TenureMonths <= 0:
		return "tenure must be a positive number of months"
	}
	return ""
}

// runPipelines runs one pipeline per submitted class concurrently. Goroutines
// never return errors so no sibling is canceled.
func (e *Engine) runPipelines(ctx context.Context, applicantID string, app model.Application, log *zap.Logger) []*model.PipelineReport {
	byType := app.ByType()
	refs := e.storeDocuments(ctx, applicantID, app.Documents, log)

	var (
		mu      sync.Mutex
		reports []*model.PipelineReport
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, t := range model.AllDocumentTypes {
		docs, ok := byType[t]
		if !ok {
			continue
		}
		p, ok := e.pipelines[t]
		if !ok {
			log.Warn("decision: no pipeline for document type", zap.String("document_type", string(t)))
			continue
		}
		g.Go(func() error {
			r := runOne(gctx, p, t, pipeline.Input{ApplicantID: applicantID, Documents: docs, Refs: refs}, log)
			mu.Lock()
			reports = append(reports, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	// Stable order regardless of completion order.
	ordered := make([]*model.PipelineReport, 0, len(reports))
	for _, t := range model.AllDocumentTypes {
		for _, r := range reports {
			if r != nil && r.DocumentType == t {
				ordered = append(ordered, r)
			}
		}
	}
	return ordered
}

// runOne converts a pipeline panic into a failed report.
func runOne(ctx context.Context, p pipeline.Pipeline, t model.DocumentType, in pipeline.Input, log *zap.Logger) (r *model.PipelineReport) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("decision: pipeline panic", zap.String("document_type", string(t)), zap.Any("panic", rec))
			r = &model.PipelineReport{
				ID:           uuid.NewString(),
				ApplicantID:  in.ApplicantID,
				DocumentType: t,
				Status:       model.ReportFailed,
				Errors:       []string{fmt.Sprintf("panic: %v", rec)},
			}
		}
	}()
	r = p.Run(ctx, in)
	if r == nil {
		r = &model.PipelineReport{
			ID:           uuid.NewString(),
			ApplicantID:  in.ApplicantID,
			DocumentType: t,
			Status:       model.ReportFailed,
			Errors:       []string{"pipeline returned no report"},
		}
	}
	return r
}

// storeDocuments puts every loaded document into the blob store. Failures are
// logged and the document is processed without a reference.
func (e *Engine) storeDocuments(ctx context.Context, applicantID string, docs []model.Document, log *zap.Logger) map[string]model.DocumentRef {
	refs := make(map[string]model.DocumentRef, len(docs))
	if e.blobs == nil {
		return refs
	}
	for _, doc := range docs {
		if doc.LoadError != "" {
			continue
		}
		h, err := e.blobs.Put(ctx, doc.Data, blob.Metadata{
			ApplicantID: applicantID,
			DocumentID:  doc.ID,
			Name:        doc.Name,
			MediaType:   doc.MediaType,
		})
		if err != nil {
			log.Warn("decision: blob put failed", zap.String("document", doc.ID), zap.Error(err))
			continue
		}
		refs[doc.ID] = model.DocumentRef{
			ID:           doc.ID,
			Name:         doc.Name,
			MediaType:    doc.MediaType,
			URL:          h.URL,
			DeleteHandle: h.DeleteHandle,
		}
	}
	return refs
}

func (e *Engine) saveReport(ctx context.Context, log *zap.Logger, r *model.PipelineReport) {
	if e.store == nil || r == nil {
		return
	}
	if err := e.store.SaveReport(ctx, r); err != nil {
		log.Warn("decision: save report failed", zap.String("report", r.ID), zap.Error(err))
	}
}

func (e *Engine) saveDecision(ctx context.Context, log *zap.Logger, d *model.Decision) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveDecision(ctx, d); err != nil {
		log.Warn("decision: save decision failed", zap.String("decision", d.ID), zap.Error(err))
	}
}

func (e *Engine) stamp(d *model.Decision) *model.Decision {
	d.ID = uuid.NewString()
	d.DecidedAt = e.nowFunc().UTC()
	return d
}
