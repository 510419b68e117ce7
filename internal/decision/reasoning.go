package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/provider"
	"github.com/sells-group/docintel/internal/repair"
	"github.com/sells-group/docintel/internal/router"
	"github.com/sells-group/docintel/internal/rules"
)

// Router is the subset of the model router the decision engine uses.
type Router interface {
	Route(ctx context.Context, req router.Request) (*router.Result, error)
}

const defaultReasoningPrompt = `You are a senior credit analyst reviewing a rule-based loan assessment.
Check whether the scores are consistent with the extracted document facts and flag anything the rules missed.
Respond with one JSON object only:
{"eligibility_adjustment": number between -%[1]g and %[1]g,
 "risk_adjustment": number between -%[1]g and %[1]g,
 "reasons": [string],
 "conditions": [string]}
A positive risk_adjustment means lower risk.`

type reasoningReply struct {
	EligibilityAdjustment model.Amount   `json:"eligibility_adjustment"`
	RiskAdjustment        model.Amount   `json:"risk_adjustment"`
	Reasons               model.TextList `json:"reasons"`
	Conditions            model.TextList `json:"conditions"`
}

// Reasoner asks the reasoning strategy to review the rule assessment.
type Reasoner struct {
	router  Router
	cfg     Config
	prompts map[string]string
}

// NewReasoner creates a Reasoner. A nil router disables model review.
func NewReasoner(r Router, cfg Config, prompts map[string]string) *Reasoner {
	return &Reasoner{router: r, cfg: withDefaults(cfg), prompts: prompts}
}

// Review returns the adjusted assessments. On any failure the rule
// assessments are returned with Fallback set.
func (r *Reasoner) Review(ctx context.Context, f Facts, aff model.Affordability, elig model.EligibilityAssessment, risk model.RiskAssessment) (model.EligibilityAssessment, model.RiskAssessment) {
	elig.Fallback, risk.Fallback = true, true
	if r == nil || r.router == nil || !r.cfg.ModelReasoning {
		return elig, risk
	}
	log := zap.L().With(zap.String("applicant", f.Request.ApplicantID), zap.String("stage", "reasoning"))

	prompt, err := r.prompt(f, aff, elig, risk)
	if err != nil {
		log.Warn("decision: build reasoning prompt", zap.Error(err))
		return elig, risk
	}

	accept := func(resp *provider.Response) error {
		var probe reasoningReply
		if !repair.Into(resp.Text, &probe) {
			return eris.New("decision: reasoning reply is not valid JSON")
		}
		return nil
	}
	res, err := r.router.Route(ctx, router.Request{Task: router.TaskReasoning, Prompt: prompt, Accept: accept})
	if err != nil {
		log.Warn("decision: model reasoning unavailable, using rules only", zap.Error(err))
		return elig, risk
	}
	var reply reasoningReply
	if !repair.Into(res.Response.Text, &reply) {
		log.Warn("decision: reasoning reply unparseable, using rules only")
		return elig, risk
	}

	limit := r.cfg.MaxAdjustment
	ea := rules.Clamp(reply.EligibilityAdjustment.Float(), -limit, limit)
	rk := rules.Clamp(reply.RiskAdjustment.Float(), -limit, limit)

	elig.Fallback, risk.Fallback = false, false
	elig.ModelAdjustment = ea
	elig.Score = rules.Round(rules.Clamp(elig.Score+ea, 0, 100), 2)
	elig.Reasons = append(elig.Reasons, reply.Reasons...)
	elig.Conditions = append(elig.Conditions, reply.Conditions...)

	risk.ModelAdjustment = rk
	risk.Score = rules.Round(rules.Clamp(risk.Score+rk, 0, 100), 2)
	risk.Band = Band(risk.Score)

	log.Debug("decision: model reasoning applied",
		zap.String("provider", res.Provider+"/"+res.Model),
		zap.Float64("cost_usd", res.Response.Cost),
		zap.Float64("eligibility_adjustment", ea),
		zap.Float64("risk_adjustment", rk),
	)
	return elig, risk
}

func (r *Reasoner) prompt(f Facts, aff model.Affordability, elig model.EligibilityAssessment, risk model.RiskAssessment) (string, error) {
	head := fmt.Sprintf(defaultReasoningPrompt, r.cfg.MaxAdjustment)
	if p := strings.TrimSpace(r.prompts["reasoning"]); p != "" {
		head = p
	}

	derived := make(map[model.DocumentType]any, len(f.Reports))
	for _, t := range model.AllDocumentTypes {
		rep, ok := f.Reports[t]
		if !ok {
			continue
		}
		derived[t] = map[string]any{
			"status":       rep.Status,
			"derived":      rep.Derived,
			"issues":       rep.Validation.Issues,
			"verification": rep.Verification,
		}
	}
	body, err := json.MarshalIndent(map[string]any{
		"loan":          f.Request,
		"affordability": aff,
		"eligibility":   elig,
		"risk":          risk,
		"documents":     derived,
	}, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "decision: marshal reasoning context")
	}

	var b strings.Builder
	b.WriteString(head)
	b.WriteString("\n\nAssessment:\n")
	b.Write(body)
	return b.String(), nil
}
