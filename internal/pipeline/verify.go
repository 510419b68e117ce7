package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/provider"
	"github.com/sells-group/docintel/internal/repair"
	"github.com/sells-group/docintel/internal/router"
	"github.com/sells-group/docintel/internal/rules"
)

// ReasonVerificationUnavailable marks a degraded verification outcome.
const ReasonVerificationUnavailable = "verification unavailable"

// CrossVerify asks the verification strategy to judge the extracted data.
// When no provider answers, the outcome is degraded rather than fatal.
func (m *Machine[T]) CrossVerify(ctx context.Context, r *Run[T]) State {
	prompt := buildVerificationPrompt(m.class.Type(), r.Report.Extractions, r.Report.Validation.Issues)

	var reply verificationReply
	res, err := m.router.Route(ctx, router.Request{
		Task:   router.TaskVerification,
		Prompt: prompt,
		Accept: func(resp *provider.Response) error {
			var probe verificationReply
			if !repair.Into(resp.Text, &probe) {
				return eris.New("pipeline: verification reply is not valid JSON")
			}
			return nil
		},
	})
	if err == nil && !repair.Into(res.Response.Text, &reply) {
		err = eris.New("pipeline: verification reply is not valid JSON")
	}
	if err != nil {
		r.log.Warn("pipeline: verification degraded", zap.Error(err))
		r.Report.Verification = model.VerificationOutcome{
			Verified:       false,
			Recommendation: model.RecommendReview,
			Degraded:       true,
			Reason:         ReasonVerificationUnavailable,
		}
		r.Report.Errors = append(r.Report.Errors, "cross_verify: "+err.Error())
		r.note = "degraded"
		return StateDerive
	}

	r.Report.Usage.Add(res.Response.Usage)
	r.Report.Cost += res.Response.Cost
	r.Report.Verification = model.VerificationOutcome{
		Verified:       reply.Verified,
		Confidence:     rules.Clamp(reply.Confidence.Float(), 0, 100),
		Issues:         reply.Issues,
		Strengths:      reply.Strengths,
		Recommendation: normalizeRecommendation(reply.Recommendation),
		Provider:       res.Provider + "/" + res.Model,
	}
	r.note = string(r.Report.Verification.Recommendation)
	return StateDerive
}

type verificationReply struct {
	Verified       bool           `json:"verified"`
	Confidence     model.Amount   `json:"confidence"`
	Issues         model.TextList `json:"issues"`
	Strengths      model.TextList `json:"strengths"`
	Recommendation string         `json:"recommendation"`
}

func normalizeRecommendation(s string) model.Recommendation {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved", "accept", "accepted":
		return model.RecommendApprove
	case "reject", "rejected", "decline", "declined":
		return model.RecommendReject
	default:
		return model.RecommendReview
	}
}
