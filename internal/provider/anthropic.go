package provider

import (
	"context"
	"time"

	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/pkg/anthropic"
)

// Anthropic adapts the Messages API.
type Anthropic struct {
	client anthropic.Client
	costs  *cost.Calculator
	system string

	nowFunc func() time.Time
}

// NewAnthropic creates an Anthropic adapter. system, when non-empty, is sent
// as a cached system block on every call.
func NewAnthropic(client anthropic.Client, costs *cost.Calculator, system string) *Anthropic {
	return &Anthropic{client: client, costs: costs, system: system, nowFunc: time.Now}
}

// Name implements Provider.
func (a *Anthropic) Name() string { return "anthropic" }

// Invoke implements Provider.
func (a *Anthropic) Invoke(ctx context.Context, spec Spec, prompt string, images []Image) (*Response, error) {
	if err := CheckVision(spec, images); err != nil {
		return nil, err
	}

	callCtx, cancel := callContext(ctx, spec)
	defer cancel()

	msg := anthropic.Message{Role: "user", Content: prompt}
	for _, img := range images {
		msg.Images = append(msg.Images, anthropic.Image{MediaType: img.MediaType, Data: img.Data})
	}
	temp := spec.Temperature
	req := anthropic.MessageRequest{
		Model:       spec.Model,
		MaxTokens:   int64(maxTokens(spec)),
		Messages:    []anthropic.Message{msg},
		Temperature: &temp,
	}
	if a.system != "" {
		req.System = anthropic.BuildCachedSystemBlocks(a.system)
	}

	start := a.nowFunc()
	resp, err := a.client.CreateMessage(callCtx, req)
	if err != nil {
		return nil, wrapCallError(spec, ctx, callCtx, anthropic.StatusCode(err), err)
	}

	usage := cost.Usage{
		Input:      resp.Usage.InputTokens,
		Output:     resp.Usage.OutputTokens,
		CacheWrite: resp.Usage.CacheCreationInputTokens,
		CacheRead:  resp.Usage.CacheReadInputTokens,
	}
	return &Response{
		Text:     resp.Text(),
		Provider: a.Name(),
		Model:    spec.Model,
		Duration: a.nowFunc().Sub(start),
		Usage:    model.TokenUsage{InputTokens: usage.Input, OutputTokens: usage.Output},
		Cost:     a.costs.Model(a.Name(), spec.Model, usage),
	}, nil
}

func maxTokens(spec Spec) int {
	if spec.MaxTokens > 0 {
		return spec.MaxTokens
	}
	return 4096
}
