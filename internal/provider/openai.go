package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/docintel/internal/cost"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/pkg/openaicompat"
)

// OpenAICompat adapts any OpenAI-compatible chat completions endpoint.
type OpenAICompat struct {
	name     string
	client   openaicompat.Client
	costs    *cost.Calculator
	system   string
	jsonMode bool

	nowFunc func() time.Time
}

// OpenAIOption configures an OpenAICompat adapter.
type OpenAIOption func(*OpenAICompat)

// WithSystemPrompt sends system as the first message of every call.
func WithSystemPrompt(system string) OpenAIOption {
	return func(o *OpenAICompat) { o.system = system }
}

// WithJSONMode requests response_format json_object.
func WithJSONMode() OpenAIOption {
	return func(o *OpenAICompat) { o.jsonMode = true }
}

// NewOpenAICompat creates an adapter registered under name.
func NewOpenAICompat(name string, client openaicompat.Client, costs *cost.Calculator, opts ...OpenAIOption) *OpenAICompat {
	o := &OpenAICompat{name: name, client: client, costs: costs, nowFunc: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name implements Provider.
func (o *OpenAICompat) Name() string { return o.name }

// Invoke implements Provider.
func (o *OpenAICompat) Invoke(ctx context.Context, spec Spec, prompt string, images []Image) (*Response, error) {
	if err := CheckVision(spec, images); err != nil {
		return nil, err
	}

	callCtx, cancel := callContext(ctx, spec)
	defer cancel()

	var msgs []openaicompat.Message
	if o.system != "" {
		msgs = append(msgs, openaicompat.Message{Role: "system", Content: o.system})
	}
	user := openaicompat.Message{Role: "user", Content: prompt}
	for _, img := range images {
		user.Images = append(user.Images, openaicompat.Image{MediaType: img.MediaType, Data: img.Data})
	}
	msgs = append(msgs, user)

	temp := spec.Temperature
	maxTok := maxTokens(spec)
	req := openaicompat.ChatCompletionRequest{
		Model:       spec.Model,
		Messages:    msgs,
		Temperature: &temp,
		MaxTokens:   &maxTok,
	}
	if o.jsonMode {
		req.ResponseFormat = &openaicompat.ResponseFormat{Type: "json_object"}
	}

	start := o.nowFunc()
	resp, err := o.client.ChatCompletion(callCtx, req)
	if err != nil {
		status := 0
		var se *openaicompat.StatusError
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return nil, wrapCallError(spec, ctx, callCtx, status, err)
	}

	usage := cost.Usage{Input: int64(resp.Usage.PromptTokens), Output: int64(resp.Usage.CompletionTokens)}
	return &Response{
		Text:     resp.Text(),
		Provider: o.name,
		Model:    spec.Model,
		Duration: o.nowFunc().Sub(start),
		Usage:    model.TokenUsage{InputTokens: usage.Input, OutputTokens: usage.Output},
		Cost:     o.costs.Model(o.name, spec.Model, usage),
	}, nil
}
