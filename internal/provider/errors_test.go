package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/docintel/internal/resilience"
)

func TestKindFromStatus(t *testing.T) {
	t.Parallel()
	cases := map[int]Kind{
		429: KindRateLimit,
		401: KindAuth,
		403: KindAuth,
		408: KindTimeout,
		504: KindTimeout,
		500: KindServer,
		529: KindServer,
		400: KindBadRequest,
		404: KindBadRequest,
		0:   KindTransport,
	}
	for code, want := range cases {
		assert.Equal(t, want, KindFromStatus(code), "status %d", code)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Kind(""), Classify(nil))
	assert.Equal(t, KindParseFailure, Classify(fmt.Errorf("route: %w", &Error{Kind: KindParseFailure, Err: errors.New("bad json")})))
	assert.Equal(t, KindCanceled, Classify(context.Canceled))
	assert.Equal(t, KindTimeout, Classify(context.DeadlineExceeded))
	assert.Equal(t, KindRateLimit, Classify(errors.New("rate limit reached")))
	assert.Equal(t, KindTransport, Classify(errors.New("eof")))
}

func TestClassify_WrappedVisionSentinel(t *testing.T) {
	t.Parallel()
	err := eris.Wrap(ErrVisionUnsupported, "slot gpt-text")
	assert.ErrorIs(t, err, ErrVisionUnsupported)
	assert.Equal(t, KindVisionUnsupported, Classify(err))
	assert.False(t, Retryable(err))
}

func TestRetryable(t *testing.T) {
	t.Parallel()
	for kind, want := range map[Kind]bool{
		KindTransport:         true,
		KindServer:            true,
		KindRateLimit:         true,
		KindTimeout:           true,
		KindEmptyResponse:     true,
		KindAuth:              false,
		KindBadRequest:        false,
		KindVisionUnsupported: false,
		KindParseFailure:      false,
		KindCanceled:          false,
	} {
		assert.Equal(t, want, Retryable(&Error{Kind: kind, Err: errors.New("x")}), string(kind))
	}
}

func TestKind_FallbackWorthy(t *testing.T) {
	t.Parallel()
	assert.True(t, KindRateLimit.FallbackWorthy())
	assert.True(t, KindParseFailure.FallbackWorthy())
	assert.False(t, KindServer.FallbackWorthy())
	assert.False(t, KindAuth.FallbackWorthy())
}

func TestError_RateLimited(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("call: %w", &Error{Provider: "groq", Model: "m", StatusCode: 429, Kind: KindRateLimit, Err: errors.New("slow")})
	assert.True(t, resilience.IsRateLimited(err))
	assert.Contains(t, err.Error(), "groq/m: rate_limit (status 429)")
	assert.False(t, resilience.IsRateLimited(&Error{Kind: KindServer, Err: errors.New("rate limit")}))
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := NewRegistry(NewOpenAICompat("groq", nil, nil), NewAnthropic(nil, nil, ""))
	assert.Equal(t, []string{"anthropic", "groq"}, r.Names())

	p, err := r.Get("groq")
	assert.NoError(t, err)
	assert.Equal(t, "groq", p.Name())

	_, err = r.Get("openai")
	assert.Error(t, err)
}

func TestSpec_Key(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "mistral/pixtral-large-latest", Spec{Provider: "mistral", Model: "pixtral-large-latest"}.Key())
}
