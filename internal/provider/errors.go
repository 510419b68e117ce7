package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/resilience"
)

// Kind classifies a model call failure.
type Kind string

const (
	KindTransport         Kind = "transport"
	KindAuth              Kind = "auth"
	KindBadRequest        Kind = "bad_request"
	KindServer            Kind = "server"
	KindRateLimit         Kind = "rate_limit"
	KindTimeout           Kind = "timeout"
	KindEmptyResponse     Kind = "empty_response"
	KindParseFailure      Kind = "parse_failure"
	KindVisionUnsupported Kind = "vision_unsupported"
	KindCanceled          Kind = "canceled"
)

// ErrVisionUnsupported is returned when images reach a text-only slot.
var ErrVisionUnsupported = eris.New("provider: model does not accept images")

// Error is a failed model call.
type Error struct {
	Provider   string
	Model      string
	StatusCode int
	Kind       Kind
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s/%s: %s (status %d): %v", e.Provider, e.Model, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s: %v", e.Provider, e.Model, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// RateLimited reports whether the failure was a rate limit.
func (e *Error) RateLimited() bool { return e.Kind == KindRateLimit }

// FallbackWorthy reports whether the kind is one the router expects to
// recover from on another slot: rate limits, timeouts, empty responses and
// structured-output parse failures.
func (k Kind) FallbackWorthy() bool {
	switch k {
	case KindRateLimit, KindTimeout, KindEmptyResponse, KindParseFailure:
		return true
	}
	return false
}

// KindFromStatus maps an HTTP status to a Kind.
func KindFromStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindBadRequest
	default:
		return KindTransport
	}
}

// Classify returns the Kind of err. Errors that are not *Error are
// classified from context state and network heuristics.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrVisionUnsupported):
		return KindVisionUnsupported
	case resilience.IsCanceled(err):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case resilience.IsRateLimited(err):
		return KindRateLimit
	}
	return KindTransport
}

// Retryable reports whether the same slot should be retried after err.
// Auth, bad requests, vision mismatches, cancellation and parse failures
// are not retried on the same slot.
func Retryable(err error) bool {
	switch Classify(err) {
	case KindAuth, KindBadRequest, KindVisionUnsupported, KindCanceled, KindParseFailure:
		return false
	}
	return true
}

// wrapCallError builds an *Error for a failed call made with callCtx.
func wrapCallError(spec Spec, parent, callCtx context.Context, status int, err error) *Error {
	kind := KindTransport
	switch {
	case parent.Err() != nil && resilience.IsCanceled(parent.Err()):
		kind = KindCanceled
	case callCtx.Err() == context.DeadlineExceeded:
		kind = KindTimeout
	case status != 0:
		kind = KindFromStatus(status)
	case resilience.IsRateLimited(err):
		kind = KindRateLimit
	}
	return &Error{
		Provider:   spec.Provider,
		Model:      spec.Model,
		StatusCode: status,
		Kind:       kind,
		Err:        err,
	}
}
