package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/docintel/internal/config"
	"github.com/sells-group/docintel/internal/model"
	"github.com/sells-group/docintel/internal/provider"
	"github.com/sells-group/docintel/internal/router"
	"github.com/sells-group/docintel/internal/schema"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// fakeRouter answers each task class with a handler and applies the
// request's Accept hook the way the real router does.
type fakeRouter struct {
	mu       sync.Mutex
	requests []router.Request
	handlers map[router.TaskClass]func(router.Request) (string, error)
}

func newFakeRouter() *fakeRouter {
	return &fakeRouter{handlers: make(map[router.TaskClass]func(router.Request) (string, error))}
}

func (f *fakeRouter) on(task router.TaskClass, h func(router.Request) (string, error)) *fakeRouter {
	f.handlers[task] = h
	return f
}

func (f *fakeRouter) reply(task router.TaskClass, texts ...string) *fakeRouter {
	var mu sync.Mutex
	i := 0
	return f.on(task, func(router.Request) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		text := texts[len(texts)-1]
		if i < len(texts) {
			text = texts[i]
		}
		i++
		return text, nil
	})
}

func (f *fakeRouter) fail(task router.TaskClass) *fakeRouter {
	return f.on(task, func(router.Request) (string, error) {
		return "", &router.RouteError{Task: task, Attempts: []router.Attempt{{
			Key:  "fake/fake-1",
			Kind: provider.KindServer,
			Err:  errors.New("503 service unavailable"),
		}}}
	})
}

func (f *fakeRouter) Route(_ context.Context, req router.Request) (*router.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	h := f.handlers[req.Task]
	f.mu.Unlock()

	if h == nil {
		return nil, &router.RouteError{Task: req.Task}
	}
	text, err := h(req)
	if err != nil {
		return nil, err
	}
	resp := &provider.Response{
		Text:     text,
		Provider: "fake",
		Model:    "fake-1",
		Usage:    model.TokenUsage{InputTokens: 100, OutputTokens: 50},
		Cost:     0.01,
	}
	if req.Accept != nil {
		if err := req.Accept(resp); err != nil {
			return nil, &router.RouteError{Task: req.Task, Attempts: []router.Attempt{{
				Key:  "fake/fake-1",
				Kind: provider.KindParseFailure,
				Err:  err,
			}}}
		}
	}
	return &router.Result{Response: resp, Provider: "fake", Model: "fake-1", Attempt: 1}, nil
}

func (f *fakeRouter) calls(task router.TaskClass) []router.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []router.Request
	for _, r := range f.requests {
		if r.Task == task {
			out = append(out, r)
		}
	}
	return out
}

const approveReply = `{"verified": true, "confidence": 90, "issues": [], "strengths": ["consistent"], "recommendation": "approve"}`

func testDeps(t *testing.T, r Router) Deps {
	t.Helper()
	schemas, err := schema.New()
	require.NoError(t, err)
	return Deps{
		Router:  r,
		Schemas: schemas,
		Config:  config.PipelineConfig{},
		Now:     func() time.Time { return testNow },
	}
}

func newTestPipeline(t *testing.T, dt model.DocumentType, r Router) Pipeline {
	t.Helper()
	p, err := New(dt, testDeps(t, r))
	require.NoError(t, err)
	return p
}

func textDoc(id string, dt model.DocumentType) model.Document {
	return model.Document{
		ID:        id,
		Type:      dt,
		Name:      id + ".pdf",
		MediaType: "application/pdf",
		Text:      "scanned text of " + id,
	}
}

func input(docs ...model.Document) Input {
	return Input{ApplicantID: "app-1", Documents: docs}
}
