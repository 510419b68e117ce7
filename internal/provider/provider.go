// Package provider adapts heterogeneous model backends to one call contract:
// a prompt plus optional images in, plain text out.
package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/model"
)

// Spec is one configured model slot. It is an immutable value.
type Spec struct {
	Provider    string        `yaml:"provider" mapstructure:"provider" json:"provider"`
	Model       string        `yaml:"model" mapstructure:"model" json:"model"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature" json:"temperature"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens" json:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout" json:"timeout"`
	Vision      bool          `yaml:"vision" mapstructure:"vision" json:"vision"`
}

// Key identifies the slot for health tracking and rate limiting.
func (s Spec) Key() string {
	return s.Provider + "/" + s.Model
}

// Image is one image payload attached to a prompt.
type Image struct {
	MediaType string
	Data      []byte
}

// Response is the normalized result of one model call.
type Response struct {
	Text     string
	Provider string
	Model    string
	Duration time.Duration
	Usage    model.TokenUsage
	Cost     float64
}

// Provider invokes one model backend.
type Provider interface {
	// Name returns the provider identity used in Spec.Provider.
	Name() string
	// Invoke sends prompt and images to the model named by spec. Garbled
	// content is returned as text; only transport failures are errors, and
	// those are always *Error.
	Invoke(ctx context.Context, spec Spec, prompt string, images []Image) (*Response, error)
}

// CheckVision fails fast when images are sent to a text-only slot.
func CheckVision(spec Spec, images []Image) error {
	if len(images) > 0 && !spec.Vision {
		return &Error{
			Provider: spec.Provider,
			Model:    spec.Model,
			Kind:     KindVisionUnsupported,
			Err:      ErrVisionUnsupported,
		}
	}
	return nil
}

// callContext applies the per-call timeout of spec.
func callContext(ctx context.Context, spec Spec) (context.Context, context.CancelFunc) {
	if spec.Timeout > 0 {
		return context.WithTimeout(ctx, spec.Timeout)
	}
	return context.WithCancel(ctx)
}

// Registry resolves providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding ps.
func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.Register(p)
	}
	return r
}

// Register adds or replaces p under p.Name().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider named name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, eris.Errorf("provider: %q is not configured", name)
	}
	return p, nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
