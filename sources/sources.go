// Package sources defines the scoring-source contract: static descriptors,
// the normalized per-call result shape, and a registry of adapters. Each
// adapter is responsible for mapping its native response in to the one
// Result shape, keeping vendor heterogeneity at the edge.
package sources

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/classify"
)

// Descriptor is the static configuration for one scoring source, loaded once
// at process start. Only the enabled flag may be toggled at runtime.
type Descriptor struct {
	Name           string        `json:"name"`
	CapabilityTags []string      `json:"capabilityTags"`
	BaseWeight     float64       `json:"baseWeight"`
	Timeout        time.Duration `json:"timeout"`
	// max calls per second; 0 means unlimited
	RateLimit   float64 `json:"rateLimit"`
	CostPerCall float64 `json:"costPerCall"`

	enabled atomic.Bool
}

func (d *Descriptor) Enabled() bool {
	return d.enabled.Load()
}

func (d *Descriptor) SetEnabled(on bool) {
	d.enabled.Store(on)
}

// Result is one source's answer for one assessment. Produced once per call,
// never mutated afterwards.
type Result struct {
	// 0-10
	Score int `json:"score"`
	// 0-100
	Confidence     int      `json:"confidence"`
	Reasoning      []string `json:"reasoning"`
	ResponseTimeMs int64    `json:"responseTimeMs"`
	// set when the call failed or timed out; such results are excluded from
	// scoring but still reported to the performance tracker
	Err error `json:"-"`
}

// Usable reports whether this result can feed the consensus scorer.
func (r *Result) Usable() bool {
	return r != nil && r.Err == nil
}

// RequestContext carries the per-message metadata sources may use.
type RequestContext struct {
	AuthorID  string `json:"authorId"`
	ChannelID string `json:"channelId"`
	// hint computed by the classifier before fan-out; some sources use it to
	// skip work cheaply
	ContentTypeHint classify.ContentType `json:"contentTypeHint,omitempty"`
}

// Source is one independent scorer. Evaluate receives the original raw text
// (not the normalized form), since some sources do their own evasion handling
// and need the unmodified signal.
type Source interface {
	Descriptor() *Descriptor
	Evaluate(ctx context.Context, text string, rc RequestContext) (*Result, error)
}

// Registry holds every configured source plus a per-source rate limiter
// derived from the descriptor's RateLimit field.
type Registry struct {
	mu       sync.RWMutex
	sources  []Source
	limiters map[string]*rate.Limiter
}

func NewRegistry(srcs ...Source) *Registry {
	r := &Registry{
		limiters: make(map[string]*rate.Limiter),
	}
	for _, src := range srcs {
		r.Add(src)
	}
	return r
}

func (r *Registry) Add(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
	desc := src.Descriptor()
	if desc.RateLimit > 0 {
		r.limiters[desc.Name] = rate.NewLimiter(rate.Limit(desc.RateLimit), 1)
	}
}

func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Enabled returns every source whose descriptor enabled flag is set.
func (r *Registry) Enabled() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Source
	for _, src := range r.sources {
		if src.Descriptor().Enabled() {
			out = append(out, src)
		}
	}
	return out
}

func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, src := range r.sources {
		if src.Descriptor().Name == name {
			return src, true
		}
	}
	return nil, false
}

func (r *Registry) SetEnabled(name string, on bool) error {
	src, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown source: %s", name)
	}
	src.Descriptor().SetEnabled(on)
	return nil
}

// Limiter returns the rate limiter for a source, or nil when unlimited.
func (r *Registry) Limiter(name string) *rate.Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[name]
}
