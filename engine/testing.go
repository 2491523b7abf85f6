package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/cachestore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/classify"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/consensus"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/countstore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/escalation"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/perftrack"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/setstore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/sources"
)

// StubSource is a canned scoring source for tests. Give it a name from the
// weight profiles ("rule-based", "perspective", ...) to exercise real weights.
type StubSource struct {
	desc   *sources.Descriptor
	Result *sources.Result
	Err    error
	// artificial latency before answering
	Delay time.Duration
	// panics on Evaluate when set
	Explode bool
	Calls   atomic.Int32
}

var _ sources.Source = (*StubSource)(nil)

func NewStubSource(name string, score, confidence int) *StubSource {
	desc := &sources.Descriptor{
		Name:       name,
		BaseWeight: 0.5,
		Timeout:    time.Second,
	}
	desc.SetEnabled(true)
	return &StubSource{
		desc: desc,
		Result: &sources.Result{
			Score:          score,
			Confidence:     confidence,
			Reasoning:      []string{name + " stub"},
			ResponseTimeMs: 5,
		},
	}
}

func (s *StubSource) Descriptor() *sources.Descriptor { return s.desc }

func (s *StubSource) Evaluate(ctx context.Context, text string, rc sources.RequestContext) (*sources.Result, error) {
	s.Calls.Add(1)
	if s.Explode {
		panic("stub source exploding")
	}
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	res := *s.Result
	return &res, nil
}

// EngineTestFixture returns a fully wired in-memory engine over the given
// sources, with the built-in classifier vocabularies and default weight
// profiles.
func EngineTestFixture(srcs ...sources.Source) *Engine {
	sets := setstore.NewMemSetStore()
	for name, vals := range classify.DefaultSets() {
		sets.AddSet(name, vals)
	}

	perf := perftrack.NewTracker()
	scorer, err := consensus.NewScorer(consensus.DefaultWeightProfiles(), perf)
	if err != nil {
		panic(err)
	}

	return &Engine{
		Logger:     slog.Default(),
		Registry:   sources.NewRegistry(srcs...),
		Classifier: classify.NewClassifier(sets),
		Scorer:     scorer,
		Perf:       perf,
		Ladder:     escalation.DefaultLadder(),
		Counters:   countstore.NewMemCountStore(),
		Cache:      cachestore.NewMemCacheStore(100, time.Minute),
	}
}
