// Package engine is the runtime for message risk assessment: it normalizes
// and classifies incoming text, fans out to every enabled scoring source
// concurrently, joins on all of them settling, and hands the collected
// results to the consensus scorer. Assess never fails; every code path
// produces a decision.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/cachestore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/classify"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/consensus"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/countstore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/escalation"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/evasion"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/perftrack"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/sources"
)

// cache keyspace for serialized decisions
const decisionCacheName = "decision"

// runtime for executing assessments and recording moderation outcomes.
//
// TODO: careful when initializing: several fields should not be null, even though they are pointer type.
type Engine struct {
	Logger     *slog.Logger
	Registry   *sources.Registry
	Classifier *classify.Classifier
	Scorer     *consensus.Scorer
	Perf       *perftrack.Tracker
	Ladder     *escalation.Ladder
	Counters   countstore.CountStore
	// optional decision cache; nil disables caching
	Cache cachestore.CacheStore
}

// Outcome pairs the consensus decision with the concrete, history-aware
// action for the author (nil when no action is warranted).
type Outcome struct {
	Decision *consensus.Decision `json:"decision"`
	Action   *escalation.Rung    `json:"action,omitempty"`
	// number of prior violations of this type the action was based on
	PriorViolations int `json:"priorViolations"`
}

// Assess runs the full scoring pipeline for one message. It never returns an
// error: source failures degrade the decision, and a total outage yields the
// fixed fallback.
func (eng *Engine) Assess(ctx context.Context, text string, rc sources.RequestContext) (dec *consensus.Decision) {
	start := time.Now()
	defer func() {
		assessDuration.Observe(time.Since(start).Seconds())
		// similar to an HTTP server, we want to recover any panics from
		// source adapters or scoring
		if r := recover(); r != nil {
			eng.Logger.Error("assessment execution exception", "err", r, "author", rc.AuthorID)
			assessPanicCount.Inc()
			dec = eng.Scorer.Decide(nil, classify.ContentGeneral, text)
		}
		if dec != nil {
			decisionCount.WithLabelValues(string(dec.ActionCategory)).Inc()
		}
	}()

	// empty or whitespace-only input is zero-risk; skip the fan-out entirely
	if strings.TrimSpace(text) == "" {
		return &consensus.Decision{
			FinalScore:      0,
			Confidence:      90,
			ActionCategory:  consensus.ActionNone,
			Reasoning:       []string{"empty message"},
			PerSourceScores: map[string]consensus.SourceScore{},
		}
	}

	norm := evasion.Normalize(text)
	contentType := eng.Classifier.Classify(ctx, text, rc.ChannelID)
	rc.ContentTypeHint = contentType

	cacheKey := HashOfString(string(contentType) + "/" + norm.NormalizedText)
	if cached := eng.cachedDecision(ctx, cacheKey); cached != nil {
		eng.canonicalLogLine(rc, contentType, &norm, cached, true)
		return cached
	}

	results := eng.fanOut(ctx, text, rc)

	// report every attempted source before scoring, so even a fully failed
	// round still updates the tracker
	for name, res := range results {
		eng.Perf.Record(name, res.Err == nil, res.ResponseTimeMs)
		if res.Err != nil {
			sourceErrorCount.WithLabelValues(name).Inc()
			eng.Logger.Warn("source call failed", "source", name, "err", res.Err)
		}
	}

	decision := eng.Scorer.Decide(results, contentType, text)
	// the zero-source fallback reflects source health, not the text; caching
	// it would pin an outage verdict long after sources recover
	if decision.SourcesConsulted > 0 {
		eng.storeDecision(ctx, cacheKey, decision)
	}
	eng.canonicalLogLine(rc, contentType, &norm, decision, false)
	return decision
}

// ProcessMessage assesses the text and, when the decision calls for action,
// walks the escalation ladder using the author's stored violation history,
// then records the new violation.
func (eng *Engine) ProcessMessage(ctx context.Context, text string, rc sources.RequestContext) Outcome {
	decision := eng.Assess(ctx, text, rc)
	out := Outcome{Decision: decision}
	if decision.ActionCategory == consensus.ActionNone || decision.ViolationType == "" {
		return out
	}

	key := countstore.ViolationKey(rc.AuthorID, decision.ViolationType)
	prior, err := eng.Counters.GetCount(ctx, "violations", key, countstore.PeriodTotal)
	if err != nil {
		eng.Logger.Error("failed to read violation count", "err", err, "author", rc.AuthorID)
	}

	rung := eng.Ladder.Escalate(decision.ViolationType, prior)
	out.Action = &rung
	out.PriorViolations = prior

	if err := eng.Counters.Increment(ctx, "violations", key); err != nil {
		eng.Logger.Error("failed to increment violation count", "err", err, "author", rc.AuthorID)
	}
	if rc.ChannelID != "" {
		if err := eng.Counters.IncrementDistinct(ctx, "flagged-channels", rc.AuthorID, rc.ChannelID); err != nil {
			eng.Logger.Error("failed to increment flagged-channel count", "err", err, "author", rc.AuthorID)
		}
	}
	escalationCount.WithLabelValues(string(rung.Action)).Inc()
	return out
}

// fanOut issues one concurrent call per enabled source and blocks until all
// of them settle (success, error, or timeout). This is a barrier, not a
// race: the first result never short-circuits the others, and a slow source
// is never cancelled just because its siblings finished.
func (eng *Engine) fanOut(ctx context.Context, text string, rc sources.RequestContext) map[string]*sources.Result {
	enabled := eng.Registry.Enabled()
	results := make(map[string]*sources.Result, len(enabled))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, src := range enabled {
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()
			name := src.Descriptor().Name
			res := eng.callSource(ctx, src, text, rc)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	return results
}

// callSource runs one source call bounded by that source's configured
// timeout. Errors and timeouts are captured in the result, never raised.
func (eng *Engine) callSource(ctx context.Context, src sources.Source, text string, rc sources.RequestContext) *sources.Result {
	desc := src.Descriptor()
	start := time.Now()

	cctx, cancel := context.WithTimeout(ctx, desc.Timeout)
	defer cancel()

	if lim := eng.Registry.Limiter(desc.Name); lim != nil {
		if err := lim.Wait(cctx); err != nil {
			return &sources.Result{
				Err:            fmt.Errorf("rate limited: %w", err),
				ResponseTimeMs: time.Since(start).Milliseconds(),
			}
		}
	}

	type evalOut struct {
		res *sources.Result
		err error
	}
	ch := make(chan evalOut, 1)
	go func() {
		// a panicking adapter must not take down the process, or the barrier
		defer func() {
			if r := recover(); r != nil {
				ch <- evalOut{err: fmt.Errorf("source panic: %v", r)}
			}
		}()
		res, err := src.Evaluate(cctx, text, rc)
		ch <- evalOut{res: res, err: err}
	}()

	select {
	case out := <-ch:
		elapsed := time.Since(start).Milliseconds()
		if out.err != nil {
			return &sources.Result{Err: out.err, ResponseTimeMs: elapsed}
		}
		if out.res.ResponseTimeMs == 0 {
			out.res.ResponseTimeMs = elapsed
		}
		return out.res
	case <-cctx.Done():
		return &sources.Result{
			Err:            fmt.Errorf("source timed out after %s: %w", desc.Timeout, cctx.Err()),
			ResponseTimeMs: time.Since(start).Milliseconds(),
		}
	}
}

func (eng *Engine) cachedDecision(ctx context.Context, key string) *consensus.Decision {
	if eng.Cache == nil {
		return nil
	}
	raw, err := eng.Cache.Get(ctx, decisionCacheName, key)
	if err != nil || raw == "" {
		return nil
	}
	var dec consensus.Decision
	if err := json.Unmarshal([]byte(raw), &dec); err != nil {
		eng.Logger.Warn("discarding malformed cached decision", "err", err, "key", key)
		_ = eng.Cache.Purge(ctx, decisionCacheName, key)
		return nil
	}
	cacheHitCount.Inc()
	return &dec
}

func (eng *Engine) storeDecision(ctx context.Context, key string, dec *consensus.Decision) {
	if eng.Cache == nil {
		return
	}
	raw, err := json.Marshal(dec)
	if err != nil {
		return
	}
	if err := eng.Cache.Set(ctx, decisionCacheName, key, string(raw)); err != nil {
		eng.Logger.Warn("failed to cache decision", "err", err, "key", key)
	}
}

func (eng *Engine) canonicalLogLine(rc sources.RequestContext, ct classify.ContentType, norm *evasion.Result, dec *consensus.Decision, cached bool) {
	eng.Logger.Info("assessment",
		"author", rc.AuthorID,
		"channel", rc.ChannelID,
		"contentType", ct,
		"score", dec.FinalScore,
		"confidence", dec.Confidence,
		"action", dec.ActionCategory,
		"sources", dec.SourcesConsulted,
		"variance", dec.Variance,
		"consensus", dec.ConsensusReached,
		"evasion", norm.Techniques(),
		"cached", cached,
	)
}
