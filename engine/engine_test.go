package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/consensus"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/countstore"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/escalation"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/sources"
)

func TestAssessSingleSource(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture(NewStubSource("rule-based", 4, 80))
	dec := eng.Assess(ctx, "you are awful at this", sources.RequestContext{AuthorID: "author-1"})

	assert.Equal(4.0, dec.FinalScore)
	assert.Equal(consensus.ActionDelete, dec.ActionCategory)
	assert.Equal("TOXICITY", dec.ViolationType)
	assert.Equal(1, dec.SourcesConsulted)
	assert.True(dec.ConsensusReached)
	assert.Equal(100, dec.Confidence)
}

func TestAssessElongatedProfanityEndToEnd(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture(sources.NewRuleBasedSource())
	dec := eng.Assess(ctx, "fuuuuck you", sources.RequestContext{AuthorID: "author-1"})

	assert.Equal(7.0, dec.FinalScore)
	assert.Equal(consensus.ActionBan, dec.ActionCategory)
	assert.Equal(1, dec.SourcesConsulted)
}

func TestAssessProtectedContent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture(
		NewStubSource("rule-based", 0, 90),
		NewStubSource("perspective", 0, 90),
	)
	dec := eng.Assess(ctx, "trading my shiny Charizard.pk9, anyone interested?", sources.RequestContext{AuthorID: "author-1", ChannelID: "trades"})

	assert.Equal(0.0, dec.FinalScore)
	assert.Equal(consensus.ActionNone, dec.ActionCategory)
	assert.Empty(dec.ViolationType)
	assert.Equal(2, dec.SourcesConsulted)
}

func TestAssessProtectedDampening(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture(NewStubSource("rule-based", 2, 80))
	dec := eng.Assess(ctx, "my shiny Charizard is ready", sources.RequestContext{AuthorID: "author-1"})

	assert.Equal(1.0, dec.FinalScore)
	assert.Equal(consensus.ActionNone, dec.ActionCategory)
	assert.Contains(dec.Reasoning, "score dampened for protected content")
}

func TestAssessDisagreement(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture(
		NewStubSource("rule-based", 2, 80),
		NewStubSource("perspective", 9, 80),
	)
	dec := eng.Assess(ctx, "whatever, that match was rough", sources.RequestContext{AuthorID: "author-1"})

	assert.InDelta(5.5, dec.FinalScore, 0.001)
	assert.False(dec.ConsensusReached)
	assert.InDelta(12.25, dec.Variance, 0.001)
	assert.Equal(70, dec.Confidence)
	assert.Equal(consensus.ActionMute, dec.ActionCategory)
}

func TestAssessFallbackAllDisabled(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	eng := EngineTestFixture(NewStubSource("rule-based", 8, 90))
	require.NoError(eng.Registry.SetEnabled("rule-based", false))

	dec := eng.Assess(ctx, "absolutely vile message", sources.RequestContext{AuthorID: "author-1"})
	assert.Equal(0.0, dec.FinalScore)
	assert.Equal(30, dec.Confidence)
	assert.Equal(consensus.ActionNone, dec.ActionCategory)
	assert.Equal([]string{"no sources available"}, dec.Reasoning)
	assert.Equal(0, dec.SourcesConsulted)
}

func TestAssessFailedSourceExcluded(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	broken := NewStubSource("perspective", 9, 90)
	broken.Err = fmt.Errorf("upstream 503")
	eng := EngineTestFixture(NewStubSource("rule-based", 2, 80), broken)

	dec := eng.Assess(ctx, "you suck at this", sources.RequestContext{AuthorID: "author-1"})

	assert.Equal(2.0, dec.FinalScore)
	assert.Equal(consensus.ActionWarn, dec.ActionCategory)
	assert.Equal(1, dec.SourcesConsulted)

	// both attempts are reported to the tracker, including the failure
	snap := eng.Perf.Snapshot("perspective")
	assert.Equal(int64(1), snap.TotalCalls)
	assert.Equal(int64(0), snap.SuccessfulCalls)
	snap = eng.Perf.Snapshot("rule-based")
	assert.Equal(int64(1), snap.SuccessfulCalls)
}

func TestAssessSlowSourceTimesOut(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	slow := NewStubSource("perspective", 9, 90)
	slow.Delay = 200 * time.Millisecond
	slow.Descriptor().Timeout = 20 * time.Millisecond
	eng := EngineTestFixture(NewStubSource("rule-based", 3, 80), slow)

	dec := eng.Assess(ctx, "what a miserable take", sources.RequestContext{AuthorID: "author-1"})

	assert.Equal(3.0, dec.FinalScore)
	assert.Equal(consensus.ActionDelete, dec.ActionCategory)
	assert.Equal(1, dec.SourcesConsulted)
	assert.Equal(int64(1), eng.Perf.Snapshot("perspective").TotalCalls)
}

func TestAssessPanickingSourceIsolated(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	boom := NewStubSource("perspective", 9, 90)
	boom.Explode = true
	eng := EngineTestFixture(NewStubSource("rule-based", 4, 80), boom)

	dec := eng.Assess(ctx, "utterly terrible person", sources.RequestContext{AuthorID: "author-1"})
	assert.Equal(4.0, dec.FinalScore)
	assert.Equal(1, dec.SourcesConsulted)
}

func TestAssessEmptyText(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture(NewStubSource("rule-based", 4, 80))
	for _, text := range []string{"", "   ", "\t\n"} {
		dec := eng.Assess(ctx, text, sources.RequestContext{AuthorID: "author-1"})
		assert.Equal(0.0, dec.FinalScore)
		assert.Equal(consensus.ActionNone, dec.ActionCategory)
		assert.Equal([]string{"empty message"}, dec.Reasoning)
	}
}

func TestAssessDecisionCache(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	stub := NewStubSource("rule-based", 4, 80)
	eng := EngineTestFixture(stub)
	rc := sources.RequestContext{AuthorID: "author-1"}

	first := eng.Assess(ctx, "you are awful at this", rc)
	second := eng.Assess(ctx, "you are awful at this", rc)
	assert.Equal(int32(1), stub.Calls.Load())
	assert.Equal(first.FinalScore, second.FinalScore)
	assert.Equal(first.ActionCategory, second.ActionCategory)

	// same canonical form after evasion normalization also hits the cache
	eng.Assess(ctx, "you are awwwful at this", rc)
	assert.Equal(int32(1), stub.Calls.Load())

	eng.Assess(ctx, "a different message entirely", rc)
	assert.Equal(int32(2), stub.Calls.Load())
}

func TestAssessOutageFallbackNotCached(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	stub := NewStubSource("rule-based", 4, 80)
	stub.Err = fmt.Errorf("upstream down")
	eng := EngineTestFixture(stub)
	rc := sources.RequestContext{AuthorID: "author-1"}

	dec := eng.Assess(ctx, "you are awful at this", rc)
	assert.Equal(0, dec.SourcesConsulted)
	assert.Equal(30, dec.Confidence)

	// once the source recovers, identical text must be re-assessed rather
	// than served the degraded decision for the rest of the cache TTL
	stub.Err = nil
	dec = eng.Assess(ctx, "you are awful at this", rc)
	assert.Equal(1, dec.SourcesConsulted)
	assert.Equal(4.0, dec.FinalScore)
	assert.Equal(consensus.ActionDelete, dec.ActionCategory)
	assert.Equal(int32(2), stub.Calls.Load())

	// the healthy decision is cached as usual
	eng.Assess(ctx, "you are awful at this", rc)
	assert.Equal(int32(2), stub.Calls.Load())
}

func TestProcessMessageEscalates(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture(NewStubSource("rule-based", 2, 80))
	rc := sources.RequestContext{AuthorID: "author-1", ChannelID: "general"}

	out := eng.ProcessMessage(ctx, "you are being rude", rc)
	assert.Equal("DISRESPECTFUL", out.Decision.ViolationType)
	assert.Equal(0, out.PriorViolations)
	assert.Equal(escalation.ActionWarn, out.Action.Action)

	out = eng.ProcessMessage(ctx, "you are being rude", rc)
	assert.Equal(1, out.PriorViolations)
	assert.Equal(escalation.ActionWarn, out.Action.Action)

	out = eng.ProcessMessage(ctx, "you are being rude", rc)
	assert.Equal(2, out.PriorViolations)
	assert.Equal(escalation.ActionMute, out.Action.Action)
	assert.Equal(time.Hour, out.Action.Duration)

	key := countstore.ViolationKey("author-1", "DISRESPECTFUL")
	count, err := eng.Counters.GetCount(ctx, "violations", key, countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(3, count)

	distinct, err := eng.Counters.GetCountDistinct(ctx, "flagged-channels", "author-1", countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, distinct)
}

func TestProcessMessageNoAction(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	eng := EngineTestFixture(NewStubSource("rule-based", 0, 90))
	out := eng.ProcessMessage(ctx, "have a great day everyone", sources.RequestContext{AuthorID: "author-1"})

	assert.Equal(consensus.ActionNone, out.Decision.ActionCategory)
	assert.Nil(out.Action)

	count, err := eng.Counters.GetCount(ctx, "violations", countstore.ViolationKey("author-1", "TOXICITY"), countstore.PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, count)
}
