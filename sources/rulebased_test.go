package sources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuleBasedScoring(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	src := NewRuleBasedSource()
	rc := RequestContext{AuthorID: "user-1", ChannelID: "chan-1"}

	fixtures := []struct {
		text  string
		score int
	}{
		{text: "", score: 0},
		{text: "nice trade thanks", score: 0},
		{text: "Charizard.pk9", score: 0},
		{text: "you are stupid", score: 3},
		{text: "fuck you", score: 6},
		// elongation hides a toxic term: base 6 plus evasion bump
		{text: "fuuuuck you", score: 7},
		// separator bypassing: base 6 plus bump
		{text: "f.u.c.k you", score: 7},
		// censor char: slug substring match plus bump
		{text: "f*ck off", score: 7},
		{text: "kys", score: 9},
		// plural of a mild term still matches via de-pluralization
		{text: "what a bunch of idiots", score: 3},
	}

	for _, fix := range fixtures {
		res, err := src.Evaluate(ctx, fix.text, rc)
		assert.NoError(err)
		assert.True(res.Usable())
		assert.Equal(fix.score, res.Score, "text: %q", fix.text)
		assert.GreaterOrEqual(res.Confidence, 60)
		assert.LessOrEqual(res.Confidence, 100)
	}
}

func TestRuleBasedReasoning(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	src := NewRuleBasedSource()
	res, err := src.Evaluate(ctx, "fuuuuck you", RequestContext{})
	assert.NoError(err)
	assert.Contains(res.Reasoning, `matched toxic term "fuck"`)
	assert.Contains(res.Reasoning, "evasion detected: elongation")

	// terms ending in 's' must hit the token match directly, not just the
	// slug-substring fallback
	res, err = src.Evaluate(ctx, "kys", RequestContext{})
	assert.NoError(err)
	assert.Contains(res.Reasoning, `matched severe term "kys"`)
}
