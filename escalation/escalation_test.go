package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalateRungSelection(t *testing.T) {
	assert := assert.New(t)
	ladder := DefaultLadder()

	// two prior DISRESPECTFUL violations land on the mute rung
	rung := ladder.Escalate("DISRESPECTFUL", 2)
	assert.Equal(ActionMute, rung.Action)
	assert.Equal(time.Hour, rung.Duration)

	rung = ladder.Escalate("DISRESPECTFUL", 0)
	assert.Equal(ActionWarn, rung.Action)
}

func TestEscalateMonotonic(t *testing.T) {
	assert := assert.New(t)
	ladder := DefaultLadder()

	for _, vtype := range []string{"DISRESPECTFUL", "TOXICITY", "HARASSMENT", "SEVERE_TOXICITY"} {
		prev := 0
		for n := 0; n < 10; n++ {
			rung := ladder.Escalate(vtype, n)
			assert.GreaterOrEqual(rung.Action.Severity(), prev, "%s at count %d", vtype, n)
			prev = rung.Action.Severity()
		}
	}
}

func TestEscalateStickyLastRung(t *testing.T) {
	assert := assert.New(t)
	ladder := DefaultLadder()

	rule, ok := ladder.Rule("TOXICITY")
	require.True(t, ok)
	last := ladder.Escalate("TOXICITY", len(rule.Rungs)-1)
	for n := len(rule.Rungs) - 1; n < len(rule.Rungs)+5; n++ {
		assert.Equal(last, ladder.Escalate("TOXICITY", n))
	}
}

func TestEscalateEdgeCases(t *testing.T) {
	assert := assert.New(t)
	ladder := DefaultLadder()

	// unknown type degrades to a warning
	assert.Equal(Rung{Action: ActionWarn}, ladder.Escalate("NO_SUCH_TYPE", 3))

	// negative counts clamp to the first rung
	assert.Equal(ActionWarn, ladder.Escalate("DISRESPECTFUL", -1).Action)

	// empty ladders are rejected at construction
	_, err := NewLadder([]Rule{{ViolationType: "X"}})
	assert.Error(err)
}
