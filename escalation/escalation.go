// Package escalation turns a violation type plus the author's prior offense
// count in to a concrete action. Pure lookup; the caller owns the violation
// counts and any operator resets of them.
package escalation

import (
	"fmt"
	"time"
)

type Action string

const (
	ActionWarn   Action = "warn"
	ActionDelete Action = "delete"
	ActionMute   Action = "mute"
	ActionBan    Action = "ban"
)

// Severity orders actions for comparisons; higher is worse.
func (a Action) Severity() int {
	switch a {
	case ActionWarn:
		return 1
	case ActionDelete:
		return 2
	case ActionMute:
		return 3
	case ActionBan:
		return 4
	}
	return 0
}

// Rung is one step of a ladder. Zero duration means indefinite (warn,
// delete, permanent ban).
type Rung struct {
	Action   Action        `json:"action"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Rule is the ordered ladder for one violation type. The last rung is
// sticky: every offense past the end of the ladder repeats it.
type Rule struct {
	ViolationType  string  `json:"violationType"`
	ScoreThreshold float64 `json:"scoreThreshold"`
	Rungs          []Rung  `json:"rungs"`
}

type Ladder struct {
	rules map[string]Rule
}

func NewLadder(rules []Rule) (*Ladder, error) {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if len(r.Rungs) == 0 {
			return nil, fmt.Errorf("ladder for %s has no rungs", r.ViolationType)
		}
		m[r.ViolationType] = r
	}
	return &Ladder{rules: m}, nil
}

func DefaultLadder() *Ladder {
	ladder, err := NewLadder(DefaultRules())
	if err != nil {
		panic(err)
	}
	return ladder
}

func DefaultRules() []Rule {
	return []Rule{
		{
			ViolationType:  "DISRESPECTFUL",
			ScoreThreshold: 2,
			Rungs: []Rung{
				{Action: ActionWarn},
				{Action: ActionWarn},
				{Action: ActionMute, Duration: time.Hour},
				{Action: ActionBan},
			},
		},
		{
			ViolationType:  "TOXICITY",
			ScoreThreshold: 3,
			Rungs: []Rung{
				{Action: ActionDelete},
				{Action: ActionMute, Duration: time.Hour},
				{Action: ActionMute, Duration: 24 * time.Hour},
				{Action: ActionBan},
			},
		},
		{
			ViolationType:  "HARASSMENT",
			ScoreThreshold: 5,
			Rungs: []Rung{
				{Action: ActionMute, Duration: time.Hour},
				{Action: ActionMute, Duration: 24 * time.Hour},
				{Action: ActionBan},
			},
		},
		{
			ViolationType:  "SEVERE_TOXICITY",
			ScoreThreshold: 7,
			Rungs: []Rung{
				{Action: ActionMute, Duration: 7 * 24 * time.Hour},
				{Action: ActionBan},
			},
		},
	}
}

// Escalate returns the rung for the author's Nth violation of this type
// (violationCount is the number of prior violations). Counts past the end of
// the ladder stick at the last rung; unknown violation types fall back to a
// lone warning so the call never fails.
func (l *Ladder) Escalate(violationType string, violationCount int) Rung {
	rule, ok := l.rules[violationType]
	if !ok {
		return Rung{Action: ActionWarn}
	}
	if violationCount < 0 {
		violationCount = 0
	}
	idx := violationCount
	if idx > len(rule.Rungs)-1 {
		idx = len(rule.Rungs) - 1
	}
	return rule.Rungs[idx]
}

// Rule returns the configured ladder for a violation type.
func (l *Ladder) Rule(violationType string) (Rule, bool) {
	r, ok := l.rules[violationType]
	return r, ok
}
