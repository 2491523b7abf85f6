// Package consensus combines per-source scores in to one calibrated decision:
// a weighted vote with an explicit disagreement penalty, so a single confident
// outlier can't dominate a near-unanimous panel.
package consensus

import (
	"fmt"
	"math"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/classify"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/keyword"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/perftrack"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/sources"
)

type ActionCategory string

const (
	ActionNone   ActionCategory = "none"
	ActionWarn   ActionCategory = "warn"
	ActionDelete ActionCategory = "delete"
	ActionMute   ActionCategory = "mute"
	ActionBan    ActionCategory = "ban"
)

// ViolationType returns the violation tag recorded against the author's
// profile for this action category.
func (a ActionCategory) ViolationType() string {
	switch a {
	case ActionWarn:
		return "DISRESPECTFUL"
	case ActionDelete:
		return "TOXICITY"
	case ActionMute:
		return "HARASSMENT"
	case ActionBan:
		return "SEVERE_TOXICITY"
	}
	return ""
}

type SourceScore struct {
	Score      int `json:"score"`
	Confidence int `json:"confidence"`
}

// Decision is the engine's single output per assessment; immutable once
// returned.
type Decision struct {
	FinalScore       float64                `json:"finalScore"`
	Confidence       int                    `json:"confidence"`
	ActionCategory   ActionCategory         `json:"actionCategory"`
	ViolationType    string                 `json:"violationType,omitempty"`
	Reasoning        []string               `json:"reasoning"`
	SourcesConsulted int                    `json:"sourcesConsulted"`
	ConsensusReached bool                   `json:"consensusReached"`
	Variance         float64                `json:"variance"`
	PerSourceScores  map[string]SourceScore `json:"perSourceScores"`
}

// weight a source gets when absent from a profile
const DefaultSourceWeight = 0.1

// score variance below which the panel counts as agreeing
const consensusVarianceThreshold = 2.0

// WeightProfiles maps content type -> source name -> vote weight. Each
// content type's weights should total approximately 1.
type WeightProfiles map[classify.ContentType]map[string]float64

func DefaultWeightProfiles() WeightProfiles {
	return WeightProfiles{
		classify.ContentGeneral: {
			"rule-based":     0.3,
			"perspective":    0.3,
			"moderation-api": 0.3,
			"sentiment":      0.1,
		},
		classify.ContentProtected: {
			"rule-based":     0.5,
			"perspective":    0.2,
			"moderation-api": 0.2,
			"sentiment":      0.1,
		},
		classify.ContentEvasionSuspected: {
			"rule-based":     0.5,
			"perspective":    0.25,
			"moderation-api": 0.2,
			"sentiment":      0.05,
		},
		classify.ContentInformal: {
			"rule-based":     0.35,
			"perspective":    0.25,
			"moderation-api": 0.2,
			"sentiment":      0.2,
		},
	}
}

// Validate fails fast on malformed profiles instead of letting missing
// entries silently default at decision time.
func (wp WeightProfiles) Validate() error {
	required := []classify.ContentType{
		classify.ContentGeneral,
		classify.ContentProtected,
		classify.ContentEvasionSuspected,
		classify.ContentInformal,
	}
	for _, ct := range required {
		profile, ok := wp[ct]
		if !ok {
			return fmt.Errorf("weight profile missing content type: %s", ct)
		}
		var total float64
		for name, w := range profile {
			if w < 0 || w > 1 {
				return fmt.Errorf("weight out of range for %s/%s: %f", ct, name, w)
			}
			total += w
		}
		if total < 0.9 || total > 1.1 {
			return fmt.Errorf("weight profile for %s totals %.2f, want ~1", ct, total)
		}
	}
	return nil
}

// Weight returns the profile weight for a source under a content type.
func (wp WeightProfiles) Weight(ct classify.ContentType, source string) float64 {
	if profile, ok := wp[ct]; ok {
		if w, ok := profile[source]; ok {
			return w
		}
	}
	return DefaultSourceWeight
}

type Scorer struct {
	Profiles WeightProfiles
	Perf     *perftrack.Tracker
}

func NewScorer(profiles WeightProfiles, perf *perftrack.Tracker) (*Scorer, error) {
	if err := profiles.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{Profiles: profiles, Perf: perf}, nil
}

// Decide aggregates the usable results in to a final decision. It never
// fails: with zero usable results it degrades to a fixed fallback.
func (s *Scorer) Decide(results map[string]*sources.Result, ct classify.ContentType, text string) *Decision {

	usable := make(map[string]*sources.Result)
	for name, res := range results {
		if res.Usable() {
			usable[name] = res
		}
	}

	if len(usable) == 0 {
		// TODO: this discards whatever the normalizer/classifier already
		// knew about the text, even for clearly severe input; needs a
		// product decision before changing
		return &Decision{
			FinalScore:       0,
			Confidence:       30,
			ActionCategory:   ActionNone,
			Reasoning:        []string{"no sources available"},
			SourcesConsulted: 0,
			ConsensusReached: false,
			PerSourceScores:  map[string]SourceScore{},
		}
	}

	// weighted average: profile weight x tracked accuracy multiplier
	var weightedSum, weightTotal float64
	perSource := make(map[string]SourceScore, len(usable))
	var reasoning []string
	for name, res := range usable {
		w := s.Profiles.Weight(ct, name) * s.Perf.Accuracy(name)
		weightedSum += float64(res.Score) * w
		weightTotal += w
		perSource[name] = SourceScore{Score: res.Score, Confidence: res.Confidence}
		reasoning = append(reasoning, res.Reasoning...)
	}
	var avgScore float64
	if weightTotal > 0 {
		avgScore = weightedSum / weightTotal
	} else {
		// every effective weight zeroed out (eg, accuracy forced to 0);
		// fall back to a plain mean rather than dividing by zero
		var sum float64
		for _, res := range usable {
			sum += float64(res.Score)
		}
		avgScore = sum / float64(len(usable))
	}

	variance := scoreVariance(usable)
	consensusReached := variance < consensusVarianceThreshold

	confidence := 70
	if consensusReached {
		confidence += 20
	} else {
		confidence -= 10
	}
	confident := 0
	for _, res := range usable {
		if res.Confidence > 70 {
			confident++
		}
	}
	if float64(confident) >= 0.6*float64(len(usable)) {
		confidence += 10
	}
	confidence = clampInt(confidence, 0, 100)

	// content-type adjustments: protected and informal traffic gets the
	// benefit of the doubt at the low end
	switch {
	case ct == classify.ContentProtected && avgScore < 3:
		avgScore = math.Max(0, avgScore-1)
		reasoning = append(reasoning, "score dampened for protected content")
	case ct == classify.ContentInformal && avgScore < 4:
		avgScore = math.Max(0, avgScore-0.5)
		reasoning = append(reasoning, "score dampened for informal banter")
	}
	avgScore = math.Min(10, math.Max(0, avgScore))

	action := actionForScore(avgScore)

	return &Decision{
		FinalScore:       avgScore,
		Confidence:       confidence,
		ActionCategory:   action,
		ViolationType:    action.ViolationType(),
		Reasoning:        keyword.DedupeStrings(reasoning),
		SourcesConsulted: len(usable),
		ConsensusReached: consensusReached,
		Variance:         variance,
		PerSourceScores:  perSource,
	}
}

func actionForScore(score float64) ActionCategory {
	switch {
	case score >= 7:
		return ActionBan
	case score >= 5:
		return ActionMute
	case score >= 3:
		return ActionDelete
	case score >= 2:
		return ActionWarn
	}
	return ActionNone
}

// population variance of the raw (unweighted) per-source scores
func scoreVariance(results map[string]*sources.Result) float64 {
	if len(results) < 2 {
		return 0
	}
	var sum float64
	for _, res := range results {
		sum += float64(res.Score)
	}
	mean := sum / float64(len(results))
	var sqSum float64
	for _, res := range results {
		d := float64(res.Score) - mean
		sqSum += d * d
	}
	return sqSum / float64(len(results))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
