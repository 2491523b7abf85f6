package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/keyword"
)

var (
	negativeLexicon = []string{
		"hate", "awful", "terrible", "worst", "angry", "disgusting",
		"horrible", "annoying", "pathetic", "useless", "gross",
	}
	positiveLexicon = []string{
		"love", "great", "awesome", "nice", "thanks", "thank", "good",
		"cool", "amazing", "congrats", "welcome",
	}
)

// SentimentSource is a cheap local lexicon scorer. It only signals general
// negativity; the rule-based source covers explicit toxicity.
type SentimentSource struct {
	desc *Descriptor
}

func NewSentimentSource() *SentimentSource {
	desc := &Descriptor{
		Name:           "sentiment",
		CapabilityTags: []string{"sentiment"},
		BaseWeight:     0.4,
		Timeout:        time.Second,
	}
	desc.SetEnabled(true)
	return &SentimentSource{desc: desc}
}

func (s *SentimentSource) Descriptor() *Descriptor {
	return s.desc
}

func (s *SentimentSource) Evaluate(ctx context.Context, text string, rc RequestContext) (*Result, error) {
	start := time.Now()

	var neg, pos int
	for _, tok := range keyword.TokenizeText(text) {
		if keyword.TokenInSet(tok, negativeLexicon) {
			neg++
		}
		if keyword.TokenInSet(tok, positiveLexicon) {
			pos++
		}
	}

	score := 0
	if neg > pos {
		score = (neg - pos) * 2
		if score > 10 {
			score = 10
		}
	}

	confidence := 50 + 10*(neg+pos)
	if confidence > 80 {
		confidence = 80
	}

	var reasoning []string
	if neg > 0 || pos > 0 {
		reasoning = append(reasoning, fmt.Sprintf("sentiment lexicon: %d negative, %d positive", neg, pos))
	}

	return &Result{
		Score:          score,
		Confidence:     confidence,
		Reasoning:      reasoning,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
