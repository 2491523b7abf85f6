package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/evasion"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/keyword"
)

// tiered term lists; compact forms ("fck", "fuk") are included so matches
// still land after the normalizer strips censor characters
var (
	DefaultSevereTerms = []string{
		"kys", "killyourself", "neckyourself", "unalive",
	}
	DefaultThreatTerms = []string{
		"doxx", "dox", "swat", "swatted",
	}
	DefaultToxicTerms = []string{
		"fuck", "fck", "fuk", "fuc", "fack", "shit", "sht", "bitch",
		"asshole", "bastard", "dick", "cunt", "wanker", "prick",
	}
	DefaultMildTerms = []string{
		"stupid", "idiot", "dumb", "trash", "loser", "crap", "suck",
		"moron", "clown", "garbage",
	}
)

// RuleBasedSource is the internal scorer: tiered keyword matching over
// normalized text, with a score bump when evasion techniques were used to
// hide a match.
type RuleBasedSource struct {
	desc *Descriptor

	SevereTerms []string
	ThreatTerms []string
	ToxicTerms  []string
	MildTerms   []string
}

func NewRuleBasedSource() *RuleBasedSource {
	desc := &Descriptor{
		Name:           "rule-based",
		CapabilityTags: []string{"toxicity", "threat"},
		BaseWeight:     0.8,
		Timeout:        2 * time.Second,
	}
	desc.SetEnabled(true)
	return &RuleBasedSource{
		desc:        desc,
		SevereTerms: DefaultSevereTerms,
		ThreatTerms: DefaultThreatTerms,
		ToxicTerms:  DefaultToxicTerms,
		MildTerms:   DefaultMildTerms,
	}
}

func (s *RuleBasedSource) Descriptor() *Descriptor {
	return s.desc
}

func (s *RuleBasedSource) Evaluate(ctx context.Context, text string, rc RequestContext) (*Result, error) {
	start := time.Now()

	norm := evasion.Normalize(text)
	tokens := keyword.TokenizeText(norm.NormalizedText)
	slug := keyword.Slugify(norm.NormalizedText)

	score := 0
	var reasoning []string

	match := func(terms []string, base int, tier string) {
		for _, tok := range tokens {
			hit := keyword.TokenInSet(tok, terms)
			if !hit {
				// de-pluralize only when the exact token missed, so terms
				// that end in 's' ("kys") still match as-is
				if trimmed := strings.TrimSuffix(tok, "s"); trimmed != tok {
					hit = keyword.TokenInSet(trimmed, terms)
				}
			}
			if hit && base > score {
				score = base
				reasoning = append(reasoning, fmt.Sprintf("matched %s term %q", tier, tok))
				return
			}
		}
	}

	match(s.SevereTerms, 9, "severe")
	match(s.ThreatTerms, 8, "threat")
	match(s.ToxicTerms, 6, "toxic")
	match(s.MildTerms, 3, "mild")

	// joined obfuscated words ("fuckthis") won't tokenize cleanly; fall back
	// to substring matching on the slug for the worst tiers
	if score < 9 {
		for _, term := range s.SevereTerms {
			if strings.Contains(slug, term) {
				score = 9
				reasoning = append(reasoning, fmt.Sprintf("slug contains severe term %q", term))
				break
			}
		}
	}
	if score < 6 {
		for _, term := range s.ToxicTerms {
			if len(term) >= 4 && strings.Contains(slug, term) {
				score = 6
				reasoning = append(reasoning, fmt.Sprintf("slug contains toxic term %q", term))
				break
			}
		}
	}

	// a hidden match is worse than a plain one
	if score > 0 && len(norm.DetectedTechniques) > 0 {
		for _, d := range norm.DetectedTechniques {
			score++
			reasoning = append(reasoning, fmt.Sprintf("evasion detected: %s", d.Technique))
		}
		if score > 10 {
			score = 10
		}
	}

	confidence := 60
	switch {
	case score >= 9:
		confidence = 90
	case score > 0:
		confidence = 80
	}

	return &Result{
		Score:          score,
		Confidence:     confidence,
		Reasoning:      reasoning,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
