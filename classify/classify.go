// Package classify tags message text with a coarse content type, which the
// consensus scorer uses to select a weight profile. The tag never changes a
// score directly.
package classify

import (
	"context"
	"regexp"

	"github.com/ElDoritoMasPutas/legendsbot-sub000/keyword"
	"github.com/ElDoritoMasPutas/legendsbot-sub000/setstore"
)

type ContentType string

const (
	ContentProtected        ContentType = "protected"
	ContentEvasionSuspected ContentType = "evasion-suspected"
	ContentInformal         ContentType = "informal"
	ContentGeneral          ContentType = "general"
)

// set names looked up in the SetStore
const (
	SetProtectedTerms    = "protected-terms"
	SetProtectedChannels = "protected-channels"
	SetInformalTerms     = "informal-terms"
)

var (
	// save-file attachments shared in trade channels (.pk9, .pb8, .pa8, ...)
	saveFileRegex = regexp.MustCompile(`(?i)\.[ep][abk][0-9]\b`)
	// generic obfuscation shapes: three or more single letters separated by
	// punctuation or spaces, or long runs of symbols
	splitLetterRegex = regexp.MustCompile(`(?i)(?:\b|^)(?:[a-z][\W_]+){2,}[a-z](?:\b|$)`)
	symbolRunRegex   = regexp.MustCompile(`[^\w\s]{4,}`)
)

type Classifier struct {
	Sets setstore.SetStore
}

func NewClassifier(sets setstore.SetStore) *Classifier {
	return &Classifier{Sets: sets}
}

// Classify tags the raw (un-normalized) text. Precedence when multiple tags
// could apply: protected > evasion-suspected > informal > general.
func (c *Classifier) Classify(ctx context.Context, text, channelID string) ContentType {
	if c.isProtected(ctx, text, channelID) {
		return ContentProtected
	}
	if looksObfuscated(text) {
		return ContentEvasionSuspected
	}
	if c.isInformal(ctx, text) {
		return ContentInformal
	}
	return ContentGeneral
}

func (c *Classifier) isProtected(ctx context.Context, text, channelID string) bool {
	if channelID != "" {
		if ok, _ := c.Sets.InSet(ctx, SetProtectedChannels, channelID); ok {
			return true
		}
	}
	if saveFileRegex.MatchString(text) {
		return true
	}
	for _, tok := range keyword.TokenizeIdentifier(text) {
		if ok, _ := c.Sets.InSet(ctx, SetProtectedTerms, tok); ok {
			return true
		}
	}
	return false
}

func (c *Classifier) isInformal(ctx context.Context, text string) bool {
	for _, tok := range keyword.TokenizeText(text) {
		if ok, _ := c.Sets.InSet(ctx, SetInformalTerms, tok); ok {
			return true
		}
	}
	return false
}

// looksObfuscated is a purely structural check, independent of whether any
// toxic term is present.
func looksObfuscated(text string) bool {
	return splitLetterRegex.MatchString(text) || symbolRunRegex.MatchString(text)
}

// DefaultSets returns the built-in classifier vocabularies, in the same
// name -> values shape that setstore.LoadFromFileJSON accepts.
func DefaultSets() map[string][]string {
	return map[string][]string{
		SetProtectedTerms: {
			"charizard", "pikachu", "mewtwo", "rayquaza", "arceus", "eevee",
			"greninja", "garchomp", "dragapult", "miraidon", "koraidon",
			"shiny", "legendary", "tradeback", "showdown",
		},
		SetInformalTerms: {
			"lol", "lmao", "lmfao", "bro", "bruh", "dude", "ngl", "wtf",
			"fr", "gg", "ez", "smh", "imo", "tbh", "idk",
		},
	}
}
