// Package evasion canonicalizes deliberately obfuscated message text
// (elongation, separator insertion, lookalike substitution) so that
// downstream keyword matching operates on a stable form.
package evasion

import (
	"strings"
	"unicode"
)

type Technique string

const (
	TechniqueElongation          Technique = "elongation"
	TechniqueSeparatorBypassing  Technique = "separator-bypassing"
	TechniqueSpacing             Technique = "spacing"
	TechniqueCharSubstitution    Technique = "character-substitution"
	TechniqueUnicodeSubstitution Technique = "unicode-substitution"
	TechniqueLeetspeak           Technique = "leetspeak"
)

var techniqueSeverity = map[Technique]int{
	TechniqueElongation:          2,
	TechniqueSeparatorBypassing:  3,
	TechniqueSpacing:             2,
	TechniqueCharSubstitution:    3,
	TechniqueUnicodeSubstitution: 3,
	TechniqueLeetspeak:           2,
}

func (t Technique) Severity() int {
	return techniqueSeverity[t]
}

type Detection struct {
	Technique Technique `json:"technique"`
	Severity  int       `json:"severity"`
}

type Result struct {
	NormalizedText     string      `json:"normalizedText"`
	DetectedTechniques []Detection `json:"detectedTechniques"`
	WasModified        bool        `json:"wasModified"`
}

// Techniques returns just the technique tags, in detection order.
func (r *Result) Techniques() []string {
	out := make([]string, len(r.DetectedTechniques))
	for i, d := range r.DetectedTechniques {
		out[i] = string(d.Technique)
	}
	return out
}

// leetspeak digits; only substituted when adjacent to a letter, so plain
// numbers ("pk9", "100") pass through untouched
var leetRunes = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
}

// symbols commonly dropped in to the middle of a word; only substituted
// between two letters. '*' is a censor character and gets stripped rather
// than replaced.
var symbolRunes = map[rune]rune{
	'@': 'a',
	'$': 's',
	'!': 'i',
	'+': 't',
	'€': 'e',
	'£': 'l',
	'¢': 'c',
}

// unicode lookalikes mapped unconditionally: Cyrillic, Greek, and common
// accented Latin forms that render near-identically to ASCII letters
var lookalikeRunes = map[rune]rune{
	// Cyrillic
	'а': 'a', 'в': 'b', 'е': 'e', 'к': 'k', 'м': 'm', 'о': 'o',
	'р': 'p', 'с': 'c', 'т': 't', 'у': 'y', 'х': 'x', 'і': 'i', 'ѕ': 's',
	// Greek
	'α': 'a', 'ε': 'e', 'ι': 'i', 'κ': 'k', 'ν': 'v', 'ο': 'o',
	'ρ': 'p', 'τ': 't', 'υ': 'u', 'σ': 's',
	// accented Latin
	'à': 'a', 'á': 'a', 'â': 'a', 'ä': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
}

// Normalize canonicalizes obfuscated text and reports which evasion
// techniques were observed. It is a pure function, and idempotent:
// Normalize(Normalize(x).NormalizedText) yields the same output.
//
// Passes run in a fixed order; later passes assume earlier canonicalization.
func Normalize(text string) Result {
	lower := strings.ToLower(text)
	var detected []Detection

	// 1. collapse runs of repeated characters ("fuuuuck" -> "fuck")
	cur := collapseRuns(lower)
	if cur != lower {
		detected = append(detected, Detection{TechniqueElongation, TechniqueElongation.Severity()})
	}

	// 2. join single letters split by separators ("f.u.c.k", "f u c k")
	joined, punctSep, spaceSep := joinSplitLetters(cur)
	if punctSep {
		detected = append(detected, Detection{TechniqueSeparatorBypassing, TechniqueSeparatorBypassing.Severity()})
	}
	if spaceSep {
		detected = append(detected, Detection{TechniqueSpacing, TechniqueSpacing.Severity()})
	}
	cur = joined

	// 3. substitution tables (leet digits, intra-word symbols, lookalikes).
	// Substituting can place a digit next to a fresh letter ("10x" -> "1ox"),
	// so run to a fixpoint; this is what keeps the whole pass idempotent.
	subbed := cur
	var leet, symb, look bool
	for {
		next, l, sy, lo := substituteOnce(subbed)
		leet = leet || l
		symb = symb || sy
		look = look || lo
		if next == subbed {
			break
		}
		subbed = next
	}
	if leet {
		detected = append(detected, Detection{TechniqueLeetspeak, TechniqueLeetspeak.Severity()})
	}
	if symb {
		detected = append(detected, Detection{TechniqueCharSubstitution, TechniqueCharSubstitution.Severity()})
	}
	if look {
		detected = append(detected, Detection{TechniqueUnicodeSubstitution, TechniqueUnicodeSubstitution.Severity()})
	}
	cur = subbed

	// substitution can create fresh repeats ("c00l" -> "cool"); collapse
	// again without flagging so that re-normalizing is a no-op
	cur = collapseRuns(cur)

	// 4. squash incidental whitespace left by the earlier passes
	cur = strings.Join(strings.Fields(cur), " ")

	return Result{
		NormalizedText:     cur,
		DetectedTechniques: detected,
		WasModified:        cur != lower,
	}
}

// collapseRuns reduces any run of 2+ identical non-whitespace runes to one.
func collapseRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r == prev && !unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

type segment struct {
	text  string
	isSep bool
}

// joinSplitLetters merges sequences of 3 or more single-letter fragments
// separated by punctuation/symbols/spaces in to one word. Ordinary words are
// left alone, so "fuck you" never becomes "fuckyou".
func joinSplitLetters(s string) (string, bool, bool) {
	segs := splitSegments(s)
	punctSep := false
	spaceSep := false

	var out []string
	i := 0
	for i < len(segs) {
		if segs[i].isSep || !singleLetter(segs[i].text) {
			out = append(out, segs[i].text)
			i++
			continue
		}
		// candidate run: single letter, separator, single letter, ...
		j := i
		letters := []string{segs[j].text}
		seps := []string{}
		for j+2 < len(segs) && segs[j+1].isSep && singleLetter(segs[j+2].text) {
			seps = append(seps, segs[j+1].text)
			letters = append(letters, segs[j+2].text)
			j += 2
		}
		if len(letters) >= 3 {
			for _, sep := range seps {
				if strings.TrimSpace(sep) != "" {
					punctSep = true
				} else {
					spaceSep = true
				}
			}
			out = append(out, strings.Join(letters, ""))
			i = j + 1
		} else {
			out = append(out, segs[i].text)
			i++
		}
	}
	return strings.Join(out, ""), punctSep, spaceSep
}

// splitSegments splits a string in to alternating word (letters/digits) and
// separator segments.
func splitSegments(s string) []segment {
	var segs []segment
	var b strings.Builder
	var curSep bool
	flush := func() {
		if b.Len() > 0 {
			segs = append(segs, segment{text: b.String(), isSep: curSep})
			b.Reset()
		}
	}
	for _, r := range s {
		sep := !unicode.IsLetter(r) && !unicode.IsNumber(r)
		if b.Len() > 0 && sep != curSep {
			flush()
		}
		curSep = sep
		b.WriteRune(r)
	}
	flush()
	return segs
}

// singleLetter reports whether the segment is exactly one letter rune.
// Digits are excluded so that number sequences ("1 2 3") are never joined.
func singleLetter(s string) bool {
	runes := []rune(s)
	return len(runes) == 1 && unicode.IsLetter(runes[0])
}

func substituteOnce(s string) (string, bool, bool, bool) {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	var leet, symb, look bool

	letterAt := func(idx int) bool {
		return idx >= 0 && idx < len(runes) && unicode.IsLetter(runes[idx])
	}

	for i, r := range runes {
		if mapped, ok := lookalikeRunes[r]; ok {
			b.WriteRune(mapped)
			look = true
			continue
		}
		if mapped, ok := leetRunes[r]; ok && (letterAt(i-1) || letterAt(i+1)) {
			b.WriteRune(mapped)
			leet = true
			continue
		}
		if r == '*' && letterAt(i-1) && letterAt(i+1) {
			// censor character: strip it
			symb = true
			continue
		}
		if mapped, ok := symbolRunes[r]; ok && letterAt(i-1) && letterAt(i+1) {
			b.WriteRune(mapped)
			symb = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), leet, symb, look
}
