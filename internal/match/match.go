// Package match scores typed or recognized text against a reference sentence.
package match

import (
	"regexp"
	"strings"
)

// Outside word characters, whitespace, CJK Unified Ideographs, Hiragana and
// Katakana. Whitespace includes Unicode separators such as U+3000 and U+00A0.
var stripRe = regexp.MustCompile(`[^\w\s\v\p{Z}\x{feff}\x{4e00}-\x{9fa5}\x{3040}-\x{309f}\x{30a0}-\x{30ff}]`)

// Normalize trims and lower-cases s, then removes every character outside the
// kept classes. It is a fixed cleanup, not a tokenizer.
func Normalize(s string) string {
	return stripRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

// Exact is the dictation and typing policy: normalized strings must be equal.
func Exact(reference, candidate string) bool {
	return Normalize(reference) == Normalize(candidate)
}

// Fuzzy is the shadowing policy. Recognized speech is noisy, so either
// normalized string containing the other is enough. An empty candidate never
// matches, and neither does anything against an empty reference.
func Fuzzy(reference, candidate string) bool {
	ref := Normalize(reference)
	cand := Normalize(candidate)
	if ref == "" || cand == "" {
		return false
	}
	return strings.Contains(cand, ref) || strings.Contains(ref, cand)
}

// CharState is the typing feedback for one reference rune.
type CharState int

const (
	CharPending CharState = iota
	CharCorrect
	CharWrong
)

func (c CharState) String() string {
	switch c {
	case CharCorrect:
		return "correct"
	case CharWrong:
		return "wrong"
	default:
		return "pending"
	}
}

// Progress compares input to reference rune by rune, without normalization.
// Reference runes past the end of input are pending.
func Progress(reference, input string) []CharState {
	ref := []rune(reference)
	in := []rune(input)

	states := make([]CharState, len(ref))
	for i, r := range ref {
		switch {
		case i >= len(in):
			states[i] = CharPending
		case in[i] == r:
			states[i] = CharCorrect
		default:
			states[i] = CharWrong
		}
	}
	return states
}

// Complete reports whether every reference rune has been typed correctly.
func Complete(states []CharState) bool {
	for _, s := range states {
		if s != CharCorrect {
			return false
		}
	}
	return len(states) > 0
}
