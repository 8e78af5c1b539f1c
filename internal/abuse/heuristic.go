// Package abuse decides whether a submission looks machine-generated. It has
// no accounts or identity to lean on: the single-message layer works purely
// off statistical texture of the name and body, and the behavioral layer off
// accumulated per-origin history in the shared store.
package abuse

import (
	"errors"
	"strings"
	"unicode"
)

// ErrSuspicious is the only error the classifier returns to callers. The rule
// that fired is kept internal so submitters cannot tune against it.
var ErrSuspicious = errors.New("invalid submission")

// Token kinds tighten the short-token rule differently for names and bodies.
type Kind int

const (
	KindName Kind = iota
	KindBody
)

// Canonical entropy thresholds. The bits-per-rune of random lowercase ASCII
// approaches log2(26) ≈ 4.7; natural English text sits near 3.0-3.5.
const (
	entropyPlain     = 3.8
	entropyMixedCase = 3.6
	entropyRoundLen  = 3.2

	// entropyReduced is the behavioral layer's tighter bound; see
	// reducedRandom.
	entropyReduced = 3.5
)

const (
	caseTransitionMax = 0.6
	caseAlternateMax  = 0.4
	consonantFracMax  = 0.8
	rareLetterFracMax = 0.4
	consonantRunMax   = 6
	vowelRunMax       = 5
)

var keyboardRuns = []string{
	"qwerty", "qwer",
	"asdfg", "asdf",
	"zxcvb", "zxcv",
	"yuiop", "uiop",
	"hjkl",
}

var rareLetters = map[rune]bool{'q': true, 'x': true, 'z': true, 'j': true, 'k': true}

// Cleaned lengths generators tend to produce: fixed power-of-two-ish buffer
// sizes. Alone they prove nothing, so the rule also requires elevated
// entropy.
var roundLengths = map[int]bool{8: true, 10: true, 12: true, 14: true, 16: true, 20: true, 24: true, 32: true}

// Check runs the single-message heuristics over name and body independently
// and returns ErrSuspicious if any rule fires on either.
func Check(name, body string) error {
	if reason := LooksRandom(name, KindName); reason != "" {
		return ErrSuspicious
	}
	if reason := LooksRandom(body, KindBody); reason != "" {
		return ErrSuspicious
	}
	return nil
}

// LooksRandom evaluates the rule families over one text and returns the name
// of the first rule that fired, or "" when the text passes. The reason is for
// internal logging only and never reaches a response body.
func LooksRandom(text string, kind Kind) string {
	cleaned := cleanText(text)
	if cleaned == "" {
		return ""
	}

	consonants, vowels := countConsonantsVowels(cleaned)
	letters := consonants + vowels

	if consonants > 0 && vowels > 0 && letters > 0 {
		if float64(consonants)/float64(letters) > consonantFracMax {
			return "consonant-ratio"
		}
	}

	if hasRepeatRun(cleaned, 3) {
		return "repeat-run"
	}

	if reason := entropyRule(text, cleaned); reason != "" {
		return reason
	}

	if transitionRatio(text) > caseTransitionMax || alternatingRatio(text) > caseAlternateMax {
		return "case-churn"
	}

	if runLength(cleaned, false) >= consonantRunMax {
		return "consonant-run"
	}
	if runLength(cleaned, true) >= vowelRunMax {
		return "vowel-run"
	}
	if rareLetterFraction(cleaned) > rareLetterFracMax {
		return "rare-letters"
	}
	for _, row := range keyboardRuns {
		if strings.Contains(cleaned, row) {
			return "keyboard-row"
		}
	}

	if roundLengths[len(cleaned)] && entropy(cleaned) > entropyRoundLen && !naturalSentence(text) {
		return "round-length"
	}

	if reason := shortTokenRule(cleaned, consonants, vowels, kind); reason != "" {
		return reason
	}

	return ""
}

// naturalSentence reports whether text is long enough and wordy enough to be
// ordinary prose. Prose legitimately pushes entropy up, so the entropy-based
// rules all honor this escape.
func naturalSentence(s string) bool {
	return len(s) > 15 && commonWordCount(s) >= 3
}

// entropyRule rejects high-entropy text, with an escape hatch for long
// natural sentences.
func entropyRule(original, cleaned string) string {
	if naturalSentence(original) {
		return ""
	}
	h := entropy(cleaned)
	if len(cleaned) >= 8 && h > entropyPlain {
		return "entropy"
	}
	if h > entropyMixedCase && mixesCase(original) {
		return "entropy-mixed-case"
	}
	return ""
}

// shortTokenRule is a narrower absolute-count check for short tokens, where
// ratios alone are too noisy.
func shortTokenRule(cleaned string, consonants, vowels int, kind Kind) string {
	n := len(cleaned)
	// Floors sit above what ordinary short names and words reach:
	// "Bob Smith" has 6 consonants but 2 vowels, "John" only 3 consonants.
	var min, max, consFloor, vowelCeil int
	switch kind {
	case KindName:
		min, max, consFloor, vowelCeil = 3, 8, 5, 1
	default:
		min, max, consFloor, vowelCeil = 4, 15, 7, 2
	}
	if n < min || n > max {
		return ""
	}
	letters := consonants + vowels
	if letters == 0 {
		return ""
	}
	if consonants >= consFloor && vowels <= vowelCeil && float64(consonants)/float64(letters) > 0.6 {
		return "short-token"
	}
	return ""
}

// cleanText strips everything but letters and lowercases the rest.
func cleanText(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func countConsonantsVowels(cleaned string) (consonants, vowels int) {
	for _, r := range cleaned {
		if isVowel(r) {
			vowels++
		} else {
			consonants++
		}
	}
	return consonants, vowels
}

func hasRepeatRun(s string, n int) bool {
	run := 1
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
		prev = r
	}
	return false
}

// runLength returns the longest run of vowels (wantVowel) or consonants.
func runLength(cleaned string, wantVowel bool) int {
	longest, run := 0, 0
	for _, r := range cleaned {
		if isVowel(r) == wantVowel {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

func rareLetterFraction(cleaned string) float64 {
	if cleaned == "" {
		return 0
	}
	rare := 0
	for _, r := range cleaned {
		if rareLetters[r] {
			rare++
		}
	}
	return float64(rare) / float64(len(cleaned))
}

func mixesCase(s string) bool {
	hasUpper, hasLower := false, false
	for _, r := range s {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	return hasUpper && hasLower
}

// transitionRatio is the fraction of adjacent letter pairs whose case
// differs. Natural text flips case at word starts at most; generated text
// flips constantly.
func transitionRatio(s string) float64 {
	letters := lettersOf(s)
	if len(letters) < 2 {
		return 0
	}
	transitions := 0
	for i := 1; i < len(letters); i++ {
		if unicode.IsUpper(letters[i]) != unicode.IsUpper(letters[i-1]) {
			transitions++
		}
	}
	return float64(transitions) / float64(len(letters)-1)
}

// alternatingRatio is the fraction of 3-letter windows whose case strictly
// alternates (aBa or AbA).
func alternatingRatio(s string) float64 {
	letters := lettersOf(s)
	if len(letters) < 3 {
		return 0
	}
	alternating := 0
	windows := len(letters) - 2
	for i := 0; i < windows; i++ {
		a, b, c := unicode.IsUpper(letters[i]), unicode.IsUpper(letters[i+1]), unicode.IsUpper(letters[i+2])
		if a != b && b != c {
			alternating++
		}
	}
	return float64(alternating) / float64(windows)
}

func lettersOf(s string) []rune {
	var letters []rune
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters = append(letters, r)
		}
	}
	return letters
}
