package extract

import (
	"math"
	"regexp"
	"strings"
)

var (
	disallowedChars = regexp.MustCompile(`[^\w\s:/\-.,]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	dashes          = strings.NewReplacer("\u2013", "-", "\u2014", "-", "\u2212", "-")
)

// Normalize lower-cases text, turns en and em dashes into '-', replaces
// anything outside word characters, whitespace and the separators
// `: / - . ,` with a space, and collapses whitespace.
func Normalize(text string) string {
	s := dashes.Replace(strings.ToLower(text))
	s = disallowedChars.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Urgency bounds.
const (
	MinUrgency     = 1
	MaxUrgency     = 5
	DefaultUrgency = 3
)

// ClampUrgency forces v into [1,5].
func ClampUrgency(v int) int {
	if v < MinUrgency {
		return MinUrgency
	}
	if v > MaxUrgency {
		return MaxUrgency
	}
	return v
}

// RoundHalfUp rounds x to the nearest integer, halves going up (2.5 -> 3).
func RoundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// ClampScore rounds a fractional urgency half-up and clamps it into [1,5].
func ClampScore(x float64) int {
	return ClampUrgency(RoundHalfUp(x))
}
