package textutil

import (
	"regexp"
	"strings"
)

// DefaultMaxChars bounds normalized text when the caller does not supply
// a tighter limit.
const DefaultMaxChars = 30000

var (
	horizontalWS = regexp.MustCompile(`[\t\f\v]+`)
	spaceRuns    = regexp.MustCompile(`[ \x{00A0}]+`)
	newlineRuns  = regexp.MustCompile(`\n{3,}`)
)

// Normalize cleans extracted text for downstream use: strips null bytes,
// unifies line endings, collapses horizontal whitespace runs to a single
// space, collapses 3+ consecutive newlines to exactly two, trims, and
// hard-truncates to maxChars. Idempotent for a fixed maxChars.
func Normalize(input string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	s := strings.ReplaceAll(input, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = horizontalWS.ReplaceAllString(s, " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = newlineRuns.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if len(s) <= maxChars {
		return s
	}
	return strings.TrimSpace(s[:maxChars])
}

// EstimateTokens approximates token count as ceil(len/4). This is a flat
// heuristic, not a model tokenizer; truncation budgets depend on this
// exact ratio.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// BoundToTokens re-truncates text whose estimated token count exceeds
// maxTokens, using the same 4-chars-per-token ratio.
func BoundToTokens(text string, maxTokens int) string {
	if EstimateTokens(text) <= maxTokens {
		return text
	}
	return Normalize(text, maxTokens*4)
}
