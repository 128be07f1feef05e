package textutil

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxChars int
		expected string
	}{
		{
			name:     "strips null bytes",
			input:    "hello\x00world",
			maxChars: 100,
			expected: "helloworld",
		},
		{
			name:     "unifies CRLF and CR line endings",
			input:    "line1\r\nline2\rline3",
			maxChars: 100,
			expected: "line1\nline2\nline3",
		},
		{
			name:     "collapses tabs and form feeds to one space",
			input:    "a\t\t\fb",
			maxChars: 100,
			expected: "a b",
		},
		{
			name:     "collapses space runs including nbsp",
			input:    "a     b",
			maxChars: 100,
			expected: "a b",
		},
		{
			name:     "collapses three or more newlines to two",
			input:    "a\n\n\n\n\nb",
			maxChars: 100,
			expected: "a\n\nb",
		},
		{
			name:     "preserves double newlines",
			input:    "a\n\nb",
			maxChars: 100,
			expected: "a\n\nb",
		},
		{
			name:     "trims leading and trailing whitespace",
			input:    "  hello  ",
			maxChars: 100,
			expected: "hello",
		},
		{
			name:     "hard truncates and re-trims",
			input:    "abcde fghij",
			maxChars: 6,
			expected: "abcde",
		},
		{
			name:     "empty input",
			input:    "",
			maxChars: 100,
			expected: "",
		},
		{
			name:     "whitespace only input",
			input:    " \t\n \r\n ",
			maxChars: 100,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input, tt.maxChars)
			if got != tt.expected {
				t.Errorf("Normalize(%q, %d) = %q, want %q", tt.input, tt.maxChars, got, tt.expected)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"plain text without noise",
		"messy\r\n\r\n\r\n\ttext   with\x00noise",
		strings.Repeat("long paragraph of text. ", 500),
		"",
	}
	limits := []int{10, 100, 1000, DefaultMaxChars}

	for _, input := range inputs {
		for _, limit := range limits {
			once := Normalize(input, limit)
			twice := Normalize(once, limit)
			if once != twice {
				t.Errorf("Normalize not idempotent for limit %d: %q != %q", limit, once, twice)
			}
		}
	}
}

func TestNormalizeLengthBound(t *testing.T) {
	inputs := []string{
		strings.Repeat("x", 100),
		strings.Repeat("word ", 1000),
		"short",
	}
	for _, input := range inputs {
		for _, limit := range []int{1, 7, 50, 5000} {
			if got := Normalize(input, limit); len(got) > limit {
				t.Errorf("Normalize length %d exceeds limit %d", len(got), limit)
			}
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"abcdefgh", 2},
		{strings.Repeat("x", 101), 26},
		{strings.Repeat("x", 24000), 6000},
	}

	for _, tt := range tests {
		if got := EstimateTokens(tt.input); got != tt.expected {
			t.Errorf("EstimateTokens(len %d) = %d, want %d", len(tt.input), got, tt.expected)
		}
	}
}

func TestBoundToTokens(t *testing.T) {
	long := strings.Repeat("abcdefgh ", 4000) // ~36000 chars, ~9000 tokens

	bounded := BoundToTokens(long, 6000)
	if EstimateTokens(bounded) > 6000 {
		t.Errorf("BoundToTokens left %d estimated tokens, want <= 6000", EstimateTokens(bounded))
	}

	short := "already small"
	if got := BoundToTokens(short, 6000); got != short {
		t.Errorf("BoundToTokens modified text under budget: %q", got)
	}
}
