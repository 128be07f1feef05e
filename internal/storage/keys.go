package storage

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

const (
	maxFilenameLen  = 120
	fallbackName    = "resume"
	optimizedObject = "optimized_resume.pdf"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename maps an uploaded filename onto a safe object key
// segment. Unsafe characters become underscores and overly long names
// are truncated. An empty result falls back to a generic name.
func SanitizeFilename(name string) string {
	safe := unsafeChars.ReplaceAllString(name, "_")
	if len(safe) > maxFilenameLen {
		safe = safe[:maxFilenameLen]
	}
	if safe == "" {
		return fallbackName
	}
	return safe
}

// RawKey returns the object key for an original uploaded resume.
func RawKey(userID string, analysisID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s/raw/%s", userID, analysisID, SanitizeFilename(filename))
}

// OptimizedKey returns the object key for a generated optimized resume PDF.
func OptimizedKey(userID string, analysisID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/optimized/%s", userID, analysisID, optimizedObject)
}
