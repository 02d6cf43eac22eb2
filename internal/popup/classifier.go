// File: internal/popup/classifier.go

// Package popup classifies the text of site feedback popups into success,
// error, or unknown outcomes by keyword matching.
package popup

import (
	"strings"

	"github.com/avelaine/kzfleet/internal/schemas"
)

// DefaultSuccessPatterns and DefaultErrorPatterns match the wording the
// target site uses in its feedback popups, in both English and French.
var (
	DefaultSuccessPatterns = []string{"success", "successful", "completed", "réussi"}
	DefaultErrorPatterns   = []string{"error", "failed", "invalid", "expired", "incorrect", "erreur"}
)

// Classifier buckets popup text by substring match against two keyword
// lists. Success keywords are checked first, so text containing both kinds
// classifies as success.
type Classifier struct {
	success []string
	errors  []string
}

// NewClassifier lowercases and stores the given keyword lists. Empty lists
// fall back to the defaults.
func NewClassifier(successPatterns, errorPatterns []string) *Classifier {
	if len(successPatterns) == 0 {
		successPatterns = DefaultSuccessPatterns
	}
	if len(errorPatterns) == 0 {
		errorPatterns = DefaultErrorPatterns
	}
	return &Classifier{
		success: lowerAll(successPatterns),
		errors:  lowerAll(errorPatterns),
	}
}

// Classify returns the status bucket for the given popup text. Matching is
// case-insensitive on the trimmed text; no match yields StatusUnknown.
func (c *Classifier) Classify(text string) schemas.PopupStatus {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return schemas.StatusUnknown
	}
	for _, p := range c.success {
		if strings.Contains(needle, p) {
			return schemas.StatusSuccess
		}
	}
	for _, p := range c.errors {
		if strings.Contains(needle, p) {
			return schemas.StatusError
		}
	}
	return schemas.StatusUnknown
}

// IsSuccess reports whether the text classifies as a successful submission.
// Unknown popups count as failures.
func (c *Classifier) IsSuccess(text string) bool {
	return c.Classify(text) == schemas.StatusSuccess
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
