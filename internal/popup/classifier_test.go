// File: internal/popup/classifier_test.go
package popup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avelaine/kzfleet/internal/schemas"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(nil, nil)

	cases := []struct {
		name string
		text string
		want schemas.PopupStatus
	}{
		{"PlainSuccess", "Code submitted successfully", schemas.StatusSuccess},
		{"FrenchSuccess", "Réussi !", schemas.StatusSuccess},
		{"PlainError", "invalid code", schemas.StatusError},
		{"FrenchError", "Erreur serveur", schemas.StatusError},
		{"Expired", "This code has EXPIRED", schemas.StatusError},
		{"MixedCaseWithPadding", "  SUCCESS and error  ", schemas.StatusSuccess},
		{"NoMatch", "random text", schemas.StatusUnknown},
		{"Empty", "", schemas.StatusUnknown},
		{"Whitespace", "   \t  ", schemas.StatusUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.text))
		})
	}
}

func TestClassifyCustomPatterns(t *testing.T) {
	c := NewClassifier([]string{"bravo"}, []string{"raté"})

	assert.Equal(t, schemas.StatusSuccess, c.Classify("Bravo, code accepté"))
	assert.Equal(t, schemas.StatusError, c.Classify("raté, réessayez"))
	// Custom lists replace the defaults entirely.
	assert.Equal(t, schemas.StatusUnknown, c.Classify("successful"))
}

func TestIsSuccess(t *testing.T) {
	c := NewClassifier(nil, nil)

	assert.True(t, c.IsSuccess("completed"))
	assert.False(t, c.IsSuccess("failed"))
	assert.False(t, c.IsSuccess("random text"))
}
