// File: internal/browser/context_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestCombineContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("SecondaryCancelPropagates", func(t *testing.T) {
		parent := context.Background()
		secondary, cancelSecondary := context.WithCancel(context.Background())

		combined, cancel := CombineContext(parent, secondary)
		defer cancel()

		assert.NoError(t, combined.Err())
		cancelSecondary()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context not cancelled after secondary cancel")
		}
	})

	t.Run("ParentCancelPropagates", func(t *testing.T) {
		parent, cancelParent := context.WithCancel(context.Background())
		secondary := context.Background()

		combined, cancel := CombineContext(parent, secondary)
		defer cancel()

		cancelParent()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context not cancelled after parent cancel")
		}
	})

	t.Run("DirectCancelReleasesWatcher", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		<-combined.Done()
	})
}
