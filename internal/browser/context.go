// File: internal/browser/context.go
package browser

import "context"

// CombineContext derives a context that is cancelled when either parent is.
// The returned cancel must always be called to release the watcher goroutine.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
