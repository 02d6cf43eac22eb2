// File: internal/browser/errors.go
package browser

import "errors"

// Sentinel errors for the browser layer. Callers classify failures with
// errors.Is and decide whether to absorb or abort.
var (
	// ErrNavigation means a page load failed or landed somewhere unexpected.
	ErrNavigation = errors.New("navigation failed")

	// ErrElementNotFound means no selector in the fallback list matched
	// within its budget.
	ErrElementNotFound = errors.New("element not found")

	// ErrTimeout means a wait elapsed without the expected page state.
	ErrTimeout = errors.New("browser operation timed out")

	// ErrSessionLost means the site bounced the page back to the login
	// screen, invalidating the authenticated session.
	ErrSessionLost = errors.New("authenticated session lost")
)
