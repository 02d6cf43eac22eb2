// File: internal/automation/driver.go
package automation

import (
	"context"
	"time"
)

// PageDriver is the slice of the browser session API the workflow drives.
// browser.PageSession implements it; tests substitute a scripted fake.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Type(ctx context.Context, selector, text string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	PressEnter(ctx context.Context, selector string, timeout time.Duration) error
	ReadText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	WaitURLChange(ctx context.Context, fromURL string, timeout time.Duration) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}
