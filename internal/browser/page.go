// File: internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	navigationTimeout = 30 * time.Second
	closeTimeout      = 15 * time.Second
)

// PageSession is one isolated tab bound to its own browser context. It is
// not safe for concurrent use; each fleet worker owns exactly one.
type PageSession struct {
	id               string
	sessionCtx       context.Context
	sessionCancel    context.CancelFunc
	browserContextID cdp.BrowserContextID
	manager          *Manager
	logger           *zap.Logger

	mu       sync.Mutex
	isClosed bool
}

func newPageSession(
	sessionCtx context.Context,
	sessionCancel context.CancelFunc,
	browserContextID cdp.BrowserContextID,
	manager *Manager,
	logger *zap.Logger,
) *PageSession {
	id := uuid.New().String()
	return &PageSession{
		id:               id,
		sessionCtx:       sessionCtx,
		sessionCancel:    sessionCancel,
		browserContextID: browserContextID,
		manager:          manager,
		logger:           logger.With(zap.String("page_session", id)),
	}
}

// initialize connects the CDP target and applies network-level setup.
func (p *PageSession) initialize(ctx context.Context, blockedURLs []string) error {
	opCtx, opCancel := CombineContext(p.sessionCtx, ctx)
	defer opCancel()

	tasks := chromedp.Tasks{
		network.Enable(),
	}
	if len(blockedURLs) > 0 {
		tasks = append(tasks, network.SetBlockedURLs(blockedURLs))
	}
	if err := chromedp.Run(opCtx, tasks); err != nil {
		return fmt.Errorf("failed to connect page target: %w", err)
	}
	p.logger.Debug("Page session ready.", zap.Int("blocked_url_patterns", len(blockedURLs)))
	return nil
}

// ID returns the session identifier used in logs.
func (p *PageSession) ID() string {
	return p.id
}

// run executes chromedp actions under both the session lifetime and the
// caller's context.
func (p *PageSession) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, opCancel := CombineContext(p.sessionCtx, ctx)
	defer opCancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads the URL and waits for the document body to be ready.
func (p *PageSession) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating.", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(ctx, navigationTimeout)
	defer cancel()

	err := p.run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("navigating to %s: %w", url, ErrTimeout)
		}
		return fmt.Errorf("navigating to %s: %v: %w", url, err, ErrNavigation)
	}
	return nil
}

// CurrentURL returns the page's current location.
func (p *PageSession) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return url, nil
}

// Type clears the matched input and types text into it.
func (p *PageSession) Type(ctx context.Context, selector, text string, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.run(opCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("typing into %q: %w", selector, ErrElementNotFound)
		}
		return fmt.Errorf("typing into %q: %w", selector, err)
	}
	return nil
}

// Click waits for the selector and clicks it, failing with
// ErrElementNotFound once the timeout elapses.
func (p *PageSession) Click(ctx context.Context, selector string, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.run(opCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("clicking %q: %w", selector, ErrElementNotFound)
		}
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	return nil
}

// PressEnter focuses the selector and sends the Enter key.
func (p *PageSession) PressEnter(ctx context.Context, selector string, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := p.run(opCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.KeyEvent(kb.Enter),
	)
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("pressing enter on %q: %w", selector, ErrElementNotFound)
		}
		return fmt.Errorf("pressing enter on %q: %w", selector, err)
	}
	return nil
}

// ReadText waits for the selector to appear and returns its trimmed text
// content. An empty string with a nil error means the element appeared with
// no text.
func (p *PageSession) ReadText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var text string
	err := p.run(opCtx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Text(selector, &text, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("reading text of %q: %w", selector, ErrTimeout)
		}
		return "", fmt.Errorf("reading text of %q: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

// WaitURLChange polls the location until it differs from fromURL or the
// timeout elapses.
func (p *PageSession) WaitURLChange(ctx context.Context, fromURL string, timeout time.Duration) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		current, err := p.CurrentURL(opCtx)
		if err == nil && current != fromURL {
			return current, nil
		}
		select {
		case <-opCtx.Done():
			return fromURL, fmt.Errorf("waiting for URL change from %s: %w", fromURL, ErrTimeout)
		case <-ticker.C:
		}
	}
}

// Screenshot captures the full viewport as PNG.
func (p *PageSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// DismissDialogs auto-accepts any JavaScript dialog the page raises for the
// rest of the session.
func (p *PageSession) DismissDialogs() {
	chromedp.ListenTarget(p.sessionCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(p.sessionCtx, page.HandleJavaScriptDialog(true)); err != nil {
					p.logger.Debug("Failed to dismiss dialog.", zap.Error(err))
				}
			}()
		}
	})
}

// Close cancels the target and disposes the isolated browser context.
// Safe to call more than once.
func (p *PageSession) Close(ctx context.Context) {
	p.mu.Lock()
	if p.isClosed {
		p.mu.Unlock()
		return
	}
	p.isClosed = true
	p.mu.Unlock()

	p.logger.Debug("Closing page session.")

	if p.sessionCancel != nil {
		p.sessionCancel()
	}
	if p.browserContextID != "" {
		p.manager.disposeBrowserContext(p.browserContextID)
	}
	p.manager.sessionClosed()

	select {
	case <-p.sessionCtx.Done():
	case <-ctx.Done():
		p.logger.Warn("Context cancelled while waiting for session close.", zap.Error(ctx.Err()))
	case <-time.After(closeTimeout):
		p.logger.Warn("Timeout waiting for page session to close.")
	}
}
