// File: internal/browser/manager.go

// Package browser owns the shared Chrome process and hands out isolated
// page sessions, one per account, over the Chrome DevTools Protocol.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/avelaine/kzfleet/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager launches one Chrome process for the whole run and creates an
// isolated browser context per page session. Sessions share the process but
// not cookies, storage, or cache.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	// controllerCtx is the chromedp context attached to the browser itself,
	// used for browser-level CDP calls such as target creation.
	controllerCtx    context.Context
	controllerCancel context.CancelFunc

	// contextCreationLock serializes CreateBrowserContext/CreateTarget pairs;
	// Chrome mishandles interleaved creation on one connection.
	contextCreationLock sync.Mutex

	mu       sync.Mutex
	isClosed bool
	wg       sync.WaitGroup
}

// NewManager launches the browser process and connects the controller
// context. The returned manager must be shut down with Shutdown.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		cfg:    cfg,
		logger: logger.Named("browser_manager"),
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	m.controllerCtx, m.controllerCancel = chromedp.NewContext(m.allocCtx)

	// Drive the controller context once so the browser process starts now
	// rather than on the first session.
	if err := chromedp.Run(m.controllerCtx); err != nil {
		m.allocCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	m.logger.Info("Browser process launched.", zap.Bool("headless", cfg.Headless))
	return m, nil
}

// NewPage creates an isolated browser context plus a blank target inside it
// and returns a session bound to that target. The caller owns the session
// and must Close it.
func (m *Manager) NewPage(ctx context.Context) (*PageSession, error) {
	m.mu.Lock()
	if m.isClosed {
		m.mu.Unlock()
		return nil, fmt.Errorf("browser manager is shut down")
	}
	m.wg.Add(1)
	m.mu.Unlock()

	m.contextCreationLock.Lock()
	defer m.contextCreationLock.Unlock()

	if err := ctx.Err(); err != nil {
		m.wg.Done()
		return nil, fmt.Errorf("context cancelled before creating browser context: %w", err)
	}

	browserContextID, err := target.CreateBrowserContext().Do(m.controllerCtx)
	if err != nil {
		m.wg.Done()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	targetID, err := target.CreateTarget("about:blank").
		WithBrowserContextID(browserContextID).
		Do(m.controllerCtx)
	if err != nil {
		m.disposeBrowserContext(browserContextID)
		m.wg.Done()
		return nil, fmt.Errorf("failed to create target: %w", err)
	}

	sessionCtx, sessionCancel := chromedp.NewContext(m.allocCtx, chromedp.WithTargetID(targetID))

	ps := newPageSession(sessionCtx, sessionCancel, browserContextID, m, m.logger)
	if err := ps.initialize(ctx, m.cfg.BlockedURLs); err != nil {
		ps.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize page session: %w", err)
	}
	return ps, nil
}

// disposeBrowserContext tears down an isolated browser context, best effort.
func (m *Manager) disposeBrowserContext(id cdp.BrowserContextID) {
	if m.controllerCtx.Err() != nil {
		return
	}
	cleanupCtx, cancel := context.WithTimeout(m.controllerCtx, 10*time.Second)
	defer cancel()
	if err := target.DisposeBrowserContext(id).Do(cleanupCtx); err != nil {
		m.logger.Warn("Failed to dispose of browser context. It may be orphaned.",
			zap.String("browserContextID", string(id)),
			zap.Error(err),
		)
	}
}

func (m *Manager) sessionClosed() {
	m.wg.Done()
}

// Shutdown waits for open sessions to close, then stops the browser process.
// chromedp.Cancel blocks until the process exits, so it runs under a grace
// period derived from ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.isClosed {
		m.mu.Unlock()
		return nil
	}
	m.isClosed = true
	m.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		m.logger.Warn("Shutdown proceeding with sessions still open.", zap.Error(ctx.Err()))
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Timeout waiting for sessions to close before shutdown.")
	}

	m.controllerCancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(m.allocCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for browser process to exit.")
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Browser process did not exit within the grace period.")
	}

	m.allocCancel()
	if err != nil && m.allocCtx.Err() == nil {
		return fmt.Errorf("browser shutdown: %w", err)
	}
	m.logger.Info("Browser process stopped.")
	return nil
}
