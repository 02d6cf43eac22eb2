// File: internal/fleet/runner.go
package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/avelaine/kzfleet/internal/automation"
	"github.com/avelaine/kzfleet/internal/browser"
	"github.com/avelaine/kzfleet/internal/config"
	"github.com/avelaine/kzfleet/internal/popup"
	"github.com/avelaine/kzfleet/internal/schemas"
	"github.com/avelaine/kzfleet/internal/screenshot"
	"github.com/avelaine/kzfleet/internal/timing"
)

// BrowserRunner executes account workflows on real page sessions from the
// shared browser manager. One isolated session is opened and torn down per
// account.
type BrowserRunner struct {
	manager    *browser.Manager
	cfg        *config.Config
	classifier *popup.Classifier
	saver      *screenshot.Saver
	logger     *zap.Logger
}

// NewBrowserRunner wires the runner. saver may be nil to skip failure
// captures.
func NewBrowserRunner(
	manager *browser.Manager,
	cfg *config.Config,
	classifier *popup.Classifier,
	saver *screenshot.Saver,
	logger *zap.Logger,
) *BrowserRunner {
	return &BrowserRunner{
		manager:    manager,
		cfg:        cfg,
		classifier: classifier,
		saver:      saver,
		logger:     logger.Named("runner"),
	}
}

// RunAccount opens a fresh page session, runs the workflow, and closes the
// session. Session-open failures surface as a failed outcome.
func (r *BrowserRunner) RunAccount(
	ctx context.Context,
	runDeadline *timing.Deadline,
	account schemas.Account,
	cmd schemas.CodeCommand,
) schemas.AccountResult {
	page, err := r.manager.NewPage(ctx)
	if err != nil {
		r.logger.Error("Could not open a page session.",
			zap.String("email", account.Email), zap.Error(err))
		return schemas.BuildAccountResult(account.Email, nil, cmd.Clicks, 0, err.Error())
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		page.Close(closeCtx)
	}()
	page.DismissDialogs()

	var limiter *rate.Limiter
	if r.cfg.Fleet.SubmitInterval > 0 {
		burst := r.cfg.Fleet.SubmitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(r.cfg.Fleet.SubmitInterval), burst)
	}

	workflow := automation.NewWorkflow(
		page,
		r.cfg.Target,
		r.cfg.Timeouts,
		r.classifier,
		limiter,
		r.logger.With(zap.String("email", account.Email)),
	)

	result := workflow.Run(ctx, runDeadline, account, cmd, r.cfg.Timeouts.Account)

	if result.Error != "" && r.saver != nil && r.cfg.Fleet.ScreenshotOnErr {
		r.captureFailure(ctx, page, account.Email)
	}
	return result
}

func (r *BrowserRunner) captureFailure(ctx context.Context, page *browser.PageSession, email string) {
	shotCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	png, err := page.Screenshot(shotCtx)
	if err != nil {
		r.logger.Warn("Failed to capture a failure screenshot.",
			zap.String("email", email), zap.Error(err))
		return
	}
	if _, err := r.saver.Save(email, png); err != nil {
		r.logger.Warn("Failed to save a failure screenshot.",
			zap.String("email", email), zap.Error(err))
	}
}

var _ AccountRunner = (*BrowserRunner)(nil)
