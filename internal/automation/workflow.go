// File: internal/automation/workflow.go

// Package automation drives a single account through the site: log in,
// relocate to the submission page, and submit the order code the requested
// number of times. Deadlines are checked between steps, never mid-action.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/avelaine/kzfleet/internal/browser"
	"github.com/avelaine/kzfleet/internal/config"
	"github.com/avelaine/kzfleet/internal/popup"
	"github.com/avelaine/kzfleet/internal/schemas"
	"github.com/avelaine/kzfleet/internal/timing"
)

// loginAffirmations are the popup fragments that confirm a login when the
// URL does not change. Smaller than the submission success list on purpose:
// "completed" popups on the login page are not logins.
var loginAffirmations = []string{"successful", "success", "réussi", "bienvenue", "welcome"}

const (
	shortClickTimeout = 1 * time.Second
	longClickTimeout  = 2 * time.Second
	loginSettleWait   = 8 * time.Second
)

// Workflow runs the login/navigate/submit sequence for one account on one
// page session.
type Workflow struct {
	driver     PageDriver
	target     config.TargetConfig
	timeouts   config.TimeoutConfig
	classifier *popup.Classifier
	limiter    *rate.Limiter
	logger     *zap.Logger

	Metrics timing.Metrics
}

// NewWorkflow builds a workflow bound to one page driver. The limiter
// spaces out successive submissions; pass nil to submit without pacing.
func NewWorkflow(
	driver PageDriver,
	target config.TargetConfig,
	timeouts config.TimeoutConfig,
	classifier *popup.Classifier,
	limiter *rate.Limiter,
	logger *zap.Logger,
) *Workflow {
	return &Workflow{
		driver:     driver,
		target:     target,
		timeouts:   timeouts,
		classifier: classifier,
		limiter:    limiter,
		logger:     logger.Named("workflow"),
	}
}

// Login authenticates the account. Success is detected either by the page
// leaving the login URL or by an affirmative popup.
func (w *Workflow) Login(ctx context.Context, deadline *timing.AccountDeadline, account schemas.Account) error {
	sw := timing.StartStopwatch()
	defer func() { w.Metrics.Login = sw.Elapsed() }()

	if err := deadline.Check("login"); err != nil {
		return err
	}

	if err := w.driver.Navigate(ctx, w.target.LoginURL); err != nil {
		return fmt.Errorf("opening login page: %w", err)
	}

	sel := w.target.Selectors
	if err := w.driver.Type(ctx, sel.EmailInput, account.Email, w.timeouts.Element); err != nil {
		return fmt.Errorf("filling email: %w", err)
	}
	if err := w.driver.Type(ctx, sel.PasswordInput, account.Password, w.timeouts.Element); err != nil {
		return fmt.Errorf("filling password: %w", err)
	}

	startURL, err := w.driver.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("reading login page URL: %w", err)
	}

	// Enter in the password field is the fast path; the button is the
	// fallback when the form ignores the key.
	if err := w.driver.PressEnter(ctx, sel.PasswordInput, w.timeouts.Element); err != nil {
		w.logger.Debug("Enter submission failed, falling back to the login button.", zap.Error(err))
		if err := w.driver.Click(ctx, sel.LoginButton, w.timeouts.Element); err != nil {
			return fmt.Errorf("submitting login form: %w", err)
		}
	}

	if err := deadline.Check("login confirmation"); err != nil {
		return err
	}

	if _, err := w.driver.WaitURLChange(ctx, startURL, loginSettleWait); err == nil {
		w.logger.Debug("Login confirmed by URL change.", zap.String("email", account.Email))
		return nil
	}

	// Some site variants stay on the login URL and confirm with a popup.
	text, err := w.driver.ReadText(ctx, sel.PopupContent, w.timeouts.Popup)
	if err == nil {
		lowered := strings.ToLower(text)
		for _, word := range loginAffirmations {
			if strings.Contains(lowered, word) {
				w.logger.Debug("Login confirmed by popup.", zap.String("popup", text))
				return nil
			}
		}
		return fmt.Errorf("login rejected for %s: %q", account.Email, text)
	}

	return fmt.Errorf("login for %s produced neither a URL change nor a popup: %w", account.Email, browser.ErrTimeout)
}

// NavigateToSubmit relocates directly to the submission page. A bounce back
// to the login page means the session is gone.
func (w *Workflow) NavigateToSubmit(ctx context.Context, deadline *timing.AccountDeadline) error {
	sw := timing.StartStopwatch()
	defer func() { w.Metrics.Navigation = sw.Elapsed() }()

	if err := deadline.Check("navigation"); err != nil {
		return err
	}

	if err := w.driver.Navigate(ctx, w.target.SubmitURL); err != nil {
		return fmt.Errorf("opening submission page: %w", err)
	}

	current, err := w.driver.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("reading submission page URL: %w", err)
	}
	if strings.Contains(current, "login") {
		return fmt.Errorf("bounced to %s: %w", current, browser.ErrSessionLost)
	}
	return nil
}

// SubmitCode performs one submission attempt. Element problems are absorbed
// into an Error-classified result; only the no-popup-after-click path stays
// Unknown. A non-nil error means the submission sequence must stop: a page
// bounced back to login (ErrSessionLost, with a synthetic Error outcome) or
// a driver timeout (ErrTimeout, outcome not recorded).
func (w *Workflow) SubmitCode(ctx context.Context, code string) (result schemas.SubmitResult, err error) {
	sw := timing.StartStopwatch()
	result = schemas.SubmitResult{Status: schemas.StatusUnknown}
	defer func() { result.DurationMs = sw.Elapsed().Milliseconds() }()

	// The session can die between attempts; typing into the login page
	// would silently waste the rest of the sequence.
	if current, err := w.driver.CurrentURL(ctx); err == nil && strings.Contains(current, "login") {
		result.Status = schemas.StatusError
		result.PopupText = fmt.Sprintf("bounced to %s", current)
		return result, fmt.Errorf("page returned to %s: %w", current, browser.ErrSessionLost)
	}

	sel := w.target.Selectors
	if err := w.driver.Type(ctx, sel.CodeInput, code, w.timeouts.Element); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return result, fmt.Errorf("filling code input: %w", err)
		}
		w.logger.Warn("Could not fill the code input.", zap.Error(err))
		result.Status = schemas.StatusError
		result.PopupText = err.Error()
		return result, nil
	}

	if err := w.clickSubmit(ctx); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return result, fmt.Errorf("clicking submit: %w", err)
		}
		w.logger.Warn("Could not click any submit button.", zap.Error(err))
		result.Status = schemas.StatusError
		result.PopupText = err.Error()
		return result, nil
	}

	text, err := w.driver.ReadText(ctx, sel.PopupContent, w.timeouts.Popup)
	if err != nil {
		w.logger.Warn("No feedback popup appeared after submission.", zap.Error(err))
		return result, nil
	}

	result.PopupText = text
	result.Status = w.classifier.Classify(text)
	result.Success = result.Status == schemas.StatusSuccess
	return result, nil
}

// clickSubmit walks the ordered submit selector list with a short budget
// per selector, then retries the primary selector with a longer one.
func (w *Workflow) clickSubmit(ctx context.Context) error {
	for _, selector := range w.target.Selectors.SubmitButtons {
		if err := w.driver.Click(ctx, selector, shortClickTimeout); err == nil {
			return nil
		}
	}

	primary := w.target.Selectors.SubmitButtons[0]
	err := w.driver.Click(ctx, primary, longClickTimeout)
	if err == nil {
		return nil
	}
	return fmt.Errorf("all submit selectors failed: %w", err)
}

// SubmitCodeNTimes submits the code cmd.Clicks times, stopping early when
// the deadline expires, the session bounces back to login, or the driver
// times out. Outcomes already collected survive an early stop; the returned
// error then names the condition that stopped the loop.
func (w *Workflow) SubmitCodeNTimes(ctx context.Context, deadline *timing.AccountDeadline, cmd schemas.CodeCommand) ([]schemas.SubmitResult, error) {
	sw := timing.StartStopwatch()
	defer func() { w.Metrics.Submits = sw.Elapsed() }()

	results := make([]schemas.SubmitResult, 0, cmd.Clicks)
	for i := 0; i < cmd.Clicks; i++ {
		if err := deadline.Check(fmt.Sprintf("submission %d/%d", i+1, cmd.Clicks)); err != nil {
			w.logger.Warn("Stopping submissions early.",
				zap.Int("completed", len(results)),
				zap.Int("requested", cmd.Clicks),
			)
			return results, err
		}

		if w.limiter != nil && i > 0 {
			if err := w.limiter.Wait(ctx); err != nil {
				return results, fmt.Errorf("waiting for submission slot: %w", err)
			}
		}

		result, err := w.SubmitCode(ctx, cmd.Code)
		if err != nil {
			if errors.Is(err, browser.ErrSessionLost) {
				// The synthetic bounce outcome still counts.
				results = append(results, result)
			}
			w.logger.Warn("Aborting submission sequence.",
				zap.Int("completed", len(results)),
				zap.Int("requested", cmd.Clicks),
				zap.Error(err),
			)
			return results, err
		}
		results = append(results, result)
		w.logger.Info("Submission attempt finished.",
			zap.Int("attempt", i+1),
			zap.Int("requested", cmd.Clicks),
			zap.Bool("success", result.Success),
			zap.String("status", string(result.Status)),
		)
	}
	return results, nil
}

// Run executes the full sequence for one account and folds the outcome into
// an AccountResult. Fatal step errors land in the result instead of
// propagating; the caller always gets a result.
func (w *Workflow) Run(ctx context.Context, runDeadline *timing.Deadline, account schemas.Account, cmd schemas.CodeCommand, accountBudget time.Duration) schemas.AccountResult {
	sw := timing.StartStopwatch()
	deadline := timing.NewAccountDeadline(runDeadline, accountBudget)
	logger := w.logger.With(zap.String("email", account.Email))

	var results []schemas.SubmitResult
	fatal := ""

	err := w.Login(ctx, deadline, account)
	if err == nil {
		err = w.NavigateToSubmit(ctx, deadline)
	}
	if err == nil {
		results, err = w.SubmitCodeNTimes(ctx, deadline, cmd)
		// Early loop stops keep the partial outcomes; the strict success
		// rule already fails the account for falling short.
		if err != nil && (errors.Is(err, timing.ErrDeadlineExceeded) ||
			errors.Is(err, browser.ErrTimeout) ||
			errors.Is(err, browser.ErrSessionLost)) {
			logger.Warn("Submission sequence stopped early.", zap.Error(err))
			err = nil
		}
	}
	if err != nil {
		logger.Error("Account workflow failed.", zap.Error(err))
		fatal = err.Error()
	}

	return schemas.BuildAccountResult(account.Email, results, cmd.Clicks, sw.Elapsed().Seconds(), fatal)
}
