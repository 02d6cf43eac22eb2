// File: internal/automation/workflow_test.go
package automation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/avelaine/kzfleet/internal/browser"
	"github.com/avelaine/kzfleet/internal/config"
	"github.com/avelaine/kzfleet/internal/popup"
	"github.com/avelaine/kzfleet/internal/schemas"
	"github.com/avelaine/kzfleet/internal/timing"
)

// fakeDriver is a scripted PageDriver. Zero value behaves as an always
// succeeding page; tests override the hooks they care about.
type fakeDriver struct {
	currentURL string

	navigateFn  func(url string) error
	clickFn     func(selector string) error
	enterFn     func(selector string) error
	typeFn      func(selector, text string) error
	readTextFn  func(selector string) (string, error)
	urlChangeFn func(fromURL string) (string, error)

	clicked   []string
	typed     []string
	navigated []string
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	f.currentURL = url
	if f.navigateFn != nil {
		return f.navigateFn(url)
	}
	return nil
}

func (f *fakeDriver) CurrentURL(context.Context) (string, error) {
	return f.currentURL, nil
}

func (f *fakeDriver) Type(_ context.Context, selector, text string, _ time.Duration) error {
	f.typed = append(f.typed, selector)
	if f.typeFn != nil {
		return f.typeFn(selector, text)
	}
	return nil
}

func (f *fakeDriver) Click(_ context.Context, selector string, _ time.Duration) error {
	f.clicked = append(f.clicked, selector)
	if f.clickFn != nil {
		return f.clickFn(selector)
	}
	return nil
}

func (f *fakeDriver) PressEnter(_ context.Context, selector string, _ time.Duration) error {
	if f.enterFn != nil {
		return f.enterFn(selector)
	}
	return nil
}

func (f *fakeDriver) ReadText(_ context.Context, selector string, _ time.Duration) (string, error) {
	if f.readTextFn != nil {
		return f.readTextFn(selector)
	}
	return "", browser.ErrTimeout
}

func (f *fakeDriver) WaitURLChange(_ context.Context, fromURL string, _ time.Duration) (string, error) {
	if f.urlChangeFn != nil {
		return f.urlChangeFn(fromURL)
	}
	return fromURL, browser.ErrTimeout
}

func (f *fakeDriver) Screenshot(context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func testTarget() config.TargetConfig {
	return config.TargetConfig{
		LoginURL:  "https://site.test/login",
		SubmitURL: "https://site.test/submit",
		Selectors: config.SelectorConfig{
			EmailInput:    "#email",
			PasswordInput: "#password",
			LoginButton:   "#login",
			CodeInput:     "#code",
			SubmitButtons: []string{"#submit", "#submit-alt"},
			PopupContent:  "#popup",
		},
	}
}

func testTimeouts() config.TimeoutConfig {
	return config.TimeoutConfig{
		Run:     time.Minute,
		Account: 30 * time.Second,
		Element: 100 * time.Millisecond,
		Popup:   100 * time.Millisecond,
	}
}

func newTestWorkflow(t *testing.T, driver *fakeDriver) *Workflow {
	t.Helper()
	return NewWorkflow(driver, testTarget(), testTimeouts(), popup.NewClassifier(nil, nil), nil, zaptest.NewLogger(t))
}

func freshDeadline() *timing.AccountDeadline {
	return timing.NewAccountDeadline(nil, time.Minute)
}

func testAccount() schemas.Account {
	return schemas.Account{Email: "user@example.com", Password: "pw"}
}

func TestLoginViaURLChange(t *testing.T) {
	driver := &fakeDriver{
		urlChangeFn: func(string) (string, error) { return "https://site.test/home", nil },
	}
	w := newTestWorkflow(t, driver)

	err := w.Login(context.Background(), freshDeadline(), testAccount())
	require.NoError(t, err)
	assert.Equal(t, []string{"#email", "#password"}, driver.typed)
	assert.Empty(t, driver.clicked)
	assert.Greater(t, w.Metrics.Login, time.Duration(0))
}

func TestLoginFallsBackToButton(t *testing.T) {
	driver := &fakeDriver{
		enterFn:     func(string) error { return browser.ErrElementNotFound },
		urlChangeFn: func(string) (string, error) { return "https://site.test/home", nil },
	}
	w := newTestWorkflow(t, driver)

	require.NoError(t, w.Login(context.Background(), freshDeadline(), testAccount()))
	assert.Equal(t, []string{"#login"}, driver.clicked)
}

func TestLoginViaAffirmativePopup(t *testing.T) {
	driver := &fakeDriver{
		readTextFn: func(string) (string, error) { return "Bienvenue !", nil },
	}
	w := newTestWorkflow(t, driver)

	require.NoError(t, w.Login(context.Background(), freshDeadline(), testAccount()))
}

func TestLoginRejectedByPopup(t *testing.T) {
	driver := &fakeDriver{
		readTextFn: func(string) (string, error) { return "mot de passe incorrect", nil },
	}
	w := newTestWorkflow(t, driver)

	err := w.Login(context.Background(), freshDeadline(), testAccount())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incorrect")
}

func TestLoginNoSignalAtAll(t *testing.T) {
	w := newTestWorkflow(t, &fakeDriver{})
	err := w.Login(context.Background(), freshDeadline(), testAccount())
	assert.True(t, errors.Is(err, browser.ErrTimeout))
}

func TestLoginExpiredDeadline(t *testing.T) {
	driver := &fakeDriver{}
	w := newTestWorkflow(t, driver)

	expired := timing.NewAccountDeadline(nil, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	err := w.Login(context.Background(), expired, testAccount())
	assert.True(t, errors.Is(err, timing.ErrDeadlineExceeded))
	assert.Empty(t, driver.navigated)
}

func TestNavigateToSubmit(t *testing.T) {
	driver := &fakeDriver{}
	w := newTestWorkflow(t, driver)

	require.NoError(t, w.NavigateToSubmit(context.Background(), freshDeadline()))
	assert.Equal(t, []string{"https://site.test/submit"}, driver.navigated)
}

func TestNavigateToSubmitBounce(t *testing.T) {
	driver := &fakeDriver{
		navigateFn: func(string) error { return nil },
	}
	w := newTestWorkflow(t, driver)
	// Simulate the site rewriting the location to the login page.
	driver.navigateFn = func(url string) error {
		driver.currentURL = "https://site.test/login"
		return nil
	}

	err := w.NavigateToSubmit(context.Background(), freshDeadline())
	assert.True(t, errors.Is(err, browser.ErrSessionLost))
}

func TestSubmitCodeClassification(t *testing.T) {
	cases := []struct {
		name       string
		popupText  string
		popupErr   error
		wantOK     bool
		wantStatus schemas.PopupStatus
	}{
		{"Success", "Code submitted successfully", nil, true, schemas.StatusSuccess},
		{"InvalidCode", "invalid code", nil, false, schemas.StatusError},
		{"UnknownText", "random text", nil, false, schemas.StatusUnknown},
		{"NoPopup", "", browser.ErrTimeout, false, schemas.StatusUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			driver := &fakeDriver{
				readTextFn: func(string) (string, error) { return tc.popupText, tc.popupErr },
			}
			w := newTestWorkflow(t, driver)

			result, err := w.SubmitCode(context.Background(), "j2f4ffjb")
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, result.Success)
			assert.Equal(t, tc.wantStatus, result.Status)
		})
	}
}

func TestClickSubmitFallbackOrder(t *testing.T) {
	t.Run("AltSelectorSucceeds", func(t *testing.T) {
		driver := &fakeDriver{
			clickFn: func(selector string) error {
				if selector == "#submit" {
					return browser.ErrElementNotFound
				}
				return nil
			},
			readTextFn: func(string) (string, error) { return "success", nil },
		}
		w := newTestWorkflow(t, driver)

		result, err := w.SubmitCode(context.Background(), "j2f4ffjb")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, []string{"#submit", "#submit-alt"}, driver.clicked)
	})

	t.Run("PrimaryRetriedWithLongerBudget", func(t *testing.T) {
		calls := 0
		driver := &fakeDriver{
			clickFn: func(selector string) error {
				calls++
				if calls <= 2 {
					return browser.ErrElementNotFound
				}
				return nil
			},
			readTextFn: func(string) (string, error) { return "success", nil },
		}
		w := newTestWorkflow(t, driver)

		result, err := w.SubmitCode(context.Background(), "j2f4ffjb")
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, []string{"#submit", "#submit-alt", "#submit"}, driver.clicked)
	})

	t.Run("AllSelectorsFail", func(t *testing.T) {
		driver := &fakeDriver{
			clickFn: func(string) error { return browser.ErrElementNotFound },
		}
		w := newTestWorkflow(t, driver)

		result, err := w.SubmitCode(context.Background(), "j2f4ffjb")
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, schemas.StatusError, result.Status)
		assert.Len(t, driver.clicked, 3)
	})
}

func TestSubmitCodeFillFailureIsErrorClassified(t *testing.T) {
	driver := &fakeDriver{
		typeFn: func(string, string) error { return browser.ErrElementNotFound },
	}
	w := newTestWorkflow(t, driver)

	result, err := w.SubmitCode(context.Background(), "j2f4ffjb")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, schemas.StatusError, result.Status)
	assert.NotEmpty(t, result.PopupText)
}

func TestSubmitCodeBounceToLoginAbortsSequence(t *testing.T) {
	driver := &fakeDriver{
		currentURL: "https://site.test/login",
		readTextFn: func(string) (string, error) { return "success", nil },
	}
	w := newTestWorkflow(t, driver)

	cmd, err := schemas.NewCodeCommand(3, "j2f4ffjb")
	require.NoError(t, err)

	results, err := w.SubmitCodeNTimes(context.Background(), freshDeadline(), cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, browser.ErrSessionLost))
	require.Len(t, results, 1)
	assert.Equal(t, schemas.StatusError, results[0].Status)
	assert.False(t, results[0].Success)
	assert.Empty(t, driver.typed)
}

func TestSubmitCodeNTimesStopsOnDriverTimeout(t *testing.T) {
	attempt := 0
	driver := &fakeDriver{
		typeFn: func(string, string) error {
			attempt++
			if attempt > 1 {
				return browser.ErrTimeout
			}
			return nil
		},
		readTextFn: func(string) (string, error) { return "success", nil },
	}
	w := newTestWorkflow(t, driver)

	cmd, err := schemas.NewCodeCommand(5, "j2f4ffjb")
	require.NoError(t, err)

	results, err := w.SubmitCodeNTimes(context.Background(), freshDeadline(), cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, browser.ErrTimeout))
	assert.Equal(t, 2, attempt)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestSubmitCodeNTimesStopsOnDeadline(t *testing.T) {
	driver := &fakeDriver{
		readTextFn: func(string) (string, error) { return "success", nil },
	}
	w := newTestWorkflow(t, driver)

	deadline := timing.NewAccountDeadline(nil, 50*time.Millisecond)
	cmd, err := schemas.NewCodeCommand(50, "j2f4ffjb")
	require.NoError(t, err)

	// Slow each attempt so the budget runs out mid-loop.
	w.driver = &fakeDriver{
		readTextFn: func(string) (string, error) {
			time.Sleep(20 * time.Millisecond)
			return "success", nil
		},
	}

	results, err := w.SubmitCodeNTimes(context.Background(), deadline, cmd)
	require.Error(t, err)
	assert.True(t, errors.Is(err, timing.ErrDeadlineExceeded))
	assert.NotEmpty(t, results)
	assert.Less(t, len(results), 50)
	for _, r := range results {
		assert.True(t, r.Success)
	}
}

func TestRunAllSubmissionsSucceed(t *testing.T) {
	driver := &fakeDriver{
		urlChangeFn: func(string) (string, error) { return "https://site.test/home", nil },
		readTextFn:  func(string) (string, error) { return "successful", nil },
	}
	w := newTestWorkflow(t, driver)

	cmd, err := schemas.NewCodeCommand(3, "j2f4ffjb")
	require.NoError(t, err)

	result := w.Run(context.Background(), nil, testAccount(), cmd, time.Minute)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.TotalSubmits)
	assert.Equal(t, 3, result.SuccessfulSubmits)
	assert.Zero(t, result.FailedSubmits)
	assert.Empty(t, result.Error)
}

func TestRunSecondSubmissionInvalid(t *testing.T) {
	attempt := 0
	driver := &fakeDriver{
		urlChangeFn: func(string) (string, error) { return "https://site.test/home", nil },
		readTextFn: func(selector string) (string, error) {
			attempt++
			if attempt == 2 {
				return "invalid code", nil
			}
			return "successful", nil
		},
	}
	w := newTestWorkflow(t, driver)

	cmd, err := schemas.NewCodeCommand(3, "j2f4ffjb")
	require.NoError(t, err)

	result := w.Run(context.Background(), nil, testAccount(), cmd, time.Minute)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.TotalSubmits)
	assert.Equal(t, 2, result.SuccessfulSubmits)
	assert.Equal(t, 1, result.FailedSubmits)
	assert.True(t, result.Partial())
}

func TestRunLoginFailureIsFatal(t *testing.T) {
	driver := &fakeDriver{
		navigateFn: func(url string) error { return fmt.Errorf("net::ERR_CONNECTION_REFUSED: %w", browser.ErrNavigation) },
	}
	w := newTestWorkflow(t, driver)

	cmd, err := schemas.NewCodeCommand(2, "j2f4ffjb")
	require.NoError(t, err)

	result := w.Run(context.Background(), nil, testAccount(), cmd, time.Minute)
	assert.False(t, result.Success)
	assert.Zero(t, result.TotalSubmits)
	assert.NotEmpty(t, result.Error)
}

func TestRunSessionLostMidLoop(t *testing.T) {
	driver := &fakeDriver{
		urlChangeFn: func(string) (string, error) { return "https://site.test/home", nil },
	}
	// The site drops the session right after the first submission lands.
	driver.readTextFn = func(string) (string, error) {
		driver.currentURL = "https://site.test/login"
		return "successful", nil
	}
	w := newTestWorkflow(t, driver)

	cmd, err := schemas.NewCodeCommand(5, "j2f4ffjb")
	require.NoError(t, err)

	result := w.Run(context.Background(), nil, testAccount(), cmd, time.Minute)
	assert.False(t, result.Success)
	assert.Equal(t, 2, result.TotalSubmits)
	assert.Equal(t, 1, result.SuccessfulSubmits)
	assert.Equal(t, 1, result.FailedSubmits)
	assert.Empty(t, result.Error)
}

func TestRunDeadlineMidLoopKeepsPartialOutcomes(t *testing.T) {
	driver := &fakeDriver{
		urlChangeFn: func(string) (string, error) { return "https://site.test/home", nil },
		readTextFn: func(string) (string, error) {
			time.Sleep(30 * time.Millisecond)
			return "successful", nil
		},
	}
	w := newTestWorkflow(t, driver)

	cmd, err := schemas.NewCodeCommand(50, "j2f4ffjb")
	require.NoError(t, err)

	result := w.Run(context.Background(), nil, testAccount(), cmd, 100*time.Millisecond)
	assert.False(t, result.Success)
	assert.Greater(t, result.TotalSubmits, 0)
	assert.Less(t, result.TotalSubmits, 50)
	// Early stop is not a fatal error; the outcomes speak for themselves.
	assert.Empty(t, result.Error)
}
