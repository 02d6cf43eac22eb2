// File: internal/fleet/scheduler_test.go
package fleet

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/avelaine/kzfleet/internal/schemas"
	"github.com/avelaine/kzfleet/internal/timing"
)

// stubRunner returns canned results and records concurrency.
type stubRunner struct {
	runFn func(account schemas.Account) schemas.AccountResult
	delay time.Duration

	active  atomic.Int32
	peak    atomic.Int32
	started atomic.Int32
}

func (s *stubRunner) RunAccount(_ context.Context, _ *timing.Deadline, account schemas.Account, cmd schemas.CodeCommand) schemas.AccountResult {
	s.started.Add(1)
	cur := s.active.Add(1)
	for {
		p := s.peak.Load()
		if cur <= p || s.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	defer s.active.Add(-1)

	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.runFn != nil {
		return s.runFn(account)
	}
	ok := schemas.SubmitResult{Success: true, Status: schemas.StatusSuccess}
	return schemas.BuildAccountResult(account.Email, []schemas.SubmitResult{ok}, cmd.Clicks, 0.1, "")
}

func roster(n int) []schemas.Account {
	out := make([]schemas.Account, n)
	for i := range out {
		out[i] = schemas.Account{Email: string(rune('a'+i)) + "@example.com", Password: "pw"}
	}
	return out
}

func testCmd(t *testing.T) schemas.CodeCommand {
	t.Helper()
	cmd, err := schemas.NewCodeCommand(1, "j2f4ffjb")
	require.NoError(t, err)
	return cmd
}

func TestRunEmptyRoster(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler(&stubRunner{}, Options{MaxConcurrent: 1}, zaptest.NewLogger(t))
	report := s.Run(context.Background(), timing.NewDeadline(time.Minute), nil, testCmd(t), nil)

	assert.Zero(t, report.TotalAccounts)
	assert.Zero(t, report.ProcessedAccounts)
	assert.Zero(t, report.SuccessfulAccounts)
	assert.False(t, report.TimedOut)
	assert.NotEmpty(t, report.RunID)
}

func TestRunProcessesAllAccounts(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &stubRunner{}
	s := NewScheduler(runner, Options{MaxConcurrent: 2, KeepResults: true}, zaptest.NewLogger(t))

	var emitted []string
	var mu sync.Mutex
	report := s.Run(context.Background(), timing.NewDeadline(time.Minute), roster(5), testCmd(t),
		func(r schemas.AccountResult) {
			mu.Lock()
			emitted = append(emitted, r.Email)
			mu.Unlock()
		})

	assert.Equal(t, 5, report.TotalAccounts)
	assert.Equal(t, 5, report.ProcessedAccounts)
	assert.Equal(t, 5, report.SuccessfulAccounts)
	assert.False(t, report.TimedOut)
	assert.Len(t, report.AccountResults, 5)
	assert.Len(t, emitted, 5)
}

func TestRunHonorsConcurrencyBound(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &stubRunner{delay: 30 * time.Millisecond}
	s := NewScheduler(runner, Options{MaxConcurrent: 2}, zaptest.NewLogger(t))

	s.Run(context.Background(), timing.NewDeadline(time.Minute), roster(6), testCmd(t), nil)
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
}

func TestRunExpiredDeadlineAbandonsRoster(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &stubRunner{}
	s := NewScheduler(runner, Options{MaxConcurrent: 1, KeepResults: true}, zaptest.NewLogger(t))

	expired := timing.NewDeadline(time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	report := s.Run(context.Background(), expired, roster(5), testCmd(t), nil)

	assert.Equal(t, 5, report.TotalAccounts)
	assert.Zero(t, report.ProcessedAccounts)
	assert.True(t, report.TimedOut)
	assert.Zero(t, runner.started.Load())
	assert.Empty(t, report.AccountResults)
}

func TestRunPanickingRunnerYieldsFailedOutcome(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &stubRunner{
		runFn: func(account schemas.Account) schemas.AccountResult {
			if account.Email == "b@example.com" {
				panic("browser exploded")
			}
			ok := schemas.SubmitResult{Success: true, Status: schemas.StatusSuccess}
			return schemas.BuildAccountResult(account.Email, []schemas.SubmitResult{ok}, 1, 0.1, "")
		},
	}
	s := NewScheduler(runner, Options{MaxConcurrent: 1, KeepResults: true}, zaptest.NewLogger(t))

	report := s.Run(context.Background(), timing.NewDeadline(time.Minute), roster(3), testCmd(t), nil)

	assert.Equal(t, 3, report.ProcessedAccounts)
	assert.Equal(t, 2, report.SuccessfulAccounts)

	var failed *schemas.AccountResult
	for i := range report.AccountResults {
		if report.AccountResults[i].Email == "b@example.com" {
			failed = &report.AccountResults[i]
		}
	}
	require.NotNil(t, failed)
	assert.False(t, failed.Success)
	assert.Contains(t, failed.Error, "panic")
}

func TestRunPanickingEmitterDoesNotDisturbRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler(&stubRunner{}, Options{MaxConcurrent: 1}, zaptest.NewLogger(t))
	report := s.Run(context.Background(), timing.NewDeadline(time.Minute), roster(3), testCmd(t),
		func(schemas.AccountResult) { panic("emitter broke") })

	assert.Equal(t, 3, report.ProcessedAccounts)
	assert.Equal(t, 3, report.SuccessfulAccounts)
}

func TestRunKeepResultsOff(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewScheduler(&stubRunner{}, Options{MaxConcurrent: 1, KeepResults: false}, zaptest.NewLogger(t))
	report := s.Run(context.Background(), timing.NewDeadline(time.Minute), roster(2), testCmd(t), nil)

	assert.Equal(t, 2, report.ProcessedAccounts)
	assert.Empty(t, report.AccountResults)
}
