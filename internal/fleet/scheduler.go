// File: internal/fleet/scheduler.go

// Package fleet schedules account workflows across the roster under a
// run-wide deadline and a bounded concurrency gate.
package fleet

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/avelaine/kzfleet/internal/schemas"
	"github.com/avelaine/kzfleet/internal/timing"
)

// AccountRunner executes the workflow for a single account. The fleet
// scheduler treats it as a black box so tests can substitute a stub.
type AccountRunner interface {
	RunAccount(ctx context.Context, runDeadline *timing.Deadline, account schemas.Account, cmd schemas.CodeCommand) schemas.AccountResult
}

// Options tunes one scheduler instance.
type Options struct {
	// MaxConcurrent bounds how many accounts run at once. Minimum 1.
	MaxConcurrent int

	// KeepResults controls whether per-account outcomes are retained on
	// the final report.
	KeepResults bool
}

// Scheduler fans the roster out over the runner while honoring the global
// deadline.
type Scheduler struct {
	runner AccountRunner
	opts   Options
	logger *zap.Logger
}

// NewScheduler builds a scheduler around the given runner.
func NewScheduler(runner AccountRunner, opts Options, logger *zap.Logger) *Scheduler {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Scheduler{
		runner: runner,
		opts:   opts,
		logger: logger.Named("fleet"),
	}
}

// Run drives every account through the runner and aggregates a RunReport.
// onResult, when non-nil, is invoked once per completed account; a panicking
// emitter is logged and never disturbs the run.
func (s *Scheduler) Run(
	ctx context.Context,
	runDeadline *timing.Deadline,
	roster []schemas.Account,
	cmd schemas.CodeCommand,
	onResult func(schemas.AccountResult),
) schemas.RunReport {
	runID := uuid.New().String()
	logger := s.logger.With(zap.String("run_id", runID))
	sw := timing.StartStopwatch()

	if len(roster) == 0 {
		logger.Warn("Run requested with an empty roster.")
		return buildReport(runID, 0, nil, false, sw.Elapsed().Seconds(), s.opts.KeepResults)
	}

	logger.Info("Fleet run starting.",
		zap.Int("accounts", len(roster)),
		zap.Int("clicks", cmd.Clicks),
		zap.Int("max_concurrent", s.opts.MaxConcurrent),
	)

	sem := semaphore.NewWeighted(int64(s.opts.MaxConcurrent))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		results  []schemas.AccountResult
		timedOut bool
	)

	for _, account := range roster {
		// Admission gate: an expired run abandons the rest of the roster
		// without producing outcomes for it.
		if runDeadline.Expired() {
			logger.Warn("Run deadline expired before admission; abandoning remaining accounts.",
				zap.String("email", account.Email))
			mu.Lock()
			timedOut = true
			mu.Unlock()
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			logger.Warn("Admission interrupted.", zap.Error(err))
			mu.Lock()
			timedOut = true
			mu.Unlock()
			break
		}

		// The wait for a slot may have consumed the remaining budget.
		if runDeadline.Expired() {
			sem.Release(1)
			logger.Warn("Run deadline expired while waiting for a slot.",
				zap.String("email", account.Email))
			mu.Lock()
			timedOut = true
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(account schemas.Account) {
			defer wg.Done()
			defer sem.Release(1)

			result := s.runGuarded(ctx, runDeadline, account, cmd, logger)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()

			s.emitGuarded(onResult, result, logger)
		}(account)
	}

	wg.Wait()

	report := buildReport(runID, len(roster), results, timedOut, sw.Elapsed().Seconds(), s.opts.KeepResults)

	logger.Info("Fleet run finished.",
		zap.Int("processed", report.ProcessedAccounts),
		zap.Int("successful", report.SuccessfulAccounts),
		zap.Bool("timed_out", report.TimedOut),
		zap.Float64("duration_s", report.TotalDurationSeconds),
	)
	return report
}

// runGuarded converts a runner panic into a failed outcome so one broken
// account cannot take the scheduler down.
func (s *Scheduler) runGuarded(
	ctx context.Context,
	runDeadline *timing.Deadline,
	account schemas.Account,
	cmd schemas.CodeCommand,
	logger *zap.Logger,
) (result schemas.AccountResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Account runner panicked.",
				zap.String("email", account.Email),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
			result = schemas.BuildAccountResult(account.Email, nil, cmd.Clicks, 0,
				fmt.Sprintf("panic: %v", r))
		}
	}()
	return s.runner.RunAccount(ctx, runDeadline, account, cmd)
}

// emitGuarded delivers a result to the emitter, absorbing emitter panics.
func (s *Scheduler) emitGuarded(onResult func(schemas.AccountResult), result schemas.AccountResult, logger *zap.Logger) {
	if onResult == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Result emitter panicked.",
				zap.String("email", result.Email),
				zap.Any("panic", r),
			)
		}
	}()
	onResult(result)
}
