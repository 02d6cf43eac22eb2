// File: internal/timing/deadline.go

// Package timing implements the cooperative deadline model used by the fleet
// runner. Deadlines are checked at step boundaries rather than enforced by
// interruption, so a slow browser action can overshoot its budget; the next
// check then stops the workflow.
package timing

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrDeadlineExceeded is returned by Check once a budget is spent.
// Callers match it with errors.Is.
var ErrDeadlineExceeded = errors.New("deadline exceeded")

// Deadline tracks a wall-clock budget from a fixed start instant.
// All methods are safe for concurrent use.
type Deadline struct {
	mu        sync.Mutex
	start     time.Time
	budget    time.Duration
	cancelled bool
}

// NewDeadline starts a budget clock at the current instant.
func NewDeadline(budget time.Duration) *Deadline {
	return &Deadline{start: time.Now(), budget: budget}
}

// Cancel disarms the deadline. A cancelled deadline never reports expiry,
// regardless of elapsed time.
func (d *Deadline) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelled = true
}

// Expired reports whether the budget has been spent.
func (d *Deadline) Expired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.cancelled && time.Since(d.start) >= d.budget
}

// Remaining returns the unspent part of the budget, clamped at zero.
// A cancelled deadline reports its full budget as remaining.
func (d *Deadline) Remaining() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancelled {
		return d.budget
	}
	left := d.budget - time.Since(d.start)
	if left < 0 {
		return 0
	}
	return left
}

// Elapsed returns the time since the deadline was armed.
func (d *Deadline) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Since(d.start)
}

// Check returns ErrDeadlineExceeded (wrapped with the given label) once the
// budget is spent, nil otherwise.
func (d *Deadline) Check(label string) error {
	if d.Expired() {
		return fmt.Errorf("%s after %s: %w", label, d.Elapsed().Round(time.Millisecond), ErrDeadlineExceeded)
	}
	return nil
}

// AccountDeadline layers a per-account budget on top of the run-wide one.
// The run deadline always wins: if it has expired, the account deadline
// reports expiry no matter how much of its own budget is left.
type AccountDeadline struct {
	run   *Deadline
	local *Deadline
}

// NewAccountDeadline arms a per-account budget under the given run deadline.
// The run deadline may be nil, in which case only the local budget applies.
func NewAccountDeadline(run *Deadline, budget time.Duration) *AccountDeadline {
	return &AccountDeadline{run: run, local: NewDeadline(budget)}
}

// Expired reports whether either the run or the account budget is spent.
func (a *AccountDeadline) Expired() bool {
	if a.run != nil && a.run.Expired() {
		return true
	}
	return a.local.Expired()
}

// Remaining returns the smaller of the run and account remainders.
func (a *AccountDeadline) Remaining() time.Duration {
	left := a.local.Remaining()
	if a.run != nil {
		if runLeft := a.run.Remaining(); runLeft < left {
			left = runLeft
		}
	}
	return left
}

// Elapsed returns the time spent against the account budget.
func (a *AccountDeadline) Elapsed() time.Duration {
	return a.local.Elapsed()
}

// Check returns ErrDeadlineExceeded once either budget is spent.
func (a *AccountDeadline) Check(label string) error {
	if a.run != nil {
		if err := a.run.Check(label); err != nil {
			return err
		}
	}
	return a.local.Check(label)
}
