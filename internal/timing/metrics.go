// File: internal/timing/metrics.go
package timing

import "time"

// Metrics accumulates per-phase durations for one account workflow.
// Not safe for concurrent use; each workflow owns its own instance.
type Metrics struct {
	Login      time.Duration
	Navigation time.Duration
	Submits    time.Duration
}

// Total returns the summed duration of all recorded phases.
func (m *Metrics) Total() time.Duration {
	return m.Login + m.Navigation + m.Submits
}

// Stopwatch measures a single phase.
type Stopwatch struct {
	start time.Time
}

// StartStopwatch begins timing at the current instant.
func StartStopwatch() Stopwatch {
	return Stopwatch{start: time.Now()}
}

// Elapsed returns the time since the stopwatch started.
func (s Stopwatch) Elapsed() time.Duration {
	return time.Since(s.start)
}
