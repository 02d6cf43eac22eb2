// File: internal/fleet/report.go

package fleet

import "github.com/avelaine/kzfleet/internal/schemas"

// buildReport folds per-account outcomes into the final RunReport. Results
// are attached only when keepResults is set; the counters are always
// computed.
func buildReport(
	runID string,
	totalAccounts int,
	results []schemas.AccountResult,
	timedOut bool,
	durationSeconds float64,
	keepResults bool,
) schemas.RunReport {
	report := schemas.RunReport{
		RunID:                runID,
		TotalAccounts:        totalAccounts,
		ProcessedAccounts:    len(results),
		TimedOut:             timedOut,
		TotalDurationSeconds: durationSeconds,
	}
	for _, r := range results {
		if r.Success {
			report.SuccessfulAccounts++
		}
	}
	if keepResults {
		report.AccountResults = results
	}
	return report
}
