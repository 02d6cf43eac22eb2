// File: internal/bot/format.go
package bot

import (
	"fmt"
	"strings"

	"github.com/avelaine/kzfleet/internal/schemas"
)

// formatAccountResult renders one account outcome for chat. Labels are in
// French to match the operator audience of the target site.
func formatAccountResult(r schemas.AccountResult) string {
	var b strings.Builder

	switch {
	case r.Success:
		fmt.Fprintf(&b, "✅ SUCCÈS — %s\n", r.Email)
	case r.Partial():
		fmt.Fprintf(&b, "⚠️ PARTIEL — %s\n", r.Email)
	default:
		fmt.Fprintf(&b, "❌ ÉCHEC — %s\n", r.Email)
	}

	fmt.Fprintf(&b, "Soumissions: %d/%d réussies", r.SuccessfulSubmits, r.TotalSubmits)
	if r.FailedSubmits > 0 {
		fmt.Fprintf(&b, " (%d échouées)", r.FailedSubmits)
	}
	fmt.Fprintf(&b, "\nDurée: %.1fs", r.DurationSeconds)

	if r.Error != "" {
		fmt.Fprintf(&b, "\nErreur: %s", r.Error)
	}
	return b.String()
}

// formatRunReport renders the end-of-run summary.
func formatRunReport(report schemas.RunReport) string {
	var b strings.Builder
	b.WriteString("📊 Rapport final\n")
	fmt.Fprintf(&b, "Comptes: %d au total, %d traités\n", report.TotalAccounts, report.ProcessedAccounts)
	fmt.Fprintf(&b, "Réussis: %d\n", report.SuccessfulAccounts)
	fmt.Fprintf(&b, "Durée totale: %.1fs", report.TotalDurationSeconds)
	if report.TimedOut {
		b.WriteString("\n⏱ Limite de temps globale atteinte — des comptes ont été abandonnés.")
	}
	return b.String()
}
