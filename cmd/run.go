// File: cmd/run.go
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/avelaine/kzfleet/internal/fleet"
	"github.com/avelaine/kzfleet/internal/observability"
	"github.com/avelaine/kzfleet/internal/schemas"
)

var runCmd = &cobra.Command{
	Use:   "run <repeat>f <code>",
	Short: "Run one fleet pass: every account logs in and submits the code.",
	Long: `Run one fleet pass over all stored accounts.

The first argument is the repeat count with a trailing 'f', the second is
the order code, mirroring the chat syntax:

  kzfleet run 2f j2f4ffjb`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		codeCmd, err := schemas.ParseCodeCommand(args[0] + " " + args[1])
		if err != nil {
			return err
		}

		logger := observability.GetLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := newStore(ctx, cfg, logger)
		if err != nil {
			return err
		}

		service := fleet.NewService(cfg, store, logger)
		report, err := service.RunFleet(ctx, codeCmd, func(result schemas.AccountResult) {
			printAccountResult(result)
		})
		if err != nil {
			return err
		}

		printReport(report)
		if err := reportError(report); err != nil {
			logger.Warn("Run finished with failures.",
				zap.Int("successful", report.SuccessfulAccounts),
				zap.Int("processed", report.ProcessedAccounts),
			)
			return err
		}
		return nil
	},
}

// reportError maps a finished run onto the command's exit status. An error
// is returned rather than calling os.Exit so deferred log flushing still
// runs.
func reportError(report schemas.RunReport) error {
	if report.TimedOut {
		return fmt.Errorf("run timed out: %d/%d accounts processed",
			report.ProcessedAccounts, report.TotalAccounts)
	}
	if report.SuccessfulAccounts < report.ProcessedAccounts {
		return fmt.Errorf("run finished with failures: %d/%d accounts successful",
			report.SuccessfulAccounts, report.ProcessedAccounts)
	}
	return nil
}

func printAccountResult(r schemas.AccountResult) {
	mark := "FAIL"
	switch {
	case r.Success:
		mark = "OK"
	case r.Partial():
		mark = "PARTIAL"
	}
	fmt.Printf("[%s] %s  %d/%d submissions succeeded (%.1fs)\n",
		mark, r.Email, r.SuccessfulSubmits, r.TotalSubmits, r.DurationSeconds)
	if r.Error != "" {
		fmt.Printf("       error: %s\n", r.Error)
	}
}

func printReport(report schemas.RunReport) {
	fmt.Println("----------------------------------------")
	fmt.Printf("run %s\n", report.RunID)
	fmt.Printf("accounts: %d total, %d processed, %d successful\n",
		report.TotalAccounts, report.ProcessedAccounts, report.SuccessfulAccounts)
	fmt.Printf("duration: %.1fs  timed out: %s\n",
		report.TotalDurationSeconds, strconv.FormatBool(report.TimedOut))
}

func init() {
	runCmd.Flags().Int("max-concurrent", 0, "maximum accounts processed in parallel")
	runCmd.Flags().Bool("headless", true, "run the browser headless")
	runCmd.Flags().Duration("run-timeout", 0, "budget for the whole run")
	runCmd.Flags().Duration("account-timeout", 0, "budget per account")

	_ = viper.BindPFlag("fleet.max_concurrent", runCmd.Flags().Lookup("max-concurrent"))
	_ = viper.BindPFlag("browser.headless", runCmd.Flags().Lookup("headless"))
	_ = viper.BindPFlag("timeouts.run", runCmd.Flags().Lookup("run-timeout"))
	_ = viper.BindPFlag("timeouts.account", runCmd.Flags().Lookup("account-timeout"))

	rootCmd.AddCommand(runCmd)
}
