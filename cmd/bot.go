// File: cmd/bot.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/avelaine/kzfleet/internal/bot"
	"github.com/avelaine/kzfleet/internal/fleet"
	"github.com/avelaine/kzfleet/internal/health"
	"github.com/avelaine/kzfleet/internal/observability"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Serve the Telegram control surface for the fleet.",
	Long: `Start the long-running Telegram bot. Operators trigger fleet runs with
/code and manage the roster with admin-gated commands. An optional HTTP
health endpoint can be enabled for supervisors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Bot.Token == "" {
			return fmt.Errorf("bot.token is not set (flag --token or env KZFLEET_BOT_TOKEN)")
		}

		logger := observability.GetLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := newStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		service := fleet.NewService(cfg, store, logger)

		b, err := bot.New(cfg.Bot.Token, cfg.Bot.AdminCode, cfg.Bot.Debug, service, logger)
		if err != nil {
			return err
		}

		if cfg.Health.Enabled {
			go health.NewServer(cfg.Health.Addr, logger).Run(ctx)
		}

		logger.Info("Bot serving.", zap.Bool("health", cfg.Health.Enabled))
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("Bot stopped.")
		return nil
	},
}

func init() {
	botCmd.Flags().String("token", "", "Telegram bot token")
	botCmd.Flags().String("admin-code", "", "code gating roster management commands")
	botCmd.Flags().Bool("health", false, "serve the HTTP health endpoint")

	_ = viper.BindPFlag("bot.token", botCmd.Flags().Lookup("token"))
	_ = viper.BindPFlag("bot.admin_code", botCmd.Flags().Lookup("admin-code"))
	_ = viper.BindPFlag("health.enabled", botCmd.Flags().Lookup("health"))

	rootCmd.AddCommand(botCmd)
}
