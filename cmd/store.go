// File: cmd/store.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/avelaine/kzfleet/internal/accounts"
	"github.com/avelaine/kzfleet/internal/config"
)

// newStore opens the roster backend named by the configuration.
func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (accounts.Store, error) {
	switch cfg.Accounts.Backend {
	case "file":
		return accounts.NewFileStore(cfg.Accounts.FilePath, logger)
	case "postgres":
		return accounts.NewPostgresStore(ctx, cfg.Accounts.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("unknown accounts backend %q", cfg.Accounts.Backend)
	}
}
