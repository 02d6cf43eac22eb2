// File: cmd/kzfleet/main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/avelaine/kzfleet/cmd"
	"github.com/avelaine/kzfleet/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer observability.Sync()

	cmd.ExecuteContext(ctx)
}
