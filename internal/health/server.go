// File: internal/health/server.go

// Package health serves a minimal liveness endpoint so supervisors can
// probe a long-running bot process.
package health

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.uber.org/zap"
)

// Server exposes GET /healthz.
type Server struct {
	h       *server.Hertz
	logger  *zap.Logger
	started time.Time
}

// NewServer binds the endpoint to addr. Call Run to start serving.
func NewServer(addr string, logger *zap.Logger) *Server {
	h := server.Default(server.WithHostPorts(addr))
	s := &Server{
		h:       h,
		logger:  logger.Named("health"),
		started: time.Now(),
	}

	h.GET("/healthz", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{
			"status":         "ok",
			"uptime_seconds": int64(time.Since(s.started).Seconds()),
		})
	})
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.h.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Health server shutdown reported an error.", zap.Error(err))
		}
	}()

	s.logger.Info("Health endpoint listening.")
	s.h.Spin()
}
