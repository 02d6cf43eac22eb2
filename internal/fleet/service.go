// File: internal/fleet/service.go
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avelaine/kzfleet/internal/accounts"
	"github.com/avelaine/kzfleet/internal/browser"
	"github.com/avelaine/kzfleet/internal/config"
	"github.com/avelaine/kzfleet/internal/popup"
	"github.com/avelaine/kzfleet/internal/schemas"
	"github.com/avelaine/kzfleet/internal/screenshot"
	"github.com/avelaine/kzfleet/internal/timing"
)

// ErrRunInProgress is returned when a second run is requested while one is
// already active. The browser process cannot be shared across runs.
var ErrRunInProgress = errors.New("a fleet run is already in progress")

// Service ties the roster, the browser lifecycle, and the scheduler into a
// single entry point. One browser process is launched per run and torn down
// when the run ends.
type Service struct {
	cfg    *config.Config
	store  accounts.Store
	logger *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewService builds the run entry point.
func NewService(cfg *config.Config, store accounts.Store, logger *zap.Logger) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		logger: logger.Named("service"),
	}
}

// RunFleet executes one full fleet run against every stored account.
// onResult may be nil.
func (s *Service) RunFleet(ctx context.Context, cmd schemas.CodeCommand, onResult func(schemas.AccountResult)) (schemas.RunReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return schemas.RunReport{}, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	roster, err := s.store.List(ctx)
	if err != nil {
		return schemas.RunReport{}, fmt.Errorf("loading roster: %w", err)
	}

	var saver *screenshot.Saver
	if s.cfg.Fleet.ScreenshotOnErr {
		saver, err = screenshot.NewSaver(s.cfg.Fleet.ScreenshotDir, s.logger)
		if err != nil {
			return schemas.RunReport{}, err
		}
		if err := saver.Clear(); err != nil {
			s.logger.Warn("Could not clear old screenshots.", zap.Error(err))
		}
	}

	manager, err := browser.NewManager(ctx, s.cfg.Browser, s.logger)
	if err != nil {
		return schemas.RunReport{}, fmt.Errorf("starting browser: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Browser shutdown reported an error.", zap.Error(err))
		}
	}()

	classifier := popup.NewClassifier(s.cfg.Target.SuccessPatterns, s.cfg.Target.ErrorPatterns)
	runner := NewBrowserRunner(manager, s.cfg, classifier, saver, s.logger)
	scheduler := NewScheduler(runner, Options{
		MaxConcurrent: s.cfg.Fleet.MaxConcurrent,
		KeepResults:   s.cfg.Fleet.KeepResults,
	}, s.logger)

	runDeadline := timing.NewDeadline(s.cfg.Timeouts.Run)
	report := scheduler.Run(ctx, runDeadline, roster, cmd, onResult)
	return report, nil
}

// Store exposes the roster for control surfaces that manage accounts.
func (s *Service) Store() accounts.Store {
	return s.store
}
