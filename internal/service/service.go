package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"token-signal-watch/internal/alerting"
	"token-signal-watch/internal/analytics"
	"token-signal-watch/internal/config"
	"token-signal-watch/internal/ingest"
	"token-signal-watch/internal/scheduler"
	"token-signal-watch/internal/storage"
)

// Service orchestrates the pipeline: one cycle ingests fresh observations
// from every source, then runs the analytics pass and dispatches alerts
// for detected opportunities.
type Service struct {
	scheduler   *scheduler.Scheduler
	coordinator *ingest.Coordinator
	engine      *analytics.Engine
	notifier    alerting.Notifier
	tokens      []config.TokenConfig
	channels    []string
	alertsOn    bool
	locker      storage.AdvisoryLocker
	lockKey     int64
	logger      zerolog.Logger
}

// New constructs the pipeline service.
func New(cfg *config.Config, sched *scheduler.Scheduler, coordinator *ingest.Coordinator, engine *analytics.Engine, notifier alerting.Notifier, locker storage.AdvisoryLocker, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:   sched,
		coordinator: coordinator,
		engine:      engine,
		notifier:    notifier,
		tokens:      cfg.Tokens,
		channels:    cfg.Alerting.Channels,
		alertsOn:    cfg.Alerting.Enabled,
		locker:      locker,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		logger:      logger.With().Str("component", "service").Logger(),
	}
}

// Run begins the scheduled pipeline loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle executes one full ingest + analytics cycle.
func (s *Service) ProcessCycle(ctx context.Context, cycleStart time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("cycle", cycleStart).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeCycle(ctx, cycleStart)
}

func (s *Service) executeCycle(ctx context.Context, cycleStart time.Time) error {
	outcomes, err := s.coordinator.RunCycle(ctx, s.tokens)
	if err != nil {
		// Persistence unreachable at cycle start; the whole cycle aborts
		// and the next scheduled run retries.
		return fmt.Errorf("ingestion cycle: %w", err)
	}

	succeeded, failed := 0, 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	s.logger.Info().Time("cycle", cycleStart).
		Int("fetches_ok", succeeded).
		Int("fetches_failed", failed).
		Msg("ingestion cycle settled")

	results := s.engine.RunPass(ctx, s.tokens)
	for _, result := range results {
		if result.IndicatorRows > 0 || len(result.Opportunities) > 0 || len(result.Anomalies) > 0 {
			s.logger.Info().Str("token", result.Token).
				Int("indicator_rows", result.IndicatorRows).
				Int("opportunities", len(result.Opportunities)).
				Int("anomalies", len(result.Anomalies)).
				Msg("analytics pass complete")
		}
		s.dispatchAlerts(ctx, cycleStart, result)
	}

	return nil
}

func (s *Service) dispatchAlerts(ctx context.Context, cycleStart time.Time, result analytics.PassResult) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	for _, opp := range result.Opportunities {
		note := alerting.Notification{
			Token:       result.Token,
			Timestamp:   cycleStart,
			BuySource:   opp.BuySource,
			SellSource:  opp.SellSource,
			BuyPrice:    opp.BuyPrice,
			SellPrice:   opp.SellPrice,
			PercentDiff: opp.PercentDiff,
			Channels:    s.channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("token", result.Token).Msg("failed to dispatch alert")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
