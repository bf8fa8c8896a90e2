package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-dispatch/internal/config"
	"github.com/spec-kit/incident-dispatch/internal/service"
)

// Scheduler runs the periodic jobs: the housekeeping sweep that reclaims
// stale assignments and escalates overdue tickets, and the daily reset that
// archives the whole board at midnight.
type Scheduler struct {
	cron         *cron.Cron
	distribution *service.DistributionService
	ingest       *service.IngestService
	logger       *zap.Logger
	cfg          config.SchedulerConfig
}

// NewScheduler builds the scheduler; Start must be called to run it.
func NewScheduler(cfg config.SchedulerConfig, distribution *service.DistributionService, ingest *service.IngestService, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:         cron.New(cron.WithLocation(time.Local)),
		distribution: distribution,
		ingest:       ingest,
		logger:       logger,
		cfg:          cfg,
	}
}

// Start registers the jobs and launches the cron loop.
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Info("scheduler disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.HousekeepingSpec, s.runHousekeeping); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.DailyResetSpec, s.runDailyReset); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("housekeeping", s.cfg.HousekeepingSpec),
		zap.String("daily_reset", s.cfg.DailyResetSpec),
	)
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runHousekeeping() {
	if _, err := s.distribution.RunHousekeeping(context.Background()); err != nil {
		s.logger.Error("housekeeping sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) runDailyReset() {
	archived, err := s.ingest.DailyReset(context.Background())
	if err != nil {
		s.logger.Error("daily reset failed", zap.Error(err))
		return
	}
	s.logger.Info("daily reset job finished", zap.Int("archived", archived))
}
