package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"signflow/internal/config"
)

const sweepTimeout = 5 * time.Minute

var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(registerScheduler),
)

// Sweeper expires pending requests whose deadline has passed.
type Sweeper interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// Scheduler runs the periodic expiry sweep.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	logger  *zap.Logger
}

func NewScheduler(cfg *config.Config, sweeper Sweeper, logger *zap.Logger) (*Scheduler, error) {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		sweeper: sweeper,
		spec:    cfg.Signing.ExpirySweep,
		logger:  logger,
	}

	if s.spec == "" {
		logger.Info("Expiry sweep disabled")
		return s, nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.Sweep); err != nil {
		return nil, fmt.Errorf("failed to parse expiry sweep schedule %q: %w", s.spec, err)
	}
	return s, nil
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start() {
	if len(s.cron.Entries()) == 0 {
		return
	}
	s.cron.Start()
	s.logger.Info("Expiry sweep scheduled",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.cron.Entries()[0].Next),
	)
}

// Stop halts the scheduler and waits for a running sweep.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep runs one expiry pass.
func (s *Scheduler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.sweeper.ExpireOverdue(ctx)
	if err != nil {
		s.logger.Warn("Expiry sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("Expiry sweep finished",
		zap.Int("expired", n),
		zap.Duration("duration", time.Since(start)),
	)
}

func registerScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
}
