// Package scheduler runs periodic ledger maintenance.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultCloseTimeout bounds one scheduled period close.
const DefaultCloseTimeout = 5 * time.Minute

// PeriodCloser strikes a new period for every account.
type PeriodCloser interface {
	CloseAllPeriods(ctx context.Context) (int, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron    *cron.Cron
	closer  PeriodCloser
	logger  zerolog.Logger
	timeout time.Duration
}

// New creates a scheduler that closes periods on schedule, a standard five-field
// cron expression or a descriptor such as "@monthly".
func New(schedule string, closer PeriodCloser, logger zerolog.Logger) (*Scheduler, error) {
	logger = logger.With().Str("component", "scheduler").Logger()

	s := &Scheduler{
		closer:  closer,
		logger:  logger,
		timeout: DefaultCloseTimeout,
	}

	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLogger{logger}),
		cron.SkipIfStillRunning(cronLogger{logger}),
	))

	if _, err := s.cron.AddFunc(schedule, s.closePeriods); err != nil {
		return nil, fmt.Errorf("invalid period close schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start starts the scheduler in the background.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for a running job, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info().Msg("stopping scheduler")

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("scheduled job still running at shutdown")
	}
}

func (s *Scheduler) closePeriods() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info().Msg("closing periods")

	n, err := s.closer.CloseAllPeriods(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("closed", n).Msg("period close finished with errors")
		return
	}

	s.logger.Info().Int("closed", n).Dur("duration", time.Since(start)).Msg("periods closed")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
