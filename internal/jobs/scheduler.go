package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

// RefreshFunc runs one resolution pass.
type RefreshFunc func(ctx context.Context) error

type SchedulerOptions struct {
	// Schedule is a cron spec with optional seconds field, or a descriptor
	// such as "@every 5m". Empty disables periodic runs.
	Schedule string
	// OnStart runs one pass as soon as the scheduler starts.
	OnStart bool
	Logger  *slog.Logger
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler drives RefreshFunc from a cron schedule. A tick that fires while
// the previous pass is still running is skipped.
type Scheduler struct {
	refresh  RefreshFunc
	schedule cron.Schedule
	onStart  bool
	logger   *slog.Logger
	job      cron.Job

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	initial sync.WaitGroup
	started bool
	ctx     context.Context
}

func NewScheduler(refresh RefreshFunc, opts SchedulerOptions) (*Scheduler, error) {
	if refresh == nil {
		return nil, fmt.Errorf("scheduler requires a refresh function")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		refresh: refresh,
		onStart: opts.OnStart,
		logger:  logger,
	}
	if spec := strings.TrimSpace(opts.Schedule); spec != "" {
		schedule, err := scheduleParser.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("parse refresh schedule %q: %w", spec, err)
		}
		s.schedule = schedule
	}

	cl := cronLogger{logger: logger}
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.runOnce))
	return s, nil
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := s.refresh(ctx); err != nil {
		s.logger.Warn("scheduled refresh failed", "error", err)
	}
}

func (s *Scheduler) Start(parent context.Context) error {
	if s == nil {
		return fmt.Errorf("scheduler is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(parent)
	s.ctx = ctx
	s.cancel = cancel
	s.cron = cron.New(cron.WithParser(scheduleParser), cron.WithLogger(cronLogger{logger: s.logger}))
	if s.schedule != nil {
		s.cron.Schedule(s.schedule, s.job)
	}
	s.cron.Start()
	s.started = true

	if s.onStart {
		s.initial.Add(1)
		go func() {
			defer s.initial.Done()
			s.job.Run()
		}()
	}
	s.logger.Info("refresh scheduler started", "scheduled", s.schedule != nil, "on_start", s.onStart)
	return nil
}

// Stop cancels the scheduler context and waits for running jobs to return.
// A RefreshFunc that detaches its work from ctx may leave that work running.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	cronDone := c.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.initial.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.started = false
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()
	return nil
}

// cronLogger adapts slog to cron.Logger. cron's info chatter is demoted to
// debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
