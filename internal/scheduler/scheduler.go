package scheduler

import (
	"context"
	"time"

	"github.com/example/matchbot/internal/logger"
	"github.com/go-co-op/gocron"
)

// DefaultSweepInterval is how often expired wizard sessions are evicted
const DefaultSweepInterval = time.Minute

// Sweeper removes expired state and reports how much was removed
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	interval  time.Duration
	log       *logger.Logger
}

// New creates a new scheduler instance
func New(sweeper Sweeper, interval time.Duration, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sweeper:   sweeper,
		interval:  interval,
		log:       log.With("component", "scheduler"),
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.sweepSessions); err != nil {
		return err
	}
	// non-blocking
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// sweepSessions evicts wizard sessions idle for longer than their TTL
func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	removed, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.log.Error("session sweep failed", "error", err)
		return
	}
	if removed > 0 {
		s.log.Info("expired wizard sessions removed", "count", removed)
	}
}

// RunNow performs a sweep immediately
func (s *Scheduler) RunNow() {
	s.sweepSessions()
}
