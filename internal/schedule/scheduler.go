package schedule

import (
	"time"

	"github.com/rs/zerolog"
)

// Scheduler invokes a callback once per calendar day at local midnight.
//
// The deadline is recomputed from the current time each cycle rather than
// accumulating a fixed interval, so clock adjustments or missed wake-ups
// self-correct. Stop cancels an in-progress wait promptly.
type Scheduler struct {
	run      func()
	logger   zerolog.Logger
	stopChan chan struct{}
	doneChan chan struct{}
	now      func() time.Time
}

// New creates a daily scheduler around the given callback.
func New(run func(), logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		run:      run,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start() {
	go s.loop()
	s.logger.Info().Msg("Daily scheduler started")
}

// Stop cancels the scheduler, interrupting any pending wait.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.doneChan
	s.logger.Info().Msg("Daily scheduler stopped")
}

func (s *Scheduler) loop() {
	defer close(s.doneChan)

	for {
		next := nextMidnight(s.now())
		wait := next.Sub(s.now())
		// A deadline in the past means run immediately.
		if wait < 0 {
			wait = 0
		}

		s.logger.Info().
			Time("next_run", next).
			Dur("wait", wait).
			Msg("Scheduled next daily run")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			s.run()
		case <-s.stopChan:
			timer.Stop()
			return
		}
	}
}

// nextMidnight returns the first local midnight strictly after now.
func nextMidnight(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !midnight.After(now) {
		midnight = midnight.AddDate(0, 0, 1)
	}
	return midnight
}
