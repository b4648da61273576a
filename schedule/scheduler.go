package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// ErrRunInProgress is returned by Trigger when another run holds the guard.
var ErrRunInProgress = errors.New("a newsletter run is already in progress")

// RunFunc is one full pipeline run.
type RunFunc func(ctx context.Context) error

// Scheduler fires RunFunc on a cron schedule and on demand. Both paths share
// one guard, so at most one run is ever in flight.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	interval time.Duration
	run      RunFunc
	tracker  *Tracker
	logger   arbor.ILogger

	runMu   sync.Mutex
	catchUp sync.WaitGroup
	mu      sync.Mutex
	entryID cron.EntryID
	running bool
}

type SchedulerOptions struct {
	// Spec is a robfig/cron expression, e.g. "@every 120h" or "0 8 */5 * *".
	Spec string
	// CatchUp runs once at Start when the durable state shows a missed interval.
	CatchUp bool
}

func NewScheduler(opts SchedulerOptions, run RunFunc, tracker *Tracker, logger arbor.ILogger) (*Scheduler, error) {
	if run == nil {
		return nil, errors.New("scheduler: run func is nil")
	}
	spec := opts.Spec
	if spec == "" {
		spec = fmt.Sprintf("@every %dh", DefaultMinDays*24)
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	s := &Scheduler{
		cron:    cron.New(),
		spec:    spec,
		run:     run,
		tracker: tracker,
		logger:  logger,
	}
	if opts.CatchUp {
		// distance between two consecutive fires of the schedule
		first := sched.Next(time.Now())
		s.interval = sched.Next(first).Sub(first)
	}
	return s, nil
}

// Trigger runs the pipeline synchronously, or returns ErrRunInProgress.
func (s *Scheduler) Trigger(ctx context.Context) error {
	if !s.runMu.TryLock() {
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()
	return s.run(ctx)
}

func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Scheduled run panicked")
		}
	}()

	err := s.Trigger(context.Background())
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn().Msg("Previous run still in flight, skipping this tick")
	case err != nil:
		s.logger.Error().Err(err).Msg("Scheduled run failed")
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	id, err := s.cron.AddFunc(s.spec, s.tick)
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entryID = id
	s.cron.Start()
	s.running = true
	s.logger.Info().Str("schedule", s.spec).Str("next_run", s.cron.Entry(id).Next.Format(time.RFC3339)).Msg("Scheduler started")

	if s.interval > 0 && s.missedInterval(time.Now()) {
		s.logger.Info().Msg("Last run is older than the schedule interval, running now")
		s.catchUp.Add(1)
		go func() {
			defer s.catchUp.Done()
			s.tick()
		}()
	}
	return nil
}

func (s *Scheduler) missedInterval(now time.Time) bool {
	if s.tracker == nil {
		return false
	}
	last, ok := s.tracker.LastRun()
	return !ok || now.Sub(last) >= s.interval
}

// Stop halts the cron loop. The returned context is done once running cron jobs
// and any catch-up run have finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.logger.Info().Msg("Scheduler stopping")

	cronDone := s.cron.Stop()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.catchUp.Wait()
		cancel()
	}()
	return ctx
}

// NextRun is zero until Start has been called.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}
