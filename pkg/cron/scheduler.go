package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/latoulicious/kenny/pkg/logging"
	"github.com/robfig/cron/v3"
)

// Scheduler runs named background jobs on fixed intervals
type Scheduler struct {
	cron    *cron.Cron
	logger  logging.Logger
	mutex   sync.RWMutex
	jobs    map[string]*job
	stopped bool
}

type job struct {
	entry     cron.EntryID
	fn        func(ctx context.Context) error
	interval  time.Duration
	mutex     sync.Mutex
	isRunning bool
}

// NewScheduler creates and starts a scheduler
func NewScheduler(logger logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Scheduler{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*job),
	}
	s.cron.Start()
	return s
}

// Every schedules fn under name every interval. A run is skipped while the previous one
// is still in progress. Scheduling an existing name replaces it.
func (s *Scheduler) Every(interval time.Duration, name string, fn func(ctx context.Context) error) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s for job %s", interval, name)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.stopped {
		return fmt.Errorf("scheduler stopped")
	}
	if old, ok := s.jobs[name]; ok {
		s.cron.Remove(old.entry)
	}

	j := &job{fn: fn, interval: interval}
	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() { s.run(name, j) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	j.entry = entryID
	s.jobs[name] = j

	s.logger.Info("Scheduled job", logging.String("job", name), logging.Duration("interval", interval))
	return nil
}

// RunNow runs the named job immediately, subject to the same overlap guard
func (s *Scheduler) RunNow(name string) bool {
	s.mutex.RLock()
	j, ok := s.jobs[name]
	s.mutex.RUnlock()
	if !ok {
		return false
	}
	s.run(name, j)
	return true
}

func (s *Scheduler) run(name string, j *job) {
	j.mutex.Lock()
	if j.isRunning {
		j.mutex.Unlock()
		s.logger.Debug("Job already in progress, skipping", logging.String("job", name))
		return
	}
	j.isRunning = true
	j.mutex.Unlock()

	defer func() {
		j.mutex.Lock()
		j.isRunning = false
		j.mutex.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	if err := j.fn(ctx); err != nil {
		s.logger.Warn("Job failed", logging.String("job", name), logging.Err(err))
	}
}

// NextRun returns when the named job fires next, or the zero time if it is unknown
func (s *Scheduler) NextRun(name string) time.Time {
	s.mutex.RLock()
	j, ok := s.jobs[name]
	s.mutex.RUnlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(j.entry).Next
}

// IsRunning reports whether the named job is in progress
func (s *Scheduler) IsRunning(name string) bool {
	s.mutex.RLock()
	j, ok := s.jobs[name]
	s.mutex.RUnlock()
	if !ok {
		return false
	}
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.isRunning
}

// Stop halts scheduling and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	if s.stopped {
		s.mutex.Unlock()
		return
	}
	s.stopped = true
	s.mutex.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}
