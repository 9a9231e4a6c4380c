// Package scheduler is the in-process delayed task facility. Jobs are keyed;
// scheduling a key that is already pending replaces the earlier fire, so a
// key never has more than one pending run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"walletlens/internal/log"
)

var (
	ErrStopped   = errors.New("scheduler stopped")
	ErrNoHandler = errors.New("no handler registered for job kind")
)

// Job is the payload handed to a handler when its key fires
type Job struct {
	Kind  string
	RefID int64
}

// Handler executes a job. Returning an error built with RetryAfter asks the
// scheduler to run the same job again later.
type Handler func(ctx context.Context, job Job) error

// Config configures the scheduler
type Config struct {
	// Timeout bounds a single handler run
	Timeout time.Duration
	// MaxRetries caps consecutive RetryAfter reschedules of one key
	MaxRetries int
	Logger     *log.Logger
}

func DefaultConfig() Config {
	return Config{
		Timeout:    time.Minute,
		MaxRetries: 10,
	}
}

// PendingJob describes a scheduled fire
type PendingJob struct {
	Key      string
	Job      Job
	At       time.Time
	Interval time.Duration // zero for one-shot jobs
}

type entry struct {
	gen      uint64
	timer    *time.Timer
	job      Job
	at       time.Time
	interval time.Duration
	attempt  int
}

// Scheduler runs keyed jobs after a delay or on a fixed interval
type Scheduler struct {
	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]*entry
	gen      uint64
	stopped  bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      Config
	logger   *log.Logger
}

func New(cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		handlers: make(map[string]Handler),
		pending:  make(map[string]*entry),
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		logger:   logger.WithComponent(log.ComponentScheduler),
	}
}

// Handle registers the handler for a job kind, replacing any previous one
func (s *Scheduler) Handle(kind string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = h
}

// ScheduleOnce runs job after delay. A non-positive delay fires immediately.
// Any pending fire under the same key is cancelled first.
func (s *Scheduler) ScheduleOnce(key string, delay time.Duration, job Job) error {
	return s.schedule(key, delay, 0, job, 0)
}

// SchedulePeriodic runs job every interval, first after one interval.
func (s *Scheduler) SchedulePeriodic(key string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %v for %s", interval, key)
	}
	return s.schedule(key, interval, interval, job, 0)
}

func (s *Scheduler) schedule(key string, delay, interval time.Duration, job Job, attempt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if _, ok := s.handlers[job.Kind]; !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, job.Kind)
	}
	if delay < 0 {
		delay = 0
	}

	if prev, ok := s.pending[key]; ok {
		prev.timer.Stop()
	}

	s.gen++
	e := &entry{
		gen:      s.gen,
		job:      job,
		at:       time.Now().Add(delay),
		interval: interval,
		attempt:  attempt,
	}
	gen := e.gen
	e.timer = time.AfterFunc(delay, func() { s.fire(key, gen) })
	s.pending[key] = e

	s.logger.Debug("Job scheduled", log.FieldJobKey, key, "delay", delay.String(), "periodic", interval > 0)
	return nil
}

// Cancel drops the pending fire for key. It reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[key]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.pending, key)
	return true
}

// Pending lists scheduled fires ordered by fire time
func (s *Scheduler) Pending() []PendingJob {
	s.mu.Lock()
	out := make([]PendingJob, 0, len(s.pending))
	for k, e := range s.pending {
		out = append(out, PendingJob{Key: k, Job: e.job, At: e.at, Interval: e.interval})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Key < out[j].Key
		}
		return out[i].At.Before(out[j].At)
	})
	return out
}

func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// RunNow executes job synchronously on the caller's goroutine
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.mu.Lock()
	h, ok := s.handlers[job.Kind]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, job.Kind)
	}
	return s.run(ctx, "now:"+job.Kind, h, job)
}

func (s *Scheduler) fire(key string, gen uint64) {
	s.mu.Lock()
	e, ok := s.pending[key]
	if s.stopped || !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	h := s.handlers[e.job.Kind]
	if e.interval > 0 {
		e.at = time.Now().Add(e.interval)
		e.timer.Reset(e.interval)
	} else {
		delete(s.pending, key)
	}
	job, attempt := e.job, e.attempt
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	err := s.run(s.ctx, key, h, job)

	var retry *RetryError
	if !errors.As(err, &retry) {
		return
	}
	if e.interval > 0 {
		// the next periodic tick is the retry
		return
	}
	if attempt+1 > s.cfg.MaxRetries {
		s.logger.Warn("Job retry limit reached", log.FieldJobKey, key, "attempts", attempt+1, "reason", retry.Reason)
		return
	}

	s.mu.Lock()
	_, replaced := s.pending[key]
	s.mu.Unlock()
	if replaced {
		return
	}
	if err := s.schedule(key, retry.Delay, 0, job, attempt+1); err != nil && !errors.Is(err, ErrStopped) {
		s.logger.Error("Job reschedule failed", log.FieldJobKey, key, log.FieldError, err)
	}
}

func (s *Scheduler) run(parent context.Context, key string, h Handler, job Job) (err error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", key, r)
			s.logger.Error("Job panicked", log.FieldJobKey, key, "panic", r)
		}
	}()

	start := time.Now()
	err = h(ctx, job)

	var retry *RetryError
	switch {
	case err == nil:
		s.logger.Debug("Job completed", log.FieldJobKey, key, log.FieldDuration, time.Since(start).Milliseconds())
	case errors.As(err, &retry):
		s.logger.Info("Job asked for retry", log.FieldJobKey, key, "retry_in", retry.Delay.String(), "reason", retry.Reason)
	default:
		s.logger.Error("Job failed", log.FieldJobKey, key, log.FieldError, err)
	}
	return err
}

// Stop cancels all pending fires, cancels running handlers' contexts and
// waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for k, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, k)
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
