// Package scheduler fires sync jobs on cron triggers and runs them on a
// bounded worker pool.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/apperr"
	"github.com/Havoc420didi/didi-amazon-analyst-sub000/internal/logger"
)

// Job is one named, cron-triggered unit of work.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Observer receives the outcome of every job run or skip.
type Observer interface {
	ObserveJobRun(name, outcome string, elapsed time.Duration)
}

// Outcomes reported to the Observer.
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeMisfired = "misfired"
	OutcomeSkipped  = "skipped"
)

type Options struct {
	Workers          int
	Coalesce         bool
	MisfireGraceTime time.Duration
	ShutdownTimeout  time.Duration
	Location         *time.Location
	Clock            clock.Clock
	Observer         Observer
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MisfireGraceTime <= 0 {
		o.MisfireGraceTime = 300 * time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 60 * time.Second
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Clock == nil {
		o.Clock = clock.WallClock
	}
	return o
}

// Scheduler runs at most one instance of each job. A fire that arrives
// while the job is queued replaces the queued one when coalescing; a fire
// that arrives while it runs is skipped.
type Scheduler struct {
	opts   Options
	logger logger.ZapLogger
	cron   *cron.Cron
	jobs   map[string]Job

	queue chan string

	mu       sync.Mutex
	pending  map[string]time.Time
	running  map[string]bool
	stopping bool

	ctx     context.Context
	cancel  context.CancelFunc
	workers sync.WaitGroup
	started bool
}

func New(jobs []Job, opts Options, log logger.ZapLogger) (*Scheduler, error) {
	opts = opts.withDefaults()
	s := &Scheduler{
		opts:    opts,
		logger:  log,
		jobs:    make(map[string]Job, len(jobs)),
		queue:   make(chan string, len(jobs)),
		pending: make(map[string]time.Time),
		running: make(map[string]bool),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(
		cron.WithLocation(opts.Location),
		cron.WithLogger(cronLogger{log}),
		cron.WithChain(cron.Recover(cronLogger{log})),
	)

	for _, job := range jobs {
		if _, dup := s.jobs[job.Name]; dup {
			return nil, &apperr.SchedulerError{Job: job.Name, Cause: errors.New("registered twice")}
		}
		s.jobs[job.Name] = job
		if job.Spec == "" {
			continue
		}
		name := job.Name
		if _, err := s.cron.AddFunc(job.Spec, func() { s.fire(name, s.opts.Clock.Now()) }); err != nil {
			return nil, &apperr.SchedulerError{Job: job.Name, Cause: errors.Annotatef(err, "spec %q", job.Spec)}
		}
	}
	return s, nil
}

// Start launches the worker pool and the cron triggers.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	for range s.opts.Workers {
		s.workers.Add(1)
		go s.work()
	}
	s.cron.Start()

	for _, e := range s.cron.Entries() {
		s.logger.Debug("Scheduled entry", zap.Time("next", e.Next))
	}
	s.logger.Info("Scheduler started",
		zap.Int("jobs", len(s.jobs)),
		zap.Int("workers", s.opts.Workers),
		zap.String("timezone", s.opts.Location.String()),
	)
}

// Trigger queues name to run now.
func (s *Scheduler) Trigger(name string) error {
	if _, ok := s.jobs[name]; !ok {
		return &apperr.SchedulerError{Job: name, Cause: errors.NotFoundf("job")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return &apperr.SchedulerError{Job: name, Cause: errors.New("scheduler is stopping")}
	}
	if s.running[name] {
		return &apperr.SchedulerError{Job: name, Cause: errors.AlreadyExistsf("running instance")}
	}
	s.enqueueLocked(name, s.opts.Clock.Now())
	return nil
}

func (s *Scheduler) fire(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return
	}
	if s.running[name] {
		s.logger.Warn("Skipping fire, job still running", zap.String("job", name))
		s.observe(name, OutcomeSkipped, 0)
		return
	}
	s.enqueueLocked(name, at)
}

func (s *Scheduler) enqueueLocked(name string, at time.Time) {
	if _, queued := s.pending[name]; queued {
		if s.opts.Coalesce {
			s.pending[name] = at
			s.logger.Debug("Coalesced fire", zap.String("job", name))
		} else {
			s.logger.Warn("Dropping fire, job already queued", zap.String("job", name))
		}
		return
	}
	s.pending[name] = at
	// One slot per job, so this never blocks.
	s.queue <- name
}

func (s *Scheduler) work() {
	defer s.workers.Done()
	for name := range s.queue {
		s.mu.Lock()
		at, ok := s.pending[name]
		delete(s.pending, name)
		if !ok || s.stopping {
			s.mu.Unlock()
			continue
		}
		if late := s.opts.Clock.Now().Sub(at); late > s.opts.MisfireGraceTime {
			s.mu.Unlock()
			s.logger.Warn("Job misfired", zap.String("job", name), zap.Duration("late", late))
			s.observe(name, OutcomeMisfired, 0)
			continue
		}
		s.running[name] = true
		s.mu.Unlock()

		s.execute(s.jobs[name])

		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}
}

func (s *Scheduler) execute(job Job) {
	start := s.opts.Clock.Now()
	s.logger.Info("Job started", zap.String("job", job.Name))

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return job.Run(s.ctx)
	}()

	elapsed := s.opts.Clock.Now().Sub(start)
	if err != nil {
		s.logger.Error("Job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", elapsed),
			zap.Error(&apperr.SchedulerError{Job: job.Name, Cause: err}),
		)
		s.observe(job.Name, OutcomeFailed, elapsed)
		return
	}
	s.logger.Info("Job finished", zap.String("job", job.Name), zap.Duration("elapsed", elapsed))
	s.observe(job.Name, OutcomeSuccess, elapsed)
}

func (s *Scheduler) observe(name, outcome string, elapsed time.Duration) {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveJobRun(name, outcome, elapsed)
	}
}

// Running lists the jobs currently executing.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.running))
	for name := range s.running {
		names = append(names, name)
	}
	return names
}

// Stop halts the triggers, drops queued fires and waits for running jobs.
// Jobs still running after the shutdown timeout, or once ctx is done, are
// cancelled and waited for.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	started := s.started
	close(s.queue)
	s.mu.Unlock()

	if !started {
		s.cancel()
		return nil
	}
	<-s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	case <-s.opts.Clock.After(s.opts.ShutdownTimeout):
		err = errors.Timeoutf("waiting %s for running jobs", s.opts.ShutdownTimeout)
	}
	s.cancel()
	<-done

	if err != nil {
		s.logger.Warn("Cancelled running jobs on shutdown", zap.Error(err))
		return &apperr.SchedulerError{Job: "shutdown", Cause: err}
	}
	s.logger.Info("Scheduler stopped")
	return nil
}

// cronLogger adapts the zap logger to cron's logging interface.
type cronLogger struct {
	l logger.ZapLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, pairs(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(pairs(keysAndValues), zap.Error(err))...)
}

func pairs(kv []any) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
