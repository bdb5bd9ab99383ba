package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"wallp/internal/logging"
	"wallp/internal/services"
	"wallp/internal/store"
)

var (
	// ErrCoalesced is returned when a trigger is dropped because the job
	// already has a run pending.
	ErrCoalesced = errors.New("trigger coalesced into pending run")
	// ErrStopped is returned once Shutdown has been called.
	ErrStopped = errors.New("scheduler stopped")
	// ErrJobNotFound is returned for unknown job ids.
	ErrJobNotFound = errors.New("job not found")
	// ErrUnknownTarget is returned when a job names an unregistered target.
	ErrUnknownTarget = errors.New("unknown job target")
)

// Target is a registered job function. args is the job's JSON argument string.
type Target func(ctx context.Context, args string) error

// JobStore persists scheduled jobs.
type JobStore interface {
	SaveJob(ctx context.Context, job store.JobRecord) error
	DeleteJob(ctx context.Context, id string) (bool, error)
	MarkJobRun(ctx context.Context, id string, at time.Time) error
	ListJobs(ctx context.Context) ([]store.JobRecord, error)
}

// Job describes a scheduled job.
type Job struct {
	ID        string    `json:"id"`
	Frequency string    `json:"frequency"`
	Target    string    `json:"target"`
	Args      string    `json:"args,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LastRunAt time.Time `json:"last_run_at,omitzero"`
	NextRunAt time.Time `json:"next_run_at,omitzero"`
}

// Stats counts executions since construction.
type Stats struct {
	Runs      int `json:"runs"`
	Failures  int `json:"failures"`
	Coalesced int `json:"coalesced"`
}

type entry struct {
	job     Job
	entryID cron.EntryID
}

type task struct {
	id        string
	run       func(ctx context.Context) error
	scheduled bool
}

type slot struct {
	pending *task
}

// Scheduler owns the cron loop and the single execution worker.
type Scheduler struct {
	store  JobStore
	logger *slog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	targets map[string]Target
	jobs    map[string]*entry
	active  map[string]*slot
	queue   []task
	wake    chan struct{}
	stats   Stats
	started bool
	stopped bool

	runCtx    context.Context
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// New constructs a scheduler. st may be nil for in-memory schedules.
func New(st JobStore, logger *slog.Logger) *Scheduler {
	logger = logging.NewComponentLogger(logger, "scheduler")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	return &Scheduler{
		store:   st,
		logger:  logger,
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger))),
		targets: make(map[string]Target),
		jobs:    make(map[string]*entry),
		active:  make(map[string]*slot),
		wake:    make(chan struct{}, 1),
	}
}

// RegisterTarget makes fn available to jobs under name.
func (s *Scheduler) RegisterTarget(name string, fn Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[name] = fn
}

// AddJob validates, persists and schedules a job, replacing any job with the
// same id.
func (s *Scheduler) AddJob(ctx context.Context, id, frequency, target, args string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return services.Wrap(services.ErrValidation, "scheduler", "add job", "job id is required", nil)
	}
	spec, err := FrequencySpec(frequency)
	if err != nil {
		return err
	}
	s.mu.Lock()
	_, known := s.targets[target]
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	job := Job{ID: id, Frequency: frequency, Target: target, Args: args, CreatedAt: time.Now().UTC()}
	if s.store != nil {
		if err := s.store.SaveJob(ctx, toRecord(job)); err != nil {
			return err
		}
	}
	if err := s.schedule(job, spec); err != nil {
		return err
	}
	s.logger.Info("job scheduled",
		logging.String(logging.FieldJobID, id),
		logging.String("frequency", frequency),
		logging.String("cron", spec),
		logging.String("target", target),
		logging.String(logging.FieldEventType, "job_scheduled"),
	)
	return nil
}

func (s *Scheduler) schedule(job Job, spec string) error {
	id := job.ID
	entryID, err := s.cron.AddFunc(spec, func() {
		if err := s.Trigger(id); err != nil && !errors.Is(err, ErrCoalesced) && !errors.Is(err, ErrStopped) {
			s.logger.Warn("scheduled trigger failed",
				logging.String(logging.FieldJobID, id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_trigger_failed"),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("%w: cron %q: %w", ErrFormat, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[id]; ok {
		s.cron.Remove(old.entryID)
		if !old.job.CreatedAt.IsZero() {
			job.CreatedAt = old.job.CreatedAt
		}
		job.LastRunAt = old.job.LastRunAt
	}
	s.jobs[id] = &entry{job: job, entryID: entryID}
	return nil
}

// RemoveJob unschedules and deletes a job.
func (s *Scheduler) RemoveJob(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	deleted := false
	if s.store != nil {
		var err error
		if deleted, err = s.store.DeleteJob(ctx, id); err != nil {
			return err
		}
	}
	if !ok && !deleted {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if ok {
		s.cron.Remove(e.entryID)
	}
	s.logger.Info("job removed",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldEventType, "job_removed"),
	)
	return nil
}

// JobExists reports whether id is scheduled.
func (s *Scheduler) JobExists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[id]
	return ok
}

// Jobs returns a snapshot of scheduled jobs ordered by id.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	jobs := make([]Job, 0, len(s.jobs))
	ids := make([]cron.EntryID, 0, len(s.jobs))
	for _, e := range s.jobs {
		jobs = append(jobs, e.job)
		ids = append(ids, e.entryID)
	}
	s.mu.Unlock()

	for i := range jobs {
		jobs[i].NextRunAt = s.cron.Entry(ids[i]).Next
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// Stats returns execution counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Start loads persisted jobs, starts the cron loop and the worker. Jobs
// naming an unregistered target are skipped with a warning.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.started = true
	s.runCtx, s.cancelRun = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.load(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.work()
	s.cron.Start()

	s.logger.Info("scheduler started",
		logging.Int("jobs", len(s.Jobs())),
		logging.String(logging.FieldEventType, "scheduler_started"),
	)
	return nil
}

func (s *Scheduler) load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	records, err := s.store.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled jobs: %w", err)
	}
	for _, rec := range records {
		job := fromRecord(rec)
		s.mu.Lock()
		_, exists := s.jobs[job.ID]
		_, known := s.targets[job.Target]
		s.mu.Unlock()
		if exists {
			continue
		}
		if !known {
			logging.WarnWithContext(s.logger, "skipping persisted job with unknown target", "job_load_skipped",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("target", job.Target),
				logging.String(logging.FieldImpact, "job will not run until re-added"),
			)
			continue
		}
		spec, err := FrequencySpec(job.Frequency)
		if err == nil {
			err = s.schedule(job, spec)
		}
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping persisted job with invalid frequency", "job_load_skipped",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("frequency", job.Frequency),
				logging.Error(err),
			)
		}
	}
	return nil
}

// Shutdown stops the cron loop, drops queued runs and waits for the current
// run to finish. When ctx expires first the current run is cancelled.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	dropped := len(s.queue)
	s.queue = nil
	started := s.started
	s.mu.Unlock()
	s.signal()

	<-s.cron.Stop().Done()
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		s.cancelRun()
		<-done
		err = ctx.Err()
	}
	s.cancelRun()
	s.logger.Info("scheduler stopped",
		logging.Int("dropped_runs", dropped),
		logging.String(logging.FieldEventType, "scheduler_stopped"),
	)
	return err
}

// Trigger queues a run of a scheduled job now.
func (s *Scheduler) Trigger(id string) error {
	s.mu.Lock()
	e, ok := s.jobs[id]
	var fn Target
	if ok {
		fn = s.targets[e.job.Target]
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if fn == nil {
		return fmt.Errorf("%w: %q", ErrUnknownTarget, e.job.Target)
	}
	args := e.job.Args
	return s.enqueue(task{
		id:        id,
		scheduled: true,
		run: func(ctx context.Context) error {
			return fn(ctx, args)
		},
	})
}

// Submit queues an ad-hoc run under id. It shares the worker and the
// coalescing rules of scheduled jobs.
func (s *Scheduler) Submit(id string, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("submit: nil function")
	}
	return s.enqueue(task{id: id, run: fn})
}

func (s *Scheduler) enqueue(t task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if sl, busy := s.active[t.id]; busy {
		if sl.pending == nil {
			sl.pending = &t
			s.logger.Debug("run pending behind active run", logging.String(logging.FieldJobID, t.id))
			return nil
		}
		s.stats.Coalesced++
		s.logger.Info("trigger coalesced",
			logging.String(logging.FieldJobID, t.id),
			logging.Int("coalesced_total", s.stats.Coalesced),
			logging.String(logging.FieldEventType, "job_coalesced"),
		)
		return ErrCoalesced
	}
	s.active[t.id] = &slot{}
	s.queue = append(s.queue, t)
	s.signal()
	return nil
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) work() {
	defer s.wg.Done()
	for {
		t, ok := s.next()
		if !ok {
			return
		}
		s.execute(t)
		s.finish(t.id)
	}
}

func (s *Scheduler) next() (task, bool) {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return task{}, false
		}
		if len(s.queue) > 0 {
			t := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return t, true
		}
		s.mu.Unlock()
		<-s.wake
	}
}

func (s *Scheduler) finish(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.active[id]
	if sl != nil && sl.pending != nil && !s.stopped {
		next := *sl.pending
		sl.pending = nil
		s.queue = append(s.queue, next)
		s.signal()
		return
	}
	delete(s.active, id)
}

func (s *Scheduler) execute(t task) {
	ctx := services.WithJobID(s.runCtx, t.id)
	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		return t.run(ctx)
	}()

	s.mu.Lock()
	s.stats.Runs++
	if err != nil {
		s.stats.Failures++
	}
	if e, ok := s.jobs[t.id]; ok && t.scheduled {
		e.job.LastRunAt = started.UTC()
	}
	s.mu.Unlock()

	if t.scheduled && s.store != nil {
		if markErr := s.store.MarkJobRun(context.WithoutCancel(ctx), t.id, started.UTC()); markErr != nil {
			logger.Warn("failed to record job run", logging.Error(markErr))
		}
	}

	if err != nil {
		logger.Error("job failed",
			logging.Duration("elapsed", time.Since(started)),
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		return
	}
	logger.Info("job finished",
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "job_finished"),
	)
}

func toRecord(job Job) store.JobRecord {
	return store.JobRecord{
		ID:        job.ID,
		Frequency: job.Frequency,
		Target:    job.Target,
		Args:      job.Args,
		CreatedAt: job.CreatedAt,
		LastRunAt: job.LastRunAt,
	}
}

func fromRecord(rec store.JobRecord) Job {
	return Job{
		ID:        rec.ID,
		Frequency: rec.Frequency,
		Target:    rec.Target,
		Args:      rec.Args,
		CreatedAt: rec.CreatedAt,
		LastRunAt: rec.LastRunAt,
	}
}
