package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flemzord/gatekeep/internal/metrics"
)

// Scheduler manages periodic job execution using cron expressions and
// one-shot callbacks. Each periodic job is protected by a per-job mutex to
// prevent parallel execution of the same job.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []Job
	names   map[string]struct{}
	locks   map[string]*sync.Mutex
	started bool
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc

	onceMu sync.Mutex
	once   map[string]cron.EntryID
	labels map[cron.EntryID]string
}

// NewScheduler creates a scheduler. Periodic jobs must be registered before
// Start(); one-shot callbacks may be scheduled at any time.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:   cron.New(cron.WithParser(parser)),
		names:  make(map[string]struct{}),
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		once:   make(map[string]cron.EntryID),
		labels: make(map[cron.EntryID]string),
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("cron: cannot register %q after start", j.Name())
	}
	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start adds the registered jobs and begins executing them.
// Returns an error if any job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	for _, job := range s.jobs {
		id, err := s.cron.AddFunc(job.Schedule(), s.tick(job))
		if err != nil {
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
		s.setLabel(id, job.Name())
	}

	s.started = true
	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// tick returns the cron callback for job. A tick that finds the previous
// run still going is skipped.
func (s *Scheduler) tick(job Job) func() {
	name := job.Name()
	lock := s.locks[name]
	return func() {
		if !lock.TryLock() {
			metrics.CronRuns.WithLabelValues(name, "skipped").Inc()
			s.logger.Warn("cron: job still running, skipping tick", "job", name)
			return
		}
		defer lock.Unlock()

		timer := metrics.NewTimer()
		err := job.Run(s.ctx)
		timer.ObserveDuration(metrics.CronDuration, name)
		if err != nil {
			metrics.CronRuns.WithLabelValues(name, "error").Inc()
			s.logger.Error("cron: job failed", "job", name, "error", err)
			return
		}
		metrics.CronRuns.WithLabelValues(name, "ok").Inc()
		s.logger.Debug("cron: job completed", "job", name)
	}
}

// Stop cancels the scheduler context and waits for in-flight jobs and
// callbacks. Pending one-shot callbacks are discarded.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	s.cancel()
	if started {
		// Waiting happens outside s.mu: running callbacks need onceMu only,
		// but periodic jobs may call back into the scheduler.
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}

// onceSchedule yields its instant on the first call and never again.
// robfig/cron calls Next once when the entry is activated and once after
// each run.
type onceSchedule struct {
	mu   sync.Mutex
	at   time.Time
	used bool
}

func (o *onceSchedule) Next(time.Time) time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.used {
		return time.Time{}
	}
	o.used = true
	return o.at
}

// ScheduleOnce runs fn once after delay. Scheduling the same name again
// replaces the pending run. The returned cancel is best-effort: a callback
// that already started is not interrupted, and calling cancel after the
// callback ran or was replaced is a no-op.
func (s *Scheduler) ScheduleOnce(name string, delay time.Duration, fn func(ctx context.Context)) (cancel func()) {
	s.onceMu.Lock()
	defer s.onceMu.Unlock()

	if prev, ok := s.once[name]; ok {
		s.cron.Remove(prev)
		delete(s.labels, prev)
	}

	var id cron.EntryID
	id = s.cron.Schedule(&onceSchedule{at: time.Now().Add(delay)}, cron.FuncJob(func() {
		if !s.claimOnce(name, &id) {
			return
		}
		s.logger.Debug("cron: one-shot fired", "job", name)
		fn(s.ctx)
	}))
	s.once[name] = id
	s.labels[id] = name

	return func() {
		if s.claimOnce(name, &id) {
			s.logger.Debug("cron: one-shot cancelled", "job", name)
		}
	}
}

// claimOnce removes the one-shot entry if it is still the current one for
// name. Exactly one of the callback and its cancel function wins. id is
// read under the lock because it is assigned after the entry is scheduled.
func (s *Scheduler) claimOnce(name string, id *cron.EntryID) bool {
	s.onceMu.Lock()
	defer s.onceMu.Unlock()

	cur, ok := s.once[name]
	if !ok || cur != *id {
		return false
	}
	delete(s.once, name)
	delete(s.labels, cur)
	s.cron.Remove(cur)
	return true
}

func (s *Scheduler) setLabel(id cron.EntryID, name string) {
	s.onceMu.Lock()
	defer s.onceMu.Unlock()
	s.labels[id] = name
}

// EntryInfo describes one scheduled entry.
type EntryInfo struct {
	Name string    `json:"name"`
	Next time.Time `json:"next"`
}

// Entries lists scheduled entries sorted by name.
func (s *Scheduler) Entries() []EntryInfo {
	entries := s.cron.Entries()

	s.onceMu.Lock()
	out := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		name, ok := s.labels[e.ID]
		if !ok {
			continue
		}
		out = append(out, EntryInfo{Name: name, Next: e.Next})
	}
	s.onceMu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// PendingOnce returns the number of one-shot callbacks not yet fired.
func (s *Scheduler) PendingOnce() int {
	s.onceMu.Lock()
	defer s.onceMu.Unlock()
	return len(s.once)
}
