// Package scheduler runs the periodic ledger jobs (daily accrual, point
// expiration, token cleanup) on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Func performs one run of a job and reports how many rows failed.
type Func func(ctx context.Context) (rowFailures int, err error)

// Job is a named unit of periodic work. An empty Schedule registers the job
// for manual runs only.
type Job struct {
	Name     string
	Schedule string
	Run      Func
}

// Observer receives the outcome of every job run.
type Observer interface {
	ObserveJob(job string, d time.Duration, rowFailures int, err error)
}

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type entry struct {
	job      Job
	schedule cron.Schedule
}

// Runner owns the cron loop. Jobs are added before Start.
type Runner struct {
	mu       sync.Mutex
	entries  []entry
	observer Observer
	logger   *slog.Logger
	cron     *cron.Cron
	cancel   context.CancelFunc
}

func New(logger *slog.Logger, observer Observer) *Runner {
	return &Runner{
		observer: observer,
		logger:   logger.With("component", "scheduler"),
	}
}

// Add registers a job, validating its schedule.
func (r *Runner) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return errors.New("scheduler: job needs a name and a run func")
	}
	e := entry{job: j}
	if j.Schedule != "" {
		s, err := parser.Parse(j.Schedule)
		if err != nil {
			return fmt.Errorf("parse schedule for %s: %w", j.Name, err)
		}
		e.schedule = s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.job.Name == j.Name {
			return fmt.Errorf("scheduler: duplicate job %q", j.Name)
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

// Start begins running scheduled jobs in UTC until ctx is cancelled or Stop
// is called. A job whose previous run is still going is skipped.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	logger := cronLogger{r.logger}
	r.cron = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	for _, e := range r.entries {
		if e.schedule == nil {
			continue
		}
		job := e.job
		r.cron.Schedule(e.schedule, cron.FuncJob(func() {
			r.execute(ctx, job)
		}))
		r.logger.Info("job scheduled", "job", job.Name, "schedule", job.Schedule)
	}
	r.cron.Start()
}

// Stop halts the loop and waits for running jobs to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c, cancel := r.cron, r.cancel
	r.cron, r.cancel = nil, nil
	r.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

// Run executes the named job immediately.
func (r *Runner) Run(ctx context.Context, name string) error {
	r.mu.Lock()
	var job *Job
	for i := range r.entries {
		if r.entries[i].job.Name == name {
			job = &r.entries[i].job
			break
		}
	}
	r.mu.Unlock()

	if job == nil {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	return r.execute(ctx, *job)
}

// RunAll executes every registered job concurrently. Each job runs to
// completion regardless of the others; their errors are joined.
func (r *Runner) RunAll(ctx context.Context) error {
	r.mu.Lock()
	jobs := make([]Job, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	r.mu.Unlock()

	errs := make([]error, len(jobs))
	var g errgroup.Group
	for i, j := range jobs {
		g.Go(func() error {
			errs[i] = r.execute(ctx, j)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (r *Runner) execute(ctx context.Context, j Job) error {
	start := time.Now()
	failures, err := j.Run(ctx)
	d := time.Since(start)

	if r.observer != nil {
		r.observer.ObserveJob(j.Name, d, failures, err)
	}
	if err != nil {
		r.logger.Error("job failed", "job", j.Name, "duration", d, "error", err)
		return fmt.Errorf("%s: %w", j.Name, err)
	}
	r.logger.Info("job finished", "job", j.Name, "duration", d, "row_failures", failures)
	return nil
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
