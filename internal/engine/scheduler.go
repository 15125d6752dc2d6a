package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/donaldgifford/flight-price-tracker/internal/metrics"
	"github.com/donaldgifford/flight-price-tracker/internal/store"
)

// ErrJobLocked is returned when another holder owns the job's scheduler lock.
var ErrJobLocked = errors.New("job is running elsewhere")

// Intervals configures the scheduled jobs.
type Intervals struct {
	Tick       time.Duration
	Analysis   time.Duration
	Cleanup    time.Duration
	JobTimeout time.Duration
}

// Scheduler runs the monitoring, analysis, and cleanup jobs on cron entries.
// Every run goes through runJob, which takes the job's scheduler lock and
// records a job_runs row.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	started bool

	store     store.Store
	monitor   *Monitor
	analyzer  *Analyzer
	cleaner   *Cleaner
	board     *StatusBoard
	intervals Intervals
	holder    string
	log       *slog.Logger

	monitoringEntryID cron.EntryID
	analysisEntryID   cron.EntryID
	cleanupEntryID    cron.EntryID

	reportMu   sync.RWMutex
	lastReport *CycleReport
}

// NewScheduler creates a Scheduler and registers its cron entries.
func NewScheduler(
	mon *Monitor,
	an *Analyzer,
	cl *Cleaner,
	s store.Store,
	iv Intervals,
	log *slog.Logger,
) (*Scheduler, error) {
	if iv.Tick <= 0 {
		iv.Tick = time.Minute
	}
	if iv.Analysis <= 0 {
		iv.Analysis = 6 * time.Hour
	}
	if iv.Cleanup <= 0 {
		iv.Cleanup = 24 * time.Hour
	}
	if iv.JobTimeout <= 0 {
		iv.JobTimeout = 30 * time.Minute
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	sched := &Scheduler{
		store:     s,
		monitor:   mon,
		analyzer:  an,
		cleaner:   cl,
		board:     mon.Board(),
		intervals: iv,
		holder:    fmt.Sprintf("%s-%d", host, os.Getpid()),
		log:       log,
	}

	c, err := sched.build()
	if err != nil {
		return nil, err
	}
	sched.cron = c
	return sched, nil
}

func (s *Scheduler) build() (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	var err error
	if s.monitoringEntryID, err = c.AddFunc(
		"@every "+s.intervals.Tick.String(),
		s.scheduledMonitoring,
	); err != nil {
		return nil, fmt.Errorf("registering monitoring job: %w", err)
	}

	if s.analysisEntryID, err = c.AddFunc(
		"@every "+s.intervals.Analysis.String(),
		s.scheduledAnalysis,
	); err != nil {
		return nil, fmt.Errorf("registering analysis job: %w", err)
	}

	if s.cleanupEntryID, err = c.AddFunc(
		"@every "+s.intervals.Cleanup.String(),
		s.scheduledCleanup,
	); err != nil {
		return nil, fmt.Errorf("registering cleanup job: %w", err)
	}

	return c, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("scheduler started", "holder", s.holder)
	s.cron.Start()
	s.started = true
}

// Stop halts the cron and returns a context that is done once running jobs
// have finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("scheduler stopping")
	s.started = false
	return s.cron.Stop()
}

// Restart waits for running jobs, rebuilds the cron entries, and starts
// again.
func (s *Scheduler) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}

	c, err := s.build()
	if err != nil {
		return err
	}
	s.cron = c
	s.cron.Start()
	s.started = true
	s.log.Info("scheduler restarted")
	return nil
}

// Running reports whether the cron is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron.Entries()
}

// Board returns the shared status board.
func (s *Scheduler) Board() *StatusBoard { return s.board }

// LastReport returns the most recent cycle report, if any.
func (s *Scheduler) LastReport() (CycleReport, bool) {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	if s.lastReport == nil {
		return CycleReport{}, false
	}
	return *s.lastReport, true
}

// RunMonitoring runs one poll cycle as the monitoring job.
func (s *Scheduler) RunMonitoring(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	err := s.runJob(ctx, JobMonitoring, s.intervals.JobTimeout, func(ctx context.Context) (int, error) {
		r, err := s.monitor.RunCycle(ctx)
		report = r
		if err == nil {
			s.reportMu.Lock()
			s.lastReport = &r
			s.reportMu.Unlock()
		}
		return r.Checked, err
	})
	return report, err
}

// RunAnalysis runs trend analysis as the analysis job.
func (s *Scheduler) RunAnalysis(ctx context.Context) (int, error) {
	var n int
	err := s.runJob(ctx, JobAnalysis, s.intervals.JobTimeout, func(ctx context.Context) (int, error) {
		var err error
		n, err = s.analyzer.RunAnalysis(ctx)
		return n, err
	})
	return n, err
}

// RunCleanup runs housekeeping as the cleanup job.
func (s *Scheduler) RunCleanup(ctx context.Context) (int, error) {
	var n int
	err := s.runJob(ctx, JobCleanup, s.intervals.JobTimeout, func(ctx context.Context) (int, error) {
		var err error
		n, err = s.cleaner.RunCleanup(ctx)
		return n, err
	})
	return n, err
}

// RecoverStaleJobRuns marks runs left in "running" by a crashed process.
func (s *Scheduler) RecoverStaleJobRuns(ctx context.Context) {
	n, err := s.store.RecoverStaleJobRuns(ctx, staleJobRunTimeout)
	if err != nil {
		s.log.Error("recovering stale job runs", "error", err)
		return
	}
	if n > 0 {
		s.log.Warn("recovered stale job runs", "count", n)
	}
}

func (s *Scheduler) scheduledMonitoring() {
	if _, err := s.RunMonitoring(context.Background()); err != nil {
		s.logJobError(JobMonitoring, err)
	}
}

func (s *Scheduler) scheduledAnalysis() {
	if _, err := s.RunAnalysis(context.Background()); err != nil {
		s.logJobError(JobAnalysis, err)
	}
}

func (s *Scheduler) scheduledCleanup() {
	if _, err := s.RunCleanup(context.Background()); err != nil {
		s.logJobError(JobCleanup, err)
	}
}

func (s *Scheduler) logJobError(job string, err error) {
	switch {
	case errors.Is(err, ErrJobLocked), errors.Is(err, ErrDraining):
		s.log.Info("scheduled job skipped", "job", job, "reason", err)
	default:
		s.log.Error("scheduled job failed", "job", job, "error", err)
	}
}

// runJob wraps fn with the job's scheduler lock, a job_runs record, and the
// status board. The lock TTL equals the job timeout.
func (s *Scheduler) runJob(
	ctx context.Context,
	name string,
	timeout time.Duration,
	fn func(context.Context) (int, error),
) error {
	acquired, err := s.store.AcquireSchedulerLock(ctx, name, s.holder, timeout)
	if err != nil {
		return fmt.Errorf("acquiring %s lock: %w", name, err)
	}
	if !acquired {
		metrics.JobRunsTotal.WithLabelValues(name, "skipped").Inc()
		return ErrJobLocked
	}
	defer func() {
		if err := s.store.ReleaseSchedulerLock(context.WithoutCancel(ctx), name, s.holder); err != nil {
			s.log.Warn("releasing scheduler lock", "job", name, "error", err)
		}
	}()

	runID, err := s.store.InsertJobRun(ctx, name)
	if err != nil {
		return fmt.Errorf("recording %s run: %w", name, err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	s.board.Begin(name)
	rows, jobErr := fn(jobCtx)
	s.board.End(name, start, jobErr)

	status, errText := store.JobStatusSucceeded, ""
	if jobErr != nil {
		status, errText = store.JobStatusFailed, jobErr.Error()
	}
	if err := s.store.CompleteJobRun(context.WithoutCancel(ctx), runID, status, errText, rows); err != nil {
		s.log.Warn("completing job run", "job", name, "run_id", runID, "error", err)
	}

	metrics.JobRunsTotal.WithLabelValues(name, status).Inc()
	if jobErr == nil {
		metrics.JobLastSuccess.WithLabelValues(name).SetToCurrentTime()
	}
	s.log.Info("job finished",
		"job", name,
		"status", status,
		"rows", rows,
		"duration", time.Since(start),
	)
	return jobErr
}
