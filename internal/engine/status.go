package engine

import (
	"slices"
	"sync"
	"time"

	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

// Job names.
const (
	JobMonitoring = "monitoring"
	JobAnalysis   = "analysis"
	JobCleanup    = "cleanup"
)

// JobNames lists every scheduled job.
var JobNames = []string{JobMonitoring, JobAnalysis, JobCleanup}

const recentErrorLimit = 20

// StatusBoard holds the operator-facing status of each job.
type StatusBoard struct {
	mu   sync.RWMutex
	jobs map[string]*domain.JobStatus
	now  func() time.Time
}

// NewStatusBoard creates a board with an entry for every job.
func NewStatusBoard() *StatusBoard {
	b := &StatusBoard{
		jobs: make(map[string]*domain.JobStatus, len(JobNames)),
		now:  time.Now,
	}
	for _, name := range JobNames {
		b.jobs[name] = &domain.JobStatus{Name: name, DegradeFactor: 1}
	}
	return b
}

func (b *StatusBoard) entry(job string) *domain.JobStatus {
	st, ok := b.jobs[job]
	if !ok {
		st = &domain.JobStatus{Name: job, DegradeFactor: 1}
		b.jobs[job] = st
	}
	return st
}

// Begin marks job as running.
func (b *StatusBoard) Begin(job string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entry(job).Running = true
}

// End records a finished run.
func (b *StatusBoard) End(job string, started time.Time, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.entry(job)
	st.Running = false
	st.InFlight = 0
	st.Runs++
	at := started.UTC()
	st.LastRunAt = &at
	st.LastDuration = b.now().Sub(started)
	st.LastError = ""
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
		b.pushErrorLocked(st, job, err.Error())
	}
}

// RecordError appends a non-fatal error to the job's ring.
func (b *StatusBoard) RecordError(job, scope, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushErrorLocked(b.entry(job), scope, msg)
}

func (b *StatusBoard) pushErrorLocked(st *domain.JobStatus, scope, msg string) {
	st.RecentErrors = append(st.RecentErrors, domain.ErrorSummary{
		At:      b.now().UTC(),
		Scope:   scope,
		Message: msg,
	})
	if n := len(st.RecentErrors); n > recentErrorLimit {
		st.RecentErrors = slices.Clone(st.RecentErrors[n-recentErrorLimit:])
	}
}

// SetInFlight records the number of running checks.
func (b *StatusBoard) SetInFlight(job string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entry(job).InFlight = n
}

// SetDegradeFactor records the outage backoff factor.
func (b *StatusBoard) SetDegradeFactor(job string, f int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entry(job).DegradeFactor = f
}

// Get returns a copy of one job's status.
func (b *StatusBoard) Get(job string) (domain.JobStatus, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st, ok := b.jobs[job]
	if !ok {
		return domain.JobStatus{}, false
	}
	return copyStatus(st), true
}

// All returns every job's status in JobNames order.
func (b *StatusBoard) All() []domain.JobStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.JobStatus, 0, len(b.jobs))
	for _, name := range JobNames {
		if st, ok := b.jobs[name]; ok {
			out = append(out, copyStatus(st))
		}
	}
	return out
}

func copyStatus(st *domain.JobStatus) domain.JobStatus {
	c := *st
	if st.LastRunAt != nil {
		t := *st.LastRunAt
		c.LastRunAt = &t
	}
	c.RecentErrors = slices.Clone(st.RecentErrors)
	if c.RecentErrors == nil {
		c.RecentErrors = []domain.ErrorSummary{}
	}
	return c
}
