package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/constants"
	"github.com/kozaktomas/photo-gallery/internal/gallery"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ScanJobOptions are the options a scan was started with.
type ScanJobOptions struct {
	Recursive bool `json:"recursive"`
	Force     bool `json:"force"`
}

// ScanJob represents an async directory scan.
type ScanJob struct {
	EventBroadcaster

	id          string
	path        string
	options     ScanJobOptions
	status      JobStatus
	progress    gallery.Progress
	err         string
	startedAt   time.Time
	completedAt *time.Time
	result      *gallery.Summary
}

// ScanJobSnapshot is a consistent copy of a scan job for API responses.
type ScanJobSnapshot struct {
	ID          string           `json:"id"`
	Path        string           `json:"path"`
	Status      JobStatus        `json:"status"`
	Options     ScanJobOptions   `json:"options"`
	Progress    gallery.Progress `json:"progress"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Result      *gallery.Summary `json:"result,omitempty"`
}

// Snapshot returns the current job state.
func (j *ScanJob) Snapshot() ScanJobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ScanJobSnapshot{
		ID:          j.id,
		Path:        j.path,
		Status:      j.status,
		Options:     j.options,
		Progress:    j.progress,
		Error:       j.err,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
		Result:      j.result,
	}
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ScanJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Cancel cancels the scan job. Finished jobs are left untouched.
func (j *ScanJob) Cancel() bool {
	j.mu.Lock()
	if isJobTerminal(j.status) {
		j.mu.Unlock()
		return false
	}
	j.status = JobStatusCancelled
	j.mu.Unlock()

	j.EventBroadcaster.Cancel()
	return true
}

func (j *ScanJob) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == JobStatusPending {
		j.status = JobStatusRunning
	}
}

func (j *ScanJob) setProgress(p gallery.Progress) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

// finish records the outcome unless the job was cancelled meanwhile.
// It returns the final status.
func (j *ScanJob) finish(summary gallery.Summary, err error) JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.completedAt = &now
	j.result = &summary
	switch {
	case j.status == JobStatusCancelled:
	case err != nil:
		j.status = JobStatusFailed
		j.err = err.Error()
	default:
		j.status = JobStatusCompleted
	}
	return j.status
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async scan jobs.
type JobManager struct {
	jobs    map[string]*ScanJob
	mu      sync.RWMutex
	running sync.WaitGroup
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ScanJob),
	}
}

// CreateJob registers a pending scan job. cancel stops the job's context.
func (m *JobManager) CreateJob(id, path string, options ScanJobOptions, cancel context.CancelFunc) *ScanJob {
	job := &ScanJob{
		id:        id,
		path:      path,
		options:   options,
		status:    JobStatusPending,
		startedAt: time.Now(),
	}
	job.cancel = cancel

	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*ScanJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// Go runs fn as a tracked job goroutine.
func (m *JobManager) Go(fn func()) {
	m.running.Go(fn)
}

// Wait blocks until every job goroutine has returned or ctx is done.
func (m *JobManager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
