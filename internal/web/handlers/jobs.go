package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/photo-match/internal/constants"
	"github.com/kozaktomas/photo-match/internal/ranker"
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

// ScanJob is one similarity search session: a reference, a folder, and the
// ranked matches once the scan finishes.
type ScanJob struct {
	EventBroadcaster

	ID          string
	Reference   string
	Folder      string
	TopK        int
	Status      JobStatus
	Progress    int
	Total       int
	Processed   int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Result      *ranker.Result
}

// ScanJobView is the JSON representation of a ScanJob.
type ScanJobView struct {
	ID          string         `json:"id"`
	Reference   string         `json:"reference"`
	Folder      string         `json:"folder"`
	TopK        int            `json:"top_k"`
	Status      JobStatus      `json:"status"`
	Scanning    bool           `json:"scanning"`
	Progress    int            `json:"progress"`
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      *ranker.Result `json:"result,omitempty"`
}

// View returns a consistent snapshot of the job.
func (j *ScanJob) View() ScanJobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return ScanJobView{
		ID:          j.ID,
		Reference:   j.Reference,
		Folder:      j.Folder,
		TopK:        j.TopK,
		Status:      j.Status,
		Scanning:    !isJobTerminal(j.Status),
		Progress:    j.Progress,
		Total:       j.Total,
		Processed:   j.Processed,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}

// GetStatus returns the current job status (implements SSEJob).
func (j *ScanJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Cancel cancels the scan job. It reports false when the job had already finished.
func (j *ScanJob) Cancel() bool {
	if !j.finish(JobStatusCancelled, "", nil) {
		return false
	}
	j.EventBroadcaster.Cancel()
	return true
}

// setRunning moves a pending job to running.
func (j *ScanJob) setRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status != JobStatusPending {
		return false
	}
	j.Status = JobStatusRunning
	return true
}

// setProgress records fingerprinting progress.
func (j *ScanJob) setProgress(p ranker.Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	// workers report out of order
	if p.Current <= j.Processed {
		return
	}
	j.Processed = p.Current
	j.Total = p.Total
	if p.Total > 0 {
		j.Progress = int(float64(p.Current) / float64(p.Total) * 100)
	}
}

// finish moves the job into a terminal state. It reports false when the job
// had already finished, so only the first outcome sticks.
func (j *ScanJob) finish(status JobStatus, message string, result *ranker.Result) bool {
	now := time.Now()
	j.mu.Lock()
	defer j.mu.Unlock()
	if isJobTerminal(j.Status) {
		return false
	}
	j.Status = status
	j.Error = message
	j.CompletedAt = &now
	if result != nil {
		j.Result = result
		j.Progress = 100
	}
	return true
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

// setCancel stores the function that stops the job's work.
func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs map[string]*ScanJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*ScanJob),
	}
}

// CreateJob creates a new pending scan job. Once more than MaxScanJobs are
// held, the oldest finished jobs are dropped.
func (m *JobManager) CreateJob(id, reference, folder string, topK int) *ScanJob {
	job := &ScanJob{
		ID:        id,
		Reference: reference,
		Folder:    folder,
		TopK:      topK,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}

	m.mu.Lock()
	m.jobs[id] = job
	m.evictLocked()
	m.mu.Unlock()

	return job
}

func (m *JobManager) evictLocked() {
	if len(m.jobs) <= constants.MaxScanJobs {
		return
	}
	finished := make([]*ScanJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		if isJobTerminal(job.GetStatus()) {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].StartedAt.Before(finished[j].StartedAt)
	})
	for _, job := range finished {
		if len(m.jobs) <= constants.MaxScanJobs {
			return
		}
		delete(m.jobs, job.ID)
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs, newest first.
func (m *JobManager) ListJobs() []*ScanJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*ScanJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	return jobs
}
