package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/signet/internal/constants"
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

// TrainJob represents an async room training job.
type TrainJob struct {
	EventBroadcaster

	ID          string          `json:"id"`
	RoomID      int64           `json:"room_id"`
	RoomName    string          `json:"room_name"`
	Status      JobStatus       `json:"status"`
	Step        int             `json:"step"`
	TotalSteps  int             `json:"total_steps"`
	Loss        float64         `json:"loss"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      *TrainJobResult `json:"result,omitempty"`
}

// TrainJobResult summarizes a finished training job.
type TrainJobResult struct {
	ModelName  string  `json:"model_name"`
	BatchSize  int     `json:"batch_size"`
	Iterations int     `json:"iterations"`
	FinalLoss  float64 `json:"final_loss"`
	MeanLoss   float64 `json:"mean_loss"`
}

// GetStatus returns the current job status (implements SSEJob).
func (j *TrainJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// snapshot returns a copy of the job fields safe to encode while the job runs.
func (j *TrainJob) snapshot() *TrainJob {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return &TrainJob{
		ID:          j.ID,
		RoomID:      j.RoomID,
		RoomName:    j.RoomName,
		Status:      j.Status,
		Step:        j.Step,
		TotalSteps:  j.TotalSteps,
		Loss:        j.Loss,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
}

// Cancel asks the training job to stop. The job stays active until the
// runner observes the cancellation and releases the room.
func (j *TrainJob) Cancel() {
	j.EventBroadcaster.Cancel()
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
	jobs map[string]*TrainJob
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*TrainJob),
	}
}

// CreateJob creates a new training job. If the room already has a pending
// or running job, that job is returned with false instead.
func (m *JobManager) CreateJob(id string, roomID int64, roomName string) (*TrainJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if active := m.activeJobLocked(roomID); active != nil {
		return active, false
	}
	job := &TrainJob{
		ID:        id,
		RoomID:    roomID,
		RoomName:  roomName,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
	m.jobs[id] = job
	return job, true
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *TrainJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ActiveJob returns the pending or running job of a room, nil if there is none.
func (m *JobManager) ActiveJob(roomID int64) *TrainJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeJobLocked(roomID)
}

func (m *JobManager) activeJobLocked(roomID int64) *TrainJob {
	for _, job := range m.jobs {
		if job.RoomID == roomID && !isJobTerminal(job.GetStatus()) {
			return job
		}
	}
	return nil
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*TrainJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*TrainJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}
