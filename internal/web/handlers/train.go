package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/signet/internal/database"
	"github.com/kozaktomas/signet/internal/signature"
)

// Trainer runs a room training and reports whether the room lock was free.
type Trainer interface {
	TryTrainRoom(ctx context.Context, roomID int64, progress func(signature.TrainProgress)) (*signature.TrainResult, bool, error)
}

// TrainHandler handles room training endpoints
type TrainHandler struct {
	rooms      database.RoomStore
	trainer    Trainer
	jobManager *JobManager
}

// NewTrainHandler creates a new training handler
func NewTrainHandler(rooms database.RoomStore, trainer Trainer, jm *JobManager) *TrainHandler {
	return &TrainHandler{
		rooms:      rooms,
		trainer:    trainer,
		jobManager: jm,
	}
}

// Start starts a training job for the room
func (h *TrainHandler) Start(w http.ResponseWriter, r *http.Request) {
	roomID, ok := idParam(r, "roomID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid room ID")
		return
	}

	room, err := h.rooms.GetRoom(r.Context(), roomID)
	if err != nil {
		respondErr(w, err)
		return
	}
	if room == nil {
		respondError(w, http.StatusNotFound, "room not found")
		return
	}

	jobID := uuid.New().String()
	job, created := h.jobManager.CreateJob(jobID, room.ID, room.Name)
	if !created {
		respondJSON(w, http.StatusConflict, map[string]string{
			"error":  "room is already being trained",
			"job_id": job.ID,
		})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)
	go h.runTrainJob(ctx, job)

	respondJSON(w, http.StatusAccepted, map[string]any{
		"job_id":    jobID,
		"room_id":   room.ID,
		"room_name": room.Name,
		"status":    string(JobStatusPending),
	})
}

// Status returns the status of a training job
func (h *TrainHandler) Status(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	respondJSON(w, http.StatusOK, job.snapshot())
}

// Events streams job events via SSE
func (h *TrainHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job.(*TrainJob).snapshot()
		},
	)
}

// Cancel cancels a training job
func (h *TrainHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job := h.lookup(w, r)
	if job == nil {
		return
	}
	if isJobTerminal(job.GetStatus()) {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}
	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *TrainHandler) lookup(w http.ResponseWriter, r *http.Request) *TrainJob {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return nil
	}
	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return nil
	}
	return job
}

// runTrainJob runs the training job in the background
func (h *TrainHandler) runTrainJob(ctx context.Context, job *TrainJob) {
	defer job.cancel()

	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Training started"})

	progress := func(p signature.TrainProgress) {
		job.mu.Lock()
		job.Step = p.Step
		job.TotalSteps = p.Total
		job.Loss = p.Loss
		job.mu.Unlock()
		job.SendEvent(JobEvent{Type: "progress", Data: p})
	}

	result, acquired, err := h.trainer.TryTrainRoom(ctx, job.RoomID, progress)
	switch {
	case !acquired:
		h.failJob(job, "room is busy with another training or query")
		return
	case errors.Is(err, context.Canceled):
		log.Printf("Training of room %d cancelled", job.RoomID)
		h.finishJob(job, JobStatusCancelled, "")
		return
	case err != nil:
		log.Printf("Training of room %d failed: %v", job.RoomID, err)
		h.failJob(job, err.Error())
		return
	}

	room, err := h.rooms.GetRoom(context.Background(), job.RoomID)
	modelName := ""
	if err == nil && room != nil {
		modelName = room.ModelName
	}

	jobResult := &TrainJobResult{
		ModelName:  modelName,
		BatchSize:  result.BatchSize,
		Iterations: result.Iterations,
		FinalLoss:  result.FinalLoss,
		MeanLoss:   result.MeanLoss,
	}
	job.mu.Lock()
	job.Result = jobResult
	job.mu.Unlock()
	h.finishJob(job, JobStatusCompleted, "")
	job.SendEvent(JobEvent{Type: "completed", Message: "Training completed", Data: jobResult})
}

func (h *TrainHandler) finishJob(job *TrainJob, status JobStatus, message string) {
	now := time.Now()
	job.mu.Lock()
	job.Status = status
	job.Error = message
	job.CompletedAt = &now
	job.mu.Unlock()
}

func (h *TrainHandler) failJob(job *TrainJob, message string) {
	h.finishJob(job, JobStatusFailed, message)
	job.SendEvent(JobEvent{Type: "job_error", Message: message})
}
