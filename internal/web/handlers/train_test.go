package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/signet/internal/signature"
)

func startTraining(t *testing.T, handler *TrainHandler, roomID string) *httptest.ResponseRecorder {
	t.Helper()
	req := requestWithChiParams(httptest.NewRequest("POST", "/api/v1/rooms/"+roomID+"/train", nil), map[string]string{"roomID": roomID})
	recorder := httptest.NewRecorder()
	handler.Start(recorder, req)
	return recorder
}

// waitForJob polls until the job reaches a terminal state
func waitForJob(t *testing.T, job *TrainJob) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if status := job.GetStatus(); isJobTerminal(status) {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return ""
}

func TestTrainHandler_Start_Completes(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, "6201", "6202")
	jm := NewJobManager()
	service := &fakeService{trainResult: &signature.TrainResult{BatchSize: 2, Iterations: 6, FinalLoss: 0.25, MeanLoss: 0.4}}
	handler := NewTrainHandler(store, service, jm)

	recorder := startTraining(t, handler, "1")

	assertStatusCode(t, recorder, http.StatusAccepted)
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	jobID, _ := result["job_id"].(string)
	if jobID == "" {
		t.Fatal("expected non-empty job_id")
	}
	if result["status"] != "pending" {
		t.Errorf("expected status 'pending', got '%v'", result["status"])
	}

	job := jm.GetJob(jobID)
	if status := waitForJob(t, job); status != JobStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", status, job.snapshot().Error)
	}
	snap := job.snapshot()
	if snap.Result == nil || snap.Result.Iterations != 6 || snap.Result.BatchSize != 2 {
		t.Errorf("unexpected result: %+v", snap.Result)
	}
	if snap.Step != 6 || snap.TotalSteps != 6 {
		t.Errorf("expected progress 6/6, got %d/%d", snap.Step, snap.TotalSteps)
	}
}

func TestTrainHandler_Start_RoomNotFound(t *testing.T) {
	store := newTestStore(t)
	handler := NewTrainHandler(store, &fakeService{}, NewJobManager())

	recorder := startTraining(t, handler, "3")

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "room not found")
}

func TestTrainHandler_Start_ConflictWhileRunning(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, "6201", "6202")
	jm := NewJobManager()
	service := &fakeService{
		trainResult: &signature.TrainResult{BatchSize: 2, Iterations: 1},
		block:       make(chan struct{}),
	}
	handler := NewTrainHandler(store, service, jm)

	first := startTraining(t, handler, "1")
	assertStatusCode(t, first, http.StatusAccepted)

	second := startTraining(t, handler, "1")
	assertStatusCode(t, second, http.StatusConflict)

	close(service.block)
	for _, job := range jm.ListJobs() {
		waitForJob(t, job)
	}
}

func TestTrainHandler_Failures(t *testing.T) {
	tests := []struct {
		name    string
		service *fakeService
		message string
	}{
		{"busy room", &fakeService{busy: true}, "room is busy with another training or query"},
		{"insufficient enrollment", &fakeService{err: signature.ErrInsufficientEnrollment}, signature.ErrInsufficientEnrollment.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			seedRoom(t, store, "6201")
			jm := NewJobManager()
			handler := NewTrainHandler(store, tt.service, jm)

			recorder := startTraining(t, handler, "1")
			assertStatusCode(t, recorder, http.StatusAccepted)

			jobs := jm.ListJobs()
			if len(jobs) != 1 {
				t.Fatalf("expected 1 job, got %d", len(jobs))
			}
			if status := waitForJob(t, jobs[0]); status != JobStatusFailed {
				t.Fatalf("expected failed, got %s", status)
			}
			if got := jobs[0].snapshot().Error; got != tt.message {
				t.Errorf("expected error %q, got %q", tt.message, got)
			}
		})
	}
}

func TestTrainHandler_Cancel(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, "6201", "6202")
	jm := NewJobManager()
	service := &fakeService{
		trainResult: &signature.TrainResult{Iterations: 1},
		block:       make(chan struct{}),
	}
	handler := NewTrainHandler(store, service, jm)

	startTraining(t, handler, "1")
	job := jm.ListJobs()[0]

	req := requestWithChiParams(httptest.NewRequest("POST", "/", nil), map[string]string{"jobId": job.ID})
	recorder := httptest.NewRecorder()
	handler.Cancel(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if status := waitForJob(t, job); status != JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", status)
	}

	recorder = httptest.NewRecorder()
	handler.Cancel(recorder, req)
	assertStatusCode(t, recorder, http.StatusConflict)
}

func TestTrainHandler_Cancel_RoomActiveUntilStopped(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, "6201", "6202")
	jm := NewJobManager()
	service := &fakeService{
		trainResult: &signature.TrainResult{Iterations: 1},
		step:        make(chan struct{}),
	}
	handler := NewTrainHandler(store, service, jm)

	startTraining(t, handler, "1")
	job := jm.ActiveJob(1)
	if job == nil {
		t.Fatal("expected an active job")
	}

	req := requestWithChiParams(httptest.NewRequest("POST", "/", nil), map[string]string{"jobId": job.ID})
	recorder := httptest.NewRecorder()
	handler.Cancel(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)

	if status := job.GetStatus(); isJobTerminal(status) {
		t.Errorf("expected job still active while the step runs, got %s", status)
	}
	assertStatusCode(t, startTraining(t, handler, "1"), http.StatusConflict)

	close(service.step)
	if status := waitForJob(t, job); status != JobStatusCancelled {
		t.Fatalf("expected cancelled, got %s", status)
	}

	assertStatusCode(t, startTraining(t, handler, "1"), http.StatusAccepted)
	next := jm.ActiveJob(1)
	if next == nil {
		t.Fatal("expected a new active job")
	}
	if status := waitForJob(t, next); status != JobStatusCompleted {
		t.Errorf("expected completed, got %s", status)
	}
}

func TestTrainHandler_Status_NotFound(t *testing.T) {
	store := newTestStore(t)
	handler := NewTrainHandler(store, &fakeService{}, NewJobManager())

	req := requestWithChiParams(httptest.NewRequest("GET", "/", nil), map[string]string{"jobId": "missing"})
	recorder := httptest.NewRecorder()
	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "job not found")
}

func TestTrainHandler_Events_FinishedJob(t *testing.T) {
	store := newTestStore(t)
	seedRoom(t, store, "6201", "6202")
	jm := NewJobManager()
	handler := NewTrainHandler(store, &fakeService{trainResult: &signature.TrainResult{Iterations: 2}}, jm)

	startTraining(t, handler, "1")
	job := jm.ListJobs()[0]
	waitForJob(t, job)

	req := requestWithChiParams(httptest.NewRequest("GET", "/", nil), map[string]string{"jobId": job.ID})
	recorder := httptest.NewRecorder()
	handler.Events(recorder, req)

	assertContentType(t, recorder, "text/event-stream")
	body := recorder.Body.String()
	if !strings.HasPrefix(body, "event: status\ndata: ") {
		t.Errorf("expected a status event, got %q", body)
	}
	if !strings.Contains(body, `"status":"completed"`) {
		t.Errorf("expected completed status in stream, got %q", body)
	}
}
