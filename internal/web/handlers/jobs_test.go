package handlers

import (
	"context"
	"testing"
)

func TestEventBroadcaster_SendEvent(t *testing.T) {
	var b EventBroadcaster
	first := b.AddListener()
	second := b.AddListener()

	b.SendEvent(JobEvent{Type: "progress"})

	for i, ch := range []chan JobEvent{first, second} {
		select {
		case ev := <-ch:
			if ev.Type != "progress" {
				t.Errorf("listener %d: expected progress, got %s", i, ev.Type)
			}
		default:
			t.Errorf("listener %d: expected an event", i)
		}
	}

	b.RemoveListener(first)
	if _, ok := <-first; ok {
		t.Error("expected removed listener to be closed")
	}
}

func TestEventBroadcaster_Cancel(t *testing.T) {
	var b EventBroadcaster
	ctx, cancel := context.WithCancel(context.Background())
	b.setCancel(cancel)
	ch := b.AddListener()

	b.Cancel()

	if ctx.Err() == nil {
		t.Error("expected context to be cancelled")
	}
	if ev := <-ch; ev.Type != "cancelled" {
		t.Errorf("expected cancelled event, got %s", ev.Type)
	}
}

func TestJobManager_OneActiveJobPerRoom(t *testing.T) {
	jm := NewJobManager()

	first, ok := jm.CreateJob("a", 1, "Exam A")
	if !ok {
		t.Fatal("expected first job to be created")
	}
	again, ok := jm.CreateJob("b", 1, "Exam A")
	if ok || again != first {
		t.Fatal("expected the running job to be returned")
	}
	if _, ok := jm.CreateJob("c", 2, "Exam B"); !ok {
		t.Error("expected a job for another room to be created")
	}

	first.mu.Lock()
	first.Status = JobStatusCompleted
	first.mu.Unlock()

	if jm.ActiveJob(1) != nil {
		t.Error("expected no active job after completion")
	}
	if _, ok := jm.CreateJob("d", 1, "Exam A"); !ok {
		t.Error("expected a new job once the previous one finished")
	}
	if got := len(jm.ListJobs()); got != 3 {
		t.Errorf("expected 3 jobs, got %d", got)
	}

	jm.DeleteJob("a")
	if jm.GetJob("a") != nil {
		t.Error("expected job to be deleted")
	}
}
