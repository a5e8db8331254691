package hub

import (
	"testing"
	"time"

	"github.com/mediagrab/orchestrator/internal/job"
)

func snap(id string, status job.Status, progress float64) job.Job {
	return job.Job{ID: id, Status: status, Progress: progress}
}

func recv(t *testing.T, sub *Subscription) (job.Job, bool) {
	t.Helper()
	select {
	case j, ok := <-sub.Updates():
		return j, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
		return job.Job{}, false
	}
}

func TestPublishDeliversInOrder(t *testing.T) {
	h := New()
	sub := h.Subscribe("j1")

	h.Publish(snap("j1", job.StatusDownloading, 10))
	h.Publish(snap("j1", job.StatusDownloading, 50))

	if j, _ := recv(t, sub); j.Progress != 10 {
		t.Errorf("expected 10, got %f", j.Progress)
	}
	if j, _ := recv(t, sub); j.Progress != 50 {
		t.Errorf("expected 50, got %f", j.Progress)
	}
}

func TestTerminalIsLastAndCloses(t *testing.T) {
	h := New()
	sub := h.Subscribe("j1")

	h.Publish(snap("j1", job.StatusDownloading, 90))
	h.Publish(snap("j1", job.StatusCompleted, 100))

	if j, _ := recv(t, sub); j.Progress != 90 {
		t.Errorf("expected 90, got %f", j.Progress)
	}
	j, ok := recv(t, sub)
	if !ok {
		t.Fatal("expected terminal update before close")
	}
	if !j.Status.Terminal() {
		t.Errorf("expected terminal, got %s", j.Status)
	}
	if _, ok := recv(t, sub); ok {
		t.Error("expected closed channel after terminal delivery")
	}
	if h.SubscriberCount("j1") != 0 {
		t.Error("expected subscriber set dropped")
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	h := NewWithQueueSize(1)
	sub := h.Subscribe("j1")

	// Nothing reads; each publish supersedes the previous one.
	h.Publish(snap("j1", job.StatusDownloading, 10))
	h.Publish(snap("j1", job.StatusDownloading, 40))
	h.Publish(snap("j1", job.StatusDownloading, 80))

	if j, _ := recv(t, sub); j.Progress != 80 {
		t.Errorf("expected latest value 80, got %f", j.Progress)
	}
}

func TestCloseOnlyDetachesOneSubscriber(t *testing.T) {
	h := New()
	a := h.Subscribe("j1")
	b := h.Subscribe("j1")

	a.Close()
	if _, ok := recv(t, a); ok {
		t.Error("expected closed channel")
	}

	h.Publish(snap("j1", job.StatusDownloading, 30))
	if j, ok := recv(t, b); !ok || j.Progress != 30 {
		t.Errorf("remaining subscriber missed update: %v %f", ok, j.Progress)
	}

	// Double close is safe, including after terminal cleanup.
	a.Close()
	h.Publish(snap("j1", job.StatusFailed, 0))
	recv(t, b)
	b.Close()
}

func TestPublishWithoutSubscribers(t *testing.T) {
	h := New()
	// Job runs headless if no one is watching.
	h.Publish(snap("j1", job.StatusDownloading, 10))
	h.Publish(snap("j1", job.StatusCompleted, 100))
}

func TestSubscribersOfOtherJobsUnaffected(t *testing.T) {
	h := New()
	a := h.Subscribe("j1")
	b := h.Subscribe("j2")

	h.Publish(snap("j1", job.StatusCompleted, 100))

	if j, ok := recv(t, a); !ok || j.Status != job.StatusCompleted {
		t.Error("j1 subscriber missed terminal update")
	}

	h.Publish(snap("j2", job.StatusDownloading, 20))
	if j, ok := recv(t, b); !ok || j.Progress != 20 {
		t.Error("j2 subscriber affected by j1 terminal")
	}
}
