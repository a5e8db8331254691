package job

import (
	"testing"
)

func newTestPersistentStore(t *testing.T) *PersistentStore {
	t.Helper()
	store, err := NewPersistentStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPersistentStore_AddAndGet(t *testing.T) {
	store := newTestPersistentStore(t)
	j := New(validAudioRequest())

	if err := store.Add(j); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, ok := store.Get(j.ID)
	if !ok {
		t.Fatal("expected job to exist")
	}
	if got.SourceURL != j.SourceURL {
		t.Errorf("expected %s, got %s", j.SourceURL, got.SourceURL)
	}
}

func TestPersistentStore_ProgressAndComplete(t *testing.T) {
	store := newTestPersistentStore(t)
	j := New(validAudioRequest())
	store.Add(j)

	snap, changed, err := store.SetProgress(j.ID, 40)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !changed || snap.Status != StatusDownloading {
		t.Errorf("expected downloading at 40, got %s/%f", snap.Status, snap.Progress)
	}

	// Lower value is a no-op
	if _, changed, _ := store.SetProgress(j.ID, 10); changed {
		t.Error("lower progress should not change the record")
	}

	snap, err = store.Complete(j.ID, "out.mp3", 2048, "/api/downloads/"+j.ID+"/file")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if snap.Status != StatusCompleted || snap.Progress != 100 {
		t.Errorf("unexpected terminal snapshot: %+v", snap)
	}

	// Terminal state sticks
	if snap, _ := store.Fail(j.ID, "late failure"); snap.Status != StatusCompleted {
		t.Errorf("terminal state changed: %s", snap.Status)
	}
}

func TestPersistentStore_ListAndStats(t *testing.T) {
	store := newTestPersistentStore(t)

	a := New(validAudioRequest())
	b := New(validAudioRequest())
	store.Add(a)
	store.Add(b)
	store.Fail(b.ID, "boom")

	jobs, total := store.List(10, 0, "")
	if total != 2 || len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d/%d", len(jobs), total)
	}

	_, failedTotal := store.List(10, 0, string(StatusFailed))
	if failedTotal != 1 {
		t.Errorf("expected 1 failed, got %d", failedTotal)
	}

	pending, active, completed, failed := store.Stats()
	if pending != 1 || active != 0 || completed != 0 || failed != 1 {
		t.Errorf("unexpected stats: %d %d %d %d", pending, active, completed, failed)
	}
}

func TestPersistentStore_Delete(t *testing.T) {
	store := newTestPersistentStore(t)
	j := New(validAudioRequest())
	store.Add(j)

	if err := store.Delete(j.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.Get(j.ID); ok {
		t.Error("expected job gone")
	}
	if err := store.Delete(j.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistentStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewPersistentStore(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	j := New(validAudioRequest())
	store.Add(j)
	store.SetProgress(j.ID, 55)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewPersistentStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.Get(j.ID)
	if !ok {
		t.Fatal("expected job after reopen")
	}
	if got.Status != StatusDownloading || got.Progress != 55 {
		t.Errorf("state lost across reopen: %s/%f", got.Status, got.Progress)
	}
}
