package cache

import (
	"testing"
	"time"

	"github.com/valter-silva-au/taskmirror/internal/storage"
	"github.com/valter-silva-au/taskmirror/pkg/models"
)

func newTestStore(t *testing.T) storage.BlobStore {
	t.Helper()
	store, err := storage.NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating blob store: %v", err)
	}
	return store
}

func sampleTasks() []models.Task {
	return []models.Task{
		{ID: "a", Title: "first", Status: models.StatusPending, Tags: []string{"x"}},
		{ID: "b", Title: "second", Status: models.StatusCompleted},
	}
}

func TestSnapshotCache_RoundTripWithinWindow(t *testing.T) {
	c := NewSnapshotCache(newTestStore(t), nil)

	base := time.Now()
	c.now = func() time.Time { return base }
	c.SetTasks(sampleTasks())

	c.now = func() time.Time { return base.Add(FreshnessWindow - time.Second) }
	got, ok := c.GetTasks()
	if !ok {
		t.Fatal("expected a fresh snapshot")
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected snapshot contents: %+v", got)
	}
}

func TestSnapshotCache_ExpiredSnapshotAbsentAndPurged(t *testing.T) {
	store := newTestStore(t)
	c := NewSnapshotCache(store, nil)

	base := time.Now()
	c.now = func() time.Time { return base }
	c.SetTasks(sampleTasks())

	c.now = func() time.Time { return base.Add(FreshnessWindow + time.Second) }
	if _, ok := c.GetTasks(); ok {
		t.Fatal("expected stale snapshot to be absent")
	}

	// The stale query purges durable storage too.
	if _, ok, err := store.Get("task_snapshot.json"); err != nil || ok {
		t.Errorf("expected durable entry purged, ok=%v err=%v", ok, err)
	}
}

func TestSnapshotCache_ExactlyAtWindowStillFresh(t *testing.T) {
	c := NewSnapshotCache(newTestStore(t), nil)

	// The stamp is stored in milliseconds; a sub-millisecond remainder on
	// the clock must not push a boundary snapshot past the window.
	base := time.Now().Truncate(time.Millisecond).Add(500 * time.Microsecond)
	c.now = func() time.Time { return base }
	c.SetTasks(sampleTasks())

	c.now = func() time.Time { return base.Add(FreshnessWindow) }
	if _, ok := c.GetTasks(); !ok {
		t.Error("snapshot aged exactly the window must still be served")
	}
}

func TestSnapshotCache_SurvivesRestart(t *testing.T) {
	store := newTestStore(t)

	first := NewSnapshotCache(store, nil)
	base := time.Now()
	first.now = func() time.Time { return base }
	first.SetTasks(sampleTasks())

	// A new cache over the same store sees the persisted snapshot.
	second := NewSnapshotCache(store, nil)
	second.now = func() time.Time { return base.Add(time.Minute) }
	got, ok := second.GetTasks()
	if !ok {
		t.Fatal("expected the persisted snapshot after restart")
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(got))
	}
}

func TestSnapshotCache_CorruptPayloadDiscarded(t *testing.T) {
	store := newTestStore(t)
	if err := store.Set("task_snapshot.json", "{not json"); err != nil {
		t.Fatalf("seeding corrupt payload: %v", err)
	}

	c := NewSnapshotCache(store, nil)
	if _, ok := c.GetTasks(); ok {
		t.Error("corrupt payload must read as absent")
	}
	if _, ok, _ := store.Get("task_snapshot.json"); ok {
		t.Error("corrupt payload must be removed from durable storage")
	}
}

func TestSnapshotCache_CorruptFieldDefaultedNotDiscarded(t *testing.T) {
	store := newTestStore(t)
	payload := `{"tasks":[{"id":"a","title":"ok","status":"bogus","dueDate":"junk","dueTime":"09:00"}],"timestamp":1}`
	if err := store.Set("task_snapshot.json", payload); err != nil {
		t.Fatalf("seeding payload: %v", err)
	}

	c := NewSnapshotCache(store, nil)
	c.now = func() time.Time { return time.UnixMilli(1).Add(time.Minute) }

	got, ok := c.GetTasks()
	if !ok {
		t.Fatal("entry with repairable fields must still be served")
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 task, got %d", len(got))
	}
	if got[0].Status != models.StatusPending {
		t.Errorf("expected defaulted status, got %s", got[0].Status)
	}
	if got[0].DueDate != "" || got[0].DueTime != "" {
		t.Errorf("expected bad due date to clear both fields, got %q %q", got[0].DueDate, got[0].DueTime)
	}
}

func TestSnapshotCache_GetReturnsDeepCopy(t *testing.T) {
	c := NewSnapshotCache(newTestStore(t), nil)

	base := time.Now()
	c.now = func() time.Time { return base }
	c.SetTasks(sampleTasks())

	got, _ := c.GetTasks()
	got[0].Title = "mutated"
	got[0].Tags[0] = "mutated"

	again, _ := c.GetTasks()
	if again[0].Title != "first" || again[0].Tags[0] != "x" {
		t.Error("mutating a returned snapshot changed cached state")
	}
}

func TestSnapshotCache_ClearRemovesEverything(t *testing.T) {
	store := newTestStore(t)
	c := NewSnapshotCache(store, nil)

	c.SetTasks(sampleTasks())
	c.Clear()

	if _, ok := c.GetTasks(); ok {
		t.Error("expected no snapshot after Clear")
	}
	if _, ok, _ := store.Get("task_snapshot.json"); ok {
		t.Error("expected durable entry removed after Clear")
	}
}

func TestSnapshotCache_FlushRepersists(t *testing.T) {
	store := newTestStore(t)
	c := NewSnapshotCache(store, nil)

	base := time.Now()
	c.now = func() time.Time { return base }
	c.SetTasks(sampleTasks())

	// Wipe durable state behind the cache's back, then flush.
	if err := store.Remove("task_snapshot.json"); err != nil {
		t.Fatalf("removing entry: %v", err)
	}
	c.Flush()

	if _, ok, _ := store.Get("task_snapshot.json"); !ok {
		t.Error("expected Flush to re-persist the snapshot")
	}
}
