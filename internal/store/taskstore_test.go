package store

import (
	"testing"

	"github.com/valter-silva-au/taskmirror/pkg/models"
)

func TestTaskStore_ReplaceAll(t *testing.T) {
	s := NewTaskStore()

	s.ReplaceAll([]models.Task{{ID: "a"}, {ID: "b"}})
	if s.Len() != 2 {
		t.Fatalf("expected 2 tasks, got %d", s.Len())
	}

	// Wholesale replace, never a merge.
	s.ReplaceAll([]models.Task{{ID: "c"}})
	if s.Len() != 1 {
		t.Fatalf("expected 1 task after replace, got %d", s.Len())
	}
	if _, ok := s.Get("a"); ok {
		t.Error("expected task a gone after replace")
	}
}

func TestTaskStore_UpsertReplacesById(t *testing.T) {
	s := NewTaskStore()
	s.ReplaceAll([]models.Task{{ID: "a", Title: "old"}})

	s.Upsert(models.Task{ID: "a", Title: "new"})
	if s.Len() != 1 {
		t.Fatalf("expected upsert to replace, got %d tasks", s.Len())
	}
	got, _ := s.Get("a")
	if got.Title != "new" {
		t.Errorf("expected replaced title, got %q", got.Title)
	}

	s.Upsert(models.Task{ID: "b", Title: "other"})
	if s.Len() != 2 {
		t.Errorf("expected append for unknown id, got %d tasks", s.Len())
	}
}

func TestTaskStore_AppendKeepsDuplicates(t *testing.T) {
	s := NewTaskStore()

	// Provisional entries share the empty id; Append must not collapse them.
	s.Append(models.Task{Title: "one"})
	s.Append(models.Task{Title: "two"})
	if s.Len() != 2 {
		t.Errorf("expected 2 provisional entries, got %d", s.Len())
	}
}

func TestTaskStore_Remove(t *testing.T) {
	s := NewTaskStore()
	s.ReplaceAll([]models.Task{{ID: "a"}, {ID: "b"}})

	if !s.Remove("a") {
		t.Error("expected Remove to report an existing task")
	}
	if s.Remove("a") {
		t.Error("expected second Remove to report nothing")
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 task left, got %d", s.Len())
	}
}

func TestTaskStore_GetReturnsCopy(t *testing.T) {
	s := NewTaskStore()
	s.ReplaceAll([]models.Task{{ID: "a", Title: "orig", Tags: []string{"x"}}})

	got, _ := s.Get("a")
	got.Title = "mutated"
	got.Tags[0] = "mutated"

	again, _ := s.Get("a")
	if again.Title != "orig" || again.Tags[0] != "x" {
		t.Error("mutating a returned task changed stored state")
	}
}

func TestTaskStore_TaskStatus(t *testing.T) {
	s := NewTaskStore()
	s.ReplaceAll([]models.Task{
		{ID: "a", Status: models.StatusPending},
		{ID: "b", Status: models.StatusCompleted},
	})

	if status, ok := s.TaskStatus("a"); !ok || status != models.StatusPending {
		t.Errorf("expected pending, got %s ok=%v", status, ok)
	}
	if status, ok := s.TaskStatus("b"); !ok || status != models.StatusCompleted {
		t.Errorf("expected completed, got %s ok=%v", status, ok)
	}
	if _, ok := s.TaskStatus("missing"); ok {
		t.Error("expected unknown id to report ok=false")
	}
}

func TestTaskStore_SubscribersNotifiedWithCopy(t *testing.T) {
	s := NewTaskStore()

	var calls int
	var lastSeen []models.Task
	s.Subscribe(func(tasks []models.Task) {
		calls++
		lastSeen = tasks
	})

	s.ReplaceAll([]models.Task{{ID: "a", Title: "orig"}})
	s.Upsert(models.Task{ID: "b"})
	s.Remove("b")

	if calls != 3 {
		t.Fatalf("expected 3 notifications, got %d", calls)
	}

	lastSeen[0].Title = "mutated"
	got, _ := s.Get("a")
	if got.Title != "orig" {
		t.Error("mutating the published slice changed stored state")
	}
}

func TestTaskStore_RemoveMissingDoesNotPublish(t *testing.T) {
	s := NewTaskStore()
	var calls int
	s.Subscribe(func([]models.Task) { calls++ })

	s.Remove("nope")
	if calls != 0 {
		t.Error("removing an absent task must not notify subscribers")
	}
}
