// Package store holds the in-memory task list that the UI reads from. It is
// the client-side source of truth between server pushes: optimistic
// mutations land here first and server echoes correct it.
package store

import (
	"sync"

	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// TaskStore is the in-memory state owner. All reads return deep copies;
// subscribers are notified with a fresh copy after every mutation.
type TaskStore struct {
	mu    sync.RWMutex
	tasks []models.Task
	subs  []func(tasks []models.Task)
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{}
}

// Subscribe registers a callback invoked with a copy of the full task list
// after every mutation. Callbacks run on the mutating goroutine.
func (s *TaskStore) Subscribe(fn func(tasks []models.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// ReplaceAll swaps the whole task list. Reconciliation after a full-sync is
// a wholesale replace, never a merge.
func (s *TaskStore) ReplaceAll(tasks []models.Task) {
	s.mu.Lock()
	s.tasks = models.CloneTasks(tasks)
	s.mu.Unlock()
	s.publish()
}

// Upsert replaces the task with a matching id, or appends when no match
// exists.
func (s *TaskStore) Upsert(task models.Task) {
	s.mu.Lock()
	replaced := false
	for i := range s.tasks {
		if s.tasks[i].ID == task.ID {
			s.tasks[i] = task.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		s.tasks = append(s.tasks, task.Clone())
	}
	s.mu.Unlock()
	s.publish()
}

// Append adds a task to the end of the list without matching ids. Used for
// provisional optimistic entries that have no server identity yet.
func (s *TaskStore) Append(task models.Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task.Clone())
	s.mu.Unlock()
	s.publish()
}

// Remove deletes the task with the given id and reports whether it existed.
func (s *TaskStore) Remove(id string) bool {
	s.mu.Lock()
	removed := false
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()
	if removed {
		s.publish()
	}
	return removed
}

// Get returns a copy of the task with the given id.
func (s *TaskStore) Get(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return s.tasks[i].Clone(), true
		}
	}
	return models.Task{}, false
}

// All returns a deep copy of the task list.
func (s *TaskStore) All() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneTasks(s.tasks)
}

// Len returns the number of tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// TaskStatus resolves the current status of a task by id. Satisfies the
// schedulers' fire-time status source.
func (s *TaskStore) TaskStatus(id string) (models.TaskStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return s.tasks[i].Status, true
		}
	}
	return "", false
}

func (s *TaskStore) publish() {
	s.mu.RLock()
	subs := append(make([]func(tasks []models.Task), 0, len(s.subs)), s.subs...)
	tasks := models.CloneTasks(s.tasks)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(tasks)
	}
}
