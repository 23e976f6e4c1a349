package sched

import (
	"sync"
	"time"

	"github.com/valter-silva-au/taskmirror/internal/notify"
	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// DueTimeScheduler fires the remote trigger call at each eligible task's
// exact due instant. Structurally a sibling of ReminderScheduler with its
// own timer map: the two schedulers never share state or cancel each other's
// timers. A failed dispatch is logged and surfaced but never retried or
// re-armed.
type DueTimeScheduler struct {
	timers   *timerSet
	trigger  notify.TriggerClient
	notifier notify.Notifier
	statuses StatusSource
	log      observability.EventLog
	now      func() time.Time

	mu    sync.Mutex
	email string
}

// NewDueTimeScheduler creates a DueTimeScheduler dispatching through the
// given trigger client. Dispatch failures are surfaced through notifier.
func NewDueTimeScheduler(trigger notify.TriggerClient, notifier notify.Notifier, statuses StatusSource, log observability.EventLog) *DueTimeScheduler {
	return &DueTimeScheduler{
		timers:   newTimerSet(),
		trigger:  trigger,
		notifier: notifier,
		statuses: statuses,
		log:      log,
		now:      time.Now,
	}
}

// SetUserEmail records the email the trigger payload is dispatched with.
// Set when the synchronization channel authenticates.
func (s *DueTimeScheduler) SetUserEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
}

func (s *DueTimeScheduler) userEmail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// Schedule registers a due-time timer for the task. No-op for completed
// tasks and tasks without a due date; an existing timer for the id is
// cancelled first.
func (s *DueTimeScheduler) Schedule(task models.Task) {
	if task.Completed() || task.DueDate == "" {
		return
	}

	s.timers.cancel(task.ID)

	delay, ok := DueDelay(task.DueDate, task.DueTime, s.now())
	if !ok {
		return
	}

	snapshot := task.Clone()
	s.timers.set(task.ID, delay, func() { s.fire(snapshot) })
	observability.Emit(s.log, "INFO", observability.EventDueSet,
		"due-time trigger scheduled",
		map[string]any{"task_id": task.ID, "delay_ms": delay.Milliseconds()})
}

func (s *DueTimeScheduler) fire(task models.Task) {
	if s.statuses != nil {
		status, ok := s.statuses.TaskStatus(task.ID)
		if !ok || status == models.StatusCompleted {
			observability.Emit(s.log, "INFO", observability.EventDueSkipped,
				"due-time trigger skipped, task gone or completed",
				map[string]any{"task_id": task.ID})
			return
		}
	}

	if err := s.trigger.DueNow(task, s.userEmail()); err != nil {
		observability.Emit(s.log, "ERROR", observability.EventDueFailed,
			"due-time trigger dispatch failed",
			map[string]any{"task_id": task.ID, "error": err.Error()})
		if s.notifier != nil {
			_ = s.notifier.Show("Due trigger failed", notify.Options{
				Body: "Could not reach the due-task endpoint for: " + task.Title,
				Tag:  "due-error-" + task.ID,
			})
		}
		return
	}

	observability.Emit(s.log, "INFO", observability.EventDueFired,
		"due-time trigger dispatched", map[string]any{"task_id": task.ID})
}

// Cancel clears the timer for the given task id. Idempotent.
func (s *DueTimeScheduler) Cancel(taskID string) {
	s.timers.cancel(taskID)
}

// Reschedule cancels first and schedules again unless the task is completed.
func (s *DueTimeScheduler) Reschedule(task models.Task) {
	s.timers.cancel(task.ID)
	s.Schedule(task)
}

// ScheduleAll schedules every eligible task. Used after a full-sync.
func (s *DueTimeScheduler) ScheduleAll(tasks []models.Task) {
	for _, task := range tasks {
		s.Schedule(task)
	}
}

// CancelAll clears every live timer. Used on disconnect and logout.
func (s *DueTimeScheduler) CancelAll() {
	s.timers.cancelAll()
}

// Live reports whether a timer is registered for the given task id.
func (s *DueTimeScheduler) Live(taskID string) bool {
	return s.timers.has(taskID)
}

// LiveCount returns the number of live timers.
func (s *DueTimeScheduler) LiveCount() int {
	return s.timers.size()
}

// Pending returns the pending fire instants keyed by task id.
func (s *DueTimeScheduler) Pending() map[string]time.Time {
	return s.timers.snapshot()
}
