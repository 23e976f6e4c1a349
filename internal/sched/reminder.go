package sched

import (
	"time"

	"github.com/valter-silva-au/taskmirror/internal/notify"
	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// StatusSource resolves a task's current status at fire time. A timer fires
// against the snapshot it captured at scheduling time; re-checking through
// the source closes the race with a task completed or deleted in the
// meantime.
type StatusSource interface {
	TaskStatus(id string) (models.TaskStatus, bool)
}

// ReminderScheduler fires a local notification at dueDateTime − offset for
// each eligible task. One timer per task id, always cancellable.
type ReminderScheduler struct {
	timers   *timerSet
	notifier notify.Notifier
	statuses StatusSource
	log      observability.EventLog
	now      func() time.Time
}

// NewReminderScheduler creates a ReminderScheduler delivering through the
// given notifier and re-validating status through statuses at fire time.
func NewReminderScheduler(notifier notify.Notifier, statuses StatusSource, log observability.EventLog) *ReminderScheduler {
	return &ReminderScheduler{
		timers:   newTimerSet(),
		notifier: notifier,
		statuses: statuses,
		log:      log,
		now:      time.Now,
	}
}

// Schedule registers a reminder timer for the task. It is a no-op for
// completed tasks and tasks without a due date. Any existing timer for the
// same id is cancelled first, and nothing is registered when the computed
// fire instant is absent or already past.
func (s *ReminderScheduler) Schedule(task models.Task) {
	if task.Completed() || task.DueDate == "" {
		return
	}

	s.timers.cancel(task.ID)

	delay, ok := CalculateDelay(task.DueDate, task.DueTime, task.ReminderOffsetMinutes, s.now())
	if !ok {
		return
	}

	snapshot := task.Clone()
	s.timers.set(task.ID, delay, func() { s.fire(snapshot) })
	observability.Emit(s.log, "INFO", observability.EventReminderSet,
		"reminder scheduled",
		map[string]any{"task_id": task.ID, "delay_ms": delay.Milliseconds()})
}

func (s *ReminderScheduler) fire(task models.Task) {
	if s.statuses != nil {
		status, ok := s.statuses.TaskStatus(task.ID)
		if !ok || status == models.StatusCompleted {
			observability.Emit(s.log, "INFO", observability.EventReminderSkipped,
				"reminder skipped, task gone or completed",
				map[string]any{"task_id": task.ID})
			return
		}
	}

	body := task.Description
	if body == "" {
		body = "Task is due soon."
	}
	if err := s.notifier.Show(task.Title, notify.Options{Body: body, Tag: "task-" + task.ID}); err != nil {
		observability.Emit(s.log, "WARN", observability.EventReminderSkipped,
			"reminder notification failed",
			map[string]any{"task_id": task.ID, "error": err.Error()})
		return
	}

	observability.Emit(s.log, "INFO", observability.EventReminderFired,
		"reminder fired", map[string]any{"task_id": task.ID})
}

// Cancel clears the timer for the given task id. Idempotent.
func (s *ReminderScheduler) Cancel(taskID string) {
	s.timers.cancel(taskID)
}

// Reschedule cancels first and schedules again unless the task is completed.
// This is the operation applied on every inbound task mutation.
func (s *ReminderScheduler) Reschedule(task models.Task) {
	s.timers.cancel(task.ID)
	s.Schedule(task)
}

// ScheduleAll schedules every eligible task. Used after a full-sync.
func (s *ReminderScheduler) ScheduleAll(tasks []models.Task) {
	for _, task := range tasks {
		s.Schedule(task)
	}
}

// CancelAll clears every live timer. Used on disconnect and logout.
func (s *ReminderScheduler) CancelAll() {
	s.timers.cancelAll()
}

// Live reports whether a timer is registered for the given task id.
func (s *ReminderScheduler) Live(taskID string) bool {
	return s.timers.has(taskID)
}

// LiveCount returns the number of live timers.
func (s *ReminderScheduler) LiveCount() int {
	return s.timers.size()
}

// Pending returns the pending fire instants keyed by task id.
func (s *ReminderScheduler) Pending() map[string]time.Time {
	return s.timers.snapshot()
}
