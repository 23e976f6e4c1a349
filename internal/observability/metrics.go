package observability

import (
	"fmt"
	"time"
)

// Metrics holds counters derived from the event log.
type Metrics struct {
	SyncEventsReceived    int `json:"sync_events_received"`
	SyncStateChanges      int `json:"sync_state_changes"`
	SyncRefusals          int `json:"sync_refusals"`
	ServerTaskErrors      int `json:"server_task_errors"`
	RemindersScheduled    int `json:"reminders_scheduled"`
	RemindersFired        int `json:"reminders_fired"`
	RemindersSkipped      int `json:"reminders_skipped"`
	DueTriggersScheduled  int `json:"due_triggers_scheduled"`
	DueTriggersDispatched int `json:"due_triggers_dispatched"`
	DueTriggerFailures    int `json:"due_trigger_failures"`
	FieldsDefaulted       int `json:"fields_defaulted"`
	CacheExpiries         int `json:"cache_expiries"`

	EventCount  int        `json:"event_count"`
	OldestEvent *time.Time `json:"oldest_event,omitempty"`
	NewestEvent *time.Time `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	if mc.eventLog == nil {
		return &Metrics{}, nil
	}
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case EventSyncReceived:
			m.SyncEventsReceived++
		case EventSyncStateChanged:
			m.SyncStateChanges++
		case EventSyncRefused:
			m.SyncRefusals++
		case EventSyncTaskError:
			m.ServerTaskErrors++
		case EventReminderSet:
			m.RemindersScheduled++
		case EventReminderFired:
			m.RemindersFired++
		case EventReminderSkipped:
			m.RemindersSkipped++
		case EventDueSet:
			m.DueTriggersScheduled++
		case EventDueFired:
			m.DueTriggersDispatched++
		case EventDueFailed:
			m.DueTriggerFailures++
		case EventCacheDefaulted, EventSyncDefaulted:
			m.FieldsDefaulted++
		case EventCacheExpired:
			m.CacheExpiries++
		}
	}

	return m, nil
}
