// Package sched contains the two timer-driven scheduling subsystems: the
// reminder scheduler (local notification at dueDateTime − offset) and the
// due-time scheduler (remote trigger call at dueDateTime). Each owns an
// independent timer map keyed by task id; the maps are never shared and
// never exposed.
package sched

import (
	"time"

	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// DueInstant resolves a task's due date and optional time of day to a local
// wall-clock instant. The time of day defaults to start-of-day when absent
// or malformed. ok is false when the date is absent or unparseable.
func DueInstant(dueDate, dueTime string) (time.Time, bool) {
	if dueDate == "" {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(models.DateLayout, dueDate, time.Local)
	if err != nil {
		return time.Time{}, false
	}

	if dueTime != "" {
		if tod, err := time.Parse(models.TimeLayout, dueTime); err == nil {
			day = day.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute)
		}
	}
	return day, true
}

// CalculateDelay returns the duration until dueDateTime − offsetMinutes, or
// ok=false when there is nothing to schedule: missing date, missing or
// non-positive offset, unparseable instant, or an instant not strictly in
// the future. An instant of exactly now yields ok=false.
func CalculateDelay(dueDate, dueTime string, offsetMinutes int, now time.Time) (time.Duration, bool) {
	if offsetMinutes <= 0 {
		return 0, false
	}
	at, ok := DueInstant(dueDate, dueTime)
	if !ok {
		return 0, false
	}

	delay := at.Add(-time.Duration(offsetMinutes) * time.Minute).Sub(now)
	if delay <= 0 {
		return 0, false
	}
	return delay, true
}

// DueDelay returns the duration until the due instant itself, with the same
// strictly-in-the-future contract as CalculateDelay.
func DueDelay(dueDate, dueTime string, now time.Time) (time.Duration, bool) {
	at, ok := DueInstant(dueDate, dueTime)
	if !ok {
		return 0, false
	}

	delay := at.Sub(now)
	if delay <= 0 {
		return 0, false
	}
	return delay, true
}
