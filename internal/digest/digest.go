// Package digest delivers a once-a-day summary notification of pending
// tasks, sorted by how soon they are due.
package digest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/valter-silva-au/taskmirror/internal/notify"
	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/internal/sched"
	"github.com/valter-silva-au/taskmirror/internal/store"
	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// Digest runs a cron-scheduled daily summary over the task store.
type Digest struct {
	cron     *cron.Cron
	store    *store.TaskStore
	notifier notify.Notifier
	log      observability.EventLog
	now      func() time.Time
}

// NewDigest creates a digest bound to the given store and notifier. Call
// Start with the delivery time to arm it.
func NewDigest(taskStore *store.TaskStore, notifier notify.Notifier, log observability.EventLog) *Digest {
	return &Digest{
		cron:     cron.New(cron.WithLocation(time.Local), cron.WithSeconds()),
		store:    taskStore,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Start registers the daily job at the given HH:MM local time and starts
// the cron runner.
func (d *Digest) Start(timeStr string) error {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return fmt.Errorf("scheduling daily digest: %w", err)
	}
	if _, err := d.cron.AddFunc(spec, d.deliver); err != nil {
		return fmt.Errorf("scheduling daily digest: %w", err)
	}
	d.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for a running job to finish.
func (d *Digest) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
}

func (d *Digest) deliver() {
	body := d.Summary()
	if body == "" {
		return
	}
	if err := d.notifier.Show("Daily task digest", notify.Options{Body: body, Tag: "daily-digest"}); err != nil {
		observability.Emit(d.log, "WARN", observability.EventDigestFailed,
			"daily digest delivery failed", map[string]any{"error": err.Error()})
		return
	}
	observability.Emit(d.log, "INFO", observability.EventDigestSent,
		"daily digest delivered", map[string]any{"pending": d.store.Len()})
}

// Summary renders the pending tasks as one line each, soonest due first.
// Tasks without a due date sort last. Returns "" when nothing is pending.
func (d *Digest) Summary() string {
	var pending []models.Task
	for _, t := range d.store.All() {
		if !t.Completed() {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return ""
	}

	sort.SliceStable(pending, func(i, j int) bool {
		ti, iOK := sched.DueInstant(pending[i].DueDate, pending[i].DueTime)
		tj, jOK := sched.DueInstant(pending[j].DueDate, pending[j].DueTime)
		if iOK != jOK {
			return iOK
		}
		if !iOK {
			return false
		}
		return ti.Before(tj)
	})

	now := d.now()
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending task(s):\n", len(pending))
	for _, t := range pending {
		line := "- " + t.Title
		if due, ok := sched.DueInstant(t.DueDate, t.DueTime); ok {
			if due.Before(now) {
				line += fmt.Sprintf(" (overdue, was due %s)", formatDue(t))
			} else {
				line += fmt.Sprintf(" (due %s)", formatDue(t))
			}
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDue(t models.Task) string {
	if t.DueTime != "" {
		return t.DueDate + " " + t.DueTime
	}
	return t.DueDate
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour), nil
}
