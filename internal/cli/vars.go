package cli

import (
	"github.com/valter-silva-au/taskmirror/internal/cache"
	"github.com/valter-silva-au/taskmirror/internal/core"
	"github.com/valter-silva-au/taskmirror/internal/digest"
	"github.com/valter-silva-au/taskmirror/internal/notify"
	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/internal/sched"
	"github.com/valter-silva-au/taskmirror/internal/store"
	"github.com/valter-silva-au/taskmirror/internal/syncer"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	Config   *core.Config

	IdentityStore core.IdentityStore

	Store *store.TaskStore
	Cache *cache.SnapshotCache

	Gate     *notify.PermissionGate
	Notifier notify.Notifier

	Reminders *sched.ReminderScheduler
	DueTimes  *sched.DueTimeScheduler
	Daily     *digest.Digest

	Channel *syncer.SyncChannel

	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator

	// ShutdownFn tears the wired application down; set in app.go.
	ShutdownFn func()
)
