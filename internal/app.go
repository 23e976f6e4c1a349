// Package internal provides the App struct that wires all components of the
// task mirror together and resolves the base data directory.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/valter-silva-au/taskmirror/internal/cache"
	"github.com/valter-silva-au/taskmirror/internal/cli"
	"github.com/valter-silva-au/taskmirror/internal/core"
	"github.com/valter-silva-au/taskmirror/internal/digest"
	"github.com/valter-silva-au/taskmirror/internal/notify"
	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/internal/sched"
	"github.com/valter-silva-au/taskmirror/internal/storage"
	"github.com/valter-silva-au/taskmirror/internal/store"
	"github.com/valter-silva-au/taskmirror/internal/syncer"
)

// App holds all service dependencies for the task mirror.
type App struct {
	BasePath string
	Config   *core.Config

	// Configuration and identity
	ConfigLoader core.ConfigLoader
	Identity     core.IdentityStore

	// Storage layer
	BlobStore storage.BlobStore
	Cache     *cache.SnapshotCache

	// Task state
	Store *store.TaskStore

	// Notifications
	Gate     *notify.PermissionGate
	Notifier notify.Notifier
	Trigger  notify.TriggerClient

	// Scheduling
	Reminders *sched.ReminderScheduler
	DueTimes  *sched.DueTimeScheduler
	Digest    *digest.Digest

	// Synchronization
	Transport syncer.Transport
	Channel   *syncer.SyncChannel

	// Observability
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
}

// NewApp creates and wires all components. basePath is the directory where
// all durable state lives (typically ~/.taskmirror).
func NewApp(basePath string) (*App, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating base path: %w", err)
	}

	app := &App{BasePath: basePath}

	// --- Configuration and identity ---
	app.ConfigLoader = core.NewConfigLoader(basePath)
	cfg, err := app.ConfigLoader.Load()
	if err != nil {
		return nil, err
	}
	app.Config = cfg
	app.Identity = core.NewIdentityStore(basePath)

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, "events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: diagnostics must never block the mirror itself.
		app.EventLog = nil
	}
	app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)

	// --- Storage layer ---
	switch cfg.StorageBackend {
	case "sqlite":
		dsn := filepath.Join(basePath, "snapshot.db")
		app.BlobStore, err = storage.NewSQLiteBlobStore(dsn)
		if err != nil {
			return nil, err
		}
	default:
		app.BlobStore, err = storage.NewFileBlobStore(filepath.Join(basePath, "blobs"))
		if err != nil {
			return nil, err
		}
	}
	app.Cache = cache.NewSnapshotCache(app.BlobStore, app.EventLog)

	// --- Task state ---
	app.Store = store.NewTaskStore()

	// --- Notifications ---
	app.Gate = notify.NewPermissionGate(func() notify.Permission {
		if cfg.NotificationsEnabled {
			return notify.PermissionGranted
		}
		return notify.PermissionDenied
	})
	sinks := []notify.Notifier{notify.NewConsoleNotifier(os.Stderr)}
	if cfg.NotificationWebhook != "" {
		sinks = append(sinks, notify.NewWebhookNotifier(cfg.NotificationWebhook))
	}
	app.Notifier = notify.NewGatedNotifier(app.Gate, notify.NewMultiNotifier(sinks...), app.EventLog)

	if cfg.TriggerEndpoint != "" {
		app.Trigger = notify.NewHTTPTriggerClient(cfg.TriggerEndpoint)
	} else {
		app.Trigger = notify.NewNoopTriggerClient()
	}

	// --- Scheduling ---
	app.Reminders = sched.NewReminderScheduler(app.Notifier, app.Store, app.EventLog)
	app.DueTimes = sched.NewDueTimeScheduler(app.Trigger, app.Notifier, app.Store, app.EventLog)
	app.Digest = digest.NewDigest(app.Store, app.Notifier, app.EventLog)

	// --- Synchronization ---
	app.Transport = syncer.NewTCPTransport(cfg.ServerAddr)
	app.Channel = syncer.NewSyncChannel(
		app.Transport, app.Store, app.Cache,
		app.Reminders, app.DueTimes,
		app.Notifier, app.EventLog,
	)

	// --- CLI wiring ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.IdentityStore = app.Identity
	cli.Store = app.Store
	cli.Cache = app.Cache
	cli.Gate = app.Gate
	cli.Notifier = app.Notifier
	cli.Reminders = app.Reminders
	cli.DueTimes = app.DueTimes
	cli.Daily = app.Digest
	cli.Channel = app.Channel
	cli.EventLog = app.EventLog
	cli.MetricsCalc = app.MetricsCalc
	cli.ShutdownFn = app.Shutdown

	return app, nil
}

// Shutdown flushes the cache, stops all timers, and closes the connection
// and the event log.
func (a *App) Shutdown() {
	a.Digest.Stop()
	_ = a.Channel.Close()
	a.Reminders.CancelAll()
	a.DueTimes.CancelAll()
	a.Cache.Flush()
	if a.EventLog != nil {
		_ = a.EventLog.Close()
	}
}

// ResolveBasePath determines the data directory: $TASKMIRROR_HOME when set,
// otherwise ~/.taskmirror.
func ResolveBasePath() string {
	if env := os.Getenv("TASKMIRROR_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskmirror"
	}
	return filepath.Join(home, ".taskmirror")
}
