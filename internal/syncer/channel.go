package syncer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/valter-silva-au/taskmirror/internal/cache"
	"github.com/valter-silva-au/taskmirror/internal/notify"
	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/internal/sched"
	"github.com/valter-silva-au/taskmirror/internal/store"
	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// State is the synchronization channel's connection state.
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateSynced         State = "synced"
)

// Wire event names. Inbound events are server broadcasts; outbound events
// are fire-and-forget mutation requests.
const (
	EventAuthenticate = "authenticate"
	EventFullSync     = "full-sync"
	EventTaskAdded    = "task-added"
	EventTaskUpdated  = "task-updated"
	EventTaskDeleted  = "task-deleted"
	EventTaskError    = "task-error"
	EventAddTask      = "add-task"
	EventUpdateTask   = "update-task"
	EventDeleteTask   = "delete-task"
)

type authPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type deletePayload struct {
	TaskID string `json:"taskId"`
}

type taskErrorPayload struct {
	Action  string `json:"action"`
	TaskID  string `json:"taskId,omitempty"`
	Message string `json:"message"`
}

// SyncChannel maintains the one live connection to the sync server and
// drives the task store, the snapshot cache, and both schedulers as side
// effects of inbound events. It is constructed once per process and passed
// to consumers by injection.
type SyncChannel struct {
	transport Transport
	store     *store.TaskStore
	cache     *cache.SnapshotCache
	reminders *sched.ReminderScheduler
	dueTimes  *sched.DueTimeScheduler
	notifier  notify.Notifier
	log       observability.EventLog

	mu       sync.Mutex
	state    State
	identity models.Identity
}

// NewSyncChannel wires a channel over the given transport. Inbound handlers
// are registered once here; Initialize opens the connection.
func NewSyncChannel(
	transport Transport,
	taskStore *store.TaskStore,
	snapCache *cache.SnapshotCache,
	reminders *sched.ReminderScheduler,
	dueTimes *sched.DueTimeScheduler,
	notifier notify.Notifier,
	log observability.EventLog,
) *SyncChannel {
	c := &SyncChannel{
		transport: transport,
		store:     taskStore,
		cache:     snapCache,
		reminders: reminders,
		dueTimes:  dueTimes,
		notifier:  notifier,
		log:       log,
		state:     StateDisconnected,
	}

	transport.On(EventFullSync, c.handleFullSync)
	transport.On(EventTaskAdded, c.handleTaskAdded)
	transport.On(EventTaskUpdated, c.handleTaskUpdated)
	transport.On(EventTaskDeleted, c.handleTaskDeleted)
	transport.On(EventTaskError, c.handleTaskError)
	transport.OnConnect(c.onConnect)
	transport.OnDisconnect(c.onDisconnect)

	return c
}

// Initialize opens the connection on behalf of the given identity. It is
// idempotent: calling it while connecting or synced is a no-op, so at most
// one connection ever exists.
func (c *SyncChannel) Initialize(ctx context.Context, identity models.Identity) error {
	if !identity.Valid() {
		return fmt.Errorf("initializing sync channel: identity is incomplete")
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	// Claim the transition while the guard still holds, so concurrent
	// callers cannot both pass the check and dial twice.
	c.identity = identity
	c.state = StateConnecting
	c.mu.Unlock()

	observability.Emit(c.log, "INFO", observability.EventSyncStateChanged,
		"sync state changed",
		map[string]any{"from": string(StateDisconnected), "to": string(StateConnecting)})

	c.dueTimes.SetUserEmail(identity.Email)

	if err := c.transport.Connect(ctx); err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("connecting to sync server: %w", err)
	}
	return nil
}

// Close tears down the connection; the disconnect callback restores the
// disconnected state and suspends all scheduling.
func (c *SyncChannel) Close() error {
	return c.transport.Close()
}

// State returns the current connection state.
func (c *SyncChannel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *SyncChannel) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	if prev != next {
		observability.Emit(c.log, "INFO", observability.EventSyncStateChanged,
			"sync state changed", map[string]any{"from": string(prev), "to": string(next)})
	}
}

func (c *SyncChannel) onConnect() {
	c.setState(StateAuthenticating)

	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()

	if err := c.transport.Emit(EventAuthenticate, authPayload{
		UserID: identity.UserID,
		Email:  identity.Email,
	}); err != nil {
		observability.Emit(c.log, "ERROR", observability.EventSyncStateChanged,
			"authenticate emit failed", map[string]any{"error": err.Error()})
		_ = c.transport.Close()
	}
}

// onDisconnect suspends all scheduling: task state may be stale while
// disconnected, and reminders must not fire against it until resynced.
func (c *SyncChannel) onDisconnect(err error) {
	c.setState(StateDisconnected)
	c.reminders.CancelAll()
	c.dueTimes.CancelAll()

	data := map[string]any{}
	if err != nil {
		data["error"] = err.Error()
	}
	observability.Emit(c.log, "WARN", observability.EventSyncStateChanged,
		"transport disconnected, scheduling suspended", data)
}

func (c *SyncChannel) normalize(t *models.Task) {
	for _, field := range t.Normalize() {
		observability.Emit(c.log, "WARN", observability.EventSyncDefaulted,
			"defaulted malformed inbound field",
			map[string]any{"task_id": t.ID, "field": field})
	}
}

// handleFullSync replaces the task list wholesale: the authoritative
// snapshot wins over any optimistic local state. Receiving it is what marks
// the channel synced.
func (c *SyncChannel) handleFullSync(payload json.RawMessage) {
	var tasks []models.Task
	if err := json.Unmarshal(payload, &tasks); err != nil {
		observability.Emit(c.log, "ERROR", observability.EventSyncReceived,
			"discarding unparseable full-sync", map[string]any{"error": err.Error()})
		return
	}
	for i := range tasks {
		c.normalize(&tasks[i])
	}

	c.store.ReplaceAll(tasks)
	c.cache.SetTasks(tasks)

	// One scheduling pass per full-sync: timers of tasks no longer present
	// must be cancelled and never re-armed.
	c.reminders.CancelAll()
	c.dueTimes.CancelAll()
	c.reminders.ScheduleAll(tasks)
	c.dueTimes.ScheduleAll(tasks)

	c.setState(StateSynced)
	observability.Emit(c.log, "INFO", observability.EventSyncReceived,
		"full sync applied", map[string]any{"event": EventFullSync, "count": len(tasks)})
}

func (c *SyncChannel) handleTaskAdded(payload json.RawMessage) {
	var task models.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		observability.Emit(c.log, "ERROR", observability.EventSyncReceived,
			"discarding unparseable task-added", map[string]any{"error": err.Error()})
		return
	}
	c.normalize(&task)

	// When the server echoes our correlation token, the provisional
	// optimistic entry is replaced instead of left behind as a duplicate.
	if task.ClientToken != "" {
		c.removeProvisional(task.ClientToken)
		task.ClientToken = ""
	}

	c.store.Upsert(task)
	c.cache.SetTasks(c.store.All())
	c.reminders.Reschedule(task)
	c.dueTimes.Reschedule(task)

	observability.Emit(c.log, "INFO", observability.EventSyncReceived,
		"task added", map[string]any{"event": EventTaskAdded, "task_id": task.ID})
}

// removeProvisional drops the optimistic entry carrying the given token.
// Provisional entries have no server identity yet, so the token is the only
// way to match them.
func (c *SyncChannel) removeProvisional(token string) {
	tasks := c.store.All()
	kept := tasks[:0]
	dropped := false
	for _, t := range tasks {
		if t.ID == "" && t.ClientToken == token {
			dropped = true
			continue
		}
		kept = append(kept, t)
	}
	if dropped {
		c.store.ReplaceAll(kept)
	}
}

func (c *SyncChannel) handleTaskUpdated(payload json.RawMessage) {
	var task models.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		observability.Emit(c.log, "ERROR", observability.EventSyncReceived,
			"discarding unparseable task-updated", map[string]any{"error": err.Error()})
		return
	}
	c.normalize(&task)

	c.store.Upsert(task)
	c.cache.SetTasks(c.store.All())
	c.reminders.Reschedule(task)
	c.dueTimes.Reschedule(task)

	observability.Emit(c.log, "INFO", observability.EventSyncReceived,
		"task updated", map[string]any{"event": EventTaskUpdated, "task_id": task.ID})
}

func (c *SyncChannel) handleTaskDeleted(payload json.RawMessage) {
	var del deletePayload
	if err := json.Unmarshal(payload, &del); err != nil || del.TaskID == "" {
		observability.Emit(c.log, "ERROR", observability.EventSyncReceived,
			"discarding unparseable task-deleted", nil)
		return
	}

	c.store.Remove(del.TaskID)
	c.cache.SetTasks(c.store.All())
	c.reminders.Cancel(del.TaskID)
	c.dueTimes.Cancel(del.TaskID)

	observability.Emit(c.log, "INFO", observability.EventSyncReceived,
		"task deleted", map[string]any{"event": EventTaskDeleted, "task_id": del.TaskID})
}

// handleTaskError surfaces a server-reported mutation error. It does not
// roll back the optimistic local mutation; the next full-sync reconciles.
func (c *SyncChannel) handleTaskError(payload json.RawMessage) {
	var e taskErrorPayload
	if err := json.Unmarshal(payload, &e); err != nil {
		return
	}

	observability.Emit(c.log, "WARN", observability.EventSyncTaskError,
		"server reported task error",
		map[string]any{"action": e.Action, "task_id": e.TaskID, "message": e.Message})

	if c.notifier != nil {
		_ = c.notifier.Show("Task sync error", notify.Options{
			Body: fmt.Sprintf("%s failed: %s", e.Action, e.Message),
			Tag:  "sync-error",
		})
	}
}

// refuse handles an outbound mutation attempted without a connection: the
// call is rejected locally with an error notification, never queued.
func (c *SyncChannel) refuse(action string) error {
	observability.Emit(c.log, "WARN", observability.EventSyncRefused,
		"mutation refused, not connected", map[string]any{"action": action})
	if c.notifier != nil {
		_ = c.notifier.Show("Sync unavailable", notify.Options{
			Body: "Cannot " + action + " while disconnected.",
			Tag:  "sync-refused",
		})
	}
	return fmt.Errorf("%s: %w", action, ErrNotConnected)
}

// AddTask applies an optimistic provisional entry (no server identity yet)
// and emits the mutation. The eventual task-added echo supplies the
// authoritative identity.
func (c *SyncChannel) AddTask(data models.Task) error {
	if !c.transport.Connected() {
		return c.refuse(EventAddTask)
	}

	data.ID = ""
	data.ClientToken = newClientToken()
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().UnixMilli()
	}
	c.normalize(&data)

	c.store.Append(data)
	return c.transport.Emit(EventAddTask, data)
}

// UpdateTask applies the mutation optimistically and emits it. Schedulers
// are re-derived when the server echo arrives.
func (c *SyncChannel) UpdateTask(task models.Task) error {
	if !c.transport.Connected() {
		return c.refuse(EventUpdateTask)
	}

	c.normalize(&task)
	c.store.Upsert(task)
	return c.transport.Emit(EventUpdateTask, task)
}

// DeleteTask removes the task locally, cancels both timers, and emits the
// mutation.
func (c *SyncChannel) DeleteTask(taskID string) error {
	if !c.transport.Connected() {
		return c.refuse(EventDeleteTask)
	}

	c.store.Remove(taskID)
	c.cache.SetTasks(c.store.All())
	c.reminders.Cancel(taskID)
	c.dueTimes.Cancel(taskID)

	return c.transport.Emit(EventDeleteTask, deletePayload{TaskID: taskID})
}

func newClientToken() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("tok-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
