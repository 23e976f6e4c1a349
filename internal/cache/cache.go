// Package cache implements the time-boxed local task snapshot store. A
// snapshot older than the freshness window is treated as absent and purged
// from durable storage; a fresh one is served as a deep copy so callers can
// never mutate cached state through the returned slice.
package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/internal/storage"
	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// FreshnessWindow is the maximum age at which a cached snapshot is still
// servable.
const FreshnessWindow = 5 * time.Minute

// snapshotKey is the single durable-storage key the cache persists under.
const snapshotKey = "task_snapshot.json"

// snapshot is the persisted layout: tasks with dates already as strings,
// plus the write timestamp in epoch milliseconds.
type snapshot struct {
	Tasks     []models.Task `json:"tasks"`
	Timestamp int64         `json:"timestamp"`
}

// SnapshotCache serves a recently-stored task list without a network round
// trip. It reads durable storage once at construction and writes through on
// every SetTasks.
type SnapshotCache struct {
	mu    sync.Mutex
	store storage.BlobStore
	log   observability.EventLog
	now   func() time.Time
	snap  *snapshot
}

// NewSnapshotCache creates a cache backed by the given blob store and loads
// any persisted snapshot. A corrupt persisted payload is discarded (and
// logged); corrupt individual task fields are defaulted, not discarded.
func NewSnapshotCache(store storage.BlobStore, log observability.EventLog) *SnapshotCache {
	c := &SnapshotCache{
		store: store,
		log:   log,
		now:   time.Now,
	}
	c.load()
	return c
}

func (c *SnapshotCache) load() {
	raw, ok, err := c.store.Get(snapshotKey)
	if err != nil {
		observability.Emit(c.log, "WARN", observability.EventCacheCorrupt,
			"reading persisted snapshot failed", map[string]any{"error": err.Error()})
		return
	}
	if !ok {
		return
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		observability.Emit(c.log, "WARN", observability.EventCacheCorrupt,
			"persisted snapshot is not valid JSON, discarding", map[string]any{"error": err.Error()})
		_ = c.store.Remove(snapshotKey)
		return
	}

	// Field-by-field repair: a single bad date or missing array must not
	// throw away the whole entry.
	for i := range snap.Tasks {
		for _, field := range snap.Tasks[i].Normalize() {
			observability.Emit(c.log, "WARN", observability.EventCacheDefaulted,
				"defaulted malformed cached field",
				map[string]any{"task_id": snap.Tasks[i].ID, "field": field})
		}
	}

	c.snap = &snap
}

// SetTasks stores the given tasks as the current snapshot, stamped with the
// current time, and synchronously persists the serialized form. Any prior
// snapshot is overwritten.
func (c *SnapshotCache) SetTasks(tasks []models.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = &snapshot{
		Tasks:     models.CloneTasks(tasks),
		Timestamp: c.now().UnixMilli(),
	}
	c.persistLocked()
}

// GetTasks returns a deep copy of the cached task list, or ok=false if no
// snapshot exists or the snapshot has outlived the freshness window. A stale
// snapshot is purged from durable storage as a side effect of the query.
func (c *SnapshotCache) GetTasks() ([]models.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap == nil {
		return nil, false
	}

	// Age is compared at the millisecond precision of the stored timestamp;
	// nanosecond remainders must not push a boundary snapshot past the window.
	age := time.Duration(c.now().UnixMilli()-c.snap.Timestamp) * time.Millisecond
	if age > FreshnessWindow {
		observability.Emit(c.log, "INFO", observability.EventCacheExpired,
			"snapshot outlived freshness window, purging",
			map[string]any{"age_ms": age.Milliseconds()})
		c.snap = nil
		_ = c.store.Remove(snapshotKey)
		return nil, false
	}

	return models.CloneTasks(c.snap.Tasks), true
}

// Clear removes the in-memory and durable snapshot unconditionally. Called
// on logout and on fresh application start: a cache is never trusted across
// identity changes.
func (c *SnapshotCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = nil
	_ = c.store.Remove(snapshotKey)
}

// Flush re-persists the current in-memory snapshot. Wired to the shutdown
// path so the last state written before exit survives the next start.
func (c *SnapshotCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap != nil {
		c.persistLocked()
	}
}

func (c *SnapshotCache) persistLocked() {
	data, err := json.Marshal(c.snap)
	if err != nil {
		observability.Emit(c.log, "ERROR", observability.EventCacheCorrupt,
			"marshalling snapshot failed", map[string]any{"error": err.Error()})
		return
	}
	if err := c.store.Set(snapshotKey, string(data)); err != nil {
		observability.Emit(c.log, "ERROR", observability.EventCacheCorrupt,
			"persisting snapshot failed", map[string]any{"error": err.Error()})
	}
}
