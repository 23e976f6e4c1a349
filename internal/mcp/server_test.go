package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/taskmirror/internal/cache"
	"github.com/valter-silva-au/taskmirror/internal/notify"
	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/internal/sched"
	"github.com/valter-silva-au/taskmirror/internal/storage"
	"github.com/valter-silva-au/taskmirror/internal/store"
	"github.com/valter-silva-au/taskmirror/internal/syncer"
	"github.com/valter-silva-au/taskmirror/pkg/models"
)

type fakeMetricsCalculator struct {
	metrics *observability.Metrics
}

func (f *fakeMetricsCalculator) Calculate(_ time.Time) (*observability.Metrics, error) {
	return f.metrics, nil
}

// newTestServer builds a server over a real store and a channel whose
// transport never connects, so outbound mutations are refused.
func newTestServer(t *testing.T, tasks ...models.Task) (*Server, *store.TaskStore) {
	t.Helper()

	blobs, err := storage.NewFileBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating blob store: %v", err)
	}

	taskStore := store.NewTaskStore()
	taskStore.ReplaceAll(tasks)

	snapCache := cache.NewSnapshotCache(blobs, nil)
	reminders := sched.NewReminderScheduler(nil, taskStore, nil)
	dueTimes := sched.NewDueTimeScheduler(notify.NewNoopTriggerClient(), nil, taskStore, nil)
	t.Cleanup(func() {
		reminders.CancelAll()
		dueTimes.CancelAll()
	})

	channel := syncer.NewSyncChannel(
		syncer.NewTCPTransport("127.0.0.1:1"),
		taskStore, snapCache, reminders, dueTimes, nil, nil,
	)

	calc := &fakeMetricsCalculator{metrics: &observability.Metrics{
		SyncEventsReceived: 4,
		RemindersFired:     2,
		EventCount:         10,
	}}

	return NewServer(taskStore, channel, calc, "test"), taskStore
}

func sampleTasks() []models.Task {
	return []models.Task{
		{ID: "t1", Title: "pending one", Status: models.StatusPending, DueDate: "2026-09-01", CreatedAt: 1},
		{ID: "t2", Title: "done one", Status: models.StatusCompleted, CreatedAt: 2},
	}
}

// callTool connects an in-memory client to the server and calls a tool.
func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)

	t1, t2 := gomcp.NewInMemoryTransports()

	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      toolName,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}

	return result
}

func structuredContent(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	data, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshaling structured content: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshaling structured content: %v", err)
	}
}

func errorText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestListTasks_All(t *testing.T) {
	srv, _ := newTestServer(t, sampleTasks()...)

	result := callTool(t, srv, "list_tasks", map[string]any{})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", errorText(result))
	}

	var out listTasksOutput
	structuredContent(t, result, &out)
	if out.Count != 2 {
		t.Errorf("expected 2 tasks, got %d", out.Count)
	}
}

func TestListTasks_FilterByStatus(t *testing.T) {
	srv, _ := newTestServer(t, sampleTasks()...)

	result := callTool(t, srv, "list_tasks", map[string]any{"status": "pending"})
	var out listTasksOutput
	structuredContent(t, result, &out)

	if out.Count != 1 || out.Tasks[0].ID != "t1" {
		t.Errorf("unexpected filter result: %+v", out)
	}
}

func TestListTasks_InvalidStatus(t *testing.T) {
	srv, _ := newTestServer(t, sampleTasks()...)

	result := callTool(t, srv, "list_tasks", map[string]any{"status": "archived"})
	if !result.IsError {
		t.Fatal("expected an error result for an invalid status")
	}
	if !strings.Contains(errorText(result), "invalid status") {
		t.Errorf("unexpected error text: %s", errorText(result))
	}
}

func TestAddTask_RequiresTitle(t *testing.T) {
	srv, _ := newTestServer(t)

	result := callTool(t, srv, "add_task", map[string]any{"title": ""})
	if !result.IsError {
		t.Fatal("expected an error result for a missing title")
	}
}

func TestAddTask_RefusedWhileDisconnected(t *testing.T) {
	srv, taskStore := newTestServer(t)

	result := callTool(t, srv, "add_task", map[string]any{"title": "offline add"})
	if !result.IsError {
		t.Fatal("expected a refusal while disconnected")
	}
	if !strings.Contains(errorText(result), "not connected") {
		t.Errorf("unexpected error text: %s", errorText(result))
	}
	if taskStore.Len() != 0 {
		t.Error("refused add must not leave local state behind")
	}
}

func TestCompleteTask_UnknownID(t *testing.T) {
	srv, _ := newTestServer(t, sampleTasks()...)

	result := callTool(t, srv, "complete_task", map[string]any{"task_id": "nope"})
	if !result.IsError {
		t.Fatal("expected an error result for an unknown task")
	}
	if !strings.Contains(errorText(result), "not found") {
		t.Errorf("unexpected error text: %s", errorText(result))
	}
}

func TestGetMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	result := callTool(t, srv, "get_metrics", map[string]any{"since": "24h"})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", errorText(result))
	}

	var out metricsOutput
	structuredContent(t, result, &out)
	if out.SyncEventsReceived != 4 || out.RemindersFired != 2 || out.EventCount != 10 {
		t.Errorf("unexpected metrics: %+v", out)
	}
}

func TestGetMetrics_BadDuration(t *testing.T) {
	srv, _ := newTestServer(t)

	result := callTool(t, srv, "get_metrics", map[string]any{"since": "yesterday"})
	if !result.IsError {
		t.Fatal("expected an error result for a bad duration")
	}
}

func TestParseSince(t *testing.T) {
	now := time.Now().UTC()

	got, err := parseSince("7d")
	if err != nil {
		t.Fatalf("parsing 7d: %v", err)
	}
	if diff := now.AddDate(0, 0, -7).Sub(got); diff > time.Minute || diff < -time.Minute {
		t.Errorf("7d resolved to %v", got)
	}

	if _, err := parseSince("24h"); err != nil {
		t.Errorf("parsing 24h: %v", err)
	}
	for _, bad := range []string{"", "7", "7w", "xd"} {
		if _, err := parseSince(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
