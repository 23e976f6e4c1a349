// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the mirrored task list and its mutations as MCP tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/internal/store"
	"github.com/valter-silva-au/taskmirror/internal/syncer"
	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// Server wraps the task store and sync channel and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	store       *store.TaskStore
	channel     *syncer.SyncChannel
	metricsCalc observability.MetricsCalculator
}

// NewServer creates a new MCP server. metricsCalc may be nil if
// observability is disabled.
func NewServer(taskStore *store.TaskStore, channel *syncer.SyncChannel, metricsCalc observability.MetricsCalculator, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		store:       taskStore,
		channel:     channel,
		metricsCalc: metricsCalc,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "taskmirror", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listTasksInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter tasks by status (pending, completed)"`
}

type taskOutput struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Description           string   `json:"description,omitempty"`
	DueDate               string   `json:"due_date,omitempty"`
	DueTime               string   `json:"due_time,omitempty"`
	ReminderOffsetMinutes int      `json:"reminder_offset_minutes,omitempty"`
	Status                string   `json:"status"`
	Priority              string   `json:"priority,omitempty"`
	Created               string   `json:"created"`
	Tags                  []string `json:"tags,omitempty"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type addTaskInput struct {
	Title                 string `json:"title" jsonschema:"required,the task title"`
	Description           string `json:"description,omitempty" jsonschema:"optional task description"`
	DueDate               string `json:"due_date,omitempty" jsonschema:"optional due date in YYYY-MM-DD"`
	DueTime               string `json:"due_time,omitempty" jsonschema:"optional due time of day in HH:MM"`
	ReminderOffsetMinutes int    `json:"reminder_offset_minutes,omitempty" jsonschema:"minutes before the due instant to remind"`
	Priority              string `json:"priority,omitempty" jsonschema:"task priority (low, medium, high)"`
}

type addTaskOutput struct {
	Message string `json:"message"`
}

type completeTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"required,the unique task identifier"`
}

type completeTaskOutput struct {
	Message string `json:"message"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	SyncEventsReceived    int    `json:"sync_events_received"`
	SyncStateChanges      int    `json:"sync_state_changes"`
	SyncRefusals          int    `json:"sync_refusals"`
	ServerTaskErrors      int    `json:"server_task_errors"`
	RemindersScheduled    int    `json:"reminders_scheduled"`
	RemindersFired        int    `json:"reminders_fired"`
	RemindersSkipped      int    `json:"reminders_skipped"`
	DueTriggersScheduled  int    `json:"due_triggers_scheduled"`
	DueTriggersDispatched int    `json:"due_triggers_dispatched"`
	DueTriggerFailures    int    `json:"due_trigger_failures"`
	FieldsDefaulted       int    `json:"fields_defaulted"`
	CacheExpiries         int    `json:"cache_expiries"`
	EventCount            int    `json:"event_count"`
	OldestEvent           string `json:"oldest_event,omitempty"`
	NewestEvent           string `json:"newest_event,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List the mirrored tasks, optionally filtered by status (pending, completed).",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_task",
		Description: "Create a task on the sync server. Requires a live connection; refused while disconnected.",
	}, s.handleAddTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "complete_task",
		Description: "Mark a task completed on the sync server. Requires a live connection; refused while disconnected.",
	}, s.handleCompleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Aggregate sync and scheduling metrics from the event log over a time window.",
	}, s.handleGetMetrics)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(_ context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	if input.Status != "" && input.Status != string(models.StatusPending) && input.Status != string(models.StatusCompleted) {
		return errorResult(fmt.Sprintf("invalid status %q: must be pending or completed", input.Status)), listTasksOutput{}, nil
	}

	out := listTasksOutput{Tasks: []taskOutput{}}
	for _, t := range s.store.All() {
		if input.Status != "" && string(t.Status) != input.Status {
			continue
		}
		out.Tasks = append(out.Tasks, taskToOutput(t))
	}
	out.Count = len(out.Tasks)

	return nil, out, nil
}

func (s *Server) handleAddTask(_ context.Context, _ *gomcp.CallToolRequest, input addTaskInput) (*gomcp.CallToolResult, addTaskOutput, error) {
	if input.Title == "" {
		return errorResult("title is required"), addTaskOutput{}, nil
	}

	task := models.Task{
		Title:                 input.Title,
		Description:           input.Description,
		DueDate:               input.DueDate,
		DueTime:               input.DueTime,
		ReminderOffsetMinutes: input.ReminderOffsetMinutes,
		Priority:              models.Priority(input.Priority),
		Status:                models.StatusPending,
	}

	if err := s.channel.AddTask(task); err != nil {
		return errorResult(fmt.Sprintf("adding task: %s", err)), addTaskOutput{}, nil
	}

	return nil, addTaskOutput{Message: fmt.Sprintf("task %q submitted", input.Title)}, nil
}

func (s *Server) handleCompleteTask(_ context.Context, _ *gomcp.CallToolRequest, input completeTaskInput) (*gomcp.CallToolResult, completeTaskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), completeTaskOutput{}, nil
	}

	task, ok := s.store.Get(input.TaskID)
	if !ok {
		return errorResult(fmt.Sprintf("task %s not found", input.TaskID)), completeTaskOutput{}, nil
	}

	task.Status = models.StatusCompleted
	if err := s.channel.UpdateTask(task); err != nil {
		return errorResult(fmt.Sprintf("completing task %s: %s", input.TaskID, err)), completeTaskOutput{}, nil
	}

	return nil, completeTaskOutput{Message: fmt.Sprintf("task %s marked completed", input.TaskID)}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), metricsOutput{}, nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), metricsOutput{}, nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), metricsOutput{}, nil
	}

	out := metricsOutput{
		SyncEventsReceived:    metrics.SyncEventsReceived,
		SyncStateChanges:      metrics.SyncStateChanges,
		SyncRefusals:          metrics.SyncRefusals,
		ServerTaskErrors:      metrics.ServerTaskErrors,
		RemindersScheduled:    metrics.RemindersScheduled,
		RemindersFired:        metrics.RemindersFired,
		RemindersSkipped:      metrics.RemindersSkipped,
		DueTriggersScheduled:  metrics.DueTriggersScheduled,
		DueTriggersDispatched: metrics.DueTriggersDispatched,
		DueTriggerFailures:    metrics.DueTriggerFailures,
		FieldsDefaulted:       metrics.FieldsDefaulted,
		CacheExpiries:         metrics.CacheExpiries,
		EventCount:            metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

// --- Helpers ---

func taskToOutput(t models.Task) taskOutput {
	return taskOutput{
		ID:                    t.ID,
		Title:                 t.Title,
		Description:           t.Description,
		DueDate:               t.DueDate,
		DueTime:               t.DueTime,
		ReminderOffsetMinutes: t.ReminderOffsetMinutes,
		Status:                string(t.Status),
		Priority:              string(t.Priority),
		Created:               time.UnixMilli(t.CreatedAt).Format(time.RFC3339),
		Tags:                  t.Tags,
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or
// "24h" into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
