package models

import "time"

// TaskStatus represents the lifecycle state of a task. Completed is terminal:
// a completed task never holds a live reminder or due-time timer.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
)

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Date and time-of-day layouts used on the wire and in the cache. Times of
// day are interpreted in the local timezone.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// DefaultMimeType is the document type assigned to tasks whose stored
// metadata is missing one.
const DefaultMimeType = "application/vnd.taskmirror.task"

// Attachment is an opaque reference to a blob in the authoritative store,
// plus display metadata.
type Attachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Comment is a single entry in a task's append-only comment list.
type Comment struct {
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// Task is the central entity mirrored from the authoritative document store.
// ID is assigned by the store; a task created locally carries an empty ID
// until the server echo supplies one.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// ClientToken correlates an optimistic local entry with its server echo.
	// Generated client-side on add; servers that echo it back let the client
	// replace the provisional entry instead of accumulating a duplicate.
	ClientToken string `json:"clientToken,omitempty"`

	// DueDate is a calendar date in DateLayout; DueTime a time of day in
	// TimeLayout. Both optional. ReminderOffsetMinutes is only meaningful
	// when DueDate is set.
	DueDate               string `json:"dueDate,omitempty"`
	DueTime               string `json:"dueTime,omitempty"`
	ReminderOffsetMinutes int    `json:"reminderOffsetMinutes,omitempty"`

	// CreatedAt is epoch milliseconds, set once at creation and immutable.
	CreatedAt int64 `json:"createdAt"`

	Status    TaskStatus `json:"status"`
	Priority  Priority   `json:"priority,omitempty"`
	IsPinned  bool       `json:"isPinned,omitempty"`
	IsStarred bool       `json:"isStarred,omitempty"`
	MimeType  string     `json:"mimeType,omitempty"`

	Tags          []string     `json:"tags"`
	Categories    []string     `json:"categories"`
	Collaborators []string     `json:"collaborators"`
	Attachments   []Attachment `json:"attachments"`
	Comments      []Comment    `json:"comments"`
}

// Completed reports whether the task is in a terminal state.
func (t *Task) Completed() bool {
	return t.Status == StatusCompleted
}

// Normalize repairs malformed or missing fields in place and returns the
// names of the fields it had to default. A bad field never discards the
// task; callers are expected to log the returned corrections.
func (t *Task) Normalize() []string {
	var fixed []string

	switch t.Status {
	case StatusPending, StatusCompleted:
	default:
		t.Status = StatusPending
		fixed = append(fixed, "status")
	}

	if t.MimeType == "" {
		t.MimeType = DefaultMimeType
		fixed = append(fixed, "mimeType")
	}

	if t.DueDate != "" {
		if _, err := time.ParseInLocation(DateLayout, t.DueDate, time.Local); err != nil {
			t.DueDate = ""
			t.DueTime = ""
			fixed = append(fixed, "dueDate")
		}
	}
	if t.DueTime != "" {
		if _, err := time.Parse(TimeLayout, t.DueTime); err != nil {
			t.DueTime = ""
			fixed = append(fixed, "dueTime")
		}
	}
	if t.ReminderOffsetMinutes < 0 {
		t.ReminderOffsetMinutes = 0
		fixed = append(fixed, "reminderOffsetMinutes")
	}

	if t.Tags == nil {
		t.Tags = []string{}
		fixed = append(fixed, "tags")
	}
	if t.Categories == nil {
		t.Categories = []string{}
		fixed = append(fixed, "categories")
	}
	if t.Collaborators == nil {
		t.Collaborators = []string{}
		fixed = append(fixed, "collaborators")
	}
	if t.Attachments == nil {
		t.Attachments = []Attachment{}
		fixed = append(fixed, "attachments")
	}
	if t.Comments == nil {
		t.Comments = []Comment{}
		fixed = append(fixed, "comments")
	}

	return fixed
}

// Clone returns a deep copy of the task. Collection fields are copied so the
// original cannot be mutated through the returned value.
func (t Task) Clone() Task {
	cp := t
	cp.Tags = append([]string(nil), t.Tags...)
	cp.Categories = append([]string(nil), t.Categories...)
	cp.Collaborators = append([]string(nil), t.Collaborators...)
	cp.Attachments = append([]Attachment(nil), t.Attachments...)
	cp.Comments = append([]Comment(nil), t.Comments...)
	return cp
}

// CloneTasks deep-copies a task slice.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i := range tasks {
		out[i] = tasks[i].Clone()
	}
	return out
}
