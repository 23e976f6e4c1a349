package digest

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/valter-silva-au/taskmirror/internal/notify"
	"github.com/valter-silva-au/taskmirror/internal/observability"
	"github.com/valter-silva-au/taskmirror/internal/store"
	"github.com/valter-silva-au/taskmirror/pkg/models"
)

type captureNotifier struct {
	mu    sync.Mutex
	shown []notify.Options
}

func (n *captureNotifier) Show(title string, opts notify.Options) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, opts)
	return nil
}

type failingNotifier struct{}

func (failingNotifier) Show(string, notify.Options) error {
	return errors.New("notification backend down")
}

func TestDigest_SummaryEmptyWhenNothingPending(t *testing.T) {
	s := store.NewTaskStore()
	s.ReplaceAll([]models.Task{{ID: "a", Status: models.StatusCompleted}})

	d := NewDigest(s, &captureNotifier{}, nil)
	if got := d.Summary(); got != "" {
		t.Errorf("expected empty summary, got %q", got)
	}
}

func TestDigest_SummaryOrdersBySoonestDue(t *testing.T) {
	s := store.NewTaskStore()
	s.ReplaceAll([]models.Task{
		{ID: "later", Title: "later", Status: models.StatusPending, DueDate: "2026-09-03", DueTime: "09:00"},
		{ID: "none", Title: "undated", Status: models.StatusPending},
		{ID: "soon", Title: "soon", Status: models.StatusPending, DueDate: "2026-09-01", DueTime: "08:00"},
	})

	d := NewDigest(s, &captureNotifier{}, nil)
	d.now = func() time.Time { return time.Date(2026, 8, 31, 7, 0, 0, 0, time.Local) }

	lines := strings.Split(d.Summary(), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 lines, got %d: %q", len(lines), lines)
	}
	if !strings.Contains(lines[1], "soon") {
		t.Errorf("expected soonest task first, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "later") {
		t.Errorf("expected later task second, got %q", lines[2])
	}
	if !strings.Contains(lines[3], "undated") {
		t.Errorf("expected undated task last, got %q", lines[3])
	}
}

func TestDigest_SummaryFlagsOverdue(t *testing.T) {
	s := store.NewTaskStore()
	s.ReplaceAll([]models.Task{
		{ID: "late", Title: "late", Status: models.StatusPending, DueDate: "2026-08-30", DueTime: "09:00"},
	})

	d := NewDigest(s, &captureNotifier{}, nil)
	d.now = func() time.Time { return time.Date(2026, 8, 31, 7, 0, 0, 0, time.Local) }

	if got := d.Summary(); !strings.Contains(got, "overdue") {
		t.Errorf("expected overdue flag, got %q", got)
	}
}

func TestDigest_DeliverSkipsEmptySummary(t *testing.T) {
	s := store.NewTaskStore()
	notifier := &captureNotifier{}
	d := NewDigest(s, notifier, nil)

	d.deliver()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.shown) != 0 {
		t.Error("an empty task list must not produce a digest notification")
	}
}

func TestDigest_DeliverNotifies(t *testing.T) {
	s := store.NewTaskStore()
	s.ReplaceAll([]models.Task{{ID: "a", Title: "thing", Status: models.StatusPending}})
	notifier := &captureNotifier{}
	d := NewDigest(s, notifier, nil)

	d.deliver()

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.shown) != 1 {
		t.Fatalf("expected one digest notification, got %d", len(notifier.shown))
	}
	if notifier.shown[0].Tag != "daily-digest" {
		t.Errorf("expected the digest tag, got %q", notifier.shown[0].Tag)
	}
}

func TestDigest_DeliverFailureLogged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := observability.NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	defer log.Close()

	s := store.NewTaskStore()
	s.ReplaceAll([]models.Task{{ID: "a", Title: "thing", Status: models.StatusPending}})
	d := NewDigest(s, &failingNotifier{}, log)

	d.deliver()

	events, err := log.Read(observability.EventFilter{Type: observability.EventDigestFailed})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one delivery-failure event, got %d", len(events))
	}
	if events[0].Level != "WARN" {
		t.Errorf("expected WARN level, got %s", events[0].Level)
	}
}

func TestBuildDailySpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "08:00", want: "0 0 8 * * *"},
		{in: "23:59", want: "0 59 23 * * *"},
		{in: "8", wantErr: true},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}

	for _, tt := range tests {
		got, err := buildDailySpec(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestDigest_StartRejectsBadTime(t *testing.T) {
	d := NewDigest(store.NewTaskStore(), &captureNotifier{}, nil)
	if err := d.Start("25:00"); err == nil {
		t.Error("expected an error for an invalid delivery time")
	}
}
