// Package notify delivers user-visible notifications and the due-time
// trigger side effect. Local notifications sit behind a permission gate that
// is requested once at application start; when permission is denied, firing
// degrades to a logged no-op instead of an error.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/valter-silva-au/taskmirror/internal/observability"
)

// Permission is the outcome of a notification permission request.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// Options carries the body and the stable per-task tag of a notification.
// Re-showing a notification with the same tag replaces the earlier one
// instead of stacking a duplicate.
type Options struct {
	Body string `json:"body"`
	Tag  string `json:"tag,omitempty"`
}

// Notifier shows a user-visible notification.
type Notifier interface {
	Show(title string, opts Options) error
}

// PermissionGate memoizes a single permission request for the process
// lifetime.
type PermissionGate struct {
	mu      sync.Mutex
	asked   bool
	state   Permission
	request func() Permission
}

// NewPermissionGate creates a gate around the given permission request
// function.
func NewPermissionGate(request func() Permission) *PermissionGate {
	return &PermissionGate{request: request}
}

// Request asks for permission on first call and returns the memoized answer
// thereafter.
func (g *PermissionGate) Request() Permission {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.asked {
		g.asked = true
		g.state = g.request()
	}
	return g.state
}

// Granted reports whether permission has been requested and granted.
func (g *PermissionGate) Granted() bool {
	return g.Request() == PermissionGranted
}

// gatedNotifier suppresses delivery when the permission gate is not granted.
type gatedNotifier struct {
	gate  *PermissionGate
	inner Notifier
	log   observability.EventLog
}

// NewGatedNotifier wraps a notifier with the permission gate. Suppressed
// notifications are logged and never surface an error.
func NewGatedNotifier(gate *PermissionGate, inner Notifier, log observability.EventLog) Notifier {
	return &gatedNotifier{gate: gate, inner: inner, log: log}
}

func (n *gatedNotifier) Show(title string, opts Options) error {
	if !n.gate.Granted() {
		observability.Emit(n.log, "WARN", observability.EventNotifySuppressed,
			"notification suppressed, permission not granted",
			map[string]any{"title": title, "tag": opts.Tag})
		return nil
	}
	return n.inner.Show(title, opts)
}

// consoleNotifier writes notifications to a terminal stream.
type consoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleNotifier creates a Notifier that prints to the given writer.
func NewConsoleNotifier(out io.Writer) Notifier {
	return &consoleNotifier{out: out}
}

func (n *consoleNotifier) Show(title string, opts Options) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, err := fmt.Fprintf(n.out, "\a[%s] %s\n", title, opts.Body); err != nil {
		return fmt.Errorf("writing console notification: %w", err)
	}
	return nil
}

// webhookNotifier posts notifications as JSON to a configured webhook URL.
type webhookNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookNotifier creates a Notifier that POSTs each notification to the
// given webhook URL.
func NewWebhookNotifier(webhookURL string) Notifier {
	return &webhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{},
	}
}

type webhookMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

func (n *webhookNotifier) Show(title string, opts Options) error {
	body, err := json.Marshal(webhookMessage{Title: title, Body: opts.Body, Tag: opts.Tag})
	if err != nil {
		return fmt.Errorf("marshaling webhook notification: %w", err)
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting to notification webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// multiNotifier fans a notification out to several sinks.
type multiNotifier struct {
	sinks []Notifier
}

// NewMultiNotifier creates a Notifier that delivers to every given sink and
// returns the first delivery error, after attempting all sinks.
func NewMultiNotifier(sinks ...Notifier) Notifier {
	return &multiNotifier{sinks: sinks}
}

func (n *multiNotifier) Show(title string, opts Options) error {
	var first error
	for _, sink := range n.sinks {
		if err := sink.Show(title, opts); err != nil && first == nil {
			first = err
		}
	}
	return first
}
