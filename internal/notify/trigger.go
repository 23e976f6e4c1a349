package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/valter-silva-au/taskmirror/pkg/models"
)

// TriggerClient dispatches the remote due-time side effect (for example the
// "send due email" call) for a task that has just reached its due instant.
type TriggerClient interface {
	DueNow(task models.Task, email string) error
}

type httpTriggerClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPTriggerClient creates a TriggerClient that POSTs the due payload to
// the given endpoint.
func NewHTTPTriggerClient(endpoint string) TriggerClient {
	return &httpTriggerClient{
		endpoint: endpoint,
		client:   &http.Client{},
	}
}

// noopTriggerClient discards dispatches. Used when no trigger endpoint is
// configured.
type noopTriggerClient struct{}

// NewNoopTriggerClient creates a TriggerClient that accepts every dispatch
// without side effects.
func NewNoopTriggerClient() TriggerClient {
	return noopTriggerClient{}
}

func (noopTriggerClient) DueNow(models.Task, string) error { return nil }

type duePayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"dueDate"`
	DueTime     string `json:"dueTime,omitempty"`
	Email       string `json:"email"`
}

func (c *httpTriggerClient) DueNow(task models.Task, email string) error {
	body, err := json.Marshal(duePayload{
		Title:       task.Title,
		Description: task.Description,
		DueDate:     task.DueDate,
		DueTime:     task.DueTime,
		Email:       email,
	})
	if err != nil {
		return fmt.Errorf("marshaling due trigger payload: %w", err)
	}

	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("posting due trigger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("due trigger endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
