package todoist

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the Todoist API base URL.
	DefaultBaseURL = "https://api.todoist.com"

	syncPath = "/sync/v9/sync"
)

// command is one pending mutation in a sync batch. The server echoes the
// command uuid in sync_status and resolves temp_id to the real id for adds.
type command struct {
	Type   string                 `json:"type"`
	UUID   string                 `json:"uuid"`
	TempID string                 `json:"temp_id,omitempty"`
	Args   map[string]interface{} `json:"args"`
}

// project and item are the wire shapes of the sync resources this provider
// consumes.
type project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     int    `json:"color"`
	IsDeleted bool   `json:"is_deleted"`
}

type item struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Content     string `json:"content"`
	Description string `json:"description"`
	Checked     bool   `json:"checked"`
	Priority    int    `json:"priority"`
	DueDateUTC  string `json:"due_date_utc,omitempty"`
	IsDeleted   bool   `json:"is_deleted"`
}

type syncResponse struct {
	Projects      []project                  `json:"projects"`
	Items         []item                     `json:"items"`
	TempIDMapping map[string]string          `json:"temp_id_mapping"`
	SyncStatus    map[string]json.RawMessage `json:"sync_status"`
}

// client batches mutations locally and flushes them with an explicit commit,
// matching the sync API's client-side batching model.
type client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	pending    []command
}

func newClient(token, baseURL string, timeout time.Duration) *client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
	}
}

// queue appends a command to the pending batch and returns its uuid. Nothing
// reaches the server until commit.
func (c *client) queue(cmdType, tempID string, args map[string]interface{}) string {
	id := uuid.New().String()
	c.pending = append(c.pending, command{
		Type:   cmdType,
		UUID:   id,
		TempID: tempID,
		Args:   args,
	})
	return id
}

// post performs one sync request with the given form values.
func (c *client) post(ctx context.Context, form url.Values) (*syncResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+syncPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("authentication failed: invalid API token")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sync request failed: status %d", resp.StatusCode)
	}

	var sr syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// read pulls all projects and items. Reads are idempotent, so a transport
// failure is retried once before being reported.
func (c *client) read(ctx context.Context) (*syncResponse, error) {
	form := url.Values{
		"sync_token":     {"*"},
		"resource_types": {`["projects","items"]`},
	}

	sr, err := c.post(ctx, form)
	if err == nil {
		return sr, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	return c.post(ctx, form)
}

// commit flushes the pending batch. The batch is consumed whether or not the
// server accepts it: a rejected operation is reported to the caller, never
// silently retried. On success the returned map resolves temp ids to
// server-assigned ids.
func (c *client) commit(ctx context.Context) (map[string]string, error) {
	if len(c.pending) == 0 {
		return nil, nil
	}
	batch := c.pending
	c.pending = nil

	encoded, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}

	sr, err := c.post(ctx, url.Values{"commands": {string(encoded)}})
	if err != nil {
		return nil, err
	}

	for _, cmd := range batch {
		status, ok := sr.SyncStatus[cmd.UUID]
		if !ok {
			return nil, fmt.Errorf("commit: no status for %s command", cmd.Type)
		}
		if string(status) != `"ok"` {
			return nil, fmt.Errorf("commit: %s command rejected: %s", cmd.Type, status)
		}
	}
	return sr.TempIDMapping, nil
}
