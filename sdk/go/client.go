package callsheetsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Callsheet HTTP API client.
type Client struct {
	BaseURL    string
	ProjectID  string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Project represents the API project model (partial).
type Project struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	Phase                  string  `json:"phase"`
	PhaseUpdatedAt         string  `json:"phase_updated_at"`
	Timezone               *string `json:"timezone,omitempty"`
	RehearsalStartDate     *string `json:"rehearsal_start_date,omitempty"`
	ShowEndDate            *string `json:"show_end_date,omitempty"`
	AutoTransitionsEnabled bool    `json:"auto_transitions_enabled"`
}

// Evaluation is the transition evaluation for a project's current phase.
type Evaluation struct {
	ProjectID     string   `json:"project_id"`
	CurrentPhase  string   `json:"current_phase"`
	TargetPhase   *string  `json:"target_phase,omitempty"`
	CanTransition bool     `json:"can_transition"`
	Blockers      []string `json:"blockers,omitempty"`
	Reason        string   `json:"reason"`
	ScheduledAt   *string  `json:"scheduled_at,omitempty"`
}

// ActionItem is one entry on the operator to-do list.
type ActionItem struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	Description           string `json:"description,omitempty"`
	Category              string `json:"category"`
	Priority              string `json:"priority"`
	Completed             bool   `json:"completed"`
	RequiredForTransition bool   `json:"required_for_transition"`
}

// ActionItemList wraps items with summary counts.
type ActionItemList struct {
	ProjectID string       `json:"projectId"`
	Phase     string       `json:"phase"`
	Items     []ActionItem `json:"items"`
	Summary   struct {
		Total     int `json:"total"`
		Completed int `json:"completed"`
		Pending   int `json:"pending"`
		Required  int `json:"required"`
	} `json:"summary"`
}

// AuditEntry is one audit log record.
type AuditEntry struct {
	ID          int64          `json:"id"`
	ActionType  string         `json:"action_type"`
	ProjectID   string         `json:"project_id,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   string         `json:"timestamp"`
	TriggeredBy string         `json:"triggered_by"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// GetProject fetches the project.
func (c *Client) GetProject(ctx context.Context) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, c.projectPath(""), nil, &resp)
	return resp, err
}

// Evaluate returns the current transition evaluation.
func (c *Client) Evaluate(ctx context.Context) (Evaluation, error) {
	var resp Evaluation
	err := c.do(ctx, http.MethodGet, c.projectPath("phase/evaluation"), nil, &resp)
	return resp, err
}

// Advance requests a transition to the target phase.
func (c *Client) Advance(ctx context.Context, targetPhase string) (Project, error) {
	body := map[string]any{"target_phase": targetPhase}
	var resp Project
	err := c.do(ctx, http.MethodPost, c.projectPath("phase/transitions"), body, &resp)
	return resp, err
}

// ActionItems lists the current phase's action items.
func (c *Client) ActionItems(ctx context.Context, includeReadiness bool) (ActionItemList, error) {
	endpoint := c.projectPath("action-items")
	if includeReadiness {
		endpoint += "?include_readiness=true"
	}
	var resp ActionItemList
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AuditLog returns recent audit entries for the project.
func (c *Client) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	endpoint := fmt.Sprintf("v0/audit-log?project_id=%s", url.QueryEscape(c.ProjectID))
	if limit > 0 {
		endpoint = fmt.Sprintf("%s&limit=%d", endpoint, limit)
	}
	var resp []AuditEntry
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetChecklistFlag sets a single setup-checklist flag by JSON field name.
func (c *Client) SetChecklistFlag(ctx context.Context, field string, value bool) error {
	body := map[string]any{field: value}
	return c.do(ctx, http.MethodPatch, c.projectPath("checklist"), body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	if p == "" {
		return fmt.Sprintf("v0/projects/%s", project)
	}
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
