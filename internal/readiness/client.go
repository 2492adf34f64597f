// Package readiness pulls operational readiness items from an external feed
// and converts them into typed action-item candidates. The feed is advisory;
// callers degrade to phase-derived items when it is unreachable.
package readiness

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"callsheet/internal/config"
)

const defaultTimeout = 10 * time.Second

// Item is one readiness entry after boundary conversion. Priority is
// normalized to critical, important or optional.
type Item struct {
	Area     string `json:"area"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	Priority string `json:"priority"`
	Done     bool   `json:"done"`
}

// Snapshot is the feed state for one project at fetch time.
type Snapshot struct {
	ProjectID string    `json:"projectId"`
	FetchedAt time.Time `json:"fetchedAt"`
	Items     []Item    `json:"items"`
}

type Client struct {
	Config config.ReadinessConfig
	HTTP   *http.Client
	Logger *slog.Logger
	Now    func() time.Time
}

func NewClient(cfg config.ReadinessConfig, logger *slog.Logger) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		Config: cfg,
		HTTP:   &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// Enabled reports whether a feed URL is configured at all.
func (c *Client) Enabled() bool {
	return c != nil && strings.TrimSpace(c.Config.URL) != ""
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// feedItem is the feed's loose wire shape before normalization.
type feedItem struct {
	Area     string `json:"area"`
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Priority string `json:"priority"`
	Done     bool   `json:"done"`
}

type feedResponse struct {
	Items []feedItem `json:"items"`
}

// Fetch retrieves and normalizes the readiness items for one project.
func (c *Client) Fetch(ctx context.Context, projectID string) (Snapshot, error) {
	snap := Snapshot{ProjectID: projectID, FetchedAt: c.now().UTC()}
	if !c.Enabled() {
		return snap, fmt.Errorf("readiness feed not configured")
	}
	url := strings.TrimRight(c.Config.URL, "/") + "/projects/" + projectID + "/readiness"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snap, err
	}
	token, err := c.serviceToken()
	if err != nil {
		return snap, fmt.Errorf("mint service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return snap, fmt.Errorf("readiness feed returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return snap, fmt.Errorf("decode readiness response: %w", err)
	}
	for _, raw := range payload.Items {
		if strings.TrimSpace(raw.Title) == "" {
			continue
		}
		snap.Items = append(snap.Items, Item{
			Area:     strings.ToLower(strings.TrimSpace(raw.Area)),
			Title:    strings.TrimSpace(raw.Title),
			Detail:   strings.TrimSpace(raw.Detail),
			Priority: normalizePriority(raw.Priority),
			Done:     raw.Done,
		})
	}
	return snap, nil
}

// serviceToken mints a short-lived HS256 token identifying this service to
// the feed.
func (c *Client) serviceToken() (string, error) {
	if strings.TrimSpace(c.Config.TokenSecret) == "" {
		return "", fmt.Errorf("readiness token secret not configured")
	}
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.Config.Issuer,
		Subject:   "callsheet",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.Config.TokenSecret))
}

func normalizePriority(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "blocker", "high":
		return "critical"
	case "important", "medium":
		return "important"
	default:
		return "optional"
	}
}
