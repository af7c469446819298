// Package reporter talks to the scoring service: account helpers and
// submission of finished sessions.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fentz26/reflex/internal/models"
	"github.com/fentz26/reflex/internal/trial"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the scoring service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the service address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type usernameRequest struct {
	Username string `json:"username"`
}

type updateRequest struct {
	Username     string  `json:"username"`
	ReactionTime float64 `json:"reactionTime"`
}

type loginResponse struct {
	Username     string   `json:"username"`
	ReactionTime *float64 `json:"reactionTime"`
}

// UpdateAck is the service's acknowledgment of a score update.
type UpdateAck struct {
	Message      string   `json:"message"`
	ReactionTime *float64 `json:"reactionTime,omitempty"`
	Improved     bool     `json:"improved"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register creates an account for username.
func (c *Client) Register(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}

	status, body, err := c.post(ctx, "/register", usernameRequest{Username: username})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return newServiceError(status, body, "Registration failed")
	}
	return nil
}

// Login looks up username and returns an authenticated identity carrying the
// best time the service knows about.
func (c *Client) Login(ctx context.Context, username string) (*Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	status, body, err := c.post(ctx, "/login", usernameRequest{Username: username})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, newServiceError(status, body, "Login failed"))
	}

	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrLoginFailed, err)
	}

	id := &Identity{Username: username, LoggedIn: true}
	if resp.ReactionTime != nil {
		best := trial.FromMillis(*resp.ReactionTime)
		id.BestTime = &best
	}
	return id, nil
}

// UpdateScore sends a session average for username.
func (c *Client) UpdateScore(ctx context.Context, username string, average time.Duration) (*UpdateAck, error) {
	status, body, err := c.post(ctx, "/update", updateRequest{
		Username:     username,
		ReactionTime: trial.Millis(average),
	})
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, newServiceError(status, body, "Server responded with an error")
	}

	var ack UpdateAck
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &ack); err != nil {
			return nil, fmt.Errorf("decode update response: %w", err)
		}
	}
	return &ack, nil
}

// Health reports whether the service answers its health check.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return newServiceError(resp.StatusCode, body, "health check failed")
	}
	return nil
}

// Audit fetches the service's audit trail for username, newest first. An
// empty username returns every entry.
func (c *Client) Audit(ctx context.Context, username string) ([]models.AuditEntry, error) {
	endpoint := c.baseURL + "/audit"
	if username = strings.TrimSpace(username); username != "" {
		endpoint += "?username=" + url.QueryEscape(username)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newServiceError(resp.StatusCode, body, "audit query failed")
	}

	var entries []models.AuditEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode audit entries: %w", err)
	}
	return entries, nil
}

func (c *Client) post(ctx context.Context, path string, data any) (int, []byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func newServiceError(status int, body []byte, fallback string) *ServiceError {
	var msg messageResponse
	if err := json.Unmarshal(body, &msg); err != nil || msg.Message == "" {
		msg.Message = fallback
	}
	return &ServiceError{Status: status, Message: msg.Message}
}

// IsConflict reports whether err is a 409 from the service.
func IsConflict(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Status == http.StatusConflict
}
