package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// Client talks to a running kotae server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Ask posts a question to /api/v1/ask.
func (c *Client) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out models.AskResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/ask", bytes.NewReader(body), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns the turns of a session.
func (c *Client) History(ctx context.Context, sessionID string) (*models.HistoryResponse, error) {
	var out models.HistoryResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/history", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcripts returns up to limit persisted turns of a session (all when limit <= 0).
func (c *Client) Transcripts(ctx context.Context, sessionID string, limit int) (*models.TranscriptResponse, error) {
	path := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/transcripts"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out models.TranscriptResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetSession forgets a session on the server.
func (c *Client) ResetSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(sessionID), nil, nil)
}

// Status returns the server's knowledge base status.
func (c *Client) Status(ctx context.Context) (*models.Status, error) {
	var out models.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ServerError is a non-2xx answer from the server.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(b))
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &ServerError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
