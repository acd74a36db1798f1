// Package chatclient is the client side of the chat core: an HTTP client
// for the thread store, a realtime channel, and a conversation Session
// that reconciles the two into one ordered, de-duplicated message view.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

var (
	// ErrUnauthorized means the credential was missing, invalid or expired.
	// The stored credential has already been invalidated when this is
	// returned; callers must re-authenticate, not retry.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmptyContent mirrors the server-side validation error.
	ErrEmptyContent = errors.New("message content cannot be empty")
)

// NetworkError marks a recoverable transport failure (timeout, unreachable
// server) as distinct from validation and auth failures.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// AuthContext carries the caller's credential and identity. It is injected
// into the client, channel and session rather than read from ambient
// storage; Invalidate is the single renewal/invalidation hook.
type AuthContext struct {
	mu           sync.RWMutex
	token        string
	userID       string
	onInvalidate func()
}

func NewAuthContext(token, userID string, onInvalidate func()) *AuthContext {
	return &AuthContext{token: token, userID: userID, onInvalidate: onInvalidate}
}

func (a *AuthContext) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *AuthContext) UserID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

// Invalidate clears the credential and fires the hook once.
func (a *AuthContext) Invalidate() {
	a.mu.Lock()
	cleared := a.token != ""
	a.token = ""
	hook := a.onInvalidate
	a.mu.Unlock()
	if cleared && hook != nil {
		hook()
	}
}

// Thread is the wire shape of a persisted conversation.
type Thread struct {
	ID           string    `json:"_id"`
	Participants []string  `json:"participants"`
	Messages     []Message `json:"messages"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message is the wire shape of a persisted message.
type Message struct {
	ID            string    `json:"_id"`
	Sender        string    `json:"sender"`
	Content       string    `json:"content"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ThreadSummary is one row of the conversation list.
type ThreadSummary struct {
	ThreadID     string    `json:"threadId"`
	Peer         string    `json:"peer"`
	LastMessage  *Message  `json:"latestMessage,omitempty"`
	MessageCount int       `json:"messageCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// envelope is the canonical server response shape. decode is the single
// normalization boundary: nothing past it ever branches on response shape.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client calls the thread-store REST surface.
type Client struct {
	baseURL string
	auth    *AuthContext
	http    *http.Client
}

func NewClient(baseURL string, auth *AuthContext) *Client {
	return &Client{
		baseURL: baseURL,
		auth:    auth,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GetThread fetches (or creates) the thread with peerID. A brand-new
// thread comes back with an empty message list and a stable id.
func (c *Client) GetThread(ctx context.Context, peerID string) (*Thread, error) {
	var t Thread
	if err := c.do(ctx, http.MethodGet, "/v1/thread/"+peerID, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SendMessage persists one message and returns the updated thread.
func (c *Client) SendMessage(ctx context.Context, peerID, content, correlationID string) (*Thread, error) {
	body := map[string]string{"content": content, "correlationId": correlationID}
	var t Thread
	if err := c.do(ctx, http.MethodPost, "/v1/thread/"+peerID, body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListThreads returns the caller's conversations, most recent first.
func (c *Client) ListThreads(ctx context.Context) ([]ThreadSummary, error) {
	var out []ThreadSummary
	if err := c.do(ctx, http.MethodGet, "/v1/threads", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.auth.Token())

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &NetworkError{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.auth.Invalidate()
		return ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest:
		if env.Error == ErrEmptyContent.Error() {
			return ErrEmptyContent
		}
		return fmt.Errorf("validation: %s", env.Error)
	case resp.StatusCode >= 400:
		return fmt.Errorf("server: %d %s", resp.StatusCode, env.Error)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return err
		}
	}
	return nil
}
