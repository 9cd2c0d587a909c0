package rest

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

	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
	"go.uber.org/zap"
)

// APIError is a non-2xx response from the coordination server.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

// Client talks to the coordination server's REST API. All calls carry
// the caller-supplied bearer token; the client holds no credentials of
// its own.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a REST client for the given base URL (the /api
// prefix is appended per call).
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// Conversations fetches the caller's conversation list.
func (c *Client) Conversations(ctx context.Context, token string) ([]store.Conversation, error) {
	var out []store.Conversation
	if err := c.do(ctx, token, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// OnlineUsers fetches the ids of users currently online.
func (c *Client) OnlineUsers(ctx context.Context, token string) ([]string, error) {
	var out struct {
		Online []string `json:"online"`
	}
	if err := c.do(ctx, token, http.MethodGet, "/api/presence/online", nil, &out); err != nil {
		return nil, fmt.Errorf("list online users: %w", err)
	}
	return out.Online, nil
}

// Messages fetches the message history for one conversation.
func (c *Client) Messages(ctx context.Context, token, conversationID string) ([]store.Message, error) {
	path := "/api/messages?conversationId=" + url.QueryEscape(conversationID)
	var out []store.Message
	if err := c.do(ctx, token, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list messages for %s: %w", conversationID, err)
	}
	return out, nil
}

// CreateConversationRequest is the typed create payload. Kind-specific
// validation happens in the sync engine before this hits the wire.
type CreateConversationRequest struct {
	Type           store.ConversationType `json:"type"`
	MemberIDs      []string               `json:"memberIds"`
	Name           string                 `json:"name,omitempty"`
	Description    string                 `json:"description,omitempty"`
	OrganizationID string                 `json:"organizationId,omitempty"`
}

// CreateConversation creates a conversation and returns the server's
// record of it (including the caller as a member).
func (c *Client) CreateConversation(ctx context.Context, token string, req CreateConversationRequest) (store.Conversation, error) {
	var out store.Conversation
	if err := c.do(ctx, token, http.MethodPost, "/api/conversations", req, &out); err != nil {
		return store.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, token, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("api request failed",
			zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
