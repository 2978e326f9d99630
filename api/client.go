// Package api is the request/response client for the messenger backend.
// The push channel lives in package socket; this package covers the four
// REST calls the client consumes, with a bounded timeout per call and a
// bearer credential taken from the injected session context.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"oldschool-messanger/models"
)

// DefaultRequestTimeout bounds each API call when no override is given.
const DefaultRequestTimeout = 30 * time.Second

// ErrServerRejected indicates the server answered with a non-success
// status. The wrapped text carries the server-provided message when one
// was present.
var ErrServerRejected = errors.New("api: server rejected request")

// Client talks to the messenger REST API.
type Client struct {
	baseURL string
	session models.SessionContext
	http    *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Session models.SessionContext
	Timeout time.Duration
}

// NewClient builds a REST client for one authenticated session.
func NewClient(options Options) (*Client, error) {
	if options.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if options.Session.UserID == "" {
		return nil, errors.New("session user ID is required")
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(options.BaseURL, "/"),
		session: options.Session,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// envelope is the server's uniform response wrapper.
type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// StartConversationResult is returned by the phone-lookup endpoint.
type StartConversationResult struct {
	ConversationID string `json:"conversationId"`
	OtherUserID    string `json:"otherUserId"`
	OtherUsername  string `json:"otherUsername"`
}

// Conversations fetches the conversation list for a user.
func (c *Client) Conversations(userID string) ([]models.Conversation, error) {
	if userID == "" {
		return nil, errors.New("user ID is required")
	}

	var conversations []models.Conversation
	if err := c.do(http.MethodGet, "/conversations/"+url.PathEscape(userID), nil, &conversations); err != nil {
		return nil, fmt.Errorf("fetch conversations for user %q: %w", userID, err)
	}
	return conversations, nil
}

// Messages fetches the message history for a conversation. Bodies arrive
// ciphertext-first; decryption is the caller's concern.
func (c *Client) Messages(conversationID string) ([]models.Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation ID is required")
	}

	var messages []models.Message
	if err := c.do(http.MethodGet, "/messages/"+url.PathEscape(conversationID), nil, &messages); err != nil {
		return nil, fmt.Errorf("fetch messages for conversation %q: %w", conversationID, err)
	}
	return messages, nil
}

// SendMessage posts an encrypted message and returns the persisted record
// with its server-assigned identity.
func (c *Client) SendMessage(conversationID, ciphertext, iv string) (*models.Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation ID is required")
	}
	if ciphertext == "" {
		return nil, errors.New("ciphertext is required")
	}

	body := map[string]string{
		"conversationId": conversationID,
		"ciphertext":     ciphertext,
		"iv":             iv,
	}

	var message models.Message
	if err := c.do(http.MethodPost, "/messages", body, &message); err != nil {
		return nil, fmt.Errorf("send message to conversation %q: %w", conversationID, err)
	}
	return &message, nil
}

// StartByPhone asks the server to find or create a conversation with the
// user owning the given phone number.
func (c *Client) StartByPhone(phoneNumber string) (*StartConversationResult, error) {
	if strings.TrimSpace(phoneNumber) == "" {
		return nil, errors.New("phone number is required")
	}

	body := map[string]string{"phoneNumber": phoneNumber}

	var result StartConversationResult
	if err := c.do(http.MethodPost, "/conversations/start", body, &result); err != nil {
		return nil, fmt.Errorf("start conversation by phone: %w", err)
	}
	return &result, nil
}

func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cleanToken(c.session.Token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	var wrapped envelope
	if len(raw) > 0 {
		// A non-JSON body is tolerated only on error paths; success
		// responses must carry the envelope.
		if err := json.Unmarshal(raw, &wrapped); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode response envelope: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if wrapped.Message != "" {
			return fmt.Errorf("%w: %s", ErrServerRejected, wrapped.Message)
		}
		return fmt.Errorf("%w: status %d", ErrServerRejected, resp.StatusCode)
	}

	if out == nil || len(wrapped.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(wrapped.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// cleanToken strips a redundant scheme prefix stored alongside the token.
func cleanToken(token string) string {
	return strings.TrimPrefix(token, "Bearer ")
}
