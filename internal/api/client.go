// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/privgpt-studio/privgpt-tui/internal/model"
)

// Configuration constants for the backend API.
const (
	// DefaultBaseURL is the backend address used when none is configured.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout is the default timeout for non-streaming requests.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB limit

	// modelsPerSecond caps how often /models is actually fetched; the
	// connectivity probe shares the endpoint and would hammer it otherwise.
	modelsPerSecond = rate.Limit(2)
	modelsBurst     = 2
)

var (
	// Shared HTTP client with connection pooling for all REST requests.
	sharedHTTPClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
		Timeout: DefaultTimeout,
	}

	// sharedStreamingClient is used for streaming requests.
	// No timeout; lifetime is controlled via the request context.
	sharedStreamingClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
)

// Error variables for common backend errors.
var (
	// ErrSessionNotFound indicates the backend has no session with that ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnsupportedFile indicates the backend rejected the attachment.
	ErrUnsupportedFile = errors.New("unsupported file")

	// ErrEmptyReply indicates the backend answered without any content.
	ErrEmptyReply = errors.New("empty reply")
)

// BackendError represents an error response from the backend.
type BackendError struct {
	Message string
	Status  int
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error (HTTP %d): %s", e.Status, e.Message)
}

// =============================================================================
// WIRE TYPES
// =============================================================================

// SessionDoc is a session document as the backend stores it. Field names
// follow the Mongo document; the registry maps them to domain types.
type SessionDoc struct {
	ID        string       `json:"_id"`
	Name      string       `json:"session_name"`
	CreatedAt string       `json:"created_at,omitempty"`
	Messages  []MessageDoc `json:"messages"`
}

// MessageDoc is one stored message inside a session document. The backend
// uses role "bot" where the UI says assistant.
type MessageDoc struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	ModelName string `json:"model_name,omitempty"`

	UploadedFile *UploadedFileDoc `json:"uploaded_file,omitempty"`
}

// UploadedFileDoc describes an attachment stored with a message.
type UploadedFileDoc struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// ChatRequest carries the form fields shared by the buffered and streaming
// chat endpoints.
type ChatRequest struct {
	Message    string
	ModelType  model.ModelType
	ModelName  string
	SessionID  string
	MentionIDs []string
	Timestamp  time.Time
}

// ChatResponse is the buffered chat endpoint's answer.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
	Latency   int    `json:"latency"`
}

// catalogResponse is the /models answer.
type catalogResponse struct {
	LocalModels []string `json:"local_models"`
	CloudModels []string `json:"cloud_models"`
}

// sessionMessagesResponse is the GET /chat/{id} answer.
type sessionMessagesResponse struct {
	SessionID string       `json:"session_id"`
	Messages  []MessageDoc `json:"messages"`
}

// errorResponse is the backend's error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one PrivGPT backend.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	streamClient  *http.Client
	modelsLimiter *rate.Limiter
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		httpClient:    sharedHTTPClient,
		streamClient:  sharedStreamingClient,
		modelsLimiter: rate.NewLimiter(modelsPerSecond, modelsBurst),
	}
}

// WithHTTPClient sets a custom client for non-streaming requests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithStreamClient sets a custom client for streaming requests.
func (c *Client) WithStreamClient(hc *http.Client) *Client {
	c.streamClient = hc
	return c
}

// WithModelsLimit overrides the /models rate limit.
func (c *Client) WithModelsLimit(limit rate.Limit, burst int) *Client {
	c.modelsLimiter = rate.NewLimiter(limit, burst)
	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REST ENDPOINTS
// =============================================================================

// Models fetches the advertised model catalog. Calls are rate limited
// because the connectivity probe reuses this endpoint.
func (c *Client) Models(ctx context.Context) (model.Catalog, error) {
	if err := c.modelsLimiter.Wait(ctx); err != nil {
		return model.Catalog{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("failed to create request: %w", err)
	}

	var out catalogResponse
	if err := c.doJSON(req, &out); err != nil {
		return model.Catalog{}, err
	}
	return model.Catalog{Local: out.LocalModels, Cloud: out.CloudModels}, nil
}

// History fetches the session documents for the given IDs, newest first.
// IDs the backend does not know are silently absent from the result.
func (c *Client) History(ctx context.Context, sessionIDs []string) ([]SessionDoc, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string][]string{"session_ids": sessionIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/history", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var docs []SessionDoc
	if err := c.doJSON(req, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// SessionMessages fetches the stored transcript of one session.
func (c *Client) SessionMessages(ctx context.Context, sessionID string) ([]MessageDoc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/chat/"+sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var out sessionMessagesResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// RenameSession changes the stored name of a session.
func (c *Client) RenameSession(ctx context.Context, sessionID, newName string) error {
	body, err := json.Marshal(map[string]string{
		"session_id": sessionID,
		"new_name":   newName,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/rename", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doJSON(req, nil)
}

// DeleteSession removes a session from the backend.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/chat/delete/"+sessionID, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.doJSON(req, nil)
}

// ClearSession empties the stored transcript of a session.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	body, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/clear", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doJSON(req, nil)
}

// Chat performs a buffered chat exchange. The attachment is optional; when
// present its bytes are taken from the FileRef and sent as uploaded_file.
func (c *Client) Chat(ctx context.Context, chatReq ChatRequest, attachment *model.FileRef) (*ChatResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := writeChatFields(w, chatReq); err != nil {
		return nil, err
	}
	if attachment != nil && attachment.HasData() {
		part, err := w.CreateFormFile("uploaded_file", attachment.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to attach file: %w", err)
		}
		if _, err := part.Write(attachment.TakeData()); err != nil {
			return nil, fmt.Errorf("failed to attach file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out ChatResponse
	if err := c.doJSON(req, &out); err != nil {
		return nil, err
	}
	if out.Response == "" {
		return nil, ErrEmptyReply
	}
	return &out, nil
}

// =============================================================================
// INTERNAL
// =============================================================================

// doJSON executes a request on the pooled client and decodes the JSON body
// into out (skipped when out is nil). Non-2xx answers become errors.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// readBody reads the response body with a size limit.
func readBody(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// decodeError converts an error response to a Go error.
func decodeError(status int, body []byte) error {
	var apiErr errorResponse
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}

	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrSessionNotFound, msg)
	case http.StatusBadRequest:
		if strings.Contains(msg, "file") {
			return fmt.Errorf("%w: %s", ErrUnsupportedFile, msg)
		}
	}
	return &BackendError{Message: msg, Status: status}
}

// writeChatFields writes the form fields shared by /chat and /chat/stream.
func writeChatFields(w *multipart.Writer, req ChatRequest) error {
	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	fields := map[string]string{
		"message":    req.Message,
		"model_type": string(req.ModelType),
		"model_name": req.ModelName,
		"timestamp":  ts.Format(time.RFC3339),
	}
	if req.SessionID != "" {
		fields["session_id"] = req.SessionID
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	for _, id := range req.MentionIDs {
		if err := w.WriteField("mention_session_ids[]", id); err != nil {
			return fmt.Errorf("failed to write mention id: %w", err)
		}
	}
	return nil
}
