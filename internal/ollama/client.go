// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int // HTTP status for ErrTypeServer responses, 0 otherwise
	Cause      error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeCanceled
	ErrTypeModelNotFound
	ErrTypeServer
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrCanceled      = &ClientError{Type: ErrTypeCanceled, Message: "request canceled"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found", StatusCode: http.StatusNotFound}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Timeout for non-streaming requests such as health checks and
	// model listing (default: 5s)
	Timeout time.Duration

	// StreamTimeout is the overall deadline for one streaming chat,
	// measured from connection start (default: 300s)
	StreamTimeout time.Duration

	// DefaultModel to use if none specified (default: "llama3.2:latest")
	DefaultModel string

	// StartupTimeout bounds how long EnsureRunning waits for a freshly
	// started server to answer (default: 10s)
	StartupTimeout time.Duration

	// StartupPollInterval between readiness probes during startup (default: 500ms)
	StartupPollInterval time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:             "http://127.0.0.1:11434",
		Timeout:             5 * time.Second,
		StreamTimeout:       300 * time.Second,
		DefaultModel:        "llama3.2:latest",
		StartupTimeout:      10 * time.Second,
		StartupPollInterval: 500 * time.Millisecond,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
// It provides methods for health checks, model listing, and chat operations.
//
// The Client is thread-safe for concurrent use. The base URL and default
// model are runtime-mutable so the application can repoint a running
// client without rebuilding it.
//
// Example:
//
//	client := ollama.NewClient()
//	if err := client.EnsureRunning(ctx); err != nil {
//	    log.Fatal("Ollama not available:", err)
//	}
//	err := client.ChatStream(ctx, "llama3.2:latest", messages, onChunk)
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	mu           sync.RWMutex
	baseURL      string
	defaultModel string
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if config.StreamTimeout == 0 {
		config.StreamTimeout = 300 * time.Second
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "llama3.2:latest"
	}
	if config.StartupTimeout == 0 {
		config.StartupTimeout = 10 * time.Second
	}
	if config.StartupPollInterval == 0 {
		config.StartupPollInterval = 500 * time.Millisecond
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		baseURL:      config.BaseURL,
		defaultModel: config.DefaultModel,
	}
}

// BaseURL returns the current API base URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// SetBaseURL repoints the client at a different endpoint.
// Takes effect on the next request; in-flight requests are unaffected.
func (c *Client) SetBaseURL(url string) {
	if url == "" {
		return
	}
	c.mu.Lock()
	c.baseURL = url
	c.mu.Unlock()
}

// DefaultModel returns the model used when a request names none.
func (c *Client) DefaultModel() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaultModel
}

// SetDefaultModel updates the default model.
func (c *Client) SetDefaultModel(model string) {
	if model == "" {
		return
	}
	c.mu.Lock()
	c.defaultModel = model
	c.mu.Unlock()
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL(), nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:       ErrTypeServer,
			Message:    "unexpected status from Ollama: " + resp.Status,
			StatusCode: resp.StatusCode,
		}
	}

	return nil
}

// StartOllama attempts to start the Ollama server if it's not running.
// Returns nil if Ollama is already running or was successfully started.
// The actual start logic is platform-specific (see start_windows.go and start_unix.go).
func (c *Client) StartOllama(ctx context.Context) error {
	// First check if already running
	if err := c.CheckRunning(ctx); err == nil {
		return nil // Already running
	}

	// Use platform-specific implementation to start Ollama
	// This handles finding the executable, setting proper process attributes,
	// and waiting for Ollama to become ready
	return c.startOllamaProcess(ctx)
}

// EnsureRunning checks if Ollama is running, and starts it if not.
// This is a convenience method that combines CheckRunning and StartOllama.
func (c *Client) EnsureRunning(ctx context.Context) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}
	return c.StartOllama(ctx)
}

// waitForReady polls the health endpoint until a freshly started server
// answers or the startup timeout passes. Runs before the TUI takes over
// the terminal, so progress goes to stderr.
func (c *Client) waitForReady(ctx context.Context, ollamaPath string) error {
	deadline := time.Now().Add(c.config.StartupTimeout)
	startTime := time.Now()
	var lastErr error

	fmt.Fprintf(os.Stderr, "Starting Ollama service...\n")

	for time.Now().Before(deadline) {
		// Check if parent context was cancelled
		select {
		case <-ctx.Done():
			return &ClientError{
				Type:    ErrTypeConnection,
				Message: "Ollama startup cancelled",
				Cause:   ctx.Err(),
			}
		default:
		}

		// Try to connect to Ollama
		checkCtx, cancel := context.WithTimeout(ctx, c.config.StartupPollInterval)
		lastErr = c.CheckRunning(checkCtx)
		cancel()

		if lastErr == nil {
			elapsed := time.Since(startTime)
			fmt.Fprintf(os.Stderr, "Ollama service started successfully (%.1fs)\n", elapsed.Seconds())
			return nil // Started successfully
		}

		// Show progress with elapsed time
		elapsed := time.Since(startTime)
		fmt.Fprintf(os.Stderr, "\rStarting Ollama service... %.1fs elapsed", elapsed.Seconds())

		// Wait before retrying
		time.Sleep(c.config.StartupPollInterval)
	}

	fmt.Fprintf(os.Stderr, "\n")

	return &ClientError{
		Type:    ErrTypeConnection,
		Message: fmt.Sprintf("Ollama started but not responding after %s (path: %s)", c.config.StartupTimeout, ollamaPath),
		Cause:   lastErr,
	}
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all available models from Ollama.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL()+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp, "failed to list models")
	}

	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return result.Models, nil
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// Chat sends a chat request and returns the complete response (non-streaming).
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error) {
	if model == "" {
		model = c.DefaultModel()
	}

	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrModelNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.responseError(resp, "chat request failed")
	}

	var result ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}

	return &result, nil
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StreamCallback is called for each chunk received during streaming.
type StreamCallback func(chunk StreamChunk)

// ChatStream sends a streaming chat request and calls the callback for each chunk.
// The callback is called synchronously in the order chunks are received; no
// batching or reordering happens here. Reading stops at the first chunk that
// reports completion, even if the server keeps writing.
//
// The overall deadline (ClientConfig.StreamTimeout) is enforced from
// connection start; exceeding it returns ErrTimeout. Canceling the parent
// context returns ErrCanceled.
func (c *Client) ChatStream(ctx context.Context, model string, messages []Message, callback StreamCallback) error {
	if model == "" {
		model = c.DefaultModel()
	}

	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	// The overall stream deadline covers connect plus every chunk read
	ctx, cancel := context.WithTimeout(ctx, c.config.StreamTimeout)
	defer cancel()

	// Use a client without timeout for streaming (we handle timeout via context)
	// SECURITY: TLS not required - Ollama runs locally on localhost (127.0.0.1) over HTTP
	// TLS configuration would not apply to this local HTTP connection
	streamClient := &http.Client{}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL()+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := streamClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrModelNotFound
	}

	if resp.StatusCode != http.StatusOK {
		return c.responseError(resp, "stream request failed")
	}

	// Create stream reader and process
	reader := NewStreamReader(resp.Body)
	if err := reader.Process(ctx, callback); err != nil {
		return mapTransportError(err)
	}
	return nil
}

// ChatStreamChan sends a streaming chat request and returns a channel of chunks.
// The channel is closed when streaming is complete or an error occurs.
// Errors are delivered as chunks with the Error field set.
func (c *Client) ChatStreamChan(ctx context.Context, model string, messages []Message) <-chan StreamChunk {
	ch := make(chan StreamChunk)

	go func() {
		defer close(ch)

		err := c.ChatStream(ctx, model, messages, func(chunk StreamChunk) {
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		})

		if err != nil {
			select {
			case ch <- StreamChunk{Error: err, Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return ch
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// mapTransportError normalizes request/read errors into the client taxonomy:
// deadline exhaustion is a timeout, caller cancellation is a cancel, and
// anything else means the server is unreachable.
func mapTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	default:
		return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not reachable", Cause: err}
	}
}

// responseError builds a ClientError from a non-success HTTP response,
// preferring the error message in the Ollama response body when present.
func (c *Client) responseError(resp *http.Response, msg string) error {
	var ollamaErr OllamaError
	if err := json.NewDecoder(resp.Body).Decode(&ollamaErr); err == nil && ollamaErr.Error != "" {
		return &ClientError{
			Type:       ErrTypeServer,
			Message:    ollamaErr.Error,
			StatusCode: resp.StatusCode,
		}
	}
	return &ClientError{
		Type:       ErrTypeServer,
		Message:    msg + ": " + resp.Status,
		StatusCode: resp.StatusCode,
	}
}

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeModelNotFound
	}
	return false
}

// IsNotRunning checks if an error indicates Ollama is not running.
func IsNotRunning(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeNotRunning
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeTimeout
	}
	return false
}

// IsCanceled checks if an error came from caller cancellation.
func IsCanceled(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeCanceled
	}
	return false
}

// ServerStatus extracts the HTTP status code from a server error.
// Returns 0, false for errors that did not come from an HTTP response.
func ServerStatus(err error) (int, bool) {
	var clientErr *ClientError
	if errors.As(err, &clientErr) && clientErr.StatusCode != 0 {
		return clientErr.StatusCode, true
	}
	return 0, false
}

// Helper to drain response body so the connection can be reused
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
