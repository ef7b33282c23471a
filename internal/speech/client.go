// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package speech provides the HTTP client for the speech recognition service.
package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hidebarapp/hidebar/internal/audio"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrUnintelligible means the service understood the request but found
// no words in the audio. A recognition outcome, not a service failure.
var ErrUnintelligible = errors.New("speech was not intelligible")

// ServiceError represents a failure of the recognition service itself.
type ServiceError struct {
	Type       ErrorType
	Message    string
	StatusCode int // HTTP status for ErrTypeServer responses, 0 otherwise
	Cause      error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes service errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeUnreachable
	ErrTypeTimeout
	ErrTypeCanceled
	ErrTypeServer
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrUnreachable = &ServiceError{Type: ErrTypeUnreachable, Message: "recognition service is not reachable"}
	ErrTimeout     = &ServiceError{Type: ErrTypeTimeout, Message: "recognition request timed out"}
	ErrCanceled    = &ServiceError{Type: ErrTypeCanceled, Message: "recognition request canceled"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the recognition client.
type Config struct {
	// BaseURL of a Web Speech compatible recognition endpoint
	// (default: the public Google endpoint)
	BaseURL string

	// APIKey sent with each request. Empty omits the key parameter;
	// private deployments usually do not check one.
	APIKey string

	// Language hint, BCP-47 (default: "en-US")
	Language string

	// Timeout for one recognition round trip (default: 10s)
	Timeout time.Duration
}

// DefaultConfig returns the default recognition configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:  "http://www.google.com/speech-api/v2/recognize",
		Language: "en-US",
		Timeout:  10 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the speech recognition service.
//
// The Client is thread-safe for concurrent use. The language hint is
// runtime-mutable so the application can switch recognition languages
// without rebuilding the client.
type Client struct {
	config     *Config
	httpClient *http.Client

	mu       sync.RWMutex
	language string
}

// NewClient creates a recognition client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a recognition client with custom configuration.
func NewClientWithConfig(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://www.google.com/speech-api/v2/recognize"
	}
	if config.Language == "" {
		config.Language = "en-US"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		language: config.Language,
	}
}

// Language returns the current recognition language hint.
func (c *Client) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

// SetLanguage updates the recognition language hint.
func (c *Client) SetLanguage(lang string) {
	if lang == "" {
		return
	}
	c.mu.Lock()
	c.language = lang
	c.mu.Unlock()
}

// =============================================================================
// RECOGNITION
// =============================================================================

// recognitionResponse is one line of the service's response body.
type recognitionResponse struct {
	Result      []recognitionResult `json:"result"`
	ResultIndex int                 `json:"result_index"`
}

type recognitionResult struct {
	Alternative []recognitionAlternative `json:"alternative"`
	Final       bool                     `json:"final"`
}

type recognitionAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Recognize transcribes one captured utterance. Returns the recognized
// text, ErrUnintelligible when the service found no words, or a
// ServiceError when the service itself failed.
func (c *Client) Recognize(ctx context.Context, sample *audio.Sample) (string, error) {
	if sample == nil || len(sample.PCM) == 0 {
		return "", ErrUnintelligible
	}

	req, err := c.buildRequest(ctx, sample)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &ServiceError{
			Type:       ErrTypeServer,
			Message:    "recognition request failed: " + resp.Status,
			StatusCode: resp.StatusCode,
		}
	}

	return parseTranscript(resp.Body)
}

// buildRequest assembles the upload: WAV body, language and key as
// query parameters.
func (c *Client) buildRequest(ctx context.Context, sample *audio.Sample) (*http.Request, error) {
	endpoint, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return nil, &ServiceError{Type: ErrTypeUnreachable, Message: "invalid recognition endpoint", Cause: err}
	}

	query := endpoint.Query()
	query.Set("client", "hidebar")
	query.Set("lang", c.Language())
	if c.config.APIKey != "" {
		query.Set("key", c.config.APIKey)
	}
	endpoint.RawQuery = query.Encode()

	body := audio.EncodeWAV(sample)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return nil, &ServiceError{Type: ErrTypeUnreachable, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "audio/wav; rate="+strconv.Itoa(sample.Rate))

	return req, nil
}

// parseTranscript folds over the line-delimited JSON response. Lines
// that fail to decode are skipped; the first line carrying a non-empty
// transcript wins. A body with no transcript at all means the audio
// was unintelligible.
func parseTranscript(body io.Reader) (string, error) {
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var decoded recognitionResponse
		if err := json.Unmarshal(line, &decoded); err != nil {
			continue // skip malformed lines, same as the chat stream
		}

		for _, result := range decoded.Result {
			for _, alt := range result.Alternative {
				if text := strings.TrimSpace(alt.Transcript); text != "" {
					return text, nil
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", mapTransportError(err)
	}

	return "", ErrUnintelligible
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// mapTransportError normalizes request/read errors into the service
// taxonomy, mirroring the chat client's mapping.
func mapTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, context.Canceled):
		return ErrCanceled
	default:
		return &ServiceError{Type: ErrTypeUnreachable, Message: "recognition service is not reachable", Cause: err}
	}
}

// IsUnintelligible checks if an error is the no-words outcome.
func IsUnintelligible(err error) bool {
	return errors.Is(err, ErrUnintelligible)
}

// IsUnreachable checks if an error indicates the service is unreachable.
func IsUnreachable(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Type == ErrTypeUnreachable
	}
	return false
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Type == ErrTypeTimeout
	}
	return false
}

// IsCanceled checks if an error came from caller cancellation.
func IsCanceled(err error) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Type == ErrTypeCanceled
	}
	return false
}

// IsServiceError checks if an error is any recognition service failure.
func IsServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}
