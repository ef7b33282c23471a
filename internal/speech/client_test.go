// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hidebarapp/hidebar/internal/audio"
)

// testSample builds a short non-silent utterance.
func testSample() *audio.Sample {
	pcm := make([]int16, 1600) // 100 ms at 16 kHz
	for i := range pcm {
		pcm[i] = int16(1000 * (i%2*2 - 1))
	}
	return &audio.Sample{PCM: pcm, Rate: 16000}
}

// lineServer responds to every request with the given body lines.
func lineServer(lines ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
}

func newTestClient(baseURL string) *Client {
	return NewClientWithConfig(&Config{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	})
}

func TestRecognize_FirstTranscriptWins(t *testing.T) {
	srv := lineServer(
		`{"result":[]}`,
		`{"result":[{"alternative":[{"transcript":"hello world","confidence":0.92},{"transcript":"hello word"}],"final":true}],"result_index":0}`,
	)
	defer srv.Close()

	text, err := newTestClient(srv.URL).Recognize(context.Background(), testSample())
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "hello world" {
		t.Errorf("Recognize() = %q, want %q", text, "hello world")
	}
}

func TestRecognize_SkipsMalformedLines(t *testing.T) {
	srv := lineServer(
		`{not json`,
		`{"result":[{"alternative":[{"transcript":"open the chat"}]}]}`,
	)
	defer srv.Close()

	text, err := newTestClient(srv.URL).Recognize(context.Background(), testSample())
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "open the chat" {
		t.Errorf("Recognize() = %q, want %q", text, "open the chat")
	}
}

func TestRecognize_TrimsTranscript(t *testing.T) {
	srv := lineServer(`{"result":[{"alternative":[{"transcript":"  hey  "}]}]}`)
	defer srv.Close()

	text, err := newTestClient(srv.URL).Recognize(context.Background(), testSample())
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if text != "hey" {
		t.Errorf("Recognize() = %q, want %q", text, "hey")
	}
}

func TestRecognize_Unintelligible(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"empty result set", []string{`{"result":[]}`}},
		{"empty body", nil},
		{"blank transcript", []string{`{"result":[{"alternative":[{"transcript":"   "}]}]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := lineServer(tt.lines...)
			defer srv.Close()

			_, err := newTestClient(srv.URL).Recognize(context.Background(), testSample())
			if !IsUnintelligible(err) {
				t.Errorf("Recognize() error = %v, want ErrUnintelligible", err)
			}
		})
	}
}

func TestRecognize_EmptySampleSkipsUpload(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	if _, err := client.Recognize(context.Background(), nil); !IsUnintelligible(err) {
		t.Errorf("Recognize(nil) error = %v, want ErrUnintelligible", err)
	}
	if _, err := client.Recognize(context.Background(), &audio.Sample{Rate: 16000}); !IsUnintelligible(err) {
		t.Errorf("Recognize(empty) error = %v, want ErrUnintelligible", err)
	}
	if hits.Load() != 0 {
		t.Errorf("empty samples reached the service %d times, want 0", hits.Load())
	}
}

func TestRecognize_RequestShape(t *testing.T) {
	sample := testSample()
	wantBody := len(audio.EncodeWAV(sample))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		query := r.URL.Query()
		if got := query.Get("lang"); got != "en-GB" {
			t.Errorf("lang = %q, want %q", got, "en-GB")
		}
		if got := query.Get("key"); got != "test-key" {
			t.Errorf("key = %q, want %q", got, "test-key")
		}
		if got := r.Header.Get("Content-Type"); got != "audio/wav; rate=16000" {
			t.Errorf("Content-Type = %q, want %q", got, "audio/wav; rate=16000")
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("reading upload: %v", err)
		}
		if len(body) != wantBody {
			t.Errorf("body length = %d, want %d", len(body), wantBody)
		}
		if !strings.HasPrefix(string(body), "RIFF") {
			t.Error("body is not a WAV container")
		}

		fmt.Fprintln(w, `{"result":[{"alternative":[{"transcript":"ok"}]}]}`)
	}))
	defer srv.Close()

	client := NewClientWithConfig(&Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
	client.SetLanguage("en-GB")

	if _, err := client.Recognize(context.Background(), sample); err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
}

func TestRecognize_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Recognize(context.Background(), testSample())

	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("Recognize() error = %v, want ServiceError", err)
	}
	if serviceErr.Type != ErrTypeServer {
		t.Errorf("Type = %v, want ErrTypeServer", serviceErr.Type)
	}
	if serviceErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", serviceErr.StatusCode, http.StatusForbidden)
	}
}

func TestRecognize_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	_, err := newTestClient(baseURL).Recognize(context.Background(), testSample())
	if !IsUnreachable(err) {
		t.Errorf("Recognize() error = %v, want unreachable", err)
	}
}

func TestRecognize_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL).Recognize(ctx, testSample())
	if !IsTimeout(err) {
		t.Errorf("Recognize() error = %v, want timeout", err)
	}
}

func TestRecognize_Canceled(t *testing.T) {
	srv := lineServer(`{"result":[]}`)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL).Recognize(ctx, testSample())
	if !IsCanceled(err) {
		t.Errorf("Recognize() error = %v, want canceled", err)
	}
}

func TestSetLanguage_EmptyIgnored(t *testing.T) {
	client := NewClient()
	client.SetLanguage("")
	if got := client.Language(); got != "en-US" {
		t.Errorf("Language() = %q, want %q", got, "en-US")
	}
}

func TestNewClientWithConfig_FillsDefaults(t *testing.T) {
	client := NewClientWithConfig(&Config{})

	if client.config.BaseURL == "" {
		t.Error("BaseURL not defaulted")
	}
	if client.config.Language != "en-US" {
		t.Errorf("Language = %q, want en-US", client.config.Language)
	}
	if client.config.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", client.config.Timeout)
	}
}
