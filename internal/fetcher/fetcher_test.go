package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/retry"
)

// setupTestClient creates a client with fast retries
func setupTestClient(t *testing.T, maxBytes int64) *Client {
	t.Helper()

	cfg := Config{
		Timeout:  5 * time.Second,
		MaxBytes: maxBytes,
		Retry: retry.Config{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
	}
	return New(cfg, logger.Discard())
}

func TestGet_Success(t *testing.T) {
	client := setupTestClient(t, 1024)

	var agent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	client.cfg.UserAgent = "guidepost-test"
	data, err := client.Get(context.Background(), server.URL+"/logo.png")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("Content mismatch: got %q", data)
	}
	if agent != "guidepost-test" {
		t.Errorf("User-Agent mismatch: got %q", agent)
	}
}

func TestGet_RetriesServerErrors(t *testing.T) {
	client := setupTestClient(t, 1024)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	data, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get failed after retries: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("Content mismatch: got %q", data)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("Expected 3 calls, got %d", got)
	}
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	client := setupTestClient(t, 1024)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := client.Get(context.Background(), server.URL)
	if err == nil {
		t.Fatal("Expected HTTP error, got nil")
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 StatusError, got: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("Expected 1 call, got %d", got)
	}
}

func TestGet_FileSizeExceeded(t *testing.T) {
	client := setupTestClient(t, 16)

	tests := []struct {
		name          string
		contentLength bool
	}{
		{"declared length", true},
		{"streamed body", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Repeat("A", 64)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentLength {
					w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
				} else {
					w.(http.Flusher).Flush()
				}
				w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := client.Get(context.Background(), server.URL)
			if !errors.Is(err, ErrFileSizeExceeded) {
				t.Errorf("Expected size exceeded error, got: %v", err)
			}
		})
	}
}

func TestGet_EmptyBody(t *testing.T) {
	client := setupTestClient(t, 1024)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	_, err := client.Get(context.Background(), server.URL)
	if !errors.Is(err, ErrEmptyBody) {
		t.Errorf("Expected empty body error, got: %v", err)
	}
}

func TestGet_Timeout(t *testing.T) {
	client := setupTestClient(t, 1024)
	client.httpClient.Timeout = 50 * time.Millisecond
	client.cfg.Retry.MaxAttempts = 1

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	defer server.Close()

	if _, err := client.Get(context.Background(), server.URL); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestDownload_WritesAtomically(t *testing.T) {
	client := setupTestClient(t, 1024)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<tv></tv>"))
	}))
	defer server.Close()

	dir := t.TempDir()
	destPath := filepath.Join(dir, "nested", "guide.xml")

	n, err := client.Download(context.Background(), server.URL, destPath)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if n != int64(len("<tv></tv>")) {
		t.Errorf("Size mismatch: got %d", n)
	}

	content, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("Failed to read downloaded file: %v", err)
	}
	if string(content) != "<tv></tv>" {
		t.Errorf("Content mismatch: got %q", content)
	}

	entries, _ := os.ReadDir(filepath.Dir(destPath))
	if len(entries) != 1 {
		t.Errorf("Expected only the destination file, found %d entries", len(entries))
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"size", fmt.Errorf("wrapped: %w", ErrFileSizeExceeded), false},
		{"empty", ErrEmptyBody, false},
		{"canceled", fmt.Errorf("HTTP request failed: %w", context.Canceled), false},
		{"not found", &StatusError{StatusCode: 404}, false},
		{"rate limited", &StatusError{StatusCode: 429}, true},
		{"bad gateway", &StatusError{StatusCode: 502}, true},
		{"network", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.expected {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
