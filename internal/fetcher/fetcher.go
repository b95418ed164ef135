package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/retry"
)

var (
	// ErrFileSizeExceeded is returned when a body exceeds the size limit
	ErrFileSizeExceeded = errors.New("file size exceeds maximum limit")

	// ErrEmptyBody is returned when the server sends no content
	ErrEmptyBody = errors.New("empty response body")
)

// StatusError is a non-200 HTTP answer
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

// Getter fetches the body at url
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Config holds HTTP fetch settings
type Config struct {
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Retry     retry.Config
}

// DefaultConfig returns settings suitable for images
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		MaxBytes:  10 * 1024 * 1024,
		UserAgent: "guidepost/1.0",
		Retry: retry.Config{
			MaxAttempts:       3,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			JitterFraction:    0.1,
		},
	}
}

// Client is an HTTP Getter with retry and a size limit
type Client struct {
	cfg        Config
	logger     *logger.Logger
	httpClient *http.Client
}

// New creates a new Client
func New(cfg Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.AppLogger()
	}
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Limit redirects to 10
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts < 1 {
		retryCfg.MaxAttempts = 1
	}
	retryCfg.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.WithFields(map[string]interface{}{
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		}).Debug("Retrying fetch")
	}
	cfg.Retry = retryCfg

	return &Client{cfg: cfg, logger: log, httpClient: httpClient}
}

// Get downloads url into memory
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithResult(ctx, c.cfg.Retry, func() ([]byte, error) {
		return c.getOnce(ctx, url)
	}, isRetryableError)
}

// Download saves url to destPath atomically and returns the byte count
func (c *Client) Download(ctx context.Context, url, destPath string) (int64, error) {
	data, err := c.Get(ctx, url)
	if err != nil {
		return 0, err
	}
	if err := WriteAtomic(destPath, data); err != nil {
		return 0, err
	}

	c.logger.WithFields(map[string]interface{}{
		"url":  url,
		"path": destPath,
		"size": len(data),
	}).Debug("Download saved")
	return int64(len(data)), nil
}

func (c *Client) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	limit := c.cfg.MaxBytes
	if limit > 0 && resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes announced, limit %d", ErrFileSizeExceeded, resp.ContentLength, limit)
	}

	body := io.Reader(resp.Body)
	if limit > 0 {
		// one byte past the limit tells an exact fit from an overflow
		body = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(body)
	switch {
	case err != nil:
		return nil, fmt.Errorf("failed to read response body: %w", err)
	case limit > 0 && int64(len(data)) > limit:
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrFileSizeExceeded, limit)
	case len(data) == 0:
		return nil, ErrEmptyBody
	}
	return data, nil
}

// WriteAtomic writes data to a temporary file in destPath's directory and
// renames it over destPath, so readers never see a partial file
func WriteAtomic(destPath string, data []byte) (err error) {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download_*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), destPath); err != nil {
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}
	return nil
}

// isRetryableError retries network failures, 429 and 5xx answers
func isRetryableError(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrFileSizeExceeded),
		errors.Is(err, ErrEmptyBody),
		errors.Is(err, context.Canceled):
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return true
}
