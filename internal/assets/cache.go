// Package assets mirrors remote programme and channel images into a local cache.
//
// A Cache is opened once per import run. Every URL resolved during the run is
// marked live, and Sweep removes stale files that were not. Download failures
// are budgeted: once the budget is spent the breaker latches open and every
// later URL passes through untouched.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/glefebvre/guidepost/internal/circuitbreaker"
	apperrors "github.com/glefebvre/guidepost/internal/errors"
	"github.com/glefebvre/guidepost/internal/fetcher"
	"github.com/glefebvre/guidepost/internal/logger"
)

const (
	DefaultRetention   = 14 * 24 * time.Hour
	DefaultMaxFailures = 10
)

// Options configures a Cache
type Options struct {
	// ProxyAvailable false turns the cache into a pass-through
	ProxyAvailable bool
	Retention      time.Duration
	MaxFailures    uint
	DryRun         bool

	Logger *logger.Logger
	Now    func() time.Time
}

// Stats counts what the cache did during a run
type Stats struct {
	Added    int
	Reused   int
	Deleted  int
	Failures int
	Skipped  int // not fetched because the breaker was open
}

// Cache resolves remote URLs to local files
type Cache struct {
	opts    Options
	storage Storage
	getter  fetcher.Getter
	breaker *circuitbreaker.CircuitBreaker
	unlock  func() error
	log     *logger.Logger

	mu             sync.Mutex
	resolved       map[string]string // url -> location
	live           map[string]struct{}
	stats          Stats
	warnedDisabled bool
	closed         bool
}

// Open locks storage and returns a cache ready for one run
func Open(opts Options, storage Storage, getter fetcher.Getter) (*Cache, error) {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = DefaultMaxFailures
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.AppLogger()
	}

	unlock, err := storage.Lock()
	if err != nil {
		return nil, err
	}

	c := &Cache{
		opts:     opts,
		storage:  storage,
		getter:   getter,
		unlock:   unlock,
		log:      opts.Logger,
		resolved: make(map[string]string),
		live:     make(map[string]struct{}),
	}

	cbConfig := circuitbreaker.BudgetConfig(opts.MaxFailures)
	cbConfig.OnStateChange = func(from, to circuitbreaker.State) {
		if to == circuitbreaker.StateOpen {
			c.log.WithFields(map[string]interface{}{
				"failures": opts.MaxFailures,
			}).Warn("Image download failure budget spent, caching disabled for this run")
		}
	}
	c.breaker = circuitbreaker.New(cbConfig)

	return c, nil
}

// FetchOrReuse returns a local reference for rawURL, or rawURL itself when it
// cannot or should not be cached. It never fails.
func (c *Cache) FetchOrReuse(ctx context.Context, rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if !isHTTP(rawURL) {
		return rawURL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return rawURL
	}

	if !c.opts.ProxyAvailable {
		if !c.warnedDisabled {
			c.warnedDisabled = true
			c.log.Warn("Image proxy unavailable, image references are passed through")
		}
		return rawURL
	}

	if loc, ok := c.resolved[rawURL]; ok {
		return loc
	}

	name := LocalName(rawURL)
	if _, ok := c.storage.Stat(name); ok {
		c.stats.Reused++
		c.touch(name)
		return c.markLive(rawURL, name)
	}

	if err := c.breaker.Allow(); err != nil {
		c.stats.Skipped++
		return rawURL
	}

	err := c.download(ctx, rawURL, name)
	c.breaker.Record(err)
	if err != nil {
		c.stats.Failures++
		c.log.WithFields(map[string]interface{}{
			"url":      rawURL,
			"code":     apperrors.CodeDownload,
			"failures": c.breaker.Failures(),
			"error":    err.Error(),
		}).Warn("Image download failed")
		return rawURL
	}

	c.stats.Added++
	return c.markLive(rawURL, name)
}

func (c *Cache) download(ctx context.Context, rawURL, name string) error {
	data, err := c.getter.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := c.storage.Put(name, data); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	return nil
}

// touch restarts the retention clock of a reused file. Caller holds mu.
func (c *Cache) touch(name string) {
	if c.opts.DryRun {
		return
	}
	if err := c.storage.Touch(name, c.opts.Now()); err != nil {
		c.log.WithFields(map[string]interface{}{
			"file":  name,
			"error": err.Error(),
		}).Warn("Failed to refresh cached image time")
	}
}

// markLive records the resolution. Caller holds mu.
func (c *Cache) markLive(rawURL, name string) string {
	loc := c.storage.Location(name)
	c.resolved[rawURL] = loc
	c.live[name] = struct{}{}
	return loc
}

// Sweep deletes stored files that were not resolved during this run and are
// older than the retention period. It returns the number of files deleted
// (or that would be deleted, in dry-run mode).
func (c *Cache) Sweep() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := c.storage.List()
	if err != nil {
		return 0, err
	}

	cutoff := c.opts.Now().Add(-c.opts.Retention)
	log := c.log.WithFields(map[string]interface{}{
		"cutoff":  cutoff.Format(time.RFC3339),
		"dry_run": c.opts.DryRun,
	})

	deleted := 0
	var firstErr error
	for _, f := range files {
		if _, ok := c.live[f.Name]; ok {
			continue
		}
		if f.ModTime.After(cutoff) {
			continue
		}
		if c.opts.DryRun {
			log.Info(fmt.Sprintf("[DRY RUN] Would remove: %s (age: %s)", f.Name, c.opts.Now().Sub(f.ModTime).Round(time.Hour)))
			deleted++
			continue
		}
		if err := c.storage.Remove(f.Name); err != nil {
			log.Error(fmt.Sprintf("Failed to remove %s", f.Name), err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}

	c.stats.Deleted += deleted
	log.Info(fmt.Sprintf("Sweep complete: %d removed, %d kept", deleted, len(files)-deleted))
	return deleted, firstErr
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Live reports whether name was resolved during this run
func (c *Cache) Live(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live[name]
	return ok
}

// PassThrough reports whether the cache hands every URL back untouched
func (c *Cache) PassThrough() bool {
	return !c.opts.ProxyAvailable
}

// BreakerOpen reports whether the failure budget is spent
func (c *Cache) BreakerOpen() bool {
	return c.breaker.State() == circuitbreaker.StateOpen
}

// Close releases the storage lock. Later calls to FetchOrReuse pass through.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.unlock != nil {
		return c.unlock()
	}
	return nil
}

func isHTTP(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// LocalName derives the cache file name from the last path segment of rawURL.
// Characters outside [A-Za-z0-9._-] become '_'. URLs without a usable segment
// are named by the hex SHA-256 of the URL.
func LocalName(rawURL string) string {
	segment := ""
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			segment = base
		}
	}

	var b strings.Builder
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), ".")
	if name == "" {
		sum := sha256.Sum256([]byte(rawURL))
		return hex.EncodeToString(sum[:])
	}
	return name
}
