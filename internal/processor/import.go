package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glefebvre/guidepost/internal/assets"
	"github.com/glefebvre/guidepost/internal/category"
	"github.com/glefebvre/guidepost/internal/config"
	apperrors "github.com/glefebvre/guidepost/internal/errors"
	"github.com/glefebvre/guidepost/internal/fetcher"
	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/metrics"
	"github.com/glefebvre/guidepost/internal/models"
	"github.com/glefebvre/guidepost/internal/overrides"
	"github.com/glefebvre/guidepost/internal/schedule"
	"github.com/glefebvre/guidepost/internal/store"
	"github.com/glefebvre/guidepost/internal/timenorm"
	"github.com/glefebvre/guidepost/internal/xmltv"
)

const megabyte = 1024 * 1024

// ImportOptions selects what one import does
type ImportOptions struct {
	Source   string // feed file or http(s) URL; empty means feed.path
	DryRun   bool   // build and report only, nothing is written
	NoImages bool
}

// ImportReport is the outcome of Import
type ImportReport struct {
	RunID       string
	Source      string
	DryRun      bool
	Result      *Result
	Merge       store.MergeResult
	BreakerOpen bool
	Duration    time.Duration
}

// Importer runs the pipeline against the configured stores
type Importer struct {
	cfg     *config.Config
	db      *gorm.DB
	metrics *metrics.Recorder
	logger  *logger.Logger

	// images overrides the HTTP getter used by the image cache
	images fetcher.Getter
}

// NewImporter creates an importer. db and rec may be nil: without a database
// the category table starts empty and nothing is persisted.
func NewImporter(cfg *config.Config, db *gorm.DB, rec *metrics.Recorder, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.AppLogger()
	}
	return &Importer{cfg: cfg, db: db, metrics: rec, logger: log}
}

// Import reads one feed and, unless dry-running, saves the category table and
// merges the schedules into the guide. A failed run commits nothing.
func (im *Importer) Import(ctx context.Context, opts ImportOptions) (*ImportReport, error) {
	started := time.Now()
	source := opts.Source
	if source == "" {
		source = im.cfg.Feed.Path
	}
	if source == "" {
		return nil, apperrors.ValidationError("no feed given: pass a path or set feed.path")
	}

	report := &ImportReport{
		RunID:  uuid.NewString(),
		Source: source,
		DryRun: opts.DryRun,
	}
	ctx = logger.ContextWithRunID(ctx, report.RunID)

	var runs *store.RunStore
	var run *models.ImportRun
	if im.db != nil {
		runs = store.NewRunStore(im.db)
		var err error
		if run, err = runs.Start(report.RunID, source, opts.DryRun); err != nil {
			return nil, apperrors.DatabaseError("failed to record import run", err)
		}
	}

	finish := func(res *Result, err error) {
		report.Duration = time.Since(started)
		counters := map[string]int{}
		channels, programmes := 0, 0
		if res != nil {
			counters = res.Stats.Map()
			channels, programmes = res.Stats.ChannelsCreated, res.Stats.ProgrammesCreated
		}
		if runs != nil {
			if ferr := runs.Finish(run, channels, programmes, counters, err); ferr != nil {
				im.logger.ErrorContext(ctx, "Failed to update import run", ferr)
			}
		}
		if im.metrics != nil {
			im.metrics.ObserveRun(counters, report.Duration, report.BreakerOpen, err)
		}
	}

	res, err := im.build(ctx, source, opts, report)
	if err != nil {
		finish(nil, err)
		return report, err
	}
	report.Result = res

	if !opts.DryRun && im.db != nil && im.cfg.Import.Persist {
		merge, err := im.persist(res, report.RunID)
		if err != nil {
			finish(res, err)
			return report, err
		}
		report.Merge = merge
	}

	finish(res, nil)
	return report, nil
}

func (im *Importer) build(ctx context.Context, source string, opts ImportOptions, report *ImportReport) (*Result, error) {
	local, err := timenorm.LoadLocal(im.cfg.Feed.LocalTimeZone)
	if err != nil {
		return nil, apperrors.ConfigError("invalid feed.local_timezone", err)
	}
	var feedZone *time.Location
	if name := im.cfg.Feed.TimeZone; name != "" {
		if feedZone, err = time.LoadLocation(name); err != nil {
			return nil, apperrors.ConfigError("invalid feed.timezone", err)
		}
	}

	path, cleanup, err := im.fetchFeed(ctx, source)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	feed, err := xmltv.Open(path)
	if err != nil {
		return nil, err
	}
	defer feed.Close()

	table := category.NewTable(nil, nil, nil)
	if im.db != nil {
		if table, err = store.NewCategoryStore(im.db).Load(); err != nil {
			return nil, apperrors.DatabaseError("failed to load category table", err)
		}
	}

	ovr := overrides.NewManager()
	if err := ovr.LoadAll(im.cfg.Overrides, im.db); err != nil {
		im.logger.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Warn("Failed to load runtime overrides, continuing with configured ones")
	}

	var cache *assets.Cache
	if im.cfg.Images.Enabled && !opts.NoImages && !opts.DryRun {
		cache = im.openCache()
		if cache != nil {
			defer cache.Close()
		}
	}

	proc := New(Options{
		Language:          im.cfg.Feed.Language,
		ChannelIDFormat:   schedule.IDKind(im.cfg.Feed.ChannelIDFormat),
		Location:          local,
		FeedZone:          feedZone,
		StrictIntervals:   im.cfg.Import.StrictIntervals,
		IgnoreEpisodeTags: im.cfg.Import.IgnoreEpisodeTags,
		PrefixNew:         im.cfg.Import.PrefixNew,
		NewPrefix:         im.cfg.Import.NewPrefix,
		PrefixLive:        im.cfg.Import.PrefixLive,
		LivePrefix:        im.cfg.Import.LivePrefix,
	}, table, ovr, cache, im.logger)

	res, err := proc.Run(ctx, feed)
	if cache != nil {
		report.BreakerOpen = cache.BreakerOpen()
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// openCache returns nil when the cache cannot be used; images then pass through
func (im *Importer) openCache() *assets.Cache {
	ic := im.cfg.Images
	storage, err := assets.NewDiskStorage(ic.CacheDir, ic.MinFreeMB*megabyte)
	if err != nil {
		im.logger.Error("Image cache unavailable", err)
		return nil
	}

	getter := im.images
	if getter == nil {
		fc := fetcher.DefaultConfig()
		if ic.TimeoutSeconds > 0 {
			fc.Timeout = time.Duration(ic.TimeoutSeconds) * time.Second
		}
		if ic.MaxFileSizeMB > 0 {
			fc.MaxBytes = ic.MaxFileSizeMB * megabyte
		}
		fc.Retry = fc.Retry.WithAttempts(1)
		getter = fetcher.New(fc, im.logger)
	}

	cache, err := assets.Open(assets.Options{
		ProxyAvailable: ic.ProxyAvailable,
		Retention:      time.Duration(ic.RetentionDays) * 24 * time.Hour,
		MaxFailures:    uint(ic.MaxFailures),
		Logger:         im.logger,
	}, storage, getter)
	if err != nil {
		if errors.Is(err, assets.ErrLocked) {
			im.logger.Warn("Image cache is locked by another run, images will not be cached")
		} else {
			im.logger.Error("Failed to open image cache", err)
		}
		return nil
	}
	return cache
}

// fetchFeed returns a local path for source, downloading http(s) feeds to a temp file
func (im *Importer) fetchFeed(ctx context.Context, source string) (string, func(), error) {
	lower := strings.ToLower(source)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return source, func() {}, nil
	}

	dir, err := os.MkdirTemp("", "guidepost-feed-*")
	if err != nil {
		return "", nil, apperrors.FeedOpenError(source, err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	fc := fetcher.DefaultConfig()
	fc.Timeout = time.Duration(im.cfg.Feed.TimeoutSeconds) * time.Second
	fc.MaxBytes = im.cfg.Feed.MaxFileSizeMB * megabyte
	fc.Retry = fc.Retry.WithAttempts(im.cfg.Feed.RetryAttempts)

	dest := filepath.Join(dir, "feed.xml")
	if _, err := fetcher.New(fc, im.logger).Download(ctx, source, dest); err != nil {
		cleanup()
		return "", nil, apperrors.FeedOpenError(source, fmt.Errorf("download failed: %w", err))
	}
	return dest, cleanup, nil
}

// persist saves the category table and merges the guide in one transaction
func (im *Importer) persist(res *Result, runID string) (store.MergeResult, error) {
	var merge store.MergeResult
	err := im.db.Transaction(func(tx *gorm.DB) error {
		if err := store.NewCategoryStore(tx).Save(res.Table); err != nil {
			return apperrors.DatabaseError("failed to save category table", err)
		}
		var err error
		if merge, err = store.NewGuideStore(tx).Merge(res.Channels, runID); err != nil {
			return apperrors.DatabaseError("failed to merge guide", err)
		}
		return nil
	})
	if err != nil {
		return store.MergeResult{}, err
	}
	return merge, nil
}
