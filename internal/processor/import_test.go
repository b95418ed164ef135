package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/glefebvre/guidepost/internal/config"
	apperrors "github.com/glefebvre/guidepost/internal/errors"
	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/metrics"
	"github.com/glefebvre/guidepost/internal/models"
	"github.com/glefebvre/guidepost/internal/store"
	dbtest "github.com/glefebvre/guidepost/internal/testing"
)

func testConfig(feedPath string) *config.Config {
	return &config.Config{
		Feed: config.FeedConfig{
			Path:            feedPath,
			ChannelIDFormat: "name",
			Language:        "en",
			LocalTimeZone:   "UTC",
			RetryAttempts:   1,
		},
		Import: config.ImportConfig{Persist: true},
	}
}

func writeFeed(t *testing.T, feed *dbtest.FeedBuilder) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guide.xml")
	if err := os.WriteFile(path, []byte(feed.String()), 0644); err != nil {
		t.Fatalf("failed to write feed: %v", err)
	}
	return path
}

func sampleFeed() *dbtest.FeedBuilder {
	return dbtest.NewFeed().
		Channel("one.example", "One").
		Channel("shop.example", "Shop").
		Programme("one.example", "20240601180000 +0000", "20240601190000 +0000", "News", `<category lang="en">News</category>`).
		Programme("one.example", "20240601190000 +0000", "20240601200000 +0000", "Quiz Night", `<category lang="en">Quiz</category>`).
		Programme("shop.example", "20240601180000 +0000", "20240601190000 +0000", "Bargains")
}

func TestImport_Persists(t *testing.T) {
	db := dbtest.TestDB(t)
	cfg := testConfig(writeFeed(t, sampleFeed()))
	cfg.Overrides = []config.ChannelOverride{{Name: "Shop", Exclude: true}}
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	report, err := NewImporter(cfg, db, rec, logger.Discard()).Import(context.Background(), ImportOptions{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if report.RunID == "" {
		t.Error("expected a run id")
	}
	if report.Merge.ChannelsCreated != 1 || report.Merge.ChannelsSkipped != 1 {
		t.Errorf("unexpected merge result: %+v", report.Merge)
	}
	if report.Merge.EntriesWritten != 2 {
		t.Errorf("expected 2 entries written, got %d", report.Merge.EntriesWritten)
	}

	dbtest.AssertCount(t, db, &models.Channel{}, 1, "channels")
	dbtest.AssertCount(t, db, &models.ScheduleEntry{}, 2, "entries")
	dbtest.AssertCount(t, db, &models.UndefinedCategory{}, 2, "undefined categories")

	runs, err := store.NewRunStore(db).Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != models.RunSucceeded || runs[0].Programmes != 3 {
		t.Errorf("unexpected runs: %+v", runs)
	}
	if runs[0].Summary["channels_excluded"] != 1 {
		t.Errorf("expected summary to carry excluded channels, got %v", runs[0].Summary)
	}

	if n, err := testutil.GatherAndCount(reg, "guidepost_import_runs_total"); err != nil || n != 1 {
		t.Errorf("expected one run series, got %d (%v)", n, err)
	}
}

func TestImport_ReimportReplacesWindow(t *testing.T) {
	db := dbtest.TestDB(t)
	im := NewImporter(testConfig(writeFeed(t, sampleFeed())), db, nil, logger.Discard())

	for i := 0; i < 2; i++ {
		if _, err := im.Import(context.Background(), ImportOptions{}); err != nil {
			t.Fatalf("Import %d failed: %v", i, err)
		}
	}

	dbtest.AssertCount(t, db, &models.Channel{}, 2, "channels")
	dbtest.AssertCount(t, db, &models.ScheduleEntry{}, 3, "entries")
	dbtest.AssertCount(t, db, &models.ImportRun{}, 2, "runs")
}

func TestImport_DryRun(t *testing.T) {
	db := dbtest.TestDB(t)
	cfg := testConfig(writeFeed(t, sampleFeed()))
	cfg.Images = config.ImagesConfig{Enabled: true, ProxyAvailable: true, CacheDir: filepath.Join(t.TempDir(), "images")}

	report, err := NewImporter(cfg, db, nil, logger.Discard()).Import(context.Background(), ImportOptions{DryRun: true})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !report.DryRun || report.Result == nil || report.Result.Stats.ProgrammesCreated != 3 {
		t.Errorf("unexpected report: %+v", report)
	}

	dbtest.AssertCount(t, db, &models.ScheduleEntry{}, 0, "entries")
	dbtest.AssertCount(t, db, &models.CategoryRecord{}, 0, "categories")

	runs, _ := store.NewRunStore(db).Recent(1)
	if len(runs) != 1 || !runs[0].DryRun {
		t.Errorf("expected a recorded dry run, got %+v", runs)
	}
	if _, err := os.Stat(cfg.Images.CacheDir); !os.IsNotExist(err) {
		t.Error("dry run should not open the image cache")
	}
}

func TestImport_Images(t *testing.T) {
	feed := dbtest.NewFeed().
		Channel("one.example", "One", `<icon src="http://img.example.com/one.png" />`).
		Programme("one.example", "20240601180000 +0000", "20240601190000 +0000", "News")
	cfg := testConfig(writeFeed(t, feed))
	cfg.Import.Persist = false
	cfg.Images = config.ImagesConfig{Enabled: true, ProxyAvailable: true, CacheDir: filepath.Join(t.TempDir(), "images")}

	getter := &countingGetter{}
	im := NewImporter(cfg, nil, nil, logger.Discard())
	im.images = getter

	report, err := im.Import(context.Background(), ImportOptions{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if report.Result.Stats.ImagesAdded != 1 || getter.calls != 1 {
		t.Errorf("expected one image fetched, got added=%d calls=%d", report.Result.Stats.ImagesAdded, getter.calls)
	}
	if _, err := os.Stat(filepath.Join(cfg.Images.CacheDir, "one.png")); err != nil {
		t.Errorf("expected cached image: %v", err)
	}

	report, err = im.Import(context.Background(), ImportOptions{NoImages: true})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if getter.calls != 1 {
		t.Errorf("expected no fetch with images disabled, got %d calls", getter.calls)
	}
	if icon := report.Result.Channels[0].Icon; icon != "http://img.example.com/one.png" {
		t.Errorf("expected icon passed through, got %q", icon)
	}
}

func TestImport_FeedTimeZone(t *testing.T) {
	feed := dbtest.NewFeed().
		Channel("one.example", "One").
		Programme("one.example", "20240601180000", "20240601190000", "Evening News").
		Programme("one.example", "20240601190000 +0000", "20240601200000 +0000", "Quiz")
	cfg := testConfig(writeFeed(t, feed))
	cfg.Import.Persist = false
	cfg.Feed.TimeZone = "America/New_York"

	report, err := NewImporter(cfg, nil, nil, logger.Discard()).Import(context.Background(), ImportOptions{})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	entries := report.Result.Channels[0].Schedule.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if want := time.Date(2024, 6, 1, 19, 0, 0, 0, time.UTC); !entries[0].Start.Equal(want) {
		t.Errorf("expected the offset stamp at %s, got %s", want, entries[0].Start)
	}
	if want := time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC); !entries[1].Start.Equal(want) {
		t.Errorf("expected the offset-less stamp at %s, got %s", want, entries[1].Start)
	}

	cfg.Feed.TimeZone = "Nowhere/Special"
	_, err = NewImporter(cfg, nil, nil, logger.Discard()).Import(context.Background(), ImportOptions{})
	if apperrors.GetErrorCode(err) != apperrors.CodeConfig {
		t.Errorf("expected CONFIG_ERROR for an unknown zone, got %v", err)
	}
}

func TestImport_MergeFailureCommitsNothing(t *testing.T) {
	db := dbtest.TestDB(t)
	if err := db.Migrator().DropTable(&models.ScheduleEntry{}); err != nil {
		t.Fatalf("failed to drop schedule table: %v", err)
	}

	_, err := NewImporter(testConfig(writeFeed(t, sampleFeed())), db, nil, logger.Discard()).Import(context.Background(), ImportOptions{})
	if apperrors.GetErrorCode(err) != apperrors.CodeDatabase {
		t.Fatalf("expected DATABASE_ERROR, got %v", err)
	}

	dbtest.AssertCount(t, db, &models.UndefinedCategory{}, 0, "undefined categories")
	dbtest.AssertCount(t, db, &models.CategoryRecord{}, 0, "categories")
	dbtest.AssertCount(t, db, &models.Channel{}, 0, "channels")

	runs, _ := store.NewRunStore(db).Recent(1)
	if len(runs) != 1 || runs[0].Status != models.RunFailed {
		t.Errorf("expected the run to be recorded as failed, got %+v", runs)
	}
}

func TestImport_Failures(t *testing.T) {
	t.Run("no source", func(t *testing.T) {
		_, err := NewImporter(testConfig(""), nil, nil, logger.Discard()).Import(context.Background(), ImportOptions{})
		if !apperrors.IsValidationError(err) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		db := dbtest.TestDB(t)
		missing := filepath.Join(t.TempDir(), "absent.xml")
		_, err := NewImporter(testConfig(missing), db, nil, logger.Discard()).Import(context.Background(), ImportOptions{})
		if apperrors.GetErrorCode(err) != apperrors.CodeFeedOpen {
			t.Errorf("expected FEED_OPEN_ERROR, got %v", err)
		}

		runs, _ := store.NewRunStore(db).Recent(1)
		if len(runs) != 1 || runs[0].Status != models.RunFailed || runs[0].ErrorMessage == nil {
			t.Errorf("expected a failed run, got %+v", runs)
		}
	})

	t.Run("malformed feed commits nothing", func(t *testing.T) {
		db := dbtest.TestDB(t)
		path := filepath.Join(t.TempDir(), "bad.xml")
		if err := os.WriteFile(path, []byte(`<tv><channel id="a"><display-name>A</channel>`), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := NewImporter(testConfig(path), db, nil, logger.Discard()).Import(context.Background(), ImportOptions{})
		if apperrors.GetErrorCode(err) != apperrors.CodeFeedMalformed {
			t.Errorf("expected FEED_MALFORMED, got %v", err)
		}
		dbtest.AssertCount(t, db, &models.Channel{}, 0, "channels")
	})
}
