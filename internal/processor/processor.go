// Package processor builds per-channel schedules from an XMLTV feed.
//
// A Processor streams the feed once. Channel records become schedule.Channels
// with exactly one identity kind; programme records are normalized (time,
// category, episode identity, kind, images) and inserted into their channel's
// ordered schedule. After the feed ends, overrides are applied and the image
// cache is swept.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/glefebvre/guidepost/internal/assets"
	"github.com/glefebvre/guidepost/internal/category"
	"github.com/glefebvre/guidepost/internal/classifier"
	"github.com/glefebvre/guidepost/internal/episode"
	apperrors "github.com/glefebvre/guidepost/internal/errors"
	"github.com/glefebvre/guidepost/internal/language"
	"github.com/glefebvre/guidepost/internal/logger"
	"github.com/glefebvre/guidepost/internal/overrides"
	"github.com/glefebvre/guidepost/internal/schedule"
	"github.com/glefebvre/guidepost/internal/timenorm"
	"github.com/glefebvre/guidepost/internal/xmltv"
)

// State is the phase a run is in
type State int

const (
	StateIdle State = iota
	StateParsingChannels
	StateParsingProgrammes
	StateReconciling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateParsingChannels:
		return "parsing_channels"
	case StateParsingProgrammes:
		return "parsing_programmes"
	case StateReconciling:
		return "reconciling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Options configures a run
type Options struct {
	Language          string
	ChannelIDFormat   schedule.IDKind
	Location          *time.Location
	FeedZone          *time.Location // read offset-less stamps in this zone; nil means UTC
	StrictIntervals   bool
	IgnoreEpisodeTags bool

	PrefixNew  bool
	NewPrefix  string
	PrefixLive bool
	LivePrefix string
}

// Result is what a successful run produces
type Result struct {
	Channels  []*schedule.Channel
	Stats     *Statistics
	Undefined []category.Undefined
	Table     *category.Table
	Parse     xmltv.Stats
}

// Processor runs the schedule pipeline. It is single use: call Run once.
type Processor struct {
	opts       Options
	normalizer *timenorm.Normalizer
	categories *category.Classifier
	kinds      *classifier.Classifier
	overrides  *overrides.Manager
	cache      *assets.Cache
	logger     *logger.Logger

	state    State
	channels map[string]*schedule.Channel
	order    []*schedule.Channel
	nextSeq  int
	stats    *Statistics
}

// New creates a processor. table is mutated during the run; overrides and
// cache may be nil.
func New(opts Options, table *category.Table, ovr *overrides.Manager, cache *assets.Cache, log *logger.Logger) *Processor {
	if opts.ChannelIDFormat == "" {
		opts.ChannelIDFormat = schedule.KindName
	}
	if opts.NewPrefix == "" {
		opts.NewPrefix = "NEW: "
	}
	if opts.LivePrefix == "" {
		opts.LivePrefix = "LIVE: "
	}
	if table == nil {
		table = category.NewTable(nil, nil, nil)
	}
	if ovr == nil {
		ovr = overrides.NewManager()
	}
	if log == nil {
		log = logger.AppLogger()
	}

	normalizer := timenorm.New(opts.Location, opts.StrictIntervals)
	normalizer.SetFeedZone(opts.FeedZone)

	return &Processor{
		opts:       opts,
		normalizer: normalizer,
		categories: category.NewClassifier(table),
		kinds:      classifier.New(),
		overrides:  ovr,
		cache:      cache,
		logger:     log,
		channels:   make(map[string]*schedule.Channel),
		stats:      &Statistics{},
	}
}

// State returns the current phase
func (p *Processor) State() State {
	return p.state
}

// Run streams r and returns the built schedules. Fatal feed errors and
// context cancellation abort the run; nothing is returned in that case.
func (p *Processor) Run(ctx context.Context, r io.Reader) (*Result, error) {
	if p.state != StateIdle {
		return nil, fmt.Errorf("processor already used (state %s)", p.state)
	}
	started := time.Now()
	p.state = StateParsingChannels

	p.logger.WithFields(map[string]interface{}{
		"run_id":            logger.RunIDFromContext(ctx),
		"language":          p.opts.Language,
		"channel_id_format": string(p.opts.ChannelIDFormat),
		"images":            p.cache != nil,
	}).Info("Starting schedule build")

	parser := &xmltv.Parser{
		OnChannel: func(ch *xmltv.Channel) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.addChannel(ctx, ch)
			return nil
		},
		OnProgramme: func(prog *xmltv.Programme) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.state = StateParsingProgrammes
			p.addProgramme(ctx, prog)
			return nil
		},
	}

	if err := parser.ParseCompressed(r); err != nil {
		p.state = StateFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !apperrors.IsFatal(err) {
			err = apperrors.FeedMalformedError(err)
		}
		p.logger.ErrorContext(ctx, "Schedule build aborted", err)
		return nil, err
	}

	p.state = StateReconciling
	p.reconcile(ctx)

	p.state = StateDone
	p.stats.Duration = time.Since(started)

	p.logger.WithFields(map[string]interface{}{
		"run_id":           logger.RunIDFromContext(ctx),
		"channels":         p.stats.ChannelsCreated,
		"programmes":       p.stats.ProgrammesCreated,
		"dropped":          p.stats.DroppedNoChannel + p.stats.DroppedInvalidInterval,
		"duplicates":       p.stats.Duplicates,
		"duration_seconds": p.stats.Duration.Seconds(),
	}).Info("Schedule build completed")

	return &Result{
		Channels:  p.order,
		Stats:     p.stats,
		Undefined: p.categories.Table().Undefined(),
		Table:     p.categories.Table(),
		Parse:     parser.Stats(),
	}, nil
}

func (p *Processor) addChannel(ctx context.Context, raw *xmltv.Channel) {
	if p.state == StateParsingProgrammes {
		p.logger.WithFields(map[string]interface{}{"channel": raw.ID}).Debug("Channel defined after programmes")
	}

	if _, exists := p.channels[raw.ID]; exists {
		p.stats.DuplicateChannels++
		p.logger.WithFields(map[string]interface{}{"channel": raw.ID}).WarnContext(ctx, "Duplicate channel id, keeping the first definition")
		return
	}

	name := language.Resolve(raw.DisplayNames, p.opts.Language)
	if name == "" {
		name = raw.ID
	}

	kind := kindFor(raw, p.opts.ChannelIDFormat)
	triplet, lcn, err := parseIdentity(kind, raw)
	if err != nil {
		p.stats.InvalidChannelIDs++
		appErr := apperrors.RecordError(apperrors.CodeInvalidChannelID, "malformed channel identity", err)
		p.logger.WithFields(map[string]interface{}{
			"channel": raw.ID,
			"kind":    string(kind),
			"code":    string(appErr.Code),
			"error":   appErr.Error(),
		}).WarnContext(ctx, "Falling back to a sequential channel id")
		kind = schedule.KindName
		triplet, lcn = schedule.Triplet{}, 0
	}
	if kind == schedule.KindName {
		p.nextSeq++
		triplet = schedule.Triplet{Service: p.nextSeq}
	}

	ch := schedule.NewChannel(raw.ID, name, kind, triplet)
	ch.LCN = lcn
	if ch.LCN == 0 && raw.LCN != "" {
		if n, err := strconv.Atoi(raw.LCN); err == nil && n > 0 {
			ch.LCN = n
		}
	}
	ch.URL = raw.URL
	ch.Icon = p.image(ctx, raw.Icon)

	p.channels[raw.ID] = ch
	p.order = append(p.order, ch)
	p.stats.ChannelsCreated++
}

func (p *Processor) addProgramme(ctx context.Context, prog *xmltv.Programme) {
	ch, ok := p.channels[prog.Channel]
	if !ok {
		p.stats.DroppedNoChannel++
		p.logger.WithFields(map[string]interface{}{
			"channel": prog.Channel,
			"start":   prog.Start,
			"code":    string(apperrors.CodeUnknownChannel),
		}).Debug("Dropping programme for unknown channel")
		return
	}

	iv, err := p.normalizer.Normalize(prog.Start, prog.Stop, prog.TimeZone)
	if err != nil {
		p.stats.DroppedInvalidInterval++
		p.logger.WithFields(map[string]interface{}{
			"channel": prog.Channel,
			"start":   prog.Start,
			"stop":    prog.Stop,
			"code":    string(apperrors.CodeInvalidInterval),
			"error":   err.Error(),
		}).Debug("Dropping programme with invalid interval")
		return
	}

	lang := p.opts.Language
	entry := &schedule.Entry{
		Channel:      ch.Triplet,
		EventName:    language.Resolve(prog.Titles, lang),
		SubTitle:     language.Resolve(prog.SubTitles, lang),
		Description:  language.Resolve(prog.Descs, lang),
		Start:        iv.Start,
		Duration:     iv.Duration,
		DSTAdjusted:  iv.DSTAdjusted,
		StarRating:   schedule.ParseStarRating(prog.StarRating),
		VideoQuality: prog.VideoQuality,
		VideoAspect:  prog.VideoAspect,
		AudioQuality: prog.AudioStereo,
		Credits: schedule.Credits{
			Directors:  prog.Credits.Directors,
			Cast:       prog.Credits.Actors,
			GuestStars: prog.Credits.GuestStars,
			Presenters: prog.Credits.Presenters,
			Producers:  prog.Credits.Producers,
			Writers:    prog.Credits.Writers,
		},
		New:  prog.New || prog.Premiere,
		Live: prog.Live,
	}
	if prog.Rating != nil {
		entry.Rating = prog.Rating.Value
		entry.RatingSystem = prog.Rating.System
	}
	entry.OriginalAirDate = parseDate(prog.Date)
	if prog.PreviouslyShown {
		entry.PreviouslyShown = parseDate(prog.PreviousStart)
	}

	outcome := p.categories.Classify(prog.Categories, lang, entry.EventName, entry.Description)
	if !outcome.Result.None() {
		entry.Category = outcome.Result.Tag
		entry.Descriptions = outcome.Result.Descriptions
		entry.Genres = outcome.Result.Genres
	}
	if outcome.NewlyUndefined {
		p.stats.UndefinedCategories++
		p.logger.WithFields(map[string]interface{}{
			"genres": outcome.Result.Genres,
			"sample": entry.EventName,
			"code":   string(apperrors.CodeUnmappedCategory),
		}).Warn("Genre has no category record")
	}

	entry.Episode = episode.Apply(prog.EpisodeNums, p.opts.IgnoreEpisodeTags)
	for _, w := range entry.Episode.Warnings {
		p.stats.EpisodeWarnings++
		p.logger.WithFields(map[string]interface{}{
			"channel": prog.Channel,
			"title":   entry.EventName,
			"code":    string(apperrors.CodeSuspiciousEpisodeTag),
		}).Warn(w)
	}
	if entry.Episode.Scheme == episode.SchemeOpaque {
		p.stats.OpaqueEpisodeTags++
		p.logger.WithFields(map[string]interface{}{
			"system": entry.Episode.TagSystem,
			"code":   string(apperrors.CodeSchemeUnrecognized),
		}).Debug("Keeping unrecognized episode tag verbatim")
	}

	kind := p.kinds.Classify(classifier.Input{
		Title:    entry.EventName,
		SubTitle: entry.SubTitle,
		Genres:   entry.Genres,
		Episode:  entry.Episode,
	})
	entry.Kind = kind.Kind

	entry.Poster = p.image(ctx, prog.Icon)
	entry.Description = p.prefix(entry)

	if !ch.Schedule.Insert(entry) {
		p.stats.Duplicates++
		return
	}
	p.stats.ProgrammesCreated++
	p.stats.countKind(entry.Kind)
	if entry.DSTAdjusted {
		p.stats.DSTAdjusted++
	}
}

// prefix marks new and live programmes in the description when configured
func (p *Processor) prefix(e *schedule.Entry) string {
	desc := e.Description
	if e.New && p.opts.PrefixNew && !strings.HasPrefix(desc, p.opts.NewPrefix) {
		desc = p.opts.NewPrefix + desc
	}
	if e.Live && p.opts.PrefixLive && !strings.HasPrefix(desc, p.opts.LivePrefix) {
		desc = p.opts.LivePrefix + desc
	}
	return desc
}

func (p *Processor) image(ctx context.Context, url string) string {
	if url == "" || p.cache == nil {
		return url
	}
	return p.cache.FetchOrReuse(ctx, url)
}

func (p *Processor) reconcile(ctx context.Context) {
	res := p.overrides.Apply(p.order)
	p.stats.ChannelsExcluded = res.Excluded
	p.stats.ChannelsRenamed = res.Renamed
	if res.Matched > 0 {
		p.logger.WithFields(map[string]interface{}{
			"matched":  res.Matched,
			"renamed":  res.Renamed,
			"excluded": res.Excluded,
		}).InfoContext(ctx, "Applied channel overrides")
	}

	if p.cache == nil {
		return
	}
	// nothing is marked live in a pass-through run
	if !p.cache.PassThrough() {
		if _, err := p.cache.Sweep(); err != nil {
			p.logger.ErrorContext(ctx, "Image cache sweep failed", err)
		}
	}
	cs := p.cache.Stats()
	p.stats.ImagesAdded = cs.Added
	p.stats.ImagesReused = cs.Reused
	p.stats.ImagesDeleted = cs.Deleted
	p.stats.DownloadFailures = cs.Failures
}

// parseDate reads an XMLTV date, which may be a full stamp, a day or a year
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if len(value) == 4 {
		if year, err := strconv.Atoi(value); err == nil {
			t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
			return &t
		}
	}
	if s, err := timenorm.ParseStamp(value); err == nil {
		t := s.UTC()
		return &t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t
	}
	return nil
}
