package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/glefebvre/guidepost/internal/models"
	"github.com/glefebvre/guidepost/internal/schedule"
)

// MergeResult counts what Merge wrote
type MergeResult struct {
	ChannelsCreated int
	ChannelsUpdated int
	ChannelsSkipped int
	EntriesDeleted  int64
	EntriesWritten  int
}

// GuideStore merges imported schedules into the master guide
type GuideStore struct {
	db        *gorm.DB
	batchSize int
}

// NewGuideStore creates a guide store on db
func NewGuideStore(db *gorm.DB) *GuideStore {
	return &GuideStore{db: db, batchSize: 200}
}

// Merge upserts every non-excluded channel by external id and replaces its
// entries inside the imported window with the new schedule. Entries outside
// the window are left alone. Everything happens in one transaction.
// Starts are stored in UTC so they compare correctly as text in sqlite.
func (s *GuideStore) Merge(channels []*schedule.Channel, runID string) (MergeResult, error) {
	var res MergeResult

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, ch := range channels {
			if ch.Excluded {
				res.ChannelsSkipped++
				continue
			}

			row, created, err := upsertChannel(tx, ch, runID)
			if err != nil {
				return err
			}
			if created {
				res.ChannelsCreated++
			} else {
				res.ChannelsUpdated++
			}

			from, to, ok := ch.Schedule.Window()
			if !ok {
				continue
			}

			del := tx.Where("channel_id = ? AND start >= ? AND start < ?", row.ID, from.UTC(), to.UTC()).Delete(&models.ScheduleEntry{})
			if del.Error != nil {
				return fmt.Errorf("failed to clear schedule for channel %s: %w", ch.ExternalID, del.Error)
			}
			res.EntriesDeleted += del.RowsAffected

			entries := make([]models.ScheduleEntry, 0, ch.Schedule.Len())
			for _, e := range ch.Schedule.Entries() {
				entries = append(entries, toEntryModel(row.ID, e))
			}
			if err := tx.CreateInBatches(entries, s.batchSize).Error; err != nil {
				return fmt.Errorf("failed to save schedule for channel %s: %w", ch.ExternalID, err)
			}
			res.EntriesWritten += len(entries)
		}
		return nil
	})
	if err != nil {
		return MergeResult{}, err
	}
	return res, nil
}

func upsertChannel(tx *gorm.DB, ch *schedule.Channel, runID string) (*models.Channel, bool, error) {
	now := time.Now()

	var existing models.Channel
	err := tx.Where("external_id = ?", ch.ExternalID).First(&existing).Error
	switch {
	case err == nil:
		applyChannel(&existing, ch, runID)
		existing.UpdatedAt = now
		if err := tx.Save(&existing).Error; err != nil {
			return nil, false, fmt.Errorf("failed to update channel %s: %w", ch.ExternalID, err)
		}
		return &existing, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		row := &models.Channel{ExternalID: ch.ExternalID, CreatedAt: now, UpdatedAt: now}
		applyChannel(row, ch, runID)
		if err := tx.Create(row).Error; err != nil {
			return nil, false, fmt.Errorf("failed to create channel %s: %w", ch.ExternalID, err)
		}
		return row, true, nil
	default:
		return nil, false, fmt.Errorf("failed to check for existing channel: %w", err)
	}
}

func applyChannel(row *models.Channel, ch *schedule.Channel, runID string) {
	row.Name = ch.Name
	row.CallSign = ch.CallSign
	row.IDKind = string(ch.Kind)
	row.Network = ch.Triplet.Network
	row.Transport = ch.Triplet.Transport
	row.Service = ch.Triplet.Service
	row.LCN = ch.LCN
	row.ChannelNumber = ch.Number()
	row.Icon = ch.Icon
	row.URL = ch.URL
	row.LastRunID = runID
}

func toEntryModel(channelID uint, e *schedule.Entry) models.ScheduleEntry {
	id := e.Episode
	tag := ""
	if id.TagSystem != "" {
		tag = id.TagSystem + ":" + id.TagValue
	}
	return models.ScheduleEntry{
		ChannelID:       channelID,
		Start:           e.Start.UTC(),
		DurationSeconds: int64(e.Duration / time.Second),
		DSTAdjusted:     e.DSTAdjusted,
		EventName:       e.EventName,
		SubTitle:        e.SubTitle,
		Description:     e.Description,
		OriginalAirDate: e.OriginalAirDate,
		PreviouslyShown: e.PreviouslyShown,
		Category:        e.Category,
		Descriptions:    e.Descriptions,
		Genres:          e.Genres,
		Rating:          e.Rating,
		RatingSystem:    e.RatingSystem,
		StarRating:      e.StarRating,
		VideoQuality:    e.VideoQuality,
		VideoAspect:     e.VideoAspect,
		AudioQuality:    e.AudioQuality,
		EpisodeScheme:   string(id.Scheme),
		Season:          id.Season,
		Episode:         id.Episode,
		EpisodeTotal:    id.EpisodeTotal,
		Part:            id.Part,
		SeriesID:        id.SeriesID,
		EpisodeID:       id.EpisodeID,
		ProgramPrefix:   id.Prefix,
		EpisodeTag:      tag,
		Credits: models.Credits{
			Directors:  e.Credits.Directors,
			Cast:       e.Credits.Cast,
			GuestStars: e.Credits.GuestStars,
			Presenters: e.Credits.Presenters,
			Producers:  e.Credits.Producers,
			Writers:    e.Credits.Writers,
		},
		Poster:    e.Poster,
		New:       e.New,
		Live:      e.Live,
		Kind:      string(e.Kind),
		CreatedAt: time.Now(),
	}
}

// ListChannels returns stored channels ordered by name
func (s *GuideStore) ListChannels(limit, offset int) ([]models.Channel, int64, error) {
	var total int64
	if err := s.db.Model(&models.Channel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count channels: %w", err)
	}

	var rows []models.Channel
	q := s.db.Order("name, id").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list channels: %w", err)
	}
	return rows, total, nil
}

// GetChannel finds a channel by primary key
func (s *GuideStore) GetChannel(id uint) (*models.Channel, error) {
	var row models.Channel
	if err := s.db.First(&row, id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Schedule returns a channel's entries that end after from and start before to,
// ordered by start. A zero bound is open.
func (s *GuideStore) Schedule(channelID uint, from, to time.Time) ([]models.ScheduleEntry, error) {
	q := s.db.Where("channel_id = ?", channelID)
	if !to.IsZero() {
		q = q.Where("start < ?", to.UTC())
	}

	var rows []models.ScheduleEntry
	if err := q.Order("start").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	if from.IsZero() {
		return rows, nil
	}
	out := rows[:0]
	for _, r := range rows {
		if r.End().After(from) {
			out = append(out, r)
		}
	}
	return out, nil
}
