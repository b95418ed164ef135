package models

import "time"

// Credits is stored as JSON on a schedule entry
type Credits struct {
	Directors  []string `json:"directors,omitempty"`
	Cast       []string `json:"cast,omitempty"`
	GuestStars []string `json:"guest_stars,omitempty"`
	Presenters []string `json:"presenters,omitempty"`
	Producers  []string `json:"producers,omitempty"`
	Writers    []string `json:"writers,omitempty"`
}

// ScheduleEntry is one programme airing on a channel.
// (channel_id, start) is unique.
type ScheduleEntry struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	ChannelID       uint       `gorm:"not null;uniqueIndex:idx_entries_channel_start" json:"channel_id"`
	Start           time.Time  `gorm:"not null;uniqueIndex:idx_entries_channel_start" json:"start"`
	DurationSeconds int64      `gorm:"not null" json:"duration_seconds"`
	DSTAdjusted     bool       `gorm:"not null;default:false" json:"dst_adjusted,omitempty"`
	EventName       string     `gorm:"type:varchar(500);not null" json:"event_name"`
	SubTitle        string     `gorm:"type:varchar(500)" json:"sub_title,omitempty"`
	Description     string     `gorm:"type:text" json:"description,omitempty"`
	OriginalAirDate *time.Time `json:"original_air_date,omitempty"`
	PreviouslyShown *time.Time `json:"previously_shown,omitempty"`

	Category     string            `gorm:"type:varchar(255);index" json:"category,omitempty"`
	Descriptions map[string]string `gorm:"type:text;serializer:json" json:"descriptions,omitempty"`
	Genres       []string          `gorm:"type:text;serializer:json" json:"genres,omitempty"`

	Rating       string  `gorm:"type:varchar(50)" json:"rating,omitempty"`
	RatingSystem string  `gorm:"type:varchar(50)" json:"rating_system,omitempty"`
	StarRating   float64 `gorm:"not null;default:0" json:"star_rating,omitempty"`
	VideoQuality string  `gorm:"type:varchar(50)" json:"video_quality,omitempty"`
	VideoAspect  string  `gorm:"type:varchar(20)" json:"video_aspect,omitempty"`
	AudioQuality string  `gorm:"type:varchar(50)" json:"audio_quality,omitempty"`

	EpisodeScheme string `gorm:"type:varchar(50)" json:"episode_scheme,omitempty"`
	Season        int    `gorm:"not null;default:0" json:"season,omitempty"`
	Episode       int    `gorm:"not null;default:0" json:"episode,omitempty"`
	EpisodeTotal  int    `gorm:"not null;default:0" json:"episode_total,omitempty"`
	Part          string `gorm:"type:varchar(20)" json:"part,omitempty"`
	SeriesID      string `gorm:"type:varchar(100);index" json:"series_id,omitempty"`
	EpisodeID     string `gorm:"type:varchar(100)" json:"episode_id,omitempty"`
	ProgramPrefix string `gorm:"type:varchar(2)" json:"program_prefix,omitempty"`
	EpisodeTag    string `gorm:"type:varchar(255)" json:"episode_tag,omitempty"`

	Credits Credits `gorm:"type:text;serializer:json" json:"credits"`
	Poster  string  `gorm:"type:text" json:"poster,omitempty"`
	New     bool    `gorm:"not null;default:false" json:"new"`
	Live    bool    `gorm:"not null;default:false" json:"live"`
	Kind    string  `gorm:"type:varchar(20);not null;index" json:"kind"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName specifies the table name for ScheduleEntry
func (ScheduleEntry) TableName() string {
	return "schedule_entries"
}

// End returns when the entry finishes
func (e ScheduleEntry) End() time.Time {
	return e.Start.Add(time.Duration(e.DurationSeconds) * time.Second)
}
