package api

import (
	"time"

	"github.com/glefebvre/guidepost/internal/models"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// PaginatedResponse wraps paginated results with metadata
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
	TotalPages int         `json:"total_pages"`
}

// ChannelResponse represents a guide channel
type ChannelResponse struct {
	ID            uint   `json:"id"`
	ExternalID    string `json:"external_id"`
	Name          string `json:"name"`
	CallSign      string `json:"call_sign,omitempty"`
	IDKind        string `json:"id_kind"`
	Network       int    `json:"network"`
	Transport     int    `json:"transport"`
	Service       int    `json:"service"`
	ChannelNumber string `json:"channel_number,omitempty"`
	Icon          string `json:"icon,omitempty"`
	LastRunID     string `json:"last_run_id,omitempty"`
	UpdatedAt     string `json:"updated_at"`
}

// EntryResponse represents one schedule entry
type EntryResponse struct {
	ID              uint              `json:"id"`
	Start           string            `json:"start"`
	End             string            `json:"end"`
	DurationSeconds int64             `json:"duration_seconds"`
	DSTAdjusted     bool              `json:"dst_adjusted,omitempty"`
	EventName       string            `json:"event_name"`
	SubTitle        string            `json:"sub_title,omitempty"`
	Description     string            `json:"description,omitempty"`
	Category        string            `json:"category,omitempty"`
	Descriptions    map[string]string `json:"descriptions,omitempty"`
	Genres          []string          `json:"genres,omitempty"`
	Kind            string            `json:"kind"`
	Episode         *EpisodeResponse  `json:"episode,omitempty"`
	Rating          string            `json:"rating,omitempty"`
	StarRating      float64           `json:"star_rating,omitempty"`
	Credits         models.Credits    `json:"credits"`
	Poster          string            `json:"poster,omitempty"`
	New             bool              `json:"new"`
	Live            bool              `json:"live"`
	OriginalAirDate string            `json:"original_air_date,omitempty"`
}

// EpisodeResponse is the normalized episode identity
type EpisodeResponse struct {
	Scheme       string `json:"scheme"`
	Season       int    `json:"season,omitempty"`
	Episode      int    `json:"episode,omitempty"`
	EpisodeTotal int    `json:"episode_total,omitempty"`
	Part         string `json:"part,omitempty"`
	SeriesID     string `json:"series_id,omitempty"`
	EpisodeID    string `json:"episode_id,omitempty"`
	Prefix       string `json:"prefix,omitempty"`
	Tag          string `json:"tag,omitempty"`
}

// ScheduleResponse is a channel with a window of its schedule
type ScheduleResponse struct {
	Channel ChannelResponse `json:"channel"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Entries []EntryResponse `json:"entries"`
}

// CategoryResponse represents a canonical category record
type CategoryResponse struct {
	Tag          string            `json:"tag"`
	Descriptions map[string]string `json:"descriptions,omitempty"`
	Usage        int               `json:"usage"`
	Sample       string            `json:"sample,omitempty"`
}

// UndefinedResponse represents a ledger row
type UndefinedResponse struct {
	Tag         string `json:"tag"`
	Sample      string `json:"sample"`
	FirstSeenAt string `json:"first_seen_at"`
}

// RunResponse represents one import run
type RunResponse struct {
	RunID        string         `json:"run_id"`
	Source       string         `json:"source"`
	Status       string         `json:"status"`
	DryRun       bool           `json:"dry_run"`
	Channels     int            `json:"channels"`
	Programmes   int            `json:"programmes"`
	Summary      map[string]int `json:"summary,omitempty"`
	StartedAt    string         `json:"started_at"`
	CompletedAt  string         `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toChannelResponse(c models.Channel) ChannelResponse {
	return ChannelResponse{
		ID:            c.ID,
		ExternalID:    c.ExternalID,
		Name:          c.Name,
		CallSign:      c.CallSign,
		IDKind:        c.IDKind,
		Network:       c.Network,
		Transport:     c.Transport,
		Service:       c.Service,
		ChannelNumber: c.ChannelNumber,
		Icon:          c.Icon,
		LastRunID:     c.LastRunID,
		UpdatedAt:     formatTime(c.UpdatedAt),
	}
}

func toEntryResponse(e models.ScheduleEntry) EntryResponse {
	resp := EntryResponse{
		ID:              e.ID,
		Start:           formatTime(e.Start),
		End:             formatTime(e.End()),
		DurationSeconds: e.DurationSeconds,
		DSTAdjusted:     e.DSTAdjusted,
		EventName:       e.EventName,
		SubTitle:        e.SubTitle,
		Description:     e.Description,
		Category:        e.Category,
		Descriptions:    e.Descriptions,
		Genres:          e.Genres,
		Kind:            e.Kind,
		Rating:          e.Rating,
		StarRating:      e.StarRating,
		Credits:         e.Credits,
		Poster:          e.Poster,
		New:             e.New,
		Live:            e.Live,
	}
	if e.OriginalAirDate != nil {
		resp.OriginalAirDate = e.OriginalAirDate.Format("2006-01-02")
	}
	if e.EpisodeScheme != "" {
		resp.Episode = &EpisodeResponse{
			Scheme:       e.EpisodeScheme,
			Season:       e.Season,
			Episode:      e.Episode,
			EpisodeTotal: e.EpisodeTotal,
			Part:         e.Part,
			SeriesID:     e.SeriesID,
			EpisodeID:    e.EpisodeID,
			Prefix:       e.ProgramPrefix,
			Tag:          e.EpisodeTag,
		}
	}
	return resp
}

func toRunResponse(r models.ImportRun) RunResponse {
	resp := RunResponse{
		RunID:      r.RunID,
		Source:     r.Source,
		Status:     string(r.Status),
		DryRun:     r.DryRun,
		Channels:   r.Channels,
		Programmes: r.Programmes,
		Summary:    r.Summary,
		StartedAt:  formatTime(r.StartedAt),
	}
	if r.CompletedAt != nil {
		resp.CompletedAt = formatTime(*r.CompletedAt)
	}
	if r.ErrorMessage != nil {
		resp.ErrorMessage = *r.ErrorMessage
	}
	return resp
}
