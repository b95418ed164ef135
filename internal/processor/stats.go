package processor

import (
	"time"

	"github.com/glefebvre/guidepost/internal/classifier"
)

// Statistics holds the counters of one run
type Statistics struct {
	ChannelsCreated        int
	ProgrammesCreated      int
	DroppedNoChannel       int
	DroppedInvalidInterval int
	Series                 int
	Miniseries             int
	Movies                 int
	Generic                int
	DSTAdjusted            int
	ImagesAdded            int
	ImagesReused           int
	ImagesDeleted          int
	DownloadFailures       int

	Duplicates          int
	DuplicateChannels   int
	InvalidChannelIDs   int
	ChannelsExcluded    int
	ChannelsRenamed     int
	EpisodeWarnings     int
	OpaqueEpisodeTags   int
	UndefinedCategories int

	Duration time.Duration
}

func (s *Statistics) countKind(k classifier.Kind) {
	switch k {
	case classifier.KindSeries:
		s.Series++
	case classifier.KindMiniseries:
		s.Miniseries++
	case classifier.KindMovie:
		s.Movies++
	default:
		s.Generic++
	}
}

// Counter is one named summary value, in report order
type Counter struct {
	Name  string
	Value int
}

// Counters lists every counter in report order
func (s *Statistics) Counters() []Counter {
	return []Counter{
		{"channels_created", s.ChannelsCreated},
		{"programmes_created", s.ProgrammesCreated},
		{"dropped_no_channel", s.DroppedNoChannel},
		{"dropped_invalid_interval", s.DroppedInvalidInterval},
		{"series", s.Series},
		{"miniseries", s.Miniseries},
		{"movie", s.Movies},
		{"generic", s.Generic},
		{"dst_adjusted", s.DSTAdjusted},
		{"images_added", s.ImagesAdded},
		{"images_reused", s.ImagesReused},
		{"images_deleted", s.ImagesDeleted},
		{"download_failures", s.DownloadFailures},
		{"duplicates", s.Duplicates},
		{"duplicate_channels", s.DuplicateChannels},
		{"invalid_channel_ids", s.InvalidChannelIDs},
		{"channels_excluded", s.ChannelsExcluded},
		{"channels_renamed", s.ChannelsRenamed},
		{"episode_warnings", s.EpisodeWarnings},
		{"opaque_episode_tags", s.OpaqueEpisodeTags},
		{"undefined_categories", s.UndefinedCategories},
	}
}

// Map returns the counters keyed by name
func (s *Statistics) Map() map[string]int {
	counters := s.Counters()
	out := make(map[string]int, len(counters))
	for _, c := range counters {
		out[c.Name] = c.Value
	}
	return out
}
