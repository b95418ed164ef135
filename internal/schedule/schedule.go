// Package schedule holds the normalized channel and programme model and keeps
// each channel's entries ordered by start time.
package schedule

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/glefebvre/guidepost/internal/classifier"
	"github.com/glefebvre/guidepost/internal/episode"
)

// IDKind is how a channel is identified. It is fixed when the channel is created.
type IDKind string

const (
	KindTriplet IDKind = "dvb-triplet"
	KindService IDKind = "dvb-service"
	KindATSC    IDKind = "zap2it-atsc"
	KindLCN     IDKind = "lcn"
	KindName    IDKind = "name"
)

// ValidKind reports whether s names a known identity kind
func ValidKind(s string) bool {
	switch IDKind(s) {
	case KindTriplet, KindService, KindATSC, KindLCN, KindName:
		return true
	}
	return false
}

// Triplet is the numeric identity of a channel. Which fields are meaningful
// depends on the channel's IDKind.
type Triplet struct {
	Network   int
	Transport int
	Service   int
}

// Channel is one normalized channel with its schedule
type Channel struct {
	ExternalID    string
	Name          string
	CallSign      string
	Kind          IDKind
	Triplet       Triplet
	LCN           int
	ChannelNumber string
	Icon          string
	URL           string
	Excluded      bool

	Schedule *Schedule
}

// NewChannel creates a channel with an empty schedule
func NewChannel(externalID, name string, kind IDKind, triplet Triplet) *Channel {
	return &Channel{
		ExternalID: externalID,
		Name:       name,
		Kind:       kind,
		Triplet:    triplet,
		Schedule:   &Schedule{},
	}
}

// Number renders the user-facing channel number for the identity kind
func (c *Channel) Number() string {
	if c.ChannelNumber != "" {
		return c.ChannelNumber
	}
	switch c.Kind {
	case KindATSC:
		return strconv.Itoa(c.Triplet.Transport) + "." + strconv.Itoa(c.Triplet.Service)
	case KindLCN:
		return strconv.Itoa(c.LCN)
	case KindTriplet:
		return strconv.Itoa(c.Triplet.Network) + "." + strconv.Itoa(c.Triplet.Transport) + "." + strconv.Itoa(c.Triplet.Service)
	case KindService:
		return strconv.Itoa(c.Triplet.Service)
	}
	return ""
}

// Credits lists people per role in appearance order
type Credits struct {
	Directors  []string `json:"directors,omitempty"`
	Cast       []string `json:"cast,omitempty"`
	GuestStars []string `json:"guest_stars,omitempty"`
	Presenters []string `json:"presenters,omitempty"`
	Producers  []string `json:"producers,omitempty"`
	Writers    []string `json:"writers,omitempty"`
}

// Empty reports whether no role has anyone in it
func (c Credits) Empty() bool {
	return len(c.Directors)+len(c.Cast)+len(c.GuestStars)+len(c.Presenters)+len(c.Producers)+len(c.Writers) == 0
}

// Entry is one normalized programme airing
type Entry struct {
	Channel Triplet

	EventName   string
	Description string
	SubTitle    string

	Start       time.Time
	Duration    time.Duration
	DSTAdjusted bool

	OriginalAirDate *time.Time
	PreviouslyShown *time.Time

	Category     string
	Descriptions map[string]string
	Genres       []string

	Rating       string
	RatingSystem string
	StarRating   float64 // 0 to 4 in half steps
	VideoQuality string
	VideoAspect  string
	AudioQuality string

	Episode episode.Identity
	Credits Credits
	Poster  string

	New  bool
	Live bool
	Kind classifier.Kind
}

// End returns the instant the entry finishes
func (e *Entry) End() time.Time {
	return e.Start.Add(e.Duration)
}

// Stars renders the star rating as glyphs, e.g. "★★★½"
func (e *Entry) Stars() string {
	if e.StarRating <= 0 {
		return ""
	}
	full := int(e.StarRating)
	var b strings.Builder
	b.WriteString(strings.Repeat("★", full))
	if e.StarRating-float64(full) >= 0.5 {
		b.WriteString("½")
	}
	return b.String()
}

// Schedule is a channel's entries in strictly ascending start order
type Schedule struct {
	entries []*Entry
}

// Insert places e by start time. An entry with the same start as an existing
// one is a duplicate: it is not inserted and Insert returns false.
func (s *Schedule) Insert(e *Entry) bool {
	i := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].Start.Before(e.Start)
	})
	if i < len(s.entries) && s.entries[i].Start.Equal(e.Start) {
		return false
	}
	s.entries = append(s.entries, nil)
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = e
	return true
}

// Entries returns the ordered entries. The slice must not be modified.
func (s *Schedule) Entries() []*Entry {
	return s.entries
}

// Len returns the number of entries
func (s *Schedule) Len() int {
	return len(s.entries)
}

// Window returns the start of the first entry and the end of the last one
func (s *Schedule) Window() (from, to time.Time, ok bool) {
	if len(s.entries) == 0 {
		return time.Time{}, time.Time{}, false
	}
	from = s.entries[0].Start
	for _, e := range s.entries {
		if end := e.End(); end.After(to) {
			to = end
		}
	}
	return from, to, true
}

// NormalizeStars converts a "value/max" rating to the 4-star scale rounded to half steps
func NormalizeStars(value, max float64) float64 {
	if value <= 0 || max <= 0 {
		return 0
	}
	scaled := value / max * 4
	if scaled > 4 {
		scaled = 4
	}
	return float64(int(scaled*2+0.5)) / 2
}

// ParseStarRating reads "value/max" (max defaults to 4) onto the 4-star scale.
// Unparsable input gives 0.
func ParseStarRating(s string) float64 {
	num, den, hasDen := strings.Cut(strings.TrimSpace(s), "/")
	value, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0
	}
	max := 4.0
	if hasDen {
		if max, err = strconv.ParseFloat(strings.TrimSpace(den), 64); err != nil {
			return 0
		}
	}
	return NormalizeStars(value, max)
}
