package episode

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrSchemeUnrecognized is returned by Normalize for a system name it does not know
var ErrSchemeUnrecognized = errors.New("unrecognized episode scheme")

// Scheme identifies which numbering convention produced an Identity
type Scheme string

const (
	SchemeNone     Scheme = ""
	SchemeOrdinal  Scheme = "xmltv_ns"
	SchemePrefixed Scheme = "dd_progid"
	SchemePaired   Scheme = "thetvdb.com"
	SchemeOpaque   Scheme = "opaque"
)

// Malformed marks a numeric field that was present but could not be parsed
const Malformed = -1

// Prefixes used by the prefixed-code scheme
const (
	PrefixEpisode = "EP"
	PrefixShow    = "SH"
	PrefixMovie   = "MV"
)

const noEpisodeID = "0000"

// Num is one raw episode-num entry from the feed
type Num struct {
	System string
	Value  string
}

// Identity is the canonical episode identity of a programme.
// Season and Episode are 1-based; 0 means absent and Malformed means unparsable.
type Identity struct {
	Scheme       Scheme
	Season       int
	SeasonTotal  int
	Episode      int
	EpisodeTotal int
	Part         string
	SeriesID     string
	EpisodeID    string
	Prefix       string
	Series       bool

	// Set only for SchemeOpaque
	TagSystem string
	TagValue  string

	Warnings []string
}

// IsZero reports whether no scheme was applied
func (id Identity) IsZero() bool {
	return id.Scheme == SchemeNone
}

// HasSeason reports whether a usable season number is present
func (id Identity) HasSeason() bool {
	return id.Season > 0
}

// String renders a short human form such as S03E06
func (id Identity) String() string {
	switch id.Scheme {
	case SchemeOrdinal:
		switch {
		case id.Season > 0 && id.Episode > 0:
			return fmt.Sprintf("S%02dE%02d", id.Season, id.Episode)
		case id.Episode > 0 && id.EpisodeTotal > 0:
			return fmt.Sprintf("%d/%d", id.Episode, id.EpisodeTotal)
		case id.Episode > 0:
			return fmt.Sprintf("E%02d", id.Episode)
		}
	case SchemePrefixed:
		return id.Prefix + id.SeriesID + "." + id.EpisodeID
	case SchemePaired:
		return id.SeriesID + "." + id.EpisodeID
	case SchemeOpaque:
		return id.TagValue
	}
	return ""
}

// Normalize parses raw according to the named scheme
func Normalize(scheme, raw string) (Identity, error) {
	switch Scheme(scheme) {
	case SchemeOrdinal:
		return parseOrdinal(raw), nil
	case SchemePrefixed:
		return parsePrefixed(raw), nil
	case SchemePaired:
		return parsePaired(raw), nil
	default:
		return Identity{}, fmt.Errorf("%w: %q", ErrSchemeUnrecognized, scheme)
	}
}

// Apply picks the first entry with a recognized scheme and normalizes only that one.
// When none is recognized and ignoreTags is false, the first entry is kept as an opaque tag.
func Apply(entries []Num, ignoreTags bool) Identity {
	for _, e := range entries {
		id, err := Normalize(e.System, e.Value)
		if err == nil {
			return id
		}
	}

	if len(entries) == 0 || ignoreTags {
		return Identity{}
	}
	return Identity{
		Scheme:    SchemeOpaque,
		TagSystem: entries[0].System,
		TagValue:  entries[0].Value,
	}
}

// parseOrdinal handles "season/total.episode/total.part/total", all 0-based
func parseOrdinal(raw string) Identity {
	id := Identity{Scheme: SchemeOrdinal}
	fields := strings.SplitN(raw, ".", 3)

	if len(fields) > 0 {
		id.Season, id.SeasonTotal = ordinalField(fields[0])
	}
	if len(fields) > 1 {
		id.Episode, id.EpisodeTotal = ordinalField(fields[1])
	}
	if len(fields) > 2 {
		id.Part = strings.TrimSpace(fields[2])
	}
	if len(fields) < 2 {
		id.Warnings = append(id.Warnings, fmt.Sprintf("ordinal value %q has no episode field", raw))
	}
	return id
}

func ordinalField(field string) (number, total int) {
	num, tot, _ := strings.Cut(field, "/")
	switch n, state := parseNumber(num); state {
	case numPresent:
		number = int(math.Floor(n)) + 1
	case numMalformed:
		number = Malformed
	}
	switch t, state := parseNumber(tot); state {
	case numPresent:
		total = int(t)
	case numMalformed:
		total = Malformed
	}
	return number, total
}

type numState int

const (
	numAbsent numState = iota
	numPresent
	numMalformed
)

func parseNumber(s string) (float64, numState) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, numAbsent
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 || math.IsNaN(n) || n > math.MaxInt32 {
		return 0, numMalformed
	}
	return n, numPresent
}

// parsePrefixed handles "<prefix><seriesId>.<episodeId>", e.g. EP00000012.0003
func parsePrefixed(raw string) Identity {
	raw = strings.TrimSpace(raw)
	id := Identity{Scheme: SchemePrefixed}

	if len(raw) < 3 {
		id.Warnings = append(id.Warnings, fmt.Sprintf("programme id %q is too short", raw))
		id.SeriesID = raw
		return id
	}

	id.Prefix = strings.ToUpper(raw[:2])
	series, ep, hasEpisode := strings.Cut(raw[2:], ".")
	id.SeriesID = series
	id.EpisodeID = ep

	switch id.Prefix {
	case PrefixEpisode:
		id.Series = true
		if !hasEpisode || ep == noEpisodeID {
			id.Warnings = append(id.Warnings, fmt.Sprintf("episode programme id %q has no episode component", raw))
		}
	case PrefixShow, PrefixMovie:
		if hasEpisode && ep != noEpisodeID {
			id.Warnings = append(id.Warnings, fmt.Sprintf("%s programme id %q carries an episode component", id.Prefix, raw))
		}
	}
	return id
}

// parsePaired handles "<seriesId>.<episodeId>" copied as-is
func parsePaired(raw string) Identity {
	series, ep, _ := strings.Cut(strings.TrimSpace(raw), ".")
	return Identity{
		Scheme:    SchemePaired,
		SeriesID:  series,
		EpisodeID: ep,
	}
}
