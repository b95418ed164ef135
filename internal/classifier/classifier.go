package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/glefebvre/guidepost/internal/episode"
)

// Kind is the programme kind stored on a schedule entry
type Kind string

const (
	KindSeries     Kind = "series"
	KindMiniseries Kind = "miniseries"
	KindMovie      Kind = "movie"
	KindGeneric    Kind = "generic"
)

// Classification represents the result of classifying a programme
type Classification struct {
	Kind    Kind
	Season  *int
	Episode *int
	Reason  string
}

// Input is what the classifier looks at
type Input struct {
	Title    string
	SubTitle string
	Genres   []string
	Episode  episode.Identity
}

// Classifier decides the kind of a programme
type Classifier struct {
	seasonEpisodePatterns []*regexp.Regexp
	movieGenres           []string
	miniseriesGenres      []string
	seriesGenres          []string
}

// New creates a new Classifier with precompiled regex patterns
func New() *Classifier {
	return &Classifier{
		seasonEpisodePatterns: compileSeasonEpisodePatterns(),
		movieGenres:           []string{"movie", "film", "cinema", "spielfilm", "película"},
		miniseriesGenres:      []string{"miniseries", "mini-series", "mini series", "minisérie"},
		seriesGenres:          []string{"series", "série", "serie", "sitcom", "soap", "serial"},
	}
}

// Classify returns the kind of a programme.
//
// The episode identity decides first: an MV prefix is a movie, an EP prefix is
// a series, an ordinal with a season is a series and an ordinal with an
// episode total but no season is a miniseries. Genres are consulted next
// (miniseries before series, since "miniseries" contains "series"), then a
// season/episode marker in the sub-title or title.
func (c *Classifier) Classify(in Input) Classification {
	id := in.Episode

	switch id.Scheme {
	case episode.SchemePrefixed:
		switch id.Prefix {
		case episode.PrefixMovie:
			return Classification{Kind: KindMovie, Reason: "prefix"}
		case episode.PrefixEpisode:
			return Classification{Kind: KindSeries, Reason: "prefix"}
		}
	case episode.SchemeOrdinal:
		if id.HasSeason() {
			return Classification{Kind: KindSeries, Season: intPtr(id.Season), Episode: positive(id.Episode), Reason: "episode-num"}
		}
		if id.Episode > 0 && id.EpisodeTotal > 0 {
			return Classification{Kind: KindMiniseries, Episode: intPtr(id.Episode), Reason: "episode-num"}
		}
	case episode.SchemePaired:
		return Classification{Kind: KindSeries, Reason: "episode-num"}
	}

	if c.genreMatches(in.Genres, c.movieGenres) {
		return Classification{Kind: KindMovie, Reason: "genre"}
	}
	if c.genreMatches(in.Genres, c.miniseriesGenres) {
		return Classification{Kind: KindMiniseries, Reason: "genre"}
	}
	if c.genreMatches(in.Genres, c.seriesGenres) {
		return Classification{Kind: KindSeries, Reason: "genre"}
	}

	for _, text := range []string{in.SubTitle, in.Title} {
		if season, ep := c.ExtractSeasonEpisode(text); season != nil {
			return Classification{Kind: KindSeries, Season: season, Episode: ep, Reason: "title"}
		}
	}

	return Classification{Kind: KindGeneric}
}

// genreMatches reports whether any genre equals or starts with one of the keywords
func (c *Classifier) genreMatches(genres, keywords []string) bool {
	for _, g := range genres {
		g = strings.ToLower(strings.TrimSpace(g))
		for _, k := range keywords {
			if g == k || strings.HasPrefix(g, k+" ") || strings.HasSuffix(g, " "+k) {
				return true
			}
		}
	}
	return false
}

// ExtractSeasonEpisode attempts to extract season and episode numbers from a title
func (c *Classifier) ExtractSeasonEpisode(title string) (*int, *int) {
	if title == "" {
		return nil, nil
	}
	for _, pattern := range c.seasonEpisodePatterns {
		matches := pattern.FindStringSubmatch(title)
		if len(matches) >= 3 {
			season, err := strconv.Atoi(matches[1])
			if err != nil {
				continue
			}
			ep, err := strconv.Atoi(matches[2])
			if err != nil {
				continue
			}
			return &season, &ep
		}
	}
	return nil, nil
}

// compileSeasonEpisodePatterns returns all precompiled season/episode regex patterns
func compileSeasonEpisodePatterns() []*regexp.Regexp {
	patterns := []string{
		// Standard: S01E05, S1E5, s1e5
		`\b[Ss](\d{1,2})[Ee](\d{1,3})\b`,
		// Dash or space: S01-E05, S01 E05
		`\b[Ss](\d{1,2})[-\s]+[Ee](\d{1,3})\b`,
		// Alternative: 1x05, 01x05
		`\b(\d{1,2})[xX](\d{1,3})\b`,
		// Words: Season 1 Episode 5
		`[Ss]eason\s*(\d{1,2}),?\s*[Ee]pisode\s*(\d{1,3})`,
		// French: Saison 1 Episode 5
		`[Ss]aison\s*(\d{1,2}),?\s*[EeÉé]pisode\s*(\d{1,3})`,
		// Spanish: Temporada 1 Episodio 5
		`[Tt]emporada\s*(\d{1,2}),?\s*[Ee]pisodio\s*(\d{1,3})`,
		// German: Staffel 1 Folge 5
		`[Ss]taffel\s*(\d{1,2}),?\s*[Ff]olge\s*(\d{1,3})`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}

func intPtr(v int) *int {
	return &v
}

func positive(v int) *int {
	if v <= 0 {
		return nil
	}
	return &v
}
