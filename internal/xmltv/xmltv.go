// Package xmltv streams channel and programme records out of an XMLTV document.
//
// Records are handed to callbacks in document order, so a feed of any size is
// read once with bounded memory.
package xmltv

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/glefebvre/guidepost/internal/episode"
	apperrors "github.com/glefebvre/guidepost/internal/errors"
	"github.com/glefebvre/guidepost/internal/language"
)

// Channel is one <channel> record
type Channel struct {
	ID           string
	IDFormat     string // id-format attribute, empty when absent
	DisplayNames []language.Text
	LCN          string
	Icon         string
	URL          string
}

// Credits lists people in document order per role
type Credits struct {
	Directors  []string
	Actors     []string
	GuestStars []string
	Presenters []string
	Producers  []string
	Writers    []string
}

// Rating is a parental rating with its system
type Rating struct {
	System string
	Value  string
}

// Programme is one <programme> record with raw timestamps
type Programme struct {
	Channel  string
	Start    string
	Stop     string
	TimeZone string // optional named zone attribute

	Titles      []language.Text
	SubTitles   []language.Text
	Descs       []language.Text
	Categories  []language.Text
	EpisodeNums []episode.Num
	Credits     Credits

	Date            string
	Icon            string
	Rating          *Rating
	StarRating      string
	VideoQuality    string
	VideoAspect     string
	AudioStereo     string
	PreviouslyShown bool
	PreviousStart   string
	New             bool
	Live            bool
	Premiere        bool
}

// Stats tracks what a parse consumed
type Stats struct {
	Channels   int
	Programmes int
	Skipped    int
	Duration   time.Duration
}

// Parser streams an XMLTV document into callbacks
type Parser struct {
	// OnChannel is called for each channel definition.
	OnChannel func(*Channel) error

	// OnProgramme is called for each programme.
	OnProgramme func(*Programme) error

	stats Stats
}

// Stats returns counters from the last Parse
func (p *Parser) Stats() Stats {
	return p.stats
}

type xmlText struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

type xmlIcon struct {
	Src string `xml:"src,attr"`
}

type xmlChannel struct {
	ID           string    `xml:"id,attr"`
	IDFormat     string    `xml:"id-format,attr"`
	DisplayNames []xmlText `xml:"display-name"`
	LCN          string    `xml:"lcn"`
	Icons        []xmlIcon `xml:"icon"`
	URLs         []string  `xml:"url"`
}

type xmlPerson struct {
	Guest string `xml:"guest,attr"`
	Name  string `xml:",chardata"`
}

type xmlCredits struct {
	Directors  []string    `xml:"director"`
	Actors     []xmlPerson `xml:"actor"`
	Writers    []string    `xml:"writer"`
	Producers  []string    `xml:"producer"`
	Presenters []string    `xml:"presenter"`
	Guests     []string    `xml:"guest"`
}

type xmlEpisodeNum struct {
	System string `xml:"system,attr"`
	Value  string `xml:",chardata"`
}

type xmlRating struct {
	System string `xml:"system,attr"`
	Value  string `xml:"value"`
}

type xmlPreviouslyShown struct {
	Start   string `xml:"start,attr"`
	Channel string `xml:"channel,attr"`
}

type xmlProgramme struct {
	Start       string          `xml:"start,attr"`
	Stop        string          `xml:"stop,attr"`
	Channel     string          `xml:"channel,attr"`
	TimeZone    string          `xml:"timezone,attr"`
	Titles      []xmlText       `xml:"title"`
	SubTitles   []xmlText       `xml:"sub-title"`
	Descs       []xmlText       `xml:"desc"`
	Categories  []xmlText       `xml:"category"`
	EpisodeNums []xmlEpisodeNum `xml:"episode-num"`
	Credits     xmlCredits      `xml:"credits"`
	Date        string          `xml:"date"`
	Icons       []xmlIcon       `xml:"icon"`
	Ratings     []xmlRating     `xml:"rating"`
	StarRatings []struct {
		Value string `xml:"value"`
	} `xml:"star-rating"`
	Video struct {
		Quality string `xml:"quality"`
		Aspect  string `xml:"aspect"`
	} `xml:"video"`
	Audio struct {
		Stereo string `xml:"stereo"`
	} `xml:"audio"`
	PreviouslyShown *xmlPreviouslyShown `xml:"previously-shown"`
	New             *struct{}           `xml:"new"`
	Live            *struct{}           `xml:"live"`
	Premiere        *struct{}           `xml:"premiere"`
}

// Parse reads r to the end. Markup errors are fatal and returned as FEED_MALFORMED;
// an error from a callback stops the parse and is returned as is.
func (p *Parser) Parse(r io.Reader) error {
	started := time.Now()
	p.stats = Stats{}
	defer func() {
		p.stats.Duration = time.Since(started)
	}()

	decoder := xml.NewDecoder(r)
	decoder.Strict = true
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = charsetReader

	sawRoot := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return apperrors.FeedMalformedError(err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		switch elem.Name.Local {
		case "tv":
			sawRoot = true

		case "channel":
			var raw xmlChannel
			if err := decoder.DecodeElement(&raw, &elem); err != nil {
				return apperrors.FeedMalformedError(err)
			}
			p.stats.Channels++
			if p.OnChannel != nil {
				if err := p.OnChannel(raw.toChannel()); err != nil {
					return err
				}
			}

		case "programme":
			var raw xmlProgramme
			if err := decoder.DecodeElement(&raw, &elem); err != nil {
				return apperrors.FeedMalformedError(err)
			}
			p.stats.Programmes++
			if p.OnProgramme != nil {
				if err := p.OnProgramme(raw.toProgramme()); err != nil {
					return err
				}
			}

		default:
			if sawRoot {
				p.stats.Skipped++
				if err := decoder.Skip(); err != nil {
					return apperrors.FeedMalformedError(err)
				}
			}
		}
	}

	if !sawRoot {
		return apperrors.FeedMalformedError(fmt.Errorf("no <tv> root element"))
	}
	return nil
}

// charsetReader decodes non UTF-8 feeds, e.g. the ISO-8859-1 declarations of older grabbers
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func texts(in []xmlText) []language.Text {
	if len(in) == 0 {
		return nil
	}
	out := make([]language.Text, 0, len(in))
	for _, t := range in {
		v := strings.TrimSpace(t.Value)
		if v == "" {
			continue
		}
		out = append(out, language.Text{Lang: strings.TrimSpace(t.Lang), Value: v})
	}
	return out
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstIcon(icons []xmlIcon) string {
	for _, i := range icons {
		if src := strings.TrimSpace(i.Src); src != "" {
			return src
		}
	}
	return ""
}

func (raw *xmlChannel) toChannel() *Channel {
	ch := &Channel{
		ID:           strings.TrimSpace(raw.ID),
		IDFormat:     strings.TrimSpace(raw.IDFormat),
		DisplayNames: texts(raw.DisplayNames),
		LCN:          strings.TrimSpace(raw.LCN),
		Icon:         firstIcon(raw.Icons),
	}
	if urls := trimAll(raw.URLs); len(urls) > 0 {
		ch.URL = urls[0]
	}
	return ch
}

func (raw *xmlProgramme) toProgramme() *Programme {
	prog := &Programme{
		Channel:      strings.TrimSpace(raw.Channel),
		Start:        strings.TrimSpace(raw.Start),
		Stop:         strings.TrimSpace(raw.Stop),
		TimeZone:     strings.TrimSpace(raw.TimeZone),
		Titles:       texts(raw.Titles),
		SubTitles:    texts(raw.SubTitles),
		Descs:        texts(raw.Descs),
		Categories:   texts(raw.Categories),
		Date:         strings.TrimSpace(raw.Date),
		Icon:         firstIcon(raw.Icons),
		VideoQuality: strings.TrimSpace(raw.Video.Quality),
		VideoAspect:  strings.TrimSpace(raw.Video.Aspect),
		AudioStereo:  strings.TrimSpace(raw.Audio.Stereo),
		New:          raw.New != nil,
		Live:         raw.Live != nil,
		Premiere:     raw.Premiere != nil,
	}

	for _, e := range raw.EpisodeNums {
		prog.EpisodeNums = append(prog.EpisodeNums, episode.Num{
			System: strings.TrimSpace(e.System),
			Value:  strings.TrimSpace(e.Value),
		})
	}

	for _, r := range raw.Ratings {
		if v := strings.TrimSpace(r.Value); v != "" {
			prog.Rating = &Rating{System: strings.TrimSpace(r.System), Value: v}
			break
		}
	}
	for _, s := range raw.StarRatings {
		if v := strings.TrimSpace(s.Value); v != "" {
			prog.StarRating = v
			break
		}
	}

	if raw.PreviouslyShown != nil {
		prog.PreviouslyShown = true
		prog.PreviousStart = strings.TrimSpace(raw.PreviouslyShown.Start)
	}

	c := raw.Credits
	prog.Credits = Credits{
		Directors:  trimAll(c.Directors),
		Presenters: trimAll(c.Presenters),
		Producers:  trimAll(c.Producers),
		Writers:    trimAll(c.Writers),
		GuestStars: trimAll(c.Guests),
	}
	for _, a := range c.Actors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		if strings.EqualFold(a.Guest, "yes") {
			prog.Credits.GuestStars = append(prog.Credits.GuestStars, name)
		} else {
			prog.Credits.Actors = append(prog.Credits.Actors, name)
		}
	}
	return prog
}
