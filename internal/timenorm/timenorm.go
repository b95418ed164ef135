package timenorm

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ErrInvalidInterval is returned when a programme interval cannot be used
var ErrInvalidInterval = errors.New("invalid programme interval")

// layouts with an explicit offset come first
var offsetLayouts = []string{
	"20060102150405 -0700",
	"20060102150405-0700",
	"200601021504 -0700",
	"2006010215 -0700",
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

var wallLayouts = []string{
	"20060102150405",
	"200601021504",
	"2006010215",
	"20060102",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// Stamp is a timestamp as written in the feed: a wall clock reading plus an optional offset
type Stamp struct {
	Wall      time.Time // wall clock fields, location UTC
	Offset    int       // seconds east of UTC
	HasOffset bool
}

// UTC returns the instant the stamp names, treating a missing offset as UTC
func (s Stamp) UTC() time.Time {
	return s.Wall.Add(-time.Duration(s.Offset) * time.Second)
}

// ParseStamp reads an XMLTV or RFC 3339 timestamp
func ParseStamp(value string) (Stamp, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Stamp{}, fmt.Errorf("%w: empty timestamp", ErrInvalidInterval)
	}

	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			_, offset := t.Zone()
			return Stamp{Wall: wallOf(t), Offset: offset, HasOffset: true}, nil
		}
	}
	for _, layout := range wallLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Stamp{Wall: wallOf(t)}, nil
		}
	}
	return Stamp{}, fmt.Errorf("%w: unparsable timestamp %q", ErrInvalidInterval, value)
}

func wallOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// Interval is a normalized programme slot
type Interval struct {
	Start       time.Time // in the normalizer's local zone
	Duration    time.Duration
	DSTAdjusted bool
}

// End returns the local end of the slot
func (i Interval) End() time.Time {
	return i.Start.Add(i.Duration)
}

// Normalizer converts feed timestamps into local start times and durations
type Normalizer struct {
	local  *time.Location
	strict bool
	feed   *time.Location

	mu    sync.Mutex
	zones map[string]*time.Location
}

// New creates a normalizer. A nil local zone means time.Local.
// In strict mode intervals shorter than one second are rejected.
func New(local *time.Location, strict bool) *Normalizer {
	if local == nil {
		local = time.Local
	}
	return &Normalizer{
		local:  local,
		strict: strict,
		zones:  make(map[string]*time.Location),
	}
}

// SetFeedZone sets the zone that offset-less stamps are read in when a
// programme names no zone of its own. nil restores UTC.
func (n *Normalizer) SetFeedZone(loc *time.Location) {
	n.feed = loc
}

// Location returns the zone start times are reported in
func (n *Normalizer) Location() *time.Location {
	return n.local
}

// Normalize turns a start/stop pair into a local interval.
//
// With a named zone both wall clock readings are taken in that zone. Otherwise
// each stamp's own offset applies, and stamps without one are read in the feed
// zone (UTC when unset). The duration is the wall clock distance plus
// the offset change between the stamps, which is the real elapsed time across a
// DST switch; such intervals are flagged DSTAdjusted.
func (n *Normalizer) Normalize(start, stop, zone string) (Interval, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(stop) == "" {
		return Interval{}, fmt.Errorf("%w: missing start or stop", ErrInvalidInterval)
	}

	from, err := ParseStamp(start)
	if err != nil {
		return Interval{}, err
	}
	to, err := ParseStamp(stop)
	if err != nil {
		return Interval{}, err
	}

	if zone != "" {
		loc, err := n.zone(zone)
		if err != nil {
			return Interval{}, err
		}
		from, to = inZone(from, loc), inZone(to, loc)
	} else if n.feed != nil {
		if !from.HasOffset {
			from = inZone(from, n.feed)
		}
		if !to.HasOffset {
			to = inZone(to, n.feed)
		}
	}

	iv := Interval{
		Start:    from.UTC().In(n.local),
		Duration: to.Wall.Sub(from.Wall),
	}
	if from.HasOffset && to.HasOffset && from.Offset != to.Offset {
		iv.Duration += time.Duration(from.Offset-to.Offset) * time.Second
		iv.DSTAdjusted = true
	}

	if n.strict && iv.Duration < time.Second {
		return Interval{}, fmt.Errorf("%w: duration %s below one second", ErrInvalidInterval, iv.Duration)
	}
	return iv, nil
}

// inZone reads the stamp's wall clock in loc, replacing any written offset
func inZone(s Stamp, loc *time.Location) Stamp {
	w := s.Wall
	t := time.Date(w.Year(), w.Month(), w.Day(), w.Hour(), w.Minute(), w.Second(), 0, loc)
	_, offset := t.Zone()
	return Stamp{Wall: w, Offset: offset, HasOffset: true}
}

func (n *Normalizer) zone(name string) (*time.Location, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if loc, ok := n.zones[name]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown time zone %q", ErrInvalidInterval, name)
	}
	n.zones[name] = loc
	return loc, nil
}

// LoadLocal resolves the configured local zone name; "" and "Local" mean the host zone
func LoadLocal(name string) (*time.Location, error) {
	switch name {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
