// Package category maps feed genre text onto the canonical category table.
//
// The table is loaded before an import, mutated while programmes are classified
// (usage counts, sample titles, the undefined ledger) and saved afterwards.
package category

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"

	"github.com/glefebvre/guidepost/internal/language"
)

// Source tells where a Result came from
type Source string

const (
	SourceNone      Source = "none"
	SourceTable     Source = "table"
	SourceOverride  Source = "override"
	SourceSynthetic Source = "synthetic"
)

// Record is one canonical category
type Record struct {
	Tag          string
	Descriptions map[string]string // target system -> text
	Usage        int
	Sample       string
}

// OverrideField selects what a custom override matches on
type OverrideField string

const (
	MatchTitle       OverrideField = "title"
	MatchDescription OverrideField = "description"
)

// Override assigns a category to programmes with an exact title or description
type Override struct {
	Field OverrideField
	Match string
	Tag   string
}

// Undefined is a genre that had no table record, with the first title it was seen on
type Undefined struct {
	Tag    string
	Sample string
}

// Result is the category assigned to one programme
type Result struct {
	Tag          string
	Descriptions map[string]string
	Genres       []string
	Source       Source
}

// None reports whether no category could be assigned
func (r Result) None() bool {
	return r.Source == SourceNone
}

// Table is the canonical category table plus the undefined ledger and custom overrides
type Table struct {
	mu sync.Mutex

	records map[string]*Record
	order   []string

	undefined      map[string]struct{}
	undefinedOrder []Undefined

	byTitle       map[string]string
	byDescription map[string]string
	overrides     []Override
}

// NewTable builds a table from stored records, overrides and an earlier ledger
func NewTable(records []Record, overrides []Override, undefined []Undefined) *Table {
	t := &Table{
		records:       make(map[string]*Record, len(records)),
		undefined:     make(map[string]struct{}, len(undefined)),
		byTitle:       make(map[string]string),
		byDescription: make(map[string]string),
	}
	for _, r := range records {
		t.Add(r)
	}
	for _, o := range overrides {
		t.AddOverride(o)
	}
	for _, u := range undefined {
		t.markUndefined(u.Tag, u.Sample)
	}
	return t
}

func key(tag string) string {
	return cases.Fold().String(strings.TrimSpace(tag))
}

// Add inserts or replaces a record. Lookup ignores case.
func (t *Table) Add(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key(r.Tag)
	if k == "" {
		return
	}
	if r.Descriptions == nil {
		r.Descriptions = map[string]string{}
	}
	if _, exists := t.records[k]; !exists {
		t.order = append(t.order, k)
	}
	rec := r
	t.records[k] = &rec
}

// AddOverride registers a custom override. Later overrides for the same text win.
func (t *Table) AddOverride(o Override) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch o.Field {
	case MatchTitle:
		t.byTitle[o.Match] = o.Tag
	case MatchDescription:
		t.byDescription[o.Match] = o.Tag
	default:
		return
	}
	t.overrides = append(t.overrides, o)
}

// Lookup returns a copy of the record for tag
func (t *Table) Lookup(tag string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[key(tag)]
	if !ok {
		return Record{}, false
	}
	return copyRecord(rec), true
}

// Records returns copies of all records in insertion order
func (t *Table) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, copyRecord(t.records[k]))
	}
	return out
}

// Overrides returns the custom overrides in registration order
func (t *Table) Overrides() []Override {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Override(nil), t.overrides...)
}

// Undefined returns the ledger in first-seen order
func (t *Table) Undefined() []Undefined {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Undefined(nil), t.undefinedOrder...)
}

// Len returns the number of records
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// markUndefined records tag once; the first sample is kept. Caller holds mu.
func (t *Table) markUndefined(tag, sample string) bool {
	k := key(tag)
	if _, seen := t.undefined[k]; seen {
		return false
	}
	t.undefined[k] = struct{}{}
	t.undefinedOrder = append(t.undefinedOrder, Undefined{Tag: tag, Sample: sample})
	return true
}

func copyRecord(r *Record) Record {
	out := *r
	out.Descriptions = make(map[string]string, len(r.Descriptions))
	for k, v := range r.Descriptions {
		out.Descriptions[k] = v
	}
	return out
}

// Classifier assigns categories against a Table
type Classifier struct {
	table *Table
}

// NewClassifier creates a classifier bound to table
func NewClassifier(table *Table) *Classifier {
	return &Classifier{table: table}
}

// Table returns the table the classifier mutates
func (c *Classifier) Table() *Table {
	return c.table
}

// Outcome carries side effects of one classification for the caller to log and count
type Outcome struct {
	Result         Result
	NewlyUndefined bool
}

// Classify picks a category for a programme.
//
// Genres in the requested language are used, else English ones (untagged genres
// count as English). The first genre is the lookup key. A table hit bumps the
// record's usage. A miss goes to the undefined ledger, then custom overrides by
// title and by description are tried, and finally the genres are joined into a
// synthetic category.
func (c *Classifier) Classify(texts []language.Text, requested, eventName, description string) Outcome {
	genres := language.Filter(texts, requested)
	if len(genres) == 0 {
		genres = language.FilterEnglish(texts)
	}
	genres = compact(genres)
	if len(genres) == 0 {
		return Outcome{Result: Result{Source: SourceNone}}
	}

	t := c.table
	t.mu.Lock()
	defer t.mu.Unlock()

	primary := genres[0]
	if rec, ok := t.records[key(primary)]; ok {
		rec.Usage++
		rec.Sample = eventName
		return Outcome{Result: Result{
			Tag:          rec.Tag,
			Descriptions: copyRecord(rec).Descriptions,
			Genres:       mergeGenres(rec.Tag, genres, 1),
			Source:       SourceTable,
		}}
	}

	out := Outcome{NewlyUndefined: t.markUndefined(primary, eventName)}

	if tag, ok := t.byTitle[eventName]; ok && eventName != "" {
		out.Result = t.overrideResult(tag, genres)
		return out
	}
	if tag, ok := t.byDescription[description]; ok && description != "" {
		out.Result = t.overrideResult(tag, genres)
		return out
	}

	out.Result = Result{
		Tag:    strings.Join(genres, ","),
		Genres: genres,
		Source: SourceSynthetic,
	}
	return out
}

// overrideResult resolves an override tag through the table when it names a record. Caller holds mu.
func (t *Table) overrideResult(tag string, genres []string) Result {
	if rec, ok := t.records[key(tag)]; ok {
		return Result{
			Tag:          rec.Tag,
			Descriptions: copyRecord(rec).Descriptions,
			Genres:       mergeGenres(rec.Tag, genres, 1),
			Source:       SourceOverride,
		}
	}
	return Result{Tag: tag, Genres: mergeGenres(tag, genres, 1), Source: SourceOverride}
}

// mergeGenres puts name first and keeps observed genres from offset on
func mergeGenres(name string, observed []string, offset int) []string {
	out := []string{name}
	if offset < len(observed) {
		out = append(out, observed[offset:]...)
	}
	return out
}

func compact(genres []string) []string {
	out := genres[:0:0]
	for _, g := range genres {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// SortedByUsage returns records ordered by usage, highest first, then by tag
func SortedByUsage(records []Record) []Record {
	out := append([]Record(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Usage != out[j].Usage {
			return out[i].Usage > out[j].Usage
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
