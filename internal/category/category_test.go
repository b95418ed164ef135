package category

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/guidepost/internal/language"
)

func texts(pairs ...string) []language.Text {
	var out []language.Text
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, language.Text{Lang: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func newTestTable() *Table {
	return NewTable([]Record{
		{Tag: "Drama", Descriptions: map[string]string{"mxf": "Drama", "dvb": "0x10"}},
		{Tag: "Sports", Descriptions: map[string]string{"mxf": "Sports"}},
	}, []Override{
		{Field: MatchTitle, Match: "Match of the Day", Tag: "Sports"},
		{Field: MatchDescription, Match: "Live coverage.", Tag: "Live Event"},
	}, nil)
}

func TestClassify_Hit(t *testing.T) {
	table := newTestTable()
	c := NewClassifier(table)

	out := c.Classify(texts("en", "drama", "en", "Crime"), "en", "Luther", "")

	assert.Equal(t, SourceTable, out.Result.Source)
	assert.Equal(t, "Drama", out.Result.Tag)
	assert.Equal(t, []string{"Drama", "Crime"}, out.Result.Genres)
	assert.Equal(t, "0x10", out.Result.Descriptions["dvb"])
	assert.False(t, out.NewlyUndefined)

	rec, ok := table.Lookup("DRAMA")
	require.True(t, ok)
	assert.Equal(t, 1, rec.Usage)
	assert.Equal(t, "Luther", rec.Sample)

	c.Classify(texts("en", "Drama"), "en", "Vera", "")
	rec, _ = table.Lookup("drama")
	assert.Equal(t, 2, rec.Usage)
	assert.Equal(t, "Vera", rec.Sample)
}

func TestClassify_LanguageTiers(t *testing.T) {
	c := NewClassifier(newTestTable())

	out := c.Classify(texts("fr", "Sports", "en", "Drama"), "fr", "Ligue 1", "")
	assert.Equal(t, "Sports", out.Result.Tag, "requested language first")

	out = c.Classify(texts("de", "Krimi", "", "Drama"), "fr", "Tatort", "")
	assert.Equal(t, "Drama", out.Result.Tag, "untagged counts as English")

	out = c.Classify(texts("de", "Krimi"), "fr", "Tatort", "")
	assert.True(t, out.Result.None())

	out = c.Classify(nil, "en", "Test Card", "")
	assert.True(t, out.Result.None())
}

func TestClassify_UndefinedRecordedOnce(t *testing.T) {
	table := newTestTable()
	c := NewClassifier(table)

	first := c.Classify(texts("en", "Curling"), "en", "Winter Games", "")
	second := c.Classify(texts("en", "curling"), "en", "Curling Highlights", "")

	assert.True(t, first.NewlyUndefined)
	assert.False(t, second.NewlyUndefined)

	ledger := table.Undefined()
	require.Len(t, ledger, 1)
	assert.Equal(t, "Curling", ledger[0].Tag)
	assert.Equal(t, "Winter Games", ledger[0].Sample)
}

func TestClassify_Overrides(t *testing.T) {
	c := NewClassifier(newTestTable())

	byTitle := c.Classify(texts("en", "Football", "en", "Highlights"), "en", "Match of the Day", "")
	assert.Equal(t, SourceOverride, byTitle.Result.Source)
	assert.Equal(t, "Sports", byTitle.Result.Tag)
	assert.Equal(t, []string{"Sports", "Highlights"}, byTitle.Result.Genres)
	assert.Equal(t, "Sports", byTitle.Result.Descriptions["mxf"])

	byDesc := c.Classify(texts("en", "Concert"), "en", "Proms", "Live coverage.")
	assert.Equal(t, SourceOverride, byDesc.Result.Source)
	assert.Equal(t, "Live Event", byDesc.Result.Tag)
	assert.Empty(t, byDesc.Result.Descriptions)
}

func TestClassify_Synthetic(t *testing.T) {
	c := NewClassifier(newTestTable())

	out := c.Classify(texts("en", "Cooking", "en", " ", "en", "Travel"), "en", "Rick Stein", "")

	assert.Equal(t, SourceSynthetic, out.Result.Source)
	assert.Equal(t, "Cooking,Travel", out.Result.Tag)
	assert.Equal(t, []string{"Cooking", "Travel"}, out.Result.Genres)
}

func TestNewTable_RestoresLedger(t *testing.T) {
	table := NewTable(nil, nil, []Undefined{{Tag: "Curling", Sample: "Old Sample"}})
	c := NewClassifier(table)

	out := c.Classify(texts("en", "Curling"), "en", "New Sample", "")

	assert.False(t, out.NewlyUndefined)
	assert.Equal(t, "Old Sample", table.Undefined()[0].Sample)
}

func TestTable_RecordsAreCopies(t *testing.T) {
	table := newTestTable()

	records := table.Records()
	require.Len(t, records, 2)
	records[0].Descriptions["mxf"] = "mutated"
	records[0].Usage = 99

	rec, _ := table.Lookup("Drama")
	assert.Equal(t, "Drama", rec.Descriptions["mxf"])
	assert.Zero(t, rec.Usage)
	assert.Len(t, table.Overrides(), 2)
}

func TestTable_AddReplaces(t *testing.T) {
	table := NewTable(nil, nil, nil)
	table.Add(Record{Tag: "News"})
	table.Add(Record{Tag: "NEWS", Descriptions: map[string]string{"mxf": "News"}})
	table.Add(Record{Tag: "  "})

	assert.Equal(t, 1, table.Len())
	rec, ok := table.Lookup("news")
	require.True(t, ok)
	assert.Equal(t, "NEWS", rec.Tag)
}

func TestClassify_Concurrent(t *testing.T) {
	table := newTestTable()
	c := NewClassifier(table)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Classify(texts("en", "Drama"), "en", "Casualty", "")
			c.Classify(texts("en", "Bowls"), "en", "Bowls Live", "")
		}()
	}
	wg.Wait()

	rec, _ := table.Lookup("Drama")
	assert.Equal(t, 50, rec.Usage)
	assert.Len(t, table.Undefined(), 1)
}

func TestSortedByUsage(t *testing.T) {
	sorted := SortedByUsage([]Record{
		{Tag: "News", Usage: 3},
		{Tag: "Drama", Usage: 7},
		{Tag: "Arts", Usage: 3},
	})

	assert.Equal(t, "Drama", sorted[0].Tag)
	assert.Equal(t, "Arts", sorted[1].Tag)
	assert.Equal(t, "News", sorted[2].Tag)
}
