package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/guidepost/internal/category"
	"github.com/glefebvre/guidepost/internal/processor"
	"github.com/glefebvre/guidepost/internal/store"
)

func sampleReport() *processor.ImportReport {
	return &processor.ImportReport{
		RunID:    "run-1",
		Source:   "/data/guide.xml",
		Duration: 1500 * time.Millisecond,
		Result: &processor.Result{
			Stats:     &processor.Statistics{ChannelsCreated: 2, ProgrammesCreated: 40, Movies: 3},
			Undefined: []category.Undefined{{Tag: "Quiz", Sample: "Pointless"}},
		},
		Merge: store.MergeResult{ChannelsCreated: 2, EntriesWritten: 40},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatAuto, "auto": FormatAuto, "JSON": FormatJSON, "table": FormatTable} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("yaml")
	assert.Error(t, err)
}

func TestResolve_NonTerminalIsJSON(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatAuto.Resolve(&bytes.Buffer{}))
	assert.Equal(t, FormatTable, FormatTable.Resolve(&bytes.Buffer{}))
}

func TestSummary_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FromImport(sampleReport()).Write(&buf, FormatAuto))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, "1.5s", decoded["duration"])
	counters := decoded["counters"].(map[string]interface{})
	assert.Equal(t, 40.0, counters["programmes_created"])
	assert.Equal(t, 0.0, counters["series"])
	assert.NotNil(t, decoded["merge"])
	assert.Len(t, decoded["undefined_categories"], 1)
}

func TestSummary_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FromImport(sampleReport()).Write(&buf, FormatTable))
	out := buf.String()

	assert.Contains(t, out, "Guide import summary")
	assert.Contains(t, out, "programmes_created")
	assert.NotContains(t, out, "miniseries", "zero counters are hidden")
	assert.Contains(t, out, "2 channels created")
	assert.Contains(t, out, "Pointless")
}

func TestSummary_DryRunHasNoMerge(t *testing.T) {
	r := sampleReport()
	r.DryRun = true
	s := FromImport(r)
	assert.Nil(t, s.Merge)

	var buf bytes.Buffer
	require.NoError(t, s.Write(&buf, FormatTable))
	assert.Contains(t, buf.String(), "dry run summary")
}

func TestSummary_FailedImport(t *testing.T) {
	s := FromImport(&processor.ImportReport{RunID: "run-2", Source: "x.xml"})

	var buf bytes.Buffer
	require.NoError(t, s.Write(&buf, FormatTable))
	assert.Contains(t, buf.String(), "Nothing was imported.")
}

func TestCategories(t *testing.T) {
	records := []category.Record{
		{Tag: "Drama", Usage: 2, Descriptions: map[string]string{"wmc": "Drama", "mythtv": "drama"}},
		{Tag: "News", Usage: 9, Sample: "Newsnight"},
	}
	undefined := []category.Undefined{{Tag: "Quiz", Sample: "Pointless"}}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Categories(&buf, FormatJSON, records, undefined))

		var decoded struct {
			Records []struct {
				Tag   string `json:"tag"`
				Usage int    `json:"usage"`
			} `json:"records"`
			Undefined []Undefined `json:"undefined"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		require.Len(t, decoded.Records, 2)
		assert.Equal(t, "News", decoded.Records[0].Tag)
		assert.Equal(t, []Undefined{{Tag: "Quiz", Sample: "Pointless"}}, decoded.Undefined)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Categories(&buf, FormatTable, records, undefined))
		out := buf.String()
		assert.Contains(t, out, "mythtv=drama, wmc=Drama")
		assert.Contains(t, out, "1 undefined")
		assert.Less(t, bytes.Index(buf.Bytes(), []byte("News")), bytes.Index(buf.Bytes(), []byte("Drama")))
	})
}
