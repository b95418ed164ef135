// Package report renders import summaries and the category table for the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/glefebvre/guidepost/internal/category"
	"github.com/glefebvre/guidepost/internal/processor"
)

// Format selects how a report is written
type Format string

const (
	FormatAuto  Format = "auto"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// ParseFormat validates a --format value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatTable, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want auto, table or json)", s)
}

// Resolve turns FormatAuto into table for terminals and json otherwise
func (f Format) Resolve(w io.Writer) Format {
	if f != FormatAuto {
		return f
	}
	if isTerminal(w) {
		return FormatTable
	}
	return FormatJSON
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SampleLimit caps the undefined categories listed in a summary
const SampleLimit = 10

// Summary is the printable outcome of one import
type Summary struct {
	RunID     string         `json:"run_id"`
	Source    string         `json:"source"`
	DryRun    bool           `json:"dry_run"`
	Timestamp string         `json:"timestamp"`
	Duration  string         `json:"duration"`
	Counters  map[string]int `json:"counters"`
	Merge     *MergeSummary  `json:"merge,omitempty"`
	Undefined []Undefined    `json:"undefined_categories"`
	Breaker   bool           `json:"image_breaker_open"`

	order []processor.Counter
}

// MergeSummary reports what was written to the guide
type MergeSummary struct {
	ChannelsCreated int   `json:"channels_created"`
	ChannelsUpdated int   `json:"channels_updated"`
	ChannelsSkipped int   `json:"channels_skipped"`
	EntriesDeleted  int64 `json:"entries_deleted"`
	EntriesWritten  int   `json:"entries_written"`
}

// Undefined is a genre without a category record and the first title it appeared on
type Undefined struct {
	Tag    string `json:"tag"`
	Sample string `json:"sample"`
}

// FromImport builds a summary from an import report
func FromImport(r *processor.ImportReport) *Summary {
	s := &Summary{
		RunID:     r.RunID,
		Source:    r.Source,
		DryRun:    r.DryRun,
		Timestamp: time.Now().Format(time.RFC3339),
		Duration:  r.Duration.Round(time.Millisecond).String(),
		Counters:  map[string]int{},
		Undefined: make([]Undefined, 0),
		Breaker:   r.BreakerOpen,
	}
	if r.Result != nil {
		s.order = r.Result.Stats.Counters()
		s.Counters = r.Result.Stats.Map()
		for _, u := range r.Result.Undefined {
			s.Undefined = append(s.Undefined, Undefined{Tag: u.Tag, Sample: u.Sample})
		}
	}
	if !r.DryRun && (r.Merge.ChannelsCreated+r.Merge.ChannelsUpdated+r.Merge.ChannelsSkipped) > 0 {
		s.Merge = &MergeSummary{
			ChannelsCreated: r.Merge.ChannelsCreated,
			ChannelsUpdated: r.Merge.ChannelsUpdated,
			ChannelsSkipped: r.Merge.ChannelsSkipped,
			EntriesDeleted:  r.Merge.EntriesDeleted,
			EntriesWritten:  r.Merge.EntriesWritten,
		}
	}
	return s
}

// Write renders s in the given format
func (s *Summary) Write(w io.Writer, f Format) error {
	if f.Resolve(w) == FormatJSON {
		return writeJSON(w, s)
	}

	mode := "import"
	if s.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "=== Guide %s summary ===\n", mode)
	fmt.Fprintf(w, "Run:      %s\n", s.RunID)
	fmt.Fprintf(w, "Source:   %s\n", s.Source)
	fmt.Fprintf(w, "Duration: %s\n\n", s.Duration)

	rows := make([][]string, 0, len(s.order))
	for _, c := range s.order {
		if c.Value == 0 {
			continue
		}
		rows = append(rows, []string{c.Name, strconv.Itoa(c.Value)})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "Nothing was imported.")
	} else {
		fmt.Fprintln(w, renderTable([]string{"Counter", "Value"}, rows, []text.Align{text.AlignLeft, text.AlignRight}))
	}

	if s.Merge != nil {
		m := s.Merge
		fmt.Fprintf(w, "\nGuide: %d channels created, %d updated, %d excluded; %d entries replaced by %d\n",
			m.ChannelsCreated, m.ChannelsUpdated, m.ChannelsSkipped, m.EntriesDeleted, m.EntriesWritten)
	}

	if s.Breaker {
		fmt.Fprintln(w, "\nImage downloads stopped: failure budget spent")
	}

	if len(s.Undefined) > 0 {
		fmt.Fprintf(w, "\n=== Undefined categories (first %d of %d) ===\n", min(SampleLimit, len(s.Undefined)), len(s.Undefined))
		rows := make([][]string, 0, SampleLimit)
		for i, u := range s.Undefined {
			if i >= SampleLimit {
				break
			}
			rows = append(rows, []string{u.Tag, u.Sample})
		}
		fmt.Fprintln(w, renderTable([]string{"Genre", "First seen on"}, rows, nil))
	}
	return nil
}

// Categories renders the category table by usage plus the undefined ledger
func Categories(w io.Writer, f Format, records []category.Record, undefined []category.Undefined) error {
	records = category.SortedByUsage(records)

	if f.Resolve(w) == FormatJSON {
		type record struct {
			Tag          string            `json:"tag"`
			Descriptions map[string]string `json:"descriptions,omitempty"`
			Usage        int               `json:"usage"`
			Sample       string            `json:"sample,omitempty"`
		}
		out := struct {
			Records   []record    `json:"records"`
			Undefined []Undefined `json:"undefined"`
		}{Records: make([]record, 0, len(records)), Undefined: make([]Undefined, 0, len(undefined))}
		for _, r := range records {
			out.Records = append(out.Records, record{Tag: r.Tag, Descriptions: r.Descriptions, Usage: r.Usage, Sample: r.Sample})
		}
		for _, u := range undefined {
			out.Undefined = append(out.Undefined, Undefined{Tag: u.Tag, Sample: u.Sample})
		}
		return writeJSON(w, out)
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Tag, strconv.Itoa(r.Usage), r.Sample, descriptions(r.Descriptions)})
	}
	fmt.Fprintln(w, renderTable([]string{"Category", "Usage", "Sample", "Descriptions"}, rows,
		[]text.Align{text.AlignLeft, text.AlignRight}))

	if len(undefined) > 0 {
		rows = rows[:0]
		for _, u := range undefined {
			rows = append(rows, []string{u.Tag, u.Sample})
		}
		fmt.Fprintf(w, "\n%d undefined:\n", len(undefined))
		fmt.Fprintln(w, renderTable([]string{"Genre", "First seen on"}, rows, nil))
	}
	return nil
}

func descriptions(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ", ")
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderTable(headers []string, rows [][]string, aligns []text.Align) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) {
			align = aligns[i]
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
