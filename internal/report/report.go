// Package report turns checked watches into a render-ready report and
// writes it out as HTML.
package report

import (
	"fmt"
	"strings"
	"time"

	"jobwatch/internal/models"
	"jobwatch/internal/pattern"
	"jobwatch/internal/watch"
)

// DefaultMaxErrors is how many error lines the summary of a row shows.
const DefaultMaxErrors = 10

// Unit is the unit ages are displayed in.
type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

// Options tune Build.
type Options struct {
	Unit      Unit
	MaxErrors int
}

// DetailLine is one content line of a watch's detail page.
type DetailLine struct {
	Number  int
	Text    string
	Error   bool
	Pattern string
}

// Row is one watch in the report.
type Row struct {
	models.WatchStatus

	Index int
	// SectionBreak is set on a row whose type differs from the row before.
	SectionBreak bool
	// Highlight asks the renderer to colour the age.
	Highlight  bool
	DetailName string
	Found      []pattern.Finding
	Lines      []DetailLine
}

// Report is the aggregated outcome of one pass.
type Report struct {
	GeneratedAt time.Time
	Unit        Unit
	Rows        []Row
	AllOK       bool
}

var quoteStripper = strings.NewReplacer(`'`, "", `"`, "")

// Build aggregates watches in the order given. Watches that were never
// checked count as missing.
func Build(watches []*watch.Watch, now time.Time, opts Options) Report {
	if opts.Unit == "" {
		opts.Unit = UnitDays
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}

	rep := Report{
		GeneratedAt: now,
		Unit:        opts.Unit,
		Rows:        make([]Row, 0, len(watches)),
		AllOK:       true,
	}
	for i, w := range watches {
		res, _ := w.Result()
		row := buildRow(i, w, res, opts)
		if i > 0 && w.Type() != watches[i-1].Type() {
			row.SectionBreak = true
		}
		rep.AllOK = rep.AllOK && row.OK
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}

func buildRow(i int, w *watch.Watch, res watch.Result, opts Options) Row {
	row := Row{
		WatchStatus: models.WatchStatus{
			Task:            w.Task(),
			Type:            string(w.Type()),
			Locator:         w.Locator(),
			OK:              res.OK(),
			Exists:          res.Exists,
			Stale:           res.Stale,
			Acknowledged:    res.Acknowledged,
			AgeDisplay:      "None",
			MaxAgeDays:      w.MaxAge(),
			ErrorCount:      len(res.Found),
			MissingRequires: res.Missing,
		},
		Index:      i,
		Highlight:  res.Stale,
		DetailName: fmt.Sprintf("log%d.html", i),
		Found:      res.Found,
		Lines:      detailLines(res),
	}
	if res.Exists {
		age := res.Age
		asOf := res.AsOf
		row.AgeDays = &age
		row.AsOf = &asOf
		row.AgeDisplay = FormatAge(age, opts.Unit)
	}
	if res.Err != "" {
		msg := res.Err
		row.Error = &msg
	}
	if !row.OK && len(res.Found) > 0 {
		row.ErrorSummary = Summarize(res.Found, opts.MaxErrors)
	}
	return row
}

// FormatAge renders an age given in days with two decimals in unit.
func FormatAge(days float64, unit Unit) string {
	if unit == UnitHours {
		return fmt.Sprintf("%.2f", days*24)
	}
	return fmt.Sprintf("%.2f", days)
}

// Summarize joins the first max error lines, trimmed and without quote
// characters, one per line. More errors are noted as "AND N MORE".
func Summarize(found []pattern.Finding, max int) string {
	n := len(found)
	if n > max {
		n = max
	}
	parts := make([]string, 0, n+1)
	for _, f := range found[:n] {
		parts = append(parts, quoteStripper.Replace(strings.TrimSpace(f.Text)))
	}
	if len(found) > max {
		parts = append(parts, fmt.Sprintf("AND %d MORE", len(found)-max))
	}
	return strings.Join(parts, "\n")
}

func detailLines(res watch.Result) []DetailLine {
	if len(res.Lines) == 0 {
		return nil
	}
	flagged := make(map[int]string, len(res.Found))
	for _, f := range res.Found {
		if _, ok := flagged[f.Line]; !ok {
			flagged[f.Line] = f.Pattern
		}
	}
	out := make([]DetailLine, len(res.Lines))
	for i, text := range res.Lines {
		p, isErr := flagged[i]
		out[i] = DetailLine{Number: i, Text: text, Error: isErr, Pattern: p}
	}
	return out
}

// Entry converts the report into the summary record kept in history.
func (r Report) Entry() models.StatusEntry {
	checks := make([]models.WatchStatus, len(r.Rows))
	for i, row := range r.Rows {
		checks[i] = row.WatchStatus
	}
	return models.StatusEntry{
		Timestamp: r.GeneratedAt.UTC(),
		AllOK:     r.AllOK,
		Checks:    checks,
	}
}

// Sections returns the number of section breaks.
func (r Report) Sections() int {
	n := 0
	for _, row := range r.Rows {
		if row.SectionBreak {
			n++
		}
	}
	return n
}
