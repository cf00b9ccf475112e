package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"jobwatch/internal/report"
)

var (
	okColor    = color.New(color.FgGreen)
	failColor  = color.New(color.FgRed, color.Bold)
	staleColor = color.New(color.FgYellow)
	headColor  = color.New(color.Bold)
)

// printSummary writes one line per watch, grouped by type.
func printSummary(w io.Writer, rep report.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range rep.Rows {
		if row.Index == 0 || row.SectionBreak {
			fmt.Fprintln(tw, headColor.Sprint(row.Type))
		}
		status := okColor.Sprint("OK")
		if !row.OK {
			status = failColor.Sprint("FAIL")
		}
		age := row.AgeDisplay
		if row.Highlight {
			age = staleColor.Sprint(age)
		}
		detail := ""
		switch {
		case row.Error != nil:
			detail = *row.Error
		case row.ErrorCount > 0:
			detail = fmt.Sprintf("%d error lines", row.ErrorCount)
		case len(row.MissingRequires) > 0:
			detail = fmt.Sprintf("missing %v", row.MissingRequires)
		case row.Acknowledged:
			detail = "acknowledged"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", row.Task, age, status, detail)
	}
	tw.Flush()

	if rep.AllOK {
		okColor.Fprintf(w, "all %d watches OK\n", len(rep.Rows))
		return
	}
	failColor.Fprintf(w, "%d of %d watches not OK\n", len(rep.Entry().Failing()), len(rep.Rows))
}
