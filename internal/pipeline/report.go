package pipeline

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"
)

// WriteReport prints one line per stage of every result as an aligned
// table: indicator, stage, status, rows and duration.
func WriteReport(w io.Writer, results []Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDICATOR\tSTAGE\tSTATUS\tROWS\tDURATION")
	for _, res := range results {
		for _, s := range res.Stages {
			status := "ok"
			switch {
			case s.Skipped:
				status = "skipped"
			case s.Err != nil:
				status = "failed"
			}
			rows := "-"
			if s.Rows >= 0 {
				rows = strconv.Itoa(s.Rows)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", res.Ref, s.Stage, status, rows, s.Duration.Truncate(time.Microsecond))
		}
	}
	return tw.Flush()
}
