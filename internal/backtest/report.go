package backtest

import (
	"fmt"
	"io"
	"text/tabwriter"

	"CrashSentinel/internal/model"
)

// WriteText prints the report as an aligned table.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tACTION\tSCORE\tALERT\tREASON")
	for _, e := range r.Signals {
		reason := ""
		if len(e.Reasons) > 0 {
			reason = e.Reasons[0]
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", e.Date.Format("2006-01-02"), e.Action, e.Score, e.AlertState, reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\ncycles=%d sell=%d rebuy=%d hold=%d no_action=%d days_sold=%d max_score=%.2f",
		r.Cycles, r.Counts[model.ActionSell], r.Counts[model.ActionRebuy], r.Counts[model.ActionHold],
		r.Counts[model.ActionNoAction], r.DaysSold, r.MaxScore)
	if err != nil {
		return err
	}
	if r.Cycles > 0 {
		_, err = fmt.Fprintf(w, " (%s)", r.MaxScoreDate.Format("2006-01-02"))
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "\nfinal position: %s\n", r.Final.Position)
	return err
}
