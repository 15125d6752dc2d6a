package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	apiclient "github.com/donaldgifford/flight-price-tracker/internal/api/client"
	domain "github.com/donaldgifford/flight-price-tracker/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printFilterTable(w io.Writer, filters []domain.FlightFilter) error {
	tw := newTabWriter(w)
	tw.writef("ID\tNAME\tROUTES\tDEPART\tTARGET\tFREQUENCY\tACTIVE\n")
	for i := range filters {
		f := &filters[i]
		tw.writef("%s\t%s\t%s\t%s\t%.2f %s\t%s\t%v\n",
			f.ID,
			truncate(f.Name, 30),
			routesString(f.Routes),
			f.DepartDate.Format(time.DateOnly),
			f.TargetPrice, f.Currency,
			f.Frequency,
			f.Active,
		)
	}
	return tw.finish()
}

func printFilterDetail(w io.Writer, d *apiclient.FilterDetail) error {
	f := &d.Filter
	tw := newTabWriter(w)
	tw.writef("ID:\t%s\n", f.ID)
	tw.writef("Name:\t%s\n", f.Name)
	tw.writef("User:\t%s\n", f.UserID)
	tw.writef("Routes:\t%s\n", routesString(f.Routes))
	tw.writef("Trip:\t%s\n", f.TripType)
	tw.writef("Depart:\t%s\n", f.DepartDate.Format(time.DateOnly))
	if f.ReturnDate != nil {
		tw.writef("Return:\t%s\n", f.ReturnDate.Format(time.DateOnly))
	}
	tw.writef("Cabin:\t%s\n", f.Cabin)
	tw.writef("Target:\t%.2f %s\n", f.TargetPrice, f.Currency)
	tw.writef("Frequency:\t%s\n", f.Frequency)
	tw.writef("Channels:\t%s\n", channelsString(f.Channels))
	tw.writef("Active:\t%v\n", f.Active)
	if f.LastCheckedAt != nil {
		tw.writef("Last checked:\t%s\n", f.LastCheckedAt.Format(timeLayout))
	}
	if d.Alert != nil {
		tw.writef("Alert:\t%s (%s)\n", d.Alert.ID, d.Alert.Status)
		tw.writef("Current price:\t%s\n", priceString(d.Alert.CurrentPrice))
	}
	if d.Trend != nil {
		tw.writef("Trend:\t%s, p50 %.2f over %d samples\n", d.Trend.Direction, d.Trend.P50, d.Trend.SampleCount)
	}
	return tw.finish()
}

func printAlertTable(w io.Writer, alerts []domain.FlightAlert) error {
	tw := newTabWriter(w)
	tw.writef("ID\tFILTER\tSTATUS\tTARGET\tCURRENT\tTRIGGERED\tQUALITY\n")
	for i := range alerts {
		a := &alerts[i]
		tw.writef("%s\t%s\t%s\t%.2f\t%s\t%s\t%d\n",
			a.ID,
			a.FilterID,
			a.Status,
			a.TargetPrice,
			priceString(a.CurrentPrice),
			priceString(a.LastTriggeredPrice),
			a.QualityScore,
		)
	}
	return tw.finish()
}

func printAlertDetail(w io.Writer, a *domain.FlightAlert) error {
	tw := newTabWriter(w)
	tw.writef("ID:\t%s\n", a.ID)
	tw.writef("Filter:\t%s\n", a.FilterID)
	tw.writef("Status:\t%s\n", a.Status)
	tw.writef("Target:\t%.2f\n", a.TargetPrice)
	tw.writef("Current:\t%s\n", priceString(a.CurrentPrice))
	tw.writef("Last triggered:\t%s\n", priceString(a.LastTriggeredPrice))
	if a.TriggeredAt != nil {
		tw.writef("Triggered at:\t%s\n", a.TriggeredAt.Format(timeLayout))
	}
	tw.writef("Quality:\t%d/100\n", a.QualityScore)
	tw.writef("Version:\t%d\n", a.Version)
	return tw.finish()
}

func printAlertHistory(w io.Writer, h *apiclient.AlertHistory) error {
	tw := newTabWriter(w)
	tw.writef("TIME\tFROM\tTO\tPRICE\tREASON\n")
	for i := range h.Transitions {
		r := &h.Transitions[i]
		tw.writef("%s\t%s\t%s\t%s\t%s\n",
			r.RecordedAt.Format(timeLayout), r.From, r.To, priceString(r.Price), truncate(r.Reason, 40))
	}
	tw.writef("\nTIME\tCHANNEL\tSTATUS\tATTEMPTS\tERROR\n")
	for i := range h.Notifications {
		n := &h.Notifications[i]
		tw.writef("%s\t%s\t%s\t%d\t%s\n",
			n.RecordedAt.Format(timeLayout), n.Channel, n.Status, n.Attempts, truncate(n.ErrorText, 40))
	}
	return tw.finish()
}

func printJobStatusTable(w io.Writer, jobs []domain.JobStatus) error {
	tw := newTabWriter(w)
	tw.writef("JOB\tSTATE\tRUNS\tFAILURES\tLAST RUN\tDURATION\tLAST ERROR\n")
	for i := range jobs {
		j := &jobs[i]
		lastRun := "-"
		if j.LastRunAt != nil {
			lastRun = j.LastRunAt.Format(timeLayout)
		}
		state := "idle"
		if j.Running {
			state = "running"
		}
		tw.writef("%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
			j.Name, state, j.Runs, j.Failures, lastRun,
			j.LastDuration.Round(time.Millisecond), truncate(j.LastError, 40))
	}
	return tw.finish()
}

func printCycle(w io.Writer, r *apiclient.CycleSummary) error {
	tw := newTabWriter(w)
	tw.writef("Started:\t%s\n", r.StartedAt.Format(timeLayout))
	tw.writef("Duration:\t%s\n", r.Duration.Round(time.Millisecond))
	tw.writef("Due / checked / deferred:\t%d / %d / %d\n", r.Due, r.Checked, r.Deferred)
	tw.writef("Triggered:\t%d\n", r.Triggered)
	tw.writef("No data / failed:\t%d / %d\n", r.NoData, r.Failed)
	tw.writef("Backoff factor:\t%d\n", r.DegradeFactor)
	if r.Outage {
		tw.writef("Outage:\tall providers failed\n")
	}
	if len(r.Outcomes) > 0 {
		tw.writef("\nFILTER\tSTATUS\tPRICE\tPROVIDER\tQUALITY\tREASON\n")
		for i := range r.Outcomes {
			o := &r.Outcomes[i]
			tw.writef("%s\t%s\t%.2f\t%s\t%d\t%s\n",
				o.FilterID, o.Status, o.Price, o.Provider, o.Quality, truncate(o.Reason, 40))
		}
	}
	return tw.finish()
}

func printJobRunsTable(w io.Writer, runs []domain.JobRun) error {
	tw := newTabWriter(w)
	tw.writef("JOB\tSTATUS\tSTARTED\tCOMPLETED\tROWS\tERROR\n")
	for i := range runs {
		r := &runs[i]
		completed := "-"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format(timeLayout)
		}
		rows := "-"
		if r.RowsAffected != nil {
			rows = fmt.Sprintf("%d", *r.RowsAffected)
		}
		tw.writef("%s\t%s\t%s\t%s\t%s\t%s\n",
			r.JobName,
			r.Status,
			r.StartedAt.Format(timeLayout),
			completed,
			rows,
			truncate(r.ErrorText, 40),
		)
	}
	return tw.finish()
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func routesString(routes []domain.Route) string {
	parts := make([]string, len(routes))
	for i, r := range routes {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

func channelsString(chs []domain.Channel) string {
	parts := make([]string, len(chs))
	for i, c := range chs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func priceString(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *p)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
