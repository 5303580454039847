package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JaimeStill/assay/internal/events"
	"github.com/JaimeStill/assay/internal/jobs"
	"github.com/JaimeStill/assay/internal/submission"
	"github.com/JaimeStill/assay/internal/verdict"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func describeVerdict(v *verdict.Verdict) string {
	if v == nil {
		return "-"
	}
	match := "no match"
	if v.IsMatch {
		match = "match"
	}
	return fmt.Sprintf("%s (%.2f) %s", match, v.Confidence, v.Summary)
}

func describeFailure(f *jobs.Failure) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%s: %s", f.Reason, f.Message)
}

func printHandle(w io.Writer, h *submission.Handle) error {
	fmt.Fprintf(w, "source %s", h.SourceHash)
	if h.Created {
		fmt.Fprint(w, " (new)")
	}
	if h.ForceRecheck {
		fmt.Fprint(w, " (forced recheck)")
	}
	fmt.Fprintln(w)

	if len(h.Assignments) == 0 {
		fmt.Fprintln(w, "no active criteria")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CRITERION\tVERSION\tTASK\tSTATUS\tRESULT")
	for _, a := range h.Assignments {
		result := describeVerdict(a.Result)
		if a.Error != nil {
			result = describeFailure(a.Error)
		}
		status := string(a.Status)
		if a.Reused {
			status += " (reused)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", a.CriterionID, a.CriterionVersion, a.TaskID, status, result)
	}
	return tw.Flush()
}

func printJob(w io.Writer, j jobs.Job) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "task\t%s\n", j.ID)
	fmt.Fprintf(tw, "source\t%s\n", j.SourceHash)
	fmt.Fprintf(tw, "criterion\t%s@%d\n", j.CriterionID, j.CriterionVersion)
	fmt.Fprintf(tw, "status\t%s\n", j.Status)
	fmt.Fprintf(tw, "attempts\t%d\n", j.Attempts)
	if j.Result != nil {
		fmt.Fprintf(tw, "result\t%s\n", describeVerdict(j.Result))
	}
	if j.Error != nil {
		fmt.Fprintf(tw, "error\t%s\n", describeFailure(j.Error))
	}
	return tw.Flush()
}

func printStats(w io.Writer, stats []events.CriterionStats) error {
	if len(stats) == 0 {
		fmt.Fprintln(w, "no events in window")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CRITERION\tTOTAL\tMATCHES\tRATE\tAVG CONF\tAVG MS\t")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%.2f\t%.0f\t\n",
			s.CriterionID, s.Total, s.Matches, s.MatchRate*100, s.AvgConfidence, s.AvgLatencyMS)
	}
	return tw.Flush()
}

func printDaily(w io.Writer, stats []events.DailyStats) error {
	if len(stats) == 0 {
		fmt.Fprintln(w, "no events in window")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DAY\tTOTAL\tMATCHES\tRATE\tAVG CONF\tAVG MS\t")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.1f%%\t%.2f\t%.0f\t\n",
			s.Day, s.Total, s.Matches, s.MatchRate*100, s.AvgConfidence, s.AvgLatencyMS)
	}
	return tw.Flush()
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
