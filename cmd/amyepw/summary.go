package main

import (
	"strconv"
	"strings"

	"github.com/couchcryptid/amy-epw-etl/internal/domain"
	"github.com/couchcryptid/amy-epw-etl/internal/pipeline"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxReasonWidth truncates long failure reasons in the summary table.
const maxReasonWidth = 80

func renderSummary(r pipeline.Report) string {
	var b strings.Builder

	status := "complete"
	if r.Aborted {
		status = "aborted"
	}
	b.WriteString(renderTable(
		[]string{"Run", "Status", "Total", "Succeeded", "Failed"},
		[][]string{{r.RunID, status, strconv.Itoa(r.Total), strconv.Itoa(r.Succeeded()), strconv.Itoa(r.Failed())}},
		3, 4, 5,
	))

	failures := r.Failures()
	if len(failures) == 0 {
		return b.String()
	}
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.Reference, string(f.FailureKind), truncate(f.Reason, maxReasonWidth)})
	}
	b.WriteString("\n")
	b.WriteString(renderTable([]string{"Feed", "Kind", "Reason"}, rows))
	return b.String()
}

func renderGaps(repairs []domain.GapRepair, year int) string {
	if len(repairs) == 0 {
		return "no gaps"
	}
	rows := make([][]string, 0, len(repairs))
	for _, r := range repairs {
		g := r.Gap
		rows = append(rows, []string{
			string(g.Field),
			domain.TimeOfHour(year, g.Start).Format("2006-01-02 15:04"),
			strconv.Itoa(g.Start),
			strconv.Itoa(g.End()),
			strconv.Itoa(g.Length),
			string(r.Outcome),
		})
	}
	return renderTable(
		[]string{"Field", "From", "Start", "End", "Length", "Outcome"},
		rows,
		3, 4, 5,
	)
}

// truncate shortens s to n display columns without splitting a rune.
func truncate(s string, n int) string {
	return text.Snip(s, n, "...")
}
