package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tonimelisma/sheetsync/internal/tablesync"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// formatTime returns a compact timestamp for display.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	now := time.Now()

	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// formatSheetID renders a sheet id, or "-" for none.
func formatSheetID(id int64) string {
	if id == 0 {
		return "-"
	}

	return strconv.FormatInt(id, 10)
}

// printTable writes aligned columns to w. headers and every row must have
// the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printRow(w, headers, widths)

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
}

// reportJSON is the --json shape of a run report.
type reportJSON struct {
	RunID   string            `json:"run_id"`
	Command string            `json:"command"`
	Aborted bool              `json:"aborted"`
	Tables  []tableResultJSON `json:"tables"`
}

type tableResultJSON struct {
	Table     string `json:"table"`
	SheetID   int64  `json:"sheet_id,omitempty"`
	Status    string `json:"status"`
	Rows      int    `json:"rows,omitempty"`
	StagingID int64  `json:"staging_sheet_id,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// printReport writes a run report as a table, or as JSON when asJSON is set.
func printReport(w io.Writer, report *tablesync.Report, asJSON bool) error {
	if asJSON {
		out := reportJSON{
			RunID:   report.RunID,
			Command: report.Command,
			Aborted: report.Aborted,
			Tables:  make([]tableResultJSON, 0, len(report.Results)),
		}

		for _, r := range report.Results {
			tr := tableResultJSON{
				Table:     r.Table,
				SheetID:   r.SheetID,
				Status:    string(r.Status),
				StagingID: r.StagingID,
				Path:      r.Path,
			}

			if r.Rows > 0 {
				tr.Rows = r.Rows
			}

			if r.Err != nil {
				tr.Error = r.Err.Error()
			}

			out.Tables = append(out.Tables, tr)
		}

		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		note := r.Path
		if r.Err != nil {
			note = r.Err.Error()
		}

		rows = append(rows, []string{r.Table, formatSheetID(r.SheetID), string(r.Status), note})
	}

	printTable(w, []string{"TABLE", "SHEET", "STATUS", "DETAIL"}, rows)

	if report.Aborted {
		fmt.Fprintln(w, "Run aborted; remaining tables were not processed.")
	}

	return nil
}
