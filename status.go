package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/sheetsync/internal/tablesync"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configured tables, the last run and open staging sheets",
		Long: `Display each configured table with its sheet id and source file, the most
recent run recorded in the journal, and staging sheets awaiting cleanup.
Makes no API calls.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// statusTable is one configured table in status output.
type statusTable struct {
	Name    string `json:"name"`
	SheetID int64  `json:"sheet_id,omitempty"`
	Src     string `json:"src"`
}

// statusReport is the --json shape of status.
type statusReport struct {
	ConfigPath string                   `json:"config_path"`
	Tables     []statusTable            `json:"tables"`
	LastRun    *tablesync.RunRecord     `json:"last_run,omitempty"`
	Staging    []tablesync.StagingSheet `json:"open_staging_sheets"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	journal, err := tablesync.OpenJournal(ctx, cc.Cfg.JournalPath, cc.Logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	report := statusReport{ConfigPath: cc.Cfg.Path}

	for _, t := range cc.Cfg.Tables {
		report.Tables = append(report.Tables, statusTable{Name: t.Name, SheetID: t.SheetID, Src: t.Src})
	}

	last, err := journal.LastRun(ctx)
	if err != nil && !errors.Is(err, tablesync.ErrNoRuns) {
		return err
	}

	report.LastRun = last

	report.Staging, err = journal.OpenStaging(ctx)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(report)
	}

	printStatusText(cmd.OutOrStdout(), &report)

	return nil
}

func printStatusText(w io.Writer, r *statusReport) {
	fmt.Fprintf(w, "Config: %s\n\n", r.ConfigPath)

	if len(r.Tables) == 0 {
		fmt.Fprintln(w, "No tables configured.")
	} else {
		rows := make([][]string, 0, len(r.Tables))
		for _, t := range r.Tables {
			rows = append(rows, []string{t.Name, formatSheetID(t.SheetID), t.Src})
		}

		printTable(w, []string{"TABLE", "SHEET", "SRC"}, rows)
	}

	fmt.Fprintln(w)

	if r.LastRun == nil {
		fmt.Fprintln(w, "Last run: never")
	} else {
		fmt.Fprintf(w, "Last run: %s %s, started %s, finished %s\n",
			r.LastRun.Command, r.LastRun.Status,
			formatTime(r.LastRun.StartedAt), formatTime(r.LastRun.FinishedAt))
	}

	if len(r.Staging) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%d staging sheet(s) awaiting cleanup:\n", len(r.Staging))

	rows := make([][]string, 0, len(r.Staging))
	for _, s := range r.Staging {
		rows = append(rows, []string{formatSheetID(s.SheetID), s.Table, formatTime(s.CreatedAt), s.LastError})
	}

	printTable(w, []string{"SHEET", "TABLE", "CREATED", "ERROR"}, rows)
}
