package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/sheetsync/internal/config"
	"github.com/tonimelisma/sheetsync/internal/tablesync"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Export every table's sheet to out_dir",
		Long: `Download each table that has a sheet id as a workbook named after its src
file in out_dir. The worksheet named after the table is renamed to AUDIT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTables(cmd, "Exporting", (*tablesync.Syncer).Export)
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set",
		Aliases: []string{"attach"},
		Short:   "Replace every table's sheet rows with its src file",
		Long: `Replace the rows of each table's sheet with the rows of in_dir/<src>.

Tables without a sheet id are imported as new sheets into target_folder and
their ids are written back to the config file. For existing sheets the file
is imported as a staging sheet, the target is cleared, the rows are moved
over and the staging sheet is deleted. Columns are never changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTables(cmd, "Replacing", (*tablesync.Syncer).Replace)
		},
	}
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Attach every table's src file to its sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTables(cmd, "Attaching", (*tablesync.Syncer).Attach)
		},
	}
}

type syncRun func(s *tablesync.Syncer, ctx context.Context) (*tablesync.Report, error)

// runTables opens a session, runs one syncer workflow, writes back any new
// sheet ids and prints the report. Sheet ids are saved even when the run
// fails, since the sheets exist either way.
func runTables(cmd *cobra.Command, verb string, run syncRun) error {
	cc := mustCLIContext(cmd.Context())
	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	sess, err := NewTableSession(ctx, cc)
	if err != nil {
		return err
	}
	defer sess.Close()

	cc.Statusf("%s %d table(s)...\n", verb, len(cc.Cfg.Tables))

	report, runErr := run(sess.Syncer, ctx)
	if report == nil {
		return runErr
	}

	if len(report.Assignments) > 0 {
		if err := config.ApplyAssignments(cc.Cfg.Path, report.Assignments); err != nil {
			return errors.Join(runErr, fmt.Errorf("saving new sheet ids: %w", err))
		}

		cc.Statusf("Saved %d new sheet id(s) to %s\n", len(report.Assignments), cc.Cfg.Path)
	}

	if err := printReport(cmd.OutOrStdout(), report, cc.Flags.JSON); err != nil {
		return errors.Join(runErr, err)
	}

	if n := report.Skipped(); n > 0 && runErr == nil {
		cc.Statusf("%d table(s) skipped, see log for details\n", n)
	}

	if errors.Is(runErr, errInterrupted) {
		cc.Statusf("Interrupted after %d of %d table(s)\n", len(report.Results), len(cc.Cfg.Tables))
	}

	return runErr
}
