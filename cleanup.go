package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete staging sheets left behind by failed runs",
		Long: `Delete every TMP_ staging sheet the journal still lists as open. A set run
leaves its staging sheet behind when it fails after the import, so the sheet
can be inspected before it is removed.`,
		Args: cobra.NoArgs,
		RunE: runCleanup,
	}
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	sess, err := NewTableSession(ctx, cc)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.Syncer.CleanupStaging(ctx)
	if res != nil {
		out := cmd.OutOrStdout()

		if len(res.Removed) == 0 && len(res.Failed) == 0 {
			fmt.Fprintln(out, "No staging sheets to clean up.")
		}

		for _, st := range res.Removed {
			fmt.Fprintf(out, "removed  %d  (%s)\n", st.SheetID, st.Table)
		}

		for _, st := range res.Failed {
			fmt.Fprintf(out, "failed   %d  (%s)\n", st.SheetID, st.Table)
		}
	}

	return err
}
