package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/webmirror/webmirror/internal/config"
	"github.com/webmirror/webmirror/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past mirror runs",
		Long: `History lists the mirror runs recorded in the local database, newest
first. Use --run to inspect one run's pages.

Runs are recorded automatically unless a mirror was started with
--no-db.

Examples:
  # List all recorded runs
  webmirror history

  # Show the pages of run 3
  webmirror history --run 3`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64("run", 0, "Show details for a specific run ID")
	cmd.Flags().String("db-dir", "",
		"Database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("no run history found in %s: %w", dbDir, err)
	}
	defer db.Close() //nolint:errcheck // Read-only usage

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if runID > 0 {
		stats, err := db.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		if stats == nil {
			return fmt.Errorf("run %d not found", runID)
		}

		fmt.Fprintf(out, "Run %d: %s\n", runID, stats.BaseURL)
		fmt.Fprintf(out, "  Output:    %s\n", stats.OutputDir)
		fmt.Fprintf(out, "  Pages:     %d\n", stats.PagesVisited)
		fmt.Fprintf(out, "  Resources: %d (%d failed)\n", stats.ResourcesTotal, stats.ResourcesFailed)
		fmt.Fprintf(out, "  Duration:  %s\n\n", stats.Duration.Round(10*time.Millisecond))

		pages, err := db.PagesForRun(ctx, runID)
		if err != nil {
			return err
		}
		for _, page := range pages {
			fmt.Fprintf(out, "  %s -> %s\n", page.URL, page.LocalPath)
		}
		return nil
	}

	runs, err := db.ListRuns(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No mirror runs recorded yet.")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(out, "%4d  %s  %-40s  %d pages, %d failed\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04"),
			run.BaseURL,
			run.PagesVisited,
			run.ResourcesFailed,
		)
	}
	return nil
}
