package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/webmirror/webmirror/internal/config"
	"github.com/webmirror/webmirror/internal/repair"
)

// NewRepairCmd creates the repair command.
func NewRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair <dir>",
		Short: "Find and fix broken links in a mirrored site",
		Long: `Repair scans every HTML file in a mirror directory and classifies each
link: anchors, mailto:, tel:, and absolute web URLs are left alone;
javascript: links are always broken; local references are broken unless
the target file exists (directly, with .html appended, or as
<target>/index.html).

Without --replace-with or --fallback-page, repair runs in dry-run mode
and only reports what it would change. When rewriting, each modified
file gets an .orig.backup sidecar unless --no-backup is given; --restore
puts the originals back.

Examples:
  # Report broken links without changing anything
  webmirror repair ./mirror

  # Point broken links at the live site
  webmirror repair --replace-with https://example.com ./mirror

  # Point broken links at the mirror's home page
  webmirror repair --fallback-page index.html ./mirror

  # Undo a previous repair
  webmirror repair --restore ./mirror`,
		Args: cobra.ExactArgs(1),
		RunE: runRepairCmd,
	}

	cmd.Flags().String("replace-with", "",
		"Absolute URL substituted for every broken link")
	cmd.Flags().String("fallback-page", "",
		"Mirror-relative page broken links are rewritten to point at")
	cmd.Flags().Bool("no-backup", false,
		"Do not write .orig.backup sidecars before modifying files")
	cmd.Flags().Bool("restore", false,
		"Restore files from .orig.backup sidecars and exit")
	cmd.Flags().Int("concurrency", config.DefaultRepairConcurrency,
		"Number of files repaired in parallel")

	return cmd
}

// runRepairCmd executes the repair command.
func runRepairCmd(cmd *cobra.Command, args []string) error {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	cfg.ReplacementURL, err = cmd.Flags().GetString("replace-with")
	if err != nil {
		return err
	}
	cfg.FallbackPage, err = cmd.Flags().GetString("fallback-page")
	if err != nil {
		return err
	}
	noBackup, err := cmd.Flags().GetBool("no-backup")
	if err != nil {
		return err
	}
	cfg.RepairBackup = !noBackup
	restore, err := cmd.Flags().GetBool("restore")
	if err != nil {
		return err
	}
	cfg.RepairConcurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}

	if cfg.ReplacementURL != "" && cfg.FallbackPage != "" {
		return config.ErrConflictingRepairTargets
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	fixer := repair.NewFixer(args[0], logger,
		repair.WithReplacementURL(cfg.ReplacementURL),
		repair.WithFallbackPage(cfg.FallbackPage),
		repair.WithBackup(cfg.RepairBackup),
		repair.WithConcurrency(cfg.RepairConcurrency),
	)

	if restore {
		summary, err := fixer.Restore(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Restored %d file(s) from backup\n", summary.FilesRestored)
		return nil
	}

	summary, err := fixer.Run(ctx)
	if err != nil {
		return err
	}

	dryRun := cfg.ReplacementURL == "" && cfg.FallbackPage == ""
	if dryRun {
		fmt.Println("Dry run: no files were modified (use --replace-with or --fallback-page to rewrite)")
	}
	fmt.Printf("Scanned %d file(s), checked %d link(s)\n", summary.FilesScanned, summary.LinksChecked)
	fmt.Printf("Broken links: %d\n", summary.LinksBroken)
	if !dryRun {
		fmt.Printf("Modified files: %d\n", summary.FilesModified)
	}

	return nil
}
