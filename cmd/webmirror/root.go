// Package main provides the entry point for the webmirror CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webmirror.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webmirror",
		Short: "Download websites into offline directory trees",
		Long: `webmirror downloads websites into self-contained offline copies.

Pages keep their URL structure on disk, downloaded assets are organized
and deduplicated under assets/, and every asset and navigation reference
is rewritten to a relative local path so the copy works from the
filesystem without a web server.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Add subcommands
	cmd.AddCommand(NewMirrorCmd())
	cmd.AddCommand(NewPagesCmd())
	cmd.AddCommand(NewLocalCmd())
	cmd.AddCommand(NewRepairCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
