package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the inboxzero binary.
var rootCmd = &cobra.Command{
	Use:   "inboxzero",
	Short: "Email productivity service: automated triage for Gmail inboxes",
	Long: `inboxzero keeps Gmail inboxes clean automatically: rule-based triage,
sender categorization, cold-email blocking, reply tracking, and
calendar-event suggestions extracted from email content.

It can run as:
  - A long-running service with an HTTP JSON API and background watcher (serve)
  - A watcher-only process for all connected accounts (watch)
  - A one-shot triage run for a single account (process)`,
	SilenceUsage: true,
}

// version is set by main from the build-time variable.
var version = "dev"

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxzero version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newVersionCmd())
}
