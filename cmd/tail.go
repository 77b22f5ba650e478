// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ipfix-enricher/internal/logview"
)

// tailCmd represents the tail command
var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the daemon log with colors",
	Long: `Follow the daemon log like tail -f, with log levels, success rates and
error counts colored, and statistics headers highlighted.

Survives log rotation and truncation: when the file is replaced the tail
reopens it and continues from the start of the new file.

Examples:
  ipfix-enricher tail
  ipfix-enricher tail -n 50
  ipfix-enricher tail -l /tmp/test.log`,
	Run: func(cmd *cobra.Command, args []string) {
		runTailCommand()
	},
}

var tailLines int

func init() {
	tailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10,
		"number of initial lines to show")
}

func runTailCommand() {
	path := viewerLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Tailing %s (Ctrl+C to stop)...\n", path)
	fmt.Println(strings.Repeat("-", 60))

	err := logview.Follow(ctx, path, tailLines, func(line string) {
		fmt.Println(logview.Colorize(line))
	})
	if err != nil {
		exitWithError("failed to tail log", err)
	}

	fmt.Println("\n\nStopping tail...")
}
