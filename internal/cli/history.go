package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/glprotect/internal/history"
	"github.com/ppiankov/glprotect/internal/run"
)

var (
	historyDB    string
	historyLines int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyDB, "db", "", "Path to the run history database (required)")
	historyCmd.Flags().IntVarP(&historyLines, "lines", "n", 10, "Number of recent runs to show")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs from the history database",
	Long:  "Lists the most recent runs recorded by apply --history-db, newest first.",
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runHistory(cmd.Context()))
	},
}

func runHistory(ctx context.Context) int {
	if historyDB == "" {
		fmt.Fprintln(os.Stderr, "error: --db is required")
		return run.ExitUsage
	}

	store, err := history.Open(historyDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return run.ExitError
	}
	defer store.Close()

	runs, err := store.Recent(ctx, historyLines)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return run.ExitError
	}

	fmt.Print(formatRuns(runs))
	return run.ExitOK
}

// formatRuns renders run rows as a fixed-width table, newest first.
func formatRuns(runs []history.Run) string {
	if len(runs) == 0 {
		return "No runs recorded.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-19s  %-8s  %-24s  %-4s  %8s  %7s  %7s  %6s  %4s\n",
		"STARTED", "RUN", "NAMESPACE", "MODE", "PROJECTS", "APPLIED", "SKIPPED", "ERRORS", "EXIT")
	for _, r := range runs {
		mode := "live"
		if r.DryRun {
			mode = "dry"
		}
		fmt.Fprintf(&b, "%-19s  %-8s  %-24s  %-4s  %8d  %7d  %7d  %6d  %4d\n",
			r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			shortID(r.ID), r.Namespace, mode,
			r.Projects, r.Applied, r.Skipped, r.Errors, r.ExitCode)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
