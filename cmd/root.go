// Package cmd holds the repomind CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	repoPath string
	verbose  bool
)

// Execute runs the CLI.
func Execute() {
	root := &cobra.Command{
		Use:   "repomind",
		Short: "Keep a living memory document in sync with a git repository",
		Long: `repomind watches a repository's git metadata and maintains
PROJECT_MEMORY.md: a compact, structured document describing what the
project is, how it is built, and what was recently decided. Commits are
summarized through a language model; the document is versioned alongside
the code it describes.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&repoPath, "repo", "C", ".", "repository root")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(initCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(historyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
