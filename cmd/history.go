package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/repomindhq/repomind/internal/config"
	"github.com/repomindhq/repomind/internal/journal"
)

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent synchronization cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(repoPath)
			if err != nil {
				return err
			}
			dbPath := filepath.Join(config.StateDir(root), "journal.db")
			if _, err := os.Stat(dbPath); err != nil {
				fmt.Println("no cycles recorded")
				return nil
			}
			jnl, err := journal.Open(dbPath)
			if err != nil {
				return err
			}
			defer jnl.Close()

			entries, err := jnl.Recent(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no cycles recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tKIND\tRANGE\tOUTCOME\tDETAIL")
			for _, e := range entries {
				outcome := e.Outcome
				if outcome == "" {
					outcome = "running"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.StartedAt.Format("2006-01-02 15:04:05"), e.Kind,
					revRange(e.FromRev, e.ToRev), outcome, e.Detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of cycles to show")
	return cmd
}

func revRange(from, to string) string {
	short := func(r string) string {
		if len(r) > 8 {
			return r[:8]
		}
		if r == "" {
			return "-"
		}
		return r
	}
	return short(from) + ".." + short(to)
}
