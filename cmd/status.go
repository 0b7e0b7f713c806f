package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/repomindhq/repomind/internal/config"
	"github.com/repomindhq/repomind/internal/gitx"
	"github.com/repomindhq/repomind/internal/memdoc"
	"github.com/repomindhq/repomind/internal/state"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show watermark, lock state and document info",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(repoPath)
			if err != nil {
				return err
			}
			repo := gitx.New(root)
			states := state.NewFile(filepath.Join(root, config.StateDirName))

			st, err := states.Load()
			if err != nil {
				return err
			}

			head, err := repo.HeadRevision(context.Background())
			switch {
			case errors.Is(err, gitx.ErrNoCommits):
				head = "(no commits)"
			case err != nil:
				return err
			}

			fmt.Println("head:     ", head)
			if st.LastProcessedRevision == "" {
				fmt.Println("watermark: (none, cold start pending)")
			} else {
				fmt.Println("watermark:", st.LastProcessedRevision)
			}
			if st.IsProcessing {
				fmt.Println("lock:      held (a cycle is running, or crashed mid-cycle)")
			} else {
				fmt.Println("lock:      free")
			}

			docPath := filepath.Join(root, config.MemoryDocName)
			data, err := os.ReadFile(docPath)
			if err != nil {
				fmt.Println("document:  (not created yet)")
				return nil
			}
			text := string(data)
			valid := "valid"
			if !memdoc.Validate(text) {
				valid = "INVALID (missing required sections)"
			}
			fmt.Printf("document:  %s (%d words, %s)\n",
				config.MemoryDocName, memdoc.WordCount(text), valid)

			entries, err := repo.OnelineHistory(context.Background(), 5, time.Time{})
			if err == nil && len(entries) > 0 {
				fmt.Println("recent commits:")
				for _, e := range entries {
					marker := " "
					if e.Revision == st.LastProcessedRevision {
						marker = "*" // watermark
					}
					fmt.Printf("  %s %.8s %s\n", marker, e.Revision, e.Message)
				}
			}
			return nil
		},
	}
}
