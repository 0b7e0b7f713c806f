package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func syncCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single synchronization cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			if force {
				if err := env.states.ResetStaleLock(); err != nil {
					return err
				}
			}

			res, err := env.sync.SyncOnce(cmd.Context())
			if err != nil {
				return err
			}
			if res.Kind == "" {
				fmt.Println("up to date")
				return nil
			}
			fmt.Printf("%s cycle: %s\n", res.Kind, res.Outcome)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "clear a stale processing lock first")
	return cmd
}
