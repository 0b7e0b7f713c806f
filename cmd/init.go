package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/repomindhq/repomind/internal/config"
)

func initCmd() *cobra.Command {
	var apiKey string
	var noBootstrap bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file and build the initial memory document",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(repoPath)
			if err != nil {
				return err
			}

			if err := config.WriteDefault(root); err != nil {
				return err
			}
			fmt.Println("wrote", config.Path(root))

			if apiKey != "" {
				if err := config.StoreAPIKey(apiKey); err != nil {
					return err
				}
				fmt.Println("API key stored in OS keyring")
			}

			if noBootstrap {
				return nil
			}
			if _, err := config.APIKey(); err != nil {
				fmt.Println("no API key available yet; run `repomind sync` once it is set")
				return nil
			}

			env, err := buildEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			res, err := env.sync.SyncOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("initial sync: %w", err)
			}
			if res.Kind == "" {
				fmt.Println("memory document already up to date")
			} else {
				fmt.Printf("%s cycle: %s\n", res.Kind, res.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "store this API key in the OS keyring")
	cmd.Flags().BoolVar(&noBootstrap, "no-bootstrap", false, "only write config, skip the initial sync")
	return cmd
}
