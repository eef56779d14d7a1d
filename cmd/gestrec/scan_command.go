package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gestrec/internal/config"
	"gestrec/internal/logging"
	"gestrec/internal/notifications"
	"gestrec/internal/queue"
	"gestrec/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover labeled clips and enqueue new ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				sc := scanner.NewWithNotifier(cfg, store, logger, notifications.NewService(cfg))
				result, err := sc.Scan(cmd.Context())
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]int{
						"added": result.Added,
						"known": result.Known,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %d new clips (%d already known)\n", result.Added, result.Known)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit scan results as JSON")
	return cmd
}
