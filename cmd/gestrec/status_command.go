package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gestrec/internal/config"
	"gestrec/internal/preflight"
	"gestrec/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline readiness and queue state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				results := preflight.RunAll(cmd.Context(), cfg)
				depStatuses := preflight.CheckSystemDeps(cfg)
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]any{
						"preflight":    results,
						"dependencies": depStatuses,
						"queue":        health,
					})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				writeSection(out, "Environment", colorize)
				for _, result := range results {
					kind := statusOK
					if !result.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
				}

				writeSection(out, "External tools", colorize)
				for _, dep := range depStatuses {
					kind := statusOK
					message := dep.Command
					if !dep.Available {
						kind = statusError
						if dep.Optional {
							kind = statusWarn
						}
						message = dep.Detail
					}
					fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
				}

				writeSection(out, "Queue", colorize)
				writeQueueCounts(out, health, colorize)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit status as JSON")
	return cmd
}

func writeSection(out io.Writer, title string, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
}

func writeQueueCounts(out io.Writer, health queue.HealthSummary, colorize bool) {
	counts := []struct {
		label string
		value int
		warn  bool
	}{
		{"Total", health.Total, false},
		{"Pending", health.Pending, false},
		{"Processing", health.Processing, false},
		{"Completed", health.Completed, false},
		{"Failed", health.Failed, true},
		{"Review", health.Review, true},
	}
	for _, count := range counts {
		kind := statusInfo
		if count.warn && count.value > 0 {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(count.label, kind, fmt.Sprintf("%d", count.value), colorize))
	}
}
