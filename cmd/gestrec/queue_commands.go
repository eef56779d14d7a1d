package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gestrec/internal/config"
	"gestrec/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the clip queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueClearCompletedCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue status summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := buildQueueStatusRows(stats)
				if len(rows) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func buildQueueStatusRows(stats map[queue.Status]int) [][]string {
	var rows [][]string
	for _, status := range queue.AllStatuses() {
		count, ok := stats[status]
		if !ok {
			continue
		}
		rows = append(rows, []string{string(status), strconv.Itoa(count)})
		delete(stats, status)
	}

	// Statuses from newer or older schema versions sort after the known set.
	var extra []string
	for status := range stats {
		extra = append(extra, string(status))
	}
	sort.Strings(extra)
	for _, status := range extra {
		rows = append(rows, []string{status, strconv.Itoa(stats[queue.Status(status)])})
	}
	return rows
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				var statuses []queue.Status
				for _, raw := range listStatuses {
					status, ok := queue.ParseStatus(raw)
					if !ok {
						return fmt.Errorf("unknown status %q", raw)
					}
					statuses = append(statuses, status)
				}

				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Title,
						item.Label,
						item.Split,
						string(item.Status),
						item.CreatedAt.Local().Format(time.DateTime),
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Label", "Split", "Status", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit items as JSON")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				var removed int64
				var err error
				switch {
				case clearCompleted:
					removed, err = store.ClearCompleted(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed items\n", removed)
				case clearFailed:
					removed, err = store.ClearFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed items\n", removed)
				default:
					removed, err = store.Clear(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d queue items\n", removed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed items")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed items")
	return cmd
}

func newQueueClearCompletedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-completed",
		Short: "Remove completed queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.ClearCompleted(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d completed items\n", removed)
				return nil
			})
		},
	}
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove failed queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				removed, err := store.ClearFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed items\n", removed)
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [itemID...]",
		Short: "Retry failed queue items",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				if len(ids) == 0 {
					updated, err := store.RetryFailed(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Retried %d failed items\n", updated)
					return nil
				}

				for _, id := range ids {
					item, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if item == nil {
						fmt.Fprintf(out, "Item %d not found\n", id)
						continue
					}
					if item.Status != queue.StatusFailed && item.Status != queue.StatusReview {
						fmt.Fprintf(out, "Item %d is not in a retryable state\n", id)
						continue
					}
					updated, err := store.RetryFailed(cmd.Context(), id)
					if err != nil {
						return err
					}
					if updated > 0 {
						fmt.Fprintf(out, "Item %d reset for retry\n", id)
					} else {
						fmt.Fprintf(out, "Item %d is not in a retryable state\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <itemID...>",
		Short: "Remove specific queue items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDs(args)
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					removed, err := store.Remove(cmd.Context(), id)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(out, "Removed item %d\n", id)
					} else {
						fmt.Fprintf(out, "Item %d not found\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-stuck",
		Short: "Return in-flight items to their previous status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				updated, err := store.ResetStuckProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d items\n", updated)
				return nil
			})
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show queue health summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, health)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\nPending: %d\nProcessing: %d\nFailed: %d\nReview: %d\nCompleted: %d\n",
					health.Total,
					health.Pending,
					health.Processing,
					health.Failed,
					health.Review,
					health.Completed,
				)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit health summary as JSON")
	return cmd
}

func parseItemIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
