package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gestrec/internal/config"
	"gestrec/internal/queue"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <itemID>",
		Short: "Display details for one queued clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("item %d not found", id)
				}

				if jsonOutput {
					return writeJSON(cmd, item)
				}

				rows := [][]string{
					{"ID", strconv.FormatInt(item.ID, 10)},
					{"Title", item.Title},
					{"Label", item.Label},
					{"Split", item.Split},
					{"Status", string(item.Status)},
					{"Source", item.SourcePath},
					{"Fingerprint", item.Fingerprint},
					{"Duration", formatSeconds(item.DurationSeconds)},
					{"Sample rate", formatRate(item.SampleRate)},
					{"Frame dir", orDash(item.FrameDir)},
					{"Frames", strconv.Itoa(item.FrameCount)},
					{"Feature file", orDash(item.FeatureFile)},
					{"Progress", formatProgress(item)},
					{"Needs review", yesNo(item.NeedsReview)},
					{"Created", item.CreatedAt.Local().Format(time.DateTime)},
					{"Updated", item.UpdatedAt.Local().Format(time.DateTime)},
				}
				if item.ReviewReason != "" {
					rows = append(rows, []string{"Review reason", item.ReviewReason})
				}
				if item.ErrorMessage != "" {
					rows = append(rows, []string{"Error", item.ErrorMessage})
				}

				table := renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit item as JSON")
	return cmd
}

func formatSeconds(value float64) string {
	if value <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fs", value)
}

func formatRate(value float64) string {
	if value <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.3f fps", value)
}

func formatProgress(item *queue.Item) string {
	if item.ProgressStage == "" {
		return "-"
	}
	label := fmt.Sprintf("%s (%.0f%%)", item.ProgressStage, item.ProgressPercent)
	if item.ProgressMessage != "" {
		label += ": " + item.ProgressMessage
	}
	return label
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
