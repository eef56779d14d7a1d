package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gestrec/internal/config"
	"gestrec/internal/logging"
	"gestrec/internal/notifications"
	"gestrec/internal/queue"
	"gestrec/internal/training"
)

func newTrainCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the sequence model on completed clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				service := training.NewService(cfg, store, logger)
				summary, err := service.Train(cmd.Context())
				if err != nil {
					return err
				}

				notifier := notifications.NewService(cfg)
				if err := notifier.Publish(cmd.Context(), notifications.EventTrainingCompleted, notifications.Payload{
					"runID":    summary.RunID,
					"accuracy": formatAccuracy(summary.BestValAccuracy),
				}); err != nil {
					logger.Warn("training notification", logging.Error(err))
				}

				if jsonOutput {
					return writeJSON(cmd, summary)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Training run %s complete\n", summary.RunID)
				rows := [][]string{
					{"Run directory", summary.RunDir},
					{"Manifest", summary.ManifestPath},
					{"Metrics", orDash(summary.MetricsPath)},
					{"Best checkpoint", orDash(summary.BestCheckpoint)},
					{"Last checkpoint", orDash(summary.LastCheckpoint)},
					{"Exported checkpoint", orDash(summary.ExportedCheckpoint)},
					{"Best val accuracy", formatAccuracy(summary.BestValAccuracy)},
					{"Epochs run", strconv.Itoa(summary.EpochsRun)},
					{"Training samples", strconv.Itoa(summary.TrainSamples)},
					{"Validation samples", strconv.Itoa(summary.ValSamples)},
					{"Classes", strconv.Itoa(summary.Classes)},
				}
				table := renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit training summary as JSON")
	return cmd
}

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var split string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "evaluate <model>",
		Short: "Evaluate a trained model checkpoint against a split",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				service := training.NewService(cfg, store, logger)
				summary, err := service.Evaluate(cmd.Context(), args[0], split)
				if err != nil {
					return err
				}

				notifier := notifications.NewService(cfg)
				if err := notifier.Publish(cmd.Context(), notifications.EventEvaluationCompleted, notifications.Payload{
					"split":    summary.Split,
					"accuracy": formatAccuracy(summary.Accuracy),
				}); err != nil {
					logger.Warn("evaluation notification", logging.Error(err))
				}

				if jsonOutput {
					return writeJSON(cmd, summary)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Evaluated %s on %s split\n", summary.ModelPath, summary.Split)
				fmt.Fprintf(out, "Samples: %d\nLoss: %.4f\nAccuracy: %s\n", summary.Samples, summary.Loss, formatAccuracy(summary.Accuracy))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&split, "split", "", "Dataset split to evaluate (defaults to the validation split)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit evaluation summary as JSON")
	return cmd
}

func newPredictCommand(ctx *commandContext) *cobra.Command {
	var split string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "predict <model>",
		Short: "Predict labels for a split and compare against ground truth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}

				service := training.NewService(cfg, store, logger)
				summary, err := service.Predict(cmd.Context(), args[0], split)
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, summary)
				}

				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(summary.Rows))
				for _, row := range summary.Rows {
					marker := ""
					if row.Correct {
						marker = "yes"
					}
					rows = append(rows, []string{
						row.Title,
						row.Actual,
						row.Predicted,
						fmt.Sprintf("%.3f", row.Confidence),
						marker,
					})
				}
				table := renderTable(
					[]string{"Clip", "Actual", "Predicted", "Confidence", "Correct"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
				fmt.Fprintf(out, "%d/%d correct (%s)\n", summary.Correct, len(summary.Rows), formatAccuracy(summary.Accuracy))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&split, "split", "", "Dataset split to predict (defaults to the validation split)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit predictions as JSON")
	return cmd
}

func formatAccuracy(value float64) string {
	return fmt.Sprintf("%.2f%%", value*100)
}
