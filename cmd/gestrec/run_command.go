package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gestrec/internal/daemon"
	"gestrec/internal/features"
	"gestrec/internal/frames"
	"gestrec/internal/logging"
	"gestrec/internal/notifications"
	"gestrec/internal/queue"
	"gestrec/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var drain bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the frame and feature extraction pipeline",
		Long: "Run processes queued clips through frame extraction and feature extraction " +
			"until interrupted. With --drain the process exits once the queue is empty.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			runStamp := time.Now().UTC().Format("20060102T150405Z")
			logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("gestrec-%s.log", runStamp))
			logger, err := logging.New(logging.Options{
				Level:            cfg.Logging.Level,
				Format:           cfg.Logging.Format,
				OutputPaths:      []string{"stdout", logPath},
				ErrorOutputPaths: []string{"stderr", logPath},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
				logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "gestrec-*.log", Exclude: []string{logPath}},
			)

			store, err := queue.Open(cfg)
			if err != nil {
				logger.Error("open queue store", logging.Error(err))
				return err
			}

			notifier := notifications.NewService(cfg)
			var opts []workflow.ManagerOption
			if drain {
				opts = append(opts, workflow.WithDrainMode(true))
			}
			manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier, opts...)
			manager.ConfigureStages(workflow.StageSet{
				FrameExtractor:   frames.NewExtractor(cfg, store, logger),
				FeatureExtractor: features.NewExtractor(cfg, store, logger),
			})

			d, err := daemon.New(cfg, store, logger, manager)
			if err != nil {
				store.Close()
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}

			if drain {
				select {
				case <-d.Idle():
					logger.Info("queue drained, shutting down")
				case <-signalCtx.Done():
					logger.Info("shutting down")
				}
				return nil
			}

			<-signalCtx.Done()
			logger.Info("shutting down")
			return nil
		},
	}

	cmd.Flags().BoolVar(&drain, "drain", false, "Exit once the queue is empty")
	return cmd
}
