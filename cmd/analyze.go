package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dawitel/optimetricsapi/internal/model"
	"github.com/dawitel/optimetricsapi/internal/queue"
)

var (
	analyzeUser string
	analyzeSeo  bool
	analyzeRev  bool
)

// analyzeCmd runs both pipelines for a URL in-process, without Redis or a
// separate worker. Useful for local runs and smoke tests.
var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Run the analysis pipelines for a URL once, synchronously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Force the in-process queue; this command is its own worker.
		cfg.Queue.Driver = "memory"

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		domain := &model.Domain{URL: args[0]}
		if err := e.Store.CreateDomain(ctx, domain); err != nil {
			return err
		}

		tasks, err := e.Service.StartAnalysis(ctx, domain.ID, analyzeUser)
		if err != nil {
			return err
		}

		runBoth := !analyzeSeo && !analyzeRev
		for _, task := range tasks {
			switch task.Type {
			case model.TaskTypeSeoScrape:
				if !runBoth && !analyzeSeo {
					continue
				}
				msg, recvErr := e.Queue.Receive(ctx, queue.QueueSeoScrape)
				if recvErr != nil {
					return recvErr
				}
				if runErr := e.Processor.ProcessSeo(ctx, msg); runErr != nil {
					zap.L().Error("seo pipeline failed", zap.Error(runErr))
				}
			case model.TaskTypeReviewScrape:
				if !runBoth && !analyzeRev {
					continue
				}
				msg, recvErr := e.Queue.Receive(ctx, queue.QueueReviewScrape)
				if recvErr != nil {
					return recvErr
				}
				if runErr := e.Processor.ProcessReview(ctx, msg); runErr != nil {
					zap.L().Error("review pipeline failed", zap.Error(runErr))
				}
			}

			final, getErr := e.Store.GetTask(ctx, task.ID)
			if getErr != nil {
				return getErr
			}
			zap.L().Info("task finished",
				zap.String("task_id", final.ID),
				zap.String("type", string(final.Type)),
				zap.String("status", string(final.Status)),
				zap.String("stage", string(final.Stage)),
				zap.String("last_error", final.LastError),
			)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "user id recorded on reports (default \"system\")")
	analyzeCmd.Flags().BoolVar(&analyzeSeo, "seo", false, "run only the SEO pipeline")
	analyzeCmd.Flags().BoolVar(&analyzeRev, "reviews", false, "run only the review pipeline")
	rootCmd.AddCommand(analyzeCmd)
}
