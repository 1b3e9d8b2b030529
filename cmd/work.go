package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dawitel/optimetricsapi/internal/queue"
	"github.com/dawitel/optimetricsapi/internal/worker"
)

var workConcurrency int

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run the SEO and review pipeline workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		concurrency := workConcurrency
		if concurrency == 0 {
			concurrency = cfg.Worker.Concurrency
		}

		seoWorker := worker.New("seo", e.Queue, queue.QueueSeoScrape, concurrency, e.Processor.ProcessSeo)
		reviewWorker := worker.New("review", e.Queue, queue.QueueReviewScrape, concurrency, e.Processor.ProcessReview)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return seoWorker.Run(gctx) })
		g.Go(func() error { return reviewWorker.Run(gctx) })
		return g.Wait()
	},
}

func init() {
	workCmd.Flags().IntVar(&workConcurrency, "concurrency", 0, "worker concurrency per queue (default from config)")
	rootCmd.AddCommand(workCmd)
}
