package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iliyamo/tradeflow/internal/config"
	"github.com/iliyamo/tradeflow/internal/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume job activity events into the activity log",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadWorker()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := &queue.Consumer{URL: cfg.RabbitMQURL, LogDir: cfg.ActivityLogDir}
		log.Printf("activity worker writing to %s", cfg.ActivityLogDir)
		if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Println("activity worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
