// audit-worker consumes expense activity events and writes an audit log.
// It demonstrates the async side of the event pipeline: the web app
// publishes fire-and-forget, this process acknowledges each event after
// logging it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"spendscan/internal/cli"
	"spendscan/internal/events"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required for audit-worker")
		os.Exit(1)
	}

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting audit-worker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	err = client.ConsumeExpenseEvents(ctx, func(msg *events.ExpenseEventMessage) error {
		logger.InfoContext(ctx, "Expense activity",
			"type", msg.Type,
			"record_id", msg.ID,
			"timestamp", msg.Timestamp)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("Consumer stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("audit-worker stopped gracefully")
}
