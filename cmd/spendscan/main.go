package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"spendscan/internal/cli"
	"spendscan/internal/events"
	apphttp "spendscan/internal/http"
	"spendscan/internal/remote"
	"spendscan/internal/store"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	client, err := remote.New(cfg.BackendBaseURL,
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithScanTimeout(cfg.ScanTimeout))
	if err != nil {
		logger.Error("Failed to initialize backend client", "error", err, "base_url", cfg.BackendBaseURL)
		os.Exit(1)
	}

	opts := []store.Option{}

	// Optional AMQP activity events
	var eventsClient *events.Client
	if cfg.EventsEnabled() {
		eventsClient, err = events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Events are best-effort; the app works without them.
			logger.Warn("Failed to initialize AMQP client, events disabled", "error", err)
		} else {
			defer eventsClient.Close()
			opts = append(opts, store.WithPublisher(eventsClient))
			logger.Info("AMQP events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	st := store.New(client, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, st, client)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 2 * cfg.ScanTimeout
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting spendscan server", "port", cfg.Port, "backend", cfg.BackendBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Initial load runs alongside the server so a slow backend never delays
	// startup; a failure flips the store into degraded sample mode.
	g.Go(func() error {
		loadCtx, cancel := context.WithTimeout(gctx, cfg.RequestTimeout)
		defer cancel()
		if err := st.Load(loadCtx); err != nil {
			logger.Warn("Initial expense load failed, serving sample data", "error", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
