package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solusipay/payment-aggregator/internal/events"
	"github.com/solusipay/payment-aggregator/pkg/logger"
)

var consumerCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Start the payment event consumer",
	Long:  `Consume payment lifecycle events from the queue and dispatch them to notification and audit handlers`,
	Run: func(cmd *cobra.Command, args []string) {
		startConsumer()
	},
}

func startConsumer() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	appLogger := logger.LoggerWrapper()

	if !config.Queue.Enabled() {
		fmt.Fprintln(os.Stderr, "queue brokers are not configured; nothing to consume")
		os.Exit(1)
	}

	consumer := events.NewConsumer(config.Queue, appLogger)
	handlers := events.NewLifecycleHandlers(appLogger)
	handlers.RegisterAll(consumer)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	consumerErrChan := make(chan error, 1)
	go func() {
		consumerErrChan <- consumer.Start(context.Background())
	}()

	appLogger.Info("event consumer is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		appLogger.Info("received signal, shutting down consumer", "signal", sig)

		shutdownDone := make(chan struct{})
		go func() {
			if err := consumer.Close(); err != nil {
				appLogger.Error("consumer close error", "error", err)
			}
			<-consumerErrChan
			close(shutdownDone)
		}()

		select {
		case <-shutdownDone:
			appLogger.Info("consumer shutdown complete")
		case <-time.After(30 * time.Second):
			appLogger.Warn("shutdown timeout reached, forcing exit")
		}
	case err := <-consumerErrChan:
		if err != nil {
			appLogger.Error("consumer stopped with error", "error", err)
			os.Exit(1)
		}
	}
}
