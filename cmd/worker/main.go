package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/graphrag/internal/backend"
	"github.com/OFFIS-RIT/graphrag/internal/config"
	"github.com/OFFIS-RIT/graphrag/internal/queue"
	"github.com/OFFIS-RIT/graphrag/internal/storage"
	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	b, err := backend.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Could not create backend", "err", err)
	}
	defer b.Close()

	// Documents referenced by key are read from S3
	var fetcher queue.TextFetcher
	if cfg.S3.Bucket != "" {
		client, err := storage.NewS3Client(ctx, cfg.S3)
		if err != nil {
			logger.Fatal("Could not create S3 client", "err", err)
		}
		fetcher = storage.NewBucket(client, cfg.S3.Bucket)
	}

	// Init rabbitmq
	conn, err := queue.Init(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	worker := queue.NewWorker(ch, queue.NewProcessor(b.Client, fetcher), b.AI)
	if err := worker.Run(ctx); err != nil {
		logger.Error("Worker stopped", "err", err)
	}
	logger.Info("Shutdown signal received, exiting...")
}
