package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/CSwithChetan123/GhareluDiary/internal/amqp"
	"github.com/CSwithChetan123/GhareluDiary/internal/config"
	"github.com/CSwithChetan123/GhareluDiary/internal/identity"
	applog "github.com/CSwithChetan123/GhareluDiary/internal/log"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote/firestore"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote/memory"
	"github.com/CSwithChetan123/GhareluDiary/internal/services"
	"github.com/CSwithChetan123/GhareluDiary/internal/storage"
	"github.com/CSwithChetan123/GhareluDiary/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := applog.DefaultConfig()
	cfg.Component = applog.ComponentWorker
	logger := applog.New(cfg)
	applog.SetDefault(logger)

	logger.Info("Starting gharelu-worker")

	conf := config.Load()
	if err := conf.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if conf.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(conf.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite store", applog.FieldError, err, "path", conf.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	var id identity.Provider
	if conf.UserID != "" {
		id = identity.Static{ID: conf.UserID, EmailAddress: conf.UserEmail}
	} else {
		id = identity.None{}
		logger.Warn("No identity bound; pushes for entries without a user will fail")
	}

	var remoteClient remote.Client
	switch conf.RemoteBackend {
	case "firestore":
		client, err := firestore.NewFromEnv(context.Background(), id)
		if err != nil {
			logger.Error("Failed to initialize Firestore client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		remoteClient = client
	default:
		remoteClient = memory.New(id)
		logger.Warn("Using in-memory remote backend; pushed entries do not survive restarts")
	}

	amqpClient, err := amqp.NewClient(conf.AMQPURL, conf.AMQPExchange, conf.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The worker pushes directly; no publisher, or queued work would loop
	// back onto the queue.
	rec := services.NewReconciler(store, remoteClient, id, nil)
	syncWorker := worker.NewSyncWorker(store, remoteClient, rec)

	// On startup, push any entries that were saved while offline
	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", applog.FieldError, err)
		// Don't exit - continue with normal operation
	}

	go func() {
		if err := amqpClient.ConsumeEntrySync(ctx, syncWorker.HandleSyncMessage); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", applog.FieldError, err)
			}
			cancel()
		}
	}()

	// Periodic sweep for entries whose queued message was lost
	go func() {
		ticker := time.NewTicker(conf.SyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := syncWorker.SweepUnsynced(ctx); err != nil {
					logger.Error("Periodic sweep failed", applog.FieldError, err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Worker stopped gracefully")
}
