package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/CSwithChetan123/GhareluDiary/internal/amqp"
	"github.com/CSwithChetan123/GhareluDiary/internal/config"
	apphttp "github.com/CSwithChetan123/GhareluDiary/internal/http"
	"github.com/CSwithChetan123/GhareluDiary/internal/identity"
	applog "github.com/CSwithChetan123/GhareluDiary/internal/log"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote/firestore"
	"github.com/CSwithChetan123/GhareluDiary/internal/remote/memory"
	"github.com/CSwithChetan123/GhareluDiary/internal/services"
	"github.com/CSwithChetan123/GhareluDiary/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	var id identity.Provider
	if cfg.UserID != "" {
		id = identity.Static{ID: cfg.UserID, EmailAddress: cfg.UserEmail}
		logger.Info("Identity bound", applog.FieldUserID, cfg.UserID)
	} else {
		id = identity.None{}
		logger.Warn("No identity bound; remote sync is disabled until GHARELU_USER_ID is set")
	}

	var remoteClient remote.Client
	switch cfg.RemoteBackend {
	case "firestore":
		client, err := firestore.NewFromEnv(context.Background(), id)
		if err != nil {
			logger.Error("Failed to initialize Firestore client", applog.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		remoteClient = client
		logger.Info("Initialized Firestore backend", "project_id", cfg.FirestoreProjectID)
	default:
		remoteClient = memory.New(id)
		logger.Info("Initialized in-memory remote backend")
	}

	// AMQP is optional. With it, remote pushes are queued for the worker;
	// without it, the reconciler pushes inline.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	}

	rec := services.NewReconciler(store, remoteClient, id, publisher)
	orch := services.NewOrchestrator(rec)

	srv := apphttp.NewServer(":"+cfg.Port, store, rec, orch, cfg.SummaryCacheSize, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Startup sync: one-time remote duplicate cleanup, then pull/push for
	// the current month. Failures are logged; the app still serves local data.
	go func() {
		if err := orch.RunStartup(ctx); err != nil {
			logger.Warn("Startup sync incomplete", applog.FieldError, err)
		}
	}()

	// Periodic sync cadence. Morning and evening runs come from the main
	// interval; the weekly run refreshes older periods too.
	go func() {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		weekly := time.NewTicker(cfg.WeeklySyncInterval)
		defer weekly.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				reason := services.ReasonEvening
				if t.Hour() < 12 {
					reason = services.ReasonMorning
				}
				if err := orch.RunPeriodicSync(ctx, reason); err != nil {
					logger.Error("Periodic sync failed", applog.FieldError, err, applog.FieldSyncReason, string(reason))
				}
			case <-weekly.C:
				if err := orch.RunPeriodicSync(ctx, services.ReasonWeeklySummary); err != nil {
					logger.Error("Weekly sync failed", applog.FieldError, err)
				}
			}
		}
	}()

	// Graceful shutdown handling
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting gharelud server", "port", cfg.Port, "remote_backend", cfg.RemoteBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
