/*
Package main is the entry point for the blip chat server.

It is responsible for loading configuration, initializing the global logging system, opening the
configured store, loading the moderation dictionary, starting the chat service and the HTTP
server, and gracefully handling operating system interrupt signals (SIGINT, SIGTERM).
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blip/internal/app/chat"
	"blip/internal/app/db"
	"blip/internal/app/moderation"
	"blip/internal/app/registry"
	"blip/internal/app/storage"
	"blip/internal/app/store"
	"blip/internal/configs"
	"blip/internal/handler"
	"blip/internal/pkg/logx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("store_driver", cfg.StoreDriver).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openStore(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to open store")
	}
	defer backend.Close()

	filter, err := loadFilter(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to load moderation dictionary")
	}

	reg := registry.New(backend)
	service := chat.NewService(backend, backend, reg, filter)
	service.Start(ctx)

	router := handler.Router(&handler.AppDeps{
		Config:   cfg,
		Chat:     service,
		Registry: reg,
		Visits:   backend,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("blip server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	service.Shutdown()

	logx.Info("Server gracefully stopped.")
}

func openStore(ctx context.Context, cfg *configs.AppConfig) (store.Backend, error) {
	if cfg.StoreDriver == configs.StoreMemory {
		logx.Warn("Using the in-memory store; all chat state is lost on restart.")
		return store.NewMemory(), nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return store.NewPostgres(pool), nil
}

func loadFilter(ctx context.Context, cfg *configs.AppConfig) (*moderation.Filter, error) {
	src := moderation.Sources{
		Extra: cfg.ModerationExtraWords,
		File:  cfg.ModerationWordsFile,
	}

	if cfg.ModerationWordsKey != "" {
		objects, err := storage.NewStorageService(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		src.Objects = objects
		src.ObjectKey = cfg.ModerationWordsKey
	}

	return moderation.LoadFilter(ctx, src)
}
