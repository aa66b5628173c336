package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"userpinger/app/api"
	"userpinger/app/cfg"
	"userpinger/app/database"
	"userpinger/app/dedup"
	"userpinger/app/groups"
	"userpinger/app/notify"
	"userpinger/app/pinger"
	"userpinger/app/reddit"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting user-pinger", "version", appCfg.Version, "subreddit", appCfg.Subreddit)

	// Ping history database
	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	// De-duplication cache, restored from the previous run
	store := dedup.NewStore(appCfg.CacheFile)
	cache := store.Restore()
	slog.Info("Restored de-duplication cache", "size", cache.Len())

	httpClient := &http.Client{Timeout: 30 * time.Second}
	client := reddit.NewClient(httpClient)
	stream := reddit.NewStream(httpClient, appCfg.Subreddit, appCfg.UserAgent)
	authorizer := groups.NewAuthorizer(client)

	// A missing or malformed configuration document means an inconsistent
	// state; refuse to start rather than limp along.
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := authorizer.FetchPublicGroups(startupCtx); err != nil {
		slog.Error("Failed to load config document", "error", err)
		os.Exit(1)
	}
	if _, err := authorizer.FetchRoster(startupCtx); err != nil {
		slog.Error("Failed to load groups document", "error", err)
		os.Exit(1)
	}
	cancel()
	slog.Info("Configuration documents validated")

	notifier := notify.NewNotifier(client)
	pingRepo := database.NewPingRepository(db)
	loop := pinger.NewLoop(stream, cache, authorizer, notifier, pingRepo)

	// Status HTTP server
	handler := api.NewHandler(pingRepo, loop, cache, appCfg.Subreddit, appCfg.Version)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP status server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loopDone := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(loopDone)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Received termination signal")
	case err := <-serverErrChan:
		slog.Error("HTTP server failed", "error", err)
		stop()
	}

	<-loopDone

	// Persist the cache before exiting; a write failure is logged but never
	// keeps the process alive.
	if err := store.Save(cache); err != nil {
		slog.Error("Failed to save de-duplication cache", "error", err)
	} else {
		slog.Info("Saved de-duplication cache", "size", cache.Len())
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Exited gracefully")
}
