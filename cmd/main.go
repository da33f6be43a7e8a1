package main

import (
	"context"
	"fmt"
	logByDefault "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/neverhome/neverhome-bot/internal/config"
	"github.com/neverhome/neverhome-bot/internal/discord"
	"github.com/neverhome/neverhome-bot/internal/httpclient"
	log "github.com/neverhome/neverhome-bot/internal/log"
	"github.com/neverhome/neverhome-bot/internal/metrics"
	"github.com/neverhome/neverhome-bot/internal/roblox"
	"github.com/neverhome/neverhome-bot/internal/server"
	storage "github.com/neverhome/neverhome-bot/internal/storage"

	// This controls the maxprocs environment variable in container runtimes.
	// see https://martin.baillie.id/wrote/gotchas-in-the-go-network-packages-defaults/#bonus-gomaxprocs-containers-and-the-cfs
	"go.uber.org/automaxprocs/maxprocs"
)

func main() {
	// Set the local timezone to UTC
	time.Local = time.UTC

	// Initialize the configuration
	config, err := config.MustLoadConfig()
	if err != nil {
		logByDefault.Fatalf("Config load error: %v", err)
		os.Exit(1)
	}

	// Every record also goes to the Discord log channel once the bot binds it.
	sink := log.NewChannelSink(slog.LevelInfo)
	defer sink.Close()

	// Logger configuration
	logger := log.New(
		log.WithLevel(config.Verbose),
		log.WithSource(),
		log.WithHandler(sink),
	)

	if err := run(config, logger, sink); err != nil {
		logger.ErrorContext(context.Background(), "an error occurred", slog.String("error", err.Error()))
		os.Exit(1)
	}

	os.Exit(0)
}

func run(config *config.Config, logger *slog.Logger, sink *log.ChannelSink) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err := maxprocs.Set(maxprocs.Logger(func(s string, i ...interface{}) {
		logger.DebugContext(ctx, fmt.Sprintf(s, i...))
	}))
	if err != nil {
		return fmt.Errorf("setting max procs: %w", err)
	}

	// Setup database connection
	db, err := storage.New(config, logger)
	if err != nil {
		return fmt.Errorf("database connection error: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Create a http client
	httpClient, err := httpclient.NewHTTPClient(&config.Proxy)
	if err != nil {
		return fmt.Errorf("http client setup error: %w", err)
	}

	// Roblox Open Cloud client with the process-level credentials
	robloxClient := roblox.New(httpClient, &config.Roblox, logger)

	// InfluxDB metrics (no-op when disabled)
	metricsLogger := metrics.NewMetricsFake()
	if config.Metrics.Enabled {
		metricsLogger = metrics.NewMetricsImpl(
			config.Metrics.URL,
			config.Metrics.Token,
			config.Metrics.Org,
			config.Metrics.Bucket,
			map[string]string{"environment": config.Environment},
		)
	}
	defer metricsLogger.Close()

	// Setup Discord bot
	bot, err := discord.New(config, logger, sink, db, robloxClient, metricsLogger, httpClient)
	if err != nil {
		return fmt.Errorf("discord bot setup error: %w", err)
	}

	if err := bot.Start(ctx); err != nil {
		return fmt.Errorf("discord gateway error: %w", err)
	}
	defer func() { _ = bot.Stop() }()

	// Setup API server
	srv := server.New(config, logger, db)
	srv.AddHealthCheck(func() (bool, map[string]string) {
		ok, gateway := bot.Status()

		return ok, map[string]string{
			"gateway": gateway,
		}
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.InfoContext(ctx, "Server started", slog.String("host", config.API.Host), slog.Int("port", config.API.Port))

	select {
	case <-ctx.Done():
		logger.InfoContext(ctx, "Shutting down")
	case err := <-errCh:
		return fmt.Errorf("api server error: %w", err)
	}

	const shutdownTimeout = 10 * time.Second

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown error: %w", err)
	}

	return nil
}
