package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"lessonbook/backend/internal/calendar"
	"lessonbook/backend/internal/config"
	"lessonbook/backend/internal/feed"
	"lessonbook/backend/internal/service/scheduling"
	"lessonbook/backend/internal/service/settings"
	"lessonbook/backend/internal/state"
	"lessonbook/backend/internal/store/postgres"
	httpTransport "lessonbook/backend/internal/transport/http"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "lessonbook-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "lessonbook-server"),
	)
	slog.SetDefault(log)

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		log.Error("invalid time zone", slog.String("time_zone", cfg.TimeZone), slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr()),
		slog.String("time_zone", cfg.TimeZone),
		slog.String("log_level", cfg.LogLevel),
	)

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	notifier, err := feed.Connect(cfg.NATSURL, log)
	if err != nil {
		log.Error("nats connection failed", slog.Any("err", err), slog.String("nats_url", cfg.NATSURL))
		os.Exit(1)
	}
	defer notifier.Close()

	settingsRepo := postgres.NewSettingsRepo(db, notifier, log)
	bookingRepo := postgres.NewBookingRepo(db, notifier, log)

	appState := state.NewAppState()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	unsubSettings, err := settingsRepo.Subscribe(ctx, appState.ApplyConfigSnapshot)
	if err != nil {
		log.Error("settings subscribe failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer unsubSettings()

	unsubBookings, err := bookingRepo.Subscribe(ctx, appState.ApplyBookingsSnapshot)
	if err != nil {
		log.Error("bookings subscribe failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer unsubBookings()

	schedulingSvc := scheduling.NewService(appState, loc)
	settingsSvc := settings.NewService(settingsRepo)

	if cfg.CalendarBridgeURL != "" && cfg.BusyImportInterval > 0 {
		importer := calendar.NewImporter(appState, calendar.NewHTTPSource(cfg.CalendarBridgeURL), bookingRepo, loc, log)
		go importer.Run(ctx, cfg.BusyImportInterval)
		log.Info("busy calendar import enabled",
			slog.String("bridge_url", cfg.CalendarBridgeURL),
			slog.Duration("interval", cfg.BusyImportInterval),
		)
	}

	app := fiber.New()
	httpTransport.NewServer(schedulingSvc, settingsSvc, bookingRepo, appState, loc, log).Register(app)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.HTTPAddr())
	}()

	log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr()))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, app, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func shutdown(log *slog.Logger, app *fiber.App, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))
	if err := app.ShutdownWithTimeout(timeout); err != nil {
		log.Warn("http shutdown failed", slog.Any("err", err))
		return
	}
	log.Info("http server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
