package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"feed_screener/internal/api"
	"feed_screener/internal/config"
	"feed_screener/internal/download"
	"feed_screener/internal/engine"
	"feed_screener/internal/fetcher"
	"feed_screener/internal/notify"
	"feed_screener/internal/scheduler"
	"feed_screener/internal/scrape"
	"feed_screener/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}
	if err := os.MkdirAll(cfg.DownloadDir, 0o750); err != nil {
		log.Error("create download directory", "path", cfg.DownloadDir, "error", err)
		os.Exit(1)
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	dl, err := download.NewClient(cfg.DownloadDir, cfg.MetadataTimeout, log)
	if err != nil {
		log.Error("start torrent client", "error", err)
		os.Exit(1)
	}
	defer func() { _ = dl.Close() }()

	var sinks []notify.Sink
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID, log)
		if err != nil {
			log.Error("create telegram notifier", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, tg)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	eng := engine.New(engine.Options{
		Fetcher:     fetcher.New(httpClient),
		Scraper:     scrape.New(httpClient),
		Downloader:  dl,
		Notifier:    notify.NewBus(sinks...),
		Store:       store,
		Logger:      log,
		DownloadDir: cfg.DownloadDir,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := eng.LoadState(ctx); err != nil {
		log.Error("load state", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(eng, time.Duration(cfg.CheckIntervalMinutes)*time.Minute, log)
	go sched.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(eng, log).Router(),
	}
	go func() {
		log.Info("http server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "error", err)
	}
	if err := eng.SaveState(shutdownCtx); err != nil {
		log.Error("final state save", "error", err)
	}

	log.Info("screener stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
