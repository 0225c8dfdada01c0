package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/coindash/internal/alert"
	"github.com/dgnsrekt/coindash/internal/api"
	"github.com/dgnsrekt/coindash/internal/backend"
	"github.com/dgnsrekt/coindash/internal/cache"
	"github.com/dgnsrekt/coindash/internal/chart"
	"github.com/dgnsrekt/coindash/internal/config"
	"github.com/dgnsrekt/coindash/internal/dashboard"
	"github.com/dgnsrekt/coindash/internal/history"
	"github.com/dgnsrekt/coindash/internal/netutil"
	"github.com/dgnsrekt/coindash/internal/notify"
	"github.com/dgnsrekt/coindash/internal/poller"
	"github.com/dgnsrekt/coindash/internal/snapshot"
	"github.com/dgnsrekt/coindash/internal/storage"
	"github.com/dgnsrekt/coindash/internal/stream"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load dashboard config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("dashboard config loaded",
		"backend_url", cfg.BackendURL,
		"market_api_url", cfg.MarketAPIURL,
		"poll_interval", cfg.PollInterval,
		"http_timeout", cfg.HTTPTimeout,
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"candlestick", cfg.EnableCandlestick,
		"snapshot_dir", cfg.SnapshotDir,
		"journal_dir", cfg.JournalDir,
		"alert_db", cfg.AlertDB,
	)

	catalog := config.DefaultCatalog()
	if cfg.CoinsFile != "" {
		catalog, err = config.LoadCatalog(cfg.CoinsFile)
		if err != nil {
			slog.Error("failed to load coin catalog", "path", cfg.CoinsFile, "error", err)
			os.Exit(1)
		}
	}

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	client := backend.NewClient(cfg.BackendURL, cfg.MarketAPIURL, &http.Client{Timeout: cfg.HTTPTimeout})

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Debug("shutdown close failed", "error", err)
			}
		}
	}()

	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(context.Background(), cfg.RedisAddr, cfg.RedisTTL)
		if err != nil {
			slog.Warn("history cache disabled", "redis_addr", cfg.RedisAddr, "error", err)
		} else {
			client.SetCache(rc)
			closers = append(closers, rc.Close)
		}
	}

	notifiers := notify.Multi{notify.Log{Logger: slog.Default()}}
	if cfg.NTFYEndpoint != "" {
		notifiers = append(notifiers, notify.NTFY{Client: &http.Client{Timeout: cfg.HTTPTimeout}, Endpoint: cfg.NTFYEndpoint})
	}
	if cfg.KafkaBrokers != "" {
		k := notify.Kafka{Writer: notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)}
		notifiers = append(notifiers, k)
		closers = append(closers, k.Close)
	}

	var fires dashboard.FireLister
	alertLog, err := storage.OpenAlertLog(cfg.AlertDB)
	if err != nil {
		slog.Warn("alert log disabled", "path", cfg.AlertDB, "error", err)
	} else {
		notifiers = append(notifiers, alertLog)
		fires = alertLog
		closers = append(closers, alertLog.Close)
	}

	journal := storage.NewQuoteJournal(cfg.JournalDir)
	closers = append(closers, journal.Close)

	broker := stream.NewBroker()
	opts := dashboard.Options{
		Loader:      history.NewLoader(client, cfg.EnableCandlestick),
		Charts:      chart.NewController(&chart.Canvas{}),
		Alerts:      alert.NewSubmitter(client),
		Broker:      broker,
		Catalog:     catalog,
		Notifier:    notifiers,
		Fires:       fires,
		Capturer:    snapshot.NewRenderer(cfg.CDPURL, cfg.CaptureTimeout),
		Candlestick: cfg.EnableCandlestick,
		SoundURL:    cfg.SoundURL,
	}
	if snapStore, err := snapshot.NewStore(cfg.SnapshotDir); err != nil {
		slog.Warn("snapshot store disabled", "dir", cfg.SnapshotDir, "error", err)
	} else {
		opts.Snapshots = snapStore
	}

	svc := dashboard.NewService(opts)
	svc.SetPageURL("http://" + bindAddr)

	p := poller.New(client, svc, poller.Options{
		Interval:     cfg.PollInterval,
		DisplayCoins: catalog.Required(),
		AlertCoin:    cfg.AlertCoin,
		SoundURL:     cfg.SoundURL,
		Recorder:     journal,
	})

	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(svc, broker)}

	go func() {
		slog.Info("dashboard listening", "addr", bindAddr, "page", "http://"+bindAddr+"/", "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("dashboard server failed", "error", err)
			os.Exit(1)
		}
	}()

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	p.Start(runCtx)
	go func() {
		if _, err := svc.SelectCoin(runCtx, cfg.DefaultCoin); err != nil {
			slog.Warn("initial chart load failed", "coin", cfg.DefaultCoin, "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	p.Stop()
	stopRun()
	svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("dashboard shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
