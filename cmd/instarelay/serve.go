package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"instarelay/internal/alerts"
	"instarelay/internal/assistant"
	"instarelay/internal/config"
	"instarelay/internal/domain"
	"instarelay/internal/history"
	"instarelay/internal/messenger"
	"instarelay/internal/relay"
	"instarelay/internal/webhook"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook relay server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	// Graceful shutdown on signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend := assistant.New(assistant.Config{
		APIKey:  cfg.Assistant.APIKey,
		APIBase: cfg.Assistant.APIBase,
		Logger:  log,
	})

	sender := messenger.New(messenger.Config{
		APIBase:     cfg.Platform.APIBase,
		PageID:      cfg.Platform.PageID,
		AccessToken: cfg.Platform.AccessToken,
		Logger:      log,
	})

	var store domain.HistoryStore
	if cfg.History.Enabled {
		sqlStore, err := history.NewSQLiteStore(cfg.History.DBPath, log)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		store = sqlStore

		cutoff := time.Now().AddDate(0, 0, -cfg.History.RetentionDays)
		if _, err := sqlStore.Prune(ctx, cutoff); err != nil {
			log.Warn("history prune failed", "err", err)
		}
	}

	var notifier domain.Notifier
	if cfg.Alerts.Telegram.Enabled {
		tg, err := alerts.NewTelegram(cfg.Alerts.Telegram.Token, cfg.Alerts.Telegram.ChatID, log)
		if err != nil {
			log.Warn("telegram alerts unavailable", "err", err)
		} else {
			notifier = tg
		}
	}

	rel := relay.New(relay.Config{
		Backend:      backend,
		Dispatcher:   relay.NewDispatcher(sender, cfg.Relay.ChunkSize, log),
		AssistantID:  cfg.Assistant.AssistantID,
		PollInterval: time.Duration(cfg.Relay.PollIntervalMs) * time.Millisecond,
		RunTimeout:   time.Duration(cfg.Relay.RunTimeoutSeconds) * time.Second,
		History:      store,
		Logger:       log,
	})

	metricsEndpoint := ""
	if cfg.Metrics.Enabled {
		metricsEndpoint = cfg.Metrics.Endpoint
	}

	server := webhook.NewServer(webhook.Config{
		Host:            cfg.Webhook.Host,
		Port:            cfg.Webhook.Port,
		Path:            cfg.Webhook.Path,
		VerifyToken:     cfg.Webhook.VerifyToken,
		AppSecret:       cfg.Webhook.AppSecret,
		MetricsEndpoint: metricsEndpoint,
		Notifier:        notifier,
		Logger:          log,
	}, rel)

	log.Info("instarelay starting", "version", version)
	return server.Start(ctx)
}
