package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/dispatch"
	"github.com/matthewshammond/MailBridge/internal/notify"
	"github.com/matthewshammond/MailBridge/internal/poller"
	"github.com/matthewshammond/MailBridge/internal/resolve"
	"github.com/matthewshammond/MailBridge/internal/store"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Global.LogLevel); err == nil {
		log.SetLevel(level)
	}

	kv, err := store.NewRedis(cfg.Global.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	stats := store.NewStats(kv)
	notifier := notify.New(cfg.Global.Pushover, log)
	modes := dispatch.NewModeSource(kv, cfg.Global.Mode)

	dispatcher := dispatch.New(
		dispatch.NewSMTPSender(cfg.Global.SMTP, cfg.Global.IMAP),
		dispatch.NewPostmarkSender(cfg.Global.Postmark),
		modes, stats, notifier, log,
	)

	worker := poller.New(cfg, resolve.New(cfg), dispatcher, modes, log)

	ctx, cancel := context.WithCancel(context.Background())
	go worker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down responder...")

	cancel()
	dispatcher.Drain()
}
