package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matthewshammond/MailBridge/internal/abuse"
	"github.com/matthewshammond/MailBridge/internal/admin"
	"github.com/matthewshammond/MailBridge/internal/api"
	"github.com/matthewshammond/MailBridge/internal/captcha"
	"github.com/matthewshammond/MailBridge/internal/config"
	"github.com/matthewshammond/MailBridge/internal/dispatch"
	"github.com/matthewshammond/MailBridge/internal/notify"
	"github.com/matthewshammond/MailBridge/internal/ratelimit"
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

	for _, responder := range cfg.Responders {
		for _, prefix := range responder.ShadowedPrefixes() {
			log.WithFields(logrus.Fields{"alias": responder.Alias, "prefix": prefix}).
				Warn("reply prefix is shadowed by an earlier entry and can never match")
		}
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

	tracker := abuse.NewTracker(kv, time.Duration(cfg.Global.ProfileTTLHours)*time.Hour, log)
	limiter := ratelimit.New(kv, cfg.Global.RateLimitPerMin)

	var adminHandler *admin.Handler
	if cfg.Global.Admin.Password != "" {
		adminHandler, err = admin.NewHandler(cfg, kv, stats, log)
		if err != nil {
			log.Fatalf("Failed to set up admin auth: %v", err)
		}
	}

	handler := api.New(cfg, resolve.New(cfg), tracker, limiter, captcha.New(), dispatcher, modes, stats, notifier, adminHandler, log)

	srv := &http.Server{
		Addr:    cfg.Global.HTTPAddr,
		Handler: handler.Router(),
	}

	go func() {
		log.Infof("API server starting on %s", cfg.Global.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// Flush any queued sends before exit.
	dispatcher.Drain()
	log.Info("Server exiting")
}
