package main

import (
	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/alerts"
	"github.com/sudo-init-do/swapmeet/internal/config"
	"github.com/sudo-init-do/swapmeet/internal/logger"
)

// worker drains the push queue filled by the server's push sink and hands
// every task to the configured webhook.
func main() {
	logger.Setup("info", true)

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(cfg.LogLevel, !cfg.Production())

	if cfg.RedisAddr == "" {
		log.Fatal().Msg("REDIS_ADDR is required for the push worker")
	}
	if cfg.PushWebhookURL == "" {
		log.Fatal().Msg("PUSH_WEBHOOK_URL is required for the push worker")
	}

	w := alerts.NewWorker(cfg.RedisAddr, 5, alerts.NewWebhookPusher(cfg.PushWebhookURL, cfg.PushWebhookToken))

	// Run traps SIGINT/SIGTERM and drains in-flight tasks before returning.
	if err := w.Run(); err != nil {
		log.Fatal().Err(err).Msg("push worker stopped")
	}
	log.Info().Msg("push worker exited")
}
