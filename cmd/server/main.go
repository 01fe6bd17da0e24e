package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/admin"
	"github.com/sudo-init-do/swapmeet/internal/alerts"
	"github.com/sudo-init-do/swapmeet/internal/config"
	"github.com/sudo-init-do/swapmeet/internal/domain"
	"github.com/sudo-init-do/swapmeet/internal/eventbus"
	"github.com/sudo-init-do/swapmeet/internal/fanout"
	"github.com/sudo-init-do/swapmeet/internal/logger"
	"github.com/sudo-init-do/swapmeet/internal/marketplace"
	"github.com/sudo-init-do/swapmeet/internal/messaging"
	"github.com/sudo-init-do/swapmeet/internal/notifications"
	"github.com/sudo-init-do/swapmeet/internal/server"
	"github.com/sudo-init-do/swapmeet/internal/store"
)

func main() {
	logger.Setup("info", true)

	// Load configuration
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Setup(cfg.LogLevel, !cfg.Production())
	log.Info().Str("app", cfg.AppName).Str("env", cfg.AppEnv).Str("db", cfg.DBDriver).Msg("application starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection
	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	// Delivery sinks; everything but the websocket hub is optional
	realtime := messaging.NewRealtimeHub()
	sinks := []domain.Sink{realtime}
	if cfg.RedisAddr != "" {
		client := alerts.NewClient(cfg.RedisAddr)
		defer client.Close()
		sinks = append(sinks, alerts.NewSink(client))
		log.Info().Str("redis", cfg.RedisAddr).Msg("push queue enabled")
	}
	if cfg.RabbitMQURL != "" {
		bus, err := eventbus.NewPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize RabbitMQ publisher")
		}
		defer bus.Close()
		sinks = append(sinks, bus)
	}

	dispatcher := fanout.New(fanout.Options{
		Buffer:  cfg.FanoutBuffer,
		Workers: cfg.FanoutWorkers,
	}, sinks...)
	dispatcher.Start(ctx)

	hub := notifications.NewHub(st, dispatcher)
	engine := marketplace.NewEngine(st, hub, dispatcher)
	reports := marketplace.NewReports(st)

	e := server.New(server.Deps{
		AppName:       cfg.AppName,
		JWTSecret:     cfg.JWTSecret,
		CORSOrigins:   cfg.Origins(),
		RateLimitRPS:  cfg.RateLimitRPS,
		Store:         st,
		Marketplace:   marketplace.NewHandler(engine, reports),
		Messaging:     messaging.NewHandler(messaging.NewDirectory(st), messaging.NewLedger(st, hub, dispatcher)),
		Notifications: notifications.NewHandler(hub),
		Admin:         admin.NewHandler(st, reports),
		Realtime:      realtime,
	})

	// Start server
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// drain pending deliveries before the sinks close
	dispatcher.Close()
	cancel()
}
