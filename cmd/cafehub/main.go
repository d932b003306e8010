package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cafehub/internal/auth"
	"cafehub/internal/cafe"
	"cafehub/internal/config"
	"cafehub/internal/db"
	"cafehub/internal/events"
	"cafehub/internal/handler"
	"cafehub/internal/menu"
	"cafehub/internal/order"
	"cafehub/internal/payment"
	"cafehub/internal/user"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "cafehub").Logger()

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.App.Env == "production" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "cafehub").Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	postgres, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer postgres.Close()

	// Event publishing is optional; without a broker URL status changes are
	// only visible through the API.
	var publisher order.Publisher
	if cfg.AMQP.URL != "" {
		p, err := events.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer p.Close()
		publisher = p
	} else {
		log.Warn().Msg("AMQP_URL not set, status change events disabled")
	}

	tokens := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	userRepo := user.NewRepository(postgres.Pool)
	cafeRepo := cafe.NewRepository(postgres.Pool)
	menuRepo := menu.NewRepository(postgres.Pool)
	orderRepo := order.NewRepository(postgres.Pool)
	paymentRepo := payment.NewRepository(postgres.Pool)

	userService := user.NewService(userRepo)
	cafeService := cafe.NewService(cafeRepo)
	menuService := menu.NewService(menuRepo, cafeService)
	orderService := order.NewService(orderRepo, menuService, cafeService, publisher)
	paymentService := payment.NewService(paymentRepo, orderService, orderRepo)

	router := handler.NewRouter(handler.Handlers{
		Auth:    handler.NewAuthHandler(userService, tokens),
		Cafe:    handler.NewCafeHandler(cafeService),
		Menu:    handler.NewMenuHandler(menuService),
		Order:   handler.NewOrderHandler(orderService),
		Payment: handler.NewPaymentHandler(paymentService, orderService, cfg.Payments.WebhookSecret),
		Tokens:  tokens,
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
