package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/martout2002/JBbot/internal/app"
	"github.com/martout2002/JBbot/internal/config"
	"github.com/martout2002/JBbot/internal/handler"
	"github.com/martout2002/JBbot/internal/middleware"
	"github.com/martout2002/JBbot/internal/telegram"
)

func main() {
	slog.SetDefault(app.NewLogger(slog.LevelInfo))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(app.NewLogger(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := telegram.RegisterWebhook(a.BotAPI, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
		slog.Error("failed to configure telegram webhook", "url", cfg.WebhookURL, "error", err)
		os.Exit(1)
	}
	if cfg.WebhookURL == "" {
		go a.Bot.Poll(ctx, a.BotAPI)
	} else {
		slog.Info("telegram webhook registered", "url", cfg.WebhookURL)
	}

	// Handlers
	trafficHandler := handler.NewTrafficHandler(a.Monitor, a.States)
	monHandler := handler.NewMonitorHandler(a.Monitor, a.Subscribers)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recovery)

	r.Get("/healthz", handler.Healthz(a.Pool))
	r.Handle("/webhook", telegram.NewWebhook(a.Bot, cfg.WebhookSecret))
	r.Route("/api/v1", func(r chi.Router) {
		trafficHandler.RegisterRoutes(r)
		monHandler.RegisterRoutes(r)
	})

	if cfg.AutostartMonitor {
		if err := a.Monitor.Start(ctx); err != nil {
			slog.Error("failed to start monitor", "error", err)
			os.Exit(1)
		}
	}

	// Server with graceful shutdown. Write timeout leaves room for /check,
	// which runs a full poll cycle.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.ServerPort, "checkpoints", len(cfg.Checkpoints))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Give in-flight requests time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
