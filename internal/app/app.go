// Package app assembles the traffic monitor from configuration. It is shared
// by the long-running server and the serverless entry point.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/martout2002/JBbot/internal/config"
	"github.com/martout2002/JBbot/internal/database"
	"github.com/martout2002/JBbot/internal/repository"
	"github.com/martout2002/JBbot/internal/service/camera"
	"github.com/martout2002/JBbot/internal/service/monitor"
	"github.com/martout2002/JBbot/internal/service/notifier"
	"github.com/martout2002/JBbot/internal/service/ocr"
	"github.com/martout2002/JBbot/internal/service/ocr/tesseract"
	"github.com/martout2002/JBbot/internal/service/publisher"
	"github.com/martout2002/JBbot/internal/telegram"
)

const mqttConnectTimeout = 10 * time.Second

type App struct {
	Config      *config.Config
	Pool        *pgxpool.Pool
	States      *repository.CheckpointRepository
	Subscribers *repository.SubscriberRepository
	BotAPI      *tgbotapi.BotAPI
	Bot         *telegram.Bot
	Monitor     *monitor.Monitor

	ocrEngine  *tesseract.Engine
	mqttClient mqtt.Client
}

// New connects to the database and Telegram, applies migrations and builds
// the monitor. Close releases everything New acquired.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Pool, err = database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}
	if err = database.Migrate(ctx, a.Pool); err != nil {
		return nil, fmt.Errorf("migration: %w", err)
	}

	a.States = repository.NewCheckpointRepository(a.Pool)
	a.Subscribers = repository.NewSubscriberRepository(a.Pool)

	a.BotAPI, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	slog.Info("telegram bot authorized", "bot", a.BotAPI.Self.UserName)

	a.ocrEngine, err = tesseract.New("eng")
	if err != nil {
		return nil, fmt.Errorf("ocr engine: %w", err)
	}

	sender := telegram.NewSender(a.BotAPI)
	a.Monitor = monitor.New(
		cfg.Checkpoints,
		camera.NewClient(cfg.FetchTimeout),
		ocr.NewExtractor(a.ocrEngine),
		a.States,
		notifier.New(sender, a.Subscribers, cfg.NotifyConcurrency),
		cfg.PollInterval,
	)

	if cfg.MQTTBroker != "" {
		a.connectEvents(ctx)
	}

	names := make([]string, len(cfg.Checkpoints))
	for i, cp := range cfg.Checkpoints {
		names[i] = cp.Name
	}
	a.Bot = telegram.NewBot(sender, a.Subscribers, a.Monitor, names)

	return a, nil
}

// connectEvents attaches the MQTT change-event sink. Events are optional, so
// a broker failure only disables them.
func (a *App) connectEvents(ctx context.Context) {
	cfg := a.Config
	ctx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	defer cancel()

	pub, client, err := publisher.Connect(ctx, cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopic)
	if err != nil {
		slog.Warn("mqtt unavailable, change events disabled", "broker", cfg.MQTTBroker, "error", err)
		return
	}
	a.mqttClient = client
	a.Monitor.WithEvents(pub)
	slog.Info("publishing change events", "broker", cfg.MQTTBroker, "topic", cfg.MQTTTopic)
}

// Close stops the monitor and releases connections. Safe on a partially
// built App.
func (a *App) Close() {
	if a.Monitor != nil && a.Monitor.IsRunning() {
		a.Monitor.Stop(context.Background())
	}
	if a.mqttClient != nil {
		a.mqttClient.Disconnect(250)
	}
	if a.ocrEngine != nil {
		a.ocrEngine.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// NewLogger returns the JSON logger used by every entry point.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
