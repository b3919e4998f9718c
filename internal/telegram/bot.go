package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/martout2002/JBbot/internal/model"
)

const helpText = "Available commands:\n" +
	"/start - Welcome message\n" +
	"/help - Show this help message\n" +
	"/check - Get current traffic status\n" +
	"/subscribe - Receive notifications when traffic changes\n" +
	"/unsubscribe - Stop receiving notifications"

const (
	subscribedText      = "You have subscribed to traffic change notifications."
	unsubscribedText    = "You have unsubscribed from notifications."
	subscribeFailedText = "Sorry, something went wrong. Please try again later."
)

// commandTimeout bounds the work done for a single chat command.
const commandTimeout = 2 * time.Minute

type messageSender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type subscriberRegistry interface {
	Add(ctx context.Context, userID int64) error
	Remove(ctx context.Context, userID int64) error
}

type trafficChecker interface {
	Check(ctx context.Context) []model.CheckpointResult
}

// Bot answers chat commands.
type Bot struct {
	sender      messageSender
	subscribers subscriberRegistry
	checker     trafficChecker
	welcome     string
}

func NewBot(sender messageSender, subscribers subscriberRegistry, checker trafficChecker, checkpoints []string) *Bot {
	return &Bot{
		sender:      sender,
		subscribers: subscribers,
		checker:     checker,
		welcome:     welcomeText(checkpoints),
	}
}

func welcomeText(checkpoints []string) string {
	where := "the monitored"
	switch n := len(checkpoints); {
	case n == 1:
		where = checkpoints[0]
	case n > 1:
		where = strings.Join(checkpoints[:n-1], ", ") + " or " + checkpoints[n-1]
	}
	return "Welcome to SG-JB Traffic Bot!\n" +
		"I'll notify you when traffic conditions change at " + where + " checkpoints.\n" +
		"Type /help to see all available commands."
}

// HandleUpdate dispatches a command message. Other updates are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}

	chatID := msg.Chat.ID
	userID := chatID
	if msg.From != nil {
		userID = msg.From.ID
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	logger := slog.With("command", msg.Command(), "chat_id", chatID)
	logger.Info("command received")

	var reply string
	switch msg.Command() {
	case "start":
		reply = b.welcome
	case "help":
		reply = helpText
	case "check":
		reply = b.checkReply(ctx)
	case "subscribe":
		reply = subscribedText
		if err := b.subscribers.Add(ctx, userID); err != nil {
			logger.Error("failed to add subscriber", "user_id", userID, "error", err)
			reply = subscribeFailedText
		}
	case "unsubscribe":
		reply = unsubscribedText
		if err := b.subscribers.Remove(ctx, userID); err != nil {
			logger.Error("failed to remove subscriber", "user_id", userID, "error", err)
			reply = subscribeFailedText
		}
	default:
		reply = helpText
	}

	if err := b.sender.Send(ctx, chatID, reply); err != nil {
		logger.Error("failed to reply", "error", err)
	}
}

func (b *Bot) checkReply(ctx context.Context) string {
	results := b.checker.Check(ctx)
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if r.Error != "" {
			lines = append(lines, fmt.Sprintf("Could not retrieve %s data", r.Checkpoint))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s checkpoint: %s", r.Checkpoint, r.Current))
	}
	if len(lines) == 0 {
		return "No checkpoints configured."
	}
	return strings.Join(lines, "\n")
}

// Poll receives updates by long polling until ctx is canceled. Commands are
// handled concurrently.
func (b *Bot) Poll(ctx context.Context, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	slog.Info("telegram long polling started", "bot", api.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			slog.Info("telegram long polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			go b.HandleUpdate(ctx, upd)
		}
	}
}
