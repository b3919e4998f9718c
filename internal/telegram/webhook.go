package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type updateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// secretHeader carries the token given to setWebhook on every delivery.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Webhook receives updates pushed by Telegram. The update is acknowledged
// before the command runs so slow commands do not trigger redelivery.
type Webhook struct {
	bot    updateHandler
	secret string
}

// NewWebhook returns a handler for pushed updates. When secret is set, POSTs
// without the matching secret token header are rejected.
func NewWebhook(bot updateHandler, secret string) *Webhook {
	return &Webhook{bot: bot, secret: secret}
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("Webhook is active!"))
	case http.MethodPost:
		if !h.authorized(r) {
			slog.Warn("webhook request with invalid secret token", "remote_addr", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

		var upd tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			slog.Warn("invalid webhook payload", "error", err)
			http.Error(w, "invalid update", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("OK"))

		ctx := context.WithoutCancel(r.Context())
		go h.bot.HandleUpdate(ctx, upd)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Webhook) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get(secretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

// RegisterWebhook points Telegram at url, or removes the webhook when url is
// empty so long polling can be used. A non-empty secret is sent back by
// Telegram in the secret token header of every delivery.
func RegisterWebhook(api *tgbotapi.BotAPI, url, secret string) error {
	if url == "" {
		_, err := api.Request(tgbotapi.DeleteWebhookConfig{})
		return err
	}
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	_, err := api.MakeRequest("setWebhook", params)
	return err
}
