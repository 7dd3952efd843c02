package transport

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stepbot/internal/idempotency"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/workerpool"
	"github.com/Proton-105/stepbot/pkg/metrics"
)

const (
	// SecretHeader carries the secret registered with setWebhook.
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	maxBodyBytes   = 1 << 20
	idempotencyTTL = 24 * time.Hour
)

// Webhook receives one update per request.
type Webhook struct {
	conv   Converter
	sink   Submitter
	guard  idempotency.Guard
	secret string
	log    *slog.Logger
}

// NewWebhook creates the webhook handlers. guard may be nil, then redelivered updates run again.
func NewWebhook(conv Converter, sink Submitter, guard idempotency.Guard, secret string, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{conv: conv, sink: sink, guard: guard, secret: secret, log: log}
}

// Telegram accepts a Bot API update. It answers 200 for every well-formed update, handled or not,
// so Telegram never redelivers an update the bot already answered with an error notice.
func (h *Webhook) Telegram(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var raw telebot.Update
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&raw); err != nil {
		metrics.RecordInbound("webhook", "malformed")
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if !h.firstSeen(ctx, idempotency.Key("tg", raw.ID)) {
		metrics.RecordInbound("webhook", "duplicate")
		w.WriteHeader(http.StatusOK)
		return
	}

	converted := h.conv.Convert(ctx, &raw)
	if len(converted) == 0 {
		metrics.RecordInbound("webhook", "skipped")
	}
	for _, u := range converted {
		h.submit(ctx, u)
	}
	w.WriteHeader(http.StatusOK)
}

// Updates accepts one update in the platform-neutral JSON form, discriminated by update_type.
func (h *Webhook) Updates(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	u, err := platform.UnmarshalUpdate(body)
	if err != nil {
		metrics.RecordInbound("webhook", "malformed")
		h.log.WarnContext(r.Context(), "rejected update body", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.submit(r.Context(), u)
	w.WriteHeader(http.StatusOK)
}

func (h *Webhook) submit(ctx context.Context, u platform.Update) {
	err := h.sink.Submit(ctx, u)
	switch {
	case err == nil:
		metrics.RecordInbound("webhook", "submitted")
	case errors.Is(err, workerpool.ErrPoolFull):
		metrics.RecordInbound("webhook", "rejected")
	default:
		metrics.RecordInbound("webhook", "error")
		h.log.ErrorContext(ctx, "submit update failed", slog.String("update_type", string(u.Type())), slog.Any("error", err))
	}
}

func (h *Webhook) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

// firstSeen fails open: when the guard is unavailable the update is processed.
func (h *Webhook) firstSeen(ctx context.Context, key string) bool {
	if h.guard == nil {
		return true
	}
	first, err := h.guard.FirstSeen(ctx, key, idempotencyTTL)
	if err != nil {
		h.log.WarnContext(ctx, "idempotency check failed", slog.String("key", key), slog.Any("error", err))
		return true
	}
	return first
}
