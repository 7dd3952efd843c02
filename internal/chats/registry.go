package chats

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/view"
)

// Registry keeps the bot_chat table in sync with membership updates.
type Registry struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewRegistry(repo Repository, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{repo: repo, log: log, now: time.Now}
}

// Track records what v tells about the chat. It is registered as a hook for
// BotAdded, BotRemoved, ChatTitleChanged and MessageCreated updates.
func (r *Registry) Track(ctx context.Context, v *view.View) {
	if v == nil || v.ChatID == 0 {
		return
	}
	at := r.now().Unix()

	var err error
	switch u := v.Update.(type) {
	case *platform.BotAdded:
		err = r.repo.Upsert(ctx, Record{ChatID: v.ChatID, ChatType: v.ChatType, UpdatedAt: at})
	case *platform.BotRemoved:
		err = r.repo.Deactivate(ctx, v.ChatID, at)
	case *platform.ChatTitleChanged:
		err = r.repo.Upsert(ctx, Record{ChatID: v.ChatID, ChatType: v.ChatType, Title: u.Title, UpdatedAt: at})
	case *platform.MessageCreated:
		if v.ChatType == platform.ChatDialog || v.ChatType == "" {
			return
		}
		err = r.repo.Upsert(ctx, Record{ChatID: v.ChatID, ChatType: v.ChatType, UpdatedAt: at})
	default:
		return
	}

	if err != nil {
		r.log.Warn("track bot chat failed", slog.Int64("chat_id", v.ChatID), slog.String("update_type", string(v.Type)), slog.Any("error", err))
	}
}
