package chats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	apperrors "github.com/Proton-105/stepbot/internal/errors"
	"github.com/Proton-105/stepbot/internal/platform"
)

// Lookup is the subset of platform.API used to probe chats.
type Lookup interface {
	GetChat(ctx context.Context, chatID int64) (*platform.Chat, error)
	GetMember(ctx context.Context, chatID, userID int64) (*platform.ChatMember, error)
}

// Eligible is a chat where both the user and the bot are administrators.
type Eligible struct {
	Chat platform.Chat
	// BotPermissions are the admin permissions granted to the bot.
	BotPermissions []string
}

// Name is the chat title, or its id when the title is unknown.
func (e Eligible) Name() string {
	if strings.TrimSpace(e.Chat.Title) != "" {
		return e.Chat.Title
	}
	return fmt.Sprintf("%d", e.Chat.ChatID)
}

// Discovery probes known chats through the platform.
type Discovery struct {
	repo   Repository
	lookup Lookup
	botID  func() int64
	log    *slog.Logger
	now    func() time.Time
}

func NewDiscovery(repo Repository, lookup Lookup, botID func() int64, log *slog.Logger) *Discovery {
	if log == nil {
		log = slog.Default()
	}
	return &Discovery{repo: repo, lookup: lookup, botID: botID, log: log, now: time.Now}
}

// AdminChats lists chats where userID and the bot are both administrators, sorted by name.
// Chats the bot cannot see are skipped and deactivated. Transient failures skip the chat.
// A fatal failure stops the walk.
func (d *Discovery) AdminChats(ctx context.Context, userID int64) ([]Eligible, error) {
	var known []Record
	err := apperrors.WithRetry(ctx, func() error {
		var err error
		if known, err = d.repo.Active(ctx); err != nil {
			return apperrors.NewStorageError("list bot chats", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []Eligible
	for _, rec := range known {
		e, outcome, err := d.probe(ctx, rec, userID)
		switch outcome {
		case apperrors.OK:
			out = append(out, e)
		case apperrors.NotEligible:
			d.log.Debug("chat not eligible", slog.Int64("chat_id", rec.ChatID), slog.Any("error", err))
		case apperrors.TransientFailure:
			d.log.Warn("chat probe failed", slog.Int64("chat_id", rec.ChatID), slog.Any("error", err))
		default:
			return out, apperrors.NewPlatformError("probe chat", err)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name()) < strings.ToLower(out[j].Name())
	})
	return out, nil
}

// errNotAdmin marks a member that exists but has no admin rights.
var errNotAdmin = errors.New("not an administrator")

func (d *Discovery) probe(ctx context.Context, rec Record, userID int64) (Eligible, apperrors.Outcome, error) {
	bot, err := d.lookup.GetMember(ctx, rec.ChatID, d.botID())
	if err != nil {
		outcome := apperrors.Classify(err)
		if outcome == apperrors.NotEligible {
			if derr := d.repo.Deactivate(ctx, rec.ChatID, d.now().Unix()); derr != nil {
				d.log.Warn("deactivate lost chat failed", slog.Int64("chat_id", rec.ChatID), slog.Any("error", derr))
			}
		}
		return Eligible{}, outcome, err
	}
	if !bot.IsAdmin && !bot.IsOwner {
		return Eligible{}, apperrors.NotEligible, errNotAdmin
	}

	user, err := d.lookup.GetMember(ctx, rec.ChatID, userID)
	if err != nil {
		return Eligible{}, apperrors.Classify(err), err
	}
	if !user.IsAdmin && !user.IsOwner {
		return Eligible{}, apperrors.NotEligible, errNotAdmin
	}

	chat, err := d.lookup.GetChat(ctx, rec.ChatID)
	if err != nil {
		outcome := apperrors.Classify(err)
		if outcome != apperrors.TransientFailure {
			return Eligible{}, outcome, err
		}
		chat = &platform.Chat{ChatID: rec.ChatID, Type: rec.ChatType, Title: rec.Title}
	}

	return Eligible{Chat: *chat, BotPermissions: bot.Permissions}, apperrors.OK, nil
}
