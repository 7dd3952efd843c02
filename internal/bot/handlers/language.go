package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Proton-105/stepbot/internal/bot/keyboard"
	"github.com/Proton-105/stepbot/internal/locale"
	"github.com/Proton-105/stepbot/internal/paramcodec"
	"github.com/Proton-105/stepbot/internal/platform"
)

// Locales is the subset of locale.Service the language command needs.
type Locales interface {
	Languages() []locale.Language
	Set(ctx context.Context, userID int64, code string) (locale.Language, bool, error)
}

// NewSetLanguageHandler returns the set_language command. Without a lang argument it shows the
// language picker, with one it stores the choice and confirms in the new language.
func NewSetLanguageHandler(sender Sender, locales Locales, translators Translators, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx context.Context, req *Request) (Result, error) {
		v := req.View
		if v.ChatType != platform.ChatDialog || v.ChatID == 0 {
			return Unhandled, nil
		}
		languages := locales.Languages()
		if len(languages) <= 1 {
			return Unhandled, nil
		}
		if v.IsReply {
			return Done, nil
		}

		code, ok := v.Args.String("lang")
		if !ok || code == "" {
			buttons := make([]platform.Button, 0, len(languages))
			for _, l := range languages {
				buttons = append(buttons, keyboard.Command(req.Bot, l.Name, SetLanguageCommand, paramcodec.Args{"lang": l.Code}, platform.IntentDefault))
			}
			msg := platform.NewMessage{Text: req.T.T("language.prompt"), Link: v.Link, Keyboard: keyboard.Layout(keyboard.Vertical, buttons...)}
			if _, err := sender.Send(ctx, v.Target(), msg); err != nil {
				return Done, fmt.Errorf("send language picker: %w", err)
			}
			return Done, nil
		}

		l, supported, err := locales.Set(ctx, v.UserID, code)
		if err != nil {
			return Done, err
		}
		if !supported {
			log.Debug("unsupported language requested", slog.Int64("user_id", v.UserID), slog.String("lang", code))
			to, msg := req.Reply(req.T.Tf("language.unsupported", code))
			if _, err := sender.Send(ctx, to, msg); err != nil {
				return Done, fmt.Errorf("send unsupported language: %w", err)
			}
			return Done, nil
		}

		t := translators.Translator(l.Code)
		to, msg := req.Reply(t.Tf("language.set", l.Name))
		if _, err := sender.Send(ctx, to, msg); err != nil {
			return Done, fmt.Errorf("send language confirmation: %w", err)
		}
		return Done, nil
	}
}
