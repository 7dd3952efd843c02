package handlers

import (
	"context"
	"log/slog"

	"github.com/Proton-105/stepbot/internal/bot/keyboard"
	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/paramcodec"
)

// Navigator serves presses on paged list navigation buttons.
type Navigator interface {
	Navigate(ctx context.Context, mid string, args paramcodec.Args, t i18n.Translator) (keyboard.NavResult, error)
}

// Notifier shows a toast to the user who pressed a button.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, callbackID, text string) error
}

// NewPagingHandler returns the internal navigation command of paged lists.
func NewPagingHandler(nav Navigator, notifier Notifier, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx context.Context, req *Request) (Result, error) {
		v := req.View
		if v.Callback == nil || v.IsReply {
			return Unhandled, nil
		}

		res, err := nav.Navigate(ctx, v.MID(), v.Args, req.T)
		if err != nil {
			req.KeepMessage()
			return Done, err
		}

		switch res {
		case keyboard.NavShown:
			req.KeepMessage()
		case keyboard.NavLost:
			log.Debug("paged list lost", slog.String("mid", v.MID()))
			_ = notifier.Notify(ctx, v.ChatID, v.Callback.CallbackID, req.T.T("paging.lost"))
		}
		return Done, nil
	}
}
