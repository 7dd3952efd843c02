package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Proton-105/stepbot/internal/platform"
)

// NewStartHandler returns the start command: the about text, in dialogs only.
func NewStartHandler(sender Sender) Handler {
	return func(ctx context.Context, req *Request) (Result, error) {
		v := req.View
		if v.ChatType != platform.ChatDialog {
			return Unhandled, nil
		}
		if v.IsReply {
			return Done, nil
		}
		// Deep links carry a payload for bots that build on top of start.
		if _, ok := v.Update.(*platform.BotStarted); ok && strings.TrimSpace(v.RawArgs) != "" {
			return Done, nil
		}

		to, msg := req.Reply(req.T.T("bot.about"))
		if _, err := sender.Send(ctx, to, msg); err != nil {
			return Done, fmt.Errorf("send about: %w", err)
		}
		return Done, nil
	}
}
