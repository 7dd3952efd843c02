package handlers

import (
	"context"
	"fmt"

	"github.com/Proton-105/stepbot/internal/bot/keyboard"
	"github.com/Proton-105/stepbot/internal/platform"
)

// APIDocsURL is linked from the main menu.
const APIDocsURL = "https://core.telegram.org/bots/api"

// MenuButtons builds the main menu. The language entry is shown only when there is a choice.
func MenuButtons(req *Request, languages int) platform.Keyboard {
	buttons := []platform.Button{
		keyboard.Command(req.Bot, req.T.T("menu.about"), StartCommand, nil, platform.IntentPositive),
		keyboard.Command(req.Bot, req.T.T("menu.list_all_chats"), ListAllChatsCommand, nil, platform.IntentPositive),
		platform.LinkButton(req.T.T("menu.api_docs"), APIDocsURL),
	}
	if languages > 1 {
		buttons = append(buttons, keyboard.Command(req.Bot, req.T.T("menu.set_language"), SetLanguageCommand, nil, platform.IntentDefault))
	}
	return keyboard.Layout(keyboard.Vertical, buttons...)
}

// NewMenuHandler returns the menu command. It works in any chat.
func NewMenuHandler(sender Sender, languages func() int) Handler {
	return func(ctx context.Context, req *Request) (Result, error) {
		if req.View.IsReply {
			return Done, nil
		}

		msg := platform.NewMessage{Text: req.T.T("menu.title"), Keyboard: MenuButtons(req, languages())}
		if _, err := sender.Send(ctx, req.View.Target(), msg); err != nil {
			return Done, fmt.Errorf("send main menu: %w", err)
		}
		return Done, nil
	}
}
