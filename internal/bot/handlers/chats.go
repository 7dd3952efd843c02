package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Proton-105/stepbot/internal/chats"
	"github.com/Proton-105/stepbot/internal/messenger"
	"github.com/Proton-105/stepbot/internal/platform"
)

// AdminChats finds the chats a user administers together with the bot.
type AdminChats interface {
	AdminChats(ctx context.Context, userID int64) ([]chats.Eligible, error)
}

// NewListAllChatsHandler returns the list_all_chats command. The list goes to the user's dialog
// as a long text split at the platform limit.
func NewListAllChatsHandler(sender Sender, discovery AdminChats) Handler {
	return func(ctx context.Context, req *Request) (Result, error) {
		v := req.View
		if v.ChatType != platform.ChatDialog {
			return Unhandled, nil
		}
		if v.IsReply {
			return Done, nil
		}
		if v.ChatID == 0 || v.UserID == 0 {
			return Unhandled, nil
		}

		found, err := discovery.AdminChats(ctx, v.UserID)
		if err != nil {
			return Done, fmt.Errorf("discover admin chats: %w", err)
		}

		text := messenger.NewTextStorage(sender.MaxBodyLength())
		if len(found) == 0 {
			text.Add(req.T.T("chats.none"))
		} else {
			text.Add(req.T.T("chats.title") + "\n\n")
			for i, chat := range found {
				text.Add(req.T.Tf("chats.line", i+1, chat.Name(), strings.Join(chat.BotPermissions, ", ")) + "\n")
			}
		}

		msg := platform.NewMessage{Link: v.Link}
		if _, err := sender.SendChunks(ctx, platform.ToUser(v.UserID), msg, text.Chunks()); err != nil {
			return Done, fmt.Errorf("send chat list: %w", err)
		}
		return Done, nil
	}
}
