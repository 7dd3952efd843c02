// Package view normalizes every update variant into one read-only shape the dispatcher works with.
package view

import (
	"fmt"
	"strings"

	"github.com/Proton-105/stepbot/internal/paramcodec"
	"github.com/Proton-105/stepbot/internal/platform"
)

// ServiceMarker terminates messages the bot itself sends as service notices.
const ServiceMarker = "\u200b\u200b\u200b"

// Bot identifies the running bot while updates are normalized.
type Bot struct {
	UserID   int64
	Username string
}

// View is the normalized projection of one update.
type View struct {
	Update    platform.Update
	Type      platform.UpdateType
	Timestamp int64

	Command    string
	CommandBot string
	Args       paramcodec.Args
	RawArgs    string
	Link       *platform.ReplyLink

	Message  *platform.Message
	Callback *platform.Callback

	User       *platform.User
	UserID     int64
	UserName   string
	UserLocale string
	ChatID     int64
	ChatType   platform.ChatType

	// Addressed is set when a group message was prefixed with "@bot".
	Addressed bool

	IsReply    bool
	Previous   *View
	DoubleTap  bool
	ParseError error
}

// New builds the view of u as seen by bot.
func New(u platform.Update, bot Bot) *View {
	v := &View{Update: u}
	if u == nil {
		return v
	}
	v.Type = u.Type()
	v.Timestamp = u.Time()

	switch t := u.(type) {
	case *platform.MessageCreated:
		v.fromMessage(&t.Message)
		v.parseText(bot)
	case *platform.MessageCallback:
		v.Callback = &t.Callback
		v.setUser(&t.Callback.User)
		if t.Message != nil {
			v.Message = t.Message
			v.ChatID = t.Message.Recipient.ChatID
			v.ChatType = t.Message.Recipient.ChatType
		}
		v.parsePayload(t.Callback.Payload)
	case *platform.MessageEdited:
		v.fromMessage(&t.Message)
	case *platform.MessageRemoved:
		v.ChatID = t.ChatID
		v.UserID = t.UserID
	case *platform.BotStarted:
		v.Command = "start"
		v.RawArgs = t.Payload
		v.ChatID = t.ChatID
		v.ChatType = platform.ChatDialog
		v.setUser(&t.User)
	case *platform.BotAdded:
		v.ChatID = t.ChatID
		v.ChatType = groupType(t.IsChannel)
		v.setUser(&t.User)
	case *platform.BotRemoved:
		v.ChatID = t.ChatID
		v.ChatType = groupType(t.IsChannel)
		v.setUser(&t.User)
	case *platform.UserAdded:
		v.ChatID = t.ChatID
		v.ChatType = groupType(t.IsChannel)
		v.setUser(&t.User)
	case *platform.UserRemoved:
		v.ChatID = t.ChatID
		v.ChatType = groupType(t.IsChannel)
		v.setUser(&t.User)
	case *platform.ChatTitleChanged:
		v.ChatID = t.ChatID
		v.ChatType = platform.ChatGroup
		v.setUser(&t.User)
	case *platform.MessageChatCreated:
		v.ChatID = t.Chat.ChatID
		v.ChatType = t.Chat.Type
		v.RawArgs = t.StartPayload
	case *platform.MessageConstructionRequest:
		v.setUser(&t.User)
		v.RawArgs = t.Data
	case *platform.MessageConstructed:
		v.fromMessage(&t.Message)
	}

	return v
}

func groupType(channel bool) platform.ChatType {
	if channel {
		return platform.ChatChannel
	}
	return platform.ChatGroup
}

func (v *View) setUser(u *platform.User) {
	if u == nil {
		return
	}
	v.User = u
	v.UserID = u.UserID
	v.UserName = u.Name
	v.UserLocale = u.Locale
}

func (v *View) fromMessage(m *platform.Message) {
	v.Message = m
	v.ChatID = m.Recipient.ChatID
	v.ChatType = m.Recipient.ChatType
	if m.Sender != nil {
		v.setUser(m.Sender)
	} else if m.Recipient.UserID != 0 {
		v.UserID = m.Recipient.UserID
	}
	v.Link = platform.Reply(m.Body.MID)
}

func (v *View) parseText(bot Bot) {
	text := strings.TrimSpace(v.Message.Body.Text)

	if bot.Username != "" {
		prefix := "@" + bot.Username + " "
		if len(text) > len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
			rest := strings.TrimSpace(text[len(prefix):])
			if strings.HasPrefix(rest, "/") {
				text = rest
				v.Addressed = true
			}
		}
	}

	if cl, ok := paramcodec.ParseCommandLine(text); ok {
		v.Command = cl.Command
		v.CommandBot = cl.Bot
		v.Args = cl.Args
		v.RawArgs = cl.Rest
		return
	}
	v.Command = text
}

func (v *View) parsePayload(payload string) {
	if strings.TrimSpace(payload) == "" {
		return
	}
	p, err := paramcodec.Decode(payload)
	if err != nil {
		v.ParseError = err
		return
	}
	v.Command = p.Command
	v.CommandBot = p.Bot
	v.Args = p.Args
	v.RawArgs = p.RawArgs
	if p.MID != "" {
		v.Link = platform.Reply(p.MID)
	}
}

// Text is the message text, empty for updates without a message.
func (v *View) Text() string {
	if v.Message == nil {
		return ""
	}
	return v.Message.Body.Text
}

// MID is the id of the message the update refers to.
func (v *View) MID() string {
	if v.Message == nil {
		return ""
	}
	return v.Message.Body.MID
}

// IsCommand reports whether a created message should be routed as a command.
func (v *View) IsCommand() bool {
	if v.Type != platform.UpdateMessageCreated {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(v.Text()), "/") || v.Addressed
}

// IsService reports whether the message is one of the bot's own service notices.
func (v *View) IsService() bool {
	return strings.HasSuffix(v.Text(), ServiceMarker)
}

// Index is the conversation index of this update.
func (v *View) Index() string {
	return Index(v.ChatID, v.UserID)
}

// Index renders the "{chat}_{user}" conversation key.
func Index(chatID, userID int64) string {
	return fmt.Sprintf("%d_%d", chatID, userID)
}

// Target addresses replies: the chat when known, else the user's dialog.
func (v *View) Target() platform.Target {
	if v.ChatID != 0 {
		return platform.ToChat(v.ChatID)
	}
	return platform.ToUser(v.UserID)
}
