package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stepbot/internal/platform"
)

// Converter turns Telegram updates into platform updates.
type Converter struct {
	payloads PayloadStore
	botID    func() int64
	log      *slog.Logger
	now      func() time.Time
}

// NewConverter creates a converter. botID reports the running bot's user id and may return 0 before startup.
func NewConverter(payloads PayloadStore, botID func() int64, log *slog.Logger) *Converter {
	if log == nil {
		log = slog.Default()
	}
	if botID == nil {
		botID = func() int64 { return 0 }
	}
	return &Converter{payloads: payloads, botID: botID, log: log, now: time.Now}
}

// Convert maps one Telegram update to zero or more platform updates.
func (c *Converter) Convert(ctx context.Context, u *telebot.Update) []platform.Update {
	if u == nil {
		return nil
	}

	switch {
	case u.Message != nil:
		return c.message(u.Message)
	case u.ChannelPost != nil:
		return c.message(u.ChannelPost)
	case u.EditedMessage != nil && u.EditedMessage.Chat != nil:
		m := u.EditedMessage
		return []platform.Update{&platform.MessageEdited{Timestamp: millis(m.Unixtime), Message: convertMessage(m)}}
	case u.Callback != nil:
		return c.callback(ctx, u.Callback)
	case u.MyChatMember != nil:
		return c.myMember(u.MyChatMember)
	case u.ChatMember != nil:
		return c.member(u.ChatMember)
	default:
		c.log.DebugContext(ctx, "telegram update skipped", slog.Int("update_id", u.ID))
		return nil
	}
}

func (c *Converter) message(m *telebot.Message) []platform.Update {
	if m.Chat == nil {
		return nil
	}
	ts := millis(m.Unixtime)
	chatID := m.Chat.ID
	isChannel := m.Chat.Type == telebot.ChatChannel || m.Chat.Type == telebot.ChatChannelPrivate
	actor := convertUser(m.Sender)

	var out []platform.Update

	joined := m.UsersJoined
	if len(joined) == 0 && m.UserJoined != nil {
		joined = []telebot.User{*m.UserJoined}
	}
	for i := range joined {
		if c.isSelf(&joined[i]) {
			// my_chat_member reports the bot itself.
			continue
		}
		out = append(out, &platform.UserAdded{
			Timestamp: ts,
			ChatID:    chatID,
			User:      convertUser(&joined[i]),
			InviterID: inviter(actor.UserID, joined[i].ID),
			IsChannel: isChannel,
		})
	}

	if m.UserLeft != nil && !c.isSelf(m.UserLeft) {
		out = append(out, &platform.UserRemoved{
			Timestamp: ts,
			ChatID:    chatID,
			User:      convertUser(m.UserLeft),
			AdminID:   inviter(actor.UserID, m.UserLeft.ID),
			IsChannel: isChannel,
		})
	}

	if m.NewGroupTitle != "" {
		out = append(out, &platform.ChatTitleChanged{Timestamp: ts, ChatID: chatID, User: actor, Title: m.NewGroupTitle})
	}

	if m.GroupCreated || m.SuperGroupCreated || m.ChannelCreated {
		out = append(out, &platform.MessageChatCreated{
			Timestamp: ts,
			Chat:      convertChat(m.Chat),
			MessageID: FormatMID(chatID, m.ID),
		})
	}

	if len(out) > 0 || (m.Text == "" && m.Caption == "") {
		return out
	}

	if m.Chat.Type == telebot.ChatPrivate && isBareStart(m.Text) {
		return []platform.Update{&platform.BotStarted{Timestamp: ts, ChatID: chatID, User: actor}}
	}

	return []platform.Update{&platform.MessageCreated{Timestamp: ts, Message: convertMessage(m)}}
}

func (c *Converter) callback(ctx context.Context, cb *telebot.Callback) []platform.Update {
	data, err := expand(ctx, c.payloads, cb.Data)
	if err != nil {
		c.log.WarnContext(ctx, "resolve callback payload failed", slog.String("data", cb.Data), slog.Any("error", err))
	}

	out := &platform.MessageCallback{
		Callback: platform.Callback{
			CallbackID: cb.ID,
			Payload:    data,
			User:       convertUser(cb.Sender),
		},
	}
	if cb.Message != nil && cb.Message.Chat != nil {
		msg := convertMessage(cb.Message)
		out.Message = &msg
	}
	// Telegram does not date button presses.
	out.Timestamp = c.now().UnixMilli()
	out.Callback.Timestamp = out.Timestamp
	return []platform.Update{out}
}

func (c *Converter) myMember(u *telebot.ChatMemberUpdate) []platform.Update {
	if u.Chat == nil || u.NewChatMember == nil || u.Chat.Type == telebot.ChatPrivate {
		return nil
	}
	ts := millis(u.Unixtime)
	isChannel := u.Chat.Type == telebot.ChatChannel || u.Chat.Type == telebot.ChatChannelPrivate
	actor := convertUser(u.Sender)

	wasIn := u.OldChatMember != nil && present(u.OldChatMember.Role)
	isIn := present(u.NewChatMember.Role)

	switch {
	case isIn && !wasIn:
		return []platform.Update{&platform.BotAdded{Timestamp: ts, ChatID: u.Chat.ID, User: actor, IsChannel: isChannel}}
	case !isIn && wasIn:
		return []platform.Update{&platform.BotRemoved{Timestamp: ts, ChatID: u.Chat.ID, User: actor, IsChannel: isChannel}}
	default:
		return nil
	}
}

func (c *Converter) member(u *telebot.ChatMemberUpdate) []platform.Update {
	if u.Chat == nil || u.NewChatMember == nil || u.NewChatMember.User == nil {
		return nil
	}
	ts := millis(u.Unixtime)
	isChannel := u.Chat.Type == telebot.ChatChannel || u.Chat.Type == telebot.ChatChannelPrivate
	actorID := int64(0)
	if u.Sender != nil {
		actorID = u.Sender.ID
	}
	subject := u.NewChatMember.User

	wasIn := u.OldChatMember != nil && present(u.OldChatMember.Role)
	isIn := present(u.NewChatMember.Role)

	switch {
	case isIn && !wasIn:
		return []platform.Update{&platform.UserAdded{
			Timestamp: ts, ChatID: u.Chat.ID, User: convertUser(subject),
			InviterID: inviter(actorID, subject.ID), IsChannel: isChannel,
		}}
	case !isIn && wasIn:
		return []platform.Update{&platform.UserRemoved{
			Timestamp: ts, ChatID: u.Chat.ID, User: convertUser(subject),
			AdminID: inviter(actorID, subject.ID), IsChannel: isChannel,
		}}
	default:
		return nil
	}
}

func (c *Converter) isSelf(u *telebot.User) bool {
	id := c.botID()
	return id != 0 && u != nil && u.ID == id
}

func present(role telebot.MemberStatus) bool {
	switch role {
	case telebot.Creator, telebot.Administrator, telebot.Member, telebot.Restricted:
		return true
	default:
		return false
	}
}

// inviter is the acting user, unless the user acted on themselves.
func inviter(actorID, subjectID int64) int64 {
	if actorID == subjectID {
		return 0
	}
	return actorID
}

// isBareStart matches "/start" and "/start@bot" without a deep-link payload.
func isBareStart(text string) bool {
	text = strings.TrimSpace(text)
	if text == "/start" {
		return true
	}
	return strings.HasPrefix(text, "/start@") && !strings.ContainsAny(text, " \n\t")
}

func millis(unix int64) int64 {
	return unix * 1000
}

func convertMessage(m *telebot.Message) platform.Message {
	msg := platform.Message{
		Timestamp: millis(m.Unixtime),
		Recipient: platform.Recipient{
			ChatID:   m.Chat.ID,
			ChatType: convertChatType(m.Chat.Type),
		},
		Body: platform.MessageBody{
			MID:  FormatMID(m.Chat.ID, m.ID),
			Seq:  int64(m.ID),
			Text: m.Text,
		},
	}
	if msg.Body.Text == "" {
		msg.Body.Text = m.Caption
	}
	if m.Sender != nil {
		u := convertUser(m.Sender)
		msg.Sender = &u
	}
	if msg.Recipient.ChatType == platform.ChatDialog {
		msg.Recipient.UserID = m.Chat.ID
	}
	if m.ReplyTo != nil {
		msg.Link = platform.Reply(FormatMID(m.Chat.ID, m.ReplyTo.ID))
	}
	return msg
}

func convertUser(u *telebot.User) platform.User {
	if u == nil {
		return platform.User{}
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return platform.User{
		UserID:   u.ID,
		Name:     name,
		Username: u.Username,
		Locale:   u.LanguageCode,
		IsBot:    u.IsBot,
	}
}

func convertChatType(t telebot.ChatType) platform.ChatType {
	switch t {
	case telebot.ChatPrivate:
		return platform.ChatDialog
	case telebot.ChatChannel, telebot.ChatChannelPrivate:
		return platform.ChatChannel
	default:
		return platform.ChatGroup
	}
}

func convertChat(c *telebot.Chat) platform.Chat {
	out := platform.Chat{
		ChatID: c.ID,
		Type:   convertChatType(c.Type),
		Title:  c.Title,
	}
	if out.Type == platform.ChatDialog {
		out.DialogWithUser = &platform.User{
			UserID:   c.ID,
			Name:     strings.TrimSpace(c.FirstName + " " + c.LastName),
			Username: c.Username,
		}
		if out.Title == "" {
			out.Title = out.DialogWithUser.Name
		}
	}
	return out
}

func convertMember(m *telebot.ChatMember) platform.ChatMember {
	out := platform.ChatMember{
		IsOwner: m.Role == telebot.Creator,
		IsAdmin: m.Role == telebot.Creator || m.Role == telebot.Administrator,
	}
	if m.User != nil {
		out.User = convertUser(m.User)
	}

	switch m.Role {
	case telebot.Creator:
		out.Permissions = []string{
			platform.PermReadAllMessages, platform.PermWrite, platform.PermChangeChatInfo,
			platform.PermPinMessage, platform.PermAddRemove,
		}
	case telebot.Administrator:
		// Administrators always receive every message of a group.
		out.Permissions = []string{platform.PermReadAllMessages, platform.PermWrite}
		if m.CanChangeInfo {
			out.Permissions = append(out.Permissions, platform.PermChangeChatInfo)
		}
		if m.CanPinMessages {
			out.Permissions = append(out.Permissions, platform.PermPinMessage)
		}
		if m.CanInviteUsers && m.CanRestrictMembers {
			out.Permissions = append(out.Permissions, platform.PermAddRemove)
		}
	case telebot.Member:
		out.Permissions = []string{platform.PermWrite}
	case telebot.Restricted:
		if m.CanSendMessages {
			out.Permissions = []string{platform.PermWrite}
		}
	}
	return out
}
