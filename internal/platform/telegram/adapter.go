// Package telegram binds the platform-neutral bot core to the Telegram Bot API through telebot.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stepbot/internal/platform"
)

// AllowedUpdates are the update kinds the converter understands.
var AllowedUpdates = []string{
	"message", "edited_message", "channel_post", "callback_query", "my_chat_member", "chat_member",
}

// Settings configure the Telegram client.
type Settings struct {
	Token string
	// URL overrides the Bot API endpoint, used by tests.
	URL    string
	Client *http.Client
}

// Adapter implements platform.API on top of telebot.
type Adapter struct {
	bot      *telebot.Bot
	payloads PayloadStore
	log      *slog.Logger
}

var _ platform.API = (*Adapter)(nil)

// New creates an adapter. It does not contact Telegram; BotInfo does.
func New(s Settings, payloads PayloadStore, log *slog.Logger) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	if payloads == nil {
		payloads = NewMemoryPayloadStore()
	}

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}

	tb, err := telebot.NewBot(telebot.Settings{
		Token:   s.Token,
		URL:     s.URL,
		Client:  client,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	return &Adapter{bot: tb, payloads: payloads, log: log}, nil
}

// Payloads is the store used for oversized callback payloads.
func (a *Adapter) Payloads() PayloadStore {
	return a.payloads
}

// FormatMID builds a message id. Telegram message ids are unique only within a chat.
func FormatMID(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}

// ParseMID splits a message id built by FormatMID.
func ParseMID(mid string) (telebot.StoredMessage, error) {
	chat, msg, ok := strings.Cut(mid, ":")
	if !ok {
		return telebot.StoredMessage{}, fmt.Errorf("telegram: malformed message id %q", mid)
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return telebot.StoredMessage{}, fmt.Errorf("telegram: malformed message id %q: %w", mid, err)
	}
	if _, err := strconv.Atoi(msg); err != nil {
		return telebot.StoredMessage{}, fmt.Errorf("telegram: malformed message id %q: %w", mid, err)
	}
	return telebot.StoredMessage{MessageID: msg, ChatID: chatID}, nil
}

func (a *Adapter) BotInfo(_ context.Context) (platform.User, error) {
	data, err := a.bot.Raw("getMe", nil)
	if err != nil {
		return platform.User{}, mapError(err)
	}
	var resp struct {
		Result telebot.User `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return platform.User{}, fmt.Errorf("decode getMe: %w", err)
	}
	return convertUser(&resp.Result), nil
}

func (a *Adapter) SendMessage(ctx context.Context, to platform.Target, msg platform.NewMessage) (*platform.SentMessage, error) {
	chatID := to.ChatID
	if chatID == 0 {
		// A private chat shares its id with the user.
		chatID = to.UserID
	}

	opts := &telebot.SendOptions{DisableNotification: msg.Silent}
	if msg.Link != nil && msg.Link.Type == platform.LinkReply {
		if sm, err := ParseMID(msg.Link.MID); err == nil && sm.ChatID == chatID {
			id, _ := strconv.Atoi(sm.MessageID)
			opts.ReplyTo = &telebot.Message{ID: id}
		}
	}

	markup, err := a.markup(ctx, msg.Keyboard)
	if err != nil {
		return nil, err
	}
	opts.ReplyMarkup = markup

	sent, err := a.bot.Send(telebot.ChatID(chatID), msg.Text, opts)
	if err != nil {
		return nil, mapError(err)
	}

	out := &platform.SentMessage{ChatID: chatID}
	if sent != nil {
		if sent.Chat != nil {
			out.ChatID = sent.Chat.ID
		}
		out.MID = FormatMID(out.ChatID, sent.ID)
	}
	return out, nil
}

// EditMessage replaces the text and keyboard. With an empty Text only the keyboard changes.
func (a *Adapter) EditMessage(ctx context.Context, mid string, msg platform.NewMessage) error {
	sm, err := ParseMID(mid)
	if err != nil {
		return err
	}

	markup, err := a.markup(ctx, msg.Keyboard)
	if err != nil {
		return err
	}

	if msg.Text == "" {
		if markup == nil {
			markup = &telebot.ReplyMarkup{}
		}
		_, err = a.bot.EditReplyMarkup(sm, markup)
	} else {
		_, err = a.bot.Edit(sm, msg.Text, &telebot.SendOptions{ReplyMarkup: markup})
	}
	// A bare true result is a successful edit too.
	if errors.Is(err, telebot.ErrTrueResult) || isNotModified(err) {
		return nil
	}
	return mapError(err)
}

func (a *Adapter) DeleteMessage(_ context.Context, mid string) error {
	sm, err := ParseMID(mid)
	if err != nil {
		return err
	}
	return mapError(a.bot.Delete(sm))
}

func (a *Adapter) AnswerCallback(_ context.Context, callbackID, notification string) error {
	return mapError(a.bot.Respond(&telebot.Callback{ID: callbackID}, &telebot.CallbackResponse{Text: notification}))
}

// SendAction shows the typing indicator. Telegram has no read receipts, so mark seen does nothing.
func (a *Adapter) SendAction(_ context.Context, chatID int64, action platform.Action) error {
	switch action {
	case platform.ActionTypingOn:
		return mapError(a.bot.Notify(telebot.ChatID(chatID), telebot.Typing))
	default:
		return nil
	}
}

func (a *Adapter) GetChat(_ context.Context, chatID int64) (*platform.Chat, error) {
	chat, err := a.bot.ChatByID(chatID)
	if err != nil {
		return nil, mapError(err)
	}
	out := convertChat(chat)
	return &out, nil
}

func (a *Adapter) GetMember(_ context.Context, chatID, userID int64) (*platform.ChatMember, error) {
	m, err := a.bot.ChatMemberOf(telebot.ChatID(chatID), telebot.ChatID(userID))
	if err != nil {
		return nil, mapError(err)
	}
	out := convertMember(m)
	return &out, nil
}

func (a *Adapter) SetCommands(_ context.Context, commands []platform.Command) error {
	cmds := make([]telebot.Command, 0, len(commands))
	for _, c := range commands {
		cmds = append(cmds, telebot.Command{Text: c.Name, Description: c.Description})
	}
	return mapError(a.bot.SetCommands(cmds))
}

// GetUpdates long-polls getUpdates. The call is not interruptible by ctx once sent.
func (a *Adapter) GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]telebot.Update, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := a.bot.Raw("getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": AllowedUpdates,
	})
	if err != nil {
		return nil, mapError(err)
	}

	var resp struct {
		Result []telebot.Update `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode getUpdates: %w", err)
	}
	return resp.Result, nil
}

// SetWebhook points Telegram at url. The secret is echoed in X-Telegram-Bot-Api-Secret-Token.
func (a *Adapter) SetWebhook(_ context.Context, url, secret string) error {
	params := map[string]any{
		"url":             url,
		"allowed_updates": AllowedUpdates,
	}
	if secret != "" {
		params["secret_token"] = secret
	}
	_, err := a.bot.Raw("setWebhook", params)
	return mapError(err)
}

// DeleteWebhook switches the bot back to getUpdates.
func (a *Adapter) DeleteWebhook(_ context.Context) error {
	_, err := a.bot.Raw("deleteWebhook", map[string]any{"drop_pending_updates": false})
	return mapError(err)
}

func (a *Adapter) markup(ctx context.Context, kb platform.Keyboard) (*telebot.ReplyMarkup, error) {
	if len(kb) == 0 {
		return nil, nil
	}

	rows := make([][]telebot.InlineButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]telebot.InlineButton, 0, len(row))
		for _, b := range row {
			btn := telebot.InlineButton{Text: b.Text}
			switch b.Kind {
			case platform.ButtonLink:
				btn.URL = b.URL
			default:
				data, err := shrink(ctx, a.payloads, b.Payload)
				if err != nil {
					return nil, fmt.Errorf("button %q: %w", b.Text, err)
				}
				btn.Data = data
			}
			buttons = append(buttons, btn)
		}
		rows = append(rows, buttons)
	}
	return &telebot.ReplyMarkup{InlineKeyboard: rows}, nil
}
