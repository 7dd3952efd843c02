package platform

import (
	"context"
)

type LinkType string

const (
	LinkReply   LinkType = "reply"
	LinkForward LinkType = "forward"
)

// ReplyLink attaches an outgoing message to an existing one.
type ReplyLink struct {
	Type LinkType `json:"type"`
	MID  string   `json:"mid"`
}

// Reply links to mid as a reply. Empty mid yields nil.
func Reply(mid string) *ReplyLink {
	if mid == "" {
		return nil
	}
	return &ReplyLink{Type: LinkReply, MID: mid}
}

type ButtonKind string

const (
	ButtonCallback ButtonKind = "callback"
	ButtonLink     ButtonKind = "link"
)

type Intent string

const (
	IntentDefault  Intent = "default"
	IntentPositive Intent = "positive"
	IntentNegative Intent = "negative"
)

type Button struct {
	Kind    ButtonKind `json:"type"`
	Text    string     `json:"text"`
	Payload string     `json:"payload,omitempty"`
	URL     string     `json:"url,omitempty"`
	Intent  Intent     `json:"intent,omitempty"`
}

func CallbackButton(text, payload string, intent Intent) Button {
	return Button{Kind: ButtonCallback, Text: text, Payload: payload, Intent: intent}
}

func LinkButton(text, url string) Button {
	return Button{Kind: ButtonLink, Text: text, URL: url}
}

// Keyboard is an inline keyboard, one slice per row.
type Keyboard [][]Button

// NewMessage is an outgoing message body.
type NewMessage struct {
	Text     string
	Link     *ReplyLink
	Keyboard Keyboard
	Silent   bool
}

// HasAttachments reports whether the message carries anything besides text.
func (m NewMessage) HasAttachments() bool {
	return len(m.Keyboard) > 0
}

// Target addresses a send: a chat when ChatID is set, otherwise the dialog with UserID.
type Target struct {
	ChatID int64
	UserID int64
}

func ToChat(chatID int64) Target { return Target{ChatID: chatID} }
func ToUser(userID int64) Target { return Target{UserID: userID} }

func (t Target) IsZero() bool { return t.ChatID == 0 && t.UserID == 0 }

type SentMessage struct {
	MID    string
	ChatID int64
}

type Chat struct {
	ChatID            int64    `json:"chat_id"`
	Type              ChatType `json:"type"`
	Title             string   `json:"title,omitempty"`
	ParticipantsCount int      `json:"participants_count,omitempty"`
	DialogWithUser    *User    `json:"dialog_with_user,omitempty"`
}

// Permissions granted to a chat member.
const (
	PermReadAllMessages = "read_all_messages"
	PermWrite           = "write"
	PermChangeChatInfo  = "change_chat_info"
	PermPinMessage      = "pin_message"
	PermAddRemove       = "add_remove_members"
)

type ChatMember struct {
	User        User
	IsAdmin     bool
	IsOwner     bool
	Permissions []string
}

func (m ChatMember) Can(perm string) bool {
	for _, p := range m.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

type Action string

const (
	ActionTypingOn Action = "typing_on"
	ActionMarkSeen Action = "mark_seen"
)

type Command struct {
	Name        string
	Description string
}

// API is the outbound surface of a messenger platform.
type API interface {
	BotInfo(ctx context.Context) (User, error)
	SendMessage(ctx context.Context, to Target, msg NewMessage) (*SentMessage, error)
	// EditMessage replaces text and keyboard. An empty Text keeps the current text.
	EditMessage(ctx context.Context, mid string, msg NewMessage) error
	DeleteMessage(ctx context.Context, mid string) error
	AnswerCallback(ctx context.Context, callbackID, notification string) error
	SendAction(ctx context.Context, chatID int64, action Action) error
	GetChat(ctx context.Context, chatID int64) (*Chat, error)
	GetMember(ctx context.Context, chatID, userID int64) (*ChatMember, error)
	SetCommands(ctx context.Context, commands []Command) error
}
