// Package platform describes the messenger-neutral data model the bot core works with:
// the closed set of update variants, outgoing messages, buttons and the API surface.
package platform

// UpdateType names one update variant on the wire.
type UpdateType string

const (
	UpdateMessageCreated             UpdateType = "message_created"
	UpdateMessageCallback            UpdateType = "message_callback"
	UpdateMessageEdited              UpdateType = "message_edited"
	UpdateMessageRemoved             UpdateType = "message_removed"
	UpdateBotStarted                 UpdateType = "bot_started"
	UpdateBotAdded                   UpdateType = "bot_added"
	UpdateBotRemoved                 UpdateType = "bot_removed"
	UpdateUserAdded                  UpdateType = "user_added"
	UpdateUserRemoved                UpdateType = "user_removed"
	UpdateChatTitleChanged           UpdateType = "chat_title_changed"
	UpdateMessageChatCreated         UpdateType = "message_chat_created"
	UpdateMessageConstructionRequest UpdateType = "message_construction_request"
	UpdateMessageConstructed         UpdateType = "message_constructed"
)

// ChatType distinguishes one-to-one dialogs from group chats and channels.
type ChatType string

const (
	ChatDialog  ChatType = "dialog"
	ChatGroup   ChatType = "chat"
	ChatChannel ChatType = "channel"
)

// Update is one inbound event. The set of implementations is closed and listed above.
type Update interface {
	Type() UpdateType
	Time() int64
}

type User struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Locale   string `json:"locale,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

type Recipient struct {
	ChatID   int64    `json:"chat_id"`
	ChatType ChatType `json:"chat_type"`
	UserID   int64    `json:"user_id,omitempty"`
}

type MessageBody struct {
	MID  string `json:"mid"`
	Seq  int64  `json:"seq,omitempty"`
	Text string `json:"text,omitempty"`
}

type Message struct {
	Sender    *User       `json:"sender,omitempty"`
	Recipient Recipient   `json:"recipient"`
	Timestamp int64       `json:"timestamp"`
	Body      MessageBody `json:"body"`
	Link      *ReplyLink  `json:"link,omitempty"`
}

// Callback is a button press. Payload is the raw button payload.
type Callback struct {
	CallbackID string `json:"callback_id"`
	Timestamp  int64  `json:"timestamp"`
	Payload    string `json:"payload,omitempty"`
	User       User   `json:"user"`
}

type MessageCreated struct {
	Timestamp int64   `json:"timestamp"`
	Message   Message `json:"message"`
}

type MessageCallback struct {
	Timestamp int64    `json:"timestamp"`
	Callback  Callback `json:"callback"`
	Message   *Message `json:"message,omitempty"`
}

type MessageEdited struct {
	Timestamp int64   `json:"timestamp"`
	Message   Message `json:"message"`
}

type MessageRemoved struct {
	Timestamp int64  `json:"timestamp"`
	MessageID string `json:"message_id"`
	ChatID    int64  `json:"chat_id"`
	UserID    int64  `json:"user_id"`
}

type BotStarted struct {
	Timestamp int64  `json:"timestamp"`
	ChatID    int64  `json:"chat_id"`
	User      User   `json:"user"`
	Payload   string `json:"payload,omitempty"`
}

type BotAdded struct {
	Timestamp int64 `json:"timestamp"`
	ChatID    int64 `json:"chat_id"`
	User      User  `json:"user"`
	IsChannel bool  `json:"is_channel"`
}

type BotRemoved struct {
	Timestamp int64 `json:"timestamp"`
	ChatID    int64 `json:"chat_id"`
	User      User  `json:"user"`
	IsChannel bool  `json:"is_channel"`
}

type UserAdded struct {
	Timestamp int64 `json:"timestamp"`
	ChatID    int64 `json:"chat_id"`
	User      User  `json:"user"`
	InviterID int64 `json:"inviter_id,omitempty"`
	IsChannel bool  `json:"is_channel"`
}

type UserRemoved struct {
	Timestamp int64 `json:"timestamp"`
	ChatID    int64 `json:"chat_id"`
	User      User  `json:"user"`
	AdminID   int64 `json:"admin_id,omitempty"`
	IsChannel bool  `json:"is_channel"`
}

type ChatTitleChanged struct {
	Timestamp int64  `json:"timestamp"`
	ChatID    int64  `json:"chat_id"`
	User      User   `json:"user"`
	Title     string `json:"title"`
}

type MessageChatCreated struct {
	Timestamp    int64  `json:"timestamp"`
	Chat         Chat   `json:"chat"`
	MessageID    string `json:"message_id"`
	StartPayload string `json:"start_payload,omitempty"`
}

type MessageConstructionRequest struct {
	Timestamp int64  `json:"timestamp"`
	User      User   `json:"user"`
	SessionID string `json:"session_id"`
	Data      string `json:"data,omitempty"`
}

type MessageConstructed struct {
	Timestamp int64   `json:"timestamp"`
	SessionID string  `json:"session_id"`
	Message   Message `json:"message"`
}

func (u *MessageCreated) Type() UpdateType             { return UpdateMessageCreated }
func (u *MessageCallback) Type() UpdateType            { return UpdateMessageCallback }
func (u *MessageEdited) Type() UpdateType              { return UpdateMessageEdited }
func (u *MessageRemoved) Type() UpdateType             { return UpdateMessageRemoved }
func (u *BotStarted) Type() UpdateType                 { return UpdateBotStarted }
func (u *BotAdded) Type() UpdateType                   { return UpdateBotAdded }
func (u *BotRemoved) Type() UpdateType                 { return UpdateBotRemoved }
func (u *UserAdded) Type() UpdateType                  { return UpdateUserAdded }
func (u *UserRemoved) Type() UpdateType                { return UpdateUserRemoved }
func (u *ChatTitleChanged) Type() UpdateType           { return UpdateChatTitleChanged }
func (u *MessageChatCreated) Type() UpdateType         { return UpdateMessageChatCreated }
func (u *MessageConstructionRequest) Type() UpdateType { return UpdateMessageConstructionRequest }
func (u *MessageConstructed) Type() UpdateType         { return UpdateMessageConstructed }

func (u *MessageCreated) Time() int64             { return u.Timestamp }
func (u *MessageCallback) Time() int64            { return u.Timestamp }
func (u *MessageEdited) Time() int64              { return u.Timestamp }
func (u *MessageRemoved) Time() int64             { return u.Timestamp }
func (u *BotStarted) Time() int64                 { return u.Timestamp }
func (u *BotAdded) Time() int64                   { return u.Timestamp }
func (u *BotRemoved) Time() int64                 { return u.Timestamp }
func (u *UserAdded) Time() int64                  { return u.Timestamp }
func (u *UserRemoved) Time() int64                { return u.Timestamp }
func (u *ChatTitleChanged) Time() int64           { return u.Timestamp }
func (u *MessageChatCreated) Time() int64         { return u.Timestamp }
func (u *MessageConstructionRequest) Time() int64 { return u.Timestamp }
func (u *MessageConstructed) Time() int64         { return u.Timestamp }
