// Package handlers holds the built-in bot commands.
package handlers

import (
	"context"

	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/view"
)

// Built-in command names.
const (
	StartCommand        = "start"
	MenuCommand         = "menu"
	SetLanguageCommand  = "set_language"
	ListAllChatsCommand = "list_all_chats"
)

// Result tells the dispatcher what to do with the conversation step after a handler ran.
type Result int

const (
	// Done means the command is complete. Any pending step is cleared.
	Done Result = iota
	// AwaitReply asks the dispatcher to keep the invocation until the user replies with text.
	AwaitReply
	// Unhandled means the handler declined the update, e.g. a dialog-only command in a group.
	Unhandled
)

func (r Result) String() string {
	switch r {
	case Done:
		return "done"
	case AwaitReply:
		return "await_reply"
	case Unhandled:
		return "unhandled"
	default:
		return "unknown"
	}
}

// Request is one command invocation.
type Request struct {
	View *view.View
	T    i18n.Translator
	// Bot is the username of the running bot, used in button payloads.
	Bot string

	keep bool
}

// KeepMessage stops the dispatcher from deleting the message a pressed button belongs to.
func (r *Request) KeepMessage() {
	r.keep = true
}

func (r *Request) Kept() bool {
	return r.keep
}

// Reply addresses an answer to the chat of the update, threaded to its message.
func (r *Request) Reply(text string) (platform.Target, platform.NewMessage) {
	return r.View.Target(), platform.NewMessage{Text: text, Link: r.View.Link}
}

// Handler processes a command.
type Handler func(ctx context.Context, req *Request) (Result, error)

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Sender is the subset of messenger.Messenger handlers send with.
type Sender interface {
	Send(ctx context.Context, to platform.Target, msg platform.NewMessage) (*platform.SentMessage, error)
	SendChunks(ctx context.Context, to platform.Target, msg platform.NewMessage, chunks []string) ([]*platform.SentMessage, error)
	MaxBodyLength() int
}

// Translators returns the translator of a language.
type Translators interface {
	Translator(lang string) i18n.Translator
}
