// Package platformtest provides a recording fake of platform.API for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Proton-105/stepbot/internal/platform"
)

type Sent struct {
	To  platform.Target
	Msg platform.NewMessage
	MID string
}

type Edited struct {
	MID string
	Msg platform.NewMessage
}

type Answer struct {
	CallbackID   string
	Notification string
}

type ActionCall struct {
	ChatID int64
	Action platform.Action
}

// API records every call. Errors queued with FailNext are returned by the next calls of that method.
type API struct {
	mu sync.Mutex

	Me       platform.User
	Chats    map[int64]*platform.Chat
	Members  map[int64]map[int64]*platform.ChatMember
	ChatErrs map[int64]error

	Sent     []Sent
	Edited   []Edited
	Deleted  []string
	Answers  []Answer
	Actions  []ActionCall
	Commands []platform.Command

	failures map[string][]error
	nextMID  int
	// Block, when set, is waited on by SendMessage before it records anything.
	Block chan struct{}
	// OnAction, when set, is called by SendAction before the call is recorded.
	OnAction func(chatID int64, action platform.Action)
}

var _ platform.API = (*API)(nil)

func New() *API {
	return &API{
		Me:       platform.User{UserID: 100, Name: "Step Bot", Username: "step_bot", IsBot: true},
		Chats:    make(map[int64]*platform.Chat),
		Members:  make(map[int64]map[int64]*platform.ChatMember),
		ChatErrs: make(map[int64]error),
		failures: make(map[string][]error),
	}
}

// FailNext makes the next len(errs) calls of method return errs in order.
func (a *API) FailNext(method string, errs ...error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[method] = append(a.failures[method], errs...)
}

func (a *API) popFailure(method string) error {
	queue := a.failures[method]
	if len(queue) == 0 {
		return nil
	}
	a.failures[method] = queue[1:]
	return queue[0]
}

// AddMember registers a membership returned by GetMember.
func (a *API) AddMember(chatID int64, m platform.ChatMember) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Members[chatID] == nil {
		a.Members[chatID] = make(map[int64]*platform.ChatMember)
	}
	member := m
	a.Members[chatID][m.User.UserID] = &member
}

func (a *API) BotInfo(context.Context) (platform.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.popFailure("BotInfo"); err != nil {
		return platform.User{}, err
	}
	return a.Me, nil
}

func (a *API) SendMessage(ctx context.Context, to platform.Target, msg platform.NewMessage) (*platform.SentMessage, error) {
	if a.Block != nil {
		select {
		case <-a.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.popFailure("SendMessage"); err != nil {
		return nil, err
	}

	a.nextMID++
	chatID := to.ChatID
	if chatID == 0 {
		chatID = to.UserID
	}
	mid := fmt.Sprintf("%d:%d", chatID, a.nextMID)
	a.Sent = append(a.Sent, Sent{To: to, Msg: msg, MID: mid})

	return &platform.SentMessage{MID: mid, ChatID: chatID}, nil
}

func (a *API) EditMessage(_ context.Context, mid string, msg platform.NewMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.popFailure("EditMessage"); err != nil {
		return err
	}
	a.Edited = append(a.Edited, Edited{MID: mid, Msg: msg})
	return nil
}

func (a *API) DeleteMessage(_ context.Context, mid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.popFailure("DeleteMessage"); err != nil {
		return err
	}
	a.Deleted = append(a.Deleted, mid)
	return nil
}

func (a *API) AnswerCallback(_ context.Context, callbackID, notification string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.popFailure("AnswerCallback"); err != nil {
		return err
	}
	a.Answers = append(a.Answers, Answer{CallbackID: callbackID, Notification: notification})
	return nil
}

func (a *API) SendAction(_ context.Context, chatID int64, action platform.Action) error {
	if a.OnAction != nil {
		a.OnAction(chatID, action)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.popFailure("SendAction"); err != nil {
		return err
	}
	a.Actions = append(a.Actions, ActionCall{ChatID: chatID, Action: action})
	return nil
}

func (a *API) GetChat(_ context.Context, chatID int64) (*platform.Chat, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ChatErrs[chatID]; err != nil {
		return nil, err
	}
	chat, ok := a.Chats[chatID]
	if !ok {
		return nil, &platform.APIError{Status: 404, Description: "chat not found"}
	}
	copied := *chat
	return &copied, nil
}

func (a *API) GetMember(_ context.Context, chatID, userID int64) (*platform.ChatMember, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.Members[chatID][userID]
	if !ok {
		return nil, &platform.APIError{Status: 403, Description: "member not found"}
	}
	copied := *m
	return &copied, nil
}

func (a *API) SetCommands(_ context.Context, commands []platform.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.popFailure("SetCommands"); err != nil {
		return err
	}
	a.Commands = append([]platform.Command(nil), commands...)
	return nil
}

// SentTexts returns the text of every sent message in order.
func (a *API) SentTexts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.Sent))
	for _, s := range a.Sent {
		out = append(out, s.Msg.Text)
	}
	return out
}

// SentCount is safe to call while other goroutines send.
func (a *API) SentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Sent)
}

// ActionCount counts recorded chat actions of kind.
func (a *API) ActionCount(kind platform.Action) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.Actions {
		if c.Action == kind {
			n++
		}
	}
	return n
}
