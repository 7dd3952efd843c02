// Package repeater keeps chat actions such as "typing" visible while an update is processed.
package repeater

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/stepbot/internal/platform"
)

const DefaultInterval = 5 * time.Second

// ActionSender is implemented by platform.API.
type ActionSender interface {
	SendAction(ctx context.Context, chatID int64, action platform.Action) error
}

type chatLoop struct {
	actions map[platform.Action]struct{}
	cancel  context.CancelFunc
}

// Repeater runs one goroutine per chat while at least one action is switched on for it.
type Repeater struct {
	sender   ActionSender
	interval time.Duration
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	chats map[int64]*chatLoop
}

func New(sender ActionSender, interval time.Duration, log *slog.Logger) *Repeater {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Repeater{
		sender:   sender,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		chats:    make(map[int64]*chatLoop),
	}
}

// Switch turns action on or off for chatID. The chat loop starts with the first action and ends with the last.
func (r *Repeater) Switch(chatID int64, action platform.Action, on bool) {
	if chatID == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	loop, running := r.chats[chatID]
	if !on {
		if !running {
			return
		}
		delete(loop.actions, action)
		if len(loop.actions) == 0 {
			loop.cancel()
			delete(r.chats, chatID)
		}
		return
	}

	if r.ctx.Err() != nil {
		return
	}

	if running {
		loop.actions[action] = struct{}{}
		return
	}

	ctx, cancel := context.WithCancel(r.ctx)
	loop = &chatLoop{actions: map[platform.Action]struct{}{action: {}}, cancel: cancel}
	r.chats[chatID] = loop

	r.wg.Add(1)
	go r.run(ctx, chatID, loop)
}

func (r *Repeater) run(ctx context.Context, chatID int64, loop *chatLoop) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		for _, action := range r.snapshot(loop) {
			if err := r.sender.SendAction(ctx, chatID, action); err != nil && ctx.Err() == nil {
				r.log.Debug("send chat action failed", slog.Int64("chat_id", chatID), slog.String("action", string(action)), slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Repeater) snapshot(loop *chatLoop) []platform.Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	actions := make([]platform.Action, 0, len(loop.actions))
	for a := range loop.actions {
		actions = append(actions, a)
	}
	return actions
}

// Active reports whether a loop runs for chatID.
func (r *Repeater) Active(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.chats[chatID]
	return ok
}

// Stop ends every loop and waits for them.
func (r *Repeater) Stop() {
	r.cancel()

	r.mu.Lock()
	r.chats = make(map[int64]*chatLoop)
	r.mu.Unlock()

	r.wg.Wait()
}
