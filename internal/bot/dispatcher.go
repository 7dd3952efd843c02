package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Proton-105/stepbot/internal/bot/handlers"
	"github.com/Proton-105/stepbot/internal/dedup"
	apperrors "github.com/Proton-105/stepbot/internal/errors"
	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/messenger"
	"github.com/Proton-105/stepbot/internal/paramcodec"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/step"
	"github.com/Proton-105/stepbot/internal/view"
	"github.com/Proton-105/stepbot/pkg/metrics"
)

// Literal answers accepted when no handler matches.
const (
	literalYes = "+"
	literalNo  = "-"
)

// Locales resolves the language of a user.
type Locales interface {
	SoftSet(ctx context.Context, userID int64, platformLocale string)
	Resolve(ctx context.Context, userID int64, platformLocale string) string
}

// Hook observes an update before it is classified. Hooks must not fail the update.
type Hook func(ctx context.Context, v *view.View)

// DispatcherDeps are the collaborators of a Dispatcher.
type DispatcherDeps struct {
	Registry    *Registry
	Steps       step.Store
	Locales     Locales
	Translators handlers.Translators
	Messenger   *messenger.Messenger
	Dedup       *dedup.Detector
	Identity    *Identity
	// Waiting enables the placeholder message shown in dialogs while a command runs.
	Waiting bool
}

// Dispatcher runs the per-conversation state machine: a fresh command runs its handler and may
// leave a pending step, and the next plain message in that conversation is routed back to the
// pending command as its reply.
type Dispatcher struct {
	deps  DispatcherDeps
	log   *slog.Logger
	now   func() time.Time
	mu    sync.RWMutex
	hooks map[platform.UpdateType][]Hook
}

func NewDispatcher(deps DispatcherDeps, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		deps:  deps,
		log:   log,
		now:   time.Now,
		hooks: make(map[platform.UpdateType][]Hook),
	}
}

// On registers a hook for one update type.
func (d *Dispatcher) On(t platform.UpdateType, h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks[t] = append(d.hooks[t], h)
}

func (d *Dispatcher) runHooks(ctx context.Context, v *view.View) {
	d.mu.RLock()
	hooks := append([]Hook(nil), d.hooks[v.Type]...)
	d.mu.RUnlock()

	for _, h := range hooks {
		h(ctx, v)
	}
}

// Dispatch classifies v and runs the matching command. It reports whether the update was handled.
// Handler errors are returned for the caller's boundary to report.
func (d *Dispatcher) Dispatch(ctx context.Context, v *view.View) (bool, error) {
	if v == nil || v.Update == nil {
		return false, nil
	}
	d.runHooks(ctx, v)

	switch v.Type {
	case platform.UpdateMessageCallback:
		return d.dispatchCallback(ctx, v)
	case platform.UpdateMessageCreated:
		return d.dispatchMessage(ctx, v)
	case platform.UpdateBotStarted:
		return d.processCommand(ctx, v)
	default:
		return false, nil
	}
}

func (d *Dispatcher) dispatchCallback(ctx context.Context, v *view.View) (bool, error) {
	cb := v.Callback
	d.deps.Messenger.TrackCallback(v.ChatID, cb.CallbackID)

	if d.deps.Dedup != nil && d.deps.Dedup.Record(v.UserID, cb.Payload, d.pressedAt(v)) {
		v.DoubleTap = true
		metrics.RecordDoubleTap()
		d.log.DebugContext(ctx, "double tap detected", slog.Int64("user_id", v.UserID), slog.String("payload", cb.Payload))
	}

	if strings.TrimSpace(cb.Payload) == "" {
		_ = d.deps.Messenger.Delete(ctx, v.MID())
		return true, nil
	}
	if v.ParseError != nil {
		d.log.WarnContext(ctx, "unreadable callback payload", slog.String("payload", cb.Payload), slog.Any("error", v.ParseError))
		return false, nil
	}

	return d.processCommand(ctx, v)
}

func (d *Dispatcher) dispatchMessage(ctx context.Context, v *view.View) (bool, error) {
	if v.IsService() {
		return false, nil
	}
	if v.IsCommand() {
		return d.processCommand(ctx, v)
	}

	prev, err := d.deps.Steps.Get(ctx, v.Index())
	if err != nil {
		if errors.Is(err, step.ErrStepNotFound) {
			return false, nil
		}
		return false, err
	}

	// The reply keeps its own text; the command comes from the pending invocation.
	pv := view.New(prev, d.deps.Identity.View())
	v.IsReply = true
	v.Previous = pv
	v.Command = pv.Command
	v.CommandBot = pv.CommandBot
	v.RawArgs = strings.TrimSpace(v.Text())
	v.Args = paramcodec.ParseText(v.RawArgs)

	return d.processCommand(ctx, v)
}

func (d *Dispatcher) processCommand(ctx context.Context, v *view.View) (bool, error) {
	d.deps.Locales.SoftSet(ctx, v.UserID, v.UserLocale)

	if v.ChatID == 0 {
		return false, nil
	}
	if v.ChatType != platform.ChatDialog && v.CommandBot != "" && !strings.EqualFold(v.CommandBot, d.deps.Identity.Username()) {
		d.log.DebugContext(ctx, "command addressed to another bot", slog.String("bot", v.CommandBot), slog.String("command", v.Command))
		return false, nil
	}

	t := d.Translator(ctx, v)

	if d.deps.Waiting && v.ChatType == platform.ChatDialog {
		text := Title(t, d.deps.Identity) + " " + t.Tf("wait.processing", v.Command) + view.ServiceMarker
		if sent, err := d.deps.Messenger.Send(ctx, v.Target(), platform.NewMessage{Text: text}); err != nil {
			d.log.WarnContext(ctx, "send waiting message failed", slog.Any("error", err))
		} else if sent != nil {
			defer func() { _ = d.deps.Messenger.Delete(context.WithoutCancel(ctx), sent.MID) }()
		}
	}

	req, res, found, err := d.invoke(ctx, v, t)
	if err != nil {
		return false, err
	}

	if !found {
		switch v.Command {
		case literalYes:
			return true, nil
		case literalNo:
			return false, nil
		}
		d.incorrectCommand(ctx, v, t)
		return false, nil
	}

	if v.Callback != nil && res == handlers.Done && !req.Kept() {
		_ = d.deps.Messenger.Delete(ctx, v.MID())
	}
	return res != handlers.Unhandled, nil
}

// invoke runs the handler of v.Command and moves the conversation step.
func (d *Dispatcher) invoke(ctx context.Context, v *view.View, t i18n.Translator) (*handlers.Request, handlers.Result, bool, error) {
	index := v.Index()
	if v.IsReply {
		// A reply is consumed exactly once, whatever the handler does.
		defer d.deleteStep(context.WithoutCancel(ctx), index)
	} else {
		d.deleteStep(ctx, index)
	}

	h, ok := d.deps.Registry.Lookup(v.Command)
	if !ok {
		return nil, handlers.Unhandled, false, nil
	}

	req := &handlers.Request{View: v, T: t, Bot: d.deps.Identity.Username()}
	res, err := h(ctx, req)
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.NewHandlerError(v.Command, err)
		}
		return req, res, true, err
	}

	if res == handlers.AwaitReply && !v.IsReply {
		if werr := d.deps.Steps.WriteIfAbsent(ctx, index, v.Update); werr != nil {
			return req, res, true, werr
		}
	}
	return req, res, true, nil
}

// pressedAt is the platform time of the tap, or the receive time when the update carries none.
func (d *Dispatcher) pressedAt(v *view.View) time.Time {
	if v.Timestamp > 0 {
		return time.UnixMilli(v.Timestamp)
	}
	return d.now()
}

func (d *Dispatcher) deleteStep(ctx context.Context, index string) {
	if err := d.deps.Steps.Delete(ctx, index); err != nil {
		d.log.WarnContext(ctx, "delete step failed", slog.String("index", index), slog.Any("error", err))
	}
}

func (d *Dispatcher) incorrectCommand(ctx context.Context, v *view.View, t i18n.Translator) {
	text := t.Tf("command.incorrect", v.Command)
	if v.Callback != nil {
		_ = d.deps.Messenger.Notify(ctx, v.ChatID, v.Callback.CallbackID, text)
		return
	}
	if _, err := d.deps.Messenger.Send(ctx, v.Target(), platform.NewMessage{Text: text, Link: v.Link}); err != nil {
		d.log.WarnContext(ctx, "send incorrect command notice failed", slog.Any("error", err))
	}
}

// Translator picks the language of the user behind v.
func (d *Dispatcher) Translator(ctx context.Context, v *view.View) i18n.Translator {
	return d.deps.Translators.Translator(d.deps.Locales.Resolve(ctx, v.UserID, v.UserLocale))
}

// Title is the "bot @name (display name)" prefix of user facing notices.
func Title(t i18n.Translator, id *Identity) string {
	u := id.User()
	return t.Tf("bot.title", u.Username, u.Name)
}
