package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/Proton-105/stepbot/internal/admin"
	apperrors "github.com/Proton-105/stepbot/internal/errors"
	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/messenger"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/repeater"
	"github.com/Proton-105/stepbot/internal/view"
	"github.com/Proton-105/stepbot/internal/workerpool"
	"github.com/Proton-105/stepbot/pkg/logger"
	"github.com/Proton-105/stepbot/pkg/metrics"
)

// AdminChannel is where diagnostics go.
type AdminChannel interface {
	admin.Alerter
	SendToAdmins(ctx context.Context, msg platform.NewMessage)
}

// Deps are the collaborators of a Bot.
type Deps struct {
	Dispatcher *Dispatcher
	Pool       *workerpool.Pool
	Messenger  *messenger.Messenger
	Identity   *Identity
	Admins     AdminChannel
	Errors     *apperrors.Handler
	// Repeater is optional. Without it no typing indicator is shown.
	Repeater *repeater.Repeater
}

// Bot is the entry point of every update: it schedules updates on the worker pool and is the
// outermost error boundary, so a failing update never reaches the transport.
type Bot struct {
	deps Deps
	log  *slog.Logger
}

func New(deps Deps, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	if deps.Errors == nil {
		deps.Errors = apperrors.NewHandler(log, false)
	}
	return &Bot{deps: deps, log: log}
}

// Submit schedules u on the pool. When the pool is full the update is dropped, the user is told to
// retry later and the admins are alerted.
func (b *Bot) Submit(ctx context.Context, u platform.Update) error {
	err := b.deps.Pool.Submit(ctx, func(ctx context.Context) {
		b.Handle(ctx, u)
	})
	if errors.Is(err, workerpool.ErrPoolFull) {
		b.reject(ctx, u)
	}
	return err
}

func (b *Bot) reject(ctx context.Context, u platform.Update) {
	v := view.New(u, b.deps.Identity.View())
	overload := apperrors.NewOverloadError(b.deps.Pool.Max())
	b.log.WarnContext(ctx, "update rejected",
		slog.String("update_type", string(v.Type)),
		slog.Int64("chat_id", v.ChatID),
		slog.Any("error", overload),
	)
	metrics.RecordError("pool", string(overload.Severity))

	if !v.Target().IsZero() {
		t := b.deps.Dispatcher.Translator(ctx, v)
		msg := platform.NewMessage{Text: t.Tf(overload.UserMessage, v.Command), Link: v.Link}
		if _, err := b.deps.Messenger.Send(ctx, v.Target(), msg); err != nil {
			b.log.WarnContext(ctx, "send unavailable notice failed", slog.Any("error", err))
		}
	}

	b.deps.Admins.Alert(ctx, admin.Alert{
		Text: fmt.Sprintf("Threads pool is full. The maximum number (%d) is used.", b.deps.Pool.Max()),
	})
}

// Handle processes one update synchronously. It never panics and never returns an error; failures
// are logged, reported to the admins and answered to the user.
func (b *Bot) Handle(ctx context.Context, u platform.Update) (handled bool) {
	ctx = logger.WithCorrelationID(ctx, "")
	v := view.New(u, b.deps.Identity.View())

	defer func() {
		if r := recover(); r != nil {
			handled = false
			metrics.RecordUpdate(string(v.Type), "panic")
			b.fail(ctx, v, apperrors.NewPanicError(r), debug.Stack())
		}
	}()

	defer b.after(ctx, v)
	b.before(ctx, v)

	var err error
	handled, err = b.deps.Dispatcher.Dispatch(ctx, v)
	if err != nil {
		metrics.RecordUpdate(string(v.Type), "error")
		b.fail(ctx, v, err, nil)
		return false
	}

	result := "ignored"
	if handled {
		result = "handled"
	}
	metrics.RecordUpdate(string(v.Type), result)
	return handled
}

func interactive(v *view.View) bool {
	switch v.Type {
	case platform.UpdateMessageCreated, platform.UpdateMessageCallback, platform.UpdateBotStarted:
		return v.ChatID != 0
	default:
		return false
	}
}

func (b *Bot) before(ctx context.Context, v *view.View) {
	if !interactive(v) || v.IsService() {
		return
	}
	if err := b.deps.Messenger.API().SendAction(ctx, v.ChatID, platform.ActionMarkSeen); err != nil {
		b.log.DebugContext(ctx, "mark seen failed", slog.Int64("chat_id", v.ChatID), slog.Any("error", err))
	}
	if b.deps.Repeater != nil && v.ChatType == platform.ChatDialog {
		b.deps.Repeater.Switch(v.ChatID, platform.ActionTypingOn, true)
	}
}

func (b *Bot) after(ctx context.Context, v *view.View) {
	defer func() {
		if r := recover(); r != nil {
			b.log.ErrorContext(ctx, "after hook panicked", slog.Any("panic", r))
		}
	}()

	if b.deps.Repeater != nil && interactive(v) {
		b.deps.Repeater.Switch(v.ChatID, platform.ActionTypingOn, false)
	}
}

// fail reports err to the logs, Sentry and the admins, then tells the user the request failed.
func (b *Bot) fail(ctx context.Context, v *view.View, err error, stack []byte) {
	key, _ := b.deps.Errors.Handle(ctx, err)

	severity := string(apperrors.SeverityHigh)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		severity = string(appErr.Severity)
	}
	metrics.RecordError("update", severity)

	alert := admin.Alert{Text: fmt.Sprintf("update %s failed: %v", v.Type, err)}
	if stack != nil {
		alert.Trace = string(stack)
	}
	if data, merr := platform.MarshalUpdate(v.Update); merr == nil {
		alert.Update = string(data)
	}
	b.deps.Admins.Alert(ctx, alert)

	b.notifyFailure(ctx, v, key)
}

func (b *Bot) notifyFailure(ctx context.Context, v *view.View, key string) {
	if v.UserID == 0 || v.Command == "" {
		return
	}

	t := b.deps.Dispatcher.Translator(ctx, v)
	msg := platform.NewMessage{Text: failureText(t, b.deps.Identity, key, v.Command)}

	if v.ChatType == platform.ChatDialog {
		msg.Link = v.Link
		if _, err := b.deps.Messenger.Send(ctx, v.Target(), msg); err != nil {
			b.log.WarnContext(ctx, "send failure notice failed", slog.Int64("user_id", v.UserID), slog.Any("error", err))
		}
		return
	}
	b.deps.Admins.SendToAdmins(ctx, msg)
}

func failureText(t i18n.Translator, id *Identity, key, command string) string {
	if key == "" {
		key = apperrors.MsgCannotComplete
	}
	if key == apperrors.MsgCannotComplete {
		return t.Tf(key, Title(t, id), command)
	}
	return t.T(key)
}

// PublishCommands sends the advertised command list to the platform.
func (b *Bot) PublishCommands(ctx context.Context, registry *Registry, t i18n.Translator) error {
	commands := registry.Published(t)
	if err := b.deps.Messenger.API().SetCommands(ctx, commands); err != nil {
		return apperrors.NewPlatformError("set commands", err)
	}
	b.log.InfoContext(ctx, "bot commands published", slog.Int("count", len(commands)))
	return nil
}

// Wait blocks until every running update finished or ctx is done.
func (b *Bot) Wait(ctx context.Context) error {
	return b.deps.Pool.Wait(ctx)
}
