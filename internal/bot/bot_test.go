package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stepbot/internal/admin"
	"github.com/Proton-105/stepbot/internal/bot/handlers"
	"github.com/Proton-105/stepbot/internal/bot/keyboard"
	"github.com/Proton-105/stepbot/internal/chats"
	"github.com/Proton-105/stepbot/internal/database/databasetest"
	"github.com/Proton-105/stepbot/internal/dedup"
	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/locale"
	"github.com/Proton-105/stepbot/internal/messenger"
	"github.com/Proton-105/stepbot/internal/paramcodec"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/platform/platformtest"
	"github.com/Proton-105/stepbot/internal/repeater"
	"github.com/Proton-105/stepbot/internal/step"
	"github.com/Proton-105/stepbot/internal/view"
	"github.com/Proton-105/stepbot/internal/workerpool"
)

const (
	dialogChat = int64(10)
	groupChat  = int64(-20)
	userID     = int64(7)
	adminUser  = int64(900)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	api      *platformtest.API
	bot      *Bot
	registry *Registry
	steps    step.Store
	locales  locale.Repository
	pager    *keyboard.Pager
	repeater *repeater.Repeater
	mid      int
	// userLocale is the platform locale of the test user.
	userLocale string
}

type harnessOptions struct {
	maxInFlight int
	waiting     bool
	typing      bool
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	log := testLogger()
	ctx := context.Background()

	db := databasetest.Open(t)
	api := platformtest.New()
	m := messenger.New(api, log, messenger.WithSleep(func(context.Context, time.Duration) error { return nil }))

	identity := NewIdentity("")
	_, err := identity.Load(ctx, api)
	require.NoError(t, err)

	translations, err := i18n.Load("ru", "")
	require.NoError(t, err)

	localeRepo := locale.NewSQLRepository(db, log)
	locales := locale.NewService(localeRepo, locale.ParseLanguages("ru=Русский:en=English"), log)
	steps := step.NewSQLStore(db, log)

	notifier := admin.NewNotifier(m, admin.ParseContacts("users:900;"), identity.Username(), log)

	cache, err := keyboard.NewCache(time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	pager := keyboard.NewPager(m, cache, notifier, identity.Username, log)

	chatRepo := chats.NewSQLRepository(db, log)
	registry := NewRegistry()
	RegisterBuiltins(registry, BuiltinDeps{
		Messenger:   m,
		Locales:     locales,
		Translators: translations,
		Discovery:   chats.NewDiscovery(chatRepo, api, identity.UserID, log),
		Pager:       pager,
	}, log)
	require.NoError(t, registry.Validate(BuiltinCommands))

	dispatcher := NewDispatcher(DispatcherDeps{
		Registry:    registry,
		Steps:       steps,
		Locales:     locales,
		Translators: translations,
		Messenger:   m,
		Dedup:       dedup.New(dedup.DefaultThreshold),
		Identity:    identity,
		Waiting:     opts.waiting,
	}, log)

	var typing *repeater.Repeater
	if opts.typing {
		typing = repeater.New(api, time.Hour, log)
		t.Cleanup(typing.Stop)
	}

	b := New(Deps{
		Dispatcher: dispatcher,
		Pool:       workerpool.New(opts.maxInFlight, log),
		Messenger:  m,
		Identity:   identity,
		Admins:     notifier,
		Repeater:   typing,
	}, log)

	return &harness{api: api, bot: b, registry: registry, steps: steps, locales: localeRepo, pager: pager, repeater: typing, userLocale: "en"}
}

func (h *harness) nextMID() string {
	h.mid++
	return fmt.Sprintf("in:%d", h.mid)
}

func (h *harness) text(chatID int64, body string) *platform.MessageCreated {
	chatType := platform.ChatDialog
	if chatID < 0 {
		chatType = platform.ChatGroup
	}
	return &platform.MessageCreated{
		Timestamp: time.Now().UnixMilli(),
		Message: platform.Message{
			Sender:    &platform.User{UserID: userID, Name: "Ann", Locale: h.userLocale},
			Recipient: platform.Recipient{ChatID: chatID, ChatType: chatType},
			Body:      platform.MessageBody{MID: h.nextMID(), Text: body},
		},
	}
}

func (h *harness) callback(chatID int64, payload string) *platform.MessageCallback {
	chatType := platform.ChatDialog
	if chatID < 0 {
		chatType = platform.ChatGroup
	}
	mid := h.nextMID()
	return &platform.MessageCallback{
		Timestamp: time.Now().UnixMilli(),
		Callback: platform.Callback{
			CallbackID: "cb-" + mid,
			Payload:    payload,
			User:       platform.User{UserID: userID, Name: "Ann", Locale: h.userLocale},
		},
		Message: &platform.Message{
			Recipient: platform.Recipient{ChatID: chatID, ChatType: chatType},
			Body:      platform.MessageBody{MID: mid},
		},
	}
}

func (h *harness) sentTo(target platform.Target) []platformtest.Sent {
	var out []platformtest.Sent
	for _, s := range h.api.Sent {
		if s.To == target {
			out = append(out, s)
		}
	}
	return out
}

func payload(command string, args paramcodec.Args) string {
	return paramcodec.Payload{Bot: "step_bot", Command: command, Args: args}.String()
}

func TestRegistry_ValidateAndPublish(t *testing.T) {
	r := NewRegistry()
	r.Register(Command{Name: "/Start"}, func(context.Context, *handlers.Request) (handlers.Result, error) { return handlers.Done, nil })
	r.Register(Command{Name: "internal", Hidden: true}, func(context.Context, *handlers.Request) (handlers.Result, error) { return handlers.Done, nil })

	_, ok := r.Lookup("start")
	assert.True(t, ok)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	err := r.Validate([]string{"start", "menu", "help"})
	require.ErrorIs(t, err, ErrMissingHandler)
	assert.Contains(t, err.Error(), "help, menu")
	assert.NoError(t, r.Validate([]string{"start", "internal"}))

	translations, err := i18n.Load("en", "")
	require.NoError(t, err)
	published := r.Published(translations.Translator("en"))
	assert.Equal(t, []platform.Command{{Name: "start", Description: "start (about bot)"}}, published)
}

func TestRegistry_MiddlewareOrder(t *testing.T) {
	r := NewRegistry()
	var calls []string
	mw := func(name string) handlers.Middleware {
		return func(next handlers.Handler) handlers.Handler {
			return func(ctx context.Context, req *handlers.Request) (handlers.Result, error) {
				calls = append(calls, name)
				return next(ctx, req)
			}
		}
	}
	r.Use(mw("outer"))
	r.Use(mw("inner"))
	r.Register(Command{Name: "x"}, func(context.Context, *handlers.Request) (handlers.Result, error) {
		calls = append(calls, "handler")
		return handlers.Done, nil
	})

	h, ok := r.Lookup("x")
	require.True(t, ok)
	_, err := h(context.Background(), &handlers.Request{View: &view.View{}})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, calls)
}

func TestHandle_SetLanguageEndToEnd(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.userLocale = "ru"
	ctx := context.Background()

	assert.True(t, h.bot.Handle(ctx, h.text(dialogChat, "/set_language")))
	require.Len(t, h.api.Sent, 1)
	assert.Equal(t, "Выберите язык бота:", h.api.Sent[0].Msg.Text)
	picker := h.api.Sent[0].Msg.Keyboard
	require.Len(t, picker, 2)
	assert.Equal(t, "Русский", picker[0][0].Text)
	assert.Equal(t, "English", picker[1][0].Text)

	exists, err := h.steps.Exists(ctx, view.Index(dialogChat, userID))
	require.NoError(t, err)
	assert.False(t, exists)

	press := h.callback(dialogChat, picker[1][0].Payload)
	assert.True(t, h.bot.Handle(ctx, press))

	stored, ok, err := h.locales.Get(ctx, userID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "en", stored)

	texts := h.api.SentTexts()
	assert.Equal(t, "Bot language configured: English", texts[len(texts)-1])
	assert.Contains(t, h.api.Deleted, press.Message.Body.MID)
}

func TestHandle_MenuInGroup(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	assert.True(t, h.bot.Handle(context.Background(), h.text(groupChat, "/menu")))

	sent := h.sentTo(platform.ToChat(groupChat))
	require.Len(t, sent, 1)
	assert.Equal(t, "Main menu", sent[0].Msg.Text)
	require.Len(t, sent[0].Msg.Keyboard, 4)
	assert.Equal(t, platform.ButtonLink, sent[0].Msg.Keyboard[2][0].Kind)
}

func TestHandle_AddressedGroupCommand(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	assert.True(t, h.bot.Handle(context.Background(), h.text(groupChat, "@step_bot /menu")))
	assert.Equal(t, []string{"Main menu"}, h.api.SentTexts())
}

func TestHandle_CommandForAnotherBot(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	other := paramcodec.Payload{Bot: "other_bot", Command: "menu"}.String()
	assert.False(t, h.bot.Handle(ctx, h.callback(groupChat, other)))
	assert.False(t, h.bot.Handle(ctx, h.text(groupChat, "/menu@other_bot")))

	assert.Zero(t, h.api.SentCount())
	assert.Empty(t, h.api.Deleted)
	all, err := h.steps.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestHandle_DialogIgnoresBotAddressing(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	calls := 0
	h.registry.Register(Command{Name: "ping"}, func(_ context.Context, req *handlers.Request) (handlers.Result, error) {
		calls++
		req.KeepMessage()
		return handlers.Done, nil
	})

	press := paramcodec.Payload{Bot: "other_bot", Command: "ping"}.String()
	assert.True(t, h.bot.Handle(ctx, h.callback(dialogChat, press)))
	assert.Equal(t, 1, calls)

	assert.False(t, h.bot.Handle(ctx, h.callback(groupChat, press)))
	assert.Equal(t, 1, calls)
}

func TestHandle_PendingStepIsOneShot(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	index := view.Index(dialogChat, userID)

	var replies []string
	var previous []string
	h.registry.Register(Command{Name: "ask"}, func(_ context.Context, req *handlers.Request) (handlers.Result, error) {
		if req.View.IsReply {
			replies = append(replies, req.View.RawArgs)
			previous = append(previous, req.View.Previous.Text())
			// Asking again from a reply does not extend the conversation.
			return handlers.AwaitReply, nil
		}
		return handlers.AwaitReply, nil
	})

	first := h.text(dialogChat, "/ask first")
	assert.True(t, h.bot.Handle(ctx, first))
	exists, err := h.steps.Exists(ctx, index)
	require.NoError(t, err)
	assert.True(t, exists)

	assert.True(t, h.bot.Handle(ctx, h.text(dialogChat, "42")))
	assert.Equal(t, []string{"42"}, replies)
	assert.Equal(t, []string{"/ask first"}, previous)

	exists, err = h.steps.Exists(ctx, index)
	require.NoError(t, err)
	assert.False(t, exists)

	// Without a pending step plain text is not routed anywhere.
	assert.False(t, h.bot.Handle(ctx, h.text(dialogChat, "43")))
	assert.Len(t, replies, 1)
}

func TestHandle_FreshCommandReplacesStaleStep(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	h.registry.Register(Command{Name: "ask"}, func(context.Context, *handlers.Request) (handlers.Result, error) {
		return handlers.AwaitReply, nil
	})

	require.True(t, h.bot.Handle(ctx, h.text(dialogChat, "/ask one")))
	require.True(t, h.bot.Handle(ctx, h.text(dialogChat, "/ask two")))

	u, err := h.steps.Get(ctx, view.Index(dialogChat, userID))
	require.NoError(t, err)
	created, ok := u.(*platform.MessageCreated)
	require.True(t, ok)
	assert.Equal(t, "/ask two", created.Message.Body.Text)
}

func TestHandle_UnknownCommandDropsPendingStep(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	index := view.Index(dialogChat, userID)

	h.registry.Register(Command{Name: "ask"}, func(context.Context, *handlers.Request) (handlers.Result, error) {
		return handlers.AwaitReply, nil
	})

	require.True(t, h.bot.Handle(ctx, h.text(dialogChat, "/ask")))
	exists, err := h.steps.Exists(ctx, index)
	require.NoError(t, err)
	require.True(t, exists)

	assert.False(t, h.bot.Handle(ctx, h.text(dialogChat, "/nosuch")))
	exists, err = h.steps.Exists(ctx, index)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHandle_ReplyFailureStillClearsStep(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	h.registry.Register(Command{Name: "ask"}, func(_ context.Context, req *handlers.Request) (handlers.Result, error) {
		if req.View.IsReply {
			panic("reply exploded")
		}
		return handlers.AwaitReply, nil
	})

	require.True(t, h.bot.Handle(ctx, h.text(dialogChat, "/ask")))
	assert.False(t, h.bot.Handle(ctx, h.text(dialogChat, "boom")))

	exists, err := h.steps.Exists(ctx, view.Index(dialogChat, userID))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHandle_UnknownCommand(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	assert.False(t, h.bot.Handle(ctx, h.text(dialogChat, "/nope")))
	assert.Equal(t, []string{`"nope" is an incorrect command. Please specify.`}, h.api.SentTexts())

	press := h.callback(dialogChat, payload("nope", nil))
	assert.False(t, h.bot.Handle(ctx, press))
	require.Len(t, h.api.Answers, 1)
	assert.Equal(t, press.Callback.CallbackID, h.api.Answers[0].CallbackID)

	assert.True(t, h.bot.Handle(ctx, h.callback(dialogChat, payload("+", nil))))
	assert.False(t, h.bot.Handle(ctx, h.callback(dialogChat, payload("-", nil))))
	assert.Len(t, h.api.Answers, 1)
}

func TestHandle_EmptyCallbackDeletesMessage(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	press := h.callback(dialogChat, "")
	assert.True(t, h.bot.Handle(context.Background(), press))
	assert.Equal(t, []string{press.Message.Body.MID}, h.api.Deleted)
}

func TestHandle_ServiceMessageIgnored(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	assert.False(t, h.bot.Handle(context.Background(), h.text(dialogChat, "/menu"+view.ServiceMarker)))
	assert.Zero(t, h.api.SentCount())
}

func TestHandle_DoubleTapIsFlagged(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	var taps []bool
	h.registry.Register(Command{Name: "tap"}, func(_ context.Context, req *handlers.Request) (handlers.Result, error) {
		taps = append(taps, req.View.DoubleTap)
		req.KeepMessage()
		return handlers.Done, nil
	})

	p := payload("tap", paramcodec.Args{"n": 1})
	require.True(t, h.bot.Handle(ctx, h.callback(dialogChat, p)))
	require.True(t, h.bot.Handle(ctx, h.callback(dialogChat, p)))
	assert.Equal(t, []bool{false, true}, taps)
	assert.Empty(t, h.api.Deleted)
}

func TestHandle_DoubleTapUsesPressTime(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	var taps []bool
	h.registry.Register(Command{Name: "tap"}, func(_ context.Context, req *handlers.Request) (handlers.Result, error) {
		taps = append(taps, req.View.DoubleTap)
		req.KeepMessage()
		return handlers.Done, nil
	})

	p := payload("tap", paramcodec.Args{"n": 2})
	base := time.Now().Add(-time.Hour).UnixMilli()
	for _, at := range []int64{base, base + 5000, base + 5200} {
		press := h.callback(dialogChat, p)
		press.Timestamp = at
		require.True(t, h.bot.Handle(ctx, press))
	}
	assert.Equal(t, []bool{false, false, true}, taps)
}

func TestHandle_TypingStopsWhenBeforeHookPanics(t *testing.T) {
	h := newHarness(t, harnessOptions{typing: true})
	ctx := context.Background()

	h.api.OnAction = func(_ int64, action platform.Action) {
		if action == platform.ActionMarkSeen {
			panic("mark seen exploded")
		}
	}

	h.repeater.Switch(dialogChat, platform.ActionTypingOn, true)
	require.True(t, h.repeater.Active(dialogChat))

	assert.False(t, h.bot.Handle(ctx, h.text(dialogChat, "/menu")))
	assert.False(t, h.repeater.Active(dialogChat))
}

func TestHandle_WaitingPlaceholder(t *testing.T) {
	h := newHarness(t, harnessOptions{waiting: true})

	require.True(t, h.bot.Handle(context.Background(), h.text(dialogChat, "/menu")))
	require.Len(t, h.api.Sent, 2)

	placeholder := h.api.Sent[0]
	assert.True(t, strings.HasSuffix(placeholder.Msg.Text, view.ServiceMarker))
	assert.Contains(t, placeholder.Msg.Text, "(menu)")
	assert.Equal(t, []string{placeholder.MID}, h.api.Deleted)
}

func TestHandle_FailureIsReported(t *testing.T) {
	testCases := []struct {
		name       string
		chatID     int64
		userNotice bool
	}{
		{name: "dialog answers the user", chatID: dialogChat, userNotice: true},
		{name: "group notice goes to admins", chatID: groupChat, userNotice: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, harnessOptions{})
			h.registry.Register(Command{Name: "explode"}, func(context.Context, *handlers.Request) (handlers.Result, error) {
				panic("kaboom")
			})

			assert.False(t, h.bot.Handle(context.Background(), h.text(tc.chatID, "/explode")))

			toAdmin := h.sentTo(platform.ToUser(adminUser))
			require.GreaterOrEqual(t, len(toAdmin), 2)
			assert.Contains(t, toAdmin[0].Msg.Text, "kaboom")

			var updateAttached bool
			for _, s := range toAdmin[1:] {
				if strings.Contains(s.Msg.Text, `"update_type":"message_created"`) {
					updateAttached = true
					assert.NotNil(t, s.Msg.Link)
				}
			}
			assert.True(t, updateAttached)

			notice := "Your request (explode) cannot be completed at this time"
			toChat := h.sentTo(platform.ToChat(tc.chatID))
			if tc.userNotice {
				require.Len(t, toChat, 1)
				assert.Contains(t, toChat[0].Msg.Text, notice)
				return
			}
			assert.Empty(t, toChat)
			assert.Contains(t, toAdmin[len(toAdmin)-1].Msg.Text, notice)
		})
	}
}

func TestHandle_HandlerErrorIsReported(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	h.registry.Register(Command{Name: "fail"}, func(context.Context, *handlers.Request) (handlers.Result, error) {
		return handlers.Done, errors.New("backend down")
	})

	assert.False(t, h.bot.Handle(context.Background(), h.text(dialogChat, "/fail")))
	toAdmin := h.sentTo(platform.ToUser(adminUser))
	require.NotEmpty(t, toAdmin)
	assert.Contains(t, toAdmin[0].Msg.Text, "backend down")
}

func TestSubmit_ShedsWhenFull(t *testing.T) {
	h := newHarness(t, harnessOptions{maxInFlight: 1})
	ctx := context.Background()

	release := make(chan struct{})
	var started atomic.Bool
	h.registry.Register(Command{Name: "slow"}, func(context.Context, *handlers.Request) (handlers.Result, error) {
		started.Store(true)
		<-release
		return handlers.Done, nil
	})

	require.NoError(t, h.bot.Submit(ctx, h.text(dialogChat, "/slow")))
	require.Eventually(t, started.Load, time.Second, 5*time.Millisecond)

	err := h.bot.Submit(ctx, h.text(-30, "/menu"))
	require.ErrorIs(t, err, workerpool.ErrPoolFull)

	rejected := h.sentTo(platform.ToChat(-30))
	require.Len(t, rejected, 1)
	assert.Contains(t, rejected[0].Msg.Text, "(menu)")

	toAdmin := h.sentTo(platform.ToUser(adminUser))
	require.Len(t, toAdmin, 1)
	assert.Contains(t, toAdmin[0].Msg.Text, "Threads pool is full. The maximum number (1) is used.")

	close(release)
	require.NoError(t, h.bot.Wait(ctx))
}

func TestHandle_PagedListNavigation(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	list := make(platform.Keyboard, 0, 37)
	for i := 0; i < 37; i++ {
		list = append(list, []platform.Button{keyboard.Command("step_bot", fmt.Sprintf("item %d", i), "pick", paramcodec.Args{"i": i}, platform.IntentDefault)})
	}
	sent, err := h.pager.Show(ctx, keyboard.View{Title: "Pick", Items: list, To: platform.ToChat(dialogChat), Options: keyboard.PageOptions{MaxLines: 10, AddClose: true}})
	require.NoError(t, err)

	kb := h.api.Sent[0].Msg.Keyboard
	nav := kb[len(kb)-1]
	require.Len(t, nav, 2)

	forward := h.callback(dialogChat, nav[0].Payload)
	forward.Message.Body.MID = sent.MID
	assert.True(t, h.bot.Handle(ctx, forward))
	require.Len(t, h.api.Edited, 1)
	assert.Equal(t, "item 10", h.api.Edited[0].Msg.Keyboard[0][0].Text)
	assert.Empty(t, h.api.Deleted)

	closing := h.callback(dialogChat, nav[1].Payload)
	closing.Message.Body.MID = sent.MID
	assert.True(t, h.bot.Handle(ctx, closing))
	assert.Equal(t, []string{sent.MID}, h.api.Deleted)

	lost := h.callback(dialogChat, nav[0].Payload)
	lost.Message.Body.MID = sent.MID
	assert.True(t, h.bot.Handle(ctx, lost))
	require.NotEmpty(t, h.api.Answers)
	assert.Equal(t, "Something went wrong...", h.api.Answers[len(h.api.Answers)-1].Notification)
}
