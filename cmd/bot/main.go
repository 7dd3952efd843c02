package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/stepbot/internal/admin"
	"github.com/Proton-105/stepbot/internal/bot"
	"github.com/Proton-105/stepbot/internal/bot/keyboard"
	"github.com/Proton-105/stepbot/internal/chats"
	"github.com/Proton-105/stepbot/internal/database"
	"github.com/Proton-105/stepbot/internal/dedup"
	apperrors "github.com/Proton-105/stepbot/internal/errors"
	"github.com/Proton-105/stepbot/internal/health"
	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/idempotency"
	"github.com/Proton-105/stepbot/internal/jobs"
	"github.com/Proton-105/stepbot/internal/lifecycle"
	"github.com/Proton-105/stepbot/internal/locale"
	"github.com/Proton-105/stepbot/internal/messenger"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/platform/telegram"
	"github.com/Proton-105/stepbot/internal/repeater"
	"github.com/Proton-105/stepbot/internal/step"
	"github.com/Proton-105/stepbot/internal/transport"
	"github.com/Proton-105/stepbot/internal/workerpool"
	"github.com/Proton-105/stepbot/pkg/config"
	"github.com/Proton-105/stepbot/pkg/graceful"
	"github.com/Proton-105/stepbot/pkg/logger"
	redisclient "github.com/Proton-105/stepbot/pkg/redis"
)

const (
	shutdownTimeout     = 30 * time.Second
	maintenanceInterval = time.Minute
	alertWorkers        = 2
)

func main() {
	if err := run(); err != nil {
		slog.Error("bot stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled() {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	log := logger.New(cfg.Logger, logger.Options{
		Sentry:  cfg.Sentry.Enabled(),
		Secrets: []string{cfg.Bot.Token, cfg.Transport.WebhookSecret, cfg.Redis.Password},
	})
	slog.SetDefault(log)
	log.Info("starting bot",
		slog.String("env", cfg.AppEnv),
		slog.String("config_file", v.ConfigFileUsed()),
		slog.String("transport", cfg.Transport.Mode),
		slog.String("step_backend", cfg.Step.Backend),
	)

	shutdown := lifecycle.NewShutdown(log)
	if cfg.Sentry.Enabled() {
		shutdown.Register("sentry", func(context.Context) error {
			sentry.Flush(2 * time.Second)
			return nil
		})
	}

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	shutdown.Register("database", func(context.Context) error {
		database.Close(db, log)
		return nil
	})

	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redisclient.New(ctx, redisclient.FromConfig(cfg.Redis))
		if err != nil {
			_ = shutdown.Execute(context.Background())
			return fmt.Errorf("connect redis: %w", err)
		}
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	}

	app, err := assemble(ctx, cfg, db, rdb, shutdown, log)
	if err == nil {
		err = app.serve(ctx, cfg, log)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := shutdown.Execute(stopCtx); shutdownErr != nil {
		log.Error("shutdown incomplete", slog.Any("error", shutdownErr))
	}
	return err
}

// application is everything serve needs once the bot is assembled.
type application struct {
	adapter *telegram.Adapter
	bot     *bot.Bot
	conv    *telegram.Converter
	probes  *lifecycle.Probes
	status  *health.Checker
	guard   idempotency.Guard
	worker  jobs.Worker
	i18n    *i18n.Manager
}

func assemble(ctx context.Context, cfg *config.Config, db *sqlx.DB, rdb *goredis.Client, shutdown *lifecycle.Shutdown, log *slog.Logger) (*application, error) {
	var (
		steps    step.Store
		payloads telegram.PayloadStore
		guard    idempotency.Guard
	)
	switch {
	case cfg.Step.Backend == "redis" && rdb == nil:
		return nil, errors.New("step backend redis needs redis.addr")
	case cfg.Step.Backend == "redis":
		steps = step.NewRedisStore(rdb, 0, log)
	default:
		steps = step.NewSQLStore(db, log)
	}
	// Redis entries expire on their own; the in-memory guard is pruned by a job.
	var prunable jobs.Pruner
	if rdb != nil {
		payloads = telegram.NewRedisPayloadStore(rdb)
		guard = idempotency.NewRedisGuard(rdb, log)
	} else {
		memoryGuard := idempotency.NewMemoryGuard()
		payloads = telegram.NewMemoryPayloadStore()
		guard = memoryGuard
		prunable = memoryGuard
	}

	adapter, err := telegram.New(telegram.Settings{Token: cfg.Bot.Token}, payloads, log)
	if err != nil {
		return nil, err
	}
	msgr := messenger.New(adapter, log)

	identity := bot.NewIdentity(cfg.Bot.Username)
	notifier := admin.NewNotifier(msgr, admin.ParseContacts(cfg.Bot.AdminsContacts), cfg.Bot.Username, log)
	var alerter admin.Alerter = notifier
	var worker jobs.Worker
	if cfg.Admin.AlertsAsync && rdb != nil {
		manager := jobs.NewManager(jobs.RedisOpt(cfg.Redis), log)
		shutdown.Register("alert queue", func(context.Context) error { return manager.Close() })
		alerter = admin.NewQueue(manager, notifier, log)

		worker = jobs.NewWorker(jobs.RedisOpt(cfg.Redis), alertWorkers, log)
		worker.RegisterHandler(admin.TaskTypeAlert, admin.NewAlertHandler(notifier, log))
	}
	channel := adminChannel{Alerter: alerter, notifier: notifier}

	me, err := identity.Load(ctx, adapter)
	if err != nil {
		return nil, apperrors.NewPlatformError("getMe", err)
	}
	notifier.SetBotName(me.Username)
	log.Info("bot identity loaded", slog.Int64("user_id", me.UserID), slog.String("username", me.Username))

	locales := locale.NewService(locale.NewSQLRepository(db, log), locale.ParseLanguages(cfg.Bot.Languages), log)
	catalogs, err := i18n.Load(locales.Default(), cfg.Locales.Dir)
	if err != nil {
		return nil, err
	}

	pages, err := keyboard.NewCache(keyboard.DefaultCacheTTL)
	if err != nil {
		return nil, err
	}
	shutdown.Register("keyboard cache", func(context.Context) error { return pages.Close() })
	pager := keyboard.NewPager(msgr, pages, alerter, identity.Username, log)

	chatRepo := chats.NewSQLRepository(db, log)
	chatRegistry := chats.NewRegistry(chatRepo, log)
	discovery := chats.NewDiscovery(chatRepo, adapter, identity.UserID, log)

	registry := bot.NewRegistry()
	bot.RegisterBuiltins(registry, bot.BuiltinDeps{
		Messenger:   msgr,
		Locales:     locales,
		Translators: catalogs,
		Discovery:   discovery,
		Pager:       pager,
	}, log)
	if err := registry.Validate(bot.BuiltinCommands); err != nil {
		return nil, err
	}

	detector := dedup.New(dedup.DefaultThreshold)
	dispatcher := bot.NewDispatcher(bot.DispatcherDeps{
		Registry:    registry,
		Steps:       steps,
		Locales:     locales,
		Translators: catalogs,
		Messenger:   msgr,
		Dedup:       detector,
		Identity:    identity,
		Waiting:     cfg.Bot.WaitingMessage,
	}, log)
	for _, t := range []platform.UpdateType{
		platform.UpdateBotAdded,
		platform.UpdateBotRemoved,
		platform.UpdateChatTitleChanged,
		platform.UpdateMessageCreated,
	} {
		dispatcher.On(t, chatRegistry.Track)
	}

	typing := repeater.New(adapter, repeater.DefaultInterval, log)
	shutdown.Register("typing repeater", func(context.Context) error {
		typing.Stop()
		return nil
	})

	pool := workerpool.New(cfg.Bot.WorkThreadsMaxCount, log)
	b := bot.New(bot.Deps{
		Dispatcher: dispatcher,
		Pool:       pool,
		Messenger:  msgr,
		Identity:   identity,
		Admins:     channel,
		Errors:     apperrors.NewHandler(log, cfg.Sentry.Enabled()),
		Repeater:   typing,
	}, log)
	shutdown.Register("bot", b.Wait)

	if err := b.PublishCommands(ctx, registry, catalogs.Translator(locales.Default())); err != nil {
		log.Warn("bot commands not published", slog.Any("error", err))
	}

	scheduler, err := jobs.NewScheduler(ctx, log)
	if err != nil {
		return nil, err
	}
	maintenance := jobs.MaintenanceDeps{Dedup: detector, Guard: prunable, Steps: steps}
	if err := jobs.RegisterMaintenance(scheduler, maintenance, maintenanceInterval, log); err != nil {
		return nil, err
	}
	scheduler.Start()
	shutdown.Register("scheduler", func(context.Context) error { return scheduler.Shutdown() })

	status := health.NewChecker(log)
	status.AddCheck("database", health.NewDBChecker(db.DB))
	if rdb != nil {
		status.AddCheck("redis", health.NewRedisChecker(rdb))
	}
	status.AddCheck("identity", health.NewIdentityChecker(identity.UserID))

	conv := telegram.NewConverter(payloads, identity.UserID, log)

	return &application{
		adapter: adapter,
		bot:     b,
		conv:    conv,
		probes:  lifecycle.NewProbes(status, log),
		status:  status,
		guard:   guard,
		worker:  worker,
		i18n:    catalogs,
	}, nil
}

// serve runs the transport, the HTTP surface and the background workers until ctx is done or
// one of them fails.
func (a *application) serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	deps := transport.RouterDeps{Probes: a.probes, Status: a.status}

	switch cfg.Transport.Mode {
	case "webhook":
		if err := a.adapter.SetWebhook(ctx, cfg.Transport.WebhookURL, cfg.Transport.WebhookSecret); err != nil {
			return apperrors.NewPlatformError("setWebhook", err)
		}
		deps.Webhook = transport.NewWebhook(a.conv, a.bot, a.guard, cfg.Transport.WebhookSecret, log)
		a.probes.SetReady(true)
		log.Info("webhook registered", slog.String("url", cfg.Transport.WebhookURL))
	default:
		if err := a.adapter.DeleteWebhook(ctx); err != nil {
			return apperrors.NewPlatformError("deleteWebhook", err)
		}
		poller := transport.NewPoller(a.adapter, a.conv, a.bot, transport.PollerConfig{
			Timeout:    time.Duration(cfg.Transport.PollingTimeout) * time.Second,
			Sleep:      cfg.Transport.PollingSleep(),
			ErrorSleep: cfg.Transport.PollingErrorSleep(),
		}, log)
		poller.OnStarted(func() { a.probes.SetReady(true) })
		g.Go(func() error { return poller.Run(gctx) })
	}

	srv := &http.Server{
		Addr:              cfg.Transport.HTTPAddr,
		Handler:           transport.NewRouter(deps, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error { return graceful.NewServer(log, srv, shutdownTimeout).ListenAndServe(gctx) })

	if cfg.Locales.Dir != "" {
		g.Go(func() error {
			if err := a.i18n.Watch(gctx, cfg.Locales.Dir, log); err != nil {
				log.Warn("translation hot reload disabled", slog.Any("error", err))
			}
			return nil
		})
	}

	if a.worker != nil {
		g.Go(func() error { return a.worker.Run(gctx) })
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// adminChannel routes alerts through the configured alerter and direct admin messages through
// the notifier.
type adminChannel struct {
	admin.Alerter
	notifier *admin.Notifier
}

func (c adminChannel) SendToAdmins(ctx context.Context, msg platform.NewMessage) {
	c.notifier.SendToAdmins(ctx, msg)
}
