// Package transport feeds updates from Telegram into the bot, by long polling or by webhook.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/stepbot/internal/errors"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/workerpool"
	"github.com/Proton-105/stepbot/pkg/metrics"
)

// Source fetches batches of raw updates.
type Source interface {
	GetUpdates(ctx context.Context, offset int, timeout time.Duration) ([]telebot.Update, error)
}

// Converter maps raw updates to platform updates.
type Converter interface {
	Convert(ctx context.Context, u *telebot.Update) []platform.Update
}

// Submitter schedules one update for processing.
type Submitter interface {
	Submit(ctx context.Context, u platform.Update) error
}

// PollerConfig controls the fetch loop.
type PollerConfig struct {
	// Timeout is the long-poll timeout passed to getUpdates.
	Timeout time.Duration
	// Sleep is the pause between two successful fetches.
	Sleep time.Duration
	// ErrorSleep is the pause after a failed fetch.
	ErrorSleep time.Duration
}

// Poller is a single-threaded fetch loop: fetch a batch, submit every update without waiting for
// it, sleep, repeat.
type Poller struct {
	src     Source
	conv    Converter
	sink    Submitter
	cfg     PollerConfig
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration)
	started func()
}

func NewPoller(src Source, conv Converter, sink Submitter, cfg PollerConfig, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		src:   src,
		conv:  conv,
		sink:  sink,
		cfg:   cfg,
		log:   log,
		sleep: sleepCtx,
	}
}

// OnStarted is called once, after the first successful fetch.
func (p *Poller) OnStarted(fn func()) {
	p.started = fn
}

// Run polls until ctx is cancelled. Only an invalid token stops it with an error.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("polling started",
		slog.Duration("timeout", p.cfg.Timeout),
		slog.Duration("sleep", p.cfg.Sleep),
		slog.Duration("error_sleep", p.cfg.ErrorSleep),
	)

	offset := 0
	for {
		if ctx.Err() != nil {
			p.log.Info("polling stopped")
			return nil
		}

		updates, err := p.src.GetUpdates(ctx, offset, p.cfg.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if platform.IsUnauthorized(err) {
				p.log.Error("polling aborted, bot token rejected", slog.Any("error", err))
				return apperrors.NewPlatformError("getUpdates", err)
			}
			p.log.Warn("fetch updates failed", slog.Any("error", err), slog.String("outcome", apperrors.Classify(err).String()))
			metrics.RecordInbound("poll", "fetch_error")
			p.sleep(ctx, p.cfg.ErrorSleep)
			continue
		}

		if p.started != nil {
			p.started()
			p.started = nil
		}

		for i := range updates {
			if updates[i].ID >= offset {
				offset = updates[i].ID + 1
			}
			p.dispatch(ctx, &updates[i])
		}

		p.sleep(ctx, p.cfg.Sleep)
	}
}

func (p *Poller) dispatch(ctx context.Context, raw *telebot.Update) {
	converted := p.conv.Convert(ctx, raw)
	if len(converted) == 0 {
		metrics.RecordInbound("poll", "skipped")
		return
	}

	for _, u := range converted {
		err := p.sink.Submit(ctx, u)
		switch {
		case err == nil:
			metrics.RecordInbound("poll", "submitted")
		case errors.Is(err, workerpool.ErrPoolFull):
			metrics.RecordInbound("poll", "rejected")
		default:
			metrics.RecordInbound("poll", "error")
			p.log.Error("submit update failed", slog.Int("update_id", raw.ID), slog.Any("error", err))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
