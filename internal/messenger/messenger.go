// Package messenger wraps outbound platform calls with retry, long text splitting and callback notifications.
package messenger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/Proton-105/stepbot/internal/errors"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/pkg/metrics"
)

const (
	DefaultMaxAttempts = 20
	DefaultBaseDelay   = time.Second
	// RateLimitDelay is used for 429 responses whatever the base delay is.
	RateLimitDelay = 2 * time.Second
	// DefaultMaxBodyLength is the Telegram message text limit in runes.
	DefaultMaxBodyLength = 4096
)

// Messenger sends through a platform.API and retries transient failures.
type Messenger struct {
	api           platform.API
	log           *slog.Logger
	maxAttempts   int
	baseDelay     time.Duration
	maxBodyLength int
	sleep         apperrors.SleepFunc

	mu            sync.Mutex
	lastCallbacks map[int64]string
}

type Option func(*Messenger)

// WithRetry overrides the attempt budget and the base delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(m *Messenger) {
		if maxAttempts > 0 {
			m.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			m.baseDelay = baseDelay
		}
	}
}

func WithSleep(sleep apperrors.SleepFunc) Option {
	return func(m *Messenger) {
		if sleep != nil {
			m.sleep = sleep
		}
	}
}

func WithMaxBodyLength(n int) Option {
	return func(m *Messenger) {
		if n > 0 {
			m.maxBodyLength = n
		}
	}
}

func New(api platform.API, log *slog.Logger, opts ...Option) *Messenger {
	if log == nil {
		log = slog.Default()
	}

	m := &Messenger{
		api:           api,
		log:           log,
		maxAttempts:   DefaultMaxAttempts,
		baseDelay:     DefaultBaseDelay,
		maxBodyLength: DefaultMaxBodyLength,
		sleep:         apperrors.Sleep,
		lastCallbacks: make(map[int64]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// API exposes the underlying client for calls that need no retry.
func (m *Messenger) API() platform.API {
	return m.api
}

func (m *Messenger) MaxBodyLength() int {
	return m.maxBodyLength
}

func (m *Messenger) policy(method string) apperrors.RetryPolicy {
	return apperrors.RetryPolicy{
		MaxAttempts: m.maxAttempts,
		Sleep:       m.sleep,
		Delay: func(err error, _ int) (time.Duration, bool) {
			switch {
			case platform.IsTooManyRequests(err):
				return RateLimitDelay, true
			case platform.IsAttachmentNotReady(err):
				return m.baseDelay, true
			default:
				return 0, false
			}
		},
		OnRetry: func(err error, attempt int, delay time.Duration) {
			reason := "attachment_not_ready"
			if platform.IsTooManyRequests(err) {
				reason = "rate_limited"
			}
			metrics.RecordSendRetry(reason)
			m.log.Debug("retrying platform call",
				slog.String("method", method),
				slog.Int("attempt", attempt),
				slog.Duration("sleep", delay),
				slog.String("reason", reason),
			)
		},
	}
}

// Send delivers msg, retrying rate limits and attachments that are not ready yet.
func (m *Messenger) Send(ctx context.Context, to platform.Target, msg platform.NewMessage) (*platform.SentMessage, error) {
	var sent *platform.SentMessage
	err := apperrors.Retry(ctx, m.policy("send"), func(ctx context.Context) error {
		res, err := m.api.SendMessage(ctx, to, msg)
		if err != nil {
			return err
		}
		sent = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sent, nil
}

// SendLongText splits msg.Text into chunks of the max body length. Only the first chunk keeps the keyboard
// and every next chunk replies to the previous one.
func (m *Messenger) SendLongText(ctx context.Context, to platform.Target, msg platform.NewMessage) ([]*platform.SentMessage, error) {
	return m.SendChunks(ctx, to, msg, SplitText(msg.Text, m.maxBodyLength))
}

// SendChunks sends pre-split chunks threaded the same way as SendLongText.
func (m *Messenger) SendChunks(ctx context.Context, to platform.Target, msg platform.NewMessage, chunks []string) ([]*platform.SentMessage, error) {
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	results := make([]*platform.SentMessage, 0, len(chunks))
	link := msg.Link
	for i, chunk := range chunks {
		part := platform.NewMessage{Text: chunk, Link: link, Silent: msg.Silent}
		if i == 0 {
			part.Keyboard = msg.Keyboard
		}

		sent, err := m.Send(ctx, to, part)
		if err != nil {
			return results, err
		}
		if sent != nil {
			link = platform.Reply(sent.MID)
		}
		results = append(results, sent)
	}
	return results, nil
}

func (m *Messenger) Edit(ctx context.Context, mid string, msg platform.NewMessage) error {
	return apperrors.Retry(ctx, m.policy("edit"), func(ctx context.Context) error {
		return m.api.EditMessage(ctx, mid, msg)
	})
}

// Delete removes a message. Failures are logged and reported but callers usually ignore them.
func (m *Messenger) Delete(ctx context.Context, mid string) error {
	if mid == "" {
		return nil
	}

	if err := m.api.DeleteMessage(ctx, mid); err != nil {
		m.log.Debug("delete message failed", slog.String("mid", mid), slog.Any("error", err))
		return err
	}
	return nil
}

// TrackCallback remembers the latest callback seen in a chat so later notifications can answer it.
func (m *Messenger) TrackCallback(chatID int64, callbackID string) {
	if chatID == 0 || callbackID == "" {
		return
	}

	m.mu.Lock()
	m.lastCallbacks[chatID] = callbackID
	m.mu.Unlock()
}

// Notify shows a toast to the user who pressed a button. With an empty callbackID the last
// callback tracked for chatID is answered.
func (m *Messenger) Notify(ctx context.Context, chatID int64, callbackID, text string) error {
	if text == "" {
		return nil
	}

	if callbackID == "" {
		m.mu.Lock()
		callbackID = m.lastCallbacks[chatID]
		m.mu.Unlock()
	}
	if callbackID == "" {
		return nil
	}

	if err := m.api.AnswerCallback(ctx, callbackID, text); err != nil {
		m.log.Warn("answer callback failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return err
	}
	return nil
}
