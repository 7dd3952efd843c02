package messenger

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/stepbot/internal/errors"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/platform/platformtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func notReady() error {
	return &platform.APIError{Status: http.StatusBadRequest, Code: platform.CodeAttachmentNotReady, Description: "not ready"}
}

func tooMany() error {
	return &platform.APIError{Status: http.StatusTooManyRequests, Description: "flood"}
}

func newTestMessenger(api platform.API, rec *sleepRecorder, opts ...Option) *Messenger {
	opts = append([]Option{WithSleep(rec.sleep)}, opts...)
	return New(api, testLogger(), opts...)
}

func TestSend_RetriesAttachmentNotReady(t *testing.T) {
	api := platformtest.New()
	api.FailNext("SendMessage", notReady(), notReady())
	rec := &sleepRecorder{}
	m := newTestMessenger(api, rec)

	sent, err := m.Send(context.Background(), platform.ToChat(7), platform.NewMessage{Text: "hi"})
	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, int64(7), sent.ChatID)
	assert.Equal(t, []time.Duration{DefaultBaseDelay, DefaultBaseDelay}, rec.delays)
	assert.Equal(t, 1, api.SentCount())
}

func TestSend_RateLimitUsesFixedDelay(t *testing.T) {
	api := platformtest.New()
	api.FailNext("SendMessage", tooMany())
	rec := &sleepRecorder{}
	m := newTestMessenger(api, rec, WithRetry(5, 10*time.Millisecond))

	_, err := m.Send(context.Background(), platform.ToChat(1), platform.NewMessage{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{RateLimitDelay}, rec.delays)
}

func TestSend_OtherErrorsAbortImmediately(t *testing.T) {
	api := platformtest.New()
	forbidden := &platform.APIError{Status: http.StatusForbidden, Description: "blocked"}
	api.FailNext("SendMessage", forbidden)
	rec := &sleepRecorder{}
	m := newTestMessenger(api, rec)

	_, err := m.Send(context.Background(), platform.ToUser(1), platform.NewMessage{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, forbidden)
	assert.Empty(t, rec.delays)
	assert.Zero(t, api.SentCount())
}

func TestSend_ExhaustionPropagatesLastError(t *testing.T) {
	api := platformtest.New()
	api.FailNext("SendMessage", notReady(), notReady(), notReady())
	rec := &sleepRecorder{}
	m := newTestMessenger(api, rec, WithRetry(3, time.Second))

	_, err := m.Send(context.Background(), platform.ToChat(1), platform.NewMessage{Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRetriesExhausted)
	assert.True(t, platform.IsAttachmentNotReady(err))
	assert.Len(t, rec.delays, 2)
}

func TestSendLongText_ThreadsChunks(t *testing.T) {
	api := platformtest.New()
	rec := &sleepRecorder{}
	m := newTestMessenger(api, rec, WithMaxBodyLength(5))

	keyboard := platform.Keyboard{{platform.CallbackButton("ok", "{}", platform.IntentDefault)}}
	results, err := m.SendLongText(context.Background(), platform.ToChat(3), platform.NewMessage{
		Text:     "abcdefghijkl",
		Link:     platform.Reply("3:0"),
		Keyboard: keyboard,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, []string{"abcde", "fghij", "kl"}, api.SentTexts())
	assert.Equal(t, keyboard, api.Sent[0].Msg.Keyboard)
	assert.Nil(t, api.Sent[1].Msg.Keyboard)
	assert.Equal(t, "3:0", api.Sent[0].Msg.Link.MID)
	assert.Equal(t, results[0].MID, api.Sent[1].Msg.Link.MID)
	assert.Equal(t, results[1].MID, api.Sent[2].Msg.Link.MID)
}

func TestNotify_FallsBackToTrackedCallback(t *testing.T) {
	api := platformtest.New()
	m := newTestMessenger(api, &sleepRecorder{})

	require.NoError(t, m.Notify(context.Background(), 5, "", "nothing tracked"))
	assert.Empty(t, api.Answers)

	m.TrackCallback(5, "cb-1")
	require.NoError(t, m.Notify(context.Background(), 5, "", "hello"))
	require.NoError(t, m.Notify(context.Background(), 5, "cb-2", "direct"))

	require.Len(t, api.Answers, 2)
	assert.Equal(t, platformtest.Answer{CallbackID: "cb-1", Notification: "hello"}, api.Answers[0])
	assert.Equal(t, "cb-2", api.Answers[1].CallbackID)
}

func TestDelete_ReportsFailure(t *testing.T) {
	api := platformtest.New()
	api.FailNext("DeleteMessage", &platform.APIError{Status: http.StatusBadRequest, Description: "gone"})
	m := newTestMessenger(api, &sleepRecorder{})

	assert.Error(t, m.Delete(context.Background(), "1:1"))
	assert.NoError(t, m.Delete(context.Background(), "1:2"))
	assert.NoError(t, m.Delete(context.Background(), ""))
	assert.Equal(t, []string{"1:2"}, api.Deleted)
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{name: "empty", text: "", limit: 3, want: nil},
		{name: "fits", text: "abc", limit: 3, want: []string{"abc"}},
		{name: "splits", text: "abcdefg", limit: 3, want: []string{"abc", "def", "g"}},
		{name: "runes", text: "привет", limit: 4, want: []string{"прив", "ет"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitText(tc.text, tc.limit))
		})
	}
}

func TestTextStorage(t *testing.T) {
	s := NewTextStorage(10)
	assert.True(t, s.Empty())

	s.Add("line one\n")
	s.Add("two\n")
	s.Add(strings.Repeat("x", 12))

	assert.Equal(t, []string{"line one\n", "two\n", "xxxxxxxxxx", "xx"}, s.Chunks())
}
