package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stepbot/internal/messenger"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/platform/platformtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseContacts(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		chats []int64
		users []int64
	}{
		{name: "empty", in: ""},
		{name: "both", in: "chats:-1,-2;users:3,4;", chats: []int64{-1, -2}, users: []int64{3, 4}},
		{name: "users first", in: "users:5;chats:-7;", chats: []int64{-7}, users: []int64{5}},
		{name: "no trailing separator", in: "users:8,9", users: []int64{8, 9}},
		{name: "duplicates and garbage", in: "users:1,x,1,,2;", users: []int64{1, 2}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			c := ParseContacts(tc.in)
			assert.Equal(t, tc.chats, c.ChatIDs)
			assert.Equal(t, tc.users, c.UserIDs)
		})
	}
}

func TestContacts_Targets(t *testing.T) {
	c := Contacts{ChatIDs: []int64{-1}, UserIDs: []int64{2}}
	assert.Equal(t, []platform.Target{platform.ToChat(-1), platform.ToUser(2)}, c.Targets())
	assert.True(t, c.IsAdmin(2))
	assert.False(t, c.IsAdmin(-1))
}

func newTestNotifier(api *platformtest.API, contacts Contacts) *Notifier {
	m := messenger.New(api, testLogger())
	n := NewNotifier(m, contacts, "step_bot", testLogger())
	n.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return n
}

func TestNotifier_AlertSendsUpdateAsReply(t *testing.T) {
	api := platformtest.New()
	n := newTestNotifier(api, Contacts{ChatIDs: []int64{-10}, UserIDs: []int64{20}})

	n.Alert(context.Background(), Alert{Text: "boom", Trace: "stack", Update: `{"update_type":"message_created"}`})

	require.Len(t, api.Sent, 4)
	assert.Equal(t, "2024-01-02 03:04:05.000(bot @step_bot): boom\nstack", api.Sent[0].Msg.Text)
	assert.Equal(t, int64(-10), api.Sent[0].To.ChatID)
	assert.Equal(t, `{"update_type":"message_created"}`, api.Sent[1].Msg.Text)
	assert.Equal(t, api.Sent[0].MID, api.Sent[1].Msg.Link.MID)
	assert.Equal(t, int64(20), api.Sent[2].To.UserID)
}

func TestNotifier_DeliverReportsFailures(t *testing.T) {
	api := platformtest.New()
	api.FailNext("SendMessage", &platform.APIError{Status: 403, Description: "blocked"})
	n := newTestNotifier(api, Contacts{UserIDs: []int64{1, 2}})

	err := n.Deliver(context.Background(), Alert{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, api.SentCount())

	// Alert swallows the same failure.
	api.FailNext("SendMessage", errors.New("down"))
	n.Alert(context.Background(), Alert{Text: "y"})
}

func TestNotifier_NoContacts(t *testing.T) {
	api := platformtest.New()
	n := newTestNotifier(api, Contacts{})
	require.NoError(t, n.Deliver(context.Background(), Alert{Text: "x"}))
	assert.Zero(t, api.SentCount())
}

type mockManager struct {
	mock.Mock
}

func (m *mockManager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

func (m *mockManager) Close() error { return nil }

type recordingAlerter struct {
	alerts []Alert
}

func (r *recordingAlerter) Alert(_ context.Context, a Alert) { r.alerts = append(r.alerts, a) }

func TestQueue_Enqueues(t *testing.T) {
	mgr := &mockManager{}
	mgr.On("Enqueue", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == TaskTypeAlert && strings.Contains(string(task.Payload()), `"text":"hello"`)
	})).Return(&asynq.TaskInfo{ID: "1"}, nil).Once()

	fallback := &recordingAlerter{}
	q := NewQueue(mgr, fallback, testLogger())
	q.Alert(context.Background(), Alert{Text: "hello"})

	mgr.AssertExpectations(t)
	assert.Empty(t, fallback.alerts)
}

func TestQueue_FallsBackWhenEnqueueFails(t *testing.T) {
	mgr := &mockManager{}
	mgr.On("Enqueue", mock.Anything, mock.Anything).Return(nil, errors.New("redis down")).Once()

	fallback := &recordingAlerter{}
	q := NewQueue(mgr, fallback, testLogger())
	q.Alert(context.Background(), Alert{Text: "hello"})

	require.Len(t, fallback.alerts, 1)
	assert.Equal(t, "hello", fallback.alerts[0].Text)
}

func TestAlertHandler_ProcessTask(t *testing.T) {
	api := platformtest.New()
	n := newTestNotifier(api, Contacts{UserIDs: []int64{1}})
	h := NewAlertHandler(n, testLogger())

	task, err := NewAlertTask(Alert{Text: "queued"})
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	assert.Equal(t, 1, api.SentCount())

	err = h.ProcessTask(context.Background(), asynq.NewTask(TaskTypeAlert, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
