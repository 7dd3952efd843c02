package chats

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stepbot/internal/database/databasetest"
	apperrors "github.com/Proton-105/stepbot/internal/errors"
	"github.com/Proton-105/stepbot/internal/platform"
	"github.com/Proton-105/stepbot/internal/platform/platformtest"
	"github.com/Proton-105/stepbot/internal/view"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_Track(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(databasetest.Open(t), testLogger())
	reg := NewRegistry(repo, testLogger())
	bot := view.Bot{UserID: 100, Username: "step_bot"}

	reg.Track(ctx, view.New(&platform.BotAdded{ChatID: -1, User: platform.User{UserID: 7}}, bot))
	reg.Track(ctx, view.New(&platform.ChatTitleChanged{ChatID: -1, Title: "Ops"}, bot))
	reg.Track(ctx, view.New(&platform.MessageCreated{Message: platform.Message{
		Recipient: platform.Recipient{ChatID: -2, ChatType: platform.ChatGroup},
		Body:      platform.MessageBody{MID: "m1", Text: "hi"},
	}}, bot))
	reg.Track(ctx, view.New(&platform.MessageCreated{Message: platform.Message{
		Recipient: platform.Recipient{ChatID: 5, ChatType: platform.ChatDialog},
		Body:      platform.MessageBody{MID: "m2", Text: "hi"},
	}}, bot))

	active, err := repo.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, int64(-2), active[0].ChatID)
	assert.Equal(t, int64(-1), active[1].ChatID)
	assert.Equal(t, "Ops", active[1].Title)

	// A later message without a title keeps the stored one.
	reg.Track(ctx, view.New(&platform.MessageCreated{Message: platform.Message{
		Recipient: platform.Recipient{ChatID: -1, ChatType: platform.ChatGroup},
		Body:      platform.MessageBody{MID: "m3", Text: "hello"},
	}}, bot))
	active, err = repo.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ops", active[1].Title)

	reg.Track(ctx, view.New(&platform.BotRemoved{ChatID: -1}, bot))
	active, err = repo.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(-2), active[0].ChatID)
}

func TestDiscovery_AdminChats(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(databasetest.Open(t), testLogger())
	api := platformtest.New()

	const user = int64(7)
	bot := api.Me.UserID

	for _, rec := range []Record{
		{ChatID: -1, ChatType: platform.ChatGroup, Title: "Zeta"},
		{ChatID: -2, ChatType: platform.ChatGroup, Title: "alpha"},
		{ChatID: -3, ChatType: platform.ChatGroup, Title: "bot is a member"},
		{ChatID: -4, ChatType: platform.ChatChannel, Title: "bot removed"},
		{ChatID: -5, ChatType: platform.ChatGroup, Title: "user not admin"},
	} {
		require.NoError(t, repo.Upsert(ctx, rec))
	}

	for _, id := range []int64{-1, -2, -5} {
		api.AddMember(id, platform.ChatMember{User: platform.User{UserID: bot}, IsAdmin: true, Permissions: []string{platform.PermWrite}})
		api.Chats[id] = &platform.Chat{ChatID: id, Type: platform.ChatGroup}
	}
	api.Chats[-1].Title = "Zeta"
	api.Chats[-2].Title = "alpha"
	api.AddMember(-3, platform.ChatMember{User: platform.User{UserID: bot}})
	api.AddMember(-1, platform.ChatMember{User: platform.User{UserID: user}, IsOwner: true})
	api.AddMember(-2, platform.ChatMember{User: platform.User{UserID: user}, IsAdmin: true})
	api.AddMember(-5, platform.ChatMember{User: platform.User{UserID: user}})

	d := NewDiscovery(repo, api, func() int64 { return bot }, testLogger())
	got, err := d.AdminChats(ctx, user)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name())
	assert.Equal(t, "Zeta", got[1].Name())
	assert.Equal(t, []string{platform.PermWrite}, got[0].BotPermissions)

	// The chat the bot could not see was deactivated.
	active, err := repo.Active(ctx)
	require.NoError(t, err)
	for _, rec := range active {
		assert.NotEqual(t, int64(-4), rec.ChatID)
	}
}

func TestDiscovery_FatalStops(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(databasetest.Open(t), testLogger())
	require.NoError(t, repo.Upsert(ctx, Record{ChatID: -1, ChatType: platform.ChatGroup}))

	d := NewDiscovery(repo, unauthorizedLookup{}, func() int64 { return 100 }, testLogger())
	_, err := d.AdminChats(ctx, 7)
	require.Error(t, err)
	assert.True(t, platform.IsUnauthorized(err))
}

type unauthorizedLookup struct{}

func (unauthorizedLookup) GetChat(context.Context, int64) (*platform.Chat, error) {
	return nil, &platform.APIError{Status: http.StatusUnauthorized, Description: "invalid token"}
}

func (unauthorizedLookup) GetMember(context.Context, int64, int64) (*platform.ChatMember, error) {
	return nil, &platform.APIError{Status: http.StatusUnauthorized, Description: "invalid token"}
}

// flakyRepository fails the first failures Active calls.
type flakyRepository struct {
	Repository
	failures int
	calls    int
}

func (r *flakyRepository) Active(ctx context.Context) ([]Record, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, errors.New("database is locked")
	}
	return r.Repository.Active(ctx)
}

func TestDiscovery_RetriesChatList(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepository{Repository: NewSQLRepository(databasetest.Open(t), testLogger()), failures: 1}

	d := NewDiscovery(repo, platformtest.New(), func() int64 { return 100 }, testLogger())
	got, err := d.AdminChats(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, repo.calls)
}

func TestDiscovery_ChatListFailureIsStorageError(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepository{Repository: NewSQLRepository(databasetest.Open(t), testLogger()), failures: 100}

	d := NewDiscovery(repo, platformtest.New(), func() int64 { return 100 }, testLogger())
	_, err := d.AdminChats(ctx, 7)
	require.Error(t, err)
	assert.Equal(t, apperrors.MaxRetries+1, repo.calls)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "E200", appErr.Code)
	assert.True(t, appErr.Retryable)
}
