package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/stepbot/internal/paramcodec"
	"github.com/Proton-105/stepbot/internal/platform"
)

var testBot = Bot{UserID: 100, Username: "step_bot"}

func textUpdate(chatID int64, chatType platform.ChatType, userID int64, text string) *platform.MessageCreated {
	return &platform.MessageCreated{
		Timestamp: 1,
		Message: platform.Message{
			Sender:    &platform.User{UserID: userID, Name: "U", Locale: "en"},
			Recipient: platform.Recipient{ChatID: chatID, ChatType: chatType},
			Body:      platform.MessageBody{MID: "m1", Text: text},
		},
	}
}

func TestNew_MessageCreatedCommand(t *testing.T) {
	v := New(textUpdate(42, platform.ChatDialog, 7, "/Set_Language en"), testBot)

	assert.Equal(t, "set_language", v.Command)
	assert.Equal(t, "en", v.RawArgs)
	assert.Equal(t, [][]string{{"en"}}, v.Args.Parts())
	assert.Equal(t, int64(42), v.ChatID)
	assert.Equal(t, int64(7), v.UserID)
	assert.Equal(t, "en", v.UserLocale)
	assert.Equal(t, "42_7", v.Index())
	require.NotNil(t, v.Link)
	assert.Equal(t, "m1", v.Link.MID)
	assert.True(t, v.IsCommand())
}

func TestNew_PlainTextKeepsFullCommand(t *testing.T) {
	v := New(textUpdate(42, platform.ChatDialog, 7, "hello there"), testBot)

	assert.Equal(t, "hello there", v.Command)
	assert.Nil(t, v.Args)
	assert.False(t, v.IsCommand())
}

func TestNew_AddressedGroupCommand(t *testing.T) {
	v := New(textUpdate(-5, platform.ChatGroup, 7, "@step_bot /menu"), testBot)

	assert.True(t, v.Addressed)
	assert.True(t, v.IsCommand())
	assert.Equal(t, "menu", v.Command)
}

func TestNew_Callback(t *testing.T) {
	payload, err := paramcodec.Encode("step_bot", "set_language", paramcodec.Args{"lang": "ru"}, "m9")
	require.NoError(t, err)

	u := &platform.MessageCallback{
		Timestamp: 5,
		Callback: platform.Callback{
			CallbackID: "cb1",
			Payload:    payload,
			User:       platform.User{UserID: 7},
		},
		Message: &platform.Message{
			Recipient: platform.Recipient{ChatID: 42, ChatType: platform.ChatDialog},
			Body:      platform.MessageBody{MID: "m9"},
		},
	}

	v := New(u, testBot)
	assert.Equal(t, "set_language", v.Command)
	assert.Equal(t, "step_bot", v.CommandBot)
	lang, _ := v.Args.String("lang")
	assert.Equal(t, "ru", lang)
	assert.Equal(t, "m9", v.Link.MID)
	assert.Equal(t, "42_7", v.Index())
	assert.False(t, v.IsCommand())
}

func TestNew_CallbackEmptyPayload(t *testing.T) {
	v := New(&platform.MessageCallback{Callback: platform.Callback{CallbackID: "x", User: platform.User{UserID: 1}}}, testBot)

	assert.Empty(t, v.Command)
	assert.NoError(t, v.ParseError)
}

func TestNew_BotStarted(t *testing.T) {
	v := New(&platform.BotStarted{ChatID: 9, User: platform.User{UserID: 9}, Payload: "ref"}, testBot)

	assert.Equal(t, "start", v.Command)
	assert.Equal(t, "ref", v.RawArgs)
	assert.Equal(t, platform.ChatDialog, v.ChatType)
}

func TestNew_StructuralVariants(t *testing.T) {
	tests := []struct {
		name   string
		update platform.Update
		chatID int64
		userID int64
	}{
		{name: "bot added", update: &platform.BotAdded{ChatID: -1, User: platform.User{UserID: 3}}, chatID: -1, userID: 3},
		{name: "user removed", update: &platform.UserRemoved{ChatID: -2, User: platform.User{UserID: 4}}, chatID: -2, userID: 4},
		{name: "message removed", update: &platform.MessageRemoved{ChatID: -3, UserID: 5}, chatID: -3, userID: 5},
		{name: "title changed", update: &platform.ChatTitleChanged{ChatID: -4, User: platform.User{UserID: 6}}, chatID: -4, userID: 6},
		{name: "chat created", update: &platform.MessageChatCreated{Chat: platform.Chat{ChatID: -6, Type: platform.ChatGroup}}, chatID: -6},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			v := New(tc.update, testBot)
			assert.Equal(t, tc.chatID, v.ChatID)
			assert.Equal(t, tc.userID, v.UserID)
			assert.Empty(t, v.Command)
		})
	}
}

func TestIsService(t *testing.T) {
	v := New(textUpdate(1, platform.ChatDialog, 1, "notice"+ServiceMarker), testBot)
	assert.True(t, v.IsService())
}
