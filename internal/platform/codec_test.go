package platform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUpdate_CarriesDiscriminator(t *testing.T) {
	u := &MessageCreated{
		Timestamp: 1700000000000,
		Message: Message{
			Sender:    &User{UserID: 7, Name: "Ann"},
			Recipient: Recipient{ChatID: 42, ChatType: ChatDialog},
			Body:      MessageBody{MID: "42:1", Text: "/start"},
		},
	}

	data, err := MarshalUpdate(u)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "message_created", fields["update_type"])

	restored, err := UnmarshalUpdate(data)
	require.NoError(t, err)
	assert.Equal(t, u, restored)
}

func TestUnmarshalUpdate_EveryVariant(t *testing.T) {
	variants := []Update{
		&MessageCreated{Timestamp: 1},
		&MessageCallback{Timestamp: 2, Callback: Callback{CallbackID: "cb", Payload: "/menu"}},
		&MessageEdited{Timestamp: 3},
		&MessageRemoved{Timestamp: 4, MessageID: "m", ChatID: 1, UserID: 2},
		&BotStarted{Timestamp: 5, ChatID: 1, Payload: "ref"},
		&BotAdded{Timestamp: 6, ChatID: -1, IsChannel: true},
		&BotRemoved{Timestamp: 7, ChatID: -1},
		&UserAdded{Timestamp: 8, ChatID: -1, InviterID: 3},
		&UserRemoved{Timestamp: 9, ChatID: -1, AdminID: 3},
		&ChatTitleChanged{Timestamp: 10, ChatID: -1, Title: "t"},
		&MessageChatCreated{Timestamp: 11, Chat: Chat{ChatID: -5, Type: ChatGroup}},
		&MessageConstructionRequest{Timestamp: 12, SessionID: "s"},
		&MessageConstructed{Timestamp: 13, SessionID: "s"},
	}

	for _, v := range variants {
		v := v
		t.Run(string(v.Type()), func(t *testing.T) {
			data, err := MarshalUpdate(v)
			require.NoError(t, err)

			restored, err := UnmarshalUpdate(data)
			require.NoError(t, err)
			assert.Equal(t, v, restored)
			assert.Equal(t, v.Time(), restored.Time())
		})
	}
}

func TestUnmarshalUpdate_Rejects(t *testing.T) {
	_, err := UnmarshalUpdate([]byte(`{"update_type":"nope"}`))
	assert.ErrorIs(t, err, ErrUnknownUpdateType)

	_, err = UnmarshalUpdate([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedUpdate)
}
