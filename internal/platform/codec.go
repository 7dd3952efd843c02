package platform

import (
	"encoding/json"
	"errors"
	"fmt"
)

// typeKey is the discriminator field carried by every serialized update.
const typeKey = "update_type"

var (
	ErrUnknownUpdateType = errors.New("platform: unknown update type")
	ErrMalformedUpdate   = errors.New("platform: malformed update")
)

// MarshalUpdate serializes an update together with its update_type discriminator.
func MarshalUpdate(u Update) ([]byte, error) {
	if u == nil {
		return nil, fmt.Errorf("%w: nil update", ErrMalformedUpdate)
	}

	body, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", u.Type(), err)
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", u.Type(), err)
	}

	kind, _ := json.Marshal(u.Type())
	fields[typeKey] = kind

	return json.Marshal(fields)
}

// UnmarshalUpdate restores the concrete variant named by update_type.
func UnmarshalUpdate(data []byte) (Update, error) {
	var probe struct {
		UpdateType UpdateType `json:"update_type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}

	u, err := newUpdate(probe.UpdateType)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}

	return u, nil
}

func newUpdate(t UpdateType) (Update, error) {
	switch t {
	case UpdateMessageCreated:
		return &MessageCreated{}, nil
	case UpdateMessageCallback:
		return &MessageCallback{}, nil
	case UpdateMessageEdited:
		return &MessageEdited{}, nil
	case UpdateMessageRemoved:
		return &MessageRemoved{}, nil
	case UpdateBotStarted:
		return &BotStarted{}, nil
	case UpdateBotAdded:
		return &BotAdded{}, nil
	case UpdateBotRemoved:
		return &BotRemoved{}, nil
	case UpdateUserAdded:
		return &UserAdded{}, nil
	case UpdateUserRemoved:
		return &UserRemoved{}, nil
	case UpdateChatTitleChanged:
		return &ChatTitleChanged{}, nil
	case UpdateMessageChatCreated:
		return &MessageChatCreated{}, nil
	case UpdateMessageConstructionRequest:
		return &MessageConstructionRequest{}, nil
	case UpdateMessageConstructed:
		return &MessageConstructed{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownUpdateType, t)
	}
}
