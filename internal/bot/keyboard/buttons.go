// Package keyboard builds inline keyboards, including paged button lists.
package keyboard

import (
	"strings"

	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/paramcodec"
	"github.com/Proton-105/stepbot/internal/platform"
)

// Command builds a callback button that invokes command on bot with args.
func Command(bot, text, command string, args paramcodec.Args, intent platform.Intent) platform.Button {
	payload := paramcodec.Payload{Bot: bot, Command: command, Args: args}
	return platform.CallbackButton(text, payload.String(), intent)
}

type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

// Layout puts buttons on one row, or one per row.
func Layout(orientation Orientation, buttons ...platform.Button) platform.Keyboard {
	if len(buttons) == 0 {
		return nil
	}

	if orientation == Horizontal {
		row := make([]platform.Button, len(buttons))
		copy(row, buttons)
		return platform.Keyboard{row}
	}

	kb := make(platform.Keyboard, 0, len(buttons))
	for _, b := range buttons {
		kb = append(kb, []platform.Button{b})
	}
	return kb
}

// Invocation is a command with its arguments, used for yes/no answers.
type Invocation struct {
	Command string
	Args    paramcodec.Args
}

// YesNo renders a horizontal pair of answer buttons.
func YesNo(t i18n.Translator, bot string, yes, no Invocation) platform.Keyboard {
	return Layout(Horizontal,
		Command(bot, translated(t, "buttons.yes", "Yes"), yes.Command, yes.Args, platform.IntentPositive),
		Command(bot, translated(t, "buttons.no", "No"), no.Command, no.Args, platform.IntentNegative),
	)
}

func translated(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}

	text := strings.TrimSpace(t.T(key))
	if text == "" || text == key {
		return fallback
	}

	return text
}
