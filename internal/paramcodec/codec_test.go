package paramcodec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Canonical(t *testing.T) {
	got, err := Encode("mybot", "set_language", Args{"lang": "en"}, "m1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"bot":"mybot","cmd":"/set_language","cmd_args":{"lang":"en"},"mid":"m1"}`, got)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   Payload
	}{
		{name: "full", in: Payload{Bot: "b", Command: "menu", Args: Args{"k": "v", "n": "1"}, MID: "mid.1"}},
		{name: "no args", in: Payload{Command: "start"}},
		{name: "scalar args", in: Payload{Command: "echo", RawArgs: "hello"}},
		{name: "bot only", in: Payload{Bot: "b", Command: "list_all_chats"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s, err := tc.in.Encode()
			require.NoError(t, err)

			out, err := Decode(s)
			require.NoError(t, err)
			assert.Equal(t, tc.in, out)
		})
	}
}

func TestDecode_Legacy(t *testing.T) {
	p, err := Decode("{cmd=/foo}{cmd_args=bar}")
	require.NoError(t, err)
	assert.Equal(t, "foo", p.Command)
	assert.Equal(t, "bar", p.RawArgs)
	assert.Nil(t, p.Args)

	p, err = Decode(`{bot=other}{cmd=/menu}{mid=42:7}`)
	require.NoError(t, err)
	assert.Equal(t, "other", p.Bot)
	assert.Equal(t, "menu", p.Command)
	assert.Equal(t, "42:7", p.MID)
}

func TestDecode_BareCommand(t *testing.T) {
	p, err := Decode("/Start ref42")
	require.NoError(t, err)
	assert.Equal(t, "start", p.Command)
	assert.Equal(t, "ref42", p.RawArgs)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("  ")
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = Decode(`{"bot":"x"}`)
	assert.Error(t, err)

	_, err = Decode("hello")
	assert.Error(t, err)
}

func TestDecode_NumericArgsAfterJSON(t *testing.T) {
	s, err := Encode("", "get_buttons_oth", Args{"start_from": 10, "add_info": true}, "")
	require.NoError(t, err)

	p, err := Decode(s)
	require.NoError(t, err)

	n, ok := p.Args.Int("start_from")
	require.True(t, ok)
	assert.Equal(t, 10, n)

	b, ok := p.Args.Bool("add_info")
	require.True(t, ok)
	assert.True(t, b)
}

func TestParseText_Grid(t *testing.T) {
	args := ParseText("a  b\nc")

	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, args.Parts())

	cell, ok := args.Cell(1, 1)
	require.True(t, ok)
	assert.Equal(t, "a", cell)

	cell, ok = args.Cell(1, 2)
	require.True(t, ok)
	assert.Equal(t, "", cell)

	cell, ok = args.Cell(1, 3)
	require.True(t, ok)
	assert.Equal(t, "b", cell)

	cell, ok = args.Cell(2, 1)
	require.True(t, ok)
	assert.Equal(t, "c", cell)
}

func TestParts_AfterJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(ParseText("x y\nz"))
	require.NoError(t, err)

	var restored Args
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, [][]string{{"x", "y"}, {"z"}}, restored.Parts())
}

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		ok      bool
		command string
		bot     string
		rest    string
	}{
		{name: "plain", text: "/Menu", ok: true, command: "menu"},
		{name: "with args", text: "/set_language en", ok: true, command: "set_language", rest: "en"},
		{name: "addressed", text: "/start@my_bot deep", ok: true, command: "start", bot: "my_bot", rest: "deep"},
		{name: "multiline", text: "/cmd\nl1 x", ok: true, command: "cmd", rest: "l1 x"},
		{name: "not a command", text: "hello", ok: false},
		{name: "slash only", text: "/", ok: false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cl, ok := ParseCommandLine(tc.text)
			assert.Equal(t, tc.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.command, cl.Command)
			assert.Equal(t, tc.bot, cl.Bot)
			assert.Equal(t, tc.rest, cl.Rest)
			if tc.rest != "" {
				assert.NotEmpty(t, cl.Args.Parts())
			}
		})
	}
}
