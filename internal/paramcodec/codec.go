// Package paramcodec encodes command invocations into button payloads and parses
// them back, including the legacy "{key=value}" payload dialect.
package paramcodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrEmptyPayload = errors.New("paramcodec: empty payload")

// Payload is a decoded command invocation.
type Payload struct {
	Bot     string
	Command string
	Args    Args
	// RawArgs holds a scalar argument that is not a key/value object.
	RawArgs string
	MID     string
}

type wirePayload struct {
	Bot     string          `json:"bot,omitempty"`
	Cmd     string          `json:"cmd"`
	CmdArgs json.RawMessage `json:"cmd_args,omitempty"`
	MID     string          `json:"mid,omitempty"`
}

// Encode renders the canonical JSON payload. Command is stored with a leading slash.
func Encode(bot, command string, args Args, mid string) (string, error) {
	return Payload{Bot: bot, Command: command, Args: args, MID: mid}.Encode()
}

func (p Payload) Encode() (string, error) {
	w := wirePayload{
		Bot: p.Bot,
		Cmd: "/" + strings.TrimPrefix(p.Command, "/"),
		MID: p.MID,
	}

	switch {
	case len(p.Args) > 0:
		raw, err := json.Marshal(p.Args)
		if err != nil {
			return "", fmt.Errorf("encode args of %s: %w", w.Cmd, err)
		}
		w.CmdArgs = raw
	case p.RawArgs != "":
		raw, err := json.Marshal(p.RawArgs)
		if err != nil {
			return "", fmt.Errorf("encode args of %s: %w", w.Cmd, err)
		}
		w.CmdArgs = raw
	}

	out, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", w.Cmd, err)
	}
	return string(out), nil
}

// String encodes the payload, degrading to the bare command when the arguments cannot be serialized.
func (p Payload) String() string {
	s, err := p.Encode()
	if err != nil {
		return "/" + strings.TrimPrefix(p.Command, "/")
	}
	return s
}

// Decode parses a payload in either dialect. A bare "/cmd" string is accepted as well.
func Decode(payload string) (Payload, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Payload{}, ErrEmptyPayload
	}

	if strings.HasPrefix(payload, "{\"") {
		return decodeJSON(payload)
	}

	if cmd, ok := LegacyValue(payload, "cmd"); ok {
		p := Payload{Command: normalizeCommand(cmd)}
		p.Bot, _ = LegacyValue(payload, "bot")
		p.MID, _ = LegacyValue(payload, "mid")
		if raw, ok := LegacyValue(payload, "cmd_args"); ok {
			p.Args, p.RawArgs = splitArgs(json.RawMessage(raw), raw)
		}
		return p, nil
	}

	if strings.HasPrefix(payload, "/") {
		verb, rest, _ := strings.Cut(payload, " ")
		return Payload{Command: normalizeCommand(verb), RawArgs: strings.TrimSpace(rest)}, nil
	}

	return Payload{}, fmt.Errorf("paramcodec: unrecognized payload %q", payload)
}

func decodeJSON(payload string) (Payload, error) {
	var w wirePayload
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return Payload{}, fmt.Errorf("paramcodec: decode payload: %w", err)
	}
	if w.Cmd == "" {
		return Payload{}, fmt.Errorf("paramcodec: payload without cmd: %q", payload)
	}

	p := Payload{Bot: w.Bot, Command: normalizeCommand(w.Cmd), MID: w.MID}
	if len(w.CmdArgs) > 0 {
		p.Args, p.RawArgs = splitArgs(w.CmdArgs, "")
	}
	return p, nil
}

// splitArgs interprets raw as an object, a JSON string, or falls back to the literal text.
func splitArgs(raw json.RawMessage, literal string) (Args, string) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil && obj != nil {
		return Args(obj), ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return nil, s
	}

	if literal == "" {
		literal = string(raw)
	}
	return nil, literal
}

func normalizeCommand(cmd string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd), "/"))
}

var legacyPatterns = map[string]*regexp.Regexp{
	"cmd":      legacyRegexp("cmd"),
	"bot":      legacyRegexp("bot"),
	"mid":      legacyRegexp("mid"),
	"cmd_args": legacyRegexp("cmd_args"),
}

func legacyRegexp(key string) *regexp.Regexp {
	return regexp.MustCompile(`.*\{` + regexp.QuoteMeta(key) + `=(.+?)\}.*`)
}

func legacyPattern(key string) *regexp.Regexp {
	if re, ok := legacyPatterns[key]; ok {
		return re
	}
	return legacyRegexp(key)
}

// LegacyValue extracts key from a "{key=value}" payload.
func LegacyValue(payload, key string) (string, bool) {
	m := legacyPattern(key).FindStringSubmatch(payload)
	if m == nil {
		return "", false
	}
	return m[1], true
}
