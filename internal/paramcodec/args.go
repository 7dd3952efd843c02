package paramcodec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PartsKey holds the token grid parsed from free text.
const PartsKey = "c_parts"

// Args is a flat key/value argument set.
type Args map[string]any

func (a Args) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}

func (a Args) Int(key string) (int, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}

func (a Args) Bool(key string) (bool, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(t)
		return b, err == nil
	case float64:
		return t != 0, true
	case int:
		return t != 0, true
	default:
		return false, false
	}
}

// Parts returns the token grid, whether it was built in memory or restored from JSON.
func (a Args) Parts() [][]string {
	switch t := a[PartsKey].(type) {
	case [][]string:
		return t
	case []any:
		out := make([][]string, 0, len(t))
		for _, row := range t {
			cells, _ := row.([]any)
			line := make([]string, 0, len(cells))
			for _, c := range cells {
				if s, ok := c.(string); ok {
					line = append(line, s)
				}
			}
			out = append(out, line)
		}
		return out
	default:
		return nil
	}
}

// Cell returns the token at 1-based line and column as split from the original text.
func (a Args) Cell(line, col int) (string, bool) {
	return a.String(CellKey(line, col))
}

func CellKey(line, col int) string {
	return fmt.Sprintf("l%d.c%d", line, col)
}

// ParseText splits free text into lines of space separated tokens.
// The grid drops empty tokens and empty lines; indexed cells keep them.
func ParseText(text string) Args {
	args := Args{}
	grid := [][]string{}

	for li, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		row := []string{}
		for ci, tok := range strings.Split(line, " ") {
			args[CellKey(li+1, ci+1)] = tok
			if tok != "" {
				row = append(row, tok)
			}
		}
		if len(row) > 0 {
			grid = append(grid, row)
		}
	}

	args[PartsKey] = grid
	return args
}

// CommandLine is a "/verb rest" text split into its parts.
type CommandLine struct {
	Command string
	Bot     string
	Args    Args
	Rest    string
}

// ParseCommandLine parses texts starting with a slash. The verb may carry an "@bot" suffix.
func ParseCommandLine(text string) (CommandLine, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return CommandLine{}, false
	}

	verb, rest := text, ""
	if i := strings.IndexAny(text, " \n"); i >= 0 {
		verb, rest = text[:i], strings.TrimLeft(text[i+1:], " ")
	}

	cl := CommandLine{Rest: rest}
	verb = strings.TrimPrefix(verb, "/")
	if name, bot, ok := strings.Cut(verb, "@"); ok {
		verb, cl.Bot = name, bot
	}
	cl.Command = strings.ToLower(verb)
	if cl.Command == "" {
		return CommandLine{}, false
	}
	if rest != "" {
		cl.Args = ParseText(rest)
	}
	return cl, true
}
