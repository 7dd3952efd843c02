package bot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Proton-105/stepbot/internal/bot/handlers"
	"github.com/Proton-105/stepbot/internal/i18n"
	"github.com/Proton-105/stepbot/internal/platform"
)

// ErrMissingHandler is returned by Validate when a declared command has no handler.
var ErrMissingHandler = errors.New("bot: command has no handler")

// Command describes a registered command.
type Command struct {
	Name string
	// Hidden commands work but are not published in the bot's command list.
	Hidden bool
}

// Registry maps command names to handlers and wraps them in middlewares.
type Registry struct {
	mu          sync.RWMutex
	commands    map[string]handlers.Handler
	order       []Command
	middlewares []handlers.Middleware
}

func NewRegistry() *Registry {
	return &Registry{
		commands:    make(map[string]handlers.Handler),
		middlewares: make([]handlers.Middleware, 0),
	}
}

// Register binds a handler to a command name. Names are matched case-insensitively and without
// the leading slash.
func (r *Registry) Register(cmd Command, h handlers.Handler) {
	name := normalizeCommand(cmd.Name)
	cmd.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, cmd)
	}
	r.commands[name] = h
}

// Use appends a middleware to the chain. The first one registered is the outermost.
func (r *Registry) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Lookup returns the handler of name wrapped in all middlewares.
func (r *Registry) Lookup(name string) (handlers.Handler, bool) {
	name = normalizeCommand(name)
	if name == "" {
		return nil, false
	}

	r.mu.RLock()
	h, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok || h == nil {
		return nil, false
	}
	return r.applyMiddlewares(h), true
}

// Validate fails when any declared command has no handler. It runs at startup.
func (r *Registry) Validate(declared []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for _, name := range declared {
		if h, ok := r.commands[normalizeCommand(name)]; !ok || h == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingHandler, strings.Join(missing, ", "))
	}
	return nil
}

// Names lists every registered command in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.order))
	for _, c := range r.order {
		out = append(out, c.Name)
	}
	return out
}

// Published returns the commands to advertise, described by the "commands.<name>" catalog keys.
func (r *Registry) Published(t i18n.Translator) []platform.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]platform.Command, 0, len(r.order))
	for _, c := range r.order {
		if c.Hidden {
			continue
		}
		description := c.Name
		if t != nil {
			key := "commands." + c.Name
			if text := t.T(key); text != "" && text != key {
				description = text
			}
		}
		out = append(out, platform.Command{Name: c.Name, Description: description})
	}
	return out
}

func (r *Registry) applyMiddlewares(h handlers.Handler) handlers.Handler {
	r.mu.RLock()
	middlewares := make([]handlers.Middleware, len(r.middlewares))
	copy(middlewares, r.middlewares)
	r.mu.RUnlock()

	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func normalizeCommand(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}
