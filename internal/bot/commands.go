package bot

import (
	"log/slog"

	"github.com/Proton-105/stepbot/internal/bot/handlers"
	"github.com/Proton-105/stepbot/internal/bot/keyboard"
	"github.com/Proton-105/stepbot/internal/messenger"
)

// BuiltinCommands are declared by every bot and checked by Registry.Validate at startup.
var BuiltinCommands = []string{
	handlers.StartCommand,
	handlers.MenuCommand,
	handlers.ListAllChatsCommand,
	handlers.SetLanguageCommand,
	keyboard.NavCommand,
}

// BuiltinDeps are the collaborators of the built-in commands.
type BuiltinDeps struct {
	Messenger   *messenger.Messenger
	Locales     handlers.Locales
	Translators handlers.Translators
	Discovery   handlers.AdminChats
	Pager       *keyboard.Pager
}

// RegisterBuiltins installs the standard middlewares and commands.
func RegisterBuiltins(r *Registry, deps BuiltinDeps, log *slog.Logger) {
	r.Use(LoggingMiddleware(log))
	r.Use(MetricsMiddleware)

	languages := func() int { return len(deps.Locales.Languages()) }

	r.Register(Command{Name: handlers.StartCommand}, handlers.NewStartHandler(deps.Messenger))
	r.Register(Command{Name: handlers.MenuCommand}, handlers.NewMenuHandler(deps.Messenger, languages))
	r.Register(Command{Name: handlers.ListAllChatsCommand}, handlers.NewListAllChatsHandler(deps.Messenger, deps.Discovery))
	r.Register(Command{Name: handlers.SetLanguageCommand}, handlers.NewSetLanguageHandler(deps.Messenger, deps.Locales, deps.Translators, log))
	r.Register(Command{Name: keyboard.NavCommand, Hidden: true}, handlers.NewPagingHandler(deps.Pager, deps.Messenger, log))
}
