// Package config provides configuration loading and validation utilities.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the bot reads.
const EnvPrefix = "TT_BOT"

type binding struct {
	key string
	env string
	def any
}

// bindings maps config keys to their flat environment names and defaults.
var bindings = []binding{
	{"bot.token", "TT_BOT_TOKEN", ""},
	{"bot.username", "TT_BOT_USERNAME", ""},
	{"bot.work_threads_max_count", "TT_BOT_WORK_THREADS_MAX_COUNT", 15},
	{"bot.admins_contacts", "TT_BOT_ADMINS_CONTACTS", ""},
	{"bot.languages", "TT_BOT_LANGUAGES", "ru=Русский:en=English"},
	{"bot.waiting_message", "TT_BOT_WAITING_MESSAGE", false},

	{"transport.mode", "TT_BOT_TRANSPORT", "polling"},
	{"transport.webhook_url", "TT_BOT_WEBHOOK_URL", ""},
	{"transport.webhook_secret", "TT_BOT_WEBHOOK_SECRET", ""},
	{"transport.http_addr", "TT_BOT_HTTP_ADDR", ":8080"},
	{"transport.polling_sleep_time", "TT_BOT_POLLING_SLEEP_TIME", 5},
	{"transport.polling_error_sleep_time", "TT_BOT_POLLING_ERROR_SLEEP_TIME", 5},
	{"transport.polling_timeout", "TT_BOT_POLLING_TIMEOUT", 45},

	{"database.driver", "TT_BOT_DATABASE_DRIVER", "sqlite"},
	{"database.dsn", "TT_BOT_DATABASE_DSN", "file:ttb.sqlite3"},
	{"database.max_open_conns", "TT_BOT_DATABASE_MAX_OPEN_CONNS", 0},

	{"redis.addr", "TT_BOT_REDIS_ADDR", ""},
	{"redis.password", "TT_BOT_REDIS_PASSWORD", ""},
	{"redis.db", "TT_BOT_REDIS_DB", 0},

	{"step.backend", "TT_BOT_STEP_BACKEND", "sql"},

	{"logger.level", "TT_BOT_LOGGING_LEVEL", "INFO"},
	{"logger.format", "TT_BOT_LOGGING_FORMAT", "text"},
	{"logger.file", "TT_BOT_LOGGING_FILE", ""},
	{"logger.file_max_bytes", "TT_BOT_LOGGING_FILE_MAX_BYTES", 10485760},
	{"logger.file_backup_count", "TT_BOT_LOGGING_FILE_BACKUP_COUNT", 10},
	{"logger.trace_requests", "TT_BOT_TRACE_REQUESTS", false},

	{"sentry.dsn", "TT_BOT_SENTRY_DSN", ""},
	{"sentry.environment", "TT_BOT_ENVIRONMENT", ""},

	{"locales.dir", "TT_BOT_LOCALES_DIR", ""},

	{"admin.alerts_async", "TT_BOT_ADMIN_ALERTS_ASYNC", false},
}

// Load reads configuration from an optional YAML file and environment variables, validates it, and returns the resulting Config.
func Load() (*Config, *viper.Viper, error) {
	// .env files are optional
	_ = godotenv.Load(".env.local", ".env")

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigFile(fmt.Sprintf("./configs/%s.yaml", env))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, nil, fmt.Errorf("bind %s: %w", b.env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil && !isMissingFile(err) {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.AppEnv = env
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = env
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, v, nil
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
