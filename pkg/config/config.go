package config

import "time"

// Config holds runtime configuration for the bot process.
type Config struct {
	AppEnv string `mapstructure:"app_env"`

	Bot       BotConfig       `mapstructure:"bot"`
	Transport TransportConfig `mapstructure:"transport"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Step      StepConfig      `mapstructure:"step"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Locales   LocalesConfig   `mapstructure:"locales"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type BotConfig struct {
	Token               string `mapstructure:"token" validate:"required"`
	Username            string `mapstructure:"username"`
	WorkThreadsMaxCount int    `mapstructure:"work_threads_max_count" validate:"min=1"`
	AdminsContacts      string `mapstructure:"admins_contacts"`
	Languages           string `mapstructure:"languages"`
	WaitingMessage      bool   `mapstructure:"waiting_message"`
}

type TransportConfig struct {
	Mode                  string `mapstructure:"mode" validate:"oneof=polling webhook"`
	WebhookURL            string `mapstructure:"webhook_url" validate:"required_if=Mode webhook"`
	WebhookSecret         string `mapstructure:"webhook_secret"`
	HTTPAddr              string `mapstructure:"http_addr" validate:"required"`
	PollingSleepTime      int    `mapstructure:"polling_sleep_time" validate:"min=0"`
	PollingErrorSleepTime int    `mapstructure:"polling_error_sleep_time" validate:"min=0"`
	PollingTimeout        int    `mapstructure:"polling_timeout" validate:"min=0"`
}

func (c TransportConfig) PollingSleep() time.Duration {
	return time.Duration(c.PollingSleepTime) * time.Second
}

func (c TransportConfig) PollingErrorSleep() time.Duration {
	return time.Duration(c.PollingErrorSleepTime) * time.Second
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN          string `mapstructure:"dsn" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"min=0"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type StepConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=sql redis"`
}

type LoggerConfig struct {
	Level           string `mapstructure:"level"`
	Format          string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File            string `mapstructure:"file"`
	FileMaxBytes    int    `mapstructure:"file_max_bytes" validate:"min=0"`
	FileBackupCount int    `mapstructure:"file_backup_count" validate:"min=0"`
	TraceRequests   bool   `mapstructure:"trace_requests"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// Enabled reports whether error reporting is configured.
func (c SentryConfig) Enabled() bool { return c.DSN != "" }

type LocalesConfig struct {
	Dir string `mapstructure:"dir"`
}

type AdminConfig struct {
	AlertsAsync bool `mapstructure:"alerts_async"`
}
