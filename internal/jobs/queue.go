// Package jobs runs background work: the asynq queue for deferred tasks and the gocron periodic scheduler.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/stepbot/pkg/config"
)

const (
	QueueAlerts  = "alerts"
	QueueDefault = "default"
)

// RedisOpt builds the asynq connection from the application Redis config.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, err
	}
	if m.log != nil {
		m.log.DebugContext(ctx, "jobs: task enqueued", slog.String("type", task.Type()), slog.String("id", info.ID))
	}
	return info, nil
}

func (m *manager) Close() error {
	return m.client.Close()
}

// Worker registers task handlers and drives the asynq server lifecycle.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run(ctx context.Context) error
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker. Alerts are weighted above default tasks.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, log *slog.Logger) Worker {
	if concurrency <= 0 {
		concurrency = 2
	}
	if log == nil {
		log = slog.Default()
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:         map[string]int{QueueAlerts: 6, QueueDefault: 3},
		Concurrency:    concurrency,
		RetryDelayFunc: asynq.DefaultRetryDelayFunc,
		Logger:         asynqLogger{log: log},
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run processes tasks until ctx is done, then waits for the running ones.
// Unlike asynq.Server.Run it does not install its own signal handling.
func (w *worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("jobs worker: start: %w", err)
	}
	w.log.Info("jobs worker started")

	<-ctx.Done()
	w.server.Shutdown()
	w.log.Info("jobs worker stopped")
	return nil
}

// asynqLogger routes asynq's own logging into slog.
type asynqLogger struct {
	log *slog.Logger
}

func (l asynqLogger) logger() *slog.Logger {
	if l.log == nil {
		return slog.Default()
	}
	return l.log
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger().Debug(sprint(args), "component", "asynq") }
func (l asynqLogger) Info(args ...interface{})  { l.logger().Info(sprint(args), "component", "asynq") }
func (l asynqLogger) Warn(args ...interface{})  { l.logger().Warn(sprint(args), "component", "asynq") }
func (l asynqLogger) Error(args ...interface{}) { l.logger().Error(sprint(args), "component", "asynq") }
func (l asynqLogger) Fatal(args ...interface{}) {
	l.logger().Error(sprint(args), "component", "asynq", "fatal", true)
}

func sprint(args []interface{}) string {
	return fmt.Sprint(args...)
}
