package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/stepbot/internal/jobs"
)

const TaskTypeAlert = "admin:alert"

// Queue defers alerts to the asynq worker. When enqueueing fails the alert goes through fallback.
type Queue struct {
	manager  jobs.Manager
	fallback Alerter
	log      *slog.Logger
}

var _ Alerter = (*Queue)(nil)

func NewQueue(manager jobs.Manager, fallback Alerter, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	return &Queue{manager: manager, fallback: fallback, log: log}
}

func NewAlertTask(alert Alert) (*asynq.Task, error) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAlert, payload, asynq.Queue(jobs.QueueAlerts), asynq.MaxRetry(3)), nil
}

func (q *Queue) Alert(ctx context.Context, alert Alert) {
	task, err := NewAlertTask(alert)
	if err == nil {
		_, err = q.manager.Enqueue(ctx, task)
	}
	if err == nil {
		return
	}

	q.log.Warn("admin alert enqueue failed, sending directly", slog.Any("error", err))
	if q.fallback != nil {
		q.fallback.Alert(ctx, alert)
	}
}

// AlertHandler processes queued alerts.
type AlertHandler struct {
	notifier *Notifier
	log      *slog.Logger
}

func NewAlertHandler(notifier *Notifier, log *slog.Logger) *AlertHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AlertHandler{notifier: notifier, log: log}
}

func (h *AlertHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var alert Alert
	if err := json.Unmarshal(t.Payload(), &alert); err != nil {
		h.log.ErrorContext(ctx, "admin alert: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode alert: %w: %w", err, asynq.SkipRetry)
	}

	return h.notifier.Deliver(ctx, alert)
}
