package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/stepbot/pkg/logger"
)

// Handler is the last stop of a failed update: it logs the failure once, forwards high and
// critical ones to Sentry and tells the caller what to show the user.
type Handler struct {
	log    *slog.Logger
	sentry bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sentry: sentryEnabled}
}

// Handle records err and returns the translation key of the user notice and whether the failed
// operation may be retried.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	appErr := asAppError(err)
	outcome := Classify(err)

	args := []any{
		slog.String("code", appErr.Code),
		slog.String("severity", string(appErr.Severity)),
		slog.String("outcome", outcome.String()),
		slog.Bool("retryable", appErr.Retryable),
		slog.Any("error", err),
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		args = append(args, slog.String("correlation_id", id))
	}
	h.log.Log(ctx, severityLevel(appErr.Severity), "update failed", args...)

	if h.sentry && (appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical) {
		capture(ctx, err, appErr, outcome)
	}

	key := appErr.UserMessage
	if key == "" {
		key = MsgCannotComplete
	}
	return key, appErr.Retryable
}

// asAppError finds the AppError in err's chain. Foreign errors are reported as high severity
// with code E000.
func asAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}
	return &AppError{
		Code:        "E000",
		Message:     err.Error(),
		UserMessage: MsgCannotComplete,
		Severity:    SeverityHigh,
		cause:       err,
	}
}

func severityLevel(s Severity) slog.Level {
	switch s {
	case SeverityLow:
		return slog.LevelInfo
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func capture(ctx context.Context, err error, appErr *AppError, outcome Outcome) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", appErr.Code)
		scope.SetTag("severity", string(appErr.Severity))
		scope.SetTag("outcome", outcome.String())
		if id := logger.CorrelationIDFromContext(ctx); id != "" {
			scope.SetTag("correlation_id", id)
		}
		hub.CaptureException(err)
	})
}
