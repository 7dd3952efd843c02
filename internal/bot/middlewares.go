package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/Proton-105/stepbot/internal/bot/handlers"
	"github.com/Proton-105/stepbot/pkg/metrics"
)

// LoggingMiddleware logs every command invocation with its outcome.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, req *handlers.Request) (handlers.Result, error) {
			start := time.Now()
			v := req.View

			log.DebugContext(ctx, "handling command",
				slog.String("command", v.Command),
				slog.Int64("chat_id", v.ChatID),
				slog.Int64("user_id", v.UserID),
				slog.Bool("reply", v.IsReply),
			)
			res, err := next(ctx, req)
			log.InfoContext(ctx, "handled command",
				slog.String("command", v.Command),
				slog.Int64("chat_id", v.ChatID),
				slog.Int64("user_id", v.UserID),
				slog.Bool("reply", v.IsReply),
				slog.String("result", res.String()),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)
			return res, err
		}
	}
}

// MetricsMiddleware records the command duration and status.
func MetricsMiddleware(next handlers.Handler) handlers.Handler {
	return func(ctx context.Context, req *handlers.Request) (handlers.Result, error) {
		start := time.Now()
		res, err := next(ctx, req)

		status := res.String()
		if err != nil {
			status = "error"
		}
		metrics.RecordCommand(req.View.Command, status, time.Since(start))
		return res, err
	}
}
