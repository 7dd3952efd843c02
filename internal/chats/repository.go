// Package chats keeps the chats the bot was added to and finds the ones a user administers together with the bot.
package chats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/stepbot/internal/platform"
)

// Record is one row of the bot_chat table.
type Record struct {
	ChatID    int64             `db:"chat_id"`
	ChatType  platform.ChatType `db:"chat_type"`
	Title     string            `db:"title"`
	Active    bool              `db:"active"`
	UpdatedAt int64             `db:"updated_at"`
}

// Repository persists known chats.
type Repository interface {
	// Upsert activates the chat. An empty title keeps the stored one.
	Upsert(ctx context.Context, rec Record) error
	Deactivate(ctx context.Context, chatID int64, at int64) error
	Active(ctx context.Context) ([]Record, error)
}

type sqlRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewSQLRepository creates a bot_chat backed repository.
func NewSQLRepository(db *sqlx.DB, log *slog.Logger) Repository {
	if log == nil {
		log = slog.Default()
	}
	return &sqlRepository{db: db, log: log}
}

func (r *sqlRepository) Upsert(ctx context.Context, rec Record) error {
	query := r.db.Rebind(`
		INSERT INTO bot_chat (chat_id, chat_type, title, active, updated_at)
		VALUES (?, ?, ?, TRUE, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			chat_type = excluded.chat_type,
			title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE bot_chat.title END,
			active = TRUE,
			updated_at = excluded.updated_at
	`)

	if _, err := r.db.ExecContext(ctx, query, rec.ChatID, string(rec.ChatType), rec.Title, rec.UpdatedAt); err != nil {
		r.log.Error("failed to upsert bot chat", slog.Int64("chat_id", rec.ChatID), slog.Any("error", err))
		return fmt.Errorf("upsert bot chat %d: %w", rec.ChatID, err)
	}
	return nil
}

func (r *sqlRepository) Deactivate(ctx context.Context, chatID int64, at int64) error {
	query := r.db.Rebind(`UPDATE bot_chat SET active = FALSE, updated_at = ? WHERE chat_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, at, chatID); err != nil {
		r.log.Error("failed to deactivate bot chat", slog.Int64("chat_id", chatID), slog.Any("error", err))
		return fmt.Errorf("deactivate bot chat %d: %w", chatID, err)
	}
	return nil
}

func (r *sqlRepository) Active(ctx context.Context) ([]Record, error) {
	const query = `
		SELECT chat_id, chat_type, title, active, updated_at
		FROM bot_chat
		WHERE active = TRUE
		ORDER BY chat_id
	`

	var out []Record
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("select active bot chats: %w", err)
	}
	return out, nil
}
