package locale

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Repository persists the language chosen by each user.
type Repository interface {
	Get(ctx context.Context, userID int64) (string, bool, error)
	Set(ctx context.Context, userID int64, locale string) error
	SetIfAbsent(ctx context.Context, userID int64, locale string) error
}

// SQLRepository stores languages in the user_locale table.
type SQLRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(db *sqlx.DB, log *slog.Logger) *SQLRepository {
	if log == nil {
		log = slog.Default()
	}
	return &SQLRepository{db: db, log: log}
}

func (r *SQLRepository) Get(ctx context.Context, userID int64) (string, bool, error) {
	var locale sql.NullString
	query := r.db.Rebind(`SELECT locale FROM user_locale WHERE user_id = ?`)
	if err := r.db.GetContext(ctx, &locale, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		r.log.Error("failed to get user locale", "user_id", userID, "error", err)
		return "", false, err
	}

	if !locale.Valid || locale.String == "" {
		return "", false, nil
	}
	return locale.String, true, nil
}

func (r *SQLRepository) Set(ctx context.Context, userID int64, locale string) error {
	query := r.db.Rebind(`INSERT INTO user_locale (user_id, locale) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET locale = excluded.locale`)
	if _, err := r.db.ExecContext(ctx, query, userID, locale); err != nil {
		r.log.Error("failed to set user locale", "user_id", userID, "error", err)
		return err
	}
	return nil
}

func (r *SQLRepository) SetIfAbsent(ctx context.Context, userID int64, locale string) error {
	query := r.db.Rebind(`INSERT INTO user_locale (user_id, locale) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`)
	if _, err := r.db.ExecContext(ctx, query, userID, locale); err != nil {
		r.log.Error("failed to soft-set user locale", "user_id", userID, "error", err)
		return err
	}
	return nil
}
