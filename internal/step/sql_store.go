package step

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/stepbot/internal/platform"
)

// SQLStore keeps pending steps in the pending_step table.
type SQLStore struct {
	db  *sqlx.DB
	log *slog.Logger
}

var _ Store = (*SQLStore)(nil)

func NewSQLStore(db *sqlx.DB, log *slog.Logger) *SQLStore {
	if log == nil {
		log = slog.Default()
	}

	return &SQLStore{db: db, log: log}
}

func (s *SQLStore) WriteIfAbsent(ctx context.Context, index string, u platform.Update) error {
	data, err := encodeUpdate(u)
	if err != nil {
		return err
	}

	query := s.db.Rebind(`INSERT INTO pending_step (step_index, update_body) VALUES (?, ?) ON CONFLICT (step_index) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, query, index, string(data)); err != nil {
		s.log.Error("failed to write step", "index", index, "error", err)
		return err
	}

	return nil
}

func (s *SQLStore) Exists(ctx context.Context, index string) (bool, error) {
	return exists(ctx, s, index)
}

func (s *SQLStore) Delete(ctx context.Context, index string) error {
	query := s.db.Rebind(`DELETE FROM pending_step WHERE step_index = ?`)
	if _, err := s.db.ExecContext(ctx, query, index); err != nil {
		s.log.Error("failed to delete step", "index", index, "error", err)
		return err
	}

	return nil
}

func (s *SQLStore) Get(ctx context.Context, index string) (platform.Update, error) {
	var body string
	query := s.db.Rebind(`SELECT update_body FROM pending_step WHERE step_index = ?`)
	if err := s.db.GetContext(ctx, &body, query, index); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStepNotFound
		}

		s.log.Error("failed to get step", "index", index, "error", err)
		return nil, err
	}

	return decodeUpdate(s.log, index, []byte(body))
}

type stepRow struct {
	Index string `db:"step_index"`
	Body  string `db:"update_body"`
}

func (s *SQLStore) All(ctx context.Context) (map[string]platform.Update, error) {
	var rows []stepRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT step_index, update_body FROM pending_step`); err != nil {
		s.log.Error("failed to list steps", "error", err)
		return nil, err
	}

	result := make(map[string]platform.Update, len(rows))
	for _, row := range rows {
		u, err := decodeUpdate(s.log, row.Index, []byte(row.Body))
		if err != nil {
			continue
		}
		result[row.Index] = u
	}

	return result, nil
}
