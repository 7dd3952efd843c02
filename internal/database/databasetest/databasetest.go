// Package databasetest opens migrated in-memory SQLite databases for tests.
package databasetest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/stepbot/internal/database"
	"github.com/Proton-105/stepbot/pkg/config"
)

var nameReplacer = strings.NewReplacer("/", "_", " ", "_")

// Open returns a fresh migrated database private to t.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", nameReplacer.Replace(t.Name())),
	}

	db, err := database.Open(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.Close(db, log) })

	return db
}
