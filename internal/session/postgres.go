package session

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/sixty60/pkg/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	selectStateSQL = `SELECT value FROM session_states WHERE key = $1`
	upsertStateSQL = `INSERT INTO session_states (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
)

// PostgresStore keeps documents as JSONB rows in the session_states table.
type PostgresStore struct {
	db     database.DBTX
	tracer *database.QueryTracer
}

// NewPostgresStore creates a Postgres-backed store. tracer may be nil.
func NewPostgresStore(db database.DBTX, tracer *database.QueryTracer) *PostgresStore {
	return &PostgresStore{db: db, tracer: tracer}
}

// Migrate creates the session_states table if needed.
func (s *PostgresStore) Migrate(ctx context.Context, logger *slog.Logger) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("open session migrations: %w", err)
	}
	return database.RunMigrations(ctx, s.db, sub, logger)
}

// Load reads key into dst.
func (s *PostgresStore) Load(ctx context.Context, key string, dst any) (found bool, err error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	ctx, end := s.tracer.Trace(ctx, "LoadSessionState", selectStateSQL)
	defer func() { end(err) }()

	var data []byte
	if err := s.db.QueryRow(ctx, selectStateSQL, key).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("select session state %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Save upserts value under key.
func (s *PostgresStore) Save(ctx context.Context, key string, value any) (err error) {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	ctx, end := s.tracer.Trace(ctx, "SaveSessionState", upsertStateSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, upsertStateSQL, key, data); err != nil {
		return fmt.Errorf("upsert session state %s: %w", key, err)
	}
	return nil
}
