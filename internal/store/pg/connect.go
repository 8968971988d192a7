package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Connect opens a pooled Postgres connection and ensures the sessions table
// exists. There is no golang-migrate migration set in this tree (the CLI
// that would have driven one was single-tenant-scope-cut along with it) so
// schema setup is one idempotent DDL statement instead.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, sessionsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("pg: ensure schema: %w", err)
	}
	return db, nil
}

const sessionsSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id                            uuid PRIMARY KEY,
	session_key                   text UNIQUE NOT NULL,
	messages                      jsonb NOT NULL DEFAULT '[]',
	summary                       text,
	model                         text,
	provider                      text,
	channel                       text,
	input_tokens                  bigint NOT NULL DEFAULT 0,
	output_tokens                 bigint NOT NULL DEFAULT 0,
	compaction_count              int NOT NULL DEFAULT 0,
	memory_flush_compaction_count int NOT NULL DEFAULT 0,
	memory_flush_at               bigint NOT NULL DEFAULT 0,
	label                         text,
	spawned_by                    text,
	spawn_depth                   int NOT NULL DEFAULT 0,
	agent_id                      uuid,
	user_id                       text,
	created_at                    timestamptz NOT NULL DEFAULT now(),
	updated_at                    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS sessions_updated_at_idx ON sessions (updated_at DESC);
`
