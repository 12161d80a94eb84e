package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"dispatchq/internal/lock"
)

const schema = "dispatchq_schema"

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS dispatchq_schema.requests (
		id           TEXT PRIMARY KEY,
		priority     INTEGER     NOT NULL DEFAULT 0,
		payload      JSONB,
		status       TEXT        NOT NULL,
		attempts     INTEGER     NOT NULL DEFAULT 0,
		max_attempts INTEGER     NOT NULL DEFAULT 0,
		enqueued_at  TIMESTAMPTZ NOT NULL,
		started_at   TIMESTAMPTZ,
		finished_at  TIMESTAMPTZ,
		last_error   TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS requests_status_idx
		ON dispatchq_schema.requests (status)`,
	`CREATE INDEX IF NOT EXISTS requests_finished_at_idx
		ON dispatchq_schema.requests (finished_at)
		WHERE finished_at IS NOT NULL`,
}

// Init connects to the database and applies the schema. A Postgres advisory
// lock keeps concurrent instances from racing on the DDL; the instance that
// loses the race simply waits for the winner by retrying on the next start.
func Init(postgresURL string, locker lock.AdvisoryLocker) error {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = db.Ping(); err != nil {
		return err
	}

	acquired, err := locker.TryAcquire(lock.MigrationLock)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("schema migration already running on another instance")
	}
	defer locker.Release(lock.MigrationLock)

	if _, err = db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return err
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
