package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id         TEXT        PRIMARY KEY,
  name       TEXT        NOT NULL,
  email      TEXT        NOT NULL UNIQUE,
  role       TEXT        NOT NULL DEFAULT 'viewer' CHECK (role IN ('admin', 'editor', 'viewer')),
  tenant_id  TEXT        NULL REFERENCES users (id) ON DELETE SET NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_users_tenant_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users (tenant_id);`,
	},
	{
		Name: "create_table_videos",
		SQL: `CREATE TABLE IF NOT EXISTS videos (
  id                  UUID             PRIMARY KEY,
  tenant_id           TEXT             NOT NULL,
  uploaded_by         TEXT             NOT NULL,
  original_name       TEXT             NOT NULL,
  filename            TEXT             NOT NULL,
  storage_path        TEXT             NOT NULL UNIQUE,
  size                BIGINT           NOT NULL CHECK (size >= 0),
  content_type        TEXT             NOT NULL,
  processing_state    TEXT             NOT NULL DEFAULT 'pending'
                      CHECK (processing_state IN ('pending', 'processing', 'completed', 'failed')),
  processing_progress INTEGER          NOT NULL DEFAULT 0 CHECK (processing_progress BETWEEN 0 AND 100),
  failure_reason      TEXT             NULL,
  duration            DOUBLE PRECISION NULL,
  width               INTEGER          NULL,
  height              INTEGER          NULL,
  disposition         TEXT             NOT NULL DEFAULT 'pending'
                      CHECK (disposition IN ('pending', 'safe', 'flagged')),
  disposition_reason  TEXT             NULL,
  created_at          TIMESTAMPTZ      NOT NULL DEFAULT now(),
  processed_at        TIMESTAMPTZ      NULL,
  CONSTRAINT videos_processed_at_iff_completed
    CHECK ((processing_state = 'completed') = (processed_at IS NOT NULL))
);`,
	},
	{
		Name: "create_index_videos_tenant_created",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_videos_tenant_created ON videos (tenant_id, created_at DESC);`,
	},
	{
		Name: "create_index_videos_processing_state",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_videos_processing_state ON videos (processing_state);`,
	},
	{
		Name: "create_index_videos_disposition",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_videos_disposition ON videos (disposition);`,
	},
}

// EnsureMigrated checks whether the 'videos' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log zerolog.Logger, dbHost string) error {
	start := time.Now()
	log = log.With().Str("component", "database").Str("db_host", dbHost).Logger()

	log.Info().Str("event", "db_migration_check").Str("status", "starting").Send()

	var exists bool
	err := db.QueryRowContext(ctx, "SELECT to_regclass('public.videos') IS NOT NULL").Scan(&exists)
	if err != nil {
		log.Error().
			Str("event", "db_migration_failed").
			Str("status", "error").
			Str("error_message", fmt.Sprintf("failed to check sentinel table: %v", err)).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Send()
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info().
			Str("event", "db_migration_skip").
			Str("status", "success").
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("schema already exists, skipping migration")
		return nil
	}

	log.Info().Str("event", "db_migration_start").Str("status", "in_progress").Send()

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error().
				Str("event", "db_migration_failed").
				Str("status", "error").
				Str("migration_step", step.Name).
				Str("error_message", err.Error()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
				Send()
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info().
			Str("event", "db_migration_step").
			Str("status", "success").
			Str("migration_step", step.Name).
			Int64("step_duration_ms", time.Since(stepStart).Milliseconds()).
			Send()
	}

	log.Info().
		Str("event", "db_migration_success").
		Str("status", "success").
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Send()

	return nil
}
