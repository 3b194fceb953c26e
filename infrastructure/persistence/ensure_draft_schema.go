package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// EnsureDraftSchema creates the drafts table and its indexes on PostgreSQL, then adds
// columns introduced after the first release.
func EnsureDraftSchema(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS drafts (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			status TEXT NOT NULL,
			error_message TEXT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_owner_updated ON drafts (owner_id, updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_drafts_status_created ON drafts (status, created_at)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure drafts schema: %w", err)
		}
	}

	exists, err := columnExists(ctx, db, "drafts", "attempts")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := db.ExecContext(ctx, `ALTER TABLE drafts ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("adding column drafts.attempts failed: %w", err)
		}
	}
	return nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// EnsureDraftSchemaMSSQL is the SQL Server counterpart of EnsureDraftSchema.
func EnsureDraftSchemaMSSQL(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	create := `IF OBJECT_ID('dbo.drafts', 'U') IS NULL BEGIN
		CREATE TABLE dbo.[drafts] (
			id NVARCHAR(64) NOT NULL PRIMARY KEY,
			owner_id NVARCHAR(255) NOT NULL,
			status NVARCHAR(16) NOT NULL,
			error_message NVARCHAR(MAX) NULL,
			payload NVARCHAR(MAX) NOT NULL,
			created_at DATETIMEOFFSET NOT NULL,
			updated_at DATETIMEOFFSET NOT NULL
		);
		CREATE INDEX idx_drafts_owner_updated ON dbo.[drafts] (owner_id, updated_at DESC);
	END`
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("ensure drafts schema: %w", err)
	}

	addIfMissing := func(table, column, ddl string) error {
		q := fmt.Sprintf(`IF COL_LENGTH('%s', '%s') IS NULL BEGIN %s END`, table, column, ddl)
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure column %s.%s: %w", table, column, err)
		}
		return nil
	}
	return addIfMissing("dbo.drafts", "attempts", "ALTER TABLE dbo.[drafts] ADD attempts INT NOT NULL DEFAULT 0")
}
