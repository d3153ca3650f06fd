package migrations

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"victory-readmodel/internal/storage/postgres"
)

const postgresLedgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name       TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunPostgresMigrations applies the archive schema files that are not yet in
// schema_migrations, each in its own transaction together with its ledger row.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := pool.Exec(ctx, postgresLedgerDDL); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}

	files, err := loadFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, f := range files {
		applied, err := applyPostgres(ctx, pool, f)
		if err != nil {
			return err
		}
		if applied {
			logger.Info("applied postgres migration", zap.String("file", f.Name))
		}
	}
	return nil
}

func applyPostgres(ctx context.Context, pool *postgres.Pool, f migrationFile) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", f.Name, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, f.Name)
	if err != nil {
		return false, fmt.Errorf("record migration %s: %w", f.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	// No arguments, so pgx uses the simple protocol and the file may hold
	// several statements.
	if _, err := tx.Exec(ctx, f.SQL); err != nil {
		return false, fmt.Errorf("apply migration %s: %w", f.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", f.Name, err)
	}
	return true, nil
}
