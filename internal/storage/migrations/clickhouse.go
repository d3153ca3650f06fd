package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	chstore "victory-readmodel/internal/storage/clickhouse"
)

const clickhouseLedgerDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	name       String,
	applied_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree
ORDER BY name`

// RunClickhouseMigrations creates the history database named in the DSN if
// needed, applies every embedded file not yet recorded in schema_migrations
// and returns a connection to that database.
func RunClickhouseMigrations(ctx context.Context, dsn string, logger *zap.Logger) (*chstore.Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := ensureDatabase(ctx, dsn, db); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, db)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", db, err)
	}
	if err := applyClickhouse(ctx, conn, logger); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func ensureDatabase(ctx context.Context, dsn, db string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS `"+db+"`"); err != nil {
		return fmt.Errorf("create database %s: %w", db, err)
	}
	return nil
}

func applyClickhouse(ctx context.Context, conn *chstore.Conn, logger *zap.Logger) error {
	if err := conn.Exec(ctx, clickhouseLedgerDDL); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}
	applied, err := appliedClickhouse(ctx, conn)
	if err != nil {
		return err
	}

	files, err := loadFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		return err
	}
	for _, f := range files {
		if applied[f.Name] {
			continue
		}
		stmts, err := splitStatements(f.SQL)
		if err != nil {
			return fmt.Errorf("migration %s: %w", f.Name, err)
		}
		// The native protocol takes one statement per Exec.
		for _, stmt := range stmts {
			if err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", f.Name, err)
			}
		}
		if err := conn.Exec(ctx, "INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)",
			f.Name, time.Now().UTC()); err != nil {
			return fmt.Errorf("record migration %s: %w", f.Name, err)
		}
		logger.Info("applied clickhouse migration", zap.String("file", f.Name))
	}
	return nil
}

func appliedClickhouse(ctx context.Context, conn *chstore.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, "SELECT DISTINCT name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan migration ledger: %w", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// databaseFromDSN returns the DSN's database, which must be a plain
// identifier since it is interpolated into CREATE DATABASE.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	for _, r := range db {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "", fmt.Errorf("clickhouse database %q: only letters, digits and _ are allowed", db)
		}
	}
	return db, nil
}
