package identity

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// MigratePostgres creates schema if needed and applies the embedded
// migrations inside it. Returns the number of migrations applied.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, schema string) (int, error) {
	if pool == nil {
		return 0, fmt.Errorf("identity: nil pool")
	}
	if !pgIdentIsValid(schema) {
		return 0, fmt.Errorf("identity: invalid schema identifier")
	}

	if _, err := pool.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgIdent1(schema)); err != nil {
		return 0, fmt.Errorf("create schema: %w", err)
	}

	// goose runs over database/sql; pin search_path so its version table and
	// the unqualified DDL land in schema.
	cc := pool.Config().ConnConfig.Copy()
	if cc.RuntimeParams == nil {
		cc.RuntimeParams = map[string]string{}
	}
	cc.RuntimeParams["search_path"] = schema

	db := stdlib.OpenDB(*cc)
	defer db.Close()

	return runMigrations(ctx, goose.DialectPostgres, db, "migrations/postgres")
}

// MigrateSQLite applies the embedded SQLite migrations to db.
func MigrateSQLite(ctx context.Context, db *sql.DB) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("identity: nil db")
	}
	return runMigrations(ctx, goose.DialectSQLite3, db, "migrations/sqlite")
}

func runMigrations(ctx context.Context, dialect goose.Dialect, db *sql.DB, dir string) (int, error) {
	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return 0, err
	}

	p, err := goose.NewProvider(dialect, db, sub)
	if err != nil {
		return 0, fmt.Errorf("goose provider: %w", err)
	}

	res, err := p.Up(ctx)
	if err != nil {
		return len(res), fmt.Errorf("goose up: %w", err)
	}
	return len(res), nil
}
