// Package database owns the Postgres connection pool, schema migrations,
// and the repositories the rest of the service reads and writes through.
package database

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"resumeboost/internal/config"
	"resumeboost/internal/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the subset of pgxpool.Pool the repositories use. Tests substitute
// a pgxmock pool for it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool opens and verifies a pgx connection pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid database configuration", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to create connection pool", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to reach database", err)
	}
	return pool, nil
}

// RunMigrations applies any pending schema migrations. It uses a separate
// database/sql connection because goose does not speak pgx natively.
func RunMigrations(cfg config.DatabaseConfig) error {
	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to open migration connection", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to set migration dialect", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return errors.NewPersistenceError(errors.ErrCodeDatabaseFailed, "failed to apply migrations", err)
	}
	return nil
}
