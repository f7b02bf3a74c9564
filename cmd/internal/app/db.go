package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"unet/cmd/identity"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence surface the app runs on: the account and device
// stores plus a readiness probe.
type Store interface {
	identity.Store
	Ping(ctx context.Context) error
}

// Backend owns the selected Store and the resources behind it.
type Backend struct {
	Name  string
	Store Store

	pool *pgxpool.Pool
	db   *sql.DB
}

// Close releases the pool or database handle, if any.
func (b *Backend) Close(_ context.Context) error {
	if b == nil {
		return nil
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// OpenBackend builds the store selected by cfg.Store and, when cfg.Migrate is
// set, applies the embedded migrations.
func OpenBackend(ctx context.Context, cfg Config, log Logger) (*Backend, error) {
	switch cfg.Store {
	case StoreMemory, "":
		log.Info("db.disabled.inmemory_store")
		return &Backend{Name: StoreMemory, Store: identity.NewInMemoryStore()}, nil

	case StoreSQLite:
		db, err := identity.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			n, err := identity.MigrateSQLite(ctx, db)
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			log.Info("db.migrate.done", "store", StoreSQLite, "applied", n)
		}
		st, err := identity.NewSQLiteStore(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("db.enabled.sqlite_store", "path", cfg.SQLitePath)
		return &Backend{Name: StoreSQLite, Store: st, db: db}, nil

	case StorePostgres:
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			n, err := identity.MigratePostgres(ctx, pool, cfg.DBSchema)
			if err != nil {
				pool.Close()
				return nil, err
			}
			log.Info("db.migrate.done", "store", StorePostgres, "schema", cfg.DBSchema, "applied", n)
		}
		st, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
		if err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
		return &Backend{Name: StorePostgres, Store: st, pool: pool}, nil

	default:
		return nil, fmt.Errorf("app: unknown store %q", cfg.Store)
	}
}

// NewDBPool builds a pgxpool with sane defaults and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingStore(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// PingStore checks reachability within timeout.
func PingStore(parent context.Context, p pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	return p.Ping(ctx)
}
