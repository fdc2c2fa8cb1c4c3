// Package pgx implements the graph, chunk and vector stores on PostgreSQL.
// Vectors use the pgvector extension; the schema ships as embedded
// golang-migrate migrations.
package pgx

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Migrate applies all pending schema migrations.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("init migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err == nil {
		logger.Info("[Store][Postgres] Schema ready", "version", version, "dirty", dirty)
	}
	return nil
}

// Connect opens a connection pool with the pgvector types registered on
// every connection. The vector extension must exist, so run Migrate first.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgxv5.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Opener migrates and connects once, handing the same pool to every store
// registered with Register.
type Opener struct {
	url string

	mu   sync.Mutex
	pool *pgxpool.Pool
}

// NewOpener returns an opener for databaseURL.
func NewOpener(databaseURL string) *Opener {
	return &Opener{url: databaseURL}
}

// Pool returns the shared pool, migrating and connecting on first use.
func (o *Opener) Pool(ctx context.Context) (*pgxpool.Pool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pool != nil {
		return o.pool, nil
	}
	if o.url == "" {
		return nil, errors.New("database url is empty")
	}
	if err := Migrate(o.url); err != nil {
		return nil, err
	}
	pool, err := Connect(ctx, o.url)
	if err != nil {
		return nil, err
	}
	o.pool = pool
	return pool, nil
}

// Close closes the pool if it was opened.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pool != nil {
		o.pool.Close()
		o.pool = nil
	}
	return nil
}

// Register adds the Postgres backends to the registry: graph and chunk
// stores under "postgres", the vector store under "pgvector".
func Register(r *store.Registry, o *Opener) {
	r.OnClose(o.Close)
	r.RegisterGraph("postgres", func(ctx context.Context) (store.GraphStore, error) {
		pool, err := o.Pool(ctx)
		if err != nil {
			return nil, err
		}
		return NewGraphStore(pool), nil
	})
	r.RegisterChunk("postgres", func(ctx context.Context) (store.ChunkStore, error) {
		pool, err := o.Pool(ctx)
		if err != nil {
			return nil, err
		}
		return NewChunkStore(pool), nil
	})
	r.RegisterVector("pgvector", func(ctx context.Context, namespace string, embedder store.Embedder) (store.VectorStore, error) {
		if embedder == nil {
			return nil, errors.New("pgvector requires an embedder")
		}
		pool, err := o.Pool(ctx)
		if err != nil {
			return nil, err
		}
		return NewVectorStore(pool, namespace, embedder), nil
	})
}
