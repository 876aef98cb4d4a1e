// Package storage implements the Persistence Layer (§4 C4) against
// PostgreSQL via jackc/pgx/v4.
//
// Grounded on two sources: the teacher's hermez_db.HermezDb discipline of
// one kv.RwTx per unit of work, cursor-based getters, and a fixed set of
// table-name constants (zk/hermez_db/db.go), retargeted from an embedded
// KV store to a relational one using the transaction-scoped
// Begin/defer-Rollback/Commit and `INSERT ... ON CONFLICT ... DO UPDATE`
// idiom the other_examples hieutrtr-go-blockchain-explorer adapter uses
// against the same pgx driver the teacher already depends on directly.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/ledgerwatch/log/v3"

	"github.com/traitmeta/evmindexer/errtype"
)

// execer is the subset of *pgxpool.Pool's and pgx.Tx's shared method set
// this package's upsert helpers need, letting the same SQL run either
// directly against the pool or scoped inside CommitBlock's transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store is the single persistence handle every component in this project
// shares; it owns the pool's lifetime.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// Config mirrors config.DatabaseConfig without importing the config
// package, keeping storage free of a dependency on CLI wiring.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// Open establishes the pool per §5's sizing: MaxConns/MinConns/lifetime are
// taken verbatim from cfg rather than pgx's own defaults.
func Open(ctx context.Context, cfg Config, logger log.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errtype.Wrap(errtype.KindParam, fmt.Errorf("parsing database dsn: %w", err))
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, errtype.Wrap(errtype.KindPersistQuery, fmt.Errorf("connecting to database: %w", err))
	}
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Ping checks connectivity, used by cmd/indexer at startup before it
// begins trusting the pool for the main loop.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errtype.Wrap(errtype.KindTransport, fmt.Errorf("pinging database: %w", err))
	}
	return nil
}
