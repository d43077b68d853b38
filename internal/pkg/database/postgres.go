package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/anicoll/eco-monitor/internal/pkg/model"
)

// ErrNoDatabase is returned by readers when recording is not configured.
var ErrNoDatabase = errors.New("no database configured")

type Database struct {
	pool   *pgxpool.Pool
	nodeID string
	logger *zap.Logger
}

// NewDatabase records snapshots for node into pool. The schema must already
// be migrated.
func NewDatabase(pool *pgxpool.Pool, node model.Node) *Database {
	return &Database{
		pool:   pool,
		nodeID: node.ID,
		logger: zap.L(),
	}
}

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (db *Database) Close() error {
	if db == nil || db.pool == nil {
		return nil
	}
	db.pool.Close()
	return nil
}
