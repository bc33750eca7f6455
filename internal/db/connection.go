// Package db stores chunk vectors in Postgres with the pgvector extension.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	PingTimeout     time.Duration
}

// DefaultPoolConfig returns the pool sizing used by New.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:        10,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// DB owns a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects with DefaultPoolConfig.
func New(ctx context.Context, connString string) (*DB, error) {
	return NewWithConfig(ctx, connString, DefaultPoolConfig())
}

// NewWithConfig connects and verifies the server answers a ping within
// pc.PingTimeout.
func NewWithConfig(ctx context.Context, connString string, pc PoolConfig) (*DB, error) {
	cfg, err := poolConfig(connString, pc)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pc.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func poolConfig(connString string, pc PoolConfig) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pc.MaxConnIdleTime
	}
	return cfg, nil
}

// Close closes the pool.
func (db *DB) Close() {
	db.pool.Close()
}
