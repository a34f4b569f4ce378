// Package db opens the two PostgreSQL pools galactus runs on — a
// read-only reader pool and a writer pool that also carries schema
// migrations — on top of [github.com/jackc/pgx/v5/pgxpool], and provides
// [WithTx] for the stores' multi-statement transactions.
package db

import (
	"context"
	"embed"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig is the pool-sizing and retry behavior shared by galactus's
// reader and writer pools; both are built from the same FASTTQ_DATABASE_*
// settings in internal/config.
type PoolConfig struct {
	MaxConns          int32
	MinConns          int32
	HealthCheckPeriod time.Duration
	MaxConnIdleTime   time.Duration
	MaxConnLifetime   time.Duration
	RetryAttempts     int
	RetryInterval     time.Duration
}

// Pools holds galactus's reader and writer connections: C3-C5 read
// through Reader and write through Writer.
type Pools struct {
	Reader *pgxpool.Pool
	Writer *pgxpool.Pool
}

// Open connects the reader and writer pools and applies migrations from
// migrations against the writer. log receives migration progress; pass
// nil to discard it.
func Open(ctx context.Context, readerURL, writerURL string, cfg PoolConfig, migrations embed.FS, log *slog.Logger) (*Pools, error) {
	reader, err := openPool(ctx, readerURL, cfg)
	if err != nil {
		return nil, err
	}

	writer, err := openPool(ctx, writerURL, cfg)
	if err != nil {
		reader.Close()
		return nil, err
	}

	if err := Migrate(ctx, writer, migrations, log); err != nil {
		reader.Close()
		writer.Close()
		return nil, err
	}

	return &Pools{Reader: reader, Writer: writer}, nil
}

// Close releases both pools. Safe to call once Open has returned
// successfully.
func (p *Pools) Close() {
	p.Reader.Close()
	p.Writer.Close()
}

func openPool(ctx context.Context, connString string, cfg PoolConfig) (*pgxpool.Pool, error) {
	connConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}

	connConfig.MaxConns = cfg.MaxConns
	connConfig.MinConns = cfg.MinConns
	connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	connConfig.MaxConnLifetime = cfg.MaxConnLifetime

	return connectWithRetry(ctx, connConfig, cfg.RetryAttempts, cfg.RetryInterval)
}

// connectWithRetry dials the pool and pings it, retrying with a linearly
// growing backoff on either failure.
func connectWithRetry(ctx context.Context, cfg *pgxpool.Config, attempts int, interval time.Duration) (*pgxpool.Pool, error) {
	attempts = max(attempts, 1)

	for i := range attempts {
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}

		if waitErr := wait(ctx, time.Duration(i+1)*interval); waitErr != nil {
			return nil, errors.Join(ErrFailedToOpenDBConnection, waitErr)
		}
	}

	return nil, ErrFailedToOpenDBConnection
}

func wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
