package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var ErrNotConfigured = errors.New("database not configured")

type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectAttempts bounds the pings New makes before giving up. Postgres
	// often comes up after the service under compose. Zero means 5.
	ConnectAttempts int
}

// Pool is a *sql.DB on the pgx stdlib driver.
type Pool struct {
	db *sql.DB
}

// New opens a pool and waits for Postgres to answer. With no URL it returns
// (nil, nil) and the caller runs on in-memory stores.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	tune(db, cfg)

	if err := waitReady(ctx, db, cfg.ConnectAttempts); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Pool{db: db}, nil
}

func tune(db *sql.DB, cfg Config) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// waitReady pings with a doubling delay starting at 200ms.
func waitReady(ctx context.Context, db *sql.DB, attempts int) error {
	if attempts <= 0 {
		attempts = 5
	}
	delay := 200 * time.Millisecond
	var err error
	for i := 1; ; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if i == attempts {
			return fmt.Errorf("ping database after %d attempts: %w", attempts, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping database: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// FromDB wraps an existing handle such as a sqlmock connection.
func FromDB(db *sql.DB) *Pool {
	return &Pool{db: db}
}

func (p *Pool) DB() *sql.DB { return p.db }

func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return ErrNotConfigured
	}
	return p.db.PingContext(ctx)
}

// RegisterMetrics exposes the sql.DBStats gauges as go_sql_* series labelled
// db_name="warden".
func (p *Pool) RegisterMetrics(reg prometheus.Registerer) error {
	return reg.Register(collectors.NewDBStatsCollector(p.db, "warden"))
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
