package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// OpenOptions selects and configures the storage backend.
type OpenOptions struct {
	Driver      string // "postgres" or "memory"
	DatabaseURL string
	AutoMigrate bool
}

// Open returns the configured repository and a close function.
func Open(ctx context.Context, opts OpenOptions, log *zap.SugaredLogger) (Repository, func(), error) {
	if strings.EqualFold(opts.Driver, "memory") {
		log.Warnw("using in-memory storage; data is lost on restart", "component", "bootstrap")
		return NewMemoryRepository(), func() {}, nil
	}

	pool, err := OpenPool(ctx, opts.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	seq, err := OpenSequencePool(ctx, opts.DatabaseURL)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Infow("database connected", "component", "bootstrap")

	closeAll := func() {
		seq.Close()
		pool.Close()
	}
	if opts.AutoMigrate {
		applied, err := Migrate(ctx, pool)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Infow("migrations applied", "component", "bootstrap", "applied", applied)
	}
	return NewPostgresRepository(pool, seq), closeAll, nil
}

const (
	serviceMaxConns  = 50
	serviceMinConns  = 5
	sequenceMaxConns = 4
	sequenceMinConns = 1
)

// OpenPool connects to PostgreSQL with the service pool settings.
func OpenPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	return openPool(ctx, databaseURL, serviceMaxConns, serviceMinConns)
}

// OpenSequencePool connects the small pool that only hands out reference numbers.
func OpenSequencePool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	return openPool(ctx, databaseURL, sequenceMaxConns, sequenceMinConns)
}

func poolConfig(databaseURL string, maxConns, minConns int32) (*pgxpool.Config, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required for postgres storage")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	return cfg, nil
}

func openPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
