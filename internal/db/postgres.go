package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wuwenbin0122/chatgate/internal/utils"
)

// ErrUnavailable is returned by every Postgres method when no pool was
// established at startup, and wraps errors that mean the server cannot be
// reached or was never bootstrapped.
var ErrUnavailable = errors.New("postgres: database unavailable")

// Postgres owns the process-wide connection pool. It is created once in
// main, handed to the components that need it, and closed once on shutdown.
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg utils.PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 && cfg.MinConns <= poolConfig.MaxConns {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.ConnectTimeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	// pgxpool connects lazily; fail here so the caller can fall back to
	// degraded mode instead of discovering it on the first request.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Available() bool {
	return p != nil && p.Pool != nil
}

func (p *Postgres) Close() {
	if !p.Available() {
		return
	}
	p.Pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if !p.Available() {
		return ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.Pool.Ping(ctx)
}

// Probe runs a no-op statement on a checked-out connection. The connection
// is released on every path.
func (p *Postgres) Probe(ctx context.Context) error {
	if !p.Available() {
		return ErrUnavailable
	}

	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgres: probe: %w", err)
	}

	return nil
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if !p.Available() {
		return ErrUnavailable
	}

	statements := []string{
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS conversations (",
			"    id SERIAL PRIMARY KEY,",
			"    created_at TIMESTAMP DEFAULT NOW(),",
			"    user_message TEXT NOT NULL,",
			"    assistant_message TEXT NOT NULL",
			")",
		}, "\n"),
		// faqs is created for compatibility with existing deployments; nothing
		// reads or writes it yet.
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS faqs (",
			"    id SERIAL PRIMARY KEY,",
			"    question TEXT NOT NULL,",
			"    answer TEXT NOT NULL",
			")",
		}, "\n"),
	}

	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquire: %w", err)
	}
	defer conn.Release()

	for _, stmt := range statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}

	return nil
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
