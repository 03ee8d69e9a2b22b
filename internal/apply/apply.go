// Package apply executes a generated migration file against a Postgres
// database, for local stacks where the Supabase CLI is not at hand.
package apply

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/johndauphine/demo-import/internal/logging"
)

// initialInterval is the first retry delay while waiting for the database.
var initialInterval = 500 * time.Millisecond

// Result reports an applied migration.
type Result struct {
	File     string        `json:"file"`
	Bytes    int           `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

type dialFunc func(ctx context.Context, cfg *pgx.ConnConfig) (*pgx.Conn, error)

// File runs every statement in path over one connection to dsn. When wait
// is positive, connection attempts are retried with exponential backoff
// for up to wait (a freshly started database may not accept connections
// yet). The file is sent in a single simple-protocol round trip.
func File(ctx context.Context, dsn, path string, wait time.Duration) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid config: parsing dsn: %w", err)
	}
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	conn, err := connect(ctx, cfg, wait, pgx.ConnectConfig)
	if err != nil {
		return nil, err
	}
	defer conn.Close(context.Background())

	start := time.Now()
	logging.Info("Applying %s to %s:%d/%s", path, cfg.Host, cfg.Port, cfg.Database)
	if _, err := conn.Exec(ctx, string(data)); err != nil {
		return nil, fmt.Errorf("applying migration %s: %w", path, err)
	}

	return &Result{
		File:     path,
		Bytes:    len(data),
		Duration: time.Since(start),
	}, nil
}

func connect(ctx context.Context, cfg *pgx.ConnConfig, wait time.Duration, dial dialFunc) (*pgx.Conn, error) {
	if wait <= 0 {
		conn, err := dial(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		return conn, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.MaxElapsedTime = wait

	var conn *pgx.Conn
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		c, err := dial(ctx, cfg)
		if err == nil {
			conn = c
			return nil
		}
		if !isRetryable(err) {
			return backoff.Permanent(err)
		}
		logging.Debug("Database not ready (attempt %d): %v", attempt, err)
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("connecting to database after %d attempts: %w", attempt, err)
	}
	return conn, nil
}

// isRetryable reports whether a connect error may clear up on its own.
// Authentication and unknown-database errors never do.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 57P03 cannot_connect_now: the server is still starting.
		return pgErr.Code == "57P03"
	}
	s := strings.ToLower(err.Error())
	for _, transient := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"i/o timeout",
		"eof",
		"the database system is starting up",
	} {
		if strings.Contains(s, transient) {
			return true
		}
	}
	return false
}
