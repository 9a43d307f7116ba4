// Package database reads the media catalog of an external PostgreSQL
// database. The session is read-only; schema and data belong to the media
// server.
package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrCatalogMissing is returned by HealthCheck when the database is reachable
// but does not hold the media catalog tables.
var ErrCatalogMissing = errors.New("media catalog tables not found")

// catalogTables are the tables AudioSources reads.
var catalogTables = []string{"items", "audio_files"}

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// poolConfig parses databaseURL and applies the catalog session settings.
func poolConfig(databaseURL string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	// One lookup per submission.
	cfg.MaxConns = 4
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	params := cfg.ConnConfig.RuntimeParams
	params["application_name"] = "scribe-engine"
	params["default_transaction_read_only"] = "on"
	params["statement_timeout"] = "5000"
	return cfg, nil
}

func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*DB, error) {
	cfg, err := poolConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse library database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	db := &DB{Pool: pool, log: log}
	if err := db.HealthCheck(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("url", redactDSN(databaseURL)).
		Int32("max_conns", cfg.MaxConns).
		Msg("library database connected")
	return db, nil
}

// HealthCheck pings the server and checks that the catalog tables are
// visible to this session.
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var missing []string
	for _, table := range catalogTables {
		var found bool
		if err := db.Pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&found); err != nil {
			return err
		}
		if !found {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrCatalogMissing, missing)
	}
	return nil
}

// redactDSN hides the password of a URL-form DSN. Key/value DSNs cannot be
// parsed as URLs and are hidden entirely.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	return u.Redacted()
}

func (db *DB) Close() {
	db.log.Info().Msg("closing library database pool")
	db.Pool.Close()
}
