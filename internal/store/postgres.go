package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/shiftbook/rosterscan/internal/model"
)

// Querier is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Querier
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(5)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithQuerier wraps an existing querier (tests).
func NewPostgresWithQuerier(q Querier) *PostgresStore {
	return &PostgresStore{pool: q}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS job_aliases (
	user_id       TEXT NOT NULL,
	alias         TEXT NOT NULL,
	job_config_id TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, alias)
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id           TEXT PRIMARY KEY,
	roster_identifier BYTEA,
	scans_used        INTEGER NOT NULL DEFAULT 0,
	scan_limit        INTEGER NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) UpsertAlias(ctx context.Context, userID, alias, jobConfigID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_aliases (user_id, alias, job_config_id, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, alias)
		DO UPDATE SET job_config_id = EXCLUDED.job_config_id, updated_at = now()`,
		userID, alias, jobConfigID)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert alias %q", alias)
	}
	return nil
}

func (s *PostgresStore) ListAliases(ctx context.Context, userID string) ([]model.JobAlias, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT alias, job_config_id FROM job_aliases
		WHERE user_id = $1 ORDER BY alias`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list aliases")
	}
	defer rows.Close()

	var aliases []model.JobAlias
	for rows.Next() {
		var a model.JobAlias
		if err := rows.Scan(&a.Alias, &a.JobConfigID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alias")
		}
		aliases = append(aliases, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate aliases")
	}
	return aliases, nil
}

func (s *PostgresStore) DeleteAlias(ctx context.Context, userID, alias string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM job_aliases WHERE user_id = $1 AND alias = $2`, userID, alias)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete alias %q", alias)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, roster_identifier, scans_used, scan_limit, updated_at
		FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.RosterIdentifier, &p.ScansUsed, &p.ScanLimit, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get profile")
	}
	return &p, nil
}

func (s *PostgresStore) SaveRosterIdentifier(ctx context.Context, userID string, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, roster_identifier, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET roster_identifier = EXCLUDED.roster_identifier, updated_at = now()`,
		userID, blob)
	if err != nil {
		return eris.Wrap(err, "postgres: save roster identifier")
	}
	return nil
}

func (s *PostgresStore) SetScanUsage(ctx context.Context, userID string, used, limit int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, scans_used, scan_limit, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id)
		DO UPDATE SET scans_used = EXCLUDED.scans_used, scan_limit = EXCLUDED.scan_limit, updated_at = now()`,
		userID, used, limit)
	if err != nil {
		return eris.Wrap(err, "postgres: set scan usage")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
