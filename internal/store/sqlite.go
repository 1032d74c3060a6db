package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/shiftbook/rosterscan/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS job_aliases (
	user_id       TEXT NOT NULL,
	alias         TEXT NOT NULL,
	job_config_id TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (user_id, alias)
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id           TEXT PRIMARY KEY,
	roster_identifier BLOB,
	scans_used        INTEGER NOT NULL DEFAULT 0,
	scan_limit        INTEGER NOT NULL DEFAULT 0,
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

func (s *SQLiteStore) UpsertAlias(ctx context.Context, userID, alias, jobConfigID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_aliases (user_id, alias, job_config_id, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT (user_id, alias)
		DO UPDATE SET job_config_id = excluded.job_config_id, updated_at = datetime('now')`,
		userID, alias, jobConfigID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert alias %q", alias)
	}
	return nil
}

func (s *SQLiteStore) ListAliases(ctx context.Context, userID string) ([]model.JobAlias, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alias, job_config_id FROM job_aliases
		WHERE user_id = ? ORDER BY alias`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list aliases")
	}
	defer rows.Close()

	var aliases []model.JobAlias
	for rows.Next() {
		var a model.JobAlias
		if err := rows.Scan(&a.Alias, &a.JobConfigID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alias")
		}
		aliases = append(aliases, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate aliases")
	}
	return aliases, nil
}

func (s *SQLiteStore) DeleteAlias(ctx context.Context, userID, alias string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM job_aliases WHERE user_id = ? AND alias = ?`, userID, alias)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete alias %q", alias)
	}
	return nil
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, roster_identifier, scans_used, scan_limit, updated_at
		FROM profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.RosterIdentifier, &p.ScansUsed, &p.ScanLimit, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get profile")
	}
	if t, err := time.Parse("2006-01-02 15:04:05", updatedAt); err == nil {
		p.UpdatedAt = t
	}
	return &p, nil
}

func (s *SQLiteStore) SaveRosterIdentifier(ctx context.Context, userID string, blob []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, roster_identifier, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (user_id)
		DO UPDATE SET roster_identifier = excluded.roster_identifier, updated_at = datetime('now')`,
		userID, blob)
	if err != nil {
		return eris.Wrap(err, "sqlite: save roster identifier")
	}
	return nil
}

func (s *SQLiteStore) SetScanUsage(ctx context.Context, userID string, used, limit int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, scans_used, scan_limit, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT (user_id)
		DO UPDATE SET scans_used = excluded.scans_used, scan_limit = excluded.scan_limit, updated_at = datetime('now')`,
		userID, used, limit)
	if err != nil {
		return eris.Wrap(err, "sqlite: set scan usage")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
