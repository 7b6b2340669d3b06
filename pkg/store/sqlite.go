package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // for "sqlite3" driver
	"github.com/rs/zerolog/log"

	"ConfigService/pkg/homescreen"
)

const schema = `
CREATE TABLE IF NOT EXISTS configurations (
	id TEXT PRIMARY KEY,
	schema_version INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	created_by TEXT NOT NULL,
	updated_by TEXT NOT NULL,
	data TEXT NOT NULL
)`

type SQLite struct {
	db  *sql.DB
	now clock
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create configurations table")
	}
	log.Info().Str("path", path).Msg("database initialized")
	return &SQLite{db: db}, nil
}

// WithClock replaces the clock used for created/updated timestamps.
func (s *SQLite) WithClock(now func() time.Time) *SQLite {
	s.now = now
	return s
}

func (s *SQLite) List(ctx context.Context, userID string) ([]homescreen.Configuration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schema_version, updated_at, data
		FROM configurations
		WHERE created_by = ?
		ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "query configurations")
	}
	defer rows.Close()

	out := []homescreen.Configuration{}
	for rows.Next() {
		cfg, err := scanConfiguration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, errors.Wrap(rows.Err(), "iterate configurations")
}

func (s *SQLite) Get(ctx context.Context, id, userID string) (homescreen.Configuration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, schema_version, updated_at, data
		FROM configurations
		WHERE id = ? AND created_by = ?`, id, userID)
	cfg, err := scanConfiguration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return homescreen.Configuration{}, ErrNotFound
	}
	return cfg, err
}

func (s *SQLite) Create(ctx context.Context, userID string, data homescreen.Config) (homescreen.Configuration, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return homescreen.Configuration{}, errors.Wrap(err, "encode configuration")
	}
	id := uuid.NewString()
	now := s.now.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO configurations (id, schema_version, created_at, updated_at, created_by, updated_by, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, homescreen.SchemaVersion, now.String(), now.String(), userID, userID, string(b))
	if err != nil {
		return homescreen.Configuration{}, errors.Wrap(err, "insert configuration")
	}
	return homescreen.Configuration{
		ID:            id,
		SchemaVersion: homescreen.SchemaVersion,
		UpdatedAt:     now,
		Data:          data,
	}, nil
}

func (s *SQLite) Update(ctx context.Context, id, userID string, data homescreen.Config) (homescreen.Configuration, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return homescreen.Configuration{}, errors.Wrap(err, "encode configuration")
	}
	now := s.now.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE configurations
		SET data = ?, updated_at = ?, updated_by = ?
		WHERE id = ? AND created_by = ?`,
		string(b), now.String(), userID, id, userID)
	if err != nil {
		return homescreen.Configuration{}, errors.Wrap(err, "update configuration")
	}
	if n, err := res.RowsAffected(); err != nil {
		return homescreen.Configuration{}, errors.Wrap(err, "update configuration")
	} else if n == 0 {
		return homescreen.Configuration{}, ErrNotFound
	}
	return homescreen.Configuration{
		ID:            id,
		SchemaVersion: homescreen.SchemaVersion,
		UpdatedAt:     now,
		Data:          data,
	}, nil
}

func (s *SQLite) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM configurations
		WHERE id = ? AND created_by = ?`, id, userID)
	if err != nil {
		return errors.Wrap(err, "delete configuration")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete configuration")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanConfiguration(sc scanner) (homescreen.Configuration, error) {
	var (
		cfg       homescreen.Configuration
		updatedAt string
		data      string
	)
	if err := sc.Scan(&cfg.ID, &cfg.SchemaVersion, &updatedAt, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cfg, err
		}
		return cfg, errors.Wrap(err, "scan configuration")
	}
	ts, err := homescreen.ParseTimestamp(updatedAt)
	if err != nil {
		return cfg, errors.Wrapf(err, "configuration %s: bad updated_at", cfg.ID)
	}
	cfg.UpdatedAt = ts
	if err := json.Unmarshal([]byte(data), &cfg.Data); err != nil {
		return cfg, errors.Wrapf(err, "configuration %s: bad data", cfg.ID)
	}
	return cfg, nil
}
