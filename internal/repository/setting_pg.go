package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/jmoiron/sqlx"
)

var ErrSettingNotFound = errors.New("fetcher setting not found")

// PostgresSettingRepo stores the single runtime configuration record.
// Writes replace the whole record in one statement so a concurrent
// reader never observes a partially updated row.
type PostgresSettingRepo struct {
	db *sqlx.DB
}

func NewPostgresSettingRepo(db *sqlx.DB) *PostgresSettingRepo {
	repo := &PostgresSettingRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

// Current reads the live record fresh; callers must not cache it.
func (r *PostgresSettingRepo) Current(ctx context.Context) (*model.FetcherSetting, error) {
	row := r.db.QueryRowxContext(ctx, `
		SELECT base_url, api_key, timeout_seconds, extra_headers, updated_at
		FROM fetcher_settings WHERE id = 1
	`)

	var s model.FetcherSetting
	var headersJSON []byte
	if err := row.Scan(&s.BaseURL, &s.APIKey, &s.TimeoutSeconds, &headersJSON, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, err
	}
	if len(headersJSON) > 0 {
		_ = json.Unmarshal(headersJSON, &s.ExtraHeaders)
	}
	return &s, nil
}

// Set upserts the singleton row. Last write wins.
func (r *PostgresSettingRepo) Set(ctx context.Context, s *model.FetcherSetting) error {
	headersJSON, _ := json.Marshal(s.ExtraHeaders)
	s.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO fetcher_settings (id, base_url, api_key, timeout_seconds, extra_headers, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			base_url = EXCLUDED.base_url,
			api_key = EXCLUDED.api_key,
			timeout_seconds = EXCLUDED.timeout_seconds,
			extra_headers = EXCLUDED.extra_headers,
			updated_at = EXCLUDED.updated_at
	`, s.BaseURL, s.APIKey, s.TimeoutSeconds, headersJSON, s.UpdatedAt)
	return err
}

// SeedIfEmpty writes the config-file values only when no record exists,
// so a runtime edit is never clobbered by a restart.
func (r *PostgresSettingRepo) SeedIfEmpty(ctx context.Context, s *model.FetcherSetting) error {
	if _, err := r.Current(ctx); err == nil {
		return nil
	} else if !errors.Is(err, ErrSettingNotFound) {
		return err
	}
	return r.Set(ctx, s)
}

func (r *PostgresSettingRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS fetcher_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			base_url TEXT NOT NULL DEFAULT '',
			api_key TEXT NOT NULL DEFAULT '',
			timeout_seconds INTEGER NOT NULL DEFAULT 30,
			extra_headers JSONB,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}
