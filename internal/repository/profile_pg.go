package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrUsernameTaken   = errors.New("username already exists")
)

type PostgresProfileRepo struct {
	db *sqlx.DB
}

func NewPostgresProfileRepo(db *sqlx.DB) *PostgresProfileRepo {
	repo := &PostgresProfileRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

const profileColumns = `id, instagram_id, username, full_name, biography, is_private, is_verified,
	media_count, follower_count, following_count,
	original_profile_picture_url, profile_picture_path, profile_picture_hash,
	allow_auto_update_profile, allow_auto_update_stories,
	raw_api_data, api_updated_at, created_at, updated_at`

func (r *PostgresProfileRepo) scanProfile(row sqlx.ColScanner) (*model.Profile, error) {
	var p model.Profile
	var instagramID, rawData sql.NullString
	err := row.Scan(
		&p.ID,
		&instagramID,
		&p.Username,
		&p.FullName,
		&p.Biography,
		&p.IsPrivate,
		&p.IsVerified,
		&p.MediaCount,
		&p.FollowerCount,
		&p.FollowingCount,
		&p.OriginalProfilePictureURL,
		&p.ProfilePicturePath,
		&p.ProfilePictureHash,
		&p.AllowAutoUpdateProfile,
		&p.AllowAutoUpdateStories,
		&rawData,
		&p.APIUpdatedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.InstagramID = instagramID.String
	if rawData.Valid {
		p.RawAPIData = []byte(rawData.String)
	}
	return &p, nil
}

func (r *PostgresProfileRepo) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	p, err := r.scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

func (r *PostgresProfileRepo) GetByUsername(ctx context.Context, username string) (*model.Profile, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE username = $1`, username)
	p, err := r.scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	return p, err
}

func (r *PostgresProfileRepo) List(ctx context.Context, limit, offset int, search string) ([]*model.Profile, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + profileColumns + ` FROM profiles`
	args := []interface{}{}
	idx := 1
	if search != "" {
		query += fmt.Sprintf(" WHERE username ILIKE $%d", idx)
		args = append(args, "%"+search+"%")
		idx++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]*model.Profile, 0, limit)
	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ListAutoUpdate returns profiles eligible for scheduled picture refresh.
func (r *PostgresProfileRepo) ListAutoUpdate(ctx context.Context) ([]*model.Profile, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 WHERE allow_auto_update_profile AND original_profile_picture_url <> ''
		 ORDER BY api_updated_at NULLS FIRST`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []*model.Profile{}
	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *PostgresProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (
			id, instagram_id, username, full_name, biography, is_private, is_verified,
			media_count, follower_count, following_count,
			original_profile_picture_url, profile_picture_path, profile_picture_hash,
			allow_auto_update_profile, allow_auto_update_stories,
			raw_api_data, api_updated_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, p.ID, nullable(p.InstagramID), p.Username, p.FullName, p.Biography, p.IsPrivate, p.IsVerified,
		p.MediaCount, p.FollowerCount, p.FollowingCount,
		p.OriginalProfilePictureURL, p.ProfilePicturePath, p.ProfilePictureHash,
		p.AllowAutoUpdateProfile, p.AllowAutoUpdateStories,
		nullableJSON(p.RawAPIData), p.APIUpdatedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

func (r *PostgresProfileRepo) Update(ctx context.Context, p *model.Profile) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE profiles SET
			instagram_id = $1, username = $2, full_name = $3, biography = $4,
			is_private = $5, is_verified = $6,
			media_count = $7, follower_count = $8, following_count = $9,
			original_profile_picture_url = $10,
			allow_auto_update_profile = $11, allow_auto_update_stories = $12,
			raw_api_data = $13, api_updated_at = $14, updated_at = $15
		WHERE id = $16
	`, nullable(p.InstagramID), p.Username, p.FullName, p.Biography,
		p.IsPrivate, p.IsVerified,
		p.MediaCount, p.FollowerCount, p.FollowingCount,
		p.OriginalProfilePictureURL,
		p.AllowAutoUpdateProfile, p.AllowAutoUpdateStories,
		nullableJSON(p.RawAPIData), p.APIUpdatedAt, p.UpdatedAt, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// UpdatePicture writes the stored location and fingerprint as one
// statement. The pair must never go stale relative to each other.
func (r *PostgresProfileRepo) UpdatePicture(ctx context.Context, id, path, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE profiles SET
			profile_picture_path = $1,
			profile_picture_hash = $2,
			updated_at = $3
		WHERE id = $4
	`, path, hash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *PostgresProfileRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *PostgresProfileRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			instagram_id TEXT UNIQUE,
			username TEXT NOT NULL UNIQUE,
			full_name TEXT NOT NULL DEFAULT '',
			biography TEXT NOT NULL DEFAULT '',
			is_private BOOLEAN NOT NULL DEFAULT FALSE,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			media_count INTEGER NOT NULL DEFAULT 0,
			follower_count INTEGER NOT NULL DEFAULT 0,
			following_count INTEGER NOT NULL DEFAULT 0,
			original_profile_picture_url TEXT NOT NULL DEFAULT '',
			profile_picture_path TEXT NOT NULL DEFAULT '',
			profile_picture_hash TEXT NOT NULL DEFAULT '',
			allow_auto_update_profile BOOLEAN NOT NULL DEFAULT FALSE,
			allow_auto_update_stories BOOLEAN NOT NULL DEFAULT FALSE,
			raw_api_data JSONB,
			api_updated_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_profiles_auto_update ON profiles(allow_auto_update_profile) WHERE allow_auto_update_profile`)
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}
