package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var ErrPaymentNotFound = errors.New("payment not found")

type PostgresPaymentRepo struct {
	db *sqlx.DB
}

func NewPostgresPaymentRepo(db *sqlx.DB) *PostgresPaymentRepo {
	repo := &PostgresPaymentRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresPaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, provider, reference, profile_id, kind, quantity,
			amount, currency, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, p.ID, p.Provider, p.Reference, nullable(p.ProfileID), p.Kind, p.Quantity,
		p.Amount.String(), p.Currency, p.Status, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PostgresPaymentRepo) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	row := r.db.QueryRowxContext(ctx, `
		SELECT id, provider, reference, profile_id, kind, quantity,
			amount, currency, status, created_at, updated_at
		FROM payments WHERE reference = $1
	`, reference)
	return scanPayment(row)
}

func (r *PostgresPaymentRepo) List(ctx context.Context, limit int) ([]*model.Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryxContext(ctx, `
		SELECT id, provider, reference, profile_id, kind, quantity,
			amount, currency, status, created_at, updated_at
		FROM payments ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*model.Payment, 0, limit)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PostgresPaymentRepo) UpdateStatus(ctx context.Context, reference string, status model.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = $1, updated_at = $2 WHERE reference = $3
	`, status, time.Now().UTC(), reference)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func scanPayment(row sqlx.ColScanner) (*model.Payment, error) {
	var p model.Payment
	var profileID sql.NullString
	var amount string
	err := row.Scan(
		&p.ID, &p.Provider, &p.Reference, &profileID, &p.Kind, &p.Quantity,
		&amount, &p.Currency, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	p.ProfileID = profileID.String
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PostgresPaymentRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			reference TEXT NOT NULL UNIQUE,
			profile_id TEXT,
			kind TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			amount NUMERIC(18,2) NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}
