package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gramvault/gramvault/internal/model"
	"github.com/jmoiron/sqlx"
)

var ErrLogFinalized = errors.New("api call log already finalized")

type PostgresAPILogRepo struct {
	db *sqlx.DB
}

func NewPostgresAPILogRepo(db *sqlx.DB) *PostgresAPILogRepo {
	repo := &PostgresAPILogRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

// Insert writes the entry in pending state before the call is issued,
// so a crash mid-call still leaves an auditable trace.
func (r *PostgresAPILogRepo) Insert(ctx context.Context, entry *model.APICallLog) error {
	if entry == nil {
		return nil
	}
	reqHeaders, _ := json.Marshal(entry.RequestHeaders)
	reqParams, _ := json.Marshal(entry.RequestParams)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_call_logs (
			id, operation, method, url, request_headers, request_params,
			request_body, outcome, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.Operation, entry.Method, entry.URL, reqHeaders, reqParams,
		entry.RequestBody, entry.Outcome, entry.CreatedAt)
	return err
}

// Finalize moves a pending entry into a terminal outcome. The pending
// guard in the WHERE clause makes a second finalize a no-op error rather
// than an overwrite.
func (r *PostgresAPILogRepo) Finalize(ctx context.Context, entry *model.APICallLog) error {
	if entry == nil {
		return nil
	}
	respHeaders, _ := json.Marshal(entry.ResponseHeaders)
	res, err := r.db.ExecContext(ctx, `
		UPDATE api_call_logs SET
			response_status = $1,
			response_headers = $2,
			response_body = $3,
			duration_ms = $4,
			outcome = $5,
			finished_at = $6
		WHERE id = $7 AND outcome = 'pending'
	`, entry.ResponseStatus, respHeaders, entry.ResponseBody,
		entry.DurationMs, entry.Outcome, entry.FinishedAt, entry.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrLogFinalized
	}
	return nil
}

type APILogFilter struct {
	Operation string
	Outcome   string
	From      *time.Time
	To        *time.Time
	Limit     int
}

func (r *PostgresAPILogRepo) List(ctx context.Context, filter APILogFilter) ([]*model.APICallLog, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `SELECT id, operation, method, url, request_headers, request_params, request_body,
		response_status, response_headers, response_body, duration_ms, outcome, created_at, finished_at
		FROM api_call_logs`
	clauses := []string{}
	args := []interface{}{}
	idx := 1

	if filter.Operation != "" {
		clauses = append(clauses, fmt.Sprintf("operation = $%d", idx))
		args = append(args, filter.Operation)
		idx++
	}
	if filter.Outcome != "" {
		clauses = append(clauses, fmt.Sprintf("outcome = $%d", idx))
		args = append(args, filter.Outcome)
		idx++
	}
	if filter.From != nil {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, *filter.From)
		idx++
	}
	if filter.To != nil {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, *filter.To)
		idx++
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", idx)
	args = append(args, limit)

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.APICallLog, 0, limit)
	for rows.Next() {
		var entry model.APICallLog
		var reqHeaders, reqParams, respHeaders []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.Operation,
			&entry.Method,
			&entry.URL,
			&reqHeaders,
			&reqParams,
			&entry.RequestBody,
			&entry.ResponseStatus,
			&respHeaders,
			&entry.ResponseBody,
			&entry.DurationMs,
			&entry.Outcome,
			&entry.CreatedAt,
			&entry.FinishedAt,
		); err != nil {
			return nil, err
		}
		if len(reqHeaders) > 0 {
			_ = json.Unmarshal(reqHeaders, &entry.RequestHeaders)
		}
		if len(reqParams) > 0 {
			_ = json.Unmarshal(reqParams, &entry.RequestParams)
		}
		if len(respHeaders) > 0 {
			_ = json.Unmarshal(respHeaders, &entry.ResponseHeaders)
		}
		records = append(records, &entry)
	}
	return records, rows.Err()
}

func (r *PostgresAPILogRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := r.db.ExecContext(ctx, `DELETE FROM api_call_logs WHERE created_at < $1`, cutoff)
	return err
}

func (r *PostgresAPILogRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS api_call_logs (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			method TEXT NOT NULL,
			url TEXT NOT NULL,
			request_headers JSONB,
			request_params JSONB,
			request_body TEXT NOT NULL DEFAULT '',
			response_status INTEGER NOT NULL DEFAULT 0,
			response_headers JSONB,
			response_body TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_api_call_logs_created ON api_call_logs(created_at DESC)`)
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_api_call_logs_operation ON api_call_logs(operation, created_at DESC)`)
	return nil
}
