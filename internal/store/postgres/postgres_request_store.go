package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"dispatchq/internal/models"
	"dispatchq/internal/state"
)

type PostgresRequestStore struct {
	db *sql.DB
}

func NewPostgresRequestStore(db *sql.DB) *PostgresRequestStore {
	return &PostgresRequestStore{
		db: db,
	}
}

func (r *PostgresRequestStore) Insert(ctx context.Context, rec models.RequestRecord) error {
	query := `
        INSERT INTO dispatchq_schema.requests (
            id,
            priority,
            payload,
            status,
            max_attempts,
            enqueued_at,
            created_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, now())
    `

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.Priority,
		[]byte(rec.Payload),
		state.StatusQueued,
		rec.MaxAttempts,
		rec.EnqueuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request %s: %w", rec.ID, err)
	}
	return nil
}

func (r *PostgresRequestStore) MarkProcessing(ctx context.Context, id string, attempt int, startedAt time.Time) error {
	query := `
		UPDATE dispatchq_schema.requests
		SET status = $1, attempts = $2, started_at = $3
		WHERE id = $4
	`

	return r.exec(ctx, id, query, state.StatusProcessing, attempt+1, startedAt, id)
}

func (r *PostgresRequestStore) MarkSuccess(ctx context.Context, id string) error {
	query := `
		UPDATE dispatchq_schema.requests
		SET status = $1, finished_at = now()
		WHERE id = $2
	`

	return r.exec(ctx, id, query, state.StatusSucceeded, id)
}

func (r *PostgresRequestStore) MarkFailure(ctx context.Context, id string, errMsg string, attempts, maxAttempts int) error {
	if attempts <= maxAttempts {
		query := `
			UPDATE dispatchq_schema.requests
			SET status = $1, attempts = $2, last_error = $3
			WHERE id = $4
		`
		return r.exec(ctx, id, query, state.StatusRetrying, attempts, errMsg, id)
	}

	query := `
		UPDATE dispatchq_schema.requests
		SET status = $1, attempts = $2, last_error = $3, finished_at = now()
		WHERE id = $4
	`
	return r.exec(ctx, id, query, state.StatusFailed, attempts, errMsg, id)
}

func (r *PostgresRequestStore) MarkCleared(ctx context.Context, id string) error {
	query := `
		UPDATE dispatchq_schema.requests
		SET status = $1, finished_at = now()
		WHERE id = $2
	`

	return r.exec(ctx, id, query, state.StatusCleared, id)
}

func (r *PostgresRequestStore) Fetch(
	ctx context.Context,
	page int,
	pageSize int,
	statuses []state.Status) (*models.PaginationResult[models.RequestRecord], error) {

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	where := "1=1"
	args := []interface{}{}
	argIndex := 1

	if len(statuses) > 0 {
		placeholders := []string{}
		for _, s := range statuses {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argIndex))
			args = append(args, s)
			argIndex++
		}
		where += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	countQuery := `SELECT COUNT(*) FROM dispatchq_schema.requests WHERE ` + where
	selectQuery := `
		SELECT id, priority, payload, status, attempts, max_attempts,
		       enqueued_at, started_at, finished_at, last_error, created_at
		FROM dispatchq_schema.requests
		WHERE ` + where + fmt.Sprintf(" ORDER BY enqueued_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)

	var totalItems int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalItems); err != nil {
		return nil, err
	}

	args = append(args, pageSize, offset)
	rows, err := r.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.RequestRecord
	for rows.Next() {
		rec, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := int(math.Ceil(float64(totalItems) / float64(pageSize)))
	return &models.PaginationResult[models.RequestRecord]{
		Items:           records,
		TotalItems:      totalItems,
		Page:            page,
		PageSize:        pageSize,
		TotalPages:      totalPages,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}, nil
}

func (r *PostgresRequestStore) CountGroupedByStatus(ctx context.Context) (map[state.Status]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM dispatchq_schema.requests
		GROUP BY status
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[state.Status]int)
	for rows.Next() {
		var status state.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *PostgresRequestStore) PruneFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM dispatchq_schema.requests
		WHERE status IN ($1, $2, $3) AND finished_at < $4
	`

	result, err := r.db.ExecContext(ctx, query,
		state.StatusSucceeded,
		state.StatusFailed,
		state.StatusCleared,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune requests: %w", err)
	}
	return result.RowsAffected()
}

func (r *PostgresRequestStore) Close() error {
	return r.db.Close()
}

func (r *PostgresRequestStore) exec(ctx context.Context, id, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update request %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no request found with id %s", id)
	}
	return nil
}

func scanRequest(rows *sql.Rows) (*models.RequestRecord, error) {
	var rec models.RequestRecord
	var payload []byte
	err := rows.Scan(
		&rec.ID,
		&rec.Priority,
		&payload,
		&rec.Status,
		&rec.Attempts,
		&rec.MaxAttempts,
		&rec.EnqueuedAt,
		&rec.StartedAt,
		&rec.FinishedAt,
		&rec.LastError,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Payload = payload
	return &rec, nil
}
