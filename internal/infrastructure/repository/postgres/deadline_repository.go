package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type DeadlineRepository struct {
	db *sql.DB
}

func NewDeadlineRepository(db *sql.DB) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

const deadlineColumns = `d.id, d.extraction_id, d.deadline_date, d.description, d.working_days_remaining,
	d.risk_level, d.source_id, d.client_id, d.completed, d.completed_at, d.created_at`

func scanDeadline(row scanner, extra ...any) (*domain.Deadline, error) {
	var d domain.Deadline
	var extractionID, clientID sql.NullInt64
	var completedAt sql.NullTime
	var risk string
	dest := []any{
		&d.ID, &extractionID, &d.Date, &d.Description, &d.WorkingDaysRemaining,
		&risk, &d.SourceID, &clientID, &d.Completed, &completedAt, &d.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	d.ExtractionID = int64Ptr(extractionID)
	d.ClientID = int64Ptr(clientID)
	d.RiskLevel = domain.RiskLevel(risk)
	if completedAt.Valid {
		at := completedAt.Time
		d.CompletedAt = &at
	}
	return &d, nil
}

func (r *DeadlineRepository) Insert(ctx context.Context, d *domain.Deadline) error {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO deadlines (
	extraction_id, deadline_date, description, working_days_remaining, risk_level, source_id, client_id, completed
) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
RETURNING id, created_at`,
		nullableInt64(d.ExtractionID), d.Date, d.Description, d.WorkingDaysRemaining,
		string(d.RiskLevel), d.SourceID, nullableInt64(d.ClientID),
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert deadline: %w", err)
	}
	return nil
}

func (r *DeadlineRepository) GetByID(ctx context.Context, id int64) (*domain.Deadline, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deadlineColumns+` FROM deadlines d WHERE d.id = $1`, id)
	d, err := scanDeadline(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDeadlineNotFound, "get deadline", fmt.Errorf("id %d", id))
		}
		return nil, fmt.Errorf("scan deadline: %w", err)
	}
	return d, nil
}

func (r *DeadlineRepository) List(ctx context.Context, filter domain.DeadlineFilter) ([]domain.Deadline, error) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ClientID != nil {
		add("d.client_id = $%d", *filter.ClientID)
	}
	if filter.RiskLevel != "" {
		add("d.risk_level = $%d", string(filter.RiskLevel))
	}
	if filter.Completed != nil {
		add("d.completed = $%d", *filter.Completed)
	}
	if filter.From != nil {
		add("d.deadline_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("d.deadline_date <= $%d", *filter.To)
	}

	query := `SELECT ` + deadlineColumns + ` FROM deadlines d`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY d.deadline_date ASC, d.id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Deadline, 0)
	for rows.Next() {
		d, err := scanDeadline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deadline: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deadlines: %w", err)
	}
	return out, nil
}

// ListUrgent returns open deadlines joined with client contact fields. The
// caller applies the urgency ordering.
func (r *DeadlineRepository) ListUrgent(ctx context.Context, clientID *int64) ([]domain.UrgentDeadline, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+deadlineColumns+`, COALESCE(c.name, ''), COALESCE(c.email, '')
FROM deadlines d
LEFT JOIN clients c ON c.id = d.client_id
WHERE d.completed = FALSE AND ($1::bigint IS NULL OR d.client_id = $1)
ORDER BY d.deadline_date ASC, d.id ASC`, nullableInt64(clientID))
	if err != nil {
		return nil, fmt.Errorf("list urgent deadlines: %w", err)
	}
	defer rows.Close()

	out := make([]domain.UrgentDeadline, 0)
	for rows.Next() {
		var item domain.UrgentDeadline
		d, err := scanDeadline(rows, &item.ClientName, &item.ClientEmail)
		if err != nil {
			return nil, fmt.Errorf("scan urgent deadline: %w", err)
		}
		item.Deadline = *d
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate urgent deadlines: %w", err)
	}
	return out, nil
}

// Stats counts open deadlines per risk tier; completed rows only feed Completed.
func (r *DeadlineRepository) Stats(ctx context.Context, clientID *int64) (domain.DeadlineStats, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT risk_level, completed, COUNT(*)
FROM deadlines
WHERE ($1::bigint IS NULL OR client_id = $1)
GROUP BY risk_level, completed`, nullableInt64(clientID))
	if err != nil {
		return domain.DeadlineStats{}, fmt.Errorf("deadline stats: %w", err)
	}
	defer rows.Close()

	var stats domain.DeadlineStats
	for rows.Next() {
		var risk string
		var completed bool
		var n int
		if err := rows.Scan(&risk, &completed, &n); err != nil {
			return domain.DeadlineStats{}, fmt.Errorf("scan deadline stats: %w", err)
		}
		if completed {
			stats.Completed += n
			continue
		}
		stats.Add(domain.RiskLevel(risk), n)
	}
	if err := rows.Err(); err != nil {
		return domain.DeadlineStats{}, fmt.Errorf("iterate deadline stats: %w", err)
	}
	return stats, nil
}

func (r *DeadlineRepository) SetCompleted(ctx context.Context, id int64, completed bool, at time.Time) (*domain.Deadline, error) {
	var completedAt any
	if completed {
		completedAt = at
	}
	row := r.db.QueryRowContext(ctx, `
UPDATE deadlines d
SET completed = $2, completed_at = $3
WHERE d.id = $1
RETURNING `+deadlineColumns, id, completed, completedAt)
	d, err := scanDeadline(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDeadlineNotFound, "set deadline completion", fmt.Errorf("id %d", id))
		}
		return nil, fmt.Errorf("set deadline completion: %w", err)
	}
	return d, nil
}

func (r *DeadlineRepository) UpdateRisk(ctx context.Context, id int64, workingDays int, risk domain.RiskLevel) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE deadlines SET working_days_remaining = $2, risk_level = $3 WHERE id = $1`, id, workingDays, string(risk))
	if err != nil {
		return fmt.Errorf("update deadline risk: %w", err)
	}
	n, err := rowsAffected(res, "update deadline risk")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.WrapError(domain.ErrDeadlineNotFound, "update deadline risk", fmt.Errorf("id %d", id))
	}
	return nil
}

func (r *DeadlineRepository) ListIDsBySource(ctx context.Context, sourceID string, clientID *int64) ([]int64, error) {
	return r.listIDs(ctx, `
SELECT id FROM deadlines
WHERE source_id = $1 AND client_id IS NOT DISTINCT FROM $2
ORDER BY id`, sourceID, nullableInt64(clientID))
}

func (r *DeadlineRepository) ListIDsByClient(ctx context.Context, clientID int64) ([]int64, error) {
	return r.listIDs(ctx, `SELECT id FROM deadlines WHERE client_id = $1 ORDER BY id`, clientID)
}

func (r *DeadlineRepository) listIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deadline ids: %w", err)
	}
	defer rows.Close()

	out := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan deadline id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deadline ids: %w", err)
	}
	return out, nil
}

func (r *DeadlineRepository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM deadlines WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete deadlines: %w", err)
	}
	return rowsAffected(res, "delete deadlines")
}

func (r *DeadlineRepository) DeleteByClient(ctx context.Context, clientID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM deadlines WHERE client_id = $1`, clientID)
	if err != nil {
		return 0, fmt.Errorf("delete client deadlines: %w", err)
	}
	return rowsAffected(res, "delete client deadlines")
}

type ExtractionRepository struct {
	db *sql.DB
}

func NewExtractionRepository(db *sql.DB) *ExtractionRepository {
	return &ExtractionRepository{db: db}
}

func (r *ExtractionRepository) Insert(ctx context.Context, e *domain.DeadlineExtraction) error {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO deadline_extractions (source_id, text_excerpt, extracted_count, extraction_timestamp, client_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		e.SourceID, e.TextExcerpt, e.ExtractedCount, e.ExtractionTimestamp, nullableInt64(e.ClientID),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert deadline extraction: %w", err)
	}
	return nil
}

func (r *ExtractionRepository) DeleteByClient(ctx context.Context, clientID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM deadline_extractions WHERE client_id = $1`, clientID)
	if err != nil {
		return 0, fmt.Errorf("delete client extractions: %w", err)
	}
	return rowsAffected(res, "delete client extractions")
}
