package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type ClientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

const clientColumns = `id, name, email, phone, company, active, created_at, updated_at`

func scanClient(row scanner) (*domain.Client, error) {
	var c domain.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClientRepository) Create(ctx context.Context, in domain.ClientInput) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO clients (name, email, phone, company)
VALUES ($1, $2, $3, $4)
RETURNING `+clientColumns, in.Name, in.Email, in.Phone, in.Company)
	c, err := scanClient(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.WrapError(domain.ErrConflict, "create client", fmt.Errorf("email %s already registered", in.Email))
		}
		return nil, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrClientNotFound, "get client", fmt.Errorf("id %d", id))
		}
		return nil, fmt.Errorf("scan client: %w", err)
	}
	return c, nil
}

func (r *ClientRepository) List(ctx context.Context, activeOnly bool) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+clientColumns+`
FROM clients
WHERE ($1 = FALSE OR active = TRUE)
ORDER BY name, id`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return out, nil
}

func (r *ClientRepository) Update(ctx context.Context, id int64, in domain.ClientInput) (*domain.Client, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE clients
SET name = $2, email = $3, phone = $4, company = $5, updated_at = now()
WHERE id = $1
RETURNING `+clientColumns, id, in.Name, in.Email, in.Phone, in.Company)
	c, err := scanClient(row)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, domain.WrapError(domain.ErrClientNotFound, "update client", fmt.Errorf("id %d", id))
		case isUniqueViolation(err):
			return nil, domain.WrapError(domain.ErrConflict, "update client", fmt.Errorf("email %s already registered", in.Email))
		}
		return nil, fmt.Errorf("update client: %w", err)
	}
	return c, nil
}

func (r *ClientRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE clients SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set client active: %w", err)
	}
	n, err := rowsAffected(res, "set client active")
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.WrapError(domain.ErrClientNotFound, "set client active", fmt.Errorf("id %d", id))
	}
	return nil
}

func (r *ClientRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	return nil
}

func (r *ClientRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE active = TRUE`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active clients: %w", err)
	}
	return n, nil
}
