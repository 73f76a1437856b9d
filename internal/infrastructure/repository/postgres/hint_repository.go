package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type HintRepository struct {
	db *sql.DB
}

func NewHintRepository(db *sql.DB) *HintRepository {
	return &HintRepository{db: db}
}

func (r *HintRepository) Insert(ctx context.Context, h *domain.HintRecord) error {
	data, err := marshalJSON("extracted_data", h.ExtractedData)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
INSERT INTO hint_extractions (client_id, document_id, extracted_data, model_version)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`,
		nullableInt64(h.ClientID), h.DocumentID, data, h.ModelVersion,
	).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert hint extraction: %w", err)
	}
	return nil
}

func (r *HintRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hint_extractions WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document hints: %w", err)
	}
	return rowsAffected(res, "delete document hints")
}

func (r *HintRepository) DeleteByClient(ctx context.Context, clientID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM hint_extractions WHERE client_id = $1`, clientID)
	if err != nil {
		return 0, fmt.Errorf("delete client hints: %w", err)
	}
	return rowsAffected(res, "delete client hints")
}
