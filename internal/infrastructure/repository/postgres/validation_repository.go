package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

type ValidationRepository struct {
	db *sql.DB
}

func NewValidationRepository(db *sql.DB) *ValidationRepository {
	return &ValidationRepository{db: db}
}

func (r *ValidationRepository) Insert(ctx context.Context, v *domain.Validation) error {
	verified, err := marshalJSON("verified_items", nonNilStrings(v.VerifiedItems))
	if err != nil {
		return err
	}
	discrepancies, err := marshalJSON("discrepancies", nonNilStrings(v.Discrepancies))
	if err != nil {
		return err
	}
	missing, err := marshalJSON("missing_information", nonNilStrings(v.MissingInformation))
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, `
INSERT INTO validations (
	validation_type, entity_id, client_id, extraction_id, validation_status, confidence_score,
	feedback, verified_items, discrepancies, missing_information
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at`,
		string(v.Type), v.EntityID, nullableInt64(v.ClientID), nullableInt64(v.ExtractionID), string(v.Status),
		v.ConfidenceScore, v.Feedback, verified, discrepancies, missing,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert validation: %w", err)
	}
	return nil
}

// Latest returns nil without error when the entity has never been audited.
func (r *ValidationRepository) Latest(ctx context.Context, validationType domain.ValidationType, entityID string) (*domain.Validation, error) {
	var v domain.Validation
	var clientID, extractionID sql.NullInt64
	var vType, status string
	var verified, discrepancies, missing []byte
	err := r.db.QueryRowContext(ctx, `
SELECT id, validation_type, entity_id, client_id, extraction_id, validation_status, confidence_score,
	feedback, verified_items, discrepancies, missing_information, created_at
FROM validations
WHERE validation_type = $1 AND entity_id = $2
ORDER BY created_at DESC, id DESC
LIMIT 1`, string(validationType), entityID).Scan(
		&v.ID, &vType, &v.EntityID, &clientID, &extractionID, &status, &v.ConfidenceScore,
		&v.Feedback, &verified, &discrepancies, &missing, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan validation: %w", err)
	}
	v.Type = domain.ValidationType(vType)
	v.Status = domain.ValidationStatus(status)
	v.ClientID = int64Ptr(clientID)
	v.ExtractionID = int64Ptr(extractionID)
	if err := unmarshalJSON("verified_items", verified, &v.VerifiedItems); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("discrepancies", discrepancies, &v.Discrepancies); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("missing_information", missing, &v.MissingInformation); err != nil {
		return nil, err
	}
	v.VerifiedItems = nonNilStrings(v.VerifiedItems)
	v.Discrepancies = nonNilStrings(v.Discrepancies)
	v.MissingInformation = nonNilStrings(v.MissingInformation)
	return &v, nil
}

func (r *ValidationRepository) DeleteByEntities(ctx context.Context, validationType domain.ValidationType, entityIDs []string) (int64, error) {
	if len(entityIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
DELETE FROM validations WHERE validation_type = $1 AND entity_id = ANY($2)`, string(validationType), entityIDs)
	if err != nil {
		return 0, fmt.Errorf("delete validations: %w", err)
	}
	return rowsAffected(res, "delete validations")
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
