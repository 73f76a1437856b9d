package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

type ValidationLookupUseCase struct {
	validations ports.ValidationRepository
}

func NewValidationLookupUseCase(validations ports.ValidationRepository) *ValidationLookupUseCase {
	return &ValidationLookupUseCase{validations: validations}
}

// Latest returns the newest audit row, or a pending record when none exists.
func (uc *ValidationLookupUseCase) Latest(
	ctx context.Context,
	validationType domain.ValidationType,
	entityID string,
) (domain.Validation, error) {
	if _, ok := domain.ParseValidationType(string(validationType)); !ok {
		return domain.Validation{}, domain.WrapError(domain.ErrInvalidInput, "lookup validation",
			fmt.Errorf("unknown validation type %q", validationType))
	}
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return domain.Validation{}, domain.WrapError(domain.ErrInvalidInput, "lookup validation", errors.New("entity id is required"))
	}

	latest, err := uc.validations.Latest(ctx, validationType, entityID)
	if err != nil {
		return domain.Validation{}, fmt.Errorf("lookup validation: %w", err)
	}
	if latest == nil {
		return domain.PendingValidation(validationType, entityID), nil
	}
	return *latest, nil
}
