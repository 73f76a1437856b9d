package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// ValidationAgent audits primary model output with the hint model. It never
// returns an error: failures become an "error" outcome with zero confidence.
type ValidationAgent struct {
	model ports.ModelClient
}

func NewValidationAgent(model ports.ModelClient) *ValidationAgent {
	return &ValidationAgent{model: model}
}

type auditResponse struct {
	Status             modelString  `json:"validation_status"`
	ConfidenceScore    modelNumber  `json:"confidence_score"`
	Feedback           modelString  `json:"feedback"`
	VerifiedItems      modelStrings `json:"verified_items"`
	Discrepancies      modelStrings `json:"discrepancies"`
	MissingInformation modelStrings `json:"missing_information"`
}

func (a *ValidationAgent) ValidateClassification(
	ctx context.Context,
	cls domain.Classification,
	text string,
	hints *domain.HintPayload,
) domain.ValidationOutcome {
	return a.audit(ctx, domain.ValidationClassification, buildClassificationAuditPrompt(cls, text, hints))
}

func (a *ValidationAgent) ValidateDeadlines(
	ctx context.Context,
	deadlines []domain.Deadline,
	text string,
	hints *domain.HintPayload,
) domain.ValidationOutcome {
	return a.audit(ctx, domain.ValidationDeadline, buildDeadlineAuditPrompt(deadlines, text, hints))
}

func (a *ValidationAgent) audit(ctx context.Context, kind domain.ValidationType, prompt string) domain.ValidationOutcome {
	if a.model == nil {
		return a.failed(kind, "Validation error: hint model not configured")
	}

	raw, err := a.model.GenerateJSON(ctx, prompt)
	if err != nil {
		return a.failed(kind, fmt.Sprintf("Validation error: %v", err))
	}

	var resp auditResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		return a.failed(kind, fmt.Sprintf("Validation error: %v", err))
	}

	return domain.ValidationOutcome{
		Status:             normalizeAuditStatus(resp.Status.String()),
		ConfidenceScore:    resp.ConfidenceScore.Clamped(),
		Feedback:           resp.Feedback.String(),
		VerifiedItems:      resp.VerifiedItems.List(),
		Discrepancies:      resp.Discrepancies.List(),
		MissingInformation: resp.MissingInformation.List(),
	}
}

func (a *ValidationAgent) failed(kind domain.ValidationType, feedback string) domain.ValidationOutcome {
	slog.Warn("validation_degraded", "validation_type", string(kind), "feedback", feedback)
	return domain.ErrorOutcome(feedback)
}

func normalizeAuditStatus(value string) domain.ValidationStatus {
	switch domain.ValidationStatus(strings.ToLower(strings.TrimSpace(value))) {
	case domain.ValidationValidated:
		return domain.ValidationValidated
	case domain.ValidationError:
		return domain.ValidationError
	default:
		return domain.ValidationWarning
	}
}
