package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// PreprocessingAgent asks the hint model for a preliminary extraction. Every
// failure degrades to a HintResult carrying the failure kind.
type PreprocessingAgent struct {
	model ports.ModelClient
}

func NewPreprocessingAgent(model ports.ModelClient) *PreprocessingAgent {
	return &PreprocessingAgent{model: model}
}

type hintResponse struct {
	Entities struct {
		People        modelStrings `json:"people"`
		Organizations modelStrings `json:"organizations"`
		Locations     modelStrings `json:"locations"`
		Amounts       modelStrings `json:"amounts"`
	} `json:"entities"`
	DatesAndDeadlines []domain.HintDate   `json:"dates_and_deadlines"`
	KeyFacts          modelStrings        `json:"key_facts"`
	DocumentMetadata  domain.HintMetadata `json:"document_metadata"`
}

func (a *PreprocessingAgent) Preprocess(ctx context.Context, text, label string) domain.HintResult {
	if a.model == nil {
		return a.fail(domain.HintNotConfigured, "hint model not configured", label)
	}

	raw, err := a.model.GenerateJSON(ctx, buildPreprocessPrompt(text, label))
	if err != nil {
		if domain.IsKind(err, domain.ErrNotConfigured) {
			return a.fail(domain.HintNotConfigured, err.Error(), label)
		}
		return a.fail(domain.HintUpstreamFailure, err.Error(), label)
	}

	var resp hintResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		return a.fail(domain.HintMalformedResponse, err.Error(), label)
	}

	dates := resp.DatesAndDeadlines
	if dates == nil {
		dates = []domain.HintDate{}
	}
	return domain.HintSuccess(domain.HintPayload{
		Entities: domain.HintEntities{
			People:        resp.Entities.People.List(),
			Organizations: resp.Entities.Organizations.List(),
			Locations:     resp.Entities.Locations.List(),
			Amounts:       resp.Entities.Amounts.List(),
		},
		DatesAndDeadlines: dates,
		KeyFacts:          resp.KeyFacts.List(),
		DocumentMetadata:  resp.DocumentMetadata,
	})
}

func (a *PreprocessingAgent) fail(kind domain.HintFailureKind, reason, label string) domain.HintResult {
	slog.Warn("hint_unavailable", "kind", string(kind), "reason", reason, "label", label)
	return domain.HintFailed(kind, reason)
}

// ModelName reports the hint model recorded as model_version on cached hints.
func (a *PreprocessingAgent) ModelName() string {
	if a.model == nil {
		return ""
	}
	return a.model.ModelName()
}
