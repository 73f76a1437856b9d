package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

type ClassificationRequest struct {
	DocumentID string
	Filename   string
	FilePath   string
	Text       string
	Metadata   map[string]any
	ClientID   *int64
	Hints      *domain.HintPayload
}

// ClassificationAgent assigns a document type and entities with the primary model
// and upserts the document row keyed on its document id.
type ClassificationAgent struct {
	model     ports.ModelClient
	documents ports.DocumentRepository
	now       ports.Clock
}

func NewClassificationAgent(model ports.ModelClient, documents ports.DocumentRepository, now ports.Clock) *ClassificationAgent {
	if now == nil {
		now = time.Now
	}
	return &ClassificationAgent{model: model, documents: documents, now: now}
}

type classificationResponse struct {
	DocType     modelString    `json:"doc_type"`
	MatterID    modelString    `json:"matter_id"`
	Tags        modelStrings   `json:"tags"`
	KeyEntities entityResponse `json:"key_entities"`
	Summary     modelString    `json:"summary"`
	Confidence  modelNumber    `json:"confidence"`
}

type entityResponse struct {
	People        modelStrings `json:"people"`
	Organizations modelStrings `json:"organizations"`
	Dates         modelStrings `json:"dates"`
	Amounts       modelStrings `json:"amounts"`
}

// UnmarshalJSON leaves every list empty when key_entities is not an object.
func (e *entityResponse) UnmarshalJSON(data []byte) error {
	type plain entityResponse
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		*e = entityResponse{}
		return nil
	}
	*e = entityResponse(out)
	return nil
}

func (a *ClassificationAgent) Classify(ctx context.Context, req ClassificationRequest) (*domain.ClassificationResult, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "classify document", errors.New("document id is required"))
	}

	cls := a.classify(ctx, req)

	now := a.now().UTC()
	record := &domain.DocumentClassification{
		DocumentID:       req.DocumentID,
		Filename:         req.Filename,
		FilePath:         req.FilePath,
		ClientID:         req.ClientID,
		Classification:   cls,
		OriginalMetadata: req.Metadata,
		TextPreview:      truncateRunes(req.Text, textPreviewLimit),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := a.documents.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("upsert classification: %w", err)
	}

	return &domain.ClassificationResult{DocumentID: req.DocumentID, Classification: cls}, nil
}

func (a *ClassificationAgent) classify(ctx context.Context, req ClassificationRequest) domain.Classification {
	raw, err := a.model.GenerateJSON(ctx, buildClassificationPrompt(req.Filename, req.Text, req.Metadata, req.Hints))
	if err != nil {
		slog.Warn("classification_fallback", "document_id", req.DocumentID, "reason", "model_call", "error", err)
		return domain.FallbackClassification()
	}

	var resp classificationResponse
	if err := decodeModelJSON(raw, &resp); err != nil {
		slog.Warn("classification_fallback", "document_id", req.DocumentID, "reason", "malformed_output", "error", err)
		return domain.FallbackClassification()
	}

	docType, ok := domain.ParseDocType(resp.DocType.String())
	if !ok {
		docType = domain.DocTypeOther
	}

	return domain.Classification{
		DocType:  docType,
		MatterID: resp.MatterID.Ptr(),
		Tags:     resp.Tags.List(),
		KeyEntities: domain.KeyEntities{
			People:        resp.KeyEntities.People.List(),
			Organizations: resp.KeyEntities.Organizations.List(),
			Dates:         resp.KeyEntities.Dates.List(),
			Amounts:       resp.KeyEntities.Amounts.List(),
		},
		Summary:    resp.Summary.String(),
		Confidence: resp.Confidence.Clamped(),
	}
}
