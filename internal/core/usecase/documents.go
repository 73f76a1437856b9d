package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	defaultDocumentLimit = 50
	maxDocumentLimit     = 500
)

type DocumentUseCase struct {
	documents ports.DocumentRepository
}

func NewDocumentUseCase(documents ports.DocumentRepository) *DocumentUseCase {
	return &DocumentUseCase{documents: documents}
}

func (uc *DocumentUseCase) Get(ctx context.Context, documentID string) (*domain.DocumentClassification, error) {
	doc, err := uc.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (uc *DocumentUseCase) Search(ctx context.Context, filter domain.DocumentFilter) ([]domain.DocumentClassification, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultDocumentLimit
	}
	if filter.Limit > maxDocumentLimit {
		filter.Limit = maxDocumentLimit
	}
	docs, err := uc.documents.Search(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	return docs, nil
}

func (uc *DocumentUseCase) Stats(ctx context.Context, clientID *int64) (domain.DocumentStats, error) {
	stats, err := uc.documents.Stats(ctx, clientID)
	if err != nil {
		return domain.DocumentStats{}, fmt.Errorf("document stats: %w", err)
	}
	return stats, nil
}
