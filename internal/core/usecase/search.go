package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	defaultSearchResults   = 5
	maxSearchResults       = 20
	defaultSearchThreshold = 0.1
)

type SearchUseCase struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	chunker  ports.Chunker
}

func NewSearchUseCase(embedder ports.Embedder, index ports.VectorIndex, chunker ports.Chunker) *SearchUseCase {
	return &SearchUseCase{embedder: embedder, index: index, chunker: chunker}
}

func (uc *SearchUseCase) Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	if limit <= 0 {
		limit = defaultSearchResults
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}
	if filter.MinScore <= 0 {
		filter.MinScore = defaultSearchThreshold
	}

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := uc.index.Search(ctx, vector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := hits[:0]
	for _, hit := range hits {
		if hit.Score >= filter.MinScore {
			out = append(out, hit)
		}
	}
	return out, nil
}

// IndexText chunks and indexes free text under the given document id.
func (uc *SearchUseCase) IndexText(ctx context.Context, documentID, text string, clientID *int64) (int, error) {
	if strings.TrimSpace(documentID) == "" || strings.TrimSpace(text) == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "index text", errors.New("document id and text are required"))
	}
	texts := uc.chunker.Split(text)
	if len(texts) == 0 {
		return 0, nil
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(texts))
	}
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, domain.Chunk{DocumentID: documentID, ClientID: clientID, Filename: documentID, Index: i, Text: t})
	}
	if err := uc.index.IndexChunks(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}
	return len(chunks), nil
}

func (uc *SearchUseCase) Stats(ctx context.Context) (domain.IndexStats, error) {
	return uc.index.Stats(ctx)
}

func (uc *SearchUseCase) Clear(ctx context.Context) error {
	return uc.index.Clear(ctx)
}
