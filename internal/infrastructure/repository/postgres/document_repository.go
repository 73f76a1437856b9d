package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const defaultDocumentSearchLimit = 50

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `document_id, filename, file_path, client_id, doc_type, matter_id, tags, key_entities,
	summary, confidence, original_metadata, text_preview, created_at, updated_at`

func scanDocument(row scanner) (*domain.DocumentClassification, error) {
	var doc domain.DocumentClassification
	var clientID sql.NullInt64
	var matterID sql.NullString
	var docType string
	var tagsRaw, entitiesRaw, metadataRaw []byte
	err := row.Scan(
		&doc.DocumentID, &doc.Filename, &doc.FilePath, &clientID, &docType, &matterID, &tagsRaw, &entitiesRaw,
		&doc.Classification.Summary, &doc.Classification.Confidence, &metadataRaw, &doc.TextPreview,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ClientID = int64Ptr(clientID)
	doc.Classification.DocType = domain.DocType(docType)
	doc.Classification.MatterID = stringPtr(matterID)
	if err := unmarshalJSON("tags", tagsRaw, &doc.Classification.Tags); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("key_entities", entitiesRaw, &doc.Classification.KeyEntities); err != nil {
		return nil, err
	}
	if err := unmarshalJSON("original_metadata", metadataRaw, &doc.OriginalMetadata); err != nil {
		return nil, err
	}
	doc.Classification.KeyEntities = doc.Classification.KeyEntities.Normalized()
	if doc.Classification.Tags == nil {
		doc.Classification.Tags = []string{}
	}
	return &doc, nil
}

// Upsert inserts or replaces the row for doc.DocumentID, keeping the original
// created_at. The stored created_at is written back into doc.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *domain.DocumentClassification) error {
	cls := doc.Classification
	tags, err := marshalJSON("tags", cls.Tags)
	if err != nil {
		return err
	}
	entities, err := marshalJSON("key_entities", cls.KeyEntities.Normalized())
	if err != nil {
		return err
	}
	metadata := doc.OriginalMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataRaw, err := marshalJSON("original_metadata", metadata)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, `
INSERT INTO documents (
	document_id, filename, file_path, client_id, doc_type, matter_id, tags, key_entities,
	summary, confidence, original_metadata, text_preview, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (document_id) DO UPDATE SET
	filename = EXCLUDED.filename,
	file_path = EXCLUDED.file_path,
	client_id = EXCLUDED.client_id,
	doc_type = EXCLUDED.doc_type,
	matter_id = EXCLUDED.matter_id,
	tags = EXCLUDED.tags,
	key_entities = EXCLUDED.key_entities,
	summary = EXCLUDED.summary,
	confidence = EXCLUDED.confidence,
	original_metadata = EXCLUDED.original_metadata,
	text_preview = EXCLUDED.text_preview,
	updated_at = EXCLUDED.updated_at
RETURNING created_at`,
		doc.DocumentID, doc.Filename, doc.FilePath, nullableInt64(doc.ClientID), string(cls.DocType),
		nullableString(cls.MatterID), tags, entities, cls.Summary, cls.Confidence, metadataRaw,
		doc.TextPreview, doc.CreatedAt, doc.UpdatedAt,
	).Scan(&doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, documentID string) (*domain.DocumentClassification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE document_id = $1`, documentID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", documentID))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) Search(ctx context.Context, filter domain.DocumentFilter) ([]domain.DocumentClassification, error) {
	var where []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(args))))
	}
	if filter.ClientID != nil {
		add("client_id = ?", *filter.ClientID)
	}
	if filter.DocType != "" {
		add("doc_type = ?", string(filter.DocType))
	}
	if filter.MatterID != "" {
		add("matter_id = ?", filter.MatterID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add("(filename ILIKE ? OR summary ILIKE ? OR text_preview ILIKE ?)", "%"+escapeLike(q)+"%")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDocumentSearchLimit
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY updated_at DESC, document_id LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentClassification, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) Stats(ctx context.Context, clientID *int64) (domain.DocumentStats, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT doc_type, COUNT(*)
FROM documents
WHERE ($1::bigint IS NULL OR client_id = $1)
GROUP BY doc_type`, nullableInt64(clientID))
	if err != nil {
		return domain.DocumentStats{}, fmt.Errorf("document stats: %w", err)
	}
	defer rows.Close()

	stats := domain.NewDocumentStats()
	for rows.Next() {
		var docType string
		var n int
		if err := rows.Scan(&docType, &n); err != nil {
			return domain.DocumentStats{}, fmt.Errorf("scan document stats: %w", err)
		}
		stats.Total += n
		stats.ByType[domain.DocType(docType)] += n
	}
	if err := rows.Err(); err != nil {
		return domain.DocumentStats{}, fmt.Errorf("iterate document stats: %w", err)
	}
	return stats, nil
}

func (r *DocumentRepository) ListIDsByClient(ctx context.Context, clientID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT document_id FROM documents WHERE client_id = $1 ORDER BY document_id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client documents: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document ids: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, documentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	return rowsAffected(res, "delete document")
}

func (r *DocumentRepository) DeleteByClient(ctx context.Context, clientID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE client_id = $1`, clientID)
	if err != nil {
		return 0, fmt.Errorf("delete client documents: %w", err)
	}
	return rowsAffected(res, "delete client documents")
}

func (r *DocumentRepository) CaseloadFigures(ctx context.Context) (ports.CaseloadFigures, error) {
	var f ports.CaseloadFigures
	err := r.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(AVG(EXTRACT(EPOCH FROM (now() - created_at)) / 86400.0), 0),
	COUNT(DISTINCT client_id),
	COUNT(*) FILTER (WHERE created_at >= now() - INTERVAL '30 days')
FROM documents`).Scan(&f.TotalCases, &f.AvgCaseAgeDays, &f.DistinctClients, &f.DocumentsLast30Day)
	if err != nil {
		return ports.CaseloadFigures{}, fmt.Errorf("caseload document figures: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deadlines WHERE completed = FALSE`).Scan(&f.OpenDeadlines); err != nil {
		return ports.CaseloadFigures{}, fmt.Errorf("caseload open deadlines: %w", err)
	}
	return f, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
