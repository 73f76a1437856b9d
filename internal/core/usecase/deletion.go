package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// CascadingDeleter removes a document or a client together with every dependent
// row, index entry and file. Dependents go first; the primary row goes last.
type CascadingDeleter struct {
	clients     ports.ClientRepository
	documents   ports.DocumentRepository
	deadlines   ports.DeadlineRepository
	extractions ports.ExtractionRepository
	hints       ports.HintRepository
	validations ports.ValidationRepository
	files       ports.FileStore
	index       ports.VectorIndex
	graph       ports.EntityGraph
}

func NewCascadingDeleter(
	clients ports.ClientRepository,
	documents ports.DocumentRepository,
	deadlines ports.DeadlineRepository,
	extractions ports.ExtractionRepository,
	hints ports.HintRepository,
	validations ports.ValidationRepository,
	files ports.FileStore,
	index ports.VectorIndex,
	graph ports.EntityGraph,
) *CascadingDeleter {
	return &CascadingDeleter{
		clients:     clients,
		documents:   documents,
		deadlines:   deadlines,
		extractions: extractions,
		hints:       hints,
		validations: validations,
		files:       files,
		index:       index,
		graph:       graph,
	}
}

func (d *CascadingDeleter) DeleteDocument(ctx context.Context, clientID *int64, documentID string) (*domain.DeletionSummary, error) {
	doc, err := d.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("resolve document: %w", err)
	}
	if !sameClient(clientID, doc.ClientID) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "resolve document",
			fmt.Errorf("document %s does not belong to client", documentID))
	}

	summary := &domain.DeletionSummary{}
	log := slog.With("document_id", documentID)

	deadlineIDs, err := d.deadlines.ListIDsBySource(ctx, domain.SourceIDForDocument(documentID), doc.ClientID)
	d.step(log, summary, "list_deadlines", err)

	if len(deadlineIDs) > 0 {
		n, err := d.validations.DeleteByEntities(ctx, domain.ValidationDeadline, formatIDs(deadlineIDs))
		summary.ValidationsDeleted += n
		d.step(log, summary, "delete_deadline_validations", err)
	}

	n, err := d.validations.DeleteByEntities(ctx, domain.ValidationClassification, []string{documentID})
	summary.ValidationsDeleted += n
	d.step(log, summary, "delete_classification_validation", err)

	summary.ExtractionsDeleted, err = d.hints.DeleteByDocument(ctx, documentID)
	d.step(log, summary, "delete_hint_extractions", err)

	if len(deadlineIDs) > 0 {
		summary.DeadlinesDeleted, err = d.deadlines.DeleteByIDs(ctx, deadlineIDs)
		d.step(log, summary, "delete_deadlines", err)
	}

	if d.index != nil {
		d.step(log, summary, "delete_vectors", d.index.DeleteDocument(ctx, documentID))
	}
	if d.graph != nil {
		d.step(log, summary, "delete_graph", d.graph.DeleteDocument(ctx, documentID))
	}

	summary.DocumentsDeleted, err = d.documents.Delete(ctx, documentID)
	if err != nil {
		return summary, fmt.Errorf("delete document row: %w", err)
	}

	if doc.FilePath != "" {
		removed, err := d.files.Remove(ctx, doc.FilePath)
		if removed {
			summary.FilesDeleted = 1
		}
		d.step(log, summary, "delete_file", err)
	}

	log.Info("document_deleted", "summary", summary)
	return summary, nil
}

func (d *CascadingDeleter) DeleteClient(ctx context.Context, clientID int64) (*domain.DeletionSummary, error) {
	if _, err := d.clients.GetByID(ctx, clientID); err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}

	summary := &domain.DeletionSummary{}
	log := slog.With("client_id", clientID)

	documentIDs, err := d.documents.ListIDsByClient(ctx, clientID)
	d.step(log, summary, "list_documents", err)
	deadlineIDs, err := d.deadlines.ListIDsByClient(ctx, clientID)
	d.step(log, summary, "list_deadlines", err)

	if len(documentIDs) > 0 {
		n, err := d.validations.DeleteByEntities(ctx, domain.ValidationClassification, documentIDs)
		summary.ValidationsDeleted += n
		d.step(log, summary, "delete_classification_validations", err)
	}
	if len(deadlineIDs) > 0 {
		n, err := d.validations.DeleteByEntities(ctx, domain.ValidationDeadline, formatIDs(deadlineIDs))
		summary.ValidationsDeleted += n
		d.step(log, summary, "delete_deadline_validations", err)
	}

	summary.ExtractionsDeleted, err = d.hints.DeleteByClient(ctx, clientID)
	d.step(log, summary, "delete_hint_extractions", err)

	summary.DeadlinesDeleted, err = d.deadlines.DeleteByClient(ctx, clientID)
	d.step(log, summary, "delete_deadlines", err)

	summary.DeadlineExtractionsDeleted, err = d.extractions.DeleteByClient(ctx, clientID)
	d.step(log, summary, "delete_deadline_extractions", err)

	summary.DocumentsDeleted, err = d.documents.DeleteByClient(ctx, clientID)
	d.step(log, summary, "delete_documents", err)

	if d.index != nil {
		d.step(log, summary, "delete_vectors", d.index.DeleteClient(ctx, clientID))
	}
	if d.graph != nil {
		d.step(log, summary, "delete_graph", d.graph.DeleteClient(ctx, clientID))
	}

	summary.FilesDeleted, err = d.files.RemoveClientDir(ctx, clientID)
	d.step(log, summary, "delete_files", err)

	if err := d.clients.Delete(ctx, clientID); err != nil {
		return summary, fmt.Errorf("delete client row: %w", err)
	}

	log.Info("client_deleted", "summary", summary)
	return summary, nil
}

func (d *CascadingDeleter) step(log *slog.Logger, summary *domain.DeletionSummary, name string, err error) {
	if err == nil {
		return
	}
	log.Warn("cascade_step_failed", "step", name, "error", err)
	summary.Fail(name, err)
}

func formatIDs(ids []int64) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out
}
