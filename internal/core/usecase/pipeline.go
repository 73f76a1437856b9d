package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

const (
	stageIndex                  = "index"
	stagePreprocess             = "preprocess"
	stageClassify               = "classify"
	stageExtract                = "extract"
	stageValidateClassification = "validate_classification"
	stageValidateDeadlines      = "validate_deadlines"
	stageGraph                  = "graph"
)

// UploadPolicy bounds what the pipeline accepts.
type UploadPolicy struct {
	AllowedExtensions []string
	MaxBytes          int64
}

func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		AllowedExtensions: []string{".pdf", ".docx", ".txt", ".eml", ".xlsx", ".html", ".md"},
		MaxBytes:          10 << 20,
	}
}

// PipelineDependencies wires the orchestrator. Queue, Graph and Observer are optional.
type PipelineDependencies struct {
	Clients     ports.ClientRepository
	Documents   ports.DocumentRepository
	Hints       ports.HintRepository
	Validations ports.ValidationRepository
	Files       ports.FileStore
	Extractor   ports.TextExtractor
	Chunker     ports.Chunker
	Embedder    ports.Embedder
	Index       ports.VectorIndex
	Queue       ports.MessageQueue
	Graph       ports.EntityGraph
	Observer    ports.StageObserver

	Preprocessor *PreprocessingAgent
	Classifier   *ClassificationAgent
	Extraction   *ExtractionAgent
	Validator    *ValidationAgent

	Policy UploadPolicy
	Now    ports.Clock
}

// PipelineOrchestrator runs one document through index, hinting, classification,
// extraction and both audits. Stages after ingestion are fail-forward.
type PipelineOrchestrator struct {
	deps PipelineDependencies
}

func NewPipelineOrchestrator(deps PipelineDependencies) *PipelineOrchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Policy.MaxBytes <= 0 || len(deps.Policy.AllowedExtensions) == 0 {
		def := DefaultUploadPolicy()
		if deps.Policy.MaxBytes <= 0 {
			deps.Policy.MaxBytes = def.MaxBytes
		}
		if len(deps.Policy.AllowedExtensions) == 0 {
			deps.Policy.AllowedExtensions = def.AllowedExtensions
		}
	}
	return &PipelineOrchestrator{deps: deps}
}

// documentContext is the per-run state shared by every stage.
type documentContext struct {
	documentID string
	filename   string
	filePath   string
	clientID   *int64
	metadata   map[string]any
	text       string
}

func (p *PipelineOrchestrator) Process(ctx context.Context, req ports.UploadRequest) (*ports.PipelineResult, error) {
	filename := filepath.Base(strings.TrimSpace(req.Filename))
	if err := p.checkFilename(filename); err != nil {
		return nil, err
	}
	if err := p.ensureClient(ctx, req.ClientID); err != nil {
		return nil, err
	}
	if req.Body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("empty body"))
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, p.deps.Policy.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > p.deps.Policy.MaxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("file exceeds %d bytes", p.deps.Policy.MaxBytes))
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("empty file"))
	}

	text, err := p.extractText(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	path, err := p.deps.Files.Save(ctx, req.ClientID, filename, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return p.run(ctx, documentContext{
		documentID: domain.DocumentID(req.ClientID, filename),
		filename:   filename,
		filePath:   path,
		clientID:   req.ClientID,
		metadata:   req.Metadata,
		text:       text,
	}), nil
}

// Reprocess runs the pipeline again from the stored copy of a document.
func (p *PipelineOrchestrator) Reprocess(ctx context.Context, req ports.ReprocessRequest) (*ports.PipelineResult, error) {
	doc, err := p.deps.Documents.GetByID(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if !sameClient(req.ClientID, doc.ClientID) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "load document",
			fmt.Errorf("document %s does not belong to client", req.DocumentID))
	}

	reader, err := p.deps.Files.Open(ctx, doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read stored document: %w", err)
	}

	text, err := p.extractText(ctx, doc.Filename, data)
	if err != nil {
		return nil, err
	}

	return p.run(ctx, documentContext{
		documentID: doc.DocumentID,
		filename:   doc.Filename,
		filePath:   doc.FilePath,
		clientID:   doc.ClientID,
		metadata:   doc.OriginalMetadata,
		text:       text,
	}), nil
}

// ScheduleReprocess checks that the document belongs to the client and queues
// it for a worker.
func (p *PipelineOrchestrator) ScheduleReprocess(ctx context.Context, clientID *int64, documentID string) (ports.ReprocessRequest, error) {
	if p.deps.Queue == nil {
		return ports.ReprocessRequest{}, domain.WrapError(domain.ErrNotConfigured, "schedule reprocess", errors.New("no message queue"))
	}
	doc, err := p.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return ports.ReprocessRequest{}, fmt.Errorf("load document: %w", err)
	}
	if !sameClient(clientID, doc.ClientID) {
		return ports.ReprocessRequest{}, domain.WrapError(domain.ErrDocumentNotFound, "schedule reprocess",
			fmt.Errorf("document %s does not belong to client", documentID))
	}

	req := ports.ReprocessRequest{DocumentID: doc.DocumentID, ClientID: doc.ClientID, RequestID: uuid.NewString()}
	if err := p.deps.Queue.PublishReprocess(ctx, req); err != nil {
		return ports.ReprocessRequest{}, fmt.Errorf("publish reprocess: %w", err)
	}
	return req, nil
}

func (p *PipelineOrchestrator) run(ctx context.Context, doc documentContext) *ports.PipelineResult {
	result := &ports.PipelineResult{
		Success:     true,
		DocumentID:  doc.documentID,
		Filename:    doc.filename,
		ClientID:    doc.clientID,
		FilePath:    doc.filePath,
		Deadlines:   []domain.Deadline{},
		Validations: map[string]domain.ValidationOutcome{},
	}

	p.stage(ctx, result, stageIndex, func() error {
		n, err := p.index(ctx, doc)
		result.ChunksCreated = n
		return err
	})

	// The same hint snapshot feeds classification, extraction and both audits.
	hints, hintExtractionID := p.preprocess(ctx, doc, result)

	var cls *domain.Classification
	p.stage(ctx, result, stageClassify, func() error {
		out, err := p.deps.Classifier.Classify(ctx, ClassificationRequest{
			DocumentID: doc.documentID,
			Filename:   doc.filename,
			FilePath:   doc.filePath,
			Text:       doc.text,
			Metadata:   doc.metadata,
			ClientID:   doc.clientID,
			Hints:      hints,
		})
		if err != nil {
			return err
		}
		cls = &out.Classification
		result.Classification = cls
		return nil
	})

	if cls != nil && p.deps.Graph != nil {
		p.stage(ctx, result, stageGraph, func() error {
			return p.deps.Graph.ProjectDocument(ctx, domain.DocumentClassification{
				DocumentID:     doc.documentID,
				Filename:       doc.filename,
				ClientID:       doc.clientID,
				Classification: *cls,
			})
		})
	}

	p.stage(ctx, result, stageExtract, func() error {
		out, err := p.deps.Extraction.Extract(ctx, ExtractionRequest{
			Text:     doc.text,
			SourceID: domain.SourceIDForDocument(doc.documentID),
			ClientID: doc.clientID,
			Hints:    hints,
		})
		if err != nil {
			return err
		}
		result.Deadlines = out.Deadlines
		result.DeadlinesExtracted = out.Count
		return nil
	})

	if cls != nil {
		p.stage(ctx, result, stageValidateClassification, func() error {
			outcome := p.deps.Validator.ValidateClassification(ctx, *cls, doc.text, hints)
			result.Validations[string(domain.ValidationClassification)] = outcome
			return p.storeValidations(ctx, domain.ValidationClassification, []string{doc.documentID}, doc.clientID, hintExtractionID, outcome)
		})
	}

	if len(result.Deadlines) > 0 {
		p.stage(ctx, result, stageValidateDeadlines, func() error {
			outcome := p.deps.Validator.ValidateDeadlines(ctx, result.Deadlines, doc.text, hints)
			result.Validations[string(domain.ValidationDeadline)] = outcome
			ids := make([]string, 0, len(result.Deadlines))
			for _, d := range result.Deadlines {
				ids = append(ids, strconv.FormatInt(d.ID, 10))
			}
			return p.storeValidations(ctx, domain.ValidationDeadline, ids, doc.clientID, hintExtractionID, outcome)
		})
	}

	p.publishProcessed(ctx, result)
	return result
}

func (p *PipelineOrchestrator) preprocess(ctx context.Context, doc documentContext, result *ports.PipelineResult) (*domain.HintPayload, *int64) {
	start := time.Now()
	hint := p.deps.Preprocessor.Preprocess(ctx, doc.text, doc.filename)
	result.HintStatus = hint.Status()
	p.observe(stagePreprocess, hint.OK(), time.Since(start))
	if !hint.OK() {
		return nil, nil
	}

	record := &domain.HintRecord{
		ClientID:      doc.clientID,
		DocumentID:    doc.documentID,
		ExtractedData: *hint.Payload,
		ModelVersion:  p.deps.Preprocessor.ModelName(),
		CreatedAt:     p.deps.Now().UTC(),
	}
	if err := p.deps.Hints.Insert(ctx, record); err != nil {
		p.recordStageError(result, stagePreprocess, fmt.Errorf("cache hint payload: %w", err))
		return hint.Payload, nil
	}
	return hint.Payload, &record.ID
}

// storeValidations fans one audit outcome out to a row per audited entity.
func (p *PipelineOrchestrator) storeValidations(
	ctx context.Context,
	kind domain.ValidationType,
	entityIDs []string,
	clientID *int64,
	extractionID *int64,
	outcome domain.ValidationOutcome,
) error {
	var errs []error
	for _, entityID := range entityIDs {
		row := &domain.Validation{
			Type:              kind,
			EntityID:          entityID,
			ClientID:          clientID,
			ExtractionID:      extractionID,
			ValidationOutcome: outcome,
			CreatedAt:         p.deps.Now().UTC(),
		}
		if err := p.deps.Validations.Insert(ctx, row); err != nil {
			errs = append(errs, fmt.Errorf("store %s validation for %s: %w", kind, entityID, err))
		}
	}
	return errors.Join(errs...)
}

func (p *PipelineOrchestrator) index(ctx context.Context, doc documentContext) (int, error) {
	texts := p.deps.Chunker.Split(doc.text)
	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = p.deps.Embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(texts))
		}
	}

	// Point ids only cover the new chunk count; drop the previous version first.
	if err := p.deps.Index.DeleteDocument(ctx, doc.documentID); err != nil {
		slog.Warn("stale_chunks_not_removed", "document_id", doc.documentID, "error", err)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.documentID,
			ClientID:   doc.clientID,
			Filename:   doc.filename,
			Index:      i,
			Text:       text,
		})
	}
	if err := p.deps.Index.IndexChunks(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}
	return len(chunks), nil
}

func (p *PipelineOrchestrator) stage(ctx context.Context, result *ports.PipelineResult, name string, fn func() error) {
	start := time.Now()
	err := fn()
	p.observe(name, err == nil, time.Since(start))
	if err != nil {
		p.recordStageError(result, name, err)
		return
	}
	slog.DebugContext(ctx, "pipeline_stage", "stage", name, "document_id", result.DocumentID, "status", "ok")
}

func (p *PipelineOrchestrator) recordStageError(result *ports.PipelineResult, name string, err error) {
	slog.Error("pipeline_stage", "stage", name, "document_id", result.DocumentID, "status", "error", "error", err)
	result.StageErrors = append(result.StageErrors, fmt.Sprintf("%s: %v", name, err))
}

func (p *PipelineOrchestrator) observe(name string, ok bool, duration time.Duration) {
	if p.deps.Observer == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	p.deps.Observer.ObserveStage(name, status, duration)
}

func (p *PipelineOrchestrator) publishProcessed(ctx context.Context, result *ports.PipelineResult) {
	if p.deps.Queue == nil {
		return
	}
	docType := ""
	if result.Classification != nil {
		docType = string(result.Classification.DocType)
	}
	event := ports.DocumentProcessedEvent{
		EventID:            uuid.NewString(),
		DocumentID:         result.DocumentID,
		ClientID:           result.ClientID,
		DocType:            docType,
		DeadlinesExtracted: result.DeadlinesExtracted,
		StageErrors:        result.StageErrors,
		ProcessedAt:        p.deps.Now().UTC(),
	}
	if err := p.deps.Queue.PublishDocumentProcessed(ctx, event); err != nil {
		slog.Warn("document_processed_publish_failed", "document_id", result.DocumentID, "error", err)
	}
}

func (p *PipelineOrchestrator) extractText(ctx context.Context, filename string, data []byte) (string, error) {
	text, err := p.deps.Extractor.Extract(ctx, filename, data)
	if err != nil {
		if domain.IsKind(err, domain.ErrUnsupportedFormat) {
			return "", domain.WrapError(domain.ErrInvalidInput, "extract text", err)
		}
		return "", fmt.Errorf("extract text: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("document has no extractable text"))
	}
	return text, nil
}

func (p *PipelineOrchestrator) checkFilename(filename string) error {
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("filename is required"))
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range p.deps.Policy.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}
	return domain.WrapError(domain.ErrInvalidInput, "upload document",
		fmt.Errorf("file type %q not allowed; allowed: %s", ext, strings.Join(p.deps.Policy.AllowedExtensions, ", ")))
}

func (p *PipelineOrchestrator) ensureClient(ctx context.Context, clientID *int64) error {
	if clientID == nil {
		return nil
	}
	client, err := p.deps.Clients.GetByID(ctx, *clientID)
	if err != nil {
		return fmt.Errorf("load client: %w", err)
	}
	if !client.Active {
		return domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("client %d is inactive", client.ID))
	}
	return nil
}

func sameClient(requested, actual *int64) bool {
	if requested == nil {
		return true
	}
	return actual != nil && *actual == *requested
}
