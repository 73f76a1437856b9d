package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// ClientRepository persists clients.
type ClientRepository interface {
	Create(ctx context.Context, in domain.ClientInput) (*domain.Client, error)
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Client, error)
	Update(ctx context.Context, id int64, in domain.ClientInput) (*domain.Client, error)
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	CountActive(ctx context.Context) (int, error)
}

// DeadlineRepository persists deadlines. Insert writes the store-assigned id back
// into the passed deadline.
type DeadlineRepository interface {
	Insert(ctx context.Context, deadline *domain.Deadline) error
	GetByID(ctx context.Context, id int64) (*domain.Deadline, error)
	List(ctx context.Context, filter domain.DeadlineFilter) ([]domain.Deadline, error)
	ListUrgent(ctx context.Context, clientID *int64) ([]domain.UrgentDeadline, error)
	Stats(ctx context.Context, clientID *int64) (domain.DeadlineStats, error)
	SetCompleted(ctx context.Context, id int64, completed bool, at time.Time) (*domain.Deadline, error)
	UpdateRisk(ctx context.Context, id int64, workingDays int, risk domain.RiskLevel) error
	ListIDsBySource(ctx context.Context, sourceID string, clientID *int64) ([]int64, error)
	ListIDsByClient(ctx context.Context, clientID int64) ([]int64, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	DeleteByClient(ctx context.Context, clientID int64) (int64, error)
}

// ExtractionRepository persists deadline extraction audit rows.
type ExtractionRepository interface {
	Insert(ctx context.Context, extraction *domain.DeadlineExtraction) error
	DeleteByClient(ctx context.Context, clientID int64) (int64, error)
}

// DocumentRepository persists document classification rows keyed on document id.
type DocumentRepository interface {
	Upsert(ctx context.Context, doc *domain.DocumentClassification) error
	GetByID(ctx context.Context, documentID string) (*domain.DocumentClassification, error)
	Search(ctx context.Context, filter domain.DocumentFilter) ([]domain.DocumentClassification, error)
	Stats(ctx context.Context, clientID *int64) (domain.DocumentStats, error)
	ListIDsByClient(ctx context.Context, clientID int64) ([]string, error)
	Delete(ctx context.Context, documentID string) (int64, error)
	DeleteByClient(ctx context.Context, clientID int64) (int64, error)
	CaseloadFigures(ctx context.Context) (CaseloadFigures, error)
}

// CaseloadFigures are aggregate document numbers used by caseload analysis.
type CaseloadFigures struct {
	TotalCases         int
	AvgCaseAgeDays     float64
	DistinctClients    int
	OpenDeadlines      int
	DocumentsLast30Day int
}

// HintRepository caches hint payloads.
type HintRepository interface {
	Insert(ctx context.Context, record *domain.HintRecord) error
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
	DeleteByClient(ctx context.Context, clientID int64) (int64, error)
}

// ValidationRepository persists audit rows.
type ValidationRepository interface {
	Insert(ctx context.Context, validation *domain.Validation) error
	Latest(ctx context.Context, validationType domain.ValidationType, entityID string) (*domain.Validation, error)
	DeleteByEntities(ctx context.Context, validationType domain.ValidationType, entityIDs []string) (int64, error)
}

// AnalysisRepository persists analytics results.
type AnalysisRepository interface {
	Insert(ctx context.Context, analysis *domain.Analysis) error
	ListRecent(ctx context.Context, firmID string, analysisType domain.AnalysisType, limit int) ([]domain.Analysis, error)
	Stats(ctx context.Context, firmID string) (domain.AnalysisStats, error)
}

// FileStore keeps original uploads in a per-client directory tree.
type FileStore interface {
	Save(ctx context.Context, clientID *int64, filename string, data io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) (bool, error)
	RemoveClientDir(ctx context.Context, clientID int64) (int64, error)
}

// TextExtractor turns raw file bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// ModelClient sends a prompt and returns the raw model response text.
type ModelClient interface {
	GenerateJSON(ctx context.Context, prompt string) (string, error)
	ModelName() string
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into overlapping segments.
type Chunker interface {
	Split(text string) []string
}

// VectorIndex stores chunk embeddings and answers similarity queries.
type VectorIndex interface {
	IndexChunks(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.SearchHit, error)
	DeleteDocument(ctx context.Context, documentID string) error
	DeleteClient(ctx context.Context, clientID int64) error
	Stats(ctx context.Context) (domain.IndexStats, error)
	Clear(ctx context.Context) error
}

// EntityGraph projects classified documents into a graph of people and organizations.
type EntityGraph interface {
	ProjectDocument(ctx context.Context, doc domain.DocumentClassification) error
	DeleteDocument(ctx context.Context, documentID string) error
	DeleteClient(ctx context.Context, clientID int64) error
}

// ReprocessRequest asks a worker to run the pipeline again for a stored document.
type ReprocessRequest struct {
	DocumentID string `json:"document_id"`
	ClientID   *int64 `json:"client_id"`
	RequestID  string `json:"request_id"`
}

// DocumentProcessedEvent is published after each pipeline run.
type DocumentProcessedEvent struct {
	EventID            string    `json:"event_id"`
	DocumentID         string    `json:"document_id"`
	ClientID           *int64    `json:"client_id"`
	DocType            string    `json:"doc_type"`
	DeadlinesExtracted int       `json:"deadlines_extracted"`
	StageErrors        []string  `json:"stage_errors,omitempty"`
	ProcessedAt        time.Time `json:"processed_at"`
}

// MessageQueue carries reprocess requests and processed events.
type MessageQueue interface {
	PublishReprocess(ctx context.Context, req ReprocessRequest) error
	SubscribeReprocess(ctx context.Context, handler func(context.Context, ReprocessRequest) error) error
	PublishDocumentProcessed(ctx context.Context, event DocumentProcessedEvent) error
}

// StageObserver records pipeline stage outcomes.
type StageObserver interface {
	ObserveStage(stage, status string, duration time.Duration)
}
