package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

// UploadRequest is one uploaded file entering the pipeline.
type UploadRequest struct {
	ClientID *int64
	Filename string
	Metadata map[string]any
	Body     io.Reader
}

// PipelineResult is the per-document outcome of a pipeline run.
type PipelineResult struct {
	Success            bool                                `json:"success"`
	DocumentID         string                              `json:"document_id"`
	Filename           string                              `json:"filename"`
	ClientID           *int64                              `json:"client_id"`
	FilePath           string                              `json:"file_path"`
	ChunksCreated      int                                 `json:"chunks_created"`
	HintStatus         string                              `json:"hint_status"`
	Classification     *domain.Classification              `json:"classification"`
	DeadlinesExtracted int                                 `json:"deadlines_extracted"`
	Deadlines          []domain.Deadline                   `json:"deadlines"`
	Validations        map[string]domain.ValidationOutcome `json:"validations"`
	StageErrors        []string                            `json:"stage_errors,omitempty"`
}

// DocumentPipeline is the inbound contract for the upload pipeline.
type DocumentPipeline interface {
	Process(ctx context.Context, req UploadRequest) (*PipelineResult, error)
	Reprocess(ctx context.Context, req ReprocessRequest) (*PipelineResult, error)
	ScheduleReprocess(ctx context.Context, clientID *int64, documentID string) (ReprocessRequest, error)
}

// ClientService is the inbound contract for client management.
type ClientService interface {
	Create(ctx context.Context, in domain.ClientInput) (*domain.Client, error)
	Get(ctx context.Context, id int64) (*domain.Client, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Client, error)
	Update(ctx context.Context, id int64, in domain.ClientInput) (*domain.Client, error)
	Deactivate(ctx context.Context, id int64) error
}

// Deleter is the inbound contract for cascading deletes.
type Deleter interface {
	DeleteDocument(ctx context.Context, clientID *int64, documentID string) (*domain.DeletionSummary, error)
	DeleteClient(ctx context.Context, clientID int64) (*domain.DeletionSummary, error)
}

// DeadlineService is the inbound read/update model for deadlines.
type DeadlineService interface {
	List(ctx context.Context, filter domain.DeadlineFilter) ([]domain.Deadline, error)
	Upcoming(ctx context.Context, clientID *int64, days int) ([]domain.Deadline, error)
	Stats(ctx context.Context, clientID *int64) (domain.DeadlineStats, error)
	Urgent(ctx context.Context, clientID *int64, limit int) ([]domain.UrgentDeadline, error)
	SetCompleted(ctx context.Context, id int64, completed bool) (*domain.Deadline, error)
	RefreshRisk(ctx context.Context) (int, error)
}

// DeadlineExtractor runs extraction over free text outside of an upload.
type DeadlineExtractor interface {
	ExtractManual(ctx context.Context, text string, clientID *int64) (*domain.ExtractionResult, error)
}

// DocumentService is the inbound read model for classified documents.
type DocumentService interface {
	Get(ctx context.Context, documentID string) (*domain.DocumentClassification, error)
	Search(ctx context.Context, filter domain.DocumentFilter) ([]domain.DocumentClassification, error)
	Stats(ctx context.Context, clientID *int64) (domain.DocumentStats, error)
}

// ValidationLookup returns the latest audit for an entity, or a pending stand-in.
type ValidationLookup interface {
	Latest(ctx context.Context, validationType domain.ValidationType, entityID string) (domain.Validation, error)
}

// SemanticSearch queries the vector index.
type SemanticSearch interface {
	Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchHit, error)
	IndexText(ctx context.Context, documentID, text string, clientID *int64) (int, error)
	Stats(ctx context.Context) (domain.IndexStats, error)
	Clear(ctx context.Context) error
}

// AnalyticsService runs and lists strategic analyses.
type AnalyticsService interface {
	AnalyzeDeadlineRisk(ctx context.Context, firmID string, clientID *int64) (*domain.Analysis, error)
	AnalyzeCaseloadHealth(ctx context.Context, firmID string) (*domain.Analysis, error)
	AnalyzeProfitability(ctx context.Context, firmID string, figures map[string]float64) (*domain.Analysis, error)
	Recent(ctx context.Context, firmID string, analysisType domain.AnalysisType, limit int) ([]domain.Analysis, error)
	Stats(ctx context.Context, firmID string) (domain.AnalysisStats, error)
}

// Clock supplies the current time to date-sensitive use cases.
type Clock func() time.Time
