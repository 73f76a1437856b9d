package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/legal-intake/internal/config"
	"github.com/kirillkom/legal-intake/internal/core/ports"
	"github.com/kirillkom/legal-intake/internal/core/usecase"
	"github.com/kirillkom/legal-intake/internal/infrastructure/calendar"
	"github.com/kirillkom/legal-intake/internal/infrastructure/chunking"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/office"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/legal-intake/internal/infrastructure/extractor/plaintext"
	graphneo4j "github.com/kirillkom/legal-intake/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/legal-intake/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/legal-intake/internal/infrastructure/queue/nats"
	"github.com/kirillkom/legal-intake/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/legal-intake/internal/infrastructure/resilience"
	"github.com/kirillkom/legal-intake/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/legal-intake/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/legal-intake/internal/observability/metrics"
)

// Options selects the optional parts of the graph for a given process.
type Options struct {
	// Service labels pipeline and resilience metrics.
	Service string
	// Metrics receives pipeline and resilience collectors. Nil discards them.
	Metrics prometheus.Registerer
	// SkipQueue leaves the broker out; reprocess scheduling then reports
	// not configured.
	SkipQueue bool
}

type App struct {
	Config config.Config

	Queue *nats.Queue

	Pipeline    *usecase.PipelineOrchestrator
	Clients     *usecase.ClientUseCase
	Deleter     *usecase.CascadingDeleter
	Documents   *usecase.DocumentUseCase
	Deadlines   *usecase.DeadlineUseCase
	Extraction  *usecase.ExtractionAgent
	Validations *usecase.ValidationLookupUseCase
	Search      *usecase.SearchUseCase
	Analytics   *usecase.AnalyticsAgent

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init file storage: %w", err)
	}

	holidays, err := calendar.Load(cfg.HolidayCalendarFile)
	if err != nil {
		return nil, fmt.Errorf("load holiday calendar: %w", err)
	}

	chunker, err := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("init chunker: %w", err)
	}

	service := opts.Service
	if service == "" {
		service = "intake"
	}
	registerer := opts.Metrics
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	pipelineMetrics := metrics.NewPipelineMetrics(service, registerer)
	baseResilience := resilienceConfig(cfg)
	newExecutor := func(backend resilience.Backend) *resilience.Executor {
		return resilience.NewExecutor(resilience.ForBackend(baseResilience, backend)).WithObserver(pipelineMetrics)
	}

	modelOpts := ollama.Options{CallTimeout: cfg.ModelCallTimeout, Executor: newExecutor(resilience.BackendModel)}
	primaryModel := ollama.New(cfg.OllamaURL, cfg.PrimaryModel, modelOpts)
	var hintModel ports.ModelClient
	if cfg.HintModel != "" {
		hintModel = ollama.New(cfg.OllamaURL, cfg.HintModel, modelOpts)
	}
	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.EmbedModel, modelOpts))

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		BatchSize:        cfg.VectorBatchSize,
		BatchConcurrency: cfg.VectorBatchConcurrency,
		Executor:         newExecutor(resilience.BackendVector),
		HTTPClient:       &http.Client{Timeout: 60 * time.Second},
	})

	var queue ports.MessageQueue
	if !opts.SkipQueue {
		q, err := nats.New(cfg.NATSURL, cfg.NATSReprocessSubject, cfg.NATSEventsSubject, nats.Options{
			HandlerTimeout:     cfg.WorkerTaskTimeout,
			ResilienceExecutor: newExecutor(resilience.BackendBroker),
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = q
		app.onClose(q.Close)
		queue = q
	}

	graph := connectGraph(ctx, cfg)
	var entityGraph ports.EntityGraph
	if graph != nil {
		entityGraph = graph
		app.onClose(func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = graph.Close(closeCtx)
		})
	}

	clients := postgres.NewClientRepository(db)
	documents := postgres.NewDocumentRepository(db)
	deadlines := postgres.NewDeadlineRepository(db)
	extractions := postgres.NewExtractionRepository(db)
	hints := postgres.NewHintRepository(db)
	validations := postgres.NewValidationRepository(db)
	analyses := postgres.NewAnalysisRepository(db)

	extraction := usecase.NewExtractionAgent(primaryModel, deadlines, extractions, holidays, nil)

	app.Pipeline = usecase.NewPipelineOrchestrator(usecase.PipelineDependencies{
		Clients:      clients,
		Documents:    documents,
		Hints:        hints,
		Validations:  validations,
		Files:        storage,
		Extractor:    newExtractorRegistry(),
		Chunker:      chunker,
		Embedder:     embedder,
		Index:        index,
		Queue:        queue,
		Graph:        entityGraph,
		Observer:     pipelineMetrics,
		Preprocessor: usecase.NewPreprocessingAgent(hintModel),
		Classifier:   usecase.NewClassificationAgent(primaryModel, documents, nil),
		Extraction:   extraction,
		Validator:    usecase.NewValidationAgent(hintModel),
		Policy: usecase.UploadPolicy{
			AllowedExtensions: cfg.AllowedExtensions,
			MaxBytes:          cfg.MaxUploadBytes,
		},
	})
	app.Clients = usecase.NewClientUseCase(clients)
	app.Deleter = usecase.NewCascadingDeleter(clients, documents, deadlines, extractions, hints, validations, storage, index, entityGraph)
	app.Documents = usecase.NewDocumentUseCase(documents)
	app.Deadlines = usecase.NewDeadlineUseCase(deadlines, holidays, nil)
	app.Extraction = extraction
	app.Validations = usecase.NewValidationLookupUseCase(validations)
	app.Search = usecase.NewSearchUseCase(embedder, index, chunker)
	app.Analytics = usecase.NewAnalyticsAgent(primaryModel, analyses, deadlines, documents, clients, nil)

	slog.Info("bootstrap_ready",
		"primary_model", cfg.PrimaryModel,
		"hint_model", cfg.HintModel,
		"embed_model", cfg.EmbedModel,
		"holiday_calendar", holidays.Name(),
		"queue", queue != nil,
		"graph", entityGraph != nil,
	)
	ok = true
	return app, nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func newExtractorRegistry() *extractor.Registry {
	return extractor.NewRegistry(
		plaintext.NewText(),
		plaintext.NewEmail(),
		pdf.New(),
		office.NewDocx(),
		office.NewXlsx(),
		htmltext.New(),
	)
}

// connectGraph returns nil when the graph is disabled or unreachable.
func connectGraph(ctx context.Context, cfg config.Config) *graphneo4j.Graph {
	if cfg.Neo4jURI == "" {
		return nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	graph, err := graphneo4j.New(connectCtx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase)
	if err != nil {
		slog.Warn("entity_graph_unavailable", "uri", cfg.Neo4jURI, "error", err)
		return nil
	}
	return graph
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	out.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return out
}
