package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/askidc/corpus-assistant/internal/config"
	"github.com/askidc/corpus-assistant/internal/core/ports"
	"github.com/askidc/corpus-assistant/internal/core/usecase"
	"github.com/askidc/corpus-assistant/internal/infrastructure/chunking"
	"github.com/askidc/corpus-assistant/internal/infrastructure/embedding"
	openaiembed "github.com/askidc/corpus-assistant/internal/infrastructure/embedding/openai"
	"github.com/askidc/corpus-assistant/internal/infrastructure/llm/ollama"
	"github.com/askidc/corpus-assistant/internal/infrastructure/queue/nats"
	"github.com/askidc/corpus-assistant/internal/infrastructure/repository/postgres"
	"github.com/askidc/corpus-assistant/internal/infrastructure/resilience"
	"github.com/askidc/corpus-assistant/internal/infrastructure/session/memstore"
	"github.com/askidc/corpus-assistant/internal/infrastructure/vector/memindex"
	"github.com/askidc/corpus-assistant/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue      *nats.Queue
	Repo       *postgres.DocumentRepository
	IndexStore *postgres.IndexRepository
	Index      *memindex.Index
	Sessions   *memstore.Store

	IngestUC   ports.CorpusIngestor
	RetrieveUC ports.Retriever

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	indexStore := postgres.NewIndexRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSRebuildSubject, cfg.NATSActivationSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	generator := ollama.NewGenerator(ollamaClient)

	embedder, err := buildEmbedder(cfg, ollamaClient, executor)
	if err != nil {
		return nil, err
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	index := memindex.New()
	sessions := memstore.New(cfg.SessionTTL, cfg.MaxTurnsPerSession)

	ingestUC := usecase.NewIngestUseCase(repo, chunker, embedder, indexStore, queue, cfg.GenerationsKept)
	retrieveUC := usecase.NewRetrieveUseCase(embedder, index, sessions, generator, usecase.RetrieveConfig{
		SemanticWeight:   cfg.SemanticWeight,
		LexicalWeight:    cfg.LexicalWeight,
		TopKCandidates:   cfg.TopKCandidates,
		HybridCandidates: cfg.HybridCandidates,
		TokenBudget:      cfg.TokenBudget,
		MaxTurns:         cfg.MaxTurnsPerSession,
		ContactEmail:     cfg.ContactEmail,
	})

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:      queue,
		Repo:       repo,
		IndexStore: indexStore,
		Index:      index,
		Sessions:   sessions,

		IngestUC:   ingestUC,
		RetrieveUC: retrieveUC,

		closeFn: func() {
			sessions.Close()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func buildEmbedder(cfg config.Config, ollamaClient *ollama.Client, executor *resilience.Executor) (ports.Embedder, error) {
	switch cfg.EmbedProvider {
	case "ollama":
		return embedding.WithResilience(ollama.NewEmbedder(ollamaClient, cfg.EmbedBatchSize), executor, ollama.ClassifyError), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embed provider requires OPENAI_API_KEY")
		}
		inner := openaiembed.New(cfg.OpenAIAPIKey, "", cfg.OpenAIEmbedModel, cfg.EmbedBatchSize)
		return embedding.WithResilience(inner, executor, nil), nil
	default:
		return nil, fmt.Errorf("unknown embed provider %q", cfg.EmbedProvider)
	}
}

// HydrateIndex loads the active generation from storage and publishes
// it to the in-memory index. Called at api startup and again on every
// generation-activated event.
func (a *App) HydrateIndex(ctx context.Context) error {
	generationID, entries, err := a.IndexStore.LoadActiveGeneration(ctx)
	if err != nil {
		return fmt.Errorf("load active generation: %w", err)
	}
	if generationID == "" {
		a.Logger.Info("no active generation yet")
		return nil
	}
	if generationID == a.Index.GenerationID() {
		return nil
	}

	gen, err := memindex.NewGeneration(generationID, entries)
	if err != nil {
		return fmt.Errorf("build generation %s: %w", generationID, err)
	}
	a.Index.Publish(gen)
	a.Logger.Info("index hydrated", "generation_id", generationID, "entries", gen.Len())
	return nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
