package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/answer-engine/internal/config"
	"github.com/kirillkom/answer-engine/internal/core/ports"
	"github.com/kirillkom/answer-engine/internal/core/usecase"
	"github.com/kirillkom/answer-engine/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/answer-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/answer-engine/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/answer-engine/internal/infrastructure/resilience"
	"github.com/kirillkom/answer-engine/internal/infrastructure/search/elastic"
	"github.com/kirillkom/answer-engine/internal/observability/metrics"
)

type App struct {
	Config config.Config

	SearchUC ports.SearchService
	History  ports.SearchHistoryReader
	Queue    ports.CandidateQueue
	Index    ports.IndexStore

	APIMetrics    *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	searchLog := postgres.NewSearchLogRepository(db)
	if err := searchLog.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init candidate queue: %w", err)
	}

	geminiClient := gemini.NewWithOptions(cfg.GeminiAPIKey, cfg.GeminiGenModel, cfg.GeminiEmbedModel, gemini.Options{
		BaseURL:            cfg.GeminiBaseURL,
		ResilienceExecutor: executor,
	})
	enhancer := gemini.NewEnhancer(geminiClient)
	webRetriever := gemini.NewWebRetriever(geminiClient)
	scorer := usecase.NewLexicalGroundednessScorer()
	synthesizer := gemini.NewSynthesizer(geminiClient, scorer)
	followUps := gemini.NewFollowUpGenerator(geminiClient)
	embedder := gemini.NewEmbedder(geminiClient)

	index := elastic.NewWithOptions(cfg.ElasticURL, cfg.ElasticAPIKey, cfg.ElasticIndex, cfg.ElasticVectorDims, embedder, elastic.Options{
		ResilienceExecutor: executor,
	})

	apiMetrics := metrics.NewHTTPServerMetrics("api")
	workerMetrics := metrics.NewWorkerMetrics("worker")

	searchUC := usecase.NewSearchUseCase(
		enhancer,
		webRetriever,
		index,
		synthesizer,
		followUps,
		queue,
		searchLog,
		apiMetrics,
		usecase.PipelineLimits{
			EnhanceTimeout:   time.Duration(cfg.EnhanceTimeoutSeconds) * time.Second,
			RetrieveTimeout:  time.Duration(cfg.RetrieveTimeoutSeconds) * time.Second,
			SynthesisTimeout: time.Duration(cfg.SynthesisTimeoutSecs) * time.Second,
			FollowUpTimeout:  time.Duration(cfg.FollowUpTimeoutSeconds) * time.Second,
			IngestTimeout:    time.Duration(cfg.IngestTimeoutSeconds) * time.Second,
			HistoryTimeout:   time.Duration(cfg.HistoryTimeoutSeconds) * time.Second,
			WebLimit:         cfg.WebResultLimit,
		},
	)

	return &App{
		Config: cfg,

		SearchUC: searchUC,
		History:  searchLog,
		Queue:    queue,
		Index:    index,

		APIMetrics:    apiMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
