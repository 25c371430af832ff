package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/clipindex/internal/config"
	"github.com/kirillkom/clipindex/internal/core/ports"
	"github.com/kirillkom/clipindex/internal/core/usecase"
	"github.com/kirillkom/clipindex/internal/infrastructure/assistant"
	"github.com/kirillkom/clipindex/internal/infrastructure/cleaner"
	"github.com/kirillkom/clipindex/internal/infrastructure/embedding"
	"github.com/kirillkom/clipindex/internal/infrastructure/embedding/heuristic"
	"github.com/kirillkom/clipindex/internal/infrastructure/embedding/local"
	"github.com/kirillkom/clipindex/internal/infrastructure/embedding/proxy"
	"github.com/kirillkom/clipindex/internal/infrastructure/index/ann"
	"github.com/kirillkom/clipindex/internal/infrastructure/index/lexical"
	"github.com/kirillkom/clipindex/internal/infrastructure/queue/nats"
	"github.com/kirillkom/clipindex/internal/infrastructure/repository/fallback"
	"github.com/kirillkom/clipindex/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/clipindex/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Store ports.EntryStore

	// Fallback is the capped capture buffer in front of SQLite; callers
	// drain it periodically so buffered entries reach disk after outages.
	Fallback *fallback.Store

	CaptureUC  ports.EntryCapturer
	SearchUC   ports.SearchService
	AnswerUC   ports.AnswerService
	BackfillUC ports.BackfillRunner

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := sqlite.NewEntryRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	store := fallback.NewStore(repo, cfg.FallbackCap)

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	var fts ports.FullTextMatcher
	if repo.FullTextEnabled() {
		fts = repo
	}
	lexChain := lexical.NewChain(fts, lexical.NewIndex())
	entries, err := store.GetAll(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load entries: %w", err)
	}
	if err := lexChain.RebuildAll(ctx, entries); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rebuild lexical index: %w", err)
	}

	proxyClient := proxy.New(cfg.EmbedProxyURL, proxy.Options{
		Model:      cfg.EmbedModel,
		BatchSize:  cfg.EmbedBatchSize,
		RequestGap: cfg.EmbedRequestGap,
		BatchGap:   cfg.EmbedBatchGap,
		Executor:   executor,
	})
	localClient := local.New(cfg.OllamaURL, cfg.OllamaEmbedModel)
	embedChain := embedding.NewChain(heuristic.NewScorer(), proxyClient, localClient)
	if err := embedChain.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init embedding chain: %w", err)
	}

	vectors := ann.NewSwitching(cfg.VectorWarmThreshold)
	if !embedChain.Degraded() {
		stored, err := store.ListEmbeddings(ctx, embedChain.ModelName())
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("load embeddings: %w", err)
		}
		for _, vec := range stored {
			if err := vectors.Upsert(ctx, vec.EntryID, vec.Vector); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("warm vector index: %w", err)
			}
		}
		slog.Info("vector_index_loaded", "vectors", len(stored), "model", embedChain.ModelName())
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	assistantClient := assistant.New(assistant.Options{
		BaseURL:         cfg.AssistantBaseURL,
		APIKey:          cfg.AssistantAPIKey,
		AssistantID:     cfg.AssistantID,
		Model:           cfg.AssistantModel,
		PollInterval:    cfg.RunPollInterval,
		MaxPollAttempts: cfg.RunMaxPollAttempts,
	})
	var textCleaner ports.TextCleaner = cleaner.NewRuleBased()
	if cfg.CleanerAIPass {
		textCleaner = cleaner.NewEnhanced(cleaner.NewOllamaRewriter(cfg.OllamaURL, cfg.OllamaGenModel))
	}

	captureUC := usecase.NewCaptureUseCase(store, lexChain, vectors, queue)
	searchUC := usecase.NewSearchUseCase(store, lexChain, vectors, embedChain)
	answerUC := usecase.NewAnswerUseCase(store, textCleaner, assistantClient)
	backfillUC := usecase.NewBackfillUseCase(store, vectors, embedChain, cfg.EmbedBatchSize, backfillLimiter(cfg.BackfillPerMinute))

	return &App{
		Config: cfg,

		Queue:    queue,
		Store:    store,
		Fallback: store,

		CaptureUC:  captureUC,
		SearchUC:   searchUC,
		AnswerUC:   answerUC,
		BackfillUC: backfillUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func backfillLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
