package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/foodwatch-kr/regintel/db"
	"github.com/foodwatch-kr/regintel/internal/config"
	"github.com/foodwatch-kr/regintel/internal/crawler"
	"github.com/foodwatch-kr/regintel/internal/history"
	"github.com/foodwatch-kr/regintel/internal/ingest"
	"github.com/foodwatch-kr/regintel/internal/llm"
	"github.com/foodwatch-kr/regintel/internal/log"
	"github.com/foodwatch-kr/regintel/internal/news"
	"github.com/foodwatch-kr/regintel/internal/pipeline"
	"github.com/foodwatch-kr/regintel/internal/store"
	"github.com/foodwatch-kr/regintel/internal/translate"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	a.LLM = llm.New(g, cfg.FullModelName(), logger)
	a.Store = store.New(pool, embedder, logger)
	a.Crawler = crawler.New(cfg.Crawler, a.Store, logger)
	a.News = news.New(cfg.News, logger)
	a.Loader = ingest.NewLoader(a.Store, logger)

	hist, err := provideHistory(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.History = hist

	a.Pipeline = pipeline.New(pipeline.Deps{
		Translator: translate.New(a.LLM, logger),
		Store:      a.Store,
		Crawler:    a.Crawler,
		News:       a.News,
		Generator:  a.LLM,
		Classifier: a.LLM,
		History:    a.History,
		Logger:     logger,
		TopK:       cfg.TopK,
	})

	return a, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai provider")
	}
	logger.Info("initialized genkit", "model", cfg.ModelName, "embedder", cfg.EmbedderModel)
	return g, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
// pgvector types are registered on every new connection so vector query
// parameters bind without manual encoding.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideHistory creates the history store and prunes stale records.
func provideHistory(cfg *config.Config, logger log.Logger) (*history.Store, error) {
	dir := cfg.HistoryDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting user home directory: %w", err)
		}
		dir = filepath.Join(home, ".regintel", "history")
	}

	hist, err := history.NewStore(dir, config.NormalizeMaxHistoryMessages(cfg.MaxHistoryMessages), logger)
	if err != nil {
		return nil, fmt.Errorf("creating history store: %w", err)
	}

	retention := time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour
	if retention > 0 {
		removed, err := hist.CleanupOlderThan(retention)
		if err != nil {
			logger.Warn("history cleanup failed", "error", err)
		} else if removed > 0 {
			logger.Info("pruned stale history", "removed", removed)
		}
	}

	return hist, nil
}
