// Package app provides application initialization and dependency injection.
//
// App is the container that wires every component: Genkit, the database
// pool, the document store, the crawler, the news searcher, and the
// question pipeline. Entry points build an App once and use its fields.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foodwatch-kr/regintel/internal/config"
	"github.com/foodwatch-kr/regintel/internal/crawler"
	"github.com/foodwatch-kr/regintel/internal/history"
	"github.com/foodwatch-kr/regintel/internal/ingest"
	"github.com/foodwatch-kr/regintel/internal/llm"
	"github.com/foodwatch-kr/regintel/internal/log"
	"github.com/foodwatch-kr/regintel/internal/news"
	"github.com/foodwatch-kr/regintel/internal/pipeline"
	"github.com/foodwatch-kr/regintel/internal/store"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Store    *store.Store
	Crawler  *crawler.Crawler
	News     *news.Searcher
	LLM      *llm.Client
	History  *history.Store
	Loader   *ingest.Loader
	Pipeline *pipeline.Pipeline
}

// Close releases held resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down")
	}
	if a.DBPool != nil {
		a.DBPool.Close()
	}
	return nil
}
