// Package pipeline orchestrates regulatory question answering: query
// preparation, conditional crawling, local vector retrieval with an LLM
// relevance gate, news fallback, synthesis, and conversation recording.
//
// Each question runs the full pipeline synchronously. Faults inside the
// pipeline never escape AskQuestion; they degrade to a user-legible
// answer carrying SearchMethodError.
package pipeline

import (
	"context"
	"time"

	"github.com/foodwatch-kr/regintel/internal/config"
	"github.com/foodwatch-kr/regintel/internal/crawler"
	"github.com/foodwatch-kr/regintel/internal/history"
	"github.com/foodwatch-kr/regintel/internal/log"
	"github.com/foodwatch-kr/regintel/internal/news"
	"github.com/foodwatch-kr/regintel/internal/store"
	"github.com/foodwatch-kr/regintel/internal/translate"
)

const (
	// minRelevantDocs is the relevance-gate threshold. Fewer relevant
	// local documents than this routes the question to the news path.
	minRelevantDocs = 2

	// recentWindow bounds how far back an on-demand crawl reaches.
	recentWindow = 14 * 24 * time.Hour

	defaultTopK = 8
)

// Generator produces free-form answers.
type Generator interface {
	GenerateWithSystem(ctx context.Context, system, prompt string) (string, error)
}

// Classifier answers yes/no judgment prompts. Swappable for a heuristic
// or cached judge in tests.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (bool, error)
}

// DocumentSearcher is the slice of the document store the router needs.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, opts ...store.SearchOption) ([]store.Result, error)
}

// Crawler refreshes the document store on demand.
type Crawler interface {
	CrawlLatest(ctx context.Context, afterDate time.Time) (crawler.Result, error)
}

// NewsSearcher supplies the fallback evidence path.
type NewsSearcher interface {
	Search(ctx context.Context, keywords []string) ([]news.Article, error)
	FetchContent(ctx context.Context, article *news.Article)
}

// Translator prepares a question for retrieval.
type Translator interface {
	ToEnglish(ctx context.Context, question string) string
	ExtractKeywords(ctx context.Context, question string) []string
}

// HistoryStore persists conversation turns per project and mode.
type HistoryStore interface {
	Load(project, mode string) ([]history.Message, error)
	AppendTurn(project, mode, question, answer string) error
}

// Deps wires a Pipeline. All fields except Now and TopK are required.
type Deps struct {
	Translator Translator
	Store      DocumentSearcher
	Crawler    Crawler // nil disables on-demand crawling
	News       NewsSearcher
	Generator  Generator
	Classifier Classifier
	History    HistoryStore
	Logger     log.Logger

	TopK int              // per retrieval pass, defaults to 8
	Now  func() time.Time // defaults to time.Now, injectable for tests
}

// Pipeline answers regulatory questions.
type Pipeline struct {
	translator Translator
	store      DocumentSearcher
	crawler    Crawler
	news       NewsSearcher
	gen        Generator
	classifier Classifier
	history    HistoryStore
	logger     log.Logger
	topK       int
	now        func() time.Time
}

// New creates a Pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	if deps.TopK <= 0 {
		deps.TopK = defaultTopK
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{
		translator: deps.Translator,
		store:      deps.Store,
		crawler:    deps.Crawler,
		news:       deps.News,
		gen:        deps.Generator,
		classifier: deps.Classifier,
		history:    deps.History,
		logger:     deps.Logger,
		topK:       deps.TopK,
		now:        deps.Now,
	}
}

// Answer is the result of one question.
type Answer struct {
	Text          string           // final answer including the provenance suffix
	Method        SearchMethod     // which evidence path produced the answer
	Documents     []store.Document // local evidence used, empty on other paths
	Articles      []news.Article   // news evidence used, empty on other paths
	RealtimeCount int              // Documents from the realtime crawl
	DatabaseCount int              // Documents from bulk loads
	Crawled       bool             // a crawl ran during this question
}

// AskQuestion runs the full pipeline for one question and records the
// turn. It never returns an error: every fault is converted into a
// user-legible answer with SearchMethodError.
func (p *Pipeline) AskQuestion(ctx context.Context, project, mode, question string) Answer {
	messages, err := p.history.Load(project, mode)
	if err != nil {
		p.logger.Warn("history load failed, starting empty", "project", project, "mode", mode, "error", err)
		messages = nil
	}

	ans := p.answer(ctx, mode, question, messages)
	ans.RealtimeCount, ans.DatabaseCount = countBySource(ans.Documents)
	ans.Text += provenanceSuffix(ans.Method, ans.Documents, len(ans.Articles), ans.Crawled)

	if err := p.history.AppendTurn(project, mode, question, ans.Text); err != nil {
		p.logger.Warn("history append failed", "project", project, "mode", mode, "error", err)
	}
	return ans
}

func (p *Pipeline) answer(ctx context.Context, mode, question string, messages []history.Message) Answer {
	conversation := conversationContext(messages)

	if !translate.IsDomainRelated(question) {
		text, err := p.gen.GenerateWithSystem(ctx, genericSystem, evidenceFreePrompt(question, conversation))
		if err != nil {
			p.logger.Error("generic answer failed", "error", err)
			return Answer{Text: errorAnswer, Method: SearchMethodError}
		}
		return Answer{Text: text, Method: SearchMethodGeneric}
	}

	translated := p.translator.ToEnglish(ctx, question)

	if mode == config.ModeRegulation {
		return p.answerRegulation(ctx, question, translated, conversation)
	}

	crawled := false
	if p.crawler != nil && p.shouldCrawl(question, messages) {
		res, err := p.crawler.CrawlLatest(ctx, p.now().Add(-recentWindow))
		if err != nil {
			p.logger.Warn("realtime crawl failed, continuing with stored data", "error", err)
		} else {
			crawled = true
			p.logger.Info("realtime crawl finished",
				"pages", res.PagesVisited, "new_records", res.NewRecords, "chunks", res.ChunksStored)
		}
	}

	merged := p.retrieve(ctx, question, translated)
	keywords := p.translator.ExtractKeywords(ctx, question)
	relevant := p.filterRelevant(ctx, keywords, merged)

	if len(relevant) >= minRelevantDocs {
		docs := rankEvidence(relevant)
		text, err := p.gen.GenerateWithSystem(ctx, localEvidenceSystem,
			evidencePrompt(question, buildContext(docs), conversation))
		if err != nil {
			p.logger.Error("local synthesis failed", "error", err)
			return Answer{Text: errorAnswer, Method: SearchMethodError, Crawled: crawled}
		}
		method := SearchMethodLocal
		if crawled {
			method = SearchMethodHybrid
		}
		return Answer{Text: text, Method: method, Documents: docs, Crawled: crawled}
	}

	p.logger.Info("relevance gate below threshold, trying news",
		"retrieved", len(merged), "relevant", len(relevant))
	return p.answerFromNews(ctx, question, keywords, conversation, crawled)
}

// retrieve runs one pass per query form and merges with prefix dedup.
func (p *Pipeline) retrieve(ctx context.Context, question, translated string) []store.Document {
	var passes [][]store.Result

	primary, err := p.store.Search(ctx, translated, store.WithTopK(p.topK))
	if err != nil {
		p.logger.Warn("local search failed", "query", translated, "error", err)
	}
	passes = append(passes, primary)

	if translated != question {
		secondary, err := p.store.Search(ctx, question, store.WithTopK(p.topK))
		if err != nil {
			p.logger.Warn("local search failed", "query", question, "error", err)
		}
		passes = append(passes, secondary)
	}
	return mergeResults(passes...)
}

// answerRegulation handles regulation-mode questions. The crawler, the
// per-product relevance gate, and the news fallback are all recall
// machinery; here retrieval is narrowed by metadata instead.
func (p *Pipeline) answerRegulation(ctx context.Context, question, translated, conversation string) Answer {
	query := translate.ClassifyRegulation(question, translated)
	docs := p.retrieveRegulation(ctx, translated, query)
	if len(docs) == 0 {
		return Answer{Text: noEvidenceAnswer, Method: SearchMethodNone}
	}

	docs = rankEvidence(docs)
	text, err := p.gen.GenerateWithSystem(ctx, regulationEvidenceSystem,
		evidencePrompt(question, buildContext(docs), conversation))
	if err != nil {
		p.logger.Error("regulation synthesis failed", "error", err)
		return Answer{Text: errorAnswer, Method: SearchMethodError}
	}
	return Answer{Text: text, Method: SearchMethodLocal, Documents: docs}
}

// retrieveRegulation runs one filtered pass per classified category. If
// every filtered pass comes back empty the question probably straddles
// categories, so one unfiltered pass serves as the wide net.
func (p *Pipeline) retrieveRegulation(ctx context.Context, translated string, query translate.RegulationQuery) []store.Document {
	var passes [][]store.Result
	for _, category := range query.Categories {
		results, err := p.store.Search(ctx, translated,
			store.WithTopK(p.topK),
			store.WithFilter(store.KeyDocumentType, query.DocumentType),
			store.WithFilter(store.KeyCategory, category))
		if err != nil {
			p.logger.Warn("regulation search failed",
				"document_type", query.DocumentType, "category", category, "error", err)
			continue
		}
		passes = append(passes, results)
	}

	merged := mergeResults(passes...)
	if len(merged) > 0 {
		return merged
	}

	p.logger.Info("filtered regulation search empty, widening",
		"document_type", query.DocumentType, "categories", query.Categories)
	wide, err := p.store.Search(ctx, translated, store.WithTopK(p.topK))
	if err != nil {
		p.logger.Warn("local search failed", "query", translated, "error", err)
		return nil
	}
	return mergeResults(wide)
}

// filterRelevant keeps documents the classifier judges to concern the
// same product or brand as the question. A classifier failure keeps the
// document; degrading to over-inclusion beats dropping real evidence.
func (p *Pipeline) filterRelevant(ctx context.Context, keywords []string, docs []store.Document) []store.Document {
	var relevant []store.Document
	for _, doc := range docs {
		ok, err := p.classifier.Classify(ctx, relevancePrompt(keywords, doc))
		if err != nil {
			p.logger.Warn("relevance check failed, keeping document", "id", doc.ID, "error", err)
			relevant = append(relevant, doc)
			continue
		}
		if ok {
			relevant = append(relevant, doc)
		}
	}
	return relevant
}

func (p *Pipeline) answerFromNews(ctx context.Context, question string, keywords []string, conversation string, crawled bool) Answer {
	articles, err := p.news.Search(ctx, keywords)
	if err != nil {
		p.logger.Warn("news search failed", "error", err)
	}
	if len(articles) == 0 {
		return Answer{Text: noEvidenceAnswer, Method: SearchMethodNone, Crawled: crawled}
	}

	for i := range articles {
		p.news.FetchContent(ctx, &articles[i])
	}

	text, err := p.gen.GenerateWithSystem(ctx, newsEvidenceSystem,
		evidencePrompt(question, news.FormatContext(articles), conversation))
	if err != nil {
		p.logger.Error("news synthesis failed", "error", err)
		return Answer{Text: errorAnswer, Method: SearchMethodError, Crawled: crawled}
	}
	return Answer{Text: text, Method: SearchMethodNews, Articles: articles, Crawled: crawled}
}

// shouldCrawl gates the expensive realtime crawl: only for
// recency-flavored questions, and at most once per session. The crawl
// marker in a prior assistant message is what blocks the repeat.
func (p *Pipeline) shouldCrawl(question string, messages []history.Message) bool {
	return translate.HasRecencyTerm(question) && !sessionCrawled(messages)
}
