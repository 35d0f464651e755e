package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/foodwatch-kr/regintel/internal/crawler"
	"github.com/foodwatch-kr/regintel/internal/history"
	"github.com/foodwatch-kr/regintel/internal/log"
	"github.com/foodwatch-kr/regintel/internal/news"
	"github.com/foodwatch-kr/regintel/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTranslator struct {
	english  string
	keywords []string
}

func (f *fakeTranslator) ToEnglish(_ context.Context, question string) string {
	if f.english != "" {
		return f.english
	}
	return question
}

func (f *fakeTranslator) ExtractKeywords(context.Context, string) []string {
	return f.keywords
}

type searchCall struct {
	query  string
	topK   int
	filter map[string]string
}

type fakeSearcher struct {
	results []store.Result
	err     error
	calls   []searchCall
}

func (f *fakeSearcher) Search(_ context.Context, query string, opts ...store.SearchOption) ([]store.Result, error) {
	topK, filter := store.ResolveOptions(opts)
	f.calls = append(f.calls, searchCall{query: query, topK: topK, filter: filter})
	return f.results, f.err
}

type fakeCrawler struct {
	res   crawler.Result
	err   error
	calls int
	after time.Time
}

func (f *fakeCrawler) CrawlLatest(_ context.Context, afterDate time.Time) (crawler.Result, error) {
	f.calls++
	f.after = afterDate
	return f.res, f.err
}

type fakeNews struct {
	articles []news.Article
	err      error
	fetched  int
}

func (f *fakeNews) Search(context.Context, []string) ([]news.Article, error) {
	return f.articles, f.err
}

func (f *fakeNews) FetchContent(_ context.Context, a *news.Article) {
	f.fetched++
	a.Content = "full text of " + a.Title
}

type fakeGen struct {
	text    string
	err     error
	systems []string
	prompts []string
}

func (f *fakeGen) GenerateWithSystem(_ context.Context, system, prompt string) (string, error) {
	f.systems = append(f.systems, system)
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

type fakeClassifier struct {
	fn func(prompt string) (bool, error)
}

func (f *fakeClassifier) Classify(_ context.Context, prompt string) (bool, error) {
	if f.fn == nil {
		return true, nil
	}
	return f.fn(prompt)
}

// cheeseResults builds three retrieval hits; only the two Cheese ones
// should survive a brand-aware relevance gate.
func cheeseResults() []store.Result {
	return []store.Result{
		{Document: store.Document{ID: "d1", Content: "chunk about cheese listeria", Metadata: map[string]string{
			store.KeySource:        store.SourceDatabase,
			store.KeyTitle:         "Brand A Recalls Cheese",
			store.KeyEffectiveDate: "2026-07-01",
		}}},
		{Document: store.Document{ID: "d2", Content: "second chunk about cheese", Metadata: map[string]string{
			store.KeySource:        store.SourceDatabase,
			store.KeyTitle:         "Brand A Recalls Cheese",
			store.KeyEffectiveDate: "2026-07-01",
		}}},
		{Document: store.Document{ID: "d3", Content: "chunk about almond butter", Metadata: map[string]string{
			store.KeySource:        store.SourceDatabase,
			store.KeyTitle:         "Brand B Recalls Almond Butter",
			store.KeyEffectiveDate: "2026-08-01",
		}}},
	}
}

func cheeseClassifier() *fakeClassifier {
	return &fakeClassifier{fn: func(prompt string) (bool, error) {
		return strings.Contains(prompt, "Cheese"), nil
	}}
}

type testDeps struct {
	translator *fakeTranslator
	searcher   *fakeSearcher
	crawler    *fakeCrawler
	news       *fakeNews
	gen        *fakeGen
	classifier *fakeClassifier
	history    *history.Store
}

func newTestPipeline(t *testing.T, mutate func(*testDeps)) (*Pipeline, *testDeps) {
	t.Helper()
	hist, err := history.NewStore(t.TempDir(), 8, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	d := &testDeps{
		translator: &fakeTranslator{english: "cheese recall", keywords: []string{"cheese", "recall"}},
		searcher:   &fakeSearcher{results: cheeseResults()},
		crawler:    &fakeCrawler{res: crawler.Result{NewRecords: 2, ChunksStored: 4}},
		news:       &fakeNews{},
		gen:        &fakeGen{text: "synthesized answer"},
		classifier: cheeseClassifier(),
		history:    hist,
	}
	if mutate != nil {
		mutate(d)
	}
	p := New(Deps{
		Translator: d.translator,
		Store:      d.searcher,
		Crawler:    d.crawler,
		News:       d.news,
		Generator:  d.gen,
		Classifier: d.classifier,
		History:    d.history,
		Logger:     log.NewNop(),
		Now:        func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) },
	})
	return p, d
}

func TestAskQuestionLocalPath(t *testing.T) {
	p, d := newTestPipeline(t, nil)

	ans := p.AskQuestion(context.Background(), "acme", "recall", "브랜드A 치즈 리콜 사례 알려줘")

	if ans.Method != SearchMethodLocal {
		t.Fatalf("Method = %q, want %q", ans.Method, SearchMethodLocal)
	}
	if len(ans.Documents) != 2 {
		t.Fatalf("Documents = %d, want 2 (almond doc gated out)", len(ans.Documents))
	}
	if ans.DatabaseCount != 2 || ans.RealtimeCount != 0 {
		t.Errorf("counts = realtime %d / db %d, want 0 / 2", ans.RealtimeCount, ans.DatabaseCount)
	}
	if !strings.HasPrefix(ans.Text, "synthesized answer") {
		t.Errorf("Text = %q, want synthesis first", ans.Text)
	}
	if !strings.Contains(ans.Text, "검색 방법: local") {
		t.Errorf("Text missing provenance: %q", ans.Text)
	}
	if strings.Contains(ans.Text, crawlMarker) {
		t.Errorf("no crawl ran but marker present: %q", ans.Text)
	}
	if d.crawler.calls != 0 {
		t.Errorf("crawler called %d times for non-recency question, want 0", d.crawler.calls)
	}
	// Two retrieval passes: translated form plus the original question.
	if len(d.searcher.calls) != 2 {
		t.Errorf("search passes = %d, want 2", len(d.searcher.calls))
	}
	if d.gen.systems[0] != localEvidenceSystem {
		t.Error("local path used wrong system prompt")
	}

	msgs, err := d.history.Load("acme", "recall")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("history = %d messages, want 2", len(msgs))
	}
	if msgs[1].Content != ans.Text {
		t.Error("recorded assistant message differs from returned answer")
	}
}

func TestAskQuestionCrawlsOncePerSession(t *testing.T) {
	p, d := newTestPipeline(t, nil)
	ctx := context.Background()

	ans := p.AskQuestion(ctx, "acme", "recall", "최근 치즈 리콜 있어?")

	if d.crawler.calls != 1 {
		t.Fatalf("crawler calls = %d, want 1", d.crawler.calls)
	}
	wantAfter := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	if !d.crawler.after.Equal(wantAfter) {
		t.Errorf("afterDate = %v, want %v", d.crawler.after, wantAfter)
	}
	if ans.Method != SearchMethodHybrid {
		t.Errorf("Method = %q, want %q", ans.Method, SearchMethodHybrid)
	}
	if !ans.Crawled {
		t.Error("Crawled = false, want true")
	}
	if !strings.Contains(ans.Text, crawlMarker) {
		t.Errorf("answer missing crawl marker: %q", ans.Text)
	}

	// Second recency question in the same session must not crawl again:
	// the marker recorded in the first answer blocks the repeat.
	ans2 := p.AskQuestion(ctx, "acme", "recall", "최근 리콜 또 있어?")
	if d.crawler.calls != 1 {
		t.Errorf("crawler calls after second question = %d, want 1", d.crawler.calls)
	}
	if ans2.Method != SearchMethodLocal {
		t.Errorf("second Method = %q, want %q", ans2.Method, SearchMethodLocal)
	}
}

func TestAskQuestionCrawlsMidSession(t *testing.T) {
	p, d := newTestPipeline(t, nil)
	ctx := context.Background()

	// A session that starts without a recency question must still crawl
	// when a later turn asks for the latest data.
	p.AskQuestion(ctx, "acme", "recall", "브랜드A 치즈 리콜 사례 알려줘")
	if d.crawler.calls != 0 {
		t.Fatalf("crawler calls after first question = %d, want 0", d.crawler.calls)
	}

	ans := p.AskQuestion(ctx, "acme", "recall", "최근 치즈 리콜 있어?")
	if d.crawler.calls != 1 {
		t.Fatalf("crawler calls after recency question = %d, want 1", d.crawler.calls)
	}
	if ans.Method != SearchMethodHybrid {
		t.Errorf("Method = %q, want %q", ans.Method, SearchMethodHybrid)
	}
	if !strings.Contains(ans.Text, crawlMarker) {
		t.Errorf("answer missing crawl marker: %q", ans.Text)
	}
}

func TestAskQuestionCrawlFailureDegrades(t *testing.T) {
	p, d := newTestPipeline(t, func(d *testDeps) {
		d.crawler.err = context.DeadlineExceeded
	})

	ans := p.AskQuestion(context.Background(), "acme", "recall", "최근 치즈 리콜 있어?")

	if d.crawler.calls != 1 {
		t.Fatalf("crawler calls = %d, want 1", d.crawler.calls)
	}
	if ans.Method != SearchMethodLocal {
		t.Errorf("Method = %q, want %q (stored data still answers)", ans.Method, SearchMethodLocal)
	}
	if ans.Crawled {
		t.Error("Crawled = true after failed crawl")
	}
	if strings.Contains(ans.Text, crawlMarker) {
		t.Error("failed crawl must not set the marker")
	}
}

func TestAskQuestionNewsFallback(t *testing.T) {
	p, d := newTestPipeline(t, func(d *testDeps) {
		d.classifier = &fakeClassifier{fn: func(string) (bool, error) { return false, nil }}
		d.news.articles = []news.Article{
			{Title: "Cheese recall expands", URL: "https://example.com/1", Source: "Wire"},
			{Title: "FDA warns on cheese", URL: "https://example.com/2", Source: "Daily"},
		}
	})

	ans := p.AskQuestion(context.Background(), "acme", "recall", "브랜드A 치즈 리콜 사례 알려줘")

	if ans.Method != SearchMethodNews {
		t.Fatalf("Method = %q, want %q", ans.Method, SearchMethodNews)
	}
	if len(ans.Articles) != 2 {
		t.Fatalf("Articles = %d, want 2", len(ans.Articles))
	}
	if d.news.fetched != 2 {
		t.Errorf("FetchContent calls = %d, want 2", d.news.fetched)
	}
	if len(ans.Documents) != 0 {
		t.Errorf("Documents = %d on news path, want 0", len(ans.Documents))
	}
	if !strings.Contains(ans.Text, "뉴스 기사 2건") {
		t.Errorf("provenance missing article count: %q", ans.Text)
	}
	if d.gen.systems[0] != newsEvidenceSystem {
		t.Error("news path used wrong system prompt")
	}
	if !strings.Contains(d.gen.prompts[0], "full text of Cheese recall expands") {
		t.Error("prompt missing fetched article text")
	}
}

func TestAskQuestionNoEvidence(t *testing.T) {
	p, _ := newTestPipeline(t, func(d *testDeps) {
		d.searcher.results = nil
		d.news.articles = nil
	})

	ans := p.AskQuestion(context.Background(), "acme", "recall", "브랜드X 통조림 리콜 있었어?")

	if ans.Method != SearchMethodNone {
		t.Fatalf("Method = %q, want %q", ans.Method, SearchMethodNone)
	}
	if !strings.HasPrefix(ans.Text, "현재 데이터 기준 해당 사례 확인 불가") {
		t.Errorf("Text = %q, want fixed no-evidence answer", ans.Text)
	}
	if !strings.Contains(ans.Text, "검색 방법: none") {
		t.Errorf("no-evidence answer missing provenance: %q", ans.Text)
	}
}

func TestAskQuestionGenericPath(t *testing.T) {
	p, d := newTestPipeline(t, nil)

	ans := p.AskQuestion(context.Background(), "acme", "recall", "서울에서 부산까지 KTX로 얼마나 걸려?")

	if ans.Method != SearchMethodGeneric {
		t.Fatalf("Method = %q, want %q", ans.Method, SearchMethodGeneric)
	}
	if len(d.searcher.calls) != 0 {
		t.Errorf("store searched %d times on generic path, want 0", len(d.searcher.calls))
	}
	if d.crawler.calls != 0 {
		t.Errorf("crawler called on generic path")
	}
	if d.gen.systems[0] != genericSystem {
		t.Error("generic path used wrong system prompt")
	}
}

func TestAskQuestionSynthesisFailure(t *testing.T) {
	p, _ := newTestPipeline(t, func(d *testDeps) {
		d.gen.err = context.DeadlineExceeded
	})

	ans := p.AskQuestion(context.Background(), "acme", "recall", "브랜드A 치즈 리콜 사례 알려줘")

	if ans.Method != SearchMethodError {
		t.Fatalf("Method = %q, want %q", ans.Method, SearchMethodError)
	}
	if !strings.HasPrefix(ans.Text, "답변 생성 중 오류") {
		t.Errorf("Text = %q, want plain-language error answer", ans.Text)
	}
}

func TestAskQuestionClassifierFailureKeepsDocument(t *testing.T) {
	p, _ := newTestPipeline(t, func(d *testDeps) {
		d.classifier = &fakeClassifier{fn: func(string) (bool, error) {
			return false, context.DeadlineExceeded
		}}
	})

	ans := p.AskQuestion(context.Background(), "acme", "recall", "브랜드A 치즈 리콜 사례 알려줘")

	// All three docs kept despite classifier errors, so the local path wins.
	if ans.Method != SearchMethodLocal {
		t.Fatalf("Method = %q, want %q", ans.Method, SearchMethodLocal)
	}
	if len(ans.Documents) != 3 {
		t.Errorf("Documents = %d, want 3", len(ans.Documents))
	}
}

func TestAskQuestionRegulationModeFiltersRetrieval(t *testing.T) {
	p, d := newTestPipeline(t, func(d *testDeps) {
		d.translator.english = "milk allergen labeling guidance"
	})

	ans := p.AskQuestion(context.Background(), "acme", "regulation", "우유 알러지 표시 지침 알려줘")

	if ans.Method != SearchMethodLocal {
		t.Fatalf("Method = %q, want %q", ans.Method, SearchMethodLocal)
	}
	// One filtered pass per classified category.
	if len(d.searcher.calls) != 2 {
		t.Fatalf("search passes = %d, want 2", len(d.searcher.calls))
	}
	wantCategories := []string{"allergen", "labeling"}
	for i, call := range d.searcher.calls {
		if call.filter[store.KeyDocumentType] != "guidance" {
			t.Errorf("pass %d document_type filter = %q, want guidance", i, call.filter[store.KeyDocumentType])
		}
		if call.filter[store.KeyCategory] != wantCategories[i] {
			t.Errorf("pass %d category filter = %q, want %q", i, call.filter[store.KeyCategory], wantCategories[i])
		}
	}
	if d.gen.systems[0] != regulationEvidenceSystem {
		t.Error("regulation path used wrong system prompt")
	}
	// Recall machinery stays out of regulation mode.
	if d.crawler.calls != 0 {
		t.Errorf("crawler called %d times in regulation mode, want 0", d.crawler.calls)
	}
	if d.news.fetched != 0 {
		t.Errorf("news fetched %d times in regulation mode, want 0", d.news.fetched)
	}
}

func TestAskQuestionRegulationModeWidensThenGivesUp(t *testing.T) {
	p, d := newTestPipeline(t, func(d *testDeps) {
		d.translator.english = "food additive guidance"
		d.searcher.results = nil
	})

	ans := p.AskQuestion(context.Background(), "acme", "regulation", "식품 첨가물 지침이 뭐야")

	// One filtered pass for the additives category, then the wide net.
	if len(d.searcher.calls) != 2 {
		t.Fatalf("search passes = %d, want 2", len(d.searcher.calls))
	}
	if d.searcher.calls[0].filter[store.KeyCategory] != "additives" {
		t.Errorf("filtered pass category = %q, want additives", d.searcher.calls[0].filter[store.KeyCategory])
	}
	if d.searcher.calls[1].filter != nil {
		t.Errorf("widened pass carries filter %v, want none", d.searcher.calls[1].filter)
	}
	if ans.Method != SearchMethodNone {
		t.Fatalf("Method = %q, want %q", ans.Method, SearchMethodNone)
	}
	if !strings.HasPrefix(ans.Text, "현재 데이터 기준 해당 사례 확인 불가") {
		t.Errorf("Text = %q, want fixed no-evidence answer", ans.Text)
	}
}

func TestConversationContextStripsProvenance(t *testing.T) {
	msgs := []history.Message{
		{Role: history.RoleUser, Content: "치즈 리콜 알려줘"},
		{Role: history.RoleAssistant, Content: "answer body" + provenanceSuffix(SearchMethodLocal, nil, 0, true)},
	}
	got := conversationContext(msgs)
	if strings.Contains(got, "검색 방법") || strings.Contains(got, crawlMarker) {
		t.Errorf("provenance leaked into conversation context: %q", got)
	}
	if !strings.Contains(got, "answer body") {
		t.Errorf("answer body missing from context: %q", got)
	}
}

func TestSessionCrawled(t *testing.T) {
	marked := []history.Message{
		{Role: history.RoleUser, Content: crawlMarker}, // user text never counts
		{Role: history.RoleAssistant, Content: "done\n" + crawlMarker},
	}
	if !sessionCrawled(marked) {
		t.Error("sessionCrawled = false with marked assistant message")
	}
	if sessionCrawled(marked[:1]) {
		t.Error("sessionCrawled = true from a user message")
	}
	if sessionCrawled(nil) {
		t.Error("sessionCrawled = true on empty history")
	}
}
