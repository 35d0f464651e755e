// Package news provides the fallback evidence path: Google News RSS search
// scoped to FDA and recall coverage, with full-article extraction where the
// publisher allows it and RSS snippets where it does not.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/foodwatch-kr/regintel/internal/config"
	"github.com/foodwatch-kr/regintel/internal/log"
)

// Article is one news result.
type Article struct {
	Title       string
	URL         string
	Source      string
	PublishedAt time.Time
	Snippet     string // cleaned RSS description
	Content     string // extracted article text, empty until FetchContent
	Score       int    // relevance score from search-time ranking
}

// Searcher queries Google News RSS and extracts article text.
type Searcher struct {
	cfg    config.NewsConfig
	client *http.Client
	logger log.Logger
}

// New creates a Searcher.
func New(cfg config.NewsConfig, logger log.Logger) *Searcher {
	return &Searcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// Search runs the query strategies in order and returns up to MaxResults
// relevant articles, deduplicated by title, ordered by score then recency.
//
// Strategies narrow to widen: FDA-anchored first, then recall-anchored,
// then the bare keywords. Later strategies only fill remaining slots.
func (s *Searcher) Search(ctx context.Context, keywords []string) ([]Article, error) {
	base := strings.Join(keywords, " ")
	strategies := []string{
		base + " FDA",
		base + " food recall",
		base,
	}

	var (
		articles   []Article
		seenTitles = make(map[string]bool)
		lastErr    error
	)

	for _, query := range strategies {
		if len(articles) >= s.cfg.MaxResults {
			break
		}

		items, err := s.fetchFeed(ctx, query)
		if err != nil {
			// A failed strategy is logged and the next one tried; only if
			// every strategy fails does Search return an error.
			s.logger.Warn("news search strategy failed", "query", query, "error", err)
			lastErr = err
			continue
		}

		for _, item := range items {
			if len(articles) >= s.cfg.MaxResults {
				break
			}

			title := strings.TrimSpace(item.Title)
			key := strings.ToLower(title)
			if title == "" || seenTitles[key] {
				continue
			}

			score := relevanceScore(title)
			if score == 0 {
				continue
			}

			seenTitles[key] = true
			articles = append(articles, Article{
				Title:       title,
				URL:         item.Link,
				Source:      strings.TrimSpace(item.Source),
				PublishedAt: parsePubDate(item.PubDate),
				Snippet:     stripTags(item.Description),
				Score:       score,
			})
		}
	}

	if len(articles) == 0 && lastErr != nil {
		return nil, fmt.Errorf("all news searches failed: %w", lastErr)
	}

	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].Score != articles[j].Score {
			return articles[i].Score > articles[j].Score
		}
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})

	return articles, nil
}

// maxContentLength bounds extracted article text fed into prompts.
const maxContentLength = 2000

// FetchContent extracts the article's full text with readability.
// On extraction failure the RSS snippet becomes the content, so callers
// always get something to cite.
func (s *Searcher) FetchContent(ctx context.Context, article *Article) {
	timeout := time.Duration(s.cfg.FetchTimeoutMS) * time.Millisecond

	result, err := readability.FromURL(article.URL, timeout)
	if err != nil {
		s.logger.Debug("article extraction failed, using snippet",
			"url", article.URL, "error", err)
		article.Content = article.Snippet
		return
	}

	text := strings.TrimSpace(result.TextContent)
	if text == "" {
		article.Content = article.Snippet
		return
	}
	if len(text) > maxContentLength {
		text = text[:maxContentLength]
	}
	article.Content = text
}

// rss mirrors the Google News RSS 2.0 payload, items only.
type rss struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      string `xml:"source"`
}

// fetchFeed requests one RSS query and returns its items.
func (s *Searcher) fetchFeed(ctx context.Context, query string) ([]rssItem, error) {
	feedURL := fmt.Sprintf("%s/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		s.cfg.BaseURL, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}

	var feed rss
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	return feed.Channel.Items, nil
}

// fdaTerms and recallTerms score title relevance.
var (
	fdaTerms    = []string{"fda", "food and drug administration"}
	recallTerms = []string{"recall", "recalled", "recalls", "contamination", "contaminated", "outbreak", "warning"}
)

// relevanceScore weighs a headline: FDA mentions count double, recall
// vocabulary counts single. Zero means off-topic.
func relevanceScore(title string) int {
	lower := strings.ToLower(title)
	score := 0
	for _, term := range fdaTerms {
		if strings.Contains(lower, term) {
			score += 2
			break
		}
	}
	for _, term := range recallTerms {
		if strings.Contains(lower, term) {
			score++
			break
		}
	}
	return score
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags removes markup from RSS descriptions.
func stripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// pubDateLayouts are the formats Google News feeds have been seen using.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
}

func parsePubDate(text string) time.Time {
	text = strings.TrimSpace(text)
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}
