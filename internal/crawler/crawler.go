// Package crawler fetches recent FDA recall announcements on demand and
// stores Food & Beverages records as evidence chunks.
//
// The crawl is strictly sequential and bounded: a handful of listing pages,
// a handful of candidates per page, and an early stop once enough new
// records are stored. A politeness delay separates every request.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"

	"github.com/foodwatch-kr/regintel/internal/config"
	"github.com/foodwatch-kr/regintel/internal/ingest"
	"github.com/foodwatch-kr/regintel/internal/log"
	"github.com/foodwatch-kr/regintel/internal/store"
)

// listingPath is the FDA recall listing, paged with ?page=N.
const listingPath = "/safety/recalls-market-withdrawals-safety-alerts"

// Store is the slice of the document store the crawler needs.
type Store interface {
	HasURL(ctx context.Context, url string) (bool, error)
	Add(ctx context.Context, doc store.Document) error
}

// Crawler visits the FDA recall listing and ingests new announcements.
type Crawler struct {
	cfg    config.CrawlerConfig
	store  Store
	logger log.Logger
}

// New creates a Crawler.
func New(cfg config.CrawlerConfig, s Store, logger log.Logger) *Crawler {
	return &Crawler{cfg: cfg, store: s, logger: logger}
}

// Result reports what a crawl did.
type Result struct {
	PagesVisited int // listing pages fetched
	NewRecords   int // announcements ingested
	ChunksStored int // chunks written to the store
	Skipped      int // candidates skipped (known URL, wrong category, too old)
}

// candidate is one listing row worth examining.
type candidate struct {
	url  string
	date time.Time
}

// Record is one announcement collected from the listing, parsed and
// category-gated but not yet persisted.
type Record struct {
	Meta         ingest.Record
	Announcement string
}

// CrawlLatest walks the recall listing newest-first, collects Food &
// Beverages announcements dated on or after afterDate, then persists the
// collected records. Collection and persistence are also usable on their
// own via Collect and UpdateStore.
func (c *Crawler) CrawlLatest(ctx context.Context, afterDate time.Time) (Result, error) {
	records, res, err := c.Collect(ctx, afterDate)
	if err != nil {
		return res, err
	}

	added, chunks, err := c.UpdateStore(ctx, records)
	res.NewRecords = added
	res.ChunksStored = chunks
	if err != nil {
		return res, err
	}

	c.logger.Info("crawl complete",
		"pages", res.PagesVisited,
		"new_records", res.NewRecords,
		"chunks", res.ChunksStored,
		"skipped", res.Skipped)
	return res, nil
}

// Collect walks the recall listing and returns the new, in-category
// records without writing anything. It stops early once TargetCount
// records are collected, and stops paging when a page yields nothing new
// after older-than-cutoff rows have been seen. The Result carries page
// and skip counts; NewRecords and ChunksStored stay zero until the
// records are persisted.
func (c *Crawler) Collect(ctx context.Context, afterDate time.Time) ([]Record, Result, error) {
	var (
		records []Record
		res     Result
	)
	oldSeen := false

	for page := 0; page < c.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return records, res, fmt.Errorf("crawl canceled: %w", err)
		}

		candidates, err := c.fetchListing(page)
		if err != nil {
			return records, res, fmt.Errorf("fetching listing page %d: %w", page, err)
		}
		res.PagesVisited++

		newOnPage := 0
		for _, cand := range candidates {
			if len(records) >= c.cfg.TargetCount {
				return records, res, nil
			}

			// Cutoff is inclusive: a record dated exactly afterDate is kept.
			if cand.date.Before(afterDate) {
				oldSeen = true
				res.Skipped++
				continue
			}

			known, err := c.store.HasURL(ctx, cand.url)
			if err != nil {
				return records, res, fmt.Errorf("checking known url: %w", err)
			}
			if known {
				res.Skipped++
				continue
			}

			rec, err := c.collectDetail(cand.url)
			if err != nil {
				// One broken detail page must not abort the crawl.
				c.logger.Warn("skipping detail page", "url", cand.url, "error", err)
				res.Skipped++
				continue
			}
			if rec == nil {
				res.Skipped++
				continue
			}

			records = append(records, *rec)
			newOnPage++
		}

		// Once rows older than the cutoff have appeared and a whole page
		// added nothing, deeper pages are only older. Stop.
		if newOnPage == 0 && oldSeen {
			break
		}
	}
	return records, res, nil
}

// UpdateStore chunks and persists collected records. It reports how many
// records and chunks were written; on error the counts cover what made it
// in before the failure.
func (c *Crawler) UpdateStore(ctx context.Context, records []Record) (added, chunks int, err error) {
	crawledAt := time.Now().Format(time.RFC3339)

	for _, rec := range records {
		stored := 0
		for _, chunk := range ingest.Chunk(rec.Announcement, ingest.DefaultChunkConfig()) {
			doc := store.Document{
				ID:      uuid.NewString(),
				Content: ingest.StructuredContent(rec.Meta, chunk),
				Metadata: map[string]string{
					store.KeySource:        store.SourceRealtimeCrawl,
					store.KeyURL:           rec.Meta.URL,
					store.KeyTitle:         rec.Meta.Title,
					store.KeyCategory:      rec.Meta.Category,
					store.KeyDocumentType:  rec.Meta.DocumentType,
					store.KeyEffectiveDate: rec.Meta.EffectiveDate,
					store.KeyLastUpdated:   rec.Meta.LastUpdated,
					store.KeyCrawledAt:     crawledAt,
				},
			}
			if err := c.store.Add(ctx, doc); err != nil {
				return added, chunks, fmt.Errorf("storing chunk: %w", err)
			}
			stored++
			chunks++
		}
		if stored > 0 {
			added++
			c.logger.Info("ingested recall", "title", rec.Meta.Title, "chunks", stored)
		}
	}
	return added, chunks, nil
}

// newCollector builds a collector restricted to the configured origin with
// the politeness delay applied to every request.
func (c *Crawler) newCollector() (*colly.Collector, error) {
	origin, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(origin.Hostname()),
		colly.UserAgent(c.cfg.UserAgent),
	)
	err = collector.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      time.Duration(c.cfg.DelayMS) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("applying limit rule: %w", err)
	}
	return collector, nil
}

// fetchListing visits one listing page and returns detail-page candidates
// in row order (newest first), capped at MaxPerPage.
func (c *Crawler) fetchListing(page int) ([]candidate, error) {
	collector, err := c.newCollector()
	if err != nil {
		return nil, err
	}

	var (
		candidates []candidate
		visitErr   error
	)

	collector.OnHTML("table#datatable tbody tr", func(e *colly.HTMLElement) {
		if len(candidates) >= c.cfg.MaxPerPage {
			return
		}

		dateText := e.ChildText("td:nth-of-type(1)")
		href := e.ChildAttr("td a", "href")
		if href == "" {
			return
		}

		date, err := parseListingDate(dateText)
		if err != nil {
			c.logger.Debug("unparseable listing date", "text", dateText)
			return
		}

		candidates = append(candidates, candidate{
			url:  e.Request.AbsoluteURL(href),
			date: date,
		})
	})

	collector.OnError(func(_ *colly.Response, err error) {
		visitErr = err
	})

	listingURL := fmt.Sprintf("%s%s?page=%d", c.cfg.BaseURL, listingPath, page)
	if err := collector.Visit(listingURL); err != nil {
		return nil, err
	}
	collector.Wait()

	if visitErr != nil {
		return nil, visitErr
	}
	return candidates, nil
}

// collectDetail fetches and parses one announcement page. A nil record
// with nil error means the page is out of category (not Food & Beverages).
func (c *Crawler) collectDetail(detailURL string) (*Record, error) {
	detail, err := c.fetchDetail(detailURL)
	if err != nil {
		return nil, err
	}
	if !detail.isFoodAndBeverages() {
		c.logger.Debug("skipping non-food recall", "url", detailURL, "product_type", detail.ProductType)
		return nil, nil
	}
	if detail.Announcement == "" {
		return nil, fmt.Errorf("empty announcement body at %s", detailURL)
	}
	return &Record{Meta: detail.toRecord(detailURL), Announcement: detail.Announcement}, nil
}
