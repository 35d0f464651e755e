package store

import "time"

// VectorDimension is the embedding width expected by the documents schema.
// text-embedding-004 outputs 768 dimensions; see db/migrations.
const VectorDimension = 768

// Metadata keys used on stored documents.
const (
	KeySource        = "source"
	KeyURL           = "url"
	KeyTitle         = "title"
	KeyCategory      = "category"
	KeyClass         = "class"
	KeyDocumentType  = "document_type"
	KeyEffectiveDate = "effective_date" // ISO date, e.g. "2026-03-15"
	KeyLastUpdated   = "last_updated"
	KeyCrawledAt     = "crawled_at" // RFC 3339, set on crawled documents
)

// Values for the "source" metadata key.
const (
	// SourceRealtimeCrawl marks documents ingested by the on-demand crawler.
	SourceRealtimeCrawl = "realtime_crawl"

	// SourceDatabase marks documents ingested from the bulk recall dataset.
	SourceDatabase = "database"
)

// Document is one evidence chunk with its provenance metadata.
type Document struct {
	ID        string            // Unique identifier
	Content   string            // Chunk text content
	Metadata  map[string]string // Provenance (source, url, title, dates, ...)
	CreatedAt time.Time         // Ingestion timestamp
}

// Result is a single search hit with its similarity score.
type Result struct {
	Document   Document
	Similarity float32 // Cosine similarity score (0-1)
}

// Status summarizes the store contents for operator reporting.
type Status struct {
	Total         int       // All documents
	RealtimeCount int       // Documents from the on-demand crawler
	DatabaseCount int       // Documents from bulk loads
	LastCrawledAt time.Time // Most recent crawl ingestion, zero if none
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of results to return.
// Default is 8 if not specified.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter adds a metadata filter to restrict search results.
// Multiple calls to WithFilter add additional filters (AND logic).
// Example: WithFilter(store.KeySource, store.SourceRealtimeCrawl)
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout bounds the search query duration. Default is 10 seconds.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		c.timeout = d
	}
}

// ResolveOptions reports the effective top-K and metadata filter for a
// set of options. Implementations of search interfaces outside this
// package use it to honor the options they receive.
func ResolveOptions(opts []SearchOption) (topK int, filter map[string]string) {
	cfg := buildSearchConfig(opts)
	return cfg.topK, cfg.filter
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    8,
		filter:  nil,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
