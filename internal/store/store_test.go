//go:build integration
// +build integration

package store_test

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/foodwatch-kr/regintel/internal/log"
	"github.com/foodwatch-kr/regintel/internal/store"
	"github.com/foodwatch-kr/regintel/internal/testutil"
)

// setupStore creates a store backed by a pgvector container and a
// deterministic mock embedder.
func setupStore(t *testing.T) (*store.Store, func()) {
	t.Helper()

	db, cleanup := testutil.SetupTestDB(t)

	g := genkit.Init(context.Background())
	mockEmb := testutil.NewMockEmbedder(store.VectorDimension)
	embedder := mockEmb.RegisterEmbedder(g)

	return store.New(db.Pool, embedder, log.NewNop()), cleanup
}

func TestStoreAddSearch_Integration(t *testing.T) {
	s, cleanup := setupStore(t)
	defer cleanup()

	ctx := context.Background()

	docs := []store.Document{
		{
			ID:      "doc-1",
			Content: "Fresh Express recalls bagged salad due to Listeria monocytogenes contamination",
			Metadata: map[string]string{
				store.KeySource:        store.SourceRealtimeCrawl,
				store.KeyURL:           "https://www.fda.gov/recall/fresh-express",
				store.KeyTitle:         "Fresh Express Salad Recall",
				store.KeyEffectiveDate: "2026-08-10",
			},
		},
		{
			ID:      "doc-2",
			Content: "Peanut butter recall expanded over Salmonella concerns in multiple states",
			Metadata: map[string]string{
				store.KeySource:        store.SourceDatabase,
				store.KeyURL:           "https://www.fda.gov/recall/peanut-butter",
				store.KeyTitle:         "Peanut Butter Recall",
				store.KeyEffectiveDate: "2025-11-02",
			},
		},
	}

	for _, doc := range docs {
		if err := s.Add(ctx, doc); err != nil {
			t.Fatalf("Add(%s) error: %v", doc.ID, err)
		}
	}

	t.Run("search returns stored documents", func(t *testing.T) {
		// The mock embedder is deterministic, so searching with the exact
		// content must rank that document first with similarity ~1.
		results, err := s.Search(ctx, docs[0].Content, store.WithTopK(2))
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("Search() returned %d results, want 2", len(results))
		}
		if results[0].Document.ID != "doc-1" {
			t.Errorf("top result = %s, want doc-1", results[0].Document.ID)
		}
		if results[0].Similarity < 0.99 {
			t.Errorf("exact-content similarity = %f, want ~1", results[0].Similarity)
		}
		if results[0].Document.Metadata[store.KeyTitle] != "Fresh Express Salad Recall" {
			t.Errorf("metadata title = %q", results[0].Document.Metadata[store.KeyTitle])
		}
	})

	t.Run("filter restricts by source", func(t *testing.T) {
		results, err := s.Search(ctx, docs[0].Content,
			store.WithTopK(5),
			store.WithFilter(store.KeySource, store.SourceDatabase))
		if err != nil {
			t.Fatalf("Search() error: %v", err)
		}
		for _, r := range results {
			if r.Document.Metadata[store.KeySource] != store.SourceDatabase {
				t.Errorf("result %s has source %q, want database",
					r.Document.ID, r.Document.Metadata[store.KeySource])
			}
		}
	})

	t.Run("has url", func(t *testing.T) {
		exists, err := s.HasURL(ctx, "https://www.fda.gov/recall/fresh-express")
		if err != nil {
			t.Fatalf("HasURL() error: %v", err)
		}
		if !exists {
			t.Error("HasURL() = false for stored URL")
		}

		exists, err = s.HasURL(ctx, "https://www.fda.gov/recall/unknown")
		if err != nil {
			t.Fatalf("HasURL() error: %v", err)
		}
		if exists {
			t.Error("HasURL() = true for unknown URL")
		}
	})

	t.Run("count by filter", func(t *testing.T) {
		total, err := s.Count(ctx, nil)
		if err != nil {
			t.Fatalf("Count() error: %v", err)
		}
		if total != 2 {
			t.Errorf("Count(nil) = %d, want 2", total)
		}

		crawled, err := s.Count(ctx, map[string]string{store.KeySource: store.SourceRealtimeCrawl})
		if err != nil {
			t.Fatalf("Count(filter) error: %v", err)
		}
		if crawled != 1 {
			t.Errorf("Count(realtime_crawl) = %d, want 1", crawled)
		}
	})

	t.Run("status", func(t *testing.T) {
		st, err := s.Status(ctx)
		if err != nil {
			t.Fatalf("Status() error: %v", err)
		}
		if st.Total != 2 || st.RealtimeCount != 1 || st.DatabaseCount != 1 {
			t.Errorf("Status() = %+v, want total=2 realtime=1 database=1", st)
		}
		if st.LastCrawledAt.IsZero() {
			t.Error("Status().LastCrawledAt is zero with a crawled document present")
		}
	})

	t.Run("all exports every document", func(t *testing.T) {
		all, err := s.All(ctx)
		if err != nil {
			t.Fatalf("All() error: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("All() returned %d documents, want 2", len(all))
		}
		seen := make(map[string]bool)
		for _, doc := range all {
			seen[doc.ID] = true
			if doc.Content == "" {
				t.Errorf("document %s exported without content", doc.ID)
			}
			if doc.Metadata[store.KeyURL] == "" {
				t.Errorf("document %s exported without url metadata", doc.ID)
			}
		}
		if !seen["doc-1"] || !seen["doc-2"] {
			t.Errorf("All() ids = %v, want doc-1 and doc-2", seen)
		}
	})

	t.Run("upsert replaces content", func(t *testing.T) {
		updated := docs[0]
		updated.Content = "Fresh Express recall update: additional lot codes added"
		if err := s.Add(ctx, updated); err != nil {
			t.Fatalf("Add(update) error: %v", err)
		}

		total, err := s.Count(ctx, nil)
		if err != nil {
			t.Fatalf("Count() error: %v", err)
		}
		if total != 2 {
			t.Errorf("Count after upsert = %d, want 2", total)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, "doc-2"); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		total, err := s.Count(ctx, nil)
		if err != nil {
			t.Fatalf("Count() error: %v", err)
		}
		if total != 1 {
			t.Errorf("Count after delete = %d, want 1", total)
		}
	})
}
