package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/foodwatch-kr/regintel/internal/log"
	"github.com/foodwatch-kr/regintel/internal/store"
)

// DocumentAdder is the slice of the document store the loader needs.
type DocumentAdder interface {
	Add(ctx context.Context, doc store.Document) error
}

// Loader bulk-loads pre-chunked recall records into the document store
// with source "database".
type Loader struct {
	store  DocumentAdder
	logger log.Logger
}

// NewLoader creates a Loader.
func NewLoader(s DocumentAdder, logger log.Logger) *Loader {
	return &Loader{store: s, logger: logger}
}

// LoadStats reports the outcome of a bulk load.
type LoadStats struct {
	Records       int // records read from the file
	ChunksStored  int // chunks embedded and stored
	ChunksSkipped int // chunks below the minimum length
}

// LoadFile reads a JSON array of records and stores every usable chunk.
// Chunks shorter than 30 characters are skipped as noise.
func (l *Loader) LoadFile(ctx context.Context, path string) (LoadStats, error) {
	// #nosec G304 -- path comes from the operator's CLI invocation
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadStats{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return LoadStats{}, fmt.Errorf("parsing %s: %w", path, err)
	}

	return l.LoadRecords(ctx, records)
}

// LoadRecords stores every usable chunk of the given records.
// Each chunk becomes one document carrying the record's provenance metadata.
func (l *Loader) LoadRecords(ctx context.Context, records []Record) (LoadStats, error) {
	stats := LoadStats{Records: len(records)}

	for _, rec := range records {
		for _, chunk := range rec.Chunks {
			if len(chunk) < minChunkLength {
				stats.ChunksSkipped++
				continue
			}

			doc := store.Document{
				ID:      uuid.NewString(),
				Content: StructuredContent(rec, chunk),
				Metadata: map[string]string{
					store.KeySource:        store.SourceDatabase,
					store.KeyURL:           rec.URL,
					store.KeyTitle:         rec.Title,
					store.KeyCategory:      rec.Category,
					store.KeyClass:         rec.Class,
					store.KeyDocumentType:  rec.DocumentType,
					store.KeyEffectiveDate: rec.EffectiveDate,
					store.KeyLastUpdated:   rec.LastUpdated,
				},
			}
			if err := l.store.Add(ctx, doc); err != nil {
				return stats, fmt.Errorf("storing chunk of %q: %w", rec.Title, err)
			}
			stats.ChunksStored++
		}

		l.logger.Debug("loaded record", "title", rec.Title, "chunks", len(rec.Chunks))
	}

	l.logger.Info("bulk load complete",
		"records", stats.Records,
		"stored", stats.ChunksStored,
		"skipped", stats.ChunksSkipped)
	return stats, nil
}
