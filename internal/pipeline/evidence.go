package pipeline

import (
	"sort"
	"strings"
	"time"

	"github.com/foodwatch-kr/regintel/internal/store"
)

const (
	// dedupPrefixLen is how many leading characters identify a chunk for
	// in-batch dedup. Chunks of the same announcement share the structured
	// header, so an identical prefix means an identical record section.
	dedupPrefixLen = 100

	// maxEvidence caps how many documents feed the synthesis prompt.
	maxEvidence = 6

	// realtimeBonus sorts freshly crawled documents ahead of stored ones
	// regardless of their dates. Source trust, not recency.
	realtimeBonus = 1000

	contextSeparator = "\n\n"
)

// mergeResults concatenates retrieval passes and drops duplicates by
// content prefix, first occurrence winning.
func mergeResults(passes ...[]store.Result) []store.Document {
	seen := make(map[string]struct{})
	var merged []store.Document
	for _, pass := range passes {
		for _, r := range pass {
			key := contentPrefix(r.Document.Content)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r.Document)
		}
	}
	return merged
}

func contentPrefix(content string) string {
	runes := []rune(content)
	if len(runes) > dedupPrefixLen {
		runes = runes[:dedupPrefixLen]
	}
	return string(runes)
}

// rankEvidence orders documents by source trust then effective date and
// returns at most maxEvidence of them. The sort is stable so documents
// with equal scores keep their retrieval order.
func rankEvidence(docs []store.Document) []store.Document {
	ranked := make([]store.Document, len(docs))
	copy(ranked, docs)
	sort.SliceStable(ranked, func(i, j int) bool {
		return evidenceScore(ranked[i]) > evidenceScore(ranked[j])
	})
	if len(ranked) > maxEvidence {
		ranked = ranked[:maxEvidence]
	}
	return ranked
}

func evidenceScore(doc store.Document) int {
	score := 0
	if doc.Metadata[store.KeySource] == store.SourceRealtimeCrawl {
		score += realtimeBonus
	}
	if t, err := time.Parse("2006-01-02", doc.Metadata[store.KeyEffectiveDate]); err == nil {
		score += t.Year()*100 + int(t.Month())
	}
	return score
}

// buildContext joins document contents into one prompt context string.
func buildContext(docs []store.Document) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, contextSeparator)
}

// countBySource tallies how many documents came from each ingestion path.
func countBySource(docs []store.Document) (realtime, database int) {
	for _, doc := range docs {
		switch doc.Metadata[store.KeySource] {
		case store.SourceRealtimeCrawl:
			realtime++
		case store.SourceDatabase:
			database++
		}
	}
	return realtime, database
}
