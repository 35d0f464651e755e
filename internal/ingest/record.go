package ingest

import (
	"fmt"
	"strings"
)

// Record is one recall or regulation document prior to chunking.
type Record struct {
	DocumentType  string   `json:"document_type"`
	Category      string   `json:"category"`
	Class         string   `json:"class"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	EffectiveDate string   `json:"effective_date"` // ISO date
	LastUpdated   string   `json:"last_updated"`   // ISO date
	Chunks        []string `json:"chunks"`
}

// minChunkLength drops fragments too short to carry evidence.
const minChunkLength = 30

// StructuredContent prefixes a chunk body with the record's identifying
// fields so every stored chunk is self-describing. Crawled and bulk-loaded
// chunks share this format, keeping retrieval results homogeneous.
func StructuredContent(r Record, body string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", r.Title)
	if r.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", r.Category)
	}
	if r.Class != "" {
		fmt.Fprintf(&sb, "Class: %s\n", r.Class)
	}
	if r.EffectiveDate != "" {
		fmt.Fprintf(&sb, "Effective Date: %s\n", r.EffectiveDate)
	}
	if r.LastUpdated != "" {
		fmt.Fprintf(&sb, "Last Updated: %s\n", r.LastUpdated)
	}
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(body))
	return sb.String()
}
