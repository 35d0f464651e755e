package ingest

import (
	"strings"
	"testing"
)

func TestChunkShortText(t *testing.T) {
	cfg := DefaultChunkConfig()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "   \n\n  ", 0},
		{"below max stays whole", strings.Repeat("a", 1000), 1},
		{"exactly max stays whole", strings.Repeat("a", 1200), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.text, cfg)
			if len(got) != tt.want {
				t.Errorf("Chunk() produced %d chunks, want %d", len(got), tt.want)
			}
		})
	}
}

func TestChunkLongText(t *testing.T) {
	cfg := DefaultChunkConfig()

	// Build paragraphs so splits land on paragraph boundaries.
	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("The company has initiated a voluntary recall of the affected product after routine testing. ")
		sb.WriteString("Consumers who purchased the product should not consume it and may return it for a full refund.")
		sb.WriteString("\n\n")
	}
	text := sb.String()

	chunks := Chunk(text, cfg)
	if len(chunks) < 2 {
		t.Fatalf("Chunk() produced %d chunks for %d chars, want several", len(chunks), len(text))
	}

	for i, chunk := range chunks {
		n := len([]rune(chunk))
		if n > cfg.MaxSize {
			t.Errorf("chunk %d has %d runes, exceeds max %d", i, n, cfg.MaxSize)
		}
		if i < len(chunks)-1 && n < cfg.MinSize {
			t.Errorf("chunk %d has %d runes, below min %d", i, n, cfg.MinSize)
		}
	}
}

func TestChunkOverlap(t *testing.T) {
	cfg := DefaultChunkConfig()

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("Sentence number content for overlap verification purposes in this announcement. ")
	}

	chunks := Chunk(sb.String(), cfg)
	if len(chunks) < 2 {
		t.Fatalf("need at least 2 chunks, got %d", len(chunks))
	}

	// The tail of each chunk should reappear at the head of the next.
	for i := 0; i < len(chunks)-1; i++ {
		tail := chunks[i][len(chunks[i])-40:]
		if !strings.Contains(chunks[i+1], strings.TrimSpace(tail)[:20]) {
			t.Errorf("chunk %d tail not found in chunk %d head", i, i+1)
		}
	}
}

func TestChunkProtectsLotNumbers(t *testing.T) {
	cfg := ChunkConfig{Size: 100, Overlap: 20, MinSize: 30, MaxSize: 160}

	filler := strings.Repeat("Recall details follow below. ", 3)
	text := filler + "Affected products carry Lot #AB12345 on the label. " + filler + filler

	chunks := Chunk(text, cfg)

	// The lot identifier must appear intact in at least one chunk.
	found := false
	for _, chunk := range chunks {
		if strings.Contains(chunk, "Lot #AB12345") {
			found = true
		}
	}
	if !found {
		t.Errorf("lot number split across chunks: %q", chunks)
	}
}

func TestStructuredContent(t *testing.T) {
	rec := Record{
		Title:         "Fresh Express Salad Recall",
		Category:      "Food & Beverages",
		Class:         "Class I",
		EffectiveDate: "2026-08-10",
		LastUpdated:   "2026-08-12",
	}

	got := StructuredContent(rec, "  Body text here.  ")

	for _, want := range []string{
		"Title: Fresh Express Salad Recall",
		"Category: Food & Beverages",
		"Class: Class I",
		"Effective Date: 2026-08-10",
		"Last Updated: 2026-08-12",
		"Body text here.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("StructuredContent() missing %q in:\n%s", want, got)
		}
	}

	// Optional fields are omitted entirely, not rendered empty.
	sparse := StructuredContent(Record{Title: "X"}, "body")
	if strings.Contains(sparse, "Category:") || strings.Contains(sparse, "Class:") {
		t.Errorf("StructuredContent() rendered empty optional fields:\n%s", sparse)
	}
}
