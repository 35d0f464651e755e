// Package ingest turns recall records into evidence chunks and loads them
// into the document store. The chunker keeps announcement text readable:
// splits prefer paragraph and sentence boundaries, and spans that must not
// be cut in half (lot numbers, phone numbers, dates) are protected.
package ingest

import (
	"regexp"
	"strings"
)

// ChunkConfig bounds chunk sizes in runes.
type ChunkConfig struct {
	Size    int // target chunk size
	Overlap int // overlap carried into the next chunk
	MinSize int // chunks below this are merged into the previous one
	MaxSize int // hard upper bound when no good split point exists
}

// DefaultChunkConfig returns the chunking bounds used for recall announcements.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    800,
		Overlap: 120,
		MinSize: 150,
		MaxSize: 1200,
	}
}

// separators ordered by preference. A paragraph break beats a sentence end,
// which beats any whitespace.
var separators = []string{"\n\n", "\n", ". ", "? ", "! ", " "}

// protectedPatterns match spans a split must not land inside.
var protectedPatterns = []*regexp.Regexp{
	// lot and batch identifiers: "Lot #ABC123", "LOT CODE 4521", "Batch No. 77"
	regexp.MustCompile(`(?i)(?:lot|batch)\s*(?:code|no\.?|number|#)?\s*[:#]?\s*[A-Z0-9-]+`),
	// US phone numbers: 1-800-555-0199, (555) 123-4567
	regexp.MustCompile(`(?:\d[-.]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`),
	// long-form dates: "January 2, 2026"
	regexp.MustCompile(`(?i)(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},\s+\d{4}`),
	// UPC codes
	regexp.MustCompile(`(?i)upc\s*[:#]?\s*[\d\s-]{8,}`),
}

// Chunk splits text into overlapping chunks at natural boundaries.
// Runs of whitespace are preserved as written; only split positions move.
func Chunk(text string, cfg ChunkConfig) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= cfg.MaxSize {
		return []string{string(runes)}
	}

	protected := protectedSpans(string(runes))

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + cfg.Size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = findSplit(runes, start, end, cfg, protected)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(chunk)) < cfg.MinSize && len(chunks) > 0 {
			// Too small to stand alone, fold into the previous chunk.
			chunks[len(chunks)-1] = chunks[len(chunks)-1] + "\n" + chunk
		} else if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}
		next := end - cfg.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// span is a half-open protected interval in rune offsets.
type span struct{ start, end int }

// protectedSpans locates all protected intervals, converted to rune offsets.
func protectedSpans(text string) []span {
	byteToRune := make(map[int]int, len(text))
	runeIdx := 0
	for byteIdx := range text {
		byteToRune[byteIdx] = runeIdx
		runeIdx++
	}
	byteToRune[len(text)] = runeIdx

	var spans []span
	for _, re := range protectedPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			s, okS := byteToRune[loc[0]]
			e, okE := byteToRune[loc[1]]
			if okS && okE {
				spans = append(spans, span{s, e})
			}
		}
	}
	return spans
}

// findSplit picks the best split position in (start, start+MaxSize], preferring
// earlier separators in the priority list, scanning backward from the target.
// Positions inside a protected span are moved to the span start.
func findSplit(runes []rune, start, target int, cfg ChunkConfig, protected []span) int {
	limit := start + cfg.MaxSize
	if limit > len(runes) {
		limit = len(runes)
	}

	text := string(runes[start:limit])
	for _, sep := range separators {
		// Search backward from the target offset within this window.
		window := target - start
		if window > len([]rune(text)) {
			window = len([]rune(text))
		}
		idx := strings.LastIndex(string([]rune(text)[:window]), sep)
		if idx < 0 {
			continue
		}
		pos := start + len([]rune(text[:idx+len(sep)]))
		pos = avoidProtected(pos, protected)
		if pos > start+cfg.MinSize {
			return pos
		}
	}

	// No separator found, cut at the hard limit but still respect
	// protected spans.
	pos := avoidProtected(target, protected)
	if pos <= start {
		return target
	}
	return pos
}

// avoidProtected moves pos to the start of any protected span containing it.
func avoidProtected(pos int, protected []span) int {
	for _, sp := range protected {
		if pos > sp.start && pos < sp.end {
			return sp.start
		}
	}
	return pos
}
