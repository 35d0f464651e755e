// Package translate prepares user questions for retrieval: translation to
// English with proper nouns preserved, search keyword extraction, and fast
// lexical gates for domain relevance and recency.
//
// LLM-backed steps degrade instead of failing: a translation error falls
// back to the original question, a keyword-extraction error falls back to
// deterministic stop-word filtering. The pipeline never stops here.
package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/foodwatch-kr/regintel/internal/log"
)

// Generator is the LLM capability this package needs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Translator converts questions into retrieval-ready English queries.
type Translator struct {
	gen    Generator
	logger log.Logger
}

// New creates a Translator.
func New(gen Generator, logger log.Logger) *Translator {
	return &Translator{gen: gen, logger: logger}
}

const translatePrompt = `Translate the following question into English for searching the FDA recall database.
Keep company names, product names, and brand names exactly as written (do not translate proper nouns).
Return only the translated question, nothing else.

Question: %s`

// ToEnglish translates a question into English, preserving proper nouns.
// On any model failure the original question is returned, so retrieval
// continues with degraded quality rather than stopping.
func (t *Translator) ToEnglish(ctx context.Context, question string) string {
	translated, err := t.gen.Generate(ctx, fmt.Sprintf(translatePrompt, question))
	if err != nil {
		t.logger.Warn("translation failed, using original question", "error", err)
		return question
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return question
	}
	return translated
}

const keywordPrompt = `Extract at most 3 search keywords from this question about food safety recalls.
Focus on product names, company names, contaminants, and food categories.
Return only the keywords separated by commas, nothing else.

Question: %s`

// ExtractKeywords returns up to three search keywords plus a trailing
// "recall" term. On model failure it falls back to stop-word filtering of
// the question itself, so the result is always usable.
func (t *Translator) ExtractKeywords(ctx context.Context, question string) []string {
	text, err := t.gen.Generate(ctx, fmt.Sprintf(keywordPrompt, question))
	if err != nil {
		t.logger.Warn("keyword extraction failed, using fallback", "error", err)
		return FallbackKeywords(question)
	}

	keywords := parseKeywords(text)
	if len(keywords) == 0 {
		return FallbackKeywords(question)
	}
	return appendRecall(keywords)
}

// parseKeywords splits a comma-separated model answer into clean keywords.
func parseKeywords(text string) []string {
	var keywords []string
	for _, part := range strings.Split(text, ",") {
		kw := strings.TrimSpace(strings.Trim(strings.TrimSpace(part), `"'`))
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
		if len(keywords) == 3 {
			break
		}
	}
	return keywords
}

// stopWords are dropped by the deterministic keyword fallback.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"in": {}, "on": {}, "at": {}, "of": {}, "for": {}, "to": {}, "with": {},
	"about": {}, "any": {}, "there": {}, "what": {}, "which": {}, "who": {},
	"when": {}, "where": {}, "why": {}, "how": {}, "recent": {}, "latest": {},
	"has": {}, "have": {}, "been": {}, "recalls": {}, "recalled": {}, "recall": {},
}

// FallbackKeywords derives keywords without a model: lowercase, strip
// punctuation, drop stop words, keep the first three remaining terms,
// then append "recall".
func FallbackKeywords(question string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '?', '!', '.', ',', ';', ':', '"', '\'', '(', ')':
			return ' '
		}
		return r
	}, strings.ToLower(question))

	var keywords []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) < 3 {
			continue
		}
		if _, skip := stopWords[word]; skip {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == 3 {
			break
		}
	}
	return appendRecall(keywords)
}

// appendRecall adds the "recall" anchor term unless already present.
func appendRecall(keywords []string) []string {
	for _, kw := range keywords {
		if strings.EqualFold(kw, "recall") {
			return keywords
		}
	}
	return append(keywords, "recall")
}
