package pipeline

import (
	"fmt"
	"strings"

	"github.com/foodwatch-kr/regintel/internal/history"
	"github.com/foodwatch-kr/regintel/internal/store"
)

// crawlMarker is embedded in the provenance suffix when a realtime crawl
// ran during the turn. Later turns detect it in prior assistant messages
// to avoid crawling again in the same session.
const crawlMarker = "[실시간 데이터 수집 완료]"

// noEvidenceAnswer is the fixed response when neither local documents nor
// news results exist. No LLM call is made on this path.
const noEvidenceAnswer = "현재 데이터 기준 해당 사례 확인 불가 — " +
	"보유한 FDA 리콜/규제 데이터와 뉴스 검색 모두에서 질문과 관련된 기록을 찾지 못했습니다. " +
	"제품명이나 브랜드명을 바꿔 다시 질문해 보세요."

// errorAnswer is returned when the pipeline itself fails. Callers never
// see an error value, only this message in the answer field.
const errorAnswer = "답변 생성 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."

const localEvidenceSystem = `You are a food-safety regulatory analyst answering questions about FDA recalls and regulations.
Answer in the same language as the question.
You are given official FDA recall/regulation records as evidence. Use ONLY the evidence; never invent cases.
When the evidence contains one or more matching cases, present them first as a markdown table with columns: Date | Product/Brand | Reason | Source. Use the record's URL as the source link.
Below the table, write a 3-5 sentence synthesis of what the cases mean for the question.
If no record in the evidence actually matches the question, say so plainly instead of stretching.`

const newsEvidenceSystem = `You are a food-safety regulatory analyst answering questions about FDA recalls and regulations.
Answer in the same language as the question.
You are given recent NEWS ARTICLES as evidence, not official regulatory records. Use ONLY the evidence; never invent cases.
When the articles describe one or more relevant cases, present them first as a markdown table with columns: Date | Product/Brand | Reason | Source. Use the article URL as the source link.
Below the table, write a 3-5 sentence synthesis.
End with an explicit disclaimer that this information comes from news reports, not from official FDA records, and should be verified against official sources.`

const regulationEvidenceSystem = `You are a food-safety regulatory analyst answering questions about FDA regulations and guidance documents.
Answer in the same language as the question.
You are given excerpts from official regulation and guidance documents (CFR, 21 USC, FDA guidance) as evidence. Use ONLY the evidence; never invent provisions.
Cite the specific section or document each statement comes from, using the record's URL as the source link.
Close with a 2-3 sentence summary of what the cited provisions require in practice.
If no excerpt in the evidence actually addresses the question, say so plainly instead of stretching.`

const genericSystem = `You are a helpful assistant for a food-safety regulatory intelligence service.
Answer in the same language as the question.
The question is outside the FDA recall/regulation domain, so answer briefly from general knowledge and mention that this service specializes in FDA food recall and regulation questions.`

// evidencePrompt assembles the user prompt for the local and news paths.
func evidencePrompt(question, context, conversation string) string {
	var b strings.Builder
	if conversation != "" {
		b.WriteString("Previous conversation:\n")
		b.WriteString(conversation)
		b.WriteString("\n\n")
	}
	b.WriteString("Evidence:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// evidenceFreePrompt is the user prompt for the generic path.
func evidenceFreePrompt(question, conversation string) string {
	if conversation == "" {
		return question
	}
	return "Previous conversation:\n" + conversation + "\n\nQuestion: " + question
}

// relevancePrompt asks for a strict binary judgment. Sharing a product
// category is not enough; the record must concern the same product or
// brand the keywords name.
func relevancePrompt(keywords []string, doc store.Document) string {
	title := doc.Metadata[store.KeyTitle]
	excerpt := contentPrefix(doc.Content)
	return fmt.Sprintf(`Question keywords: %s

Document title: %s
Document excerpt: %s

Is this document about the SAME product or brand the keywords refer to?
Being about the same product category (e.g. both about cheese, both about supplements) is NOT enough.
Answer with exactly one word: yes or no.`,
		strings.Join(keywords, ", "), title, excerpt)
}

// conversationContext renders recent history for the prompt. Provenance
// suffixes are stripped so old source counts do not leak into new answers.
func conversationContext(messages []history.Message) string {
	if len(messages) == 0 {
		return ""
	}
	var b strings.Builder
	for _, m := range messages {
		content := m.Content
		if idx := strings.Index(content, provenanceRule); idx >= 0 {
			content = strings.TrimSpace(content[:idx])
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, content)
	}
	return strings.TrimSpace(b.String())
}

// provenanceRule separates the answer body from the machine-appended
// provenance block.
const provenanceRule = "\n\n---\n"

// provenanceSuffix is appended to every answer by code, never generated
// by the model, so the source accounting stays accurate regardless of
// what the model produced.
func provenanceSuffix(method SearchMethod, docs []store.Document, articleCount int, crawled bool) string {
	var b strings.Builder
	b.WriteString(provenanceRule)
	fmt.Fprintf(&b, "검색 방법: %s", method)
	if len(docs) > 0 {
		realtime, database := countBySource(docs)
		fmt.Fprintf(&b, " | 근거 문서 %d건 (실시간 %d, DB %d)", len(docs), realtime, database)
		titles := evidenceTitles(docs, 3)
		if len(titles) > 0 {
			fmt.Fprintf(&b, "\n근거: %s", strings.Join(titles, "; "))
		}
	}
	if articleCount > 0 {
		fmt.Fprintf(&b, " | 뉴스 기사 %d건", articleCount)
	}
	if crawled {
		b.WriteString("\n")
		b.WriteString(crawlMarker)
	}
	return b.String()
}

func evidenceTitles(docs []store.Document, max int) []string {
	seen := make(map[string]struct{})
	var titles []string
	for _, doc := range docs {
		title := doc.Metadata[store.KeyTitle]
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
		if len(titles) == max {
			break
		}
	}
	return titles
}

// sessionCrawled reports whether a prior assistant message in this
// session already carries the crawl marker.
func sessionCrawled(messages []history.Message) bool {
	for _, m := range messages {
		if m.Role == history.RoleAssistant && strings.Contains(m.Content, crawlMarker) {
			return true
		}
	}
	return false
}
