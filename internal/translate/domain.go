package translate

import "strings"

// domainTerms mark a question as in-scope for the recall assistant.
// Bilingual: users ask in Korean, evidence is in English.
var domainTerms = []string{
	// English
	"recall", "fda", "contamination", "listeria", "salmonella", "e. coli",
	"e.coli", "allergen", "undeclared", "outbreak", "food safety", "regulation",
	"labeling", "import alert", "warning letter",
	// Korean
	"리콜", "회수", "식품", "오염", "세균", "알레르", "알러지",
	"살모넬라", "리스테리아", "대장균", "규제", "규정", "표시", "라벨",
	"수입", "안전", "위생",
}

// recencyTerms trigger the on-demand crawl: the user is asking about
// something newer than the bulk dataset may cover.
var recencyTerms = []string{
	// English
	"recent", "latest", "today", "this week", "this month", "new", "current",
	"now", "update",
	// Korean
	"최근", "최신", "오늘", "이번주", "이번 주", "이번달", "이번 달",
	"요즘", "새로운", "지금", "업데이트",
}

// IsDomainRelated reports whether the question concerns food safety,
// recalls, or FDA regulation. Pure lexical check, no model call.
func IsDomainRelated(question string) bool {
	return containsAnyTerm(question, domainTerms)
}

// HasRecencyTerm reports whether the question asks about recent events.
func HasRecencyTerm(question string) bool {
	return containsAnyTerm(question, recencyTerms)
}

func containsAnyTerm(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
