package translate

import "strings"

// Document types stored on regulation/guidance chunks.
const (
	DocTypeGuidance   = "guidance"
	DocTypeRegulation = "regulation"
)

// RegulationQuery is the retrieval plan for a regulation-mode question:
// which document type to search and which categories, in priority order.
type RegulationQuery struct {
	DocumentType string
	Categories   []string
}

// docTypeTerms decide guidance vs regulation. Guidance wins ties since
// guidance documents answer most practitioner questions.
var (
	regulationDocTerms = []string{
		"법률", "규제", "규정", "법령", "조항",
		"21usc", "cfr", "regulation", "code of federal",
	}
	guidanceDocTerms = []string{
		"가이드", "지침", "guidance", "guideline", "cpg",
	}
)

// categoryTerms score a question against one category. Korean terms are
// matched in the original question, English terms in the translated form;
// Korean hits weigh more because they came straight from the user.
type categoryTerms struct {
	name    string
	korean  []string
	english []string
}

var guidanceCategories = []categoryTerms{
	{
		name:    "allergen",
		korean:  []string{"알러지", "알레르기", "알러겐", "과민반응"},
		english: []string{"allergen", "allergy", "allergenic", "hypersensitivity", "allergic reaction"},
	},
	{
		name:    "additives",
		korean:  []string{"첨가물", "식품첨가물", "방부제", "감미료", "향료", "착색료"},
		english: []string{"additive", "preservatives", "sweetener", "flavoring", "coloring", "food additive"},
	},
	{
		name:    "labeling",
		korean:  []string{"라벨링", "라벨", "표시", "영양성분", "원재료", "성분표시"},
		english: []string{"labeling", "label", "nutrition", "ingredient", "declaration", "nutritional facts"},
	},
	{
		name:    "main",
		korean:  []string{"가이드라인", "가이드", "일반", "식품관련"},
		english: []string{"guidance", "general", "cpg", "comprehensive"},
	},
}

var regulationCategories = []categoryTerms{
	{
		name:    "ecfr",
		korean:  []string{"연방규정집", "전자연방규정"},
		english: []string{"ecfr", "cfr", "code of federal regulations", "electronic code", "federal regulations"},
	},
	{
		name:    "usc",
		korean:  []string{"법률", "조항", "규정", "법령"},
		english: []string{"21 usc", "united states code", "federal law", "statute", "federal statute"},
	},
}

const (
	koreanTermWeight    = 2.0
	englishTermWeight   = 1.5
	categoryScoreMargin = 0.7 // keep categories within 70% of the top score
)

// ClassifyRegulation plans retrieval for a regulation-mode question. It is
// deliberately lexical: the split is coarse and a wrong pick degrades to a
// broader search, so an LLM call buys nothing here.
func ClassifyRegulation(question, questionEN string) RegulationQuery {
	q := strings.ToLower(question)
	qEN := strings.ToLower(questionEN)
	combined := q + " " + qEN

	regScore, guidScore := 0, 0
	for _, term := range regulationDocTerms {
		if strings.Contains(combined, term) {
			regScore++
		}
	}
	for _, term := range guidanceDocTerms {
		if strings.Contains(combined, term) {
			guidScore++
		}
	}

	docType := DocTypeGuidance
	categories := guidanceCategories
	if regScore > guidScore {
		docType = DocTypeRegulation
		categories = regulationCategories
	}

	scores := make([]float64, len(categories))
	max := 0.0
	for i, cat := range categories {
		for _, term := range cat.korean {
			if strings.Contains(q, term) {
				scores[i] += koreanTermWeight
			}
		}
		for _, term := range cat.english {
			if strings.Contains(qEN, term) {
				scores[i] += englishTermWeight
			}
		}
		if scores[i] > max {
			max = scores[i]
		}
	}

	var selected []string
	if max > 0 {
		threshold := max * categoryScoreMargin
		for i, cat := range categories {
			if scores[i] >= threshold {
				selected = append(selected, cat.name)
			}
		}
	}
	if len(selected) == 0 {
		if docType == DocTypeGuidance {
			selected = []string{"main"}
		} else {
			selected = []string{"usc", "ecfr"}
		}
	}

	return RegulationQuery{DocumentType: docType, Categories: selected}
}
