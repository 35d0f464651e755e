package pipeline

// SearchMethod identifies which evidence path produced an answer. Every
// answer carries exactly one method; the router transitions are exhaustive
// over these values so an answer can never claim two paths at once.
type SearchMethod string

const (
	// SearchMethodLocal means stored documents alone supplied the evidence.
	SearchMethodLocal SearchMethod = "local"

	// SearchMethodHybrid means stored documents supplied the evidence and a
	// realtime crawl ran during this question.
	SearchMethodHybrid SearchMethod = "hybrid"

	// SearchMethodNews means the news fallback supplied the evidence.
	SearchMethodNews SearchMethod = "news"

	// SearchMethodGeneric means the question was outside the regulatory
	// domain and answered without retrieval.
	SearchMethodGeneric SearchMethod = "generic"

	// SearchMethodNone means no usable evidence existed; the fixed
	// cannot-confirm answer was returned without an LLM call.
	SearchMethodNone SearchMethod = "none"

	// SearchMethodError means the pipeline failed and the answer is a
	// plain-language error message.
	SearchMethodError SearchMethod = "error"
)

// Valid reports whether m is one of the defined methods.
func (m SearchMethod) Valid() bool {
	switch m {
	case SearchMethodLocal, SearchMethodHybrid, SearchMethodNews,
		SearchMethodGeneric, SearchMethodNone, SearchMethodError:
		return true
	}
	return false
}

func (m SearchMethod) String() string { return string(m) }
