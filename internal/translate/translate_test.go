package translate

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/foodwatch-kr/regintel/internal/log"
)

// fakeGen returns a canned response or error.
type fakeGen struct {
	response string
	err      error
}

func (f *fakeGen) Generate(context.Context, string) (string, error) {
	return f.response, f.err
}

func TestToEnglish(t *testing.T) {
	tests := []struct {
		name     string
		gen      *fakeGen
		question string
		want     string
	}{
		{
			name:     "successful translation",
			gen:      &fakeGen{response: "Has Fresh Express salad been recalled recently?"},
			question: "최근 Fresh Express 샐러드 리콜 있었나요?",
			want:     "Has Fresh Express salad been recalled recently?",
		},
		{
			name:     "model failure falls back to original",
			gen:      &fakeGen{err: errors.New("quota exceeded")},
			question: "최근 리콜 알려줘",
			want:     "최근 리콜 알려줘",
		},
		{
			name:     "empty response falls back to original",
			gen:      &fakeGen{response: "   "},
			question: "리콜 질문",
			want:     "리콜 질문",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(tt.gen, log.NewNop())
			if got := tr.ToEnglish(context.Background(), tt.question); got != tt.want {
				t.Errorf("ToEnglish() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name     string
		gen      *fakeGen
		question string
		want     []string
	}{
		{
			name:     "parses comma separated keywords",
			gen:      &fakeGen{response: "Fresh Express, listeria, salad"},
			question: "any fresh express listeria salad recalls?",
			want:     []string{"Fresh Express", "listeria", "salad", "recall"},
		},
		{
			name:     "truncates to three keywords",
			gen:      &fakeGen{response: "one, two, three, four, five"},
			question: "q",
			want:     []string{"one", "two", "three", "recall"},
		},
		{
			name:     "keeps existing recall term without duplicate",
			gen:      &fakeGen{response: "cheese, recall"},
			question: "cheese recall?",
			want:     []string{"cheese", "recall"},
		},
		{
			name:     "model failure uses fallback",
			gen:      &fakeGen{err: errors.New("503 unavailable")},
			question: "Has peanut butter been recalled for salmonella?",
			want:     []string{"peanut", "butter", "salmonella", "recall"},
		},
		{
			name:     "empty model answer uses fallback",
			gen:      &fakeGen{response: " , , "},
			question: "Was romaine lettuce contaminated?",
			want:     []string{"romaine", "lettuce", "contaminated", "recall"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New(tt.gen, log.NewNop())
			got := tr.ExtractKeywords(context.Background(), tt.question)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractKeywords() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFallbackKeywords(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{
			name:     "drops stop words and short words",
			question: "What is the latest recall of peanut butter?",
			want:     []string{"peanut", "butter", "recall"},
		},
		{
			name:     "only stop words yields just recall",
			question: "what is the latest?",
			want:     []string{"recall"},
		},
		{
			name:     "strips punctuation",
			question: "Listeria, in cheese!",
			want:     []string{"listeria", "cheese", "recall"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FallbackKeywords(tt.question)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FallbackKeywords(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

func TestIsDomainRelated(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"최근 식품 리콜 알려줘", true},
		{"Has any cheese been recalled?", true},
		{"FDA warning letters this month", true},
		{"살모넬라 오염 사례 있어?", true},
		{"내일 날씨 어때?", false},
		{"Tell me a joke", false},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := IsDomainRelated(tt.question); got != tt.want {
				t.Errorf("IsDomainRelated(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}

func TestHasRecencyTerm(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"최근 리콜 알려줘", true},
		{"What are the latest recalls?", true},
		{"오늘 발표된 회수 있어?", true},
		{"2019년 리콜 내역", false},
		{"Was romaine lettuce ever recalled?", false},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			if got := HasRecencyTerm(tt.question); got != tt.want {
				t.Errorf("HasRecencyTerm(%q) = %v, want %v", tt.question, got, tt.want)
			}
		})
	}
}
