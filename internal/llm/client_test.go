package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/foodwatch-kr/regintel/internal/log"
	"github.com/foodwatch-kr/regintel/internal/testutil"
)

func TestParseAffirmative(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"english yes", "yes", true},
		{"yes with trailing text", "Yes, this is related.", true},
		{"korean yes", "예", true},
		{"korean related", "관련 있음", true},
		{"korean necessary", "필요합니다", true},
		{"english no", "no", false},
		{"korean no", "아니오", false},
		{"korean unrelated", "무관", false},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"hedged answer", "It depends on the context.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseAffirmative(tt.text); got != tt.want {
				t.Errorf("parseAffirmative(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("429 rate limit exceeded"), true},
		{"quota", errors.New("Quota Exceeded for project"), true},
		{"server error", errors.New("503 service unavailable"), true},
		{"network", errors.New("read tcp: connection reset by peer"), true},
		{"timeout", errors.New("context deadline exceeded: timeout"), true},
		{"bad request", errors.New("400 invalid argument"), false},
		{"auth", errors.New("401 unauthorized"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryableError(tt.err); got != tt.want {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClientGenerate(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockLLM("fallback answer")
	mock.AddResponse("recall", "Listeria recall summary")
	mock.RegisterModel(g)

	client := New(g, "mock/test-model", log.NewNop(), WithRateLimiter(nil))

	got, err := client.Generate(ctx, "summarize the latest recall")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "Listeria recall summary" {
		t.Errorf("Generate() = %q, want pattern-matched response", got)
	}

	got, err = client.Generate(ctx, "unmatched prompt")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "fallback answer" {
		t.Errorf("Generate() = %q, want fallback", got)
	}
}

func TestClientClassify(t *testing.T) {
	ctx := context.Background()
	g := genkit.Init(ctx)

	mock := testutil.NewMockLLM("no")
	mock.AddResponse("salmonella", "예")
	mock.RegisterModel(g)

	client := New(g, "mock/test-model", log.NewNop(), WithRateLimiter(nil))

	tests := []struct {
		name   string
		prompt string
		want   bool
	}{
		{"affirmative match", "is salmonella in scope?", true},
		{"fallback negative", "is the weather in scope?", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.Classify(ctx, tt.prompt)
			if err != nil {
				t.Fatalf("Classify() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.prompt, got, tt.want)
			}
		})
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	rc := DefaultRetryConfig()
	if rc.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", rc.MaxRetries)
	}
	if rc.InitialInterval != 500*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 500ms", rc.InitialInterval)
	}
	if rc.MaxInterval != 10*time.Second {
		t.Errorf("MaxInterval = %v, want 10s", rc.MaxInterval)
	}
}
