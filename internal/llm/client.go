// Package llm wraps Genkit model calls behind a small client with a single
// retry and rate-limit policy. Every LLM call in the application goes through
// this client, so transient-failure handling lives in exactly one place.
//
// Consumers define their own narrow interfaces (Generator, Classifier) and
// accept this client as the implementation.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/foodwatch-kr/regintel/internal/log"
)

// ErrEmptyResponse indicates the model returned no usable text.
var ErrEmptyResponse = errors.New("empty model response")

// Client executes prompts against a single configured model.
type Client struct {
	g           *genkit.Genkit
	modelName   string
	retryConfig RetryConfig
	rateLimiter *rate.Limiter
	logger      log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(rc RetryConfig) Option {
	return func(c *Client) { c.retryConfig = rc }
}

// WithRateLimiter overrides the default rate limiter.
// Pass nil to disable rate limiting (tests).
func WithRateLimiter(rl *rate.Limiter) Option {
	return func(c *Client) { c.rateLimiter = rl }
}

// New creates a Client bound to the given provider-qualified model name
// (e.g. "googleai/gemini-2.5-flash").
func New(g *genkit.Genkit, modelName string, logger log.Logger, opts ...Option) *Client {
	c := &Client{
		g:           g,
		modelName:   modelName,
		retryConfig: DefaultRetryConfig(),
		// 10 req/s sustained, bursts of 30. Generous for interactive use,
		// still protects against tight retry loops.
		rateLimiter: rate.NewLimiter(10, 30),
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate executes a plain prompt and returns the response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx,
		ai.WithModelName(c.modelName),
		ai.WithPrompt(prompt),
	)
}

// GenerateWithSystem executes a prompt with a system instruction.
func (c *Client) GenerateWithSystem(ctx context.Context, system, prompt string) (string, error) {
	return c.generate(ctx,
		ai.WithModelName(c.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	)
}

// Classify asks the model a yes/no question and reduces the answer to a bool.
// The prompt must instruct the model to answer with a single word. Unknown
// answers are treated as negative rather than surfaced as errors, so a
// misbehaving model degrades the caller's decision, never breaks it.
func (c *Client) Classify(ctx context.Context, prompt string) (bool, error) {
	text, err := c.Generate(ctx, prompt)
	if err != nil {
		return false, err
	}
	return parseAffirmative(text), nil
}

// affirmativeTokens are accepted leading answers for Classify prompts,
// covering English and Korean instruction phrasings.
var affirmativeTokens = []string{"yes", "y", "true", "예", "관련", "necessary", "필요"}

func parseAffirmative(text string) bool {
	answer := strings.ToLower(strings.TrimSpace(text))
	for _, tok := range affirmativeTokens {
		if strings.HasPrefix(answer, tok) {
			return true
		}
	}
	return false
}
