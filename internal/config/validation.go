package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. API Key validation (required for all AI operations)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	// Reference: Gemini API documentation
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// MaxTokens range: 1 to 2097152 (Gemini 2.5 max context window)
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// 3. Retrieval configuration validation
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.TopK <= 0 || c.TopK > 20 {
		return fmt.Errorf("%w: must be between 1 and 20, got %d", ErrInvalidTopK, c.TopK)
	}

	// 4. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn on the default dev password but don't block, user might be in dev
	if c.PostgresPassword == "regintel_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// 5. PostgreSQL SSL mode validation
	// DO NOT mutate config in Validate() - just validate
	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 6. Crawler bounds
	if c.Crawler.BaseURL == "" {
		return fmt.Errorf("%w: crawler.base_url cannot be empty", ErrInvalidCrawler)
	}
	if c.Crawler.MaxPages < 1 || c.Crawler.MaxPages > 50 {
		return fmt.Errorf("%w: crawler.max_pages must be between 1 and 50, got %d",
			ErrInvalidCrawler, c.Crawler.MaxPages)
	}
	if c.Crawler.MaxPerPage < 1 || c.Crawler.MaxPerPage > 50 {
		return fmt.Errorf("%w: crawler.max_per_page must be between 1 and 50, got %d",
			ErrInvalidCrawler, c.Crawler.MaxPerPage)
	}
	if c.Crawler.TargetCount < 1 {
		return fmt.Errorf("%w: crawler.target_count must be positive, got %d",
			ErrInvalidCrawler, c.Crawler.TargetCount)
	}
	if c.Crawler.DelayMS < 0 {
		return fmt.Errorf("%w: crawler.delay_ms cannot be negative, got %d",
			ErrInvalidCrawler, c.Crawler.DelayMS)
	}

	// 7. History bounds
	if c.HistoryDir == "" {
		return fmt.Errorf("%w: history_dir cannot be empty", ErrInvalidHistory)
	}
	// The cap is pairs of user/assistant messages, so it must be even.
	if c.MaxHistoryMessages < 2 || c.MaxHistoryMessages%2 != 0 {
		return fmt.Errorf("%w: max_history_messages must be a positive even number, got %d",
			ErrInvalidHistory, c.MaxHistoryMessages)
	}
	if c.HistoryRetentionDays < 1 {
		return fmt.Errorf("%w: history_retention_days must be positive, got %d",
			ErrInvalidHistory, c.HistoryRetentionDays)
	}

	return nil
}

// NormalizeMaxHistoryMessages clamps a history cap to a sane even value.
func NormalizeMaxHistoryMessages(limit int) int {
	if limit <= 0 {
		return DefaultMaxHistoryMessages
	}
	if limit%2 != 0 {
		limit++
	}
	return limit
}
