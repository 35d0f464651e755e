// Package cmd implements the regintel CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/foodwatch-kr/regintel/internal/config"
	"github.com/foodwatch-kr/regintel/internal/log"
)

var (
	flagProject string
	flagMode    string
	flagDebug   bool
	flagJSONLog bool
)

var rootCmd = &cobra.Command{
	Use:   "regintel",
	Short: "FDA 식품 리콜/규제 질의응답 어시스턴트",
	Long: `regintel은 FDA 리콜 및 규제 문서를 수집·색인하고,
자연어 질문에 대해 로컬 지식 베이스, 실시간 크롤링, 뉴스 검색을
조합하여 근거 있는 답변을 생성합니다.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProject, "project", "default", "대화 이력을 구분하는 프로젝트 이름")
	rootCmd.PersistentFlags().StringVar(&flagMode, "mode", config.ModeRecall, "질문 모드 (recall | regulation)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "디버그 로그 출력")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "log-json", false, "JSON 형식 로그 출력")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagDebug {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: flagJSONLog})
}

// loadConfig loads and validates configuration for commands that need
// the full application.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		if os.Getenv("GEMINI_API_KEY") == "" {
			fmt.Fprintln(os.Stderr, "GEMINI_API_KEY is not set. Run:")
			fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		}
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	return cfg, nil
}

func validateMode(mode string) error {
	switch mode {
	case config.ModeRecall, config.ModeRegulation:
		return nil
	}
	return fmt.Errorf("unknown mode %q (expected %q or %q)", mode, config.ModeRecall, config.ModeRegulation)
}
