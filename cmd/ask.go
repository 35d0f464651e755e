package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/foodwatch-kr/regintel/internal/app"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "리콜/규제 질문에 답변",
	Long: `질문을 받아 저장된 FDA 문서를 검색하고, 필요하면 실시간 크롤링과
뉴스 검색을 수행한 뒤 근거 기반 답변을 출력합니다.

  regintel ask "최근 치즈 리콜 있었어?"
  regintel --mode regulation ask "영양성분 표시 규정 알려줘"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := validateMode(flagMode); err != nil {
		return err
	}
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, newLogger())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	ans := a.Pipeline.AskQuestion(ctx, flagProject, flagMode, question)
	fmt.Println(ans.Text)
	return nil
}
