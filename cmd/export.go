package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/foodwatch-kr/regintel/internal/app"
)

var exportCmd = &cobra.Command{
	Use:   "export [file.json]",
	Short: "문서 저장소 전체를 JSON 파일로 내보내기",
	Long: `저장된 모든 문서를 메타데이터와 함께 JSON 배열로 내보냅니다.
임베딩은 포함되지 않으므로 백업이 아닌 점검과 이관용입니다.

  regintel export documents.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
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

	docs, err := a.Store.All(ctx)
	if err != nil {
		return fmt.Errorf("reading documents: %w", err)
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding documents: %w", err)
	}
	if err := os.WriteFile(args[0], data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", args[0], err)
	}

	fmt.Printf("문서 %d건을 %s에 저장\n", len(docs), args[0])
	return nil
}
