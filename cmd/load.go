package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foodwatch-kr/regintel/internal/app"
)

var loadCmd = &cobra.Command{
	Use:   "load [file.json]",
	Short: "리콜/규제 데이터셋 파일을 색인",
	Long: `JSON 레코드 파일을 읽어 청크 단위로 임베딩하고 문서 저장소에
적재합니다. 초기 지식 베이스 구축에 사용합니다.

  regintel load data/recalls.json`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
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

	stats, err := a.Loader.LoadFile(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}
	fmt.Printf("레코드 %d건, 청크 %d개 저장 (%d개 건너뜀)\n",
		stats.Records, stats.ChunksStored, stats.ChunksSkipped)
	return nil
}
