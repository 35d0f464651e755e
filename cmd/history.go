package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/foodwatch-kr/regintel/internal/config"
	"github.com/foodwatch-kr/regintel/internal/history"
)

var flagHistoryCleanup bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "대화 이력 프로젝트 목록 출력 및 정리",
	Long: `저장된 대화 이력의 프로젝트 목록을 출력합니다.
--cleanup 플래그를 주면 보존 기간이 지난 이력을 삭제합니다.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&flagHistoryCleanup, "cleanup", false, "보존 기간이 지난 이력 삭제")
	rootCmd.AddCommand(historyCmd)
}

// runHistory works on the history files directly; it does not need the
// database or the LLM provider.
func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	dir := cfg.HistoryDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting user home directory: %w", err)
		}
		dir = filepath.Join(home, ".regintel", "history")
	}

	hist, err := history.NewStore(dir, config.NormalizeMaxHistoryMessages(cfg.MaxHistoryMessages), newLogger())
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}

	if flagHistoryCleanup {
		days := cfg.HistoryRetentionDays
		if days <= 0 {
			days = config.DefaultHistoryRetentionDays
		}
		removed, err := hist.CleanupOlderThan(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			return fmt.Errorf("cleaning up history: %w", err)
		}
		fmt.Printf("%d개 이력 삭제 (%d일 경과)\n", removed, days)
		return nil
	}

	projects, err := hist.Projects()
	if err != nil {
		return fmt.Errorf("listing projects: %w", err)
	}
	if len(projects) == 0 {
		fmt.Println("저장된 대화 이력이 없습니다.")
		return nil
	}
	for _, p := range projects {
		fmt.Println(p)
	}
	return nil
}
