package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/foodwatch-kr/regintel/internal/app"
)

var (
	flagCrawlDays   int
	flagCrawlStatus bool
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "FDA 리콜 목록을 수동으로 크롤링",
	Long: `질문과 무관하게 FDA 리콜 목록을 크롤링하여 새 발표를 색인합니다.

  regintel crawl --days 30
  regintel crawl --status`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().IntVar(&flagCrawlDays, "days", 14, "이 날짜 수 이내의 발표만 수집")
	crawlCmd.Flags().BoolVar(&flagCrawlStatus, "status", false, "크롤링 대신 문서 저장소 현황 출력")
	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
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

	if flagCrawlStatus {
		status, err := a.Store.Status(ctx)
		if err != nil {
			return fmt.Errorf("reading store status: %w", err)
		}
		fmt.Printf("문서 수: %d (실시간 %d, DB %d)\n", status.Total, status.RealtimeCount, status.DatabaseCount)
		if status.LastCrawledAt.IsZero() {
			fmt.Println("마지막 크롤링: 없음")
		} else {
			fmt.Printf("마지막 크롤링: %s\n", status.LastCrawledAt.Format(time.RFC3339))
		}
		return nil
	}

	if flagCrawlDays <= 0 {
		return fmt.Errorf("--days must be positive, got %d", flagCrawlDays)
	}
	afterDate := time.Now().AddDate(0, 0, -flagCrawlDays)

	res, err := a.Crawler.CrawlLatest(ctx, afterDate)
	if err != nil {
		return fmt.Errorf("crawling: %w", err)
	}
	fmt.Printf("페이지 %d개 방문, 새 발표 %d건, 청크 %d개 저장, %d건 건너뜀\n",
		res.PagesVisited, res.NewRecords, res.ChunksStored, res.Skipped)
	return nil
}
