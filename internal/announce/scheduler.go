package announce

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pagegate/internal/model"
	"github.com/hitoshi/pagegate/internal/repository"
)

// CourseFetcher はコース単位のお知らせフェッチの実行インターフェース。
type CourseFetcher interface {
	FetchCourse(ctx context.Context, course *model.Course) error
}

// FeedURLDetector はお知らせフィードURLの自動検出インターフェース。
type FeedURLDetector interface {
	DetectFeedURL(ctx context.Context, infoURL string) (string, error)
}

// Scheduler はお知らせフェッチのスケジューリングと並列制御を行う。
// ティッカーでお知らせ取得対象のコースを取得し、semaphoreパターンで
// 最大並列数を制御しながらフェッチを実行する。
// フィードURL未設定でコース紹介URLがあるコースは、フェッチ前に
// フィードURLを自動検出して保存する。
type Scheduler struct {
	courseRepo     repository.CourseRepository
	detector       FeedURLDetector
	fetcher        CourseFetcher
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	courseRepo repository.CourseRepository,
	detector FeedURLDetector,
	fetcher CourseFetcher,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		courseRepo:     courseRepo,
		detector:       detector,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("announcement scheduler started",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("announcement fetch cycle failed",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("announcement scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("announcement fetch cycle failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はお知らせ取得対象のコースを1回取得し、並列でフェッチを実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	courses, err := s.courseRepo.ListWithAnnouncementSource(ctx)
	if err != nil {
		return err
	}

	if len(courses) == 0 {
		s.logger.Info("no courses with an announcement source")
		return nil
	}

	s.logger.Info("announcement fetch cycle started",
		slog.Int("course_count", len(courses)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, course := range courses {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(c *model.Course) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.fetchOne(ctx, c); err != nil {
				s.logger.Error("announcement fetch failed",
					slog.String("course_id", c.ID),
					slog.String("course_key", c.Key),
					slog.String("error", err.Error()),
				)
			}
		}(course)
	}

	wg.Wait()

	s.logger.Info("announcement fetch cycle completed",
		slog.Int("course_count", len(courses)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// fetchOne は1コースのお知らせを取得する。
// フィードURL未設定の場合は紹介URLから自動検出し、永続化してから取得する。
func (s *Scheduler) fetchOne(ctx context.Context, course *model.Course) error {
	if course.AnnouncementFeedURL == "" {
		if course.InfoURL == "" {
			return nil
		}

		feedURL, err := s.detector.DetectFeedURL(ctx, course.InfoURL)
		if err != nil {
			s.logger.Warn("announcement feed detection failed",
				slog.String("course_id", course.ID),
				slog.String("info_url", course.InfoURL),
				slog.String("error", err.Error()),
			)
			return nil // 検出失敗は次サイクルで再試行する
		}

		if err := s.courseRepo.UpdateAnnouncementFeedURL(ctx, course.ID, feedURL); err != nil {
			return err
		}
		course.AnnouncementFeedURL = feedURL

		s.logger.Info("announcement feed detected",
			slog.String("course_id", course.ID),
			slog.String("feed_url", feedURL),
		)
	}

	return s.fetcher.FetchCourse(ctx, course)
}
