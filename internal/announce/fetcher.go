package announce

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/pagegate/internal/model"
	"github.com/hitoshi/pagegate/internal/repository"
)

// Sanitizer は取得したお知らせHTMLのサニタイズインターフェース。
type Sanitizer interface {
	SanitizeHTML(rawHTML string) string
	SanitizeText(raw string) string
}

// FetchRecorder はフェッチ結果のメトリクス記録インターフェース。
// nilの場合は記録をスキップする。
type FetchRecorder interface {
	RecordAnnouncementFetchSuccess(courseID string)
	RecordAnnouncementFetchFailure(courseID string, reason string)
	RecordAnnouncementsUpserted(count int)
}

// Fetcher は個別コースのお知らせフィードのHTTPフェッチとパースを行う。
// SSRF検証、gofeedによるパース、bluemondayによるサニタイズを経て
// (course_id, guid)キーで冪等にUPSERTする。
type Fetcher struct {
	announcementRepo repository.AnnouncementRepository
	sanitizer        Sanitizer
	ssrfGuard        SSRFValidator
	recorder         FetchRecorder
	logger           *slog.Logger
	timeout          time.Duration
	maxBodySize      int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	announcementRepo repository.AnnouncementRepository,
	sanitizer Sanitizer,
	ssrfGuard SSRFValidator,
	recorder FetchRecorder,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		announcementRepo: announcementRepo,
		sanitizer:        sanitizer,
		ssrfGuard:        ssrfGuard,
		recorder:         recorder,
		logger:           logger,
		timeout:          timeout,
		maxBodySize:      maxBodySize,
	}
}

// FetchCourse はコースのお知らせフィードをフェッチして保存する。
// フェッチ失敗はコース単位で隔離し、他コースの取得には影響させない。
func (f *Fetcher) FetchCourse(ctx context.Context, course *model.Course) error {
	start := time.Now()

	feedURL := course.AnnouncementFeedURL
	if feedURL == "" {
		return fmt.Errorf("announcement feed URL is not set: course %s", course.Key)
	}

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(feedURL); err != nil {
		f.logger.Error("announcement feed URL failed SSRF validation",
			slog.String("course_id", course.ID),
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		f.recordFailure(course.ID, "ssrf_blocked")
		return fmt.Errorf("SSRF validation failed: %w", err)
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		f.recordFailure(course.ID, "bad_request")
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", "Pagegate/1.0 Announcement Fetcher")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("announcement feed request failed",
			slog.String("course_id", course.ID),
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		f.recordFailure(course.ID, "http_error")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("announcement feed returned non-OK status",
			slog.String("course_id", course.ID),
			slog.String("feed_url", feedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		f.recordFailure(course.ID, fmt.Sprintf("http_%d", resp.StatusCode))
		return fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		f.recordFailure(course.ID, "read_error")
		return fmt.Errorf("failed to read response body: %w", err)
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		f.logger.Error("failed to parse announcement feed",
			slog.String("course_id", course.ID),
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		f.recordFailure(course.ID, "parse_error")
		return fmt.Errorf("failed to parse feed: %w", err)
	}

	announcements := f.convertItems(course.ID, parsedFeed.Items)

	upserted := 0
	for _, a := range announcements {
		if err := f.announcementRepo.Upsert(ctx, a); err != nil {
			f.logger.Error("failed to upsert announcement",
				slog.String("course_id", course.ID),
				slog.String("guid", a.GUID),
				slog.String("error", err.Error()),
			)
			continue
		}
		upserted++
	}

	if f.recorder != nil {
		f.recorder.RecordAnnouncementFetchSuccess(course.ID)
		f.recorder.RecordAnnouncementsUpserted(upserted)
	}

	f.logger.Info("announcement fetch completed",
		slog.String("course_id", course.ID),
		slog.String("course_key", course.Key),
		slog.String("feed_url", feedURL),
		slog.Int("items_total", len(announcements)),
		slog.Int("items_upserted", upserted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

func (f *Fetcher) recordFailure(courseID, reason string) {
	if f.recorder != nil {
		f.recorder.RecordAnnouncementFetchFailure(courseID, reason)
	}
}

// convertItems はgofeedの記事をサニタイズ済みのmodel.Announcementに変換する。
// GUIDのない記事はリンクで代替し、どちらもない記事はスキップする。
func (f *Fetcher) convertItems(courseID string, items []*gofeed.Item) []*model.Announcement {
	announcements := make([]*model.Announcement, 0, len(items))
	now := time.Now()

	for _, item := range items {
		if item == nil {
			continue
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if guid == "" {
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}

		publishedAt := now
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		announcements = append(announcements, &model.Announcement{
			ID:          uuid.New().String(),
			CourseID:    courseID,
			GUID:        guid,
			Title:       strings.TrimSpace(f.sanitizer.SanitizeText(item.Title)),
			ContentHTML: f.sanitizer.SanitizeHTML(content),
			PublishedAt: publishedAt,
		})
	}

	return announcements
}
