package announce

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/pagegate/internal/model"
)

// mockAnnouncementRepo はAnnouncementRepositoryのテスト用モック。
type mockAnnouncementRepo struct {
	upsertFunc func(ctx context.Context, a *model.Announcement) error
	upserted   []*model.Announcement
}

func (m *mockAnnouncementRepo) Upsert(ctx context.Context, a *model.Announcement) error {
	if m.upsertFunc != nil {
		if err := m.upsertFunc(ctx, a); err != nil {
			return err
		}
	}
	m.upserted = append(m.upserted, a)
	return nil
}

func (m *mockAnnouncementRepo) ListByCourseID(_ context.Context, _ string, _ int) ([]*model.Announcement, error) {
	return nil, nil
}

// passthroughSanitizer はサニタイズ呼び出しを記録するテスト用実装。
type passthroughSanitizer struct {
	htmlCalls int
	textCalls int
}

func (s *passthroughSanitizer) SanitizeHTML(raw string) string {
	s.htmlCalls++
	// scriptタグの除去のみ模倣する
	return strings.ReplaceAll(raw, "<script>alert(1)</script>", "")
}

func (s *passthroughSanitizer) SanitizeText(raw string) string {
	s.textCalls++
	return raw
}

// mockRecorder はFetchRecorderのテスト用モック。
type mockRecorder struct {
	successCount  int
	failureCount  int
	lastReason    string
	upsertedTotal int
}

func (m *mockRecorder) RecordAnnouncementFetchSuccess(_ string) { m.successCount++ }

func (m *mockRecorder) RecordAnnouncementFetchFailure(_ string, reason string) {
	m.failureCount++
	m.lastReason = reason
}

func (m *mockRecorder) RecordAnnouncementsUpserted(count int) { m.upsertedTotal += count }

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestFetcher(repo *mockAnnouncementRepo, sanitizer Sanitizer, guard SSRFValidator, recorder FetchRecorder) *Fetcher {
	var buf bytes.Buffer
	return NewFetcher(repo, sanitizer, guard, recorder, newTestLogger(&buf), 10*time.Second, 5*1024*1024)
}

func TestFetcher_FetchCourse_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>お知らせ</title>
    <item>
      <title>第1回公開</title>
      <link>https://example.com/news/1</link>
      <guid>news-1</guid>
      <description>&lt;p&gt;公開しました&lt;/p&gt;</description>
      <pubDate>Wed, 01 Jan 2025 00:00:00 GMT</pubDate>
    </item>
    <item>
      <title>第2回公開</title>
      <link>https://example.com/news/2</link>
      <guid>news-2</guid>
      <description>second</description>
    </item>
  </channel>
</rss>`)
	}))
	defer server.Close()

	repo := &mockAnnouncementRepo{}
	sanitizer := &passthroughSanitizer{}
	recorder := &mockRecorder{}
	f := newTestFetcher(repo, sanitizer, &mockSSRFGuard{}, recorder)

	course := &model.Course{ID: "c-1", Key: "course-101", AnnouncementFeedURL: server.URL}
	if err := f.FetchCourse(context.Background(), course); err != nil {
		t.Fatalf("FetchCourse() がエラーを返した: %v", err)
	}

	if len(repo.upserted) != 2 {
		t.Fatalf("UPSERTされたお知らせ数 = %d, want 2", len(repo.upserted))
	}

	first := repo.upserted[0]
	if first.CourseID != "c-1" {
		t.Errorf("CourseID = %q, want c-1", first.CourseID)
	}
	if first.GUID != "news-1" {
		t.Errorf("GUID = %q, want news-1", first.GUID)
	}
	if first.Title != "第1回公開" {
		t.Errorf("Title = %q, want 第1回公開", first.Title)
	}
	if first.PublishedAt.IsZero() {
		t.Error("PublishedAt が設定されるべき")
	}

	// 全記事がサニタイズを通過すること
	if sanitizer.htmlCalls != 2 || sanitizer.textCalls != 2 {
		t.Errorf("サニタイズ呼び出し回数 html=%d text=%d, want 2/2", sanitizer.htmlCalls, sanitizer.textCalls)
	}

	if recorder.successCount != 1 {
		t.Errorf("成功メトリクス = %d, want 1", recorder.successCount)
	}
	if recorder.upsertedTotal != 2 {
		t.Errorf("UPSERTメトリクス = %d, want 2", recorder.upsertedTotal)
	}
}

func TestFetcher_FetchCourse_SanitizesContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0">
  <channel><title>News</title>
    <item>
      <title>XSS</title>
      <guid>xss-1</guid>
      <description>&lt;p&gt;hello&lt;/p&gt;&lt;script&gt;alert(1)&lt;/script&gt;</description>
    </item>
  </channel>
</rss>`)
	}))
	defer server.Close()

	repo := &mockAnnouncementRepo{}
	f := newTestFetcher(repo, &passthroughSanitizer{}, &mockSSRFGuard{}, nil)

	course := &model.Course{ID: "c-1", Key: "course-101", AnnouncementFeedURL: server.URL}
	if err := f.FetchCourse(context.Background(), course); err != nil {
		t.Fatalf("FetchCourse() がエラーを返した: %v", err)
	}

	if len(repo.upserted) != 1 {
		t.Fatalf("UPSERTされたお知らせ数 = %d, want 1", len(repo.upserted))
	}
	if strings.Contains(repo.upserted[0].ContentHTML, "<script>") {
		t.Errorf("保存前にscriptタグが除去されるべき: %q", repo.upserted[0].ContentHTML)
	}
}

func TestFetcher_FetchCourse_GUIDFallsBackToLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0">
  <channel><title>News</title>
    <item>
      <title>GUIDなし</title>
      <link>https://example.com/news/no-guid</link>
    </item>
  </channel>
</rss>`)
	}))
	defer server.Close()

	repo := &mockAnnouncementRepo{}
	f := newTestFetcher(repo, &passthroughSanitizer{}, &mockSSRFGuard{}, nil)

	course := &model.Course{ID: "c-1", AnnouncementFeedURL: server.URL}
	if err := f.FetchCourse(context.Background(), course); err != nil {
		t.Fatalf("FetchCourse() がエラーを返した: %v", err)
	}

	if len(repo.upserted) != 1 {
		t.Fatalf("UPSERTされたお知らせ数 = %d, want 1", len(repo.upserted))
	}
	if repo.upserted[0].GUID != "https://example.com/news/no-guid" {
		t.Errorf("GUIDはリンクで代替されるべき: %q", repo.upserted[0].GUID)
	}
}

func TestFetcher_FetchCourse_SSRFBlocked(t *testing.T) {
	repo := &mockAnnouncementRepo{}
	recorder := &mockRecorder{}
	f := newTestFetcher(repo, &passthroughSanitizer{},
		&mockSSRFGuard{validateErr: fmt.Errorf("blocked IP address")}, recorder)

	course := &model.Course{ID: "c-1", AnnouncementFeedURL: "http://192.168.1.1/feed.xml"}
	err := f.FetchCourse(context.Background(), course)
	if err == nil {
		t.Fatal("SSRF検証失敗時はエラーを返すべき")
	}
	if recorder.failureCount != 1 || recorder.lastReason != "ssrf_blocked" {
		t.Errorf("失敗メトリクス = %d (%q), want 1 (ssrf_blocked)", recorder.failureCount, recorder.lastReason)
	}
	if len(repo.upserted) != 0 {
		t.Error("SSRF検証失敗時はUPSERTされないべき")
	}
}

func TestFetcher_FetchCourse_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	recorder := &mockRecorder{}
	f := newTestFetcher(&mockAnnouncementRepo{}, &passthroughSanitizer{}, &mockSSRFGuard{}, recorder)

	course := &model.Course{ID: "c-1", AnnouncementFeedURL: server.URL}
	if err := f.FetchCourse(context.Background(), course); err == nil {
		t.Fatal("404時はエラーを返すべき")
	}
	if recorder.lastReason != "http_404" {
		t.Errorf("失敗理由 = %q, want http_404", recorder.lastReason)
	}
}

func TestFetcher_FetchCourse_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `not valid XML at all!!!`)
	}))
	defer server.Close()

	recorder := &mockRecorder{}
	f := newTestFetcher(&mockAnnouncementRepo{}, &passthroughSanitizer{}, &mockSSRFGuard{}, recorder)

	course := &model.Course{ID: "c-1", AnnouncementFeedURL: server.URL}
	if err := f.FetchCourse(context.Background(), course); err == nil {
		t.Fatal("パース失敗時はエラーを返すべき")
	}
	if recorder.lastReason != "parse_error" {
		t.Errorf("失敗理由 = %q, want parse_error", recorder.lastReason)
	}
}

func TestFetcher_FetchCourse_UpsertErrorDoesNotStopOthers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?>
<rss version="2.0">
  <channel><title>News</title>
    <item><title>A</title><guid>g1</guid></item>
    <item><title>B</title><guid>g2</guid></item>
  </channel>
</rss>`)
	}))
	defer server.Close()

	repo := &mockAnnouncementRepo{
		upsertFunc: func(ctx context.Context, a *model.Announcement) error {
			if a.GUID == "g1" {
				return fmt.Errorf("constraint violation")
			}
			return nil
		},
	}
	recorder := &mockRecorder{}
	f := newTestFetcher(repo, &passthroughSanitizer{}, &mockSSRFGuard{}, recorder)

	course := &model.Course{ID: "c-1", AnnouncementFeedURL: server.URL}
	if err := f.FetchCourse(context.Background(), course); err != nil {
		t.Fatalf("個別UPSERT失敗でもフェッチは継続するべき: %v", err)
	}

	// g1の失敗をスキップしてg2が保存されること
	if len(repo.upserted) != 1 || repo.upserted[0].GUID != "g2" {
		t.Errorf("残りのお知らせが保存されるべき: %+v", repo.upserted)
	}
	if recorder.upsertedTotal != 1 {
		t.Errorf("UPSERTメトリクス = %d, want 1", recorder.upsertedTotal)
	}
}

func TestFetcher_FetchCourse_EmptyFeedURL(t *testing.T) {
	f := newTestFetcher(&mockAnnouncementRepo{}, &passthroughSanitizer{}, &mockSSRFGuard{}, nil)

	course := &model.Course{ID: "c-1", Key: "course-101"}
	if err := f.FetchCourse(context.Background(), course); err == nil {
		t.Fatal("フィードURL未設定時はエラーを返すべき")
	}
}
