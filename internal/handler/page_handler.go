package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pagegate/internal/middleware"
	"github.com/hitoshi/pagegate/internal/model"
)

// UserFinder はページハンドラーが必要とするユーザー参照インターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// CourseReader はコース参照インターフェース。
type CourseReader interface {
	FindByKey(ctx context.Context, key string) (*model.Course, error)
}

// AnnouncementLister はお知らせ参照インターフェース。
type AnnouncementLister interface {
	ListByCourseID(ctx context.Context, courseID string, limit int) ([]*model.Announcement, error)
}

// announcementPageLimit はコースページに表示するお知らせの最大件数。
const announcementPageLimit = 20

// PageHandler は保護種別付きで登録されるページルートのハンドラー。
// アクセス判定はProtectミドルウェアが終えており、ここはコンテンツの
// 組み立てだけを行う。
type PageHandler struct {
	users         UserFinder
	profiles      ProfileServiceInterface
	progress      ProgressServiceInterface
	courses       CourseReader
	announcements AnnouncementLister
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(
	users UserFinder,
	profiles ProfileServiceInterface,
	progress ProgressServiceInterface,
	courses CourseReader,
	announcements AnnouncementLister,
) *PageHandler {
	return &PageHandler{
		users:         users,
		profiles:      profiles,
		progress:      progress,
		courses:       courses,
		announcements: announcements,
	}
}

// Home は公開トップページ。保護種別none。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"page":  "home",
		"title": "コースプラットフォーム",
	})
}

// Dashboard は認証のみを要求するページ。保護種別basic。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	// アクセス可否はゲートが判定済み。バイパス時はユーザーIDが空のまま描画する。
	userID, _ := middleware.UserIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"page":    "dashboard",
		"user_id": userID,
	})
}

// Account はアカウント情報ページ。保護種別account。
// アカウントデータの取得は許可判定の後にここで行う。
// GET /account
func (h *PageHandler) Account(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load account",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"page": "account",
		"user": map[string]string{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// ProfilePage はプロフィールページ。保護種別profile。
// プロフィールの存在はゲートが保証済み。作成に失敗していた場合は
// コンテキストのエラーを確認し、リダイレクトではなくエラー表示にする。
// GET /profile
func (h *PageHandler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	if err := middleware.BootstrapErrFromContext(r.Context()); err != nil {
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewBootstrapFailedError())
		return
	}

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	p, err := h.profiles.EnsureProfile(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewBootstrapFailedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"page": "profile",
		"profile": map[string]string{
			"display_name": p.DisplayName,
			"bio":          p.Bio,
			"avatar_url":   p.AvatarURL,
		},
	})
}

// CoursePage はコースコンテンツページ。保護種別course。
// エンタイトルメントはゲートが検証済み。ここではコース情報・お知らせ・
// 自分の進捗を組み立てる。
// GET /courses/{key}
func (h *PageHandler) CoursePage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	key := chi.URLParam(r, "key")
	course, err := h.courses.FindByKey(r.Context(), key)
	if err != nil {
		slog.Error("failed to load course",
			slog.String("course_key", key),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if course == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewCourseNotFoundError(key))
		return
	}

	completed, err := h.progress.CheckProgress(r.Context(), userID, key)
	if err != nil {
		// 進捗は情報表示専用。取得失敗でもページは返す。
		slog.Warn("failed to check progress",
			slog.String("user_id", userID),
			slog.String("course_key", key),
		)
		completed = false
	}

	announcements, err := h.announcements.ListByCourseID(r.Context(), course.ID, announcementPageLimit)
	if err != nil {
		slog.Warn("failed to list announcements",
			slog.String("course_id", course.ID),
		)
		announcements = nil
	}

	items := make([]map[string]interface{}, 0, len(announcements))
	for _, a := range announcements {
		items = append(items, map[string]interface{}{
			"title":        a.Title,
			"content_html": a.ContentHTML,
			"published_at": a.PublishedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"page": "course",
		"course": map[string]string{
			"key":   course.Key,
			"title": course.Title,
		},
		"completed":     completed,
		"announcements": items,
	})
}
