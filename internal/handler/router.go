package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pagegate/internal/gate"
	"github.com/hitoshi/pagegate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 運用系。nilの場合は対応する機能を公開しない
	HealthChecker  HealthChecker
	Metrics        http.Handler
	StatusRecorder middleware.HTTPStatusRecorder
	Logger         *slog.Logger

	// ゲート
	Dispatcher middleware.GateDispatcher
	// DebugBypass は全リクエストのゲート判定をバイパスする。
	// 開発環境でのみtrueに設定すること。
	DebugBypass bool

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	ProfileService     ProfileServiceInterface
	ProgressService    ProgressServiceInterface
	EntitlementService EntitlementServiceInterface

	// ページ組み立て用の参照
	Users         UserFinder
	Courses       CourseReader
	Announcements AnnouncementLister
}

// courseKeyFromPath はコースページのURLパラメータからリソースキーを導出する。
func courseKeyFromPath(r *http.Request) string {
	return chi.URLParam(r, "key")
}

// NewRouter は全ルートのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ルートは3系統:
//   - /auth/*: 認証フロー。セッションミドルウェアの外。サインインのみIPレート制限。
//   - ページルート: 保護種別をルート登録時に明示的に宣言し、Protectで判定する。
//   - /api/*: 認証必須のJSON API。Session → CSRF → RateLimit(General)。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS・セキュリティヘッダーは全ルートに効く
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())

	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	if deps.StatusRecorder != nil {
		r.Use(middleware.NewStatusMetricsMiddleware(deps.StatusRecorder))
	}

	if deps.DebugBypass {
		r.Use(middleware.DebugBypass())
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.Users, deps.ProfileService, deps.ProgressService, deps.Courses, deps.Announcements)
	profileHandler := NewProfileHandler(deps.ProfileService)
	progressHandler := NewProgressHandler(deps.ProgressService)
	entitlementHandler := NewEntitlementHandler(deps.EntitlementService)

	// --- 認証ルート（セッションミドルウェアの外） ---
	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.SignInMiddleware()).Post("/signin", authHandler.SignIn)
		r.Post("/signout", authHandler.SignOut)
		r.Post("/refresh", authHandler.Refresh)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン取得（認証不要）
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// 運用エンドポイント
	r.Get("/health", NewHealthHandler(deps.HealthChecker).ServeHTTP)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// --- ページルート（保護種別を登録時に宣言） ---
	protect := func(kind gate.Kind, keyFn middleware.ResourceKeyFunc) func(http.Handler) http.Handler {
		return middleware.Protect(deps.Dispatcher, kind, keyFn)
	}

	r.With(protect(gate.KindNone, nil)).Get("/", pageHandler.Home)
	r.With(protect(gate.KindBasic, nil)).Get("/dashboard", pageHandler.Dashboard)
	r.With(protect(gate.KindAccount, nil)).Get("/account", pageHandler.Account)
	r.With(protect(gate.KindProfile, nil)).Get("/profile", pageHandler.ProfilePage)
	r.With(protect(gate.KindCourse, courseKeyFromPath)).Get("/courses/{key}", pageHandler.CoursePage)

	// --- 認証必須のJSON API ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Patch("/", profileHandler.UpdateProfile)
		})

		r.Route("/api/progress/{resourceKey}", func(r chi.Router) {
			r.Put("/", progressHandler.MarkComplete)
			r.Get("/", progressHandler.GetProgress)
		})

		r.Get("/api/entitlements", entitlementHandler.ListEntitlements)
	})

	return r
}
