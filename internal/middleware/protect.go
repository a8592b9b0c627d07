package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/pagegate/internal/gate"
)

// ResourceKeyFunc はリクエストから保護対象のリソースキーを導出する。
// course種別のルートで使用する。nilまたは空文字列を返した場合、
// ディスパッチャはフェイルクローズドで拒否する。
type ResourceKeyFunc func(r *http.Request) string

// GateDispatcher は保護判定のインターフェース。
type GateDispatcher interface {
	Dispatch(ctx context.Context, req gate.Request) gate.Decision
}

// Protect はルート登録時に宣言された保護種別でアクセスを判定する
// ミドルウェアを返す。判定がリダイレクトなら303 See Otherで遷移させ、
// 許可ならセッション所有者のユーザーIDをコンテキストに注入して次へ渡す。
//
// 使用例:
//
//	r.With(middleware.Protect(dispatcher, gate.KindCourse, courseKeyFromPath)).Get("/courses/{key}", h)
func Protect(dispatcher GateDispatcher, kind gate.Kind, keyFn ResourceKeyFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := gate.Request{
				Kind:      kind,
				SessionID: SessionIDFromRequest(r),
			}
			if keyFn != nil {
				req.ResourceKey = keyFn(r)
			}

			decision := dispatcher.Dispatch(r.Context(), req)
			if !decision.Allowed() {
				http.Redirect(w, r, decision.RedirectURL, http.StatusSeeOther)
				return
			}

			ctx := r.Context()
			if decision.UserID != "" {
				ctx = ContextWithUserID(ctx, decision.UserID)
			}
			if decision.BootstrapErr != nil {
				ctx = contextWithBootstrapErr(ctx, decision.BootstrapErr)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bootstrapErrContextKey はプロフィール作成失敗をハンドラーへ運ぶキー。
var bootstrapErrContextKey = contextKey("bootstrap_err")

func contextWithBootstrapErr(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, bootstrapErrContextKey, err)
}

// BootstrapErrFromContext はプロフィール作成失敗のエラーを返す。なければnil。
// profile種別のハンドラーはこれを確認し、失敗をレスポンスで可視化する。
func BootstrapErrFromContext(ctx context.Context) error {
	err, _ := ctx.Value(bootstrapErrContextKey).(error)
	return err
}

// DebugBypass は全リクエストのコンテキストにゲートバイパスフラグを
// 付与するミドルウェアを返す。開発環境でのみ配線すること。
// ヘッダーやクエリ等のネットワーク入力では決して有効化されない。
func DebugBypass() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(gate.WithBypass(r.Context())))
		})
	}
}
