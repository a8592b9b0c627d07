package gate

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/pagegate/internal/model"
)

// SessionOracle は判定直前のセッション照会インターフェース。
// 実装は呼び出しごとに最新状態を読むこと（キャッシュ不可）。
type SessionOracle interface {
	Current(ctx context.Context, sessionID string) (*model.Session, error)
}

// EntitlementChecker はエンタイトルメント照会インターフェース。
type EntitlementChecker interface {
	HasEntitlement(ctx context.Context, userID, resourceKey string) (bool, error)
}

// ProfileBootstrapper はプロフィールの冪等な存在保証インターフェース。
type ProfileBootstrapper interface {
	EnsureProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// DecisionRecorder はゲート判定のメトリクス記録インターフェース。
type DecisionRecorder interface {
	RecordGateDecision(kind string, outcome string)
	RecordSessionLookupLatency(duration time.Duration)
}

// Config はディスパッチャの設定。
type Config struct {
	LoginURL    string // 未認証時のリダイレクト先
	NoAccessURL string // エンタイトルメント拒否時のリダイレクト先
}

// Request は1回のディスパッチ入力。
type Request struct {
	Kind        Kind
	SessionID   string // セッションクッキーの値。未提示なら空
	ResourceKey string // course種別のみ使用
}

// Dispatcher は保護種別ごとの判定状態機械。
// 1リクエストにつき必ず1つの終端判定（許可またはリダイレクト）を返す。
type Dispatcher struct {
	oracle       SessionOracle
	entitlements EntitlementChecker
	profiles     ProfileBootstrapper
	recorder     DecisionRecorder // nil可
	config       Config
}

// NewDispatcher はDispatcherを生成する。recorderはnilでもよい。
func NewDispatcher(
	oracle SessionOracle,
	entitlements EntitlementChecker,
	profiles ProfileBootstrapper,
	recorder DecisionRecorder,
	config Config,
) *Dispatcher {
	return &Dispatcher{
		oracle:       oracle,
		entitlements: entitlements,
		profiles:     profiles,
		recorder:     recorder,
		config:       config,
	}
}

type bypassKey struct{}

// WithBypass は判定を常に許可へ短絡させるフラグをコンテキストに付与する。
// プロセス内からのみ設定可能。HTTP層は開発環境でのみこれを配線する。
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassKey{}, true)
}

// isBypassed はバイパスフラグの有無を返す。
func isBypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassKey{}).(bool)
	return v
}

// Dispatch は保護種別に応じた判定を実行する。
//
// 状態機械:
//   - none: セッション照会なしで即許可。
//   - basic/account/profile/course: まずセッション照会。不在なら
//     ログインへリダイレクト。照会エラーは不在として扱う（fatalにしない）。
//   - profile: 許可前にプロフィールを冪等作成。作成失敗でも許可は
//     維持し、Decision.BootstrapErrで失敗を運ぶ。
//   - course: リソースキーが空なら拒否（フェイルクローズド）。
//     エンタイトルメント不在・照会エラーも拒否。
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Decision {
	if isBypassed(ctx) {
		slog.Warn("gate bypassed", slog.String("kind", req.Kind.String()))
		return d.record(Decision{Action: ActionAllow, Kind: req.Kind}, "bypass")
	}

	if req.Kind == KindNone {
		return d.record(Decision{Action: ActionAllow, Kind: req.Kind}, "allow")
	}

	session := d.currentSession(ctx, req.SessionID)
	if session == nil {
		return d.record(Decision{
			Action:      ActionRedirect,
			RedirectURL: d.config.LoginURL,
			Kind:        req.Kind,
		}, "redirect_login")
	}

	switch req.Kind {
	case KindProfile:
		if _, err := d.profiles.EnsureProfile(ctx, session.UserID); err != nil {
			// リダイレクトにするとログイン済みのままループするため、
			// 許可を維持してエラーを可視化させる。
			slog.Error("profile bootstrap failed",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
			return d.record(Decision{
				Action:       ActionAllow,
				Kind:         req.Kind,
				UserID:       session.UserID,
				BootstrapErr: err,
			}, "allow_bootstrap_failed")
		}

	case KindCourse:
		if req.ResourceKey == "" {
			slog.Warn("course gate with empty resource key denied",
				slog.String("user_id", session.UserID),
			)
			return d.record(Decision{
				Action:      ActionRedirect,
				RedirectURL: d.config.NoAccessURL,
				Kind:        req.Kind,
				UserID:      session.UserID,
			}, "redirect_no_access")
		}
		granted, err := d.entitlements.HasEntitlement(ctx, session.UserID, req.ResourceKey)
		if err != nil || !granted {
			// 照会エラーは拒否と同じ扱い（フェイルクローズド）
			return d.record(Decision{
				Action:      ActionRedirect,
				RedirectURL: d.config.NoAccessURL,
				Kind:        req.Kind,
				UserID:      session.UserID,
			}, "redirect_no_access")
		}
	}

	return d.record(Decision{
		Action: ActionAllow,
		Kind:   req.Kind,
		UserID: session.UserID,
	}, "allow")
}

// currentSession は最新のセッションを取得する。
// 照会エラーはセッション不在として扱い、警告ログのみ残す。
func (d *Dispatcher) currentSession(ctx context.Context, sessionID string) *model.Session {
	start := time.Now()
	session, err := d.oracle.Current(ctx, sessionID)
	if d.recorder != nil {
		d.recorder.RecordSessionLookupLatency(time.Since(start))
	}
	if err != nil {
		slog.Warn("session lookup failed, treating as absent",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return session
}

// record は判定結果をメトリクスに記録して返す。
func (d *Dispatcher) record(decision Decision, outcome string) Decision {
	if d.recorder != nil {
		d.recorder.RecordGateDecision(decision.Kind.String(), outcome)
	}
	return decision
}
