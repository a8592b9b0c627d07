package auth

import "github.com/hitoshi/pagegate/internal/model"

// EventType は認証状態イベントの種別。
type EventType string

const (
	// EventSignedIn はサインイン成功時に発火する。
	EventSignedIn EventType = "SIGNED_IN"
	// EventSignedOut はサインアウト時に発火する。
	EventSignedOut EventType = "SIGNED_OUT"
	// EventTokenRefreshed はアクセストークン再発行時に発火する。
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	// EventUserUpdated はユーザー情報更新時に発火する。
	EventUserUpdated EventType = "USER_UPDATED"
)

// Event は認証状態の変化を表す。
// 購読者には発生順に同期的に配送される。配送が完了するまで
// 発火元のメソッドは戻らないため、後続のセッション照会は
// 必ずイベント処理後の状態を観測する。
type Event struct {
	Type    EventType
	UserID  string
	Session *model.Session
}
